package signal

import (
	"context"
	"errors"
	"time"

	"github.com/jeffschecter/Signal/internal/app"
	"github.com/jeffschecter/Signal/internal/config"
	"github.com/jeffschecter/Signal/internal/db"
	svcErr "github.com/jeffschecter/Signal/internal/errors"
	"github.com/jeffschecter/Signal/internal/garden"
	"github.com/jeffschecter/Signal/internal/repository"
)

// Service implements the Signal API: accounts, relationships, messages,
// the rose garden and the history inbox.
// It contains the business logic on top of repository and cache layers;
// every write that touches more than one record runs in one Store
// transaction, and every method taking a now argument falls back to the
// service clock when now is zero.
type Service struct {
	appCtx *app.AppContext
	store  *repository.Store
	now    func() time.Time
	grower *garden.Grower
	policy Policy
}

// Option customizes a Service.
type Option func(*Service)

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithGrower replaces the random source of rose growing periods.
func WithGrower(g *garden.Grower) Option {
	return func(s *Service) { s.grower = g }
}

// WithPolicy replaces the default allow-all interaction policy.
func WithPolicy(p Policy) Option {
	return func(s *Service) { s.policy = p }
}

// OptionsFromConfig returns the options the deployment config selects.
func OptionsFromConfig(cfg *config.Config) []Option {
	var opts []Option
	if cfg.Signal.RespectBlocks {
		opts = append(opts, WithPolicy(RespectBlocks{}))
	}
	return opts
}

// NewSignalService creates a new Signal service with dependencies from AppContext.
func NewSignalService(appCtx *app.AppContext, opts ...Option) *Service {
	s := &Service{
		appCtx: appCtx,
		store:  appCtx.Store,
		now:    db.NowFunc,
		grower: garden.NewSeededGrower(),
		policy: AllowAll{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// at resolves an optional caller-supplied time to the storage precision.
func (s *Service) at(now time.Time) time.Time {
	if now.IsZero() {
		now = s.now()
	}
	return now.UTC().Truncate(time.Millisecond)
}

// errNoop aborts a transaction whose outcome is a recoverable "did not
// happen": nothing it wrote survives and the caller gets a nil result.
var errNoop = errors.New("no-op")

// requireUsers fails with NotFound for the first uid without an account.
func requireUsers(ctx context.Context, tx *repository.Repos, uids ...uint64) error {
	for _, uid := range uids {
		ok, err := tx.Accounts.Exists(ctx, uid)
		if err != nil {
			return err
		}
		if !ok {
			return svcErr.NotFound(db.UserKey(uid))
		}
	}
	return nil
}

// later advances a summary timestamp; it never moves backwards.
func later(cur *time.Time, t time.Time) *time.Time {
	if cur != nil && !t.After(*cur) {
		return cur
	}
	return &t
}

// decrement lowers an unread counter without going below zero.
func decrement(n int) int {
	if n > 0 {
		return n - 1
	}
	return 0
}

// invalidateUnread drops cached inbox badges after a commit. A failure
// only means a stale badge until the TTL runs out.
func (s *Service) invalidateUnread(ctx context.Context, uids ...uint64) {
	if s.appCtx.RedisCache == nil {
		return
	}
	if err := s.appCtx.RedisCache.InvalidateUnread(ctx, uids...); err != nil {
		s.appCtx.Logger.Warn("unread cache invalidation failed", "users", uids, "err", err)
	}
}
