package signal_test

import (
	"context"
	"io"
	"log/slog"
	"math/rand"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/jeffschecter/Signal/internal/app"
	"github.com/jeffschecter/Signal/internal/cache"
	"github.com/jeffschecter/Signal/internal/config"
	"github.com/jeffschecter/Signal/internal/db"
	"github.com/jeffschecter/Signal/internal/garden"
	"github.com/jeffschecter/Signal/internal/repository"
	"github.com/jeffschecter/Signal/internal/service/signal"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// clock is a settable time source.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fixture struct {
	svc    *signal.Service
	appCtx *app.AppContext
	store  *repository.Store
	mr     *miniredis.Miniredis
	clock  *clock
}

// setupService spins up an in-memory SQLite DB and a miniredis, and wires
// them into a Signal service with a fixed clock and a seeded grower.
//
// Each test gets its own isolated DB + Redis.
func setupService(t *testing.T, opts ...signal.Option) *fixture {
	t.Helper()

	name := strings.ReplaceAll(t.Name(), "/", "_")
	return newFixture(t, sqlite.Open("file:"+name+"?mode=memory&cache=shared"), 1, opts...)
}

// setupFileService is setupService on a SQLite file shared by conns
// connections, for tests that write concurrently. Writers queue on the
// database lock instead of failing fast.
func setupFileService(t *testing.T, conns int, opts ...signal.Option) *fixture {
	t.Helper()

	path := filepath.Join(t.TempDir(), "signal.db")
	dsn := path + "?_busy_timeout=10000&_journal_mode=WAL&_txlock=immediate"
	return newFixture(t, sqlite.Open(dsn), conns, opts...)
}

func newFixture(t *testing.T, dialector gorm.Dialector, conns int, opts ...signal.Option) *fixture {
	t.Helper()

	database, err := db.Open(dialector, logger.Silent)
	require.NoError(t, err)
	sqlDB, err := database.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(conns)
	t.Cleanup(func() { _ = sqlDB.Close() })

	mr := miniredis.RunT(t)
	cfg := &config.Config{}
	cfg.Redis.Addr = mr.Addr()
	cfg.Redis.TTL = time.Hour

	log := slog.New(slog.NewTextHandler(io.Discard, nil)) // discard logs in tests
	appCtx := app.New(database, cache.NewRedisCache(cfg), log, 5)

	clk := &clock{t: t0}
	all := append([]signal.Option{
		signal.WithClock(clk.Now),
		signal.WithGrower(garden.NewGrower(rand.NewSource(7))),
	}, opts...)

	return &fixture{
		svc:    signal.NewSignalService(appCtx, all...),
		appCtx: appCtx,
		store:  appCtx.Store,
		mr:     mr,
		clock:  clk,
	}
}

// newUser creates an account in New York and returns its id.
func (f *fixture) newUser(t *testing.T, name string) uint64 {
	t.Helper()
	acct, err := f.svc.CreateAccount(context.Background(), name, 40.71, -74.00, time.Time{})
	require.NoError(t, err)
	return acct.User.ID
}

// bloomAll makes every rose of uid bloomed at t0.
func (f *fixture) bloomAll(t *testing.T, uid uint64) {
	t.Helper()
	f.setBlooms(t, uid, t0, t0, t0)
}

// setBlooms sets the bloom time of roses 1..3.
func (f *fixture) setBlooms(t *testing.T, uid uint64, blooms ...time.Time) {
	t.Helper()
	ctx := context.Background()
	for i, b := range blooms {
		rose, err := f.store.Garden.Rose(ctx, uid, i+1)
		require.NoError(t, err)
		rose.Bloomed = b
		require.NoError(t, f.store.Garden.SaveRose(ctx, rose))
	}
}

// waterings returns the watering log of uid, newest first.
func (f *fixture) waterings(t *testing.T, uid uint64) []db.Watering {
	t.Helper()
	var out []db.Watering
	require.NoError(t, f.appCtx.DB.Where("user_id = ?", uid).Order("timestamp DESC").Find(&out).Error)
	return out
}
