package signal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/jeffschecter/Signal/internal/db"
	svcErr "github.com/jeffschecter/Signal/internal/errors"
	"github.com/jeffschecter/Signal/internal/garden"
	"github.com/jeffschecter/Signal/internal/metrics"
	"github.com/jeffschecter/Signal/internal/repository"
)

// GetGarden returns the user's three roses ordered by id.
func (s *Service) GetGarden(ctx context.Context, uid uint64) ([]db.Rose, error) {
	return s.store.Garden.Roses(ctx, uid)
}

// SendRose sends the sender's rose roseID to recipient and returns the
// send time. It returns nil, nil when the rose has not bloomed yet or the
// policy refuses; the garden is then left unchanged. The sent rose is
// replanted at now.
func (s *Service) SendRose(ctx context.Context, sender, recipient uint64, roseID int, now time.Time) (*time.Time, error) {
	if roseID < 1 || roseID > db.RoseCount {
		return nil, svcErr.InvalidArgument("rose %d does not exist; roses are numbered 1 to %d", roseID, db.RoseCount)
	}
	if err := repository.CheckPair(sender, recipient); err != nil {
		return nil, err
	}
	now = s.at(now)
	ms := db.Millis(now)

	err := s.store.Transaction(ctx, func(tx *repository.Repos) error {
		if err := requireUsers(ctx, tx, sender, recipient); err != nil {
			return err
		}
		out, in, err := tx.Relationships.LockPair(ctx, sender, recipient, true)
		if err != nil {
			return err
		}
		rose, err := tx.Garden.ForUpdate().Rose(ctx, sender, roseID)
		if err != nil {
			return err
		}
		if !rose.IsBloomed(now) || !s.policy.CanSendRose(out, in) {
			return errNoop
		}

		record := func(e db.LedgerEntry) db.RoseRecord {
			return db.RoseRecord{LedgerEntry: e, RoseID: roseID, Planted: rose.Planted, Bloomed: rose.Bloomed, New: true}
		}
		sentKey := repository.Entry(sender, recipient, ms)
		err = tx.Ledger.CreateRose(ctx,
			&db.SentRose{RoseRecord: record(sentKey)},
			&db.ReceivedRose{RoseRecord: record(repository.Entry(recipient, sender, ms))},
		)
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%w: %s already exists", svcErr.ErrConflict, db.SentRose{RoseRecord: record(sentKey)}.Key())
		}
		if err != nil {
			return err
		}

		out.LastSentRose = later(out.LastSentRose, now)
		in.LastReceivedRose = later(in.LastReceivedRose, now)
		in.LastIncoming = later(in.LastIncoming, now)
		in.NewRoses++
		if err := tx.Relationships.Save(ctx, out); err != nil {
			return err
		}
		if err := tx.Relationships.Save(ctx, in); err != nil {
			return err
		}

		rose.Planted = now
		rose.Bloomed = s.grower.BloomTime(now)
		return tx.Garden.SaveRose(ctx, rose)
	})
	if errors.Is(err, errNoop) {
		metrics.RosesSentTotal.WithLabelValues(metrics.OutcomeRejected).Inc()
		s.appCtx.Logger.Debug("rose not sent", "sender", sender, "recipient", recipient, "rose", roseID)
		return nil, nil
	}
	if err != nil {
		s.appCtx.Logger.Error("SendRose failed", "sender", sender, "recipient", recipient, "err", err)
		return nil, err
	}

	metrics.RosesSentTotal.WithLabelValues(metrics.OutcomeOK).Inc()
	s.invalidateUnread(ctx, recipient)
	return &now, nil
}

// AcknowledgeRose marks the rose sender sent recipient at sentAtMs as
// seen. The recipient's unread rose count drops once; later calls change
// nothing and report false.
func (s *Service) AcknowledgeRose(ctx context.Context, sender, recipient uint64, sentAtMs int64) (bool, error) {
	if err := repository.CheckPair(sender, recipient); err != nil {
		return false, err
	}
	sentKey := repository.Entry(sender, recipient, sentAtMs)
	rcvdKey := repository.Entry(recipient, sender, sentAtMs)

	var cleared bool
	err := s.store.Transaction(ctx, func(tx *repository.Repos) error {
		cleared = false
		if _, err := tx.Ledger.ReceivedRose(ctx, rcvdKey); err != nil {
			return err
		}
		rel, err := tx.Relationships.Lock(ctx, recipient, sender, true)
		if err != nil {
			return err
		}
		ledger := tx.Ledger.ForUpdate()
		sent, err := ledger.SentRose(ctx, sentKey)
		if err != nil {
			return err
		}
		rcvd, err := ledger.ReceivedRose(ctx, rcvdKey)
		if err != nil {
			return err
		}
		if !rcvd.New {
			return nil
		}

		rel.NewRoses = decrement(rel.NewRoses)
		if err := tx.Relationships.Save(ctx, rel); err != nil {
			return err
		}
		sent.New, rcvd.New = false, false
		if err := tx.Ledger.Save(ctx, sent); err != nil {
			return err
		}
		cleared = true
		return tx.Ledger.Save(ctx, rcvd)
	})
	if err != nil {
		return false, err
	}
	if cleared {
		s.invalidateUnread(ctx, recipient)
	}
	return cleared, nil
}

// Water forces the user's greenest rose to bloom at now and logs the
// watering with its trigger kind and metadata. It returns the watered
// rose id, or nil when the user is not eligible (see EligibleForWatering).
func (s *Service) Water(
	ctx context.Context,
	uid uint64,
	kind db.WateringKind,
	metadata map[string]any,
	now time.Time,
) (*int, error) {
	if !kind.Valid() {
		return nil, svcErr.InvalidArgument("unknown watering kind %d", kind)
	}
	now = s.at(now)

	var watered int
	err := s.store.Transaction(ctx, func(tx *repository.Repos) error {
		if err := requireUsers(ctx, tx, uid); err != nil {
			return err
		}
		roses, err := tx.Garden.ForUpdate().Roses(ctx, uid)
		if err != nil {
			return err
		}
		rose, ok, err := s.eligible(ctx, tx, uid, roses, now)
		if err != nil {
			return err
		}
		if !ok {
			return errNoop
		}

		rose.Bloomed = now
		if err := tx.Garden.SaveRose(ctx, rose); err != nil {
			return err
		}
		watered = rose.RoseID
		return tx.Garden.CreateWatering(ctx, &db.Watering{
			ID:          uuid.NewString(),
			UserID:      uid,
			Timestamp:   now,
			Kind:        kind,
			BloomedRose: rose.RoseID,
			Metadata:    datatypes.JSONMap(metadata),
		})
	})
	if errors.Is(err, errNoop) {
		metrics.WateringsTotal.WithLabelValues(kind.String(), metrics.OutcomeRejected).Inc()
		return nil, nil
	}
	if err != nil {
		s.appCtx.Logger.Error("Water failed", "user", uid, "kind", kind.String(), "err", err)
		return nil, err
	}

	metrics.WateringsTotal.WithLabelValues(kind.String(), metrics.OutcomeOK).Inc()
	s.appCtx.Logger.Debug("garden watered", "user", uid, "rose", watered, "kind", kind.String())
	return &watered, nil
}

// EligibleForWatering reports whether Water would succeed at now: the
// user has not watered in the last WateringCooldown and their greenest
// rose is more than NearBloom away from blooming.
func (s *Service) EligibleForWatering(ctx context.Context, uid uint64, now time.Time) (bool, error) {
	now = s.at(now)
	roses, err := s.store.Garden.Roses(ctx, uid)
	if err != nil {
		return false, err
	}
	_, ok, err := s.eligible(ctx, s.store.Repos, uid, roses, now)
	return ok, err
}

// eligible applies both watering gates and returns the rose to water.
func (s *Service) eligible(
	ctx context.Context,
	repos *repository.Repos,
	uid uint64,
	roses []db.Rose,
	now time.Time,
) (*db.Rose, bool, error) {
	rose := garden.Greenest(roses)
	if !garden.CanAccelerate(rose, now) {
		return nil, false, nil
	}
	recent, err := repos.Garden.WateredSince(ctx, uid, now.Add(-garden.WateringCooldown))
	if err != nil {
		return nil, false, err
	}
	if recent {
		return nil, false, nil
	}
	return rose, true, nil
}
