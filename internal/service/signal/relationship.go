package signal

import (
	"context"
	"time"

	"github.com/jeffschecter/Signal/internal/db"
	"github.com/jeffschecter/Signal/internal/repository"
)

// GetOrCreateRelationship returns the agent's record about the patient,
// or an unsaved default when they never interacted. Nothing is written.
func (s *Service) GetOrCreateRelationship(ctx context.Context, agent, patient uint64, full bool) (*db.Relationship, error) {
	return s.store.Relationships.GetOrDefault(ctx, agent, patient, full)
}

// GetRelationshipPair returns both directions: a's record about b, then
// b's record about a.
func (s *Service) GetRelationshipPair(ctx context.Context, a, b uint64, full bool) (*db.Relationship, *db.Relationship, error) {
	ab, err := s.store.Relationships.GetOrDefault(ctx, a, b, full)
	if err != nil {
		return nil, nil, err
	}
	ba, err := s.store.Relationships.GetOrDefault(ctx, b, a, full)
	if err != nil {
		return nil, nil, err
	}
	return ab, ba, nil
}

// RecordProfileView stamps a visit on both sides: last_profile_view on
// the viewer's record, last_viewed_by on the viewed user's. Records that
// only ever saw visits stay in the base variant.
func (s *Service) RecordProfileView(ctx context.Context, viewer, viewed uint64, now time.Time) error {
	if err := repository.CheckPair(viewer, viewed); err != nil {
		return err
	}
	now = s.at(now)

	return s.store.Transaction(ctx, func(tx *repository.Repos) error {
		if err := requireUsers(ctx, tx, viewer, viewed); err != nil {
			return err
		}
		out, in, err := tx.Relationships.LockPair(ctx, viewer, viewed, false)
		if err != nil {
			return err
		}
		out.LastProfileView = later(out.LastProfileView, now)
		in.LastViewedBy = later(in.LastViewedBy, now)
		if err := tx.Relationships.Save(ctx, out); err != nil {
			return err
		}
		return tx.Relationships.Save(ctx, in)
	})
}

// SetSaved bookmarks (or un-bookmarks) the patient for the agent. Only the
// agent's record changes.
func (s *Service) SetSaved(ctx context.Context, agent, patient uint64, saved bool, now time.Time) (*db.Relationship, error) {
	return s.updateOwnSide(ctx, agent, patient, now, func(rel *db.Relationship, now time.Time) {
		rel.Saved = saved
		rel.SavedAt = nil
		if saved {
			rel.SavedAt = &now
		}
	})
}

// SetBlocked blocks (or unblocks) the patient for the agent. Blocked
// relationships drop out of the agent's history and unread counts.
func (s *Service) SetBlocked(ctx context.Context, agent, patient uint64, blocked bool, now time.Time) (*db.Relationship, error) {
	rel, err := s.updateOwnSide(ctx, agent, patient, now, func(rel *db.Relationship, now time.Time) {
		rel.Blocked = blocked
		rel.BlockedAt = nil
		if blocked {
			rel.BlockedAt = &now
		}
	})
	if err != nil {
		return nil, err
	}
	s.invalidateUnread(ctx, agent)
	return rel, nil
}

func (s *Service) updateOwnSide(
	ctx context.Context,
	agent, patient uint64,
	now time.Time,
	mutate func(*db.Relationship, time.Time),
) (*db.Relationship, error) {
	if err := repository.CheckPair(agent, patient); err != nil {
		return nil, err
	}
	now = s.at(now)

	var out *db.Relationship
	err := s.store.Transaction(ctx, func(tx *repository.Repos) error {
		if err := requireUsers(ctx, tx, agent, patient); err != nil {
			return err
		}
		rel, err := tx.Relationships.Lock(ctx, agent, patient, true)
		if err != nil {
			return err
		}
		mutate(rel, now)
		out = rel
		return tx.Relationships.Save(ctx, rel)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
