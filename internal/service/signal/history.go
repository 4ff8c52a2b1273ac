package signal

import (
	"context"
	"errors"
	"time"

	"github.com/jeffschecter/Signal/internal/cache"
	"github.com/jeffschecter/Signal/internal/db"
	svcErr "github.com/jeffschecter/Signal/internal/errors"
	"github.com/jeffschecter/Signal/internal/repository"
)

// HistoryQuery selects a page of the caller's interaction history. At most
// one of the *Only filters may be set; it also picks the sort field.
type HistoryQuery struct {
	Offset    int
	Limit     int
	CacheTime *time.Time
	Ascending bool
	New       bool

	SavedOnly           bool
	BlockedOnly         bool
	SentRoseOnly        bool
	ReceivedRoseOnly    bool
	SentMessageOnly     bool
	ReceivedMessageOnly bool
	VisitedOnly         bool
	VisitedByOnly       bool
}

// HistoryEntry is one relationship in the history, seen from the caller.
type HistoryEntry struct {
	PartnerID    uint64
	PartnerName  string
	Relationship db.Relationship
}

// filter validates q and turns it into a repository filter.
func (q HistoryQuery) filter(uid uint64) (repository.HistoryFilter, error) {
	f := repository.HistoryFilter{
		AgentID:    uid,
		CacheTime:  q.CacheTime,
		New:        q.New,
		SortColumn: repository.ColLastIncoming,
		Ascending:  q.Ascending,
		Offset:     q.Offset,
		Limit:      q.Limit,
	}
	if q.Offset < 0 || q.Limit < 0 {
		return f, svcErr.InvalidArgument("offset and limit must not be negative")
	}

	only := []struct {
		set    bool
		column string
	}{
		{q.SavedOnly, repository.ColSavedAt},
		{q.BlockedOnly, repository.ColBlockedAt},
		{q.SentRoseOnly, repository.ColLastSentRose},
		{q.ReceivedRoseOnly, repository.ColLastReceivedRose},
		{q.SentMessageOnly, repository.ColLastSentMessage},
		{q.ReceivedMessageOnly, repository.ColLastReceivedMessage},
		{q.VisitedOnly, repository.ColLastProfileView},
		{q.VisitedByOnly, repository.ColLastViewedBy},
	}
	n := 0
	for _, o := range only {
		if o.set {
			n++
			f.SortColumn = o.column
		}
	}
	if n > 1 {
		return f, svcErr.InvalidArgument("at most one history filter may be set, got %d", n)
	}

	f.SavedOnly = q.SavedOnly
	f.Blocked = q.BlockedOnly
	// visits are also recorded on base relationships
	f.IncludeBase = q.VisitedOnly || q.VisitedByOnly
	return f, nil
}

// History lists the caller's relationships newest first (by default by
// last incoming interaction), each with the partner's display name.
// Blocked partners only show up with BlockedOnly.
//
// Example:
//
//	svc.History(ctx, 42, HistoryQuery{Limit: 20, ReceivedMessageOnly: true})
func (s *Service) History(ctx context.Context, uid uint64, q HistoryQuery) ([]HistoryEntry, error) {
	f, err := q.filter(uid)
	if err != nil {
		return nil, err
	}

	rels, err := s.store.Relationships.List(ctx, f)
	if err != nil {
		return nil, err
	}

	ids := make([]uint64, 0, len(rels))
	for _, r := range rels {
		ids = append(ids, r.PatientID)
	}
	names, err := s.store.Accounts.Names(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]HistoryEntry, 0, len(rels))
	for _, r := range rels {
		out = append(out, HistoryEntry{PartnerID: r.PatientID, PartnerName: names[r.PatientID], Relationship: r})
	}

	s.appCtx.Logger.Debug("History result", "user", uid, "sort", f.SortColumn, "count", len(out))
	return out, nil
}

// UnreadCounts returns the caller's unread roses and messages over every
// relationship that is not blocked.
// Cache-first strategy:
//  1. Attempts to read from Redis (unread:userID).
//  2. On a miss or a Redis failure, sums the counters in the DB.
//  3. Writes the sum back with the configured TTL unless a send or
//     retrieval invalidated it in the meantime.
func (s *Service) UnreadCounts(ctx context.Context, uid uint64) (cache.Unread, error) {
	rc := s.appCtx.RedisCache
	cacheable := false
	var version int64
	if rc != nil {
		u, err := rc.GetUnread(ctx, uid)
		if err == nil {
			return u, nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			s.appCtx.Logger.Warn("unread cache read failed", "user", uid, "err", err)
		} else if version, err = rc.UnreadVersion(ctx, uid); err != nil {
			s.appCtx.Logger.Warn("unread cache version read failed", "user", uid, "err", err)
		} else {
			cacheable = true
		}
	}

	roses, messages, err := s.store.Relationships.UnreadTotals(ctx, uid)
	if err != nil {
		return cache.Unread{}, err
	}
	u := cache.Unread{Roses: roses, Messages: messages}

	if cacheable {
		err := rc.SetUnread(ctx, uid, u, version)
		switch {
		case errors.Is(err, cache.ErrStale):
			s.appCtx.Logger.Debug("unread summary invalidated while computing", "user", uid)
		case err != nil:
			s.appCtx.Logger.Warn("unread cache write failed", "user", uid, "err", err)
		}
	}
	return u, nil
}
