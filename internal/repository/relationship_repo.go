package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jeffschecter/Signal/internal/db"
	svcErr "github.com/jeffschecter/Signal/internal/errors"
)

// Sortable relationship columns used by history queries.
const (
	ColLastIncoming        = "last_incoming"
	ColLastSentRose        = "last_sent_rose"
	ColLastReceivedRose    = "last_received_rose"
	ColLastSentMessage     = "last_sent_message"
	ColLastReceivedMessage = "last_received_message"
	ColLastProfileView     = "last_profile_view"
	ColLastViewedBy        = "last_viewed_by"
	ColSavedAt             = "saved_at"
	ColBlockedAt           = "blocked_at"
)

var sortable = map[string]bool{
	ColLastIncoming: true, ColLastSentRose: true, ColLastReceivedRose: true,
	ColLastSentMessage: true, ColLastReceivedMessage: true,
	ColLastProfileView: true, ColLastViewedBy: true,
	ColSavedAt: true, ColBlockedAt: true,
}

// RelationshipRepository provides data access for relationship rows.
//
// Rows are keyed by (agent_id, patient_id). A missing row reads as an
// unsaved default; rows are only created by writes.
type RelationshipRepository struct {
	db *gorm.DB
}

// NewRelationshipRepository creates a new repository bound to the given DB connection.
func NewRelationshipRepository(database *gorm.DB) *RelationshipRepository {
	return &RelationshipRepository{db: database}
}

// CheckPair rejects a user relating to themself.
func CheckPair(agent, patient uint64) error {
	if agent == patient {
		return svcErr.InvalidArgument("user %d has no relationship with itself", agent)
	}
	return nil
}

// GetOrDefault returns the persisted row or, when there is none, an
// unsaved default with the requested variant. Nothing is written.
func (r *RelationshipRepository) GetOrDefault(
	ctx context.Context,
	agent, patient uint64,
	full bool,
) (*db.Relationship, error) {
	if err := CheckPair(agent, patient); err != nil {
		return nil, err
	}

	var rel db.Relationship
	err := r.db.WithContext(ctx).
		Take(&rel, "agent_id = ? AND patient_id = ?", agent, patient).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &db.Relationship{AgentID: agent, PatientID: patient, Full: full}, nil
	}
	if err != nil {
		return nil, err
	}
	return &rel, nil
}

// Lock makes sure the row exists and locks it for the rest of the
// transaction. A row that must carry full fields is upgraded in memory;
// the caller persists it with Save.
//
// The insert-if-missing step lets two transactions that both touch a
// brand-new pair serialize on the row instead of racing on its creation.
func (r *RelationshipRepository) Lock(
	ctx context.Context,
	agent, patient uint64,
	full bool,
) (*db.Relationship, error) {
	if err := CheckPair(agent, patient); err != nil {
		return nil, err
	}

	seed := db.Relationship{AgentID: agent, PatientID: patient}
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&seed).Error; err != nil {
		return nil, err
	}

	var rel db.Relationship
	if err := lockingQuery(ctx, r.db, true).
		Take(&rel, "agent_id = ? AND patient_id = ?", agent, patient).Error; err != nil {
		return nil, notFound(err, seed.Key())
	}
	if full {
		rel.Full = true
	}
	return &rel, nil
}

// LockPair locks both directions of a pair, always in ascending agent
// order so two transactions on the same pair cannot deadlock.
func (r *RelationshipRepository) LockPair(
	ctx context.Context,
	a, b uint64,
	full bool,
) (ab, ba *db.Relationship, err error) {
	if a < b {
		if ab, err = r.Lock(ctx, a, b, full); err != nil {
			return nil, nil, err
		}
		ba, err = r.Lock(ctx, b, a, full)
	} else {
		if ba, err = r.Lock(ctx, b, a, full); err != nil {
			return nil, nil, err
		}
		ab, err = r.Lock(ctx, a, b, full)
	}
	if err != nil {
		return nil, nil, err
	}
	return ab, ba, nil
}

// Save writes every column of rel.
func (r *RelationshipRepository) Save(ctx context.Context, rel *db.Relationship) error {
	if err := CheckPair(rel.AgentID, rel.PatientID); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Save(rel).Error
}

// HistoryFilter selects and orders one agent's relationship rows.
type HistoryFilter struct {
	AgentID     uint64
	IncludeBase bool
	CacheTime   *time.Time
	New         bool
	SavedOnly   bool
	Blocked     bool
	SortColumn  string
	Ascending   bool
	Offset      int
	Limit       int
}

// List returns the agent's relationships matching f. Rows whose sort
// column was never set are left out.
//
// Example:
//
//	repo.List(ctx, HistoryFilter{AgentID: 42, SortColumn: ColLastIncoming, Limit: 20})
func (r *RelationshipRepository) List(ctx context.Context, f HistoryFilter) ([]db.Relationship, error) {
	col := f.SortColumn
	if col == "" {
		col = ColLastIncoming
	}
	if !sortable[col] {
		return nil, svcErr.InvalidArgument("cannot sort history by %q", col)
	}

	q := r.db.WithContext(ctx).
		Model(&db.Relationship{}).
		Where("agent_id = ?", f.AgentID).
		Where("blocked = ?", f.Blocked).
		Where(col + " IS NOT NULL")

	if !f.IncludeBase {
		q = q.Where("is_full = ?", true)
	}
	if f.CacheTime != nil {
		t := *f.CacheTime
		q = q.Where("(last_incoming > ? OR last_sent_rose > ? OR last_sent_message > ?)", t, t, t)
	}
	if f.New {
		q = q.Where("(new_roses > 0 OR new_messages > 0)")
	}
	if f.SavedOnly {
		q = q.Where("saved = ?", true)
	}

	q = q.Order(clause.OrderByColumn{Column: clause.Column{Name: col}, Desc: !f.Ascending}).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "patient_id"}, Desc: !f.Ascending})
	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var rels []db.Relationship
	if err := q.Find(&rels).Error; err != nil {
		return nil, err
	}
	return rels, nil
}

// UnreadTotals sums unread roses and messages over the agent's
// non-blocked relationships.
func (r *RelationshipRepository) UnreadTotals(ctx context.Context, agent uint64) (roses, messages int64, err error) {
	var totals struct {
		Roses    int64
		Messages int64
	}
	err = r.db.WithContext(ctx).
		Model(&db.Relationship{}).
		Select("COALESCE(SUM(new_roses), 0) AS roses, COALESCE(SUM(new_messages), 0) AS messages").
		Where("agent_id = ? AND blocked = ?", agent, false).
		Scan(&totals).Error
	return totals.Roses, totals.Messages, err
}
