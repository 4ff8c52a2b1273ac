package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/jeffschecter/Signal/internal/db"
)

// LedgerRepository provides data access for the append-only records filed
// under a relationship: sent/received messages and roses, and message audio.
// Every entry is keyed by (agent, patient, send time in ms).
type LedgerRepository struct {
	db   *gorm.DB
	lock bool
}

// NewLedgerRepository creates a new repository bound to the given DB connection.
func NewLedgerRepository(database *gorm.DB) *LedgerRepository {
	return &LedgerRepository{db: database}
}

// ForUpdate returns a copy whose reads lock the rows they return.
func (r *LedgerRepository) ForUpdate() *LedgerRepository {
	return &LedgerRepository{db: r.db, lock: true}
}

// Entry builds the ledger key of a record filed under agent's relationship
// with patient.
func Entry(agent, patient uint64, sentAtMs int64) db.LedgerEntry {
	return db.LedgerEntry{AgentID: agent, PatientID: patient, SentAtMs: sentAtMs}
}

// CreateMessage writes the audio under the sender's relationship and one
// metadata record on each side. A second message in the same millisecond
// fails with gorm.ErrDuplicatedKey.
func (r *LedgerRepository) CreateMessage(
	ctx context.Context,
	file *db.MessageFile,
	sent *db.SentMessage,
	received *db.ReceivedMessage,
) error {
	q := r.db.WithContext(ctx)
	if err := q.Create(file).Error; err != nil {
		return fmt.Errorf("create %s: %w", file.Key(), err)
	}
	if err := q.Create(sent).Error; err != nil {
		return fmt.Errorf("create %s: %w", sent.Key(), err)
	}
	if err := q.Create(received).Error; err != nil {
		return fmt.Errorf("create %s: %w", received.Key(), err)
	}
	return nil
}

// NewMessageFile seals audio into a MessageFile record.
func NewMessageFile(e db.LedgerEntry, data []byte) *db.MessageFile {
	return &db.MessageFile{LedgerEntry: e, Blob: sealBlob(data)}
}

// MessageAudio returns the verified audio bytes of a message.
func (r *LedgerRepository) MessageAudio(ctx context.Context, e db.LedgerEntry) ([]byte, error) {
	f, err := take[db.MessageFile](ctx, r, e, db.MessageFile{LedgerEntry: e}.Key())
	if err != nil {
		return nil, err
	}
	return openBlob(f.Blob, f.Key())
}

// SentMessage loads the sender-side metadata of a message.
func (r *LedgerRepository) SentMessage(ctx context.Context, e db.LedgerEntry) (*db.SentMessage, error) {
	return take[db.SentMessage](ctx, r, e, db.SentMessage{MessageRecord: db.MessageRecord{LedgerEntry: e}}.Key())
}

// ReceivedMessage loads the recipient-side metadata of a message.
func (r *LedgerRepository) ReceivedMessage(ctx context.Context, e db.LedgerEntry) (*db.ReceivedMessage, error) {
	return take[db.ReceivedMessage](ctx, r, e, db.ReceivedMessage{MessageRecord: db.MessageRecord{LedgerEntry: e}}.Key())
}

// CreateRose writes both sides of a sent rose.
func (r *LedgerRepository) CreateRose(ctx context.Context, sent *db.SentRose, received *db.ReceivedRose) error {
	q := r.db.WithContext(ctx)
	if err := q.Create(sent).Error; err != nil {
		return fmt.Errorf("create %s: %w", sent.Key(), err)
	}
	if err := q.Create(received).Error; err != nil {
		return fmt.Errorf("create %s: %w", received.Key(), err)
	}
	return nil
}

// SentRose loads the sender-side record of a rose.
func (r *LedgerRepository) SentRose(ctx context.Context, e db.LedgerEntry) (*db.SentRose, error) {
	return take[db.SentRose](ctx, r, e, db.SentRose{RoseRecord: db.RoseRecord{LedgerEntry: e}}.Key())
}

// ReceivedRose loads the recipient-side record of a rose.
func (r *LedgerRepository) ReceivedRose(ctx context.Context, e db.LedgerEntry) (*db.ReceivedRose, error) {
	return take[db.ReceivedRose](ctx, r, e, db.ReceivedRose{RoseRecord: db.RoseRecord{LedgerEntry: e}}.Key())
}

// Save writes every column of a loaded ledger record. Ledger rows are
// append-only in identity; only flags and audit trails change.
func (r *LedgerRepository) Save(ctx context.Context, record any) error {
	return r.db.WithContext(ctx).Save(record).Error
}

func take[T any](ctx context.Context, r *LedgerRepository, e db.LedgerEntry, key fmt.Stringer) (*T, error) {
	var out T
	err := lockingQuery(ctx, r.db, r.lock).
		Where("agent_id = ? AND patient_id = ? AND sent_at_ms = ?", e.AgentID, e.PatientID, e.SentAtMs).
		Take(&out).Error
	if err != nil {
		return nil, notFound(err, key)
	}
	return &out, nil
}
