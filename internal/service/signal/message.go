package signal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/jeffschecter/Signal/internal/db"
	svcErr "github.com/jeffschecter/Signal/internal/errors"
	"github.com/jeffschecter/Signal/internal/metrics"
	"github.com/jeffschecter/Signal/internal/repository"
)

// SendMessage stores a voice message from sender to recipient and returns
// its send time, which is also its id. It returns nil, nil when the policy
// refuses the send.
//
// One transaction writes the audio, both ledger entries and both
// relationship summaries; the recipient's unread count goes up by one.
func (s *Service) SendMessage(ctx context.Context, sender, recipient uint64, audio []byte, now time.Time) (*time.Time, error) {
	s.appCtx.Logger.Debug("SendMessage called", "sender", sender, "recipient", recipient, "bytes", len(audio))

	if err := repository.CheckPair(sender, recipient); err != nil {
		return nil, err
	}
	if len(audio) == 0 {
		return nil, svcErr.InvalidArgument("empty message from user %d", sender)
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
		if !s.policy.CanMessage(out, in) {
			return errNoop
		}

		sentKey := repository.Entry(sender, recipient, ms)
		rcvdKey := repository.Entry(recipient, sender, ms)
		err = tx.Ledger.CreateMessage(ctx,
			repository.NewMessageFile(sentKey, audio),
			&db.SentMessage{MessageRecord: db.MessageRecord{
				LedgerEntry: sentKey, New: true, Retrieved: datatypes.JSONSlice[time.Time]{},
			}},
			&db.ReceivedMessage{MessageRecord: db.MessageRecord{
				LedgerEntry: rcvdKey, New: true, Retrieved: datatypes.JSONSlice[time.Time]{},
			}},
		)
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%w: %s already exists", svcErr.ErrConflict, db.MessageFile{LedgerEntry: sentKey}.Key())
		}
		if err != nil {
			return err
		}

		out.LastSentMessage = later(out.LastSentMessage, now)
		in.LastReceivedMessage = later(in.LastReceivedMessage, now)
		in.LastIncoming = later(in.LastIncoming, now)
		in.NewMessages++
		if err := tx.Relationships.Save(ctx, out); err != nil {
			return err
		}
		return tx.Relationships.Save(ctx, in)
	})
	if errors.Is(err, errNoop) {
		metrics.MessagesSentTotal.WithLabelValues(metrics.OutcomeRejected).Inc()
		s.appCtx.Logger.Info("message refused by policy", "sender", sender, "recipient", recipient)
		return nil, nil
	}
	if err != nil {
		s.appCtx.Logger.Error("SendMessage failed", "sender", sender, "recipient", recipient, "err", err)
		return nil, err
	}

	metrics.MessagesSentTotal.WithLabelValues(metrics.OutcomeOK).Inc()
	metrics.MessageBytes.Observe(float64(len(audio)))
	s.invalidateUnread(ctx, recipient)
	return &now, nil
}

// GetMessageFile returns the audio of the message sender sent recipient
// at sentAtMs. With recordRetrieval both ledger entries are marked read
// and stamped with now; the recipient's unread count drops only the first
// time, while the retrieval trail grows on every call.
func (s *Service) GetMessageFile(
	ctx context.Context,
	sender, recipient uint64,
	sentAtMs int64,
	recordRetrieval bool,
	now time.Time,
) ([]byte, error) {
	if err := repository.CheckPair(sender, recipient); err != nil {
		return nil, err
	}
	sentKey := repository.Entry(sender, recipient, sentAtMs)
	if !recordRetrieval {
		return s.store.Ledger.MessageAudio(ctx, sentKey)
	}
	now = s.at(now)
	rcvdKey := repository.Entry(recipient, sender, sentAtMs)

	var audio []byte
	err := s.store.Transaction(ctx, func(tx *repository.Repos) error {
		var err error
		if audio, err = tx.Ledger.MessageAudio(ctx, sentKey); err != nil {
			return err
		}

		rel, err := tx.Relationships.Lock(ctx, recipient, sender, true)
		if err != nil {
			return err
		}
		ledger := tx.Ledger.ForUpdate()
		sent, err := ledger.SentMessage(ctx, sentKey)
		if err != nil {
			return err
		}
		rcvd, err := ledger.ReceivedMessage(ctx, rcvdKey)
		if err != nil {
			return err
		}

		if rcvd.New {
			rel.NewMessages = decrement(rel.NewMessages)
			if err := tx.Relationships.Save(ctx, rel); err != nil {
				return err
			}
		}
		for _, rec := range []*db.MessageRecord{&sent.MessageRecord, &rcvd.MessageRecord} {
			rec.New = false
			rec.Retrieved = append(rec.Retrieved, now)
		}
		if err := tx.Ledger.Save(ctx, sent); err != nil {
			return err
		}
		return tx.Ledger.Save(ctx, rcvd)
	})
	if err != nil {
		return nil, err
	}

	s.invalidateUnread(ctx, recipient)
	return audio, nil
}
