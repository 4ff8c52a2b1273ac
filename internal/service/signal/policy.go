package signal

import "github.com/jeffschecter/Signal/internal/db"

// Policy decides whether an interaction between two users may happen.
// Both relationships are locked and seen from each side: sender is the
// sender's row about the recipient, recipient the recipient's row about
// the sender. A rejection is not an error; the send simply does not happen.
type Policy interface {
	CanMessage(sender, recipient *db.Relationship) bool
	CanSendRose(sender, recipient *db.Relationship) bool
}

// AllowAll lets every interaction through.
type AllowAll struct{}

func (AllowAll) CanMessage(_, _ *db.Relationship) bool  { return true }
func (AllowAll) CanSendRose(_, _ *db.Relationship) bool { return true }

// RespectBlocks rejects interactions with a recipient who blocked the
// sender, and from a sender who blocked the recipient.
type RespectBlocks struct{}

func (RespectBlocks) CanMessage(sender, recipient *db.Relationship) bool {
	return !sender.Blocked && !recipient.Blocked
}

func (p RespectBlocks) CanSendRose(sender, recipient *db.Relationship) bool {
	return p.CanMessage(sender, recipient)
}
