package db

import (
	"time"

	"gorm.io/datatypes"
)

// RoseCount is the fixed number of roses growing in every garden.
const RoseCount = 3

// User is the root of every entity group.
type User struct {
	ID              uint64 `gorm:"primaryKey;autoIncrement"`
	Name            string `gorm:"size:128"`
	GenderString    string `gorm:"size:64"` // if MatchParameters.Gender == GenderOther
	SexualityString string `gorm:"size:64"` // if MatchParameters.Sexuality == SexualityOther
	Joined          time.Time
}

func (u User) Key() Key { return UserKey(u.ID) }

// Gender and sexuality codes.
const (
	GenderMale = iota
	GenderFemale
	GenderOther
)

const (
	SexualityGay = iota
	SexualityStraight
	SexualityBi
	SexualityOther
)

// MatchParameters holds the user properties indexed for finding matches.
//
// Entity group: User. One row per user.
type MatchParameters struct {
	UserID       uint64 `gorm:"primaryKey;autoIncrement:false"`
	Gender       int
	Sexuality    int
	Birthday     *time.Time
	LastActivity time.Time `gorm:"index"`
	Latitude     float64
	Longitude    float64
	Country      string `gorm:"size:64"`
	Region       string `gorm:"size:64"`
	City         string `gorm:"size:64"`
	Active       bool   `gorm:"not null;default:true"`
}

func (m MatchParameters) Key() Key { return UserKey(m.UserID).Child("MatchParameters", 1) }

// SearchSettings describes the partners a user wants to match with.
//
// Entity group: User. One row per user.
type SearchSettings struct {
	UserID                  uint64  `gorm:"primaryKey;autoIncrement:false"`
	Radius                  float64 // miles
	MinAge                  int
	MaxAge                  int
	AcceptMaleSexualities   datatypes.JSONSlice[int]
	AcceptFemaleSexualities datatypes.JSONSlice[int]
	AcceptOtherSexualities  datatypes.JSONSlice[int]
}

func (s SearchSettings) Key() Key { return UserKey(s.UserID).Child("SearchSettings", 1) }

// Blob is embedded by every record that stores raw bytes. Digest is the
// hex blake2b-256 of Data, checked on every read.
type Blob struct {
	Data   []byte `gorm:"not null"`
	Digest string `gorm:"size:64;not null"`
}

// IntroFile is a user's audio intro.
type IntroFile struct {
	UserID uint64 `gorm:"primaryKey;autoIncrement:false"`
	Blob
}

func (f IntroFile) Key() Key { return UserKey(f.UserID).Child("IntroFile", 1) }

// ImageFile is a user's chat image.
type ImageFile struct {
	UserID uint64 `gorm:"primaryKey;autoIncrement:false"`
	Blob
}

func (f ImageFile) Key() Key { return UserKey(f.UserID).Child("ImageFile", 1) }

// Garden has no payload yet; it anchors the roses and waterings.
type Garden struct {
	UserID    uint64 `gorm:"primaryKey;autoIncrement:false"`
	CreatedAt time.Time
}

func (g Garden) Key() Key { return UserKey(g.UserID).Child("Garden", 1) }

// Rose is one of the three roses in a garden. Bloomed lies in the future
// while the rose is still growing.
type Rose struct {
	UserID  uint64 `gorm:"primaryKey;autoIncrement:false"`
	RoseID  int    `gorm:"primaryKey;autoIncrement:false"`
	Planted time.Time
	Bloomed time.Time
}

func (r Rose) Key() Key {
	return UserKey(r.UserID).Child("Garden", 1).Child("Rose", int64(r.RoseID))
}

// IsBloomed reports whether the rose can be sent at now.
func (r Rose) IsBloomed(now time.Time) bool { return !r.Bloomed.After(now) }

// WateringKind is what triggered a watering.
type WateringKind int

const (
	WateringPayment WateringKind = iota
	WateringInvite
	WateringLottery
)

func (k WateringKind) Valid() bool { return k >= WateringPayment && k <= WateringLottery }

func (k WateringKind) String() string {
	switch k {
	case WateringPayment:
		return "payment"
	case WateringInvite:
		return "invite"
	case WateringLottery:
		return "lottery"
	}
	return "unknown"
}

// ParseWateringKind is the inverse of WateringKind.String.
func ParseWateringKind(s string) (WateringKind, bool) {
	for k := WateringPayment; k <= WateringLottery; k++ {
		if k.String() == s {
			return k, true
		}
	}
	return 0, false
}

// Watering records one watering of a garden. Metadata carries the
// kind-specific extras (receipt ids, invitee, lottery draw, ...).
type Watering struct {
	ID          string    `gorm:"primaryKey;size:36"`
	UserID      uint64    `gorm:"index:idx_watering_user_time,priority:1;not null"`
	Timestamp   time.Time `gorm:"index:idx_watering_user_time,priority:2"`
	Kind        WateringKind
	BloomedRose int
	Metadata    datatypes.JSONMap
}

// Relationship is the agent's record of everything that happened between
// them and the patient. The pair (A,B) and (B,A) are two independent rows
// that every pair-wide write keeps consistent.
//
// Full is the variant tag: base rows only track profile views; full rows
// also carry the messaging/rose summary fields.
type Relationship struct {
	AgentID         uint64 `gorm:"primaryKey;autoIncrement:false"`
	PatientID       uint64 `gorm:"primaryKey;autoIncrement:false"`
	Full            bool   `gorm:"column:is_full;not null;default:false"`
	LastProfileView *time.Time
	LastViewedBy    *time.Time

	Blocked             bool `gorm:"not null;default:false"`
	BlockedAt           *time.Time
	Saved               bool `gorm:"not null;default:false"`
	SavedAt             *time.Time
	CanSeeIcon          bool `gorm:"not null;default:false"`
	NewRoses            int  `gorm:"not null;default:0"`
	NewMessages         int  `gorm:"not null;default:0"`
	LastSentRose        *time.Time
	LastReceivedRose    *time.Time
	LastSentMessage     *time.Time
	LastReceivedMessage *time.Time
	LastIncoming        *time.Time
}

func (r Relationship) Key() Key {
	return UserKey(r.AgentID).Child("Relationship", int64(r.PatientID))
}

// LedgerEntry is the shared key of every record filed under a relationship
// and identified by its send time in milliseconds since epoch.
type LedgerEntry struct {
	AgentID   uint64 `gorm:"primaryKey;autoIncrement:false"`
	PatientID uint64 `gorm:"primaryKey;autoIncrement:false"`
	SentAtMs  int64  `gorm:"primaryKey;autoIncrement:false"`
}

func (e LedgerEntry) key(kind string) Key {
	return UserKey(e.AgentID).Child("Relationship", int64(e.PatientID)).Child(kind, e.SentAtMs)
}

// RoseRecord is the payload copied from the garden when a rose is sent.
type RoseRecord struct {
	LedgerEntry
	RoseID  int
	Planted time.Time
	Bloomed time.Time
	New     bool `gorm:"not null;default:false"`
}

// SentRose is a rose the agent sent to the patient.
type SentRose struct{ RoseRecord }

func (r SentRose) Key() Key { return r.key("SentRose") }

// ReceivedRose is a rose the agent received from the patient.
type ReceivedRose struct{ RoseRecord }

func (r ReceivedRose) Key() Key { return r.key("ReceivedRose") }

// MessageRecord is the metadata of a voice message. Retrieved grows by one
// entry on every retrieval.
type MessageRecord struct {
	LedgerEntry
	New       bool `gorm:"not null;default:false"`
	Retrieved datatypes.JSONSlice[time.Time]
}

// SentMessage is filed under the sender's relationship.
type SentMessage struct{ MessageRecord }

func (m SentMessage) Key() Key { return m.key("SentMessage") }

// ReceivedMessage is filed under the recipient's relationship.
type ReceivedMessage struct{ MessageRecord }

func (m ReceivedMessage) Key() Key { return m.key("ReceivedMessage") }

// MessageFile holds the audio, filed under the sender's relationship.
type MessageFile struct {
	LedgerEntry
	Blob
}

func (f MessageFile) Key() Key { return f.key("MessageFile") }

// Models lists every table for AutoMigrate.
func Models() []any {
	return []any{
		&User{}, &MatchParameters{}, &SearchSettings{},
		&IntroFile{}, &ImageFile{},
		&Garden{}, &Rose{}, &Watering{},
		&Relationship{},
		&SentRose{}, &ReceivedRose{},
		&SentMessage{}, &ReceivedMessage{}, &MessageFile{},
	}
}

// Millis converts t to the millisecond ids used by ledger entries.
func Millis(t time.Time) int64 { return t.UnixMilli() }

// FromMillis is the inverse of Millis, in UTC.
func FromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }
