package db

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKeyPaths(t *testing.T) {
	msg := SentMessage{MessageRecord{LedgerEntry: LedgerEntry{AgentID: 7, PatientID: 9, SentAtMs: 1700000000000}}}
	assert.Equal(t, "User(7)/Relationship(9)/SentMessage(1700000000000)", msg.Key().String())
	assert.Equal(t, "User(7)", msg.Key().Root().String())

	rose := Rose{UserID: 3, RoseID: 2}
	assert.Equal(t, "User(3)/Garden(1)/Rose(2)", rose.Key().String())
}

func TestKeyGroups(t *testing.T) {
	ab := Relationship{AgentID: 1, PatientID: 2}.Key()
	ba := Relationship{AgentID: 2, PatientID: 1}.Key()

	assert.True(t, ab.SameGroup(UserKey(1)))
	assert.False(t, ab.SameGroup(ba), "pair rows live in different entity groups")
}

func TestRoseIsBloomed(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	assert.True(t, Rose{Bloomed: now}.IsBloomed(now))
	assert.True(t, Rose{Bloomed: now.Add(-time.Minute)}.IsBloomed(now))
	assert.False(t, Rose{Bloomed: now.Add(time.Minute)}.IsBloomed(now))
}

func TestMillisRoundTrip(t *testing.T) {
	ts := time.Date(2015, 1, 1, 0, 0, 0, 123000000, time.UTC)
	assert.True(t, ts.Equal(FromMillis(Millis(ts))))
}
