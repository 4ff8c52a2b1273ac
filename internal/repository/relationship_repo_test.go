package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeffschecter/Signal/internal/db"
	svcErr "github.com/jeffschecter/Signal/internal/errors"
	"github.com/jeffschecter/Signal/internal/repository"
)

func at(minutes int) *time.Time {
	t := t0.Add(time.Duration(minutes) * time.Minute)
	return &t
}

func TestRelationshipDefaultIsNotPersisted(t *testing.T) {
	ctx := context.Background()
	database := setupTestDB(t)
	store := repository.NewStore(database, 0)

	rel, err := store.Relationships.GetOrDefault(ctx, 1, 2, true)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), rel.AgentID)
	assert.Equal(t, uint64(2), rel.PatientID)
	assert.True(t, rel.Full)
	assert.Zero(t, rel.NewMessages)

	var count int64
	require.NoError(t, database.Model(&db.Relationship{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestRelationshipRejectsSelf(t *testing.T) {
	ctx := context.Background()
	store := repository.NewStore(setupTestDB(t), 0)

	_, err := store.Relationships.GetOrDefault(ctx, 7, 7, false)
	assert.ErrorIs(t, err, svcErr.ErrInvalidArgument)

	_, err = store.Relationships.Lock(ctx, 7, 7, true)
	assert.ErrorIs(t, err, svcErr.ErrInvalidArgument)

	err = store.Relationships.Save(ctx, &db.Relationship{AgentID: 7, PatientID: 7})
	assert.ErrorIs(t, err, svcErr.ErrInvalidArgument)
}

func TestRelationshipLockPair(t *testing.T) {
	ctx := context.Background()
	store := repository.NewStore(setupTestDB(t), 0)

	err := store.Transaction(ctx, func(tx *repository.Repos) error {
		ab, ba, err := tx.Relationships.LockPair(ctx, 9, 4, true)
		if err != nil {
			return err
		}
		assert.Equal(t, uint64(9), ab.AgentID)
		assert.Equal(t, uint64(4), ba.AgentID)
		ab.NewRoses = 2
		if err := tx.Relationships.Save(ctx, ab); err != nil {
			return err
		}
		return tx.Relationships.Save(ctx, ba)
	})
	require.NoError(t, err)

	ab, err := store.Relationships.GetOrDefault(ctx, 9, 4, false)
	require.NoError(t, err)
	assert.True(t, ab.Full)
	assert.Equal(t, 2, ab.NewRoses)

	ba, err := store.Relationships.GetOrDefault(ctx, 4, 9, false)
	require.NoError(t, err)
	assert.True(t, ba.Full)
	assert.Zero(t, ba.NewRoses)
}

func TestRelationshipLockKeepsExistingRow(t *testing.T) {
	ctx := context.Background()
	store := repository.NewStore(setupTestDB(t), 0)

	require.NoError(t, store.Relationships.Save(ctx, &db.Relationship{
		AgentID: 1, PatientID: 2, Full: true, NewMessages: 3,
	}))

	err := store.Transaction(ctx, func(tx *repository.Repos) error {
		rel, err := tx.Relationships.Lock(ctx, 1, 2, false)
		require.NoError(t, err)
		assert.Equal(t, 3, rel.NewMessages)
		assert.True(t, rel.Full)
		return nil
	})
	require.NoError(t, err)
}

func TestRelationshipList(t *testing.T) {
	ctx := context.Background()
	store := repository.NewStore(setupTestDB(t), 0)

	rows := []db.Relationship{
		{AgentID: 1, PatientID: 2, Full: true, LastIncoming: at(10), NewMessages: 1},
		{AgentID: 1, PatientID: 3, Full: true, LastIncoming: at(30), Saved: true, SavedAt: at(5)},
		{AgentID: 1, PatientID: 4, Full: true, LastIncoming: at(20), Blocked: true, BlockedAt: at(21)},
		{AgentID: 1, PatientID: 5, Full: true, LastSentMessage: at(40)},
		{AgentID: 1, PatientID: 6, LastProfileView: at(50)},
		{AgentID: 2, PatientID: 1, Full: true, LastIncoming: at(60)},
	}
	for i := range rows {
		require.NoError(t, store.Relationships.Save(ctx, &rows[i]))
	}

	patients := func(rels []db.Relationship) []uint64 {
		out := make([]uint64, 0, len(rels))
		for _, r := range rels {
			out = append(out, r.PatientID)
		}
		return out
	}

	got, err := store.Relationships.List(ctx, repository.HistoryFilter{AgentID: 1})
	require.NoError(t, err)
	assert.Equal(t, []uint64{3, 2}, patients(got), "default sort is last_incoming desc, nulls and blocked excluded")

	got, err = store.Relationships.List(ctx, repository.HistoryFilter{AgentID: 1, Ascending: true})
	require.NoError(t, err)
	assert.Equal(t, []uint64{2, 3}, patients(got))

	got, err = store.Relationships.List(ctx, repository.HistoryFilter{AgentID: 1, Blocked: true, SortColumn: repository.ColBlockedAt})
	require.NoError(t, err)
	assert.Equal(t, []uint64{4}, patients(got))

	got, err = store.Relationships.List(ctx, repository.HistoryFilter{AgentID: 1, New: true})
	require.NoError(t, err)
	assert.Equal(t, []uint64{2}, patients(got))

	got, err = store.Relationships.List(ctx, repository.HistoryFilter{AgentID: 1, SavedOnly: true, SortColumn: repository.ColSavedAt})
	require.NoError(t, err)
	assert.Equal(t, []uint64{3}, patients(got))

	got, err = store.Relationships.List(ctx, repository.HistoryFilter{AgentID: 1, CacheTime: at(25)})
	require.NoError(t, err)
	assert.Equal(t, []uint64{3}, patients(got))

	got, err = store.Relationships.List(ctx, repository.HistoryFilter{AgentID: 1, SortColumn: repository.ColLastProfileView})
	require.NoError(t, err)
	assert.Empty(t, got, "base rows are skipped unless asked for")

	got, err = store.Relationships.List(ctx, repository.HistoryFilter{AgentID: 1, IncludeBase: true, SortColumn: repository.ColLastProfileView})
	require.NoError(t, err)
	assert.Equal(t, []uint64{6}, patients(got))

	got, err = store.Relationships.List(ctx, repository.HistoryFilter{AgentID: 1, Offset: 1, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, []uint64{2}, patients(got))

	_, err = store.Relationships.List(ctx, repository.HistoryFilter{AgentID: 1, SortColumn: "name; DROP TABLE users"})
	assert.ErrorIs(t, err, svcErr.ErrInvalidArgument)
}

func TestRelationshipUnreadTotals(t *testing.T) {
	ctx := context.Background()
	store := repository.NewStore(setupTestDB(t), 0)

	for _, r := range []db.Relationship{
		{AgentID: 1, PatientID: 2, Full: true, NewMessages: 2, NewRoses: 1},
		{AgentID: 1, PatientID: 3, Full: true, NewMessages: 1},
		{AgentID: 1, PatientID: 4, Full: true, NewMessages: 5, Blocked: true},
	} {
		r := r
		require.NoError(t, store.Relationships.Save(ctx, &r))
	}

	roses, messages, err := store.Relationships.UnreadTotals(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), roses)
	assert.Equal(t, int64(3), messages)

	roses, messages, err = store.Relationships.UnreadTotals(ctx, 99)
	require.NoError(t, err)
	assert.Zero(t, roses)
	assert.Zero(t, messages)
}
