package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/jeffschecter/Signal/internal/db"
	svcErr "github.com/jeffschecter/Signal/internal/errors"
	"github.com/jeffschecter/Signal/internal/repository"
)

func plantGarden(t *testing.T, store *repository.Store, uid uint64) {
	t.Helper()
	roses := make([]db.Rose, 0, db.RoseCount)
	for id := 1; id <= db.RoseCount; id++ {
		roses = append(roses, db.Rose{UserID: uid, RoseID: id, Planted: t0, Bloomed: t0.Add(time.Duration(id) * time.Hour)})
	}
	require.NoError(t, store.Garden.Create(context.Background(), &db.Garden{UserID: uid}, roses))
}

func TestGardenRoses(t *testing.T) {
	ctx := context.Background()
	store := repository.NewStore(setupTestDB(t), 0)
	plantGarden(t, store, 1)

	roses, err := store.Garden.Roses(ctx, 1)
	require.NoError(t, err)
	require.Len(t, roses, db.RoseCount)
	for i, r := range roses {
		assert.Equal(t, i+1, r.RoseID)
	}

	_, err = store.Garden.Roses(ctx, 2)
	assert.ErrorIs(t, err, svcErr.ErrNotFound)

	_, err = store.Garden.Rose(ctx, 1, 4)
	assert.ErrorIs(t, err, svcErr.ErrNotFound)
	assert.Contains(t, err.Error(), "User(1)/Garden(1)/Rose(4)")
}

func TestGardenCreateNeedsThreeRoses(t *testing.T) {
	store := repository.NewStore(setupTestDB(t), 0)
	err := store.Garden.Create(context.Background(), &db.Garden{UserID: 1}, []db.Rose{{UserID: 1, RoseID: 1}})
	assert.ErrorIs(t, err, svcErr.ErrInvalidArgument)
}

func TestGardenSaveRose(t *testing.T) {
	ctx := context.Background()
	store := repository.NewStore(setupTestDB(t), 0)
	plantGarden(t, store, 1)

	rose, err := store.Garden.ForUpdate().Rose(ctx, 1, 2)
	require.NoError(t, err)
	rose.Bloomed = t0
	require.NoError(t, store.Garden.SaveRose(ctx, rose))

	got, err := store.Garden.Rose(ctx, 1, 2)
	require.NoError(t, err)
	assert.True(t, got.IsBloomed(t0))
}

func TestGardenWaterings(t *testing.T) {
	ctx := context.Background()
	database := setupTestDB(t)
	store := repository.NewStore(database, 0)

	watered, err := store.Garden.WateredSince(ctx, 1, t0.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.False(t, watered)

	require.NoError(t, store.Garden.CreateWatering(ctx, &db.Watering{
		ID: "w-1", UserID: 1, Timestamp: t0, Kind: db.WateringInvite, BloomedRose: 3,
		Metadata: datatypes.JSONMap{"invitee": "bob"},
	}))

	watered, err = store.Garden.WateredSince(ctx, 1, t0.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.True(t, watered)

	watered, err = store.Garden.WateredSince(ctx, 1, t0.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, watered)

	var log []db.Watering
	require.NoError(t, database.Where("user_id = ?", 1).Find(&log).Error)
	require.Len(t, log, 1)
	assert.Equal(t, db.WateringInvite, log[0].Kind)
	assert.Equal(t, "bob", log[0].Metadata["invitee"])
}
