package repository_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeffschecter/Signal/internal/db"
	svcErr "github.com/jeffschecter/Signal/internal/errors"
	"github.com/jeffschecter/Signal/internal/repository"
)

func TestBlobIntroRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := repository.NewStore(setupTestDB(t), 0)

	_, err := store.Blobs.Intro(ctx, 1)
	assert.ErrorIs(t, err, svcErr.ErrNotFound)
	assert.Contains(t, err.Error(), "User(1)/IntroFile(1)")

	require.NoError(t, store.Blobs.SetIntro(ctx, 1, []byte("hello")))
	require.NoError(t, store.Blobs.SetIntro(ctx, 1, []byte("hello again")))

	got, err := store.Blobs.Intro(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello again"), got)
}

func TestBlobImageRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := repository.NewStore(setupTestDB(t), 0)

	require.NoError(t, store.Blobs.SetImage(ctx, 3, []byte{0x89, 'P', 'N', 'G'}))
	got, err := store.Blobs.Image(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, got)
}

func TestBlobCorruptionDetected(t *testing.T) {
	ctx := context.Background()
	database := setupTestDB(t)
	store := repository.NewStore(database, 0)

	require.NoError(t, store.Blobs.SetImage(ctx, 5, []byte("picture")))
	require.NoError(t, database.Model(&db.ImageFile{}).
		Where("user_id = ?", 5).
		Update("data", []byte("pictura")).Error)

	_, err := store.Blobs.Image(ctx, 5)
	assert.ErrorIs(t, err, svcErr.ErrDataLoss)
}
