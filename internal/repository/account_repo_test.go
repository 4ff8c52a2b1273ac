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

func TestAccountCreateAndLoad(t *testing.T) {
	ctx := context.Background()
	store := repository.NewStore(setupTestDB(t), 0)

	uid := createUser(t, store, "ada")

	u, err := store.Accounts.User(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, "ada", u.Name)

	m, err := store.Accounts.Match(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, uid, m.UserID)
	assert.True(t, m.Active)

	s, err := store.Accounts.Search(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, 10.0, s.Radius)
}

func TestAccountMissing(t *testing.T) {
	ctx := context.Background()
	store := repository.NewStore(setupTestDB(t), 0)

	_, err := store.Accounts.User(ctx, 404)
	assert.ErrorIs(t, err, svcErr.ErrNotFound)
	assert.Contains(t, err.Error(), "User(404)")

	_, err = store.Accounts.Match(ctx, 404)
	assert.ErrorIs(t, err, svcErr.ErrNotFound)
	assert.Contains(t, err.Error(), "User(404)/MatchParameters(1)")

	ok, err := store.Accounts.Exists(ctx, 404)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAccountNames(t *testing.T) {
	ctx := context.Background()
	store := repository.NewStore(setupTestDB(t), 0)

	a := createUser(t, store, "ada")
	b := createUser(t, store, "bob")

	names, err := store.Accounts.Names(ctx, []uint64{a, b, 999})
	require.NoError(t, err)
	assert.Equal(t, map[uint64]string{a: "ada", b: "bob"}, names)

	empty, err := store.Accounts.Names(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestAccountSave(t *testing.T) {
	ctx := context.Background()
	store := repository.NewStore(setupTestDB(t), 0)
	uid := createUser(t, store, "ada")

	s, err := store.Accounts.Search(ctx, uid)
	require.NoError(t, err)
	s.AcceptFemaleSexualities = []int{db.SexualityGay, db.SexualityBi}
	require.NoError(t, store.Accounts.Save(ctx, s))

	got, err := store.Accounts.Search(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, []int{db.SexualityGay, db.SexualityBi}, []int(got.AcceptFemaleSexualities))
}
