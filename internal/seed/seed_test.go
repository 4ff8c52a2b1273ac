package seed_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm/logger"

	"github.com/jeffschecter/Signal/internal/app"
	"github.com/jeffschecter/Signal/internal/db"
	"github.com/jeffschecter/Signal/internal/seed"
	"github.com/jeffschecter/Signal/internal/service/signal"
)

var now = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func TestProfilesGrid(t *testing.T) {
	all := seed.Profiles(0, now)
	require.Len(t, all, 3*4*3*3*5)

	first := all[0]
	assert.Equal(t, "User_1", first.Name)
	assert.InDelta(t, seed.DefaultLatitude-5, first.Latitude, 1e-9)
	assert.InDelta(t, seed.DefaultLongitude-1, first.Longitude, 1e-9)
	assert.Nil(t, first.Update.User)
	assert.Equal(t, db.GenderMale, *first.Update.Match.Gender)
	assert.Equal(t, []int{0, 2}, *first.Update.Search.AcceptMaleSexualities)
	assert.Equal(t, 17, *first.Update.Search.MinAge) // age 20
	assert.Equal(t, 26, *first.Update.Search.MaxAge)

	last := all[len(all)-1]
	require.NotNil(t, last.Update.User)
	assert.Equal(t, "genderqueer", *last.Update.User.GenderString)
	assert.Equal(t, "queer", *last.Update.User.SexualityString)
	assert.Equal(t, []int{0, 1, 2, 3}, *last.Update.Search.AcceptOtherSexualities)

	assert.Len(t, seed.Profiles(7, now), 7)
}

func TestRun(t *testing.T) {
	ctx := context.Background()
	database, err := db.Open(sqlite.Open("file:seed_run?mode=memory&cache=shared"), logger.Silent)
	require.NoError(t, err)
	sqlDB, err := database.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	appCtx := app.New(database, nil, slog.New(slog.NewTextHandler(io.Discard, nil)), 1)
	svc := signal.NewSignalService(appCtx)

	// a second run starts over from uid 1
	for range 2 {
		n, err := seed.Run(ctx, database, svc, 12, now)
		require.NoError(t, err)
		assert.Equal(t, 12, n)
	}

	var count int64
	require.NoError(t, database.Model(&db.User{}).Count(&count).Error)
	assert.EqualValues(t, 12, count)

	acct, err := svc.LoadAccount(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "User_1", acct.User.Name)
	assert.Equal(t, 5.0, acct.Search.Radius)
	assert.Equal(t, []int{0, 2}, []int(acct.Search.AcceptMaleSexualities))

	roses, err := svc.GetGarden(ctx, 12)
	require.NoError(t, err)
	assert.Len(t, roses, db.RoseCount)
}
