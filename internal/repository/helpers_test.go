package repository_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/jeffschecter/Signal/internal/db"
	"github.com/jeffschecter/Signal/internal/repository"
)

// setupTestDB opens a migrated in-memory database private to the test.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	database, err := db.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), logger.Silent)
	require.NoError(t, err)

	sqlDB, err := database.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return database
}

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// createUser inserts a bare account and returns its id.
func createUser(t *testing.T, store *repository.Store, name string) uint64 {
	t.Helper()
	u := &db.User{Name: name, Joined: t0}
	m := &db.MatchParameters{LastActivity: t0, Active: true}
	s := &db.SearchSettings{Radius: 10, MinAge: 18, MaxAge: 99}
	require.NoError(t, store.Accounts.Create(context.Background(), u, m, s))
	return u.ID
}
