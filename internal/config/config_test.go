package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNew_Defaults(t *testing.T) {
	t.Setenv("DB_DRIVER", "")
	t.Setenv("DB_DSN", "")
	t.Setenv("REDIS_TTL", "")
	t.Setenv("SIGNAL_RESPECT_BLOCKS", "")

	cfg := New()

	assert.Equal(t, "mysql", cfg.DB.Driver)
	assert.Contains(t, cfg.DB.DSN, "@tcp(localhost:3306)/signal")
	assert.Equal(t, time.Hour, cfg.Redis.TTL)
	assert.Equal(t, 5, cfg.DB.MaxRetries)
	assert.False(t, cfg.Signal.RespectBlocks)
}

func TestNew_PostgresDSN(t *testing.T) {
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DB_DSN", "")
	t.Setenv("DB_HOST", "db")

	cfg := New()

	assert.Equal(t, "postgres", cfg.DB.Driver)
	assert.Contains(t, cfg.DB.DSN, "host=db port=5432")
}

func TestNew_Overrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "SQLite")
	t.Setenv("DB_DSN", "file::memory:")
	t.Setenv("REDIS_TTL", "90s")
	t.Setenv("LOG_SOURCE", "yes")
	t.Setenv("DB_MAX_RETRIES", "not-a-number")
	t.Setenv("SIGNAL_RESPECT_BLOCKS", "on")

	cfg := New()

	assert.Equal(t, "sqlite", cfg.DB.Driver)
	assert.Equal(t, "file::memory:", cfg.DB.DSN)
	assert.Equal(t, 90*time.Second, cfg.Redis.TTL)
	assert.True(t, cfg.Log.Source)
	assert.Equal(t, 5, cfg.DB.MaxRetries)
	assert.True(t, cfg.Signal.RespectBlocks)
}
