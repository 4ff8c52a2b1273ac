package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jeffschecter/Signal/internal/config"
)

var (
	// ErrMiss is returned when a key is not cached.
	ErrMiss = errors.New("cache miss")
	// ErrStale is returned by SetUnread when the summary was invalidated
	// while it was being computed.
	ErrStale = errors.New("cache entry invalidated")
)

// versionTTL keeps invalidation counters far longer than the summaries
// they guard.
const versionTTL = 24

type RedisCache struct {
	Client *redis.Client
	TTL    time.Duration
}

// NewRedisCache initializes Redis client from config.
// Only Addr is mandatory, Password/DB are optional.
func NewRedisCache(cfg *config.Config) *RedisCache {
	opts := &redis.Options{
		Addr: cfg.Redis.Addr,
	}
	if cfg.Redis.Password != "" {
		opts.Password = cfg.Redis.Password
	}
	if cfg.Redis.DB != 0 {
		opts.DB = cfg.Redis.DB
	}
	ttl := cfg.Redis.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisCache{Client: redis.NewClient(opts), TTL: ttl}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}

// Unread is a user's inbox badge: unread roses and messages summed over
// every relationship that is not blocked.
type Unread struct {
	Roses    int64
	Messages int64
}

// KeyForUnread generates the Redis key of a user's unread summary.
func (c *RedisCache) KeyForUnread(userID uint64) string {
	return fmt.Sprintf("unread:%d", userID)
}

// keyForUnreadVersion counts invalidations of a user's summary.
func (c *RedisCache) keyForUnreadVersion(userID uint64) string {
	return fmt.Sprintf("unread:%d:v", userID)
}

// UnreadVersion returns the user's invalidation counter. Read it before
// computing a summary and hand it to SetUnread.
func (c *RedisCache) UnreadVersion(ctx context.Context, userID uint64) (int64, error) {
	v, err := c.Client.Get(ctx, c.keyForUnreadVersion(userID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

// SetUnread stores a summary computed after reading version. It returns
// ErrStale and writes nothing when the summary was invalidated since.
func (c *RedisCache) SetUnread(ctx context.Context, userID uint64, u Unread, version int64) error {
	key, vkey := c.KeyForUnread(userID), c.keyForUnreadVersion(userID)
	err := c.Client.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, vkey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if cur != version {
			return ErrStale
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.HSet(ctx, key, "roses", u.Roses, "messages", u.Messages)
			p.Expire(ctx, key, c.TTL)
			return nil
		})
		return err
	}, vkey)
	if errors.Is(err, redis.TxFailedErr) {
		return ErrStale
	}
	return err
}

// GetUnread returns the cached summary or ErrMiss. The entry keeps the
// expiry it was written with.
func (c *RedisCache) GetUnread(ctx context.Context, userID uint64) (Unread, error) {
	key := c.KeyForUnread(userID)
	vals, err := c.Client.HMGet(ctx, key, "roses", "messages").Result()
	if err != nil {
		return Unread{}, err
	}

	var u Unread
	for i, dst := range []*int64{&u.Roses, &u.Messages} {
		s, ok := vals[i].(string)
		if !ok {
			return Unread{}, ErrMiss
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return Unread{}, ErrMiss
		}
		*dst = n
	}
	return u, nil
}

// InvalidateUnread drops the cached summaries of the given users and bumps
// their versions, so summaries computed before the call are not written.
func (c *RedisCache) InvalidateUnread(ctx context.Context, userIDs ...uint64) error {
	if len(userIDs) == 0 {
		return nil
	}
	_, err := c.Client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for _, id := range userIDs {
			vkey := c.keyForUnreadVersion(id)
			p.Del(ctx, c.KeyForUnread(id))
			p.Incr(ctx, vkey)
			p.Expire(ctx, vkey, versionTTL*c.TTL)
		}
		return nil
	})
	return err
}
