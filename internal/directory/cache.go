package directory

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/expiry-notifier/internal/domain"
	"github.com/spec-kit/expiry-notifier/internal/persistence"
)

const (
	groupCacheTTL   = 10 * time.Minute
	managerCacheTTL = 30 * time.Minute

	groupKeyPrefix   = "directory:group:"
	managerKeyPrefix = "directory:manager:"
)

// CachedClient wraps a directory client with a Redis cache for the lookups
// that repeat within and across job runs. Cache failures degrade to direct
// directory calls.
type CachedClient struct {
	inner  Client
	redis  *persistence.Redis
	logger *zap.Logger
}

func NewCachedClient(inner Client, r *persistence.Redis, logger *zap.Logger) *CachedClient {
	return &CachedClient{inner: inner, redis: r, logger: logger}
}

// ListUsers is not cached; the full tenant listing is fetched fresh so a job
// run never evaluates stale password-change timestamps.
func (c *CachedClient) ListUsers(ctx context.Context) ([]domain.UserRecord, error) {
	return c.inner.ListUsers(ctx)
}

// ListGroupMembers serves group membership from cache when present.
func (c *CachedClient) ListGroupMembers(ctx context.Context, groupName string) ([]domain.UserRecord, error) {
	key := groupKeyPrefix + groupName
	if cached, ok := c.getJSON(ctx, key); ok {
		var users []domain.UserRecord
		if err := json.Unmarshal(cached, &users); err == nil {
			return users, nil
		}
		c.logger.Warn("discarding undecodable cache entry", zap.String("key", key))
	}

	users, err := c.inner.ListGroupMembers(ctx, groupName)
	if err != nil {
		return nil, err
	}
	c.setJSON(ctx, key, users, groupCacheTTL)
	return users, nil
}

// GetManager caches manager addresses, including the "no manager" result.
func (c *CachedClient) GetManager(ctx context.Context, userID string) (string, error) {
	key := managerKeyPrefix + userID
	if cached, err := c.redis.Client.Get(ctx, key).Result(); err == nil {
		return cached, nil
	} else if !errors.Is(err, redis.Nil) {
		c.logger.Warn("manager cache read failed", zap.Error(err))
	}

	addr, err := c.inner.GetManager(ctx, userID)
	if err != nil {
		return "", err
	}
	if err := c.redis.Client.Set(ctx, key, addr, managerCacheTTL).Err(); err != nil {
		c.logger.Warn("manager cache write failed", zap.Error(err))
	}
	return addr, nil
}

func (c *CachedClient) getJSON(ctx context.Context, key string) ([]byte, bool) {
	data, err := c.redis.Client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("cache read failed", zap.Error(err))
		}
		return nil, false
	}
	return data, true
}

func (c *CachedClient) setJSON(ctx context.Context, key string, value any, ttl time.Duration) {
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := c.redis.Client.Set(ctx, key, data, ttl).Err(); err != nil {
		c.logger.Warn("cache write failed", zap.Error(err))
	}
}
