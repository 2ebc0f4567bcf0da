// internal/app/system/postal/redis.go
package postal

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "postal:"

// RedisCache keeps lookups in Redis as JSON with a TTL.
type RedisCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewRedisCache returns a Cache backed by client. A non-positive ttl means
// entries never expire.
func NewRedisCache(client redis.Cmdable, ttl time.Duration) *RedisCache {
	if ttl < 0 {
		ttl = 0
	}
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, code string) (*Result, bool, error) {
	raw, err := c.client.Get(ctx, redisKeyPrefix+code).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var res Result
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, false, err
	}
	return &res, true, nil
}

func (c *RedisCache) Set(ctx context.Context, code string, res *Result) error {
	raw, err := json.Marshal(res)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, redisKeyPrefix+code, raw, c.ttl).Err()
}
