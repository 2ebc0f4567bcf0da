package postal

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testRedis connects to STRATAMEMBERS_TEST_REDIS_URL (default
// redis://localhost:6379/15) and skips when nothing answers.
func testRedis(t *testing.T) *redis.Client {
	t.Helper()
	url := os.Getenv("STRATAMEMBERS_TEST_REDIS_URL")
	if url == "" {
		url = "redis://localhost:6379/15"
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		t.Skipf("redis not available at %s: %v", url, err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisCache(t *testing.T) {
	client := testRedis(t)
	ctx := context.Background()
	code := "9999990"
	t.Cleanup(func() { client.Del(context.Background(), redisKeyPrefix+code) })

	cache := NewRedisCache(client, time.Minute)

	_, ok, err := cache.Get(ctx, code)
	require.NoError(t, err)
	assert.False(t, ok)

	want := &Result{PostalCode: code, Prefecture: "北海道", Municipality: "札幌市中央区"}
	require.NoError(t, cache.Set(ctx, code, want))

	got, ok, err := cache.Get(ctx, code)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, want, got)

	ttl, err := client.TTL(ctx, redisKeyPrefix+code).Result()
	require.NoError(t, err)
	assert.True(t, ttl > 0 && ttl <= time.Minute)
}
