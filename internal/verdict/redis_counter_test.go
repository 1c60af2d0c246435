package verdict

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestRedisCounter_SlidingWindow(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newTestRedis(t)
	c := NewRedisCounter(rdb, WithKeyPrefix("test:"))
	rule := Rule{Name: "user-rate-limit", Window: time.Minute, Max: 2}
	start := time.UnixMilli(1_700_000_000_000)

	u, err := c.Hit(ctx, rule, "1.2.3.4", start)
	require.NoError(t, err)
	assert.True(t, u.Allowed)
	assert.Equal(t, 1, u.Count)
	assert.Equal(t, start.Add(time.Minute), u.ResetAt)

	u, err = c.Hit(ctx, rule, "1.2.3.4", start.Add(time.Second))
	require.NoError(t, err)
	assert.True(t, u.Allowed)
	assert.Equal(t, 2, u.Count)

	u, err = c.Hit(ctx, rule, "1.2.3.4", start.Add(2*time.Second))
	require.NoError(t, err)
	assert.False(t, u.Allowed)
	assert.Equal(t, 2, u.Count)
	assert.Equal(t, start.Add(time.Minute), u.ResetAt)

	assert.True(t, mr.Exists("test:user-rate-limit:1.2.3.4"))

	// first hit expires, room for one more
	u, err = c.Hit(ctx, rule, "1.2.3.4", start.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, u.Allowed)
	assert.Equal(t, 2, u.Count)
	assert.Equal(t, start.Add(time.Second+time.Minute), u.ResetAt)
}

func TestRedisCounter_Unavailable(t *testing.T) {
	mr, rdb := newTestRedis(t)
	mr.Close()

	_, err := NewRedisCounter(rdb).Hit(context.Background(), Rule{Name: "r", Window: time.Minute, Max: 1}, "k", time.Now())
	assert.Error(t, err)
}
