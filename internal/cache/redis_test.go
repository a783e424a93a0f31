package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	c, err := NewRedisCache(Config{
		Host: mr.Host(),
		Port: mr.Port(),
		TTL:  time.Hour,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	return c, mr
}

func TestRedisCache_TeamID(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	_, ok := c.GetTeamID(ctx, 66)
	assert.False(t, ok, "empty cache should miss")

	c.SetTeamID(ctx, 66, 7)

	id, ok := c.GetTeamID(ctx, 66)
	require.True(t, ok)
	assert.Equal(t, 7, id)

	assert.Equal(t, time.Hour, mr.TTL("sportify:team:remote:66"))

	mr.FastForward(2 * time.Hour)
	_, ok = c.GetTeamID(ctx, 66)
	assert.False(t, ok, "entry should expire after the ttl")
}

func TestRedisCache_InvalidateTeams(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	c.SetTeamID(ctx, 1, 10)
	c.SetTeamID(ctx, 2, 20)
	require.NoError(t, mr.Set("unrelated", "x"))

	deleted, err := c.InvalidateTeams(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	_, ok := c.GetTeamID(ctx, 1)
	assert.False(t, ok)
	assert.True(t, mr.Exists("unrelated"))
}

func TestRedisCache_ServerDown(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	mr.Close()

	_, ok := c.GetTeamID(ctx, 1)
	assert.False(t, ok, "errors are reported as misses")
	c.SetTeamID(ctx, 1, 10)
	assert.Error(t, c.Health(ctx))
}

func TestNewRedisCache_Unreachable(t *testing.T) {
	_, err := NewRedisCache(Config{Host: "127.0.0.1", Port: "1"})
	assert.Error(t, err)
}

func TestRedisCache_DeleteTeamID(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	c.SetTeamID(ctx, 1, 10)
	c.SetTeamID(ctx, 2, 20)

	c.DeleteTeamID(ctx, 1)
	c.DeleteTeamID(ctx, 3) // absent key is fine

	_, ok := c.GetTeamID(ctx, 1)
	assert.False(t, ok)
	assert.False(t, mr.Exists("sportify:team:remote:1"))

	id, ok := c.GetTeamID(ctx, 2)
	require.True(t, ok)
	assert.Equal(t, 20, id)
}
