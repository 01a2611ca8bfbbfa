package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestCache(t *testing.T, ttl time.Duration) (*TaskCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewTaskCache(client, ttl), mr
}

func TestTaskCache_MissReturnsNil(t *testing.T) {
	c, _ := setupTestCache(t, time.Minute)

	data, err := c.Get(context.Background(), UserTasksKey(1, 0))

	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestTaskCache_SetGet(t *testing.T) {
	c, mr := setupTestCache(t, time.Minute)
	ctx := context.Background()

	payload := []map[string]interface{}{{"id": 1, "title": "buy milk"}}
	require.NoError(t, c.Set(ctx, UserTasksKey(7, 0), payload))

	data, err := c.Get(ctx, UserTasksKey(7, 0))
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":1,"title":"buy milk"}]`, string(data))
	assert.Equal(t, time.Minute, mr.TTL(UserTasksKey(7, 0)))
}

func TestTaskCache_Expires(t *testing.T) {
	c, mr := setupTestCache(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, UserTasksKey(7, 0), []int{1}))
	mr.FastForward(2 * time.Minute)

	data, err := c.Get(ctx, UserTasksKey(7, 0))
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestTaskCache_Generation(t *testing.T) {
	c, _ := setupTestCache(t, time.Minute)
	ctx := context.Background()
	key := UserTasksGenerationKey(7)

	gen, err := c.Generation(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(0), gen)

	bumped, err := c.Bump(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(1), bumped)

	gen, err = c.Generation(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(1), gen)
}

func TestNewTaskCache_DefaultTTL(t *testing.T) {
	c, _ := setupTestCache(t, 0)

	assert.Equal(t, DefaultTaskCacheTTL, c.ttl)
}

func TestTaskCache_GetErrorWhenRedisDown(t *testing.T) {
	c, mr := setupTestCache(t, time.Minute)
	mr.Close()

	_, err := c.Get(context.Background(), UserTasksKey(1, 0))

	assert.Error(t, err)
}

func TestUserTasksKey(t *testing.T) {
	assert.Equal(t, "tasks:user:1:v0", UserTasksKey(1, 0))
	assert.Equal(t, "tasks:user:100:v3", UserTasksKey(100, 3))
	assert.Equal(t, "tasks:user:100:gen", UserTasksGenerationKey(100))
}
