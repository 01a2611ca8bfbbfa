package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const DefaultTaskCacheTTL = 5 * time.Minute

type TaskCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewTaskCache(client *redis.Client, ttl time.Duration) *TaskCache {
	if ttl <= 0 {
		ttl = DefaultTaskCacheTTL
	}
	return &TaskCache{client: client, ttl: ttl}
}

// Get returns the cached payload, or nil on a cache miss.
func (c *TaskCache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return val, nil
}

// Set stores data as JSON with the cache TTL.
func (c *TaskCache) Set(ctx context.Context, key string, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, jsonData, c.ttl).Err()
}

// Generation returns the counter stored at key, 0 when it was never bumped.
func (c *TaskCache) Generation(ctx context.Context, key string) (int64, error) {
	gen, err := c.client.Get(ctx, key).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return gen, err
}

// Bump increments the counter at key. Entries keyed by an older generation
// are never read again and age out with their TTL.
func (c *TaskCache) Bump(ctx context.Context, key string) (int64, error) {
	return c.client.Incr(ctx, key).Result()
}

// UserTasksGenerationKey holds the version of a user's cached task list.
func UserTasksGenerationKey(userID int) string {
	return fmt.Sprintf("tasks:user:%d:gen", userID)
}

// UserTasksKey is the cache key of a user's task list at a generation.
func UserTasksKey(userID int, generation int64) string {
	return fmt.Sprintf("tasks:user:%d:v%d", userID, generation)
}
