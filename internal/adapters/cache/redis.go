package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cpandares/random-places/internal/domain"
)

const keyPrefix = "places:"

// RedisStore keeps candidate lists as JSON values in Redis.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore checks the connection before returning.
func NewRedisStore(ctx context.Context, client *redis.Client) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("redis client cannot be nil")
	}
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &RedisStore{client: client}, nil
}

func (r *RedisStore) Get(ctx context.Context, key string) ([]domain.Place, bool, error) {
	raw, err := r.client.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get cached places: %w", err)
	}

	var places []domain.Place
	if err := json.Unmarshal(raw, &places); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal cached places: %w", err)
	}
	return places, true, nil
}

func (r *RedisStore) Set(ctx context.Context, key string, places []domain.Place, ttl time.Duration) error {
	if places == nil {
		places = []domain.Place{}
	}
	raw, err := json.Marshal(places)
	if err != nil {
		return fmt.Errorf("failed to marshal places: %w", err)
	}
	if err := r.client.Set(ctx, keyPrefix+key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store places: %w", err)
	}
	return nil
}
