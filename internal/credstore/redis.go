// internal/credstore/redis.go
package credstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultKey is the Redis key holding the credential blob.
const DefaultKey = "loto_turn_config"

// Redis stores credentials as a JSON string under a single key.
type Redis struct {
	Rdb *redis.Client
	Key string
}

// ConnectRedis opens a client to addr/db and verifies it with a ping.
func ConnectRedis(addr string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}

func NewRedis(rdb *redis.Client, key string) *Redis {
	if key == "" {
		key = DefaultKey
	}
	return &Redis{Rdb: rdb, Key: key}
}

func (r *Redis) Load(ctx context.Context) (Credentials, error) {
	data, err := r.Rdb.Get(ctx, r.Key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Credentials{}, nil
	}
	if err != nil {
		return Credentials{}, fmt.Errorf("failed to GET '%s': %w", r.Key, err)
	}
	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return Credentials{}, fmt.Errorf("failed to unmarshal '%s': %w", r.Key, err)
	}
	return creds, nil
}

func (r *Redis) Save(ctx context.Context, creds Credentials) error {
	data, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}
	if err := r.Rdb.Set(ctx, r.Key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to SET '%s': %w", r.Key, err)
	}
	return nil
}
