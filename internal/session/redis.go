package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"invoice-workflow-console/internal/config"
	"invoice-workflow-console/internal/console"
)

const keyPrefix = "wfconsole:session:"

func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// RedisStore keeps snapshots as JSON so several console servers can share sessions.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func (s *RedisStore) Load(ctx context.Context, id string) (console.State, error) {
	raw, err := s.rdb.Get(ctx, keyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return console.State{}, ErrNotFound
	}
	if err != nil {
		return console.State{}, fmt.Errorf("failed to load session %s: %w", id, err)
	}

	var st console.State
	if err := json.Unmarshal(raw, &st); err != nil {
		return console.State{}, fmt.Errorf("failed to decode session %s: %w", id, err)
	}
	return st, nil
}

func (s *RedisStore) Save(ctx context.Context, id string, st console.State) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to encode session %s: %w", id, err)
	}
	ttl := s.ttl
	if ttl < 0 {
		ttl = 0
	}
	if err := s.rdb.Set(ctx, keyPrefix+id, raw, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session %s: %w", id, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.rdb.Del(ctx, keyPrefix+id).Err(); err != nil {
		return fmt.Errorf("failed to delete session %s: %w", id, err)
	}
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}
