package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/pscheid92/pxsession/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

// DefaultHashKey holds the session record when no key is configured.
const DefaultHashKey = "px:session"

// Store is a domain.Store keeping every field in one Redis hash.
type Store struct {
	rdb *goredis.Client
	key string
}

var _ domain.Store = (*Store)(nil)

func NewStore(rdb *goredis.Client, hashKey string) *Store {
	if hashKey == "" {
		hashKey = DefaultHashKey
	}
	return &Store{rdb: rdb, key: hashKey}
}

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.rdb.HGet(ctx, s.key, key).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return v, true, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	if err := s.rdb.HSet(ctx, s.key, key, value).Err(); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

// Ping reports whether the store is reachable; used by the readiness probe.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}
