// Package redis implements the snapshot document store on Redis.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/quizarena/progression/internal/adapters/repository"
	"github.com/quizarena/progression/internal/domain/model"
)

// Default client configuration constants.
const (
	defaultTTL          = 90 * 24 * time.Hour
	defaultKeyPrefix    = "progression:snapshot:"
	defaultDialTimeout  = 5 * time.Second
	defaultReadTimeout  = 3 * time.Second
	defaultWriteTimeout = 3 * time.Second
)

// SnapshotStore implements repository.SnapshotStore storing one JSON
// document per user.
type SnapshotStore struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// Option applies a configuration option to the SnapshotStore.
type Option func(*SnapshotStore)

// WithKeyPrefix sets the key prefix for snapshot documents.
func WithKeyPrefix(prefix string) Option {
	return func(s *SnapshotStore) {
		if prefix != "" {
			s.keyPrefix = prefix
		}
	}
}

// WithTTL sets the expiry on snapshot documents. Zero disables expiry.
func WithTTL(ttl time.Duration) Option {
	return func(s *SnapshotStore) {
		if ttl >= 0 {
			s.ttl = ttl
		}
	}
}

// NewSnapshotStore creates a snapshot store backed by client.
func NewSnapshotStore(client *redis.Client, opts ...Option) *SnapshotStore {
	s := &SnapshotStore{
		client:    client,
		keyPrefix: defaultKeyPrefix,
		ttl:       defaultTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewClient dials Redis at addr and verifies the connection.
func NewClient(ctx context.Context, addr, password string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		MaxRetries:   3,
		DialTimeout:  defaultDialTimeout,
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed for %s: %w", addr, err)
	}
	return client, nil
}

func (s *SnapshotStore) key(userID string) string {
	return s.keyPrefix + userID
}

// Get implements repository.SnapshotStore.
func (s *SnapshotStore) Get(ctx context.Context, userID string) (*model.StatsSnapshot, error) {
	data, err := s.client.Get(ctx, s.key(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get snapshot for %s: %w", userID, err)
	}

	var snap model.StatsSnapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot for %s: %w", userID, err)
	}
	return &snap, nil
}

// Upsert implements repository.SnapshotStore.
func (s *SnapshotStore) Upsert(ctx context.Context, snap *model.StatsSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot for %s: %w", snap.UserID, err)
	}
	if err := s.client.Set(ctx, s.key(snap.UserID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("set snapshot for %s: %w", snap.UserID, err)
	}
	return nil
}

// Close releases the underlying client.
func (s *SnapshotStore) Close() error {
	return s.client.Close()
}
