package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/voyago-ai/voyago"
)

const (
	defaultKeyPrefix     = "voyago:session"
	defaultApplyAttempts = 5
)

// RedisStore keeps session state in Redis so several instances can share
// it. Applies use optimistic locking: the key is watched, the state is
// mutated, and the write is retried when another writer got there first.
// It implements voyago.SessionStore.
type RedisStore struct {
	client        *redis.Client
	keyPrefix     string
	ttl           time.Duration
	applyAttempts int
	logger        *zap.Logger
}

// RedisStoreOption configures a RedisStore.
type RedisStoreOption func(*RedisStore)

// WithKeyPrefix overrides the Redis key prefix.
func WithKeyPrefix(prefix string) RedisStoreOption {
	return func(s *RedisStore) { s.keyPrefix = prefix }
}

// WithSessionTTL sets an expiry on stored sessions. Zero means no expiry.
func WithSessionTTL(ttl time.Duration) RedisStoreOption {
	return func(s *RedisStore) { s.ttl = ttl }
}

// WithApplyAttempts bounds the optimistic-lock retries per apply.
func WithApplyAttempts(n int) RedisStoreOption {
	return func(s *RedisStore) { s.applyAttempts = n }
}

// WithRedisStoreLogger sets the logger.
func WithRedisStoreLogger(logger *zap.Logger) RedisStoreOption {
	return func(s *RedisStore) { s.logger = logger }
}

// NewRedisStore creates a store backed by the given client.
func NewRedisStore(client *redis.Client, options ...RedisStoreOption) (*RedisStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	s := &RedisStore{
		client:        client,
		keyPrefix:     defaultKeyPrefix,
		applyAttempts: defaultApplyAttempts,
		logger:        zap.NewNop(),
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

func (s *RedisStore) key(sessionID string) string {
	return s.keyPrefix + ":" + sessionID
}

// Get implements voyago.SessionStore.
func (s *RedisStore) Get(ctx context.Context, sessionID string) (*voyago.SessionState, error) {
	raw, err := s.client.Get(ctx, s.key(sessionID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, voyago.NewCacheError("session_get", "get", err)
	}

	var state voyago.SessionState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return nil, voyago.NewCacheError("session_get", "decode", err)
	}
	return &state, nil
}

// Apply implements voyago.SessionStore. Concurrent applies to the same
// session are serialized by the watch loop; after the attempt budget is
// spent a conflict error is returned.
func (s *RedisStore) Apply(ctx context.Context, sessionID string, update voyago.TurnUpdate) (*voyago.SessionState, error) {
	key := s.key(sessionID)

	var applied *voyago.SessionState
	txn := func(tx *redis.Tx) error {
		state := &voyago.SessionState{ID: sessionID}

		raw, err := tx.Get(ctx, key).Result()
		switch {
		case errors.Is(err, redis.Nil):
			state.CreatedAt = time.Now()
		case err != nil:
			return err
		default:
			if err := json.Unmarshal([]byte(raw), state); err != nil {
				return err
			}
		}

		applyTurn(state, update, time.Now())

		data, err := json.Marshal(state)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, s.ttl)
			return nil
		})
		if err != nil {
			return err
		}
		applied = state
		return nil
	}

	var lastErr error
	for attempt := 0; attempt < s.applyAttempts; attempt++ {
		err := s.client.Watch(ctx, txn, key)
		if err == nil {
			return applied, nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return nil, voyago.NewCacheError("session_apply", "watch", err)
		}
		lastErr = err
		s.logger.Debug("session apply conflicted, retrying",
			zap.String("session_id", sessionID),
			zap.Int("attempt", attempt+1))
	}
	return nil, voyago.NewSessionConflictError(sessionID, lastErr)
}

// Ping verifies the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
