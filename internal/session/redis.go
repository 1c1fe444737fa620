package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/trajet/trajet/internal/planner"
)

const (
	defaultKeyPrefix = "trajet:session:"
	maxUpdateRetries = 50
)

// RedisConfig holds configuration for the Redis store.
type RedisConfig struct {
	// Client is the Redis client (required).
	Client *redis.Client

	// TTL is the idle lifetime of a session (default: DefaultTTL).
	TTL time.Duration

	// KeyPrefix namespaces session keys (default: "trajet:session:").
	KeyPrefix string
}

// RedisStore keeps each session as a JSON value with a key TTL. Updates use
// WATCH/MULTI so concurrent writers to the same session retry instead of
// overwriting each other.
type RedisStore struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(cfg RedisConfig) *RedisStore {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &RedisStore{rdb: cfg.Client, ttl: ttl, prefix: prefix}
}

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("pinging redis at %s: %w", addr, err)
	}
	return rdb, nil
}

func (r *RedisStore) key(id string) string {
	return r.prefix + id
}

// Create starts a new session.
func (r *RedisStore) Create(ctx context.Context) (string, *planner.State, error) {
	id := uuid.NewString()
	st := planner.New()

	data, err := json.Marshal(st)
	if err != nil {
		return "", nil, fmt.Errorf("encoding session: %w", err)
	}

	ok, err := r.rdb.SetNX(ctx, r.key(id), data, r.ttl).Result()
	if err != nil {
		return "", nil, fmt.Errorf("creating session: %w", err)
	}
	if !ok {
		return "", nil, fmt.Errorf("creating session: %w", ErrConflict)
	}
	return id, &st, nil
}

// Get returns the session state and extends its lifetime.
func (r *RedisStore) Get(ctx context.Context, id string) (*planner.State, error) {
	data, err := r.rdb.GetEx(ctx, r.key(id), r.ttl).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}
	return decodeState(data)
}

// Update applies fn inside an optimistic transaction.
func (r *RedisStore) Update(ctx context.Context, id string, fn func(*planner.State) error) (*planner.State, error) {
	key := r.key(id)
	var result *planner.State

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("loading session: %w", err)
		}

		st, err := decodeState(data)
		if err != nil {
			return err
		}
		if err := fn(st); err != nil {
			return err
		}

		encoded, err := json.Marshal(st)
		if err != nil {
			return fmt.Errorf("encoding session: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, encoded, r.ttl)
			return nil
		})
		if err != nil {
			return err
		}
		result = st
		return nil
	}

	for i := 0; i < maxUpdateRetries; i++ {
		err := r.rdb.Watch(ctx, txf, key)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return nil, err
	}
	return nil, ErrConflict
}

// Delete removes a session.
func (r *RedisStore) Delete(ctx context.Context, id string) error {
	if err := r.rdb.Del(ctx, r.key(id)).Err(); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// Ping checks the Redis connection.
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

func decodeState(data []byte) (*planner.State, error) {
	st := planner.New()
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("decoding session: %w", err)
	}
	return &st, nil
}
