package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"waregate/internal/config"
	"waregate/pkg/interfaces"
	"waregate/pkg/types"
)

// Key layout in the shared store. Every key carries a server-assigned expiry
// so vanished clients and stale snapshots clean themselves up.
const (
	sessionKeyPrefix   = "session:"
	statusKeyPrefix    = "shelf_status:"
	statsKeyPrefix     = "stats:"
	rateLimitKeyPrefix = "ratelimit:"
)

// RedisStore implements the session store, shelf-status cache, stats
// recorder, and admission counter on a single Redis client. All operations
// are single-key atomic get/set/incr; no cross-key transactions are taken.
type RedisStore struct {
	client     *redis.Client
	sessionTTL time.Duration
	statusTTL  time.Duration
	statsTTL   time.Duration
}

// NewRedisStore connects a store to Redis using the configured TTLs.
func NewRedisStore(cfg *config.RedisConfig) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return NewRedisStoreWithClient(client, cfg)
}

// NewRedisStoreWithClient wraps an existing client; used by tests to point
// the store at an in-process Redis.
func NewRedisStoreWithClient(client *redis.Client, cfg *config.RedisConfig) *RedisStore {
	return &RedisStore{
		client:     client,
		sessionTTL: cfg.SessionTTL,
		statusTTL:  cfg.StatusTTL,
		statsTTL:   cfg.StatsTTL,
	}
}

// Ping verifies connectivity at startup.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Close releases the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// PutSession writes or overwrites a session with a fresh TTL. Re-joins
// always reset the expiry clock.
func (s *RedisStore) PutSession(ctx context.Context, session *types.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	key := sessionKeyPrefix + session.ConnectionID
	if err := s.client.Set(ctx, key, data, s.sessionTTL).Err(); err != nil {
		return fmt.Errorf("failed to store session %s: %w", session.ConnectionID, err)
	}
	return nil
}

// GetSession returns the session for a connection or ErrSessionNotFound.
func (s *RedisStore) GetSession(ctx context.Context, connectionID string) (*types.Session, error) {
	data, err := s.client.Get(ctx, sessionKeyPrefix+connectionID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, interfaces.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session %s: %w", connectionID, err)
	}
	var session types.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to decode session %s: %w", connectionID, err)
	}
	return &session, nil
}

// DeleteSession removes a session; deleting a missing session is a no-op.
func (s *RedisStore) DeleteSession(ctx context.Context, connectionID string) error {
	if err := s.client.Del(ctx, sessionKeyPrefix+connectionID).Err(); err != nil {
		return fmt.Errorf("failed to delete session %s: %w", connectionID, err)
	}
	return nil
}

// GetShelfStatus returns the cached snapshot or ErrCacheMiss.
func (s *RedisStore) GetShelfStatus(ctx context.Context, shelfID string) (*types.ShelfStatus, error) {
	data, err := s.client.Get(ctx, statusKeyPrefix+shelfID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, interfaces.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read shelf status %s: %w", shelfID, err)
	}
	var status types.ShelfStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("failed to decode shelf status %s: %w", shelfID, err)
	}
	return &status, nil
}

// PutShelfStatus stores a complete snapshot with a fresh TTL. Counts are
// recomputed from the slot list before writing; the cache never holds an
// entry whose counters disagree with its slots.
func (s *RedisStore) PutShelfStatus(ctx context.Context, status *types.ShelfStatus) error {
	status.RecomputeCounts()
	status.UpdatedAt = time.Now()
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("failed to encode shelf status: %w", err)
	}
	key := statusKeyPrefix + status.ShelfID
	if err := s.client.Set(ctx, key, data, s.statusTTL).Err(); err != nil {
		return fmt.Errorf("failed to store shelf status %s: %w", status.ShelfID, err)
	}
	return nil
}

// RecordEvent increments the (shelf, day, event type) counter. The bucket
// expiry is refreshed on every write, matching the original service.
func (s *RedisStore) RecordEvent(ctx context.Context, shelfID, eventType string, at time.Time) error {
	key := fmt.Sprintf("%s%s:%s", statsKeyPrefix, shelfID, types.StatsDate(at))
	if err := s.client.HIncrBy(ctx, key, eventType, 1).Err(); err != nil {
		return fmt.Errorf("failed to record stats for %s: %w", shelfID, err)
	}
	if err := s.client.Expire(ctx, key, s.statsTTL).Err(); err != nil {
		return fmt.Errorf("failed to expire stats for %s: %w", shelfID, err)
	}
	return nil
}

// IncrWithWindow increments the per-address admission counter, arming the
// window expiry only when this increment created the key. The
// increment-then-expire pair is not a single atomic unit; a small
// over-admission under concurrent bursts is tolerated.
func (s *RedisStore) IncrWithWindow(ctx context.Context, address string, window time.Duration) (int64, error) {
	key := rateLimitKeyPrefix + address
	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment rate counter for %s: %w", address, err)
	}
	if count == 1 {
		if err := s.client.Expire(ctx, key, window).Err(); err != nil {
			return count, fmt.Errorf("failed to arm rate window for %s: %w", address, err)
		}
	}
	return count, nil
}
