// Package data provides store implementations for the core interfaces.
package data

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultOpTimeout bounds every individual store call. A timed-out call is
// indistinguishable from a failed one to callers.
const DefaultOpTimeout = 3 * time.Second

// casScript implements compare-and-swap over a single key. ARGV[3] selects
// between "absent" (set only if the key does not exist) and "value" (set only
// if the current value equals ARGV[1]).
var casScript = redis.NewScript(`
local current = redis.call('GET', KEYS[1])
if ARGV[3] == 'absent' then
  if current == false then
    redis.call('SET', KEYS[1], ARGV[2])
    return 1
  end
  return 0
end
if current == ARGV[1] then
  redis.call('SET', KEYS[1], ARGV[2])
  return 1
end
return 0
`)

// RedisStore implements the core DurableStore interface on top of Redis
// sorted-set and string primitives.
type RedisStore struct {
	client    redis.UniversalClient
	opTimeout time.Duration
}

// NewRedisStore creates a new RedisStore with the given Redis client.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return NewRedisStoreWithTimeout(client, DefaultOpTimeout)
}

// NewRedisStoreWithTimeout creates a RedisStore with a custom per-op timeout.
func NewRedisStoreWithTimeout(client redis.UniversalClient, opTimeout time.Duration) *RedisStore {
	if opTimeout <= 0 {
		opTimeout = DefaultOpTimeout
	}
	return &RedisStore{client: client, opTimeout: opTimeout}
}

func (s *RedisStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opTimeout)
}

// AddScored adds a member to the sorted set at key.
func (s *RedisStore) AddScored(ctx context.Context, key string, score float64, member string) error {
	if key == "" {
		return errors.New("key cannot be empty")
	}

	opCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.client.ZAdd(opCtx, key, redis.Z{Score: score, Member: member}).Err(); err != nil {
		return fmt.Errorf("redis zadd: %w", err)
	}
	return nil
}

// RangeByScore returns up to limit members with scores in [min, max],
// ascending.
func (s *RedisStore) RangeByScore(
	ctx context.Context,
	key string,
	min, max float64,
	limit int64,
) ([]string, error) {
	if key == "" {
		return nil, errors.New("key cannot be empty")
	}

	opCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	members, err := s.client.ZRangeByScore(opCtx, key, &redis.ZRangeBy{
		Min:   strconv.FormatFloat(min, 'f', -1, 64),
		Max:   strconv.FormatFloat(max, 'f', -1, 64),
		Count: limit,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("redis zrangebyscore: %w", err)
	}
	return members, nil
}

// RemoveMember removes a member from the sorted set at key. Exactly one of
// any set of concurrent callers removing the same member observes true.
func (s *RedisStore) RemoveMember(ctx context.Context, key, member string) (bool, error) {
	if key == "" {
		return false, errors.New("key cannot be empty")
	}

	opCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	removed, err := s.client.ZRem(opCtx, key, member).Result()
	if err != nil {
		return false, fmt.Errorf("redis zrem: %w", err)
	}
	return removed > 0, nil
}

// Cardinality returns the number of members in the sorted set at key.
func (s *RedisStore) Cardinality(ctx context.Context, key string) (int64, error) {
	if key == "" {
		return 0, errors.New("key cannot be empty")
	}

	opCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	n, err := s.client.ZCard(opCtx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis zcard: %w", err)
	}
	return n, nil
}

// Ping checks store liveness.
func (s *RedisStore) Ping(ctx context.Context) error {
	opCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.client.Ping(opCtx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// ScanKeys returns all keys matching the given prefix.
func (s *RedisStore) ScanKeys(ctx context.Context, prefix string) ([]string, error) {
	if prefix == "" {
		return nil, errors.New("prefix cannot be empty")
	}

	opCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	var (
		keys   []string
		cursor uint64
	)
	for {
		batch, next, err := s.client.Scan(opCtx, cursor, prefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("redis scan: %w", err)
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return keys, nil
}

// Expire sets a TTL on key.
func (s *RedisStore) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if key == "" {
		return false, errors.New("key cannot be empty")
	}

	opCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	ok, err := s.client.Expire(opCtx, key, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis expire: %w", err)
	}
	return ok, nil
}

// SetRecord writes a single-key record with a TTL.
func (s *RedisStore) SetRecord(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if key == "" {
		return errors.New("key cannot be empty")
	}

	opCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.client.Set(opCtx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// GetRecord reads a single-key record. Returns nil when the key is absent.
func (s *RedisStore) GetRecord(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, errors.New("key cannot be empty")
	}

	opCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	result, err := s.client.Get(opCtx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return []byte(result), nil
}

// SetIfEquals atomically sets key to next only if its current value equals
// expected; nil expected means "set only if absent". The comparison and write
// run as one Lua script so no interleaving is possible.
func (s *RedisStore) SetIfEquals(ctx context.Context, key string, expected, next []byte) (bool, error) {
	if key == "" {
		return false, errors.New("key cannot be empty")
	}

	opCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	mode := "value"
	if expected == nil {
		mode = "absent"
	}

	applied, err := casScript.Run(opCtx, s.client, []string{key},
		string(expected), string(next), mode).Int()
	if err != nil {
		return false, fmt.Errorf("redis cas: %w", err)
	}
	return applied == 1, nil
}
