package capacity

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// redisAcquireScript reserves a slot atomically.
// KEYS[1] = slot set key
// ARGV[1] = session id
// ARGV[2] = max slots
// ARGV[3] = key TTL seconds (self-clean abandoned slot sets)
var redisAcquireScript = redis.NewScript(`
local key = KEYS[1]
local session = ARGV[1]
local max = tonumber(ARGV[2])
local ttl = tonumber(ARGV[3])

if redis.call("SISMEMBER", key, session) == 1 then
    return 1
end
if redis.call("SCARD", key) >= max then
    return 0
end
redis.call("SADD", key, session)
redis.call("EXPIRE", key, ttl)
return 1
`)

// RedisSlotStore implements SlotStore on Redis so multiple engine instances
// can share one maxConcurrentSessions budget.
type RedisSlotStore struct {
	client *redis.Client
	key    string
	ttlSec int
}

// NewRedisSlotStore creates a store backed by Redis. ttlSeconds bounds how
// long an abandoned slot set survives an instance crash.
func NewRedisSlotStore(addr, password string, db int, ttlSeconds int) *RedisSlotStore {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if ttlSeconds <= 0 {
		ttlSeconds = 600
	}
	return &RedisSlotStore{client: rdb, key: "tribune:sessions:active", ttlSec: ttlSeconds}
}

func (s *RedisSlotStore) Acquire(ctx context.Context, sessionID string, max int) (bool, error) {
	res, err := redisAcquireScript.Run(ctx, s.client, []string{s.key}, sessionID, max, s.ttlSec).Int()
	if err != nil {
		return false, fmt.Errorf("acquire slot: %w", err)
	}
	return res == 1, nil
}

func (s *RedisSlotStore) Release(ctx context.Context, sessionID string) error {
	if err := s.client.SRem(ctx, s.key, sessionID).Err(); err != nil {
		return fmt.Errorf("release slot: %w", err)
	}
	return nil
}

func (s *RedisSlotStore) Active(ctx context.Context) (int, error) {
	n, err := s.client.SCard(ctx, s.key).Result()
	if err != nil {
		return 0, fmt.Errorf("count slots: %w", err)
	}
	return int(n), nil
}
