package otp

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "hive:otp:"

//go:embed consume.lua
var consumeScript string

// RedisStore keeps entries as Redis hashes with a matching key TTL, so codes
// survive restarts and are shared between instances.
type RedisStore struct {
	client  *redis.Client
	consume *redis.Script
	now     func() time.Time
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client:  client,
		consume: redis.NewScript(consumeScript),
		now:     time.Now,
	}
}

func (s *RedisStore) Put(ctx context.Context, key string, entry Entry) error {
	ttl := entry.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return s.Delete(ctx, key)
	}

	redisKey := redisKeyPrefix + key
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, redisKey)
		pipe.HSet(ctx, redisKey,
			"code", entry.Code,
			"expires_at", entry.ExpiresAt.UTC().Format(time.RFC3339Nano),
			"attempts", entry.Attempts,
		)
		pipe.PExpire(ctx, redisKey, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis HSET %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, redisKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("redis DEL %s: %w", key, err)
	}
	return nil
}

// Consume runs the compare-and-take script so concurrent verifies of one
// code see exactly one match.
func (s *RedisStore) Consume(ctx context.Context, key, code string, maxAttempts int) (Entry, Outcome, error) {
	result, err := s.consume.Run(ctx, s.client, []string{redisKeyPrefix + key}, code, maxAttempts).Slice()
	if err != nil {
		return Entry{}, OutcomeMissing, fmt.Errorf("redis consume %s: %w", key, err)
	}
	if len(result) != 4 {
		return Entry{}, OutcomeMissing, fmt.Errorf("redis consume %s: unexpected script result %v", key, result)
	}

	outcome, ok := result[0].(int64)
	if !ok {
		return Entry{}, OutcomeMissing, fmt.Errorf("redis consume %s: unexpected outcome %v", key, result[0])
	}
	if Outcome(outcome) == OutcomeMissing {
		return Entry{}, OutcomeMissing, nil
	}

	entry := Entry{}
	entry.Code, _ = result[1].(string)
	expires, _ := result[2].(string)
	if entry.ExpiresAt, err = time.Parse(time.RFC3339Nano, expires); err != nil {
		return Entry{}, OutcomeMissing, fmt.Errorf("decode OTP entry %s: %w", key, err)
	}
	attempts, _ := result[3].(int64)
	entry.Attempts = int(attempts)

	return entry, Outcome(outcome), nil
}
