package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"pharmatrace/pkg/platform/sentinel"
)

const keyPrefix = "idem:"

// Swap the value only while the stored token is ours. Values are JSON so
// the token is matched with cjson.
var completeScript = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if not cur then return 0 end
if cjson.decode(cur)['token'] ~= ARGV[1] then return 0 end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`)

var releaseScript = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if not cur then return 0 end
local e = cjson.decode(cur)
if e['token'] ~= ARGV[1] or e['done'] then return 0 end
return redis.call('DEL', KEYS[1])
`)

// RedisStore shares reservations across gateway instances.
type RedisStore struct {
	client redis.UniversalClient
}

func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Reserve(ctx context.Context, key string, ttl time.Duration) (string, *Record, error) {
	token := uuid.NewString()
	pending, err := json.Marshal(entry{Token: token})
	if err != nil {
		return "", nil, err
	}
	ok, err := s.client.SetNX(ctx, keyPrefix+key, pending, ttl).Result()
	if err != nil {
		return "", nil, fmt.Errorf("reserve idempotency key: %w", err)
	}
	if ok {
		return token, nil, nil
	}

	raw, err := s.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		// Expired between SETNX and GET; the caller retries.
		return "", nil, fmt.Errorf("idempotency key %q: %w", key, sentinel.ErrInFlight)
	}
	if err != nil {
		return "", nil, fmt.Errorf("read idempotency key: %w", err)
	}
	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return "", nil, fmt.Errorf("decode idempotency key: %w", err)
	}
	if e.Done && e.Record != nil {
		return "", e.Record, nil
	}
	return "", nil, fmt.Errorf("idempotency key %q: %w", key, sentinel.ErrInFlight)
}

func (s *RedisStore) Complete(ctx context.Context, key, token string, rec Record, ttl time.Duration) error {
	done, err := json.Marshal(entry{Token: token, Done: true, Record: &rec})
	if err != nil {
		return err
	}
	n, err := completeScript.Run(ctx, s.client, []string{keyPrefix + key}, token, done, ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("complete idempotency key: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("idempotency key %q: %w", key, sentinel.ErrConflict)
	}
	return nil
}

func (s *RedisStore) Release(ctx context.Context, key, token string) error {
	if err := releaseScript.Run(ctx, s.client, []string{keyPrefix + key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}
