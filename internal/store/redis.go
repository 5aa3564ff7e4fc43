package store

import (
    "context"
    "errors"
    "fmt"
    "time"

    "github.com/redis/go-redis/v9"
)

// deleteIfMatchScript removes a hash field only when its current value
// equals ARGV[2].  Redis runs the script atomically, which gives the
// compare-and-delete the same per-key linearizability as HSETNX.
var deleteIfMatchScript = redis.NewScript(`
    local current = redis.call('HGET', KEYS[1], ARGV[1])
    if current == ARGV[2] then
        return redis.call('HDEL', KEYS[1], ARGV[1])
    end
    return 0
`)

// RedisStore implements KV on a Redis server.  A bucket maps to a hash
// key and a record key to a hash field, so all records of one bucket
// share a single Redis key and every conditional mutation is a single
// atomic command on it.  Every call is bounded by opTimeout; transport
// errors and deadline expiry surface as ErrUnavailable because the
// fate of the attempted write is unknown.
type RedisStore struct {
    rdb       *redis.Client
    opTimeout time.Duration
}

// NewRedisStore wraps an existing client.  opTimeout bounds every
// store round trip; values <= 0 fall back to two seconds.
func NewRedisStore(rdb *redis.Client, opTimeout time.Duration) *RedisStore {
    if opTimeout <= 0 {
        opTimeout = 2 * time.Second
    }
    return &RedisStore{rdb: rdb, opTimeout: opTimeout}
}

func (s *RedisStore) bound(ctx context.Context) (context.Context, context.CancelFunc) {
    return context.WithTimeout(ctx, s.opTimeout)
}

// unavailable classifies err as a store fault.  redis.Nil is never
// passed here; every other error means the call may or may not have
// reached the server.
func unavailable(op string, err error) error {
    return fmt.Errorf("%s: %v: %w", op, err, ErrUnavailable)
}

func (s *RedisStore) PutIfAbsent(ctx context.Context, bucket, key string, value []byte) (bool, error) {
    ctx, cancel := s.bound(ctx)
    defer cancel()
    ok, err := s.rdb.HSetNX(ctx, bucket, key, value).Result()
    if err != nil {
        return false, unavailable("hsetnx", err)
    }
    return ok, nil
}

func (s *RedisStore) DeleteIfMatch(ctx context.Context, bucket, key string, expected []byte) (bool, error) {
    ctx, cancel := s.bound(ctx)
    defer cancel()
    n, err := deleteIfMatchScript.Run(ctx, s.rdb, []string{bucket}, key, string(expected)).Int()
    if err != nil {
        return false, unavailable("delete-if-match", err)
    }
    return n == 1, nil
}

func (s *RedisStore) Get(ctx context.Context, bucket, key string) ([]byte, error) {
    ctx, cancel := s.bound(ctx)
    defer cancel()
    v, err := s.rdb.HGet(ctx, bucket, key).Bytes()
    if errors.Is(err, redis.Nil) {
        return nil, ErrNotFound
    }
    if err != nil {
        return nil, unavailable("hget", err)
    }
    return v, nil
}

func (s *RedisStore) Put(ctx context.Context, bucket, key string, value []byte) error {
    ctx, cancel := s.bound(ctx)
    defer cancel()
    if err := s.rdb.HSet(ctx, bucket, key, value).Err(); err != nil {
        return unavailable("hset", err)
    }
    return nil
}

func (s *RedisStore) Delete(ctx context.Context, bucket, key string) error {
    ctx, cancel := s.bound(ctx)
    defer cancel()
    if err := s.rdb.HDel(ctx, bucket, key).Err(); err != nil {
        return unavailable("hdel", err)
    }
    return nil
}

func (s *RedisStore) List(ctx context.Context, bucket string) (map[string][]byte, error) {
    ctx, cancel := s.bound(ctx)
    defer cancel()
    vals, err := s.rdb.HGetAll(ctx, bucket).Result()
    if err != nil {
        return nil, unavailable("hgetall", err)
    }
    out := make(map[string][]byte, len(vals))
    for k, v := range vals {
        out[k] = []byte(v)
    }
    return out, nil
}
