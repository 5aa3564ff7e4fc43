package store

import (
    "bytes"
    "context"
    "sync"
)

// MemoryStore is an in-process KV with the same conditional semantics
// as RedisStore.  The admission harness and package tests use it to
// exercise the ledger without infrastructure.  A single mutex guards
// all buckets; that is stricter than the per-key contract requires and
// trivially satisfies it.
type MemoryStore struct {
    mu      sync.Mutex
    buckets map[string]map[string][]byte
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
    return &MemoryStore{buckets: make(map[string]map[string][]byte)}
}

func (s *MemoryStore) bucket(name string) map[string][]byte {
    b, ok := s.buckets[name]
    if !ok {
        b = make(map[string][]byte)
        s.buckets[name] = b
    }
    return b
}

func (s *MemoryStore) PutIfAbsent(ctx context.Context, bucket, key string, value []byte) (bool, error) {
    if err := ctx.Err(); err != nil {
        return false, ErrUnavailable
    }
    s.mu.Lock()
    defer s.mu.Unlock()
    b := s.bucket(bucket)
    if _, exists := b[key]; exists {
        return false, nil
    }
    b[key] = append([]byte(nil), value...)
    return true, nil
}

func (s *MemoryStore) DeleteIfMatch(ctx context.Context, bucket, key string, expected []byte) (bool, error) {
    if err := ctx.Err(); err != nil {
        return false, ErrUnavailable
    }
    s.mu.Lock()
    defer s.mu.Unlock()
    b := s.bucket(bucket)
    current, exists := b[key]
    if !exists || !bytes.Equal(current, expected) {
        return false, nil
    }
    delete(b, key)
    return true, nil
}

func (s *MemoryStore) Get(ctx context.Context, bucket, key string) ([]byte, error) {
    if err := ctx.Err(); err != nil {
        return nil, ErrUnavailable
    }
    s.mu.Lock()
    defer s.mu.Unlock()
    v, exists := s.bucket(bucket)[key]
    if !exists {
        return nil, ErrNotFound
    }
    return append([]byte(nil), v...), nil
}

func (s *MemoryStore) Put(ctx context.Context, bucket, key string, value []byte) error {
    if err := ctx.Err(); err != nil {
        return ErrUnavailable
    }
    s.mu.Lock()
    defer s.mu.Unlock()
    s.bucket(bucket)[key] = append([]byte(nil), value...)
    return nil
}

func (s *MemoryStore) Delete(ctx context.Context, bucket, key string) error {
    if err := ctx.Err(); err != nil {
        return ErrUnavailable
    }
    s.mu.Lock()
    defer s.mu.Unlock()
    delete(s.bucket(bucket), key)
    return nil
}

func (s *MemoryStore) List(ctx context.Context, bucket string) (map[string][]byte, error) {
    if err := ctx.Err(); err != nil {
        return nil, ErrUnavailable
    }
    s.mu.Lock()
    defer s.mu.Unlock()
    b := s.bucket(bucket)
    out := make(map[string][]byte, len(b))
    for k, v := range b {
        out[k] = append([]byte(nil), v...)
    }
    return out, nil
}
