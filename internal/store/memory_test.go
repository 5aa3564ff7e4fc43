package store

import (
    "context"
    "errors"
    "sync"
    "sync/atomic"
    "testing"
)

func TestPutIfAbsent(t *testing.T) {
    ctx := context.Background()
    s := NewMemoryStore()

    won, err := s.PutIfAbsent(ctx, "b", "k", []byte("first"))
    if err != nil || !won {
        t.Fatalf("first insert: won=%v err=%v", won, err)
    }
    won, err = s.PutIfAbsent(ctx, "b", "k", []byte("second"))
    if err != nil {
        t.Fatalf("second insert: %v", err)
    }
    if won {
        t.Fatal("second insert must lose")
    }
    v, err := s.Get(ctx, "b", "k")
    if err != nil || string(v) != "first" {
        t.Fatalf("value after losing insert: %q err=%v", v, err)
    }
}

func TestDeleteIfMatch(t *testing.T) {
    ctx := context.Background()
    s := NewMemoryStore()
    if _, err := s.PutIfAbsent(ctx, "b", "k", []byte("v1")); err != nil {
        t.Fatal(err)
    }

    deleted, err := s.DeleteIfMatch(ctx, "b", "k", []byte("v2"))
    if err != nil {
        t.Fatal(err)
    }
    if deleted {
        t.Fatal("mismatched delete must not remove the record")
    }
    if _, err := s.Get(ctx, "b", "k"); err != nil {
        t.Fatalf("record must survive mismatched delete: %v", err)
    }

    deleted, err = s.DeleteIfMatch(ctx, "b", "k", []byte("v1"))
    if err != nil || !deleted {
        t.Fatalf("matching delete: deleted=%v err=%v", deleted, err)
    }
    if _, err := s.Get(ctx, "b", "k"); !errors.Is(err, ErrNotFound) {
        t.Fatalf("expected ErrNotFound after delete, got %v", err)
    }

    // Deleting an absent key reports false, not an error.
    deleted, err = s.DeleteIfMatch(ctx, "b", "k", []byte("v1"))
    if err != nil || deleted {
        t.Fatalf("absent delete: deleted=%v err=%v", deleted, err)
    }
}

func TestGetReturnsCopy(t *testing.T) {
    ctx := context.Background()
    s := NewMemoryStore()
    if err := s.Put(ctx, "b", "k", []byte("abc")); err != nil {
        t.Fatal(err)
    }
    v, err := s.Get(ctx, "b", "k")
    if err != nil {
        t.Fatal(err)
    }
    v[0] = 'x'
    again, _ := s.Get(ctx, "b", "k")
    if string(again) != "abc" {
        t.Fatalf("stored value mutated through returned slice: %q", again)
    }
}

func TestCancelledContext(t *testing.T) {
    s := NewMemoryStore()
    ctx, cancel := context.WithCancel(context.Background())
    cancel()
    if _, err := s.PutIfAbsent(ctx, "b", "k", nil); !errors.Is(err, ErrUnavailable) {
        t.Fatalf("expected ErrUnavailable, got %v", err)
    }
    if _, err := s.Get(ctx, "b", "k"); !errors.Is(err, ErrUnavailable) {
        t.Fatalf("expected ErrUnavailable, got %v", err)
    }
}

func TestConcurrentPutIfAbsentSingleWinner(t *testing.T) {
    ctx := context.Background()
    s := NewMemoryStore()

    const callers = 200
    var wins atomic.Int32
    var wg sync.WaitGroup
    for i := 0; i < callers; i++ {
        wg.Add(1)
        go func(i int) {
            defer wg.Done()
            won, err := s.PutIfAbsent(ctx, "b", "k", []byte{byte(i)})
            if err != nil {
                t.Errorf("insert: %v", err)
                return
            }
            if won {
                wins.Add(1)
            }
        }(i)
    }
    wg.Wait()
    if wins.Load() != 1 {
        t.Fatalf("expected exactly 1 winner, got %d", wins.Load())
    }
}
