package ledger

import (
    "context"
    "errors"
    "sync"
    "sync/atomic"
    "testing"

    "github.com/iliyamo/screening-admission/internal/store"
)

func TestTryClaimWinsOnce(t *testing.T) {
    ctx := context.Background()
    l := New(store.NewMemoryStore())

    rec, err := l.TryClaim(ctx, "scr-1", 3, "alice")
    if err != nil {
        t.Fatalf("first claim: %v", err)
    }
    if rec.ReservationID == "" || rec.SeatNumber != 3 || rec.HolderID != "alice" {
        t.Fatalf("unexpected record: %+v", rec)
    }

    if _, err := l.TryClaim(ctx, "scr-1", 3, "bob"); !errors.Is(err, ErrSeatTaken) {
        t.Fatalf("expected ErrSeatTaken, got %v", err)
    }
    // Same seat number in another screening is a different key.
    if _, err := l.TryClaim(ctx, "scr-2", 3, "bob"); err != nil {
        t.Fatalf("claim in other screening: %v", err)
    }
}

// indexFaultStore fails blind Puts, which the ledger only uses for the
// reservation-id index.
type indexFaultStore struct {
    store.KV
    failPuts bool
}

func (s *indexFaultStore) Put(ctx context.Context, bucket, key string, value []byte) error {
    if s.failPuts {
        return store.ErrUnavailable
    }
    return s.KV.Put(ctx, bucket, key, value)
}

func TestTryClaimRollsBackOnIndexWriteFailure(t *testing.T) {
    ctx := context.Background()
    fs := &indexFaultStore{KV: store.NewMemoryStore(), failPuts: true}
    l := New(fs)

    rec, err := l.TryClaim(ctx, "scr-1", 3, "alice")
    if rec != nil {
        t.Fatalf("failed claim must not return a reservation, got %+v", rec)
    }
    if !errors.Is(err, store.ErrUnavailable) {
        t.Fatalf("expected error wrapping ErrUnavailable, got %v", err)
    }
    // The winning seat insert was rolled back, so the seat is not left
    // occupied under an id nobody can resolve or release.
    seats, err := l.ListOccupied(ctx, "scr-1")
    if err != nil {
        t.Fatal(err)
    }
    if len(seats) != 0 {
        t.Fatalf("rolled-back claim left seats occupied: %v", seats)
    }

    // Once the store recovers the seat is claimable again.
    fs.failPuts = false
    again, err := l.TryClaim(ctx, "scr-1", 3, "bob")
    if err != nil {
        t.Fatalf("re-claim after recovery: %v", err)
    }
    if got, err := l.Lookup(ctx, again.ReservationID); err != nil || got.HolderID != "bob" {
        t.Fatalf("lookup after recovery: %+v err=%v", got, err)
    }
}

func TestLookupRoundTrip(t *testing.T) {
    ctx := context.Background()
    l := New(store.NewMemoryStore())

    rec, err := l.TryClaim(ctx, "scr-1", 7, "alice")
    if err != nil {
        t.Fatal(err)
    }
    got, err := l.Lookup(ctx, rec.ReservationID)
    if err != nil {
        t.Fatalf("lookup: %v", err)
    }
    if got.ReservationID != rec.ReservationID || got.SeatNumber != 7 {
        t.Fatalf("lookup returned %+v", got)
    }
    if _, err := l.Lookup(ctx, "no-such-id"); !errors.Is(err, ErrReservationNotFound) {
        t.Fatalf("expected ErrReservationNotFound, got %v", err)
    }
}

func TestTryRelease(t *testing.T) {
    ctx := context.Background()
    l := New(store.NewMemoryStore())

    rec, err := l.TryClaim(ctx, "scr-1", 5, "alice")
    if err != nil {
        t.Fatal(err)
    }

    if err := l.TryRelease(ctx, "scr-1", 5, "wrong-id"); !errors.Is(err, ErrNotHolder) {
        t.Fatalf("expected ErrNotHolder for foreign id, got %v", err)
    }
    if err := l.TryRelease(ctx, "scr-1", 5, rec.ReservationID); err != nil {
        t.Fatalf("release: %v", err)
    }
    if err := l.TryRelease(ctx, "scr-1", 5, rec.ReservationID); !errors.Is(err, ErrNoActiveReservation) {
        t.Fatalf("expected ErrNoActiveReservation after release, got %v", err)
    }
    if _, err := l.Lookup(ctx, rec.ReservationID); !errors.Is(err, ErrReservationNotFound) {
        t.Fatalf("released reservation must not resolve, got %v", err)
    }

    // The freed seat is claimable again under a fresh id.
    again, err := l.TryClaim(ctx, "scr-1", 5, "bob")
    if err != nil {
        t.Fatalf("re-claim: %v", err)
    }
    if again.ReservationID == rec.ReservationID {
        t.Fatal("reservation id reused")
    }
}

func TestStaleLookupAfterReclaim(t *testing.T) {
    ctx := context.Background()
    l := New(store.NewMemoryStore())

    old, err := l.TryClaim(ctx, "scr-1", 9, "alice")
    if err != nil {
        t.Fatal(err)
    }
    if err := l.TryRelease(ctx, "scr-1", 9, old.ReservationID); err != nil {
        t.Fatal(err)
    }
    if _, err := l.TryClaim(ctx, "scr-1", 9, "bob"); err != nil {
        t.Fatal(err)
    }
    // The old id must never resolve to bob's record.
    if _, err := l.Lookup(ctx, old.ReservationID); !errors.Is(err, ErrReservationNotFound) {
        t.Fatalf("stale id resolved: %v", err)
    }
}

func TestListOccupied(t *testing.T) {
    ctx := context.Background()
    l := New(store.NewMemoryStore())

    for _, seat := range []int{10, 2, 7} {
        if _, err := l.TryClaim(ctx, "scr-1", seat, "alice"); err != nil {
            t.Fatal(err)
        }
    }
    seats, err := l.ListOccupied(ctx, "scr-1")
    if err != nil {
        t.Fatal(err)
    }
    want := []int{2, 7, 10}
    if len(seats) != len(want) {
        t.Fatalf("got %v, want %v", seats, want)
    }
    for i := range want {
        if seats[i] != want[i] {
            t.Fatalf("got %v, want %v", seats, want)
        }
    }
}

func TestConcurrentClaimsSingleWinner(t *testing.T) {
    ctx := context.Background()
    l := New(store.NewMemoryStore())

    const callers = 500
    var wins, taken atomic.Int32
    var wg sync.WaitGroup
    for i := 0; i < callers; i++ {
        wg.Add(1)
        go func(i int) {
            defer wg.Done()
            _, err := l.TryClaim(ctx, "scr-1", 1, "holder")
            switch {
            case err == nil:
                wins.Add(1)
            case errors.Is(err, ErrSeatTaken):
                taken.Add(1)
            default:
                t.Errorf("claim: %v", err)
            }
        }(i)
    }
    wg.Wait()
    if wins.Load() != 1 || taken.Load() != callers-1 {
        t.Fatalf("wins=%d taken=%d, want 1/%d", wins.Load(), taken.Load(), callers-1)
    }
}
