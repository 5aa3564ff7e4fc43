package allocator

import (
    "context"
    "errors"
    "sync"
    "testing"
    "time"

    "github.com/iliyamo/screening-admission/internal/catalog"
    "github.com/iliyamo/screening-admission/internal/ledger"
    "github.com/iliyamo/screening-admission/internal/store"
)

// recorder collects anomalies for assertions.
type recorder struct {
    mu        sync.Mutex
    anomalies []Anomaly
}

func (r *recorder) ReportAnomaly(ctx context.Context, a Anomaly) {
    r.mu.Lock()
    defer r.mu.Unlock()
    r.anomalies = append(r.anomalies, a)
}

func (r *recorder) kinds() []string {
    r.mu.Lock()
    defer r.mu.Unlock()
    out := make([]string, 0, len(r.anomalies))
    for _, a := range r.anomalies {
        out = append(out, a.Kind)
    }
    return out
}

// faultStore wraps a KV with scripted failures and a one-shot hook
// that runs after a winning conditional insert, which is the window
// between a move's claim phase and its release phase.
type faultStore struct {
    store.KV
    mu               sync.Mutex
    failDeleteMatch  int // remaining DeleteIfMatch calls to fail
    afterPutIfAbsent func()
}

func (f *faultStore) PutIfAbsent(ctx context.Context, bucket, key string, value []byte) (bool, error) {
    won, err := f.KV.PutIfAbsent(ctx, bucket, key, value)
    if won && err == nil {
        f.mu.Lock()
        hook := f.afterPutIfAbsent
        f.afterPutIfAbsent = nil
        f.mu.Unlock()
        if hook != nil {
            hook()
        }
    }
    return won, err
}

func (f *faultStore) DeleteIfMatch(ctx context.Context, bucket, key string, expected []byte) (bool, error) {
    f.mu.Lock()
    fail := f.failDeleteMatch > 0
    if fail {
        f.failDeleteMatch--
    }
    f.mu.Unlock()
    if fail {
        return false, store.ErrUnavailable
    }
    return f.KV.DeleteIfMatch(ctx, bucket, key, expected)
}

func newFixture(t *testing.T, kv store.KV, opts ...Option) (*Allocator, *ledger.Ledger, string) {
    t.Helper()
    cat := catalog.NewStaticCatalog()
    sid := cat.AddScreening("A1", time.Date(2026, 9, 2, 8, 0, 0, 0, time.UTC), 50)
    l := ledger.New(kv)
    return New(l, cat, opts...), l, sid
}

func TestClaimValidation(t *testing.T) {
    ctx := context.Background()
    alloc, _, sid := newFixture(t, store.NewMemoryStore())

    if _, err := alloc.Claim(ctx, "missing", 1, "alice"); !errors.Is(err, ErrScreeningNotFound) {
        t.Fatalf("expected ErrScreeningNotFound, got %v", err)
    }
    for _, seat := range []int{0, -1, 51} {
        if _, err := alloc.Claim(ctx, sid, seat, "alice"); !errors.Is(err, ErrSeatOutOfRange) {
            t.Fatalf("seat %d: expected ErrSeatOutOfRange, got %v", seat, err)
        }
    }
}

func TestClaimAndListAvailable(t *testing.T) {
    ctx := context.Background()
    alloc, _, sid := newFixture(t, store.NewMemoryStore())

    rec, err := alloc.Claim(ctx, sid, 3, "alice")
    if err != nil {
        t.Fatalf("claim: %v", err)
    }
    seats, err := alloc.ListAvailable(ctx, sid)
    if err != nil {
        t.Fatal(err)
    }
    if len(seats) != 49 {
        t.Fatalf("expected 49 available seats, got %d", len(seats))
    }
    for _, s := range seats {
        if s == 3 {
            t.Fatal("claimed seat 3 listed as available")
        }
    }

    if _, err := alloc.Claim(ctx, sid, 3, "bob"); !errors.Is(err, ledger.ErrSeatTaken) {
        t.Fatalf("expected ErrSeatTaken, got %v", err)
    }
    got, err := alloc.Get(ctx, rec.ReservationID)
    if err != nil || got.HolderID != "alice" {
        t.Fatalf("losing claim disturbed the record: %+v err=%v", got, err)
    }
}

func TestMove(t *testing.T) {
    ctx := context.Background()
    alloc, _, sid := newFixture(t, store.NewMemoryStore())

    old, err := alloc.Claim(ctx, sid, 3, "alice")
    if err != nil {
        t.Fatal(err)
    }
    res, err := alloc.Move(ctx, old.ReservationID, 40)
    if err != nil {
        t.Fatalf("move: %v", err)
    }
    if !res.Compensated {
        t.Fatal("clean move reported a compensation warning")
    }
    if res.Reservation.SeatNumber != 40 || res.Reservation.HolderID != "alice" {
        t.Fatalf("unexpected new reservation: %+v", res.Reservation)
    }
    if res.Reservation.ReservationID == old.ReservationID {
        t.Fatal("move must mint a fresh reservation id")
    }
    if _, err := alloc.Get(ctx, old.ReservationID); !errors.Is(err, ledger.ErrReservationNotFound) {
        t.Fatalf("old reservation still resolves: %v", err)
    }

    seats, err := alloc.ListAvailable(ctx, sid)
    if err != nil {
        t.Fatal(err)
    }
    has3, has40 := false, false
    for _, s := range seats {
        if s == 3 {
            has3 = true
        }
        if s == 40 {
            has40 = true
        }
    }
    if !has3 || has40 {
        t.Fatalf("after move: seat 3 available=%v seat 40 available=%v", has3, has40)
    }
}

func TestMoveAbortsWhenTargetTaken(t *testing.T) {
    ctx := context.Background()
    alloc, _, sid := newFixture(t, store.NewMemoryStore())

    old, err := alloc.Claim(ctx, sid, 3, "alice")
    if err != nil {
        t.Fatal(err)
    }
    if _, err := alloc.Claim(ctx, sid, 40, "bob"); err != nil {
        t.Fatal(err)
    }

    if _, err := alloc.Move(ctx, old.ReservationID, 40); !errors.Is(err, ledger.ErrSeatTaken) {
        t.Fatalf("expected ErrSeatTaken, got %v", err)
    }
    // The old seat must be untouched: a failed move never leaves the
    // holder seatless.
    got, err := alloc.Get(ctx, old.ReservationID)
    if err != nil || got.SeatNumber != 3 {
        t.Fatalf("old reservation after aborted move: %+v err=%v", got, err)
    }
}

func TestMoveToOwnSeat(t *testing.T) {
    ctx := context.Background()
    alloc, _, sid := newFixture(t, store.NewMemoryStore())

    old, err := alloc.Claim(ctx, sid, 3, "alice")
    if err != nil {
        t.Fatal(err)
    }
    if _, err := alloc.Move(ctx, old.ReservationID, 3); !errors.Is(err, ledger.ErrSeatTaken) {
        t.Fatalf("expected ErrSeatTaken, got %v", err)
    }
}

func TestMoveUnknownReservation(t *testing.T) {
    ctx := context.Background()
    alloc, _, _ := newFixture(t, store.NewMemoryStore())
    if _, err := alloc.Move(ctx, "no-such-id", 5); !errors.Is(err, ledger.ErrReservationNotFound) {
        t.Fatalf("expected ErrReservationNotFound, got %v", err)
    }
}

func TestReleaseIdempotent(t *testing.T) {
    ctx := context.Background()
    alloc, _, sid := newFixture(t, store.NewMemoryStore())

    rec, err := alloc.Claim(ctx, sid, 3, "alice")
    if err != nil {
        t.Fatal(err)
    }
    if err := alloc.Release(ctx, rec.ReservationID); err != nil {
        t.Fatalf("first release: %v", err)
    }
    if err := alloc.Release(ctx, rec.ReservationID); err != nil {
        t.Fatalf("second release must be a no-op success, got %v", err)
    }
    if err := alloc.Release(ctx, "never-existed"); err != nil {
        t.Fatalf("unknown id must be a no-op success, got %v", err)
    }

    seats, err := alloc.ListAvailable(ctx, sid)
    if err != nil {
        t.Fatal(err)
    }
    if len(seats) != 50 {
        t.Fatalf("expected all 50 seats available, got %d", len(seats))
    }
}

func TestMoveCompensationStoreUnavailable(t *testing.T) {
    ctx := context.Background()
    rec := &recorder{}
    fs := &faultStore{KV: store.NewMemoryStore(), failDeleteMatch: 100}
    alloc, l, sid := newFixture(t, fs,
        WithReleasePolicy(2, time.Millisecond),
        WithAnomalyReporter(rec),
    )

    old, err := alloc.Claim(ctx, sid, 3, "alice")
    if err != nil {
        t.Fatal(err)
    }
    res, err := alloc.Move(ctx, old.ReservationID, 40)
    if err != nil {
        t.Fatalf("move must succeed despite failed compensation: %v", err)
    }
    if res.Compensated {
        t.Fatal("expected a compensation warning")
    }
    kinds := rec.kinds()
    if len(kinds) != 1 || kinds[0] != "unreleased" {
        t.Fatalf("expected one 'unreleased' anomaly, got %v", kinds)
    }
    // The old record really is still there.
    occupied, err := l.ListOccupied(ctx, sid)
    if err != nil {
        t.Fatal(err)
    }
    if len(occupied) != 2 {
        t.Fatalf("expected seats 3 and 40 occupied, got %v", occupied)
    }
}

func TestMoveStaleRelease(t *testing.T) {
    ctx := context.Background()
    rec := &recorder{}
    fs := &faultStore{KV: store.NewMemoryStore()}
    alloc, l, sid := newFixture(t, fs, WithAnomalyReporter(rec))

    old, err := alloc.Claim(ctx, sid, 3, "alice")
    if err != nil {
        t.Fatal(err)
    }
    // Between the move's claim phase and its release phase, a racer
    // retires the old record and re-claims the seat.
    fs.mu.Lock()
    fs.afterPutIfAbsent = func() {
        if err := l.TryRelease(ctx, sid, 3, old.ReservationID); err != nil {
            t.Errorf("racer release: %v", err)
        }
        if _, err := l.TryClaim(ctx, sid, 3, "mallory"); err != nil {
            t.Errorf("racer claim: %v", err)
        }
    }
    fs.mu.Unlock()

    res, err := alloc.Move(ctx, old.ReservationID, 40)
    if err != nil {
        t.Fatalf("move: %v", err)
    }
    if res.Compensated {
        t.Fatal("stale release must be reported as uncompensated")
    }
    kinds := rec.kinds()
    if len(kinds) != 1 || kinds[0] != "stale" {
        t.Fatalf("expected one 'stale' anomaly, got %v", kinds)
    }
    // Mallory's record on the old seat survives.
    occupants, err := l.Occupants(ctx, sid)
    if err != nil {
        t.Fatal(err)
    }
    if got := occupants[3]; got == nil || got.HolderID != "mallory" {
        t.Fatalf("seat 3 occupant: %+v", got)
    }
}
