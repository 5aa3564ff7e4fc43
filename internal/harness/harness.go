// Package harness drives the allocator from many independent workers
// and verifies the at-most-one-owner invariant afterwards.  It is a
// validation tool, not a production dependency: its scenarios are the
// contract the ledger must satisfy under load.
package harness

import (
    "context"
    "errors"
    "fmt"
    "math/rand"
    "sync"
    "sync/atomic"

    "github.com/iliyamo/screening-admission/internal/allocator"
    "github.com/iliyamo/screening-admission/internal/ledger"
    "github.com/iliyamo/screening-admission/internal/model"
)

// Config shapes a run.  Every worker performs OpsPerWorker operations,
// each a randomized claim, move or release against a random screening
// and seat.  Seed makes a run reproducible.
type Config struct {
    Workers      int
    OpsPerWorker int
    Screenings   []string
    Capacity     int
    Seed         int64
}

// Report aggregates per-worker tallies after all workers have joined.
// Workers accumulate privately and the totals are merged at the end,
// so no counter is ever mutated from two goroutines.
type Report struct {
    Claims        int64
    ClaimWins     int64
    SeatTaken     int64
    Moves         int64
    MoveWins      int64
    MoveConflicts int64
    Releases      int64
    StoreFaults   int64
    Anomalies     int64
}

// Harness owns the allocator under test and a direct line to the
// ledger for verification reads.
type Harness struct {
    alloc     *allocator.Allocator
    ledger    *ledger.Ledger
    cfg       Config
    anomalies atomic.Int64

    mu       sync.Mutex
    holdings []map[string]*model.Reservation // final per-worker state
}

// New builds a harness around its own allocator so compensation
// anomalies are counted automatically.  Extra allocator options (e.g.
// a tighter release policy) are applied after the reporter.
func New(l *ledger.Ledger, cat allocator.Catalog, cfg Config, opts ...allocator.Option) *Harness {
    h := &Harness{ledger: l, cfg: cfg}
    allOpts := append([]allocator.Option{allocator.WithAnomalyReporter(h)}, opts...)
    h.alloc = allocator.New(l, cat, allOpts...)
    return h
}

// Allocator exposes the allocator under test for scenario setup.
func (h *Harness) Allocator() *allocator.Allocator { return h.alloc }

// ReportAnomaly implements allocator.AnomalyReporter.
func (h *Harness) ReportAnomaly(ctx context.Context, a allocator.Anomaly) {
    h.anomalies.Add(1)
}

// Run launches the workers and blocks until all have finished.  Only
// store faults abort a worker; contention outcomes are tallied and the
// run continues.
func (h *Harness) Run(ctx context.Context) (*Report, error) {
    if h.cfg.Workers <= 0 || len(h.cfg.Screenings) == 0 || h.cfg.Capacity < 1 {
        return nil, errors.New("harness: invalid config")
    }
    reports := make([]Report, h.cfg.Workers)
    h.holdings = make([]map[string]*model.Reservation, h.cfg.Workers)

    var wg sync.WaitGroup
    for w := 0; w < h.cfg.Workers; w++ {
        wg.Add(1)
        go func(w int) {
            defer wg.Done()
            h.worker(ctx, w, &reports[w])
        }(w)
    }
    wg.Wait()

    total := &Report{}
    for i := range reports {
        total.Claims += reports[i].Claims
        total.ClaimWins += reports[i].ClaimWins
        total.SeatTaken += reports[i].SeatTaken
        total.Moves += reports[i].Moves
        total.MoveWins += reports[i].MoveWins
        total.MoveConflicts += reports[i].MoveConflicts
        total.Releases += reports[i].Releases
        total.StoreFaults += reports[i].StoreFaults
    }
    total.Anomalies = h.anomalies.Load()
    return total, ctx.Err()
}

// worker performs the randomized operation mix.  All state it mutates
// is private until the final handoff under the mutex.
func (h *Harness) worker(ctx context.Context, id int, rep *Report) {
    rng := rand.New(rand.NewSource(h.cfg.Seed + int64(id)))
    holderID := fmt.Sprintf("worker-%d", id)
    held := make(map[string]*model.Reservation)

    for op := 0; op < h.cfg.OpsPerWorker; op++ {
        if ctx.Err() != nil {
            break
        }
        screening := h.cfg.Screenings[rng.Intn(len(h.cfg.Screenings))]
        seat := 1 + rng.Intn(h.cfg.Capacity)

        switch action := rng.Intn(3); {
        case action == 0 || len(held) == 0:
            rep.Claims++
            rec, err := h.alloc.Claim(ctx, screening, seat, holderID)
            switch {
            case err == nil:
                rep.ClaimWins++
                held[rec.ReservationID] = rec
            case errors.Is(err, ledger.ErrSeatTaken):
                rep.SeatTaken++
            default:
                rep.StoreFaults++
            }
        case action == 1:
            rep.Moves++
            rid := randomHeld(rng, held)
            res, err := h.alloc.Move(ctx, rid, seat)
            switch {
            case err == nil:
                delete(held, rid)
                held[res.Reservation.ReservationID] = res.Reservation
                rep.MoveWins++
            case errors.Is(err, ledger.ErrSeatTaken):
                rep.MoveConflicts++
            case errors.Is(err, ledger.ErrReservationNotFound):
                // Retired underneath us by an earlier stale move.
                delete(held, rid)
            default:
                rep.StoreFaults++
            }
        default:
            rep.Releases++
            rid := randomHeld(rng, held)
            if err := h.alloc.Release(ctx, rid); err != nil {
                rep.StoreFaults++
                continue
            }
            delete(held, rid)
        }
    }

    h.mu.Lock()
    h.holdings[id] = held
    h.mu.Unlock()
}

func randomHeld(rng *rand.Rand, held map[string]*model.Reservation) string {
    n := rng.Intn(len(held))
    for rid := range held {
        if n == 0 {
            return rid
        }
        n--
    }
    return ""
}

// Verify checks the post-run invariants at a quiescent point: record
// integrity per seat, global uniqueness of reservation ids,
// conservation of the id index against the occupied seats, and that no
// worker's reservation id resolves to another holder's record.
func (h *Harness) Verify(ctx context.Context) error {
    seenRID := make(map[string]string) // rid -> "screening/seat"
    occupied := 0
    for _, screening := range h.cfg.Screenings {
        occupants, err := h.ledger.Occupants(ctx, screening)
        if err != nil {
            return err
        }
        occupied += len(occupants)
        for seat, rec := range occupants {
            if rec.ScreeningID != screening || rec.SeatNumber != seat {
                return fmt.Errorf("record under %s seat %d names %s seat %d", screening, seat, rec.ScreeningID, rec.SeatNumber)
            }
            at := fmt.Sprintf("%s/%d", screening, seat)
            if prev, dup := seenRID[rec.ReservationID]; dup {
                return fmt.Errorf("reservation %s active at both %s and %s", rec.ReservationID, prev, at)
            }
            seenRID[rec.ReservationID] = at
            // A seat whose id the index cannot resolve has no release
            // path; it must never survive a run.
            if _, err := h.ledger.Lookup(ctx, rec.ReservationID); errors.Is(err, ledger.ErrReservationNotFound) {
                return fmt.Errorf("seat %s held by unresolvable reservation %s", at, rec.ReservationID)
            } else if err != nil {
                return err
            }
        }
    }

    // Conservation is counted from the id index, not from the seat
    // records themselves, so seat/index divergence is what it catches.
    // Index entries whose seat record moved on are stale leftovers of
    // an interrupted release and do not count as active.
    indexed, err := h.ledger.IndexedReservations(ctx)
    if err != nil {
        return err
    }
    active := 0
    for rid := range indexed {
        _, err := h.ledger.Lookup(ctx, rid)
        switch {
        case err == nil:
            active++
        case errors.Is(err, ledger.ErrReservationNotFound):
        default:
            return err
        }
    }
    if active != occupied {
        return fmt.Errorf("conservation violated: %d active reservations for %d occupied seats", active, occupied)
    }

    for w, held := range h.holdings {
        for rid, mine := range held {
            rec, err := h.ledger.Lookup(ctx, rid)
            if errors.Is(err, ledger.ErrReservationNotFound) {
                continue // retired by a stale concurrent move; allowed
            }
            if err != nil {
                return err
            }
            if rec.HolderID != mine.HolderID {
                return fmt.Errorf("worker %d reservation %s resolved to foreign holder %s", w, rid, rec.HolderID)
            }
        }
    }
    return nil
}
