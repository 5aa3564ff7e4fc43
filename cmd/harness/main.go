package main // concurrent admission harness, runnable standalone

import (
    "context"
    "flag"
    "log"
    "time"

    "github.com/joho/godotenv"

    "github.com/iliyamo/screening-admission/internal/catalog"
    "github.com/iliyamo/screening-admission/internal/config"
    "github.com/iliyamo/screening-admission/internal/harness"
    "github.com/iliyamo/screening-admission/internal/ledger"
    "github.com/iliyamo/screening-admission/internal/store"
)

func main() {
    workers := flag.Int("workers", 8, "number of concurrent workers")
    ops := flag.Int("ops", 5000, "operations per worker")
    rooms := flag.Int("rooms", 7, "number of rooms")
    showings := flag.Int("showings", 7, "showings per room")
    capacity := flag.Int("capacity", 50, "seats per room")
    seed := flag.Int64("seed", time.Now().UnixNano(), "rng seed for reproducible runs")
    useRedis := flag.Bool("redis", false, "run against a live Redis instead of the in-memory store")
    flag.Parse()

    var kv store.KV = store.NewMemoryStore()
    if *useRedis {
        _ = godotenv.Load()
        rdb := config.NewRedisClient()
        if rdb == nil {
            log.Fatal("redis unreachable")
        }
        kv = store.NewRedisStore(rdb, 2*time.Second)
    }

    cat := catalog.NewStaticCatalog()
    day := time.Now().UTC().AddDate(0, 0, 1).Truncate(24 * time.Hour).Add(catalog.FirstShowing)
    for r := 0; r < *rooms; r++ {
        name := roomName(r)
        for s := 0; s < *showings; s++ {
            cat.AddScreening(name, day.Add(time.Duration(s)*catalog.ShowingInterval), *capacity)
        }
    }

    l := ledger.New(kv)
    h := harness.New(l, cat, harness.Config{
        Workers:      *workers,
        OpsPerWorker: *ops,
        Screenings:   cat.ScreeningIDs(),
        Capacity:     *capacity,
        Seed:         *seed,
    })

    start := time.Now()
    report, err := h.Run(context.Background())
    if err != nil {
        log.Fatalf("harness run: %v", err)
    }
    log.Printf("harness: %d workers x %d ops in %s", *workers, *ops, time.Since(start).Round(time.Millisecond))
    log.Printf("harness: claims=%d wins=%d taken=%d moves=%d movewins=%d conflicts=%d releases=%d faults=%d anomalies=%d",
        report.Claims, report.ClaimWins, report.SeatTaken,
        report.Moves, report.MoveWins, report.MoveConflicts,
        report.Releases, report.StoreFaults, report.Anomalies)

    if err := h.Verify(context.Background()); err != nil {
        log.Fatalf("INVARIANT VIOLATED: %v", err)
    }
    log.Print("harness: all invariants held")
}

// roomName yields A1..A9, then B1.. beyond; the default run stays
// within the original A1..A7 layout.
func roomName(i int) string {
    return string(rune('A'+i/9)) + string(rune('1'+i%9))
}
