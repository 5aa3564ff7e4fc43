package main // entry point for the admission API server

import (
    "context"
    "log"
    "time"

    "github.com/joho/godotenv"
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/screening-admission/internal/allocator"
    "github.com/iliyamo/screening-admission/internal/catalog"
    "github.com/iliyamo/screening-admission/internal/config"
    "github.com/iliyamo/screening-admission/internal/database"
    "github.com/iliyamo/screening-admission/internal/handler"
    "github.com/iliyamo/screening-admission/internal/ledger"
    "github.com/iliyamo/screening-admission/internal/queue"
    "github.com/iliyamo/screening-admission/internal/router"
    queue_publisher "github.com/iliyamo/screening-admission/internal/service"
    "github.com/iliyamo/screening-admission/internal/store"
)

func main() {
    _ = godotenv.Load() // optional .env for local development
    cfg := config.Load()

    db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
    if err != nil {
        log.Fatalf("catalog database: %v", err)
    }
    cat := catalog.NewMySQLCatalog(db)

    // Create tomorrow's screenings at bootstrap, like the box office
    // opening the schedule; repeated starts are idempotent.
    ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
    if _, err := catalog.EnsureSchedule(ctx, db, time.Now()); err != nil {
        log.Fatalf("schedule bootstrap: %v", err)
    }
    cancel()

    rdb := config.NewRedisClient()
    if rdb == nil {
        // The ledger cannot arbitrate seats without its store.
        log.Fatal("redis unreachable; the seat ledger requires it")
    }

    kv := store.NewRedisStore(rdb, cfg.StoreOpTimeout)
    alloc := allocator.New(ledger.New(kv), cat,
        allocator.WithReleasePolicy(cfg.ReleaseAttempts, cfg.ReleaseBackoff),
        allocator.WithAnomalyReporter(queue_publisher.AnomalyPublisher{}),
    )

    go func() {
        if err := queue.StartReservationConsumer(); err != nil {
            log.Printf("reservation consumer stopped: %v", err)
        }
    }()

    e := echo.New()
    router.RegisterRoutes(e)
    router.RegisterReservations(e, handler.NewReservationHandler(alloc, cat), cfg.JWTSecret, config.LoadRateLimitConfig(), rdb)

    addr := ":" + cfg.Port
    log.Printf("listening on %s (env=%s)", addr, cfg.Env)
    if err := e.Start(addr); err != nil {
        log.Fatal(err)
    }
}
