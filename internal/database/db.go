package database

import (
    "context"
    "database/sql"
    "fmt"
    "time"

    _ "github.com/go-sql-driver/mysql"
)

// Open connects to the catalog MySQL database and verifies the
// connection.  The admission engine only reads rooms and screenings
// from it, so the pool is kept small.
func Open(user, pass, host, port, name string) (*sql.DB, error) {
    auth := user
    if pass != "" {
        auth = fmt.Sprintf("%s:%s", user, pass)
    }
    // parseTime=true -> DATETIME -> time.Time | loc=UTC keeps times consistent
    dsn := fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
        auth, host, port, name)

    db, err := sql.Open("mysql", dsn)
    if err != nil {
        return nil, err
    }

    db.SetMaxOpenConns(10)
    db.SetMaxIdleConns(10)
    db.SetConnMaxLifetime(30 * time.Minute)

    ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
    defer cancel()
    if err := db.PingContext(ctx); err != nil {
        return nil, err
    }
    return db, nil
}
