package catalog

import (
    "context"
    "database/sql"
    "errors"
    "log"
    "time"

    "github.com/google/uuid"
)

// Default schedule shape: each room gets ShowingsPerRoom screenings a
// day starting at FirstShowing, spaced ShowingInterval apart (a two
// hour movie plus a ten minute break).
const (
    ShowingsPerRoom = 7
    ShowingInterval = 130 * time.Minute
)

// FirstShowing is the local start of the first screening of the day.
var FirstShowing = 8 * time.Hour

// EnsureSchedule creates tomorrow's screenings for every room,
// skipping showings that already exist so repeated bootstraps are
// idempotent.  It returns the ids of the screenings it created.
func EnsureSchedule(ctx context.Context, db *sql.DB, now time.Time) ([]string, error) {
    rows, err := db.QueryContext(ctx, `SELECT room_id, name FROM rooms`)
    if err != nil {
        return nil, err
    }
    defer rows.Close()

    type room struct{ id, name string }
    var rooms []room
    for rows.Next() {
        var r room
        if err := rows.Scan(&r.id, &r.name); err != nil {
            return nil, err
        }
        rooms = append(rooms, r)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }

    day := now.UTC().AddDate(0, 0, 1).Truncate(24 * time.Hour)
    first := day.Add(FirstShowing)

    var created []string
    for _, r := range rooms {
        for i := 0; i < ShowingsPerRoom; i++ {
            at := first.Add(time.Duration(i) * ShowingInterval)
            ts := at.Format("2006-01-02 15:04:05")

            const check = `SELECT screening_id FROM screenings WHERE room_id = ? AND screening_time = ?`
            var existing string
            err := db.QueryRowContext(ctx, check, r.id, ts).Scan(&existing)
            if err == nil {
                continue
            }
            if !errors.Is(err, sql.ErrNoRows) {
                return created, err
            }

            id := uuid.NewString()
            const ins = `INSERT INTO screenings (screening_id, room_id, screening_time) VALUES (?, ?, ?)`
            if _, err := db.ExecContext(ctx, ins, id, r.id, ts); err != nil {
                return created, err
            }
            log.Printf("catalog: created screening for room %s at %s", r.name, ts)
            created = append(created, id)
        }
    }
    return created, nil
}
