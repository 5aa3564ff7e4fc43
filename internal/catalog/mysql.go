// Package catalog provides read access to rooms and screenings.  The
// admission engine validates every request against it before touching
// the ledger, and never writes to it outside the bootstrap scheduler.
package catalog

import (
    "context"
    "database/sql"
    "errors"
    "time"
)

// ErrRoomNotFound is returned by ResolveScreening when no room carries
// the given name.
var ErrRoomNotFound = errors.New("room not found")

// ErrScreeningNotFound is returned by ResolveScreening when the room
// has no showing at the given time.
var ErrScreeningNotFound = errors.New("screening not found")

// MySQLCatalog reads rooms and screenings from MySQL.  Timestamps are
// stored and compared in UTC.
type MySQLCatalog struct {
    db *sql.DB
}

// NewMySQLCatalog returns a catalog bound to the provided database.
func NewMySQLCatalog(db *sql.DB) *MySQLCatalog { return &MySQLCatalog{db: db} }

// DB exposes the underlying handle for the scheduler.
func (c *MySQLCatalog) DB() *sql.DB { return c.db }

// ScreeningExists reports whether a screening with the id exists.
func (c *MySQLCatalog) ScreeningExists(ctx context.Context, screeningID string) (bool, error) {
    const q = `SELECT 1 FROM screenings WHERE screening_id = ?`
    var one int
    err := c.db.QueryRowContext(ctx, q, screeningID).Scan(&one)
    if errors.Is(err, sql.ErrNoRows) {
        return false, nil
    }
    if err != nil {
        return false, err
    }
    return true, nil
}

// SeatCapacity returns the seat count of the room hosting the
// screening.  Seat numbers valid for the screening are 1..capacity.
func (c *MySQLCatalog) SeatCapacity(ctx context.Context, screeningID string) (int, error) {
    const q = `SELECT r.seat_count
               FROM screenings s
               JOIN rooms r ON r.room_id = s.room_id
               WHERE s.screening_id = ?`
    var capacity int
    err := c.db.QueryRowContext(ctx, q, screeningID).Scan(&capacity)
    if errors.Is(err, sql.ErrNoRows) {
        return 0, ErrScreeningNotFound
    }
    if err != nil {
        return 0, err
    }
    return capacity, nil
}

// ResolveScreening maps human-entered (room name, start time) to a
// screening id, the way the command surface lets callers address a
// showing without knowing its uuid.
func (c *MySQLCatalog) ResolveScreening(ctx context.Context, roomName string, startsAt time.Time) (string, error) {
    const roomQ = `SELECT room_id FROM rooms WHERE name = ?`
    var roomID string
    err := c.db.QueryRowContext(ctx, roomQ, roomName).Scan(&roomID)
    if errors.Is(err, sql.ErrNoRows) {
        return "", ErrRoomNotFound
    }
    if err != nil {
        return "", err
    }
    const q = `SELECT screening_id FROM screenings WHERE room_id = ? AND screening_time = ?`
    var screeningID string
    err = c.db.QueryRowContext(ctx, q, roomID, startsAt.UTC().Format("2006-01-02 15:04:05")).Scan(&screeningID)
    if errors.Is(err, sql.ErrNoRows) {
        return "", ErrScreeningNotFound
    }
    if err != nil {
        return "", err
    }
    return screeningID, nil
}
