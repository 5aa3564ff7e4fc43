package catalog

import (
    "context"
    "sync"
    "time"

    "github.com/google/uuid"

    "github.com/iliyamo/screening-admission/internal/model"
)

// StaticCatalog is an in-memory catalog used by the admission harness
// and tests.  Screenings are added up front and never change, matching
// the immutability the production catalog guarantees.
type StaticCatalog struct {
    mu         sync.RWMutex
    screenings map[string]model.Screening
    rooms      map[string]model.Room
}

// NewStaticCatalog returns an empty catalog.
func NewStaticCatalog() *StaticCatalog {
    return &StaticCatalog{
        screenings: make(map[string]model.Screening),
        rooms:      make(map[string]model.Room),
    }
}

// AddScreening registers a screening in a room named roomName with the
// given capacity, creating the room on first use, and returns the new
// screening id.
func (c *StaticCatalog) AddScreening(roomName string, startsAt time.Time, capacity int) string {
    c.mu.Lock()
    defer c.mu.Unlock()
    var roomID string
    for id, r := range c.rooms {
        if r.Name == roomName {
            roomID = id
            break
        }
    }
    if roomID == "" {
        roomID = uuid.NewString()
        c.rooms[roomID] = model.Room{ID: roomID, Name: roomName, SeatCount: capacity}
    }
    id := uuid.NewString()
    c.screenings[id] = model.Screening{ID: id, RoomID: roomID, ScreeningTime: startsAt.UTC()}
    return id
}

// ScreeningIDs returns every registered screening id.
func (c *StaticCatalog) ScreeningIDs() []string {
    c.mu.RLock()
    defer c.mu.RUnlock()
    ids := make([]string, 0, len(c.screenings))
    for id := range c.screenings {
        ids = append(ids, id)
    }
    return ids
}

func (c *StaticCatalog) ScreeningExists(ctx context.Context, screeningID string) (bool, error) {
    c.mu.RLock()
    defer c.mu.RUnlock()
    _, ok := c.screenings[screeningID]
    return ok, nil
}

func (c *StaticCatalog) SeatCapacity(ctx context.Context, screeningID string) (int, error) {
    c.mu.RLock()
    defer c.mu.RUnlock()
    s, ok := c.screenings[screeningID]
    if !ok {
        return 0, ErrScreeningNotFound
    }
    return c.rooms[s.RoomID].SeatCount, nil
}

func (c *StaticCatalog) ResolveScreening(ctx context.Context, roomName string, startsAt time.Time) (string, error) {
    c.mu.RLock()
    defer c.mu.RUnlock()
    var roomID string
    for id, r := range c.rooms {
        if r.Name == roomName {
            roomID = id
            break
        }
    }
    if roomID == "" {
        return "", ErrRoomNotFound
    }
    want := startsAt.UTC()
    for id, s := range c.screenings {
        if s.RoomID == roomID && s.ScreeningTime.Equal(want) {
            return id, nil
        }
    }
    return "", ErrScreeningNotFound
}
