package handler

import (
    "errors"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/screening-admission/internal/allocator"
    "github.com/iliyamo/screening-admission/internal/catalog"
    "github.com/iliyamo/screening-admission/internal/ledger"
    "github.com/iliyamo/screening-admission/internal/middleware"
    "github.com/iliyamo/screening-admission/internal/model"
    "github.com/iliyamo/screening-admission/internal/queue"
    queue_publisher "github.com/iliyamo/screening-admission/internal/service"
)

// ReservationHandler exposes the four reservation operations over
// HTTP: claim a seat, move to another seat, view a reservation and
// list available seats.  JWT middleware has already authenticated the
// holder; every outcome of the allocator maps to a distinct status so
// clients can tell contention (409) from infrastructure faults (503).
type ReservationHandler struct {
    Alloc   *allocator.Allocator
    Catalog allocator.Catalog
}

// NewReservationHandler constructs the handler.  Both dependencies
// must be non-nil.
func NewReservationHandler(alloc *allocator.Allocator, cat allocator.Catalog) *ReservationHandler {
    if alloc == nil || cat == nil {
        panic("nil dependency passed to NewReservationHandler")
    }
    return &ReservationHandler{Alloc: alloc, Catalog: cat}
}

// claimRequest addresses a screening either directly by id or the way
// the box office does: room name plus date and time of the showing.
type claimRequest struct {
    ScreeningID string `json:"screening_id"`
    Room        string `json:"room"`
    Date        string `json:"date"` // YYYY-MM-DD
    Time        string `json:"time"` // HH:MM
    SeatNumber  int    `json:"seat_number"`
}

// resolveScreeningID turns the request's addressing fields into a
// screening id, resolving room/date/time through the catalog when no
// id was supplied.
func (h *ReservationHandler) resolveScreeningID(c echo.Context, req *claimRequest) (string, error) {
    if req.ScreeningID != "" {
        return req.ScreeningID, nil
    }
    if req.Room == "" || req.Date == "" || req.Time == "" {
        return "", errors.New("either screening_id or room, date and time are required")
    }
    at, err := time.Parse("2006-01-02 15:04", req.Date+" "+req.Time)
    if err != nil {
        return "", errors.New("invalid date or time format")
    }
    return h.Catalog.ResolveScreening(c.Request().Context(), req.Room, at)
}

// ClaimSeat handles POST /v1/reservations.  Exactly one of any set of
// concurrent claims for the same seat wins; the rest get 409.  The
// caller decides whether to retry with a different seat.
func (h *ReservationHandler) ClaimSeat(c echo.Context) error {
    holderID := middleware.HolderID(c)
    if holderID == "" {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    var req claimRequest
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    screeningID, err := h.resolveScreeningID(c, &req)
    if err != nil {
        if errors.Is(err, catalog.ErrRoomNotFound) || errors.Is(err, catalog.ErrScreeningNotFound) {
            return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
        }
        return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
    }

    rec, err := h.Alloc.Claim(c.Request().Context(), screeningID, req.SeatNumber, holderID)
    if err != nil {
        return claimError(c, err)
    }
    publishConfirmed(c, rec)
    return c.JSON(http.StatusCreated, echo.Map{"reservation": rec})
}

// moveRequest carries the target seat of a move.
type moveRequest struct {
    SeatNumber int `json:"seat_number"`
}

// MoveSeat handles POST /v1/reservations/:id/move.  On success the old
// reservation is retired and a new one returned; when the old seat
// could not be confirmed released the response carries a
// compensation_warning so the client knows an anomaly was recorded.
func (h *ReservationHandler) MoveSeat(c echo.Context) error {
    holderID := middleware.HolderID(c)
    if holderID == "" {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    reservationID := c.Param("id")
    var req moveRequest
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }

    res, err := h.Alloc.Move(c.Request().Context(), reservationID, req.SeatNumber)
    if err != nil {
        return claimError(c, err)
    }
    publishConfirmed(c, res.Reservation)
    return c.JSON(http.StatusOK, echo.Map{
        "reservation":          res.Reservation,
        "compensation_warning": !res.Compensated,
    })
}

// GetReservation handles GET /v1/reservations/:id.
func (h *ReservationHandler) GetReservation(c echo.Context) error {
    rec, err := h.Alloc.Get(c.Request().Context(), c.Param("id"))
    if err != nil {
        if errors.Is(err, ledger.ErrReservationNotFound) {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
        }
        if allocator.StoreUnavailable(err) {
            return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "store unavailable"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to fetch reservation"})
    }
    return c.JSON(http.StatusOK, echo.Map{"reservation": rec})
}

// ReleaseReservation handles DELETE /v1/reservations/:id.  Releasing
// an id that is already gone is a success, so clients can retry after
// an ambiguous outcome without fear.
func (h *ReservationHandler) ReleaseReservation(c echo.Context) error {
    if middleware.HolderID(c) == "" {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    if err := h.Alloc.Release(c.Request().Context(), c.Param("id")); err != nil {
        if allocator.StoreUnavailable(err) {
            return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "store unavailable"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to release reservation"})
    }
    return c.NoContent(http.StatusNoContent)
}

// ListAvailableSeats handles GET /v1/screenings/:id/seats.  The answer
// is a snapshot, not a promise: any listed seat can be taken by the
// time the client claims it.
func (h *ReservationHandler) ListAvailableSeats(c echo.Context) error {
    seats, err := h.Alloc.ListAvailable(c.Request().Context(), c.Param("id"))
    if err != nil {
        if errors.Is(err, allocator.ErrScreeningNotFound) {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "screening not found"})
        }
        if allocator.StoreUnavailable(err) {
            return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "store unavailable"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to list seats"})
    }
    return c.JSON(http.StatusOK, echo.Map{"available_seats": seats})
}

// ResolveScreening handles GET /v1/screenings/resolve.  It lets
// clients translate room/date/time into a screening id up front.
func (h *ReservationHandler) ResolveScreening(c echo.Context) error {
    room := c.QueryParam("room")
    date := c.QueryParam("date")
    tm := c.QueryParam("time")
    if room == "" || date == "" || tm == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "room, date and time are required"})
    }
    at, err := time.Parse("2006-01-02 15:04", date+" "+tm)
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid date or time format"})
    }
    id, err := h.Catalog.ResolveScreening(c.Request().Context(), room, at)
    if err != nil {
        if errors.Is(err, catalog.ErrRoomNotFound) || errors.Is(err, catalog.ErrScreeningNotFound) {
            return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to resolve screening"})
    }
    return c.JSON(http.StatusOK, echo.Map{"screening_id": id})
}

// claimError maps allocator outcomes shared by claim and move.
func claimError(c echo.Context, err error) error {
    switch {
    case errors.Is(err, ledger.ErrSeatTaken):
        return c.JSON(http.StatusConflict, echo.Map{"error": "seat taken"})
    case errors.Is(err, ledger.ErrReservationNotFound):
        return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
    case errors.Is(err, allocator.ErrScreeningNotFound):
        return c.JSON(http.StatusNotFound, echo.Map{"error": "screening not found"})
    case errors.Is(err, allocator.ErrSeatOutOfRange):
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "seat number out of range"})
    case allocator.StoreUnavailable(err):
        return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "store unavailable"})
    default:
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "operation failed"})
    }
}

// publishConfirmed emits the confirmation event.  Failures are already
// logged by the publisher and never affect the response.
func publishConfirmed(c echo.Context, rec *model.Reservation) {
    _ = queue_publisher.PublishReservationConfirmed(c.Request().Context(), queue.ReservationConfirmedEvent{
        ReservationID: rec.ReservationID,
        HolderID:      rec.HolderID,
        ScreeningID:   rec.ScreeningID,
        SeatNumber:    rec.SeatNumber,
        ConfirmedAt:   rec.CreatedAt.Format(time.RFC3339),
    })
}
