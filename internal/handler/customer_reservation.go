package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/movieon/reservation-core/internal/booking"
	"github.com/movieon/reservation-core/internal/model"
	"github.com/movieon/reservation-core/internal/repository"
)

// CustomerHandler serves the checkout flow on behalf of customers:
// holding seats, cancelling reservations and viewing them. JWT auth
// and the CUSTOMER role guard run before every method.
type CustomerHandler struct {
	Holds        HoldService
	Coordinator  PaymentService
	Ledger       LedgerService
	Reservations ReservationViews
	Log          *logrus.Logger
}

// NewCustomerHandler constructs a CustomerHandler. All dependencies
// must be non-nil.
func NewCustomerHandler(holds HoldService, coord PaymentService, ledger LedgerService, reservations ReservationViews, log *logrus.Logger) *CustomerHandler {
	if holds == nil || coord == nil || ledger == nil || reservations == nil {
		panic("nil dependency passed to NewCustomerHandler")
	}
	return &CustomerHandler{
		Holds:        holds,
		Coordinator:  coord,
		Ledger:       ledger,
		Reservations: reservations,
		Log:          log,
	}
}

// HoldSeats handles POST /v1/screenings/:id/hold. The body carries the
// requested seat ids and the payment method. On success the seats are
// LOCKED, a pending reservation exists and a payment order has been
// opened; the client then waits for the gateway outcome. When any seat
// cannot be locked the whole request fails with 409 and the list of
// unavailable seats.
func (h *CustomerHandler) HoldSeats(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	screeningID, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid screening id"})
	}
	var body struct {
		SeatIDs []uint64 `json:"seat_ids"`
		Method  string   `json:"method"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if len(body.SeatIDs) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "seat_ids is required"})
	}

	ctx := c.Request().Context()
	res, err := h.Holds.TryHold(ctx, booking.HoldInput{
		ScreeningID: screeningID,
		SeatIDs:     body.SeatIDs,
		UserID:      userID,
	})
	if err != nil {
		var unavailable *repository.SeatUnavailableError
		switch {
		case errors.As(err, &unavailable):
			return c.JSON(http.StatusConflict, echo.Map{
				"error":       "seats unavailable",
				"unavailable": unavailable.SeatIDs,
			})
		case errors.Is(err, repository.ErrScreeningNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "screening not found"})
		case errors.Is(err, booking.ErrScreeningNotBookable):
			return c.JSON(http.StatusConflict, echo.Map{"error": "screening not bookable"})
		}
		h.Log.WithError(err).Error("hold failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}

	payment, err := h.Coordinator.Begin(ctx, res, model.PaymentMethod(body.Method))
	if err != nil {
		// The hold stands; the sweeper reclaims it if the client never
		// retries payment. Still report the failure.
		h.Log.WithError(err).WithField("reservation_id", res.ID).Error("payment begin failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to start payment"})
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"reservation_id":     res.ID,
		"hold_token":         res.HoldToken,
		"expires_at":         res.HoldExpiresAt.UTC().Format(time.RFC3339),
		"total_amount_cents": res.TotalAmountCents,
		"merchant_ref":       payment.MerchantRef,
	})
}

// Cancel handles POST /v1/reservations/:id/cancel. Cancelling a
// pending hold frees its seats immediately; cancelling a confirmed
// reservation is the refund path. Losing the race against a concurrent
// transition returns 409.
func (h *CustomerHandler) Cancel(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	ctx := c.Request().Context()
	if _, err := h.Reservations.GetByIDForUser(ctx, id, userID); err != nil {
		switch {
		case errors.Is(err, repository.ErrReservationNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
		case errors.Is(err, repository.ErrForbidden):
			return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}

	if err := h.Ledger.Release(ctx, id, model.ReleaseUserCancel); err != nil {
		if errors.Is(err, repository.ErrStaleTransition) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "reservation can no longer be cancelled"})
		}
		h.Log.WithError(err).WithField("reservation_id", id).Error("cancel failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"status": model.ReservationCancelled})
}

// Get handles GET /v1/reservations/:id and returns the reservation with
// its screening and seats, enforcing ownership.
func (h *CustomerHandler) Get(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	detail, err := h.Reservations.DetailByIDForUser(c.Request().Context(), id, userID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrReservationNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
		case errors.Is(err, repository.ErrForbidden):
			return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	return c.JSON(http.StatusOK, detail)
}

// ListMine handles GET /v1/my-reservations.
func (h *CustomerHandler) ListMine(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	details, err := h.Reservations.ListByUser(c.Request().Context(), userID)
	if err != nil {
		h.Log.WithError(err).Error("list reservations failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	if details == nil {
		details = []repository.ReservationDetail{}
	}
	return c.JSON(http.StatusOK, echo.Map{"reservations": details})
}
