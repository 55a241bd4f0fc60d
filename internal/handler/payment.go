package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/movieon/reservation-core/internal/booking"
	"github.com/movieon/reservation-core/internal/repository"
)

// SignatureVerifier checks a webhook body against its signature
// header. Both gateway implementations provide one.
type SignatureVerifier interface {
	VerifySignature(body []byte, signature string) bool
}

// PaymentHandler receives the gateway's asynchronous settlement
// callbacks. It is the only inbound path that can confirm a
// reservation.
type PaymentHandler struct {
	Coordinator PaymentService
	Verifier    SignatureVerifier
	Log         *logrus.Logger
}

// NewPaymentHandler constructs a PaymentHandler.
func NewPaymentHandler(coord PaymentService, verifier SignatureVerifier, log *logrus.Logger) *PaymentHandler {
	if coord == nil || verifier == nil {
		panic("nil dependency passed to NewPaymentHandler")
	}
	return &PaymentHandler{Coordinator: coord, Verifier: verifier, Log: log}
}

// Callback handles POST /v1/payments/callback. The response tells the
// gateway what happened to the money: "settled" when the reservation
// confirmed, "rejected" when the attempt failed its checks and the
// seats were released, "refunded" when a success landed after the hold
// expired. Replays that lost the per-reservation race get 409 so the
// gateway stops retrying.
func (h *PaymentHandler) Callback(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unreadable body"})
	}
	if !h.Verifier.VerifySignature(body, c.Request().Header.Get("X-Webhook-Signature")) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid signature"})
	}

	var in struct {
		ReservationID uint64 `json:"reservation_id"`
		GatewayRef    string `json:"gateway_ref"`
		AmountCents   uint32 `json:"amount_cents"`
		Currency      string `json:"currency"`
		Outcome       string `json:"outcome"`
		Reason        string `json:"reason"`
	}
	if err := json.Unmarshal(body, &in); err != nil || in.ReservationID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid callback payload"})
	}

	err = h.Coordinator.HandleCallback(c.Request().Context(), booking.CallbackInput{
		ReservationID: in.ReservationID,
		GatewayRef:    in.GatewayRef,
		AmountCents:   in.AmountCents,
		Currency:      in.Currency,
		Outcome:       in.Outcome,
		Reason:        in.Reason,
	})
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, echo.Map{"result": "settled"})
	case errors.Is(err, booking.ErrPaymentRejected):
		return c.JSON(http.StatusOK, echo.Map{"result": "rejected"})
	case errors.Is(err, booking.ErrHoldExpired):
		return c.JSON(http.StatusOK, echo.Map{"result": "refunded"})
	case errors.Is(err, repository.ErrStaleTransition):
		return c.JSON(http.StatusConflict, echo.Map{"error": "stale callback"})
	case errors.Is(err, repository.ErrReservationNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
	}
	h.Log.WithError(err).WithField("reservation_id", in.ReservationID).Error("payment callback failed")
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}
