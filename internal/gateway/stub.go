package gateway

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/movieon/reservation-core/internal/booking"
)

// Stub is the development gateway used when no Razorpay credentials
// are configured. Submit only logs the order; settlement is then
// driven by posting the callback endpoint by hand (or from an
// integration test).
type Stub struct {
	log *logrus.Logger
}

// NewStub returns a logging-only gateway.
func NewStub(log *logrus.Logger) *Stub { return &Stub{log: log} }

func (g *Stub) Submit(ctx context.Context, req booking.PaymentRequest) error {
	g.log.WithFields(logrus.Fields{
		"reservation_id": req.ReservationID,
		"merchant_ref":   req.MerchantRef,
		"amount_cents":   req.AmountCents,
		"currency":       req.Currency,
		"method":         string(req.Method),
	}).Info("stub gateway accepted payment order")
	return nil
}

// VerifySignature always passes for the stub; callbacks in dev carry
// no signature.
func (g *Stub) VerifySignature(body []byte, signature string) bool { return true }
