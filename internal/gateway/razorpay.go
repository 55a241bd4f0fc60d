// Package gateway contains the outbound payment-gateway collaborators.
// The production implementation talks to Razorpay; a stub is available
// for local development where no gateway credentials exist.
package gateway

import (
	"context"
	"fmt"

	razorpay "github.com/razorpay/razorpay-go"
	"github.com/razorpay/razorpay-go/utils"
	"github.com/sirupsen/logrus"

	"github.com/movieon/reservation-core/internal/booking"
)

// Razorpay submits payment orders to the Razorpay API. The gateway
// reports settlement asynchronously through the payment-callback
// webhook; Submit only creates the order.
type Razorpay struct {
	client        *razorpay.Client
	webhookSecret string
	log           *logrus.Logger
}

// NewRazorpay builds a gateway from API credentials. webhookSecret is
// the shared secret used to verify callback signatures.
func NewRazorpay(keyID, keySecret, webhookSecret string, log *logrus.Logger) *Razorpay {
	return &Razorpay{
		client:        razorpay.NewClient(keyID, keySecret),
		webhookSecret: webhookSecret,
		log:           log,
	}
}

// Submit creates a Razorpay order for the payment attempt. The merchant
// reference travels as the order receipt so the webhook can be
// correlated back to the attempt.
func (g *Razorpay) Submit(ctx context.Context, req booking.PaymentRequest) error {
	data := map[string]interface{}{
		"amount":   req.AmountCents,
		"currency": req.Currency,
		"receipt":  req.MerchantRef,
		"notes": map[string]interface{}{
			"reservation_id": fmt.Sprintf("%d", req.ReservationID),
		},
	}
	order, err := g.client.Order.Create(data, nil)
	if err != nil {
		return fmt.Errorf("create razorpay order: %w", err)
	}
	g.log.WithFields(logrus.Fields{
		"reservation_id": req.ReservationID,
		"merchant_ref":   req.MerchantRef,
		"order_id":       order["id"],
	}).Info("razorpay order created")
	return nil
}

// VerifySignature checks a webhook payload against its signature
// header using the configured webhook secret.
func (g *Razorpay) VerifySignature(body []byte, signature string) bool {
	return utils.VerifyWebhookSignature(string(body), signature, g.webhookSecret)
}
