package model

import "time"

// PaymentStatus enumerates the states of one settlement attempt.
// PENDING is the only non-terminal state; a reservation may accumulate
// several attempts but at most one may be PENDING at a time.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"   // submitted to the gateway, awaiting callback
	PaymentFailed    PaymentStatus = "FAILED"    // gateway reported failure or integrity check failed
	PaymentCancelled PaymentStatus = "CANCELLED" // cancelled before or after settlement (refund)
	PaymentPaid      PaymentStatus = "PAID"      // settled and captured
)

// Terminal reports whether no further gateway outcome may be applied.
func (s PaymentStatus) Terminal() bool {
	return s != PaymentPending
}

// PaymentMethod identifies the payment instrument selected at checkout.
type PaymentMethod string

const (
	MethodCard  PaymentMethod = "CARD"
	MethodToss  PaymentMethod = "TOSS"
	MethodKakao PaymentMethod = "KAKAO"
	MethodNaver PaymentMethod = "NAVER"
	MethodPoint PaymentMethod = "POINT"
	MethodOther PaymentMethod = "OTHER"
)

// Payment is one settlement attempt tied to exactly one reservation.
// GatewayRef carries the gateway's own identifier once known and
// MerchantRef is the order reference generated on our side before
// submission.  Cancellation metadata is recorded when the attempt is
// cancelled or refunded.
//
// Fields:
//  ID            – primary key identifier.
//  ReservationID – reservation this attempt settles.
//  UserID        – actor who pays.
//  AmountCents   – amount submitted to the gateway, in cents.
//  Method        – payment instrument.
//  Status        – settlement state.
//  GatewayRef    – gateway-side correlation id (empty until callback).
//  MerchantRef   – our order reference submitted to the gateway.
//  PaidAt        – settlement timestamp (nil until settled).
//  CancelReason  – reason recorded on cancellation (nil otherwise).
//  CancelledAt   – cancellation timestamp (nil otherwise).
//  CreatedAt     – creation timestamp.
//  UpdatedAt     – last update timestamp.
type Payment struct {
	ID            uint64        // payments.id
	ReservationID uint64        // payments.reservation_id
	UserID        uint64        // payments.user_id
	AmountCents   uint32        // payments.amount_cents
	Method        PaymentMethod // payments.method
	Status        PaymentStatus // payments.status
	GatewayRef    string        // payments.gateway_ref
	MerchantRef   string        // payments.merchant_ref
	PaidAt        *time.Time    // payments.paid_at (nullable)
	CancelReason  *string       // payments.cancel_reason (nullable)
	CancelledAt   *time.Time    // payments.cancelled_at (nullable)
	CreatedAt     time.Time     // payments.created_at
	UpdatedAt     time.Time     // payments.updated_at
}
