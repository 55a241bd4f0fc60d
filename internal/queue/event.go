// Package queue defines the message payloads exchanged over the broker
// and the background consumer that turns them into log lines.
package queue

// Queue names for reservation lifecycle events.
const (
	ConfirmedQueueName = "reservation.confirmed"
	ReleasedQueueName  = "reservation.released"
)

// ReservationConfirmedEvent is published when a reservation settles.
// It carries enough information for downstream consumers (notification,
// analytics) to act without querying the primary database.
type ReservationConfirmedEvent struct {
	ReservationID    uint64   `json:"reservation_id"`
	UserID           uint64   `json:"user_id"`
	ScreeningID      uint64   `json:"screening_id"`
	SeatIDs          []uint64 `json:"seat_ids"`
	TotalAmountCents uint32   `json:"total_amount_cents"`
	PaymentID        uint64   `json:"payment_id"`
	ConfirmedAt      string   `json:"confirmed_at"`
}

// ReservationReleasedEvent is published when a reservation is released,
// whether by explicit cancel, gateway failure or sweeper expiry.
type ReservationReleasedEvent struct {
	ReservationID uint64 `json:"reservation_id"`
	UserID        uint64 `json:"user_id"`
	ScreeningID   uint64 `json:"screening_id"`
	Reason        string `json:"reason"`
	ReleasedAt    string `json:"released_at"`
}
