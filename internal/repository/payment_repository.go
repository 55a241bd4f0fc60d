package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/movieon/reservation-core/internal/model"
)

// PaymentRepo provides persistence for settlement attempts. Status
// changes use the same rows-affected compare-and-set discipline as
// reservations so a duplicate gateway callback can never settle the
// same attempt twice.
type PaymentRepo struct {
	store *Store
}

// NewPaymentRepo returns a PaymentRepo bound to the given store.
func NewPaymentRepo(store *Store) *PaymentRepo { return &PaymentRepo{store: store} }

const paymentColumns = `id, reservation_id, user_id, amount_cents, method, status, gateway_ref, merchant_ref, paid_at, cancel_reason, cancelled_at, created_at, updated_at`

func scanPayment(row *sql.Row) (*model.Payment, error) {
	var p model.Payment
	err := row.Scan(&p.ID, &p.ReservationID, &p.UserID, &p.AmountCents, &p.Method, &p.Status,
		&p.GatewayRef, &p.MerchantRef, &p.PaidAt, &p.CancelReason, &p.CancelledAt,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return &p, nil
}

// Create inserts a new payment attempt in PENDING state. It fails with
// ErrStaleTransition when the reservation already has a non-terminal
// attempt: at most one attempt may be in flight per reservation.
func (r *PaymentRepo) Create(ctx context.Context, p *model.Payment) error {
	if p.Status == "" {
		p.Status = model.PaymentPending
	}
	var pending int
	err := r.store.conn(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM payments WHERE reservation_id = ? AND status = 'PENDING'`,
		p.ReservationID).Scan(&pending)
	if err != nil {
		return err
	}
	if pending > 0 {
		return ErrStaleTransition
	}
	result, err := r.store.conn(ctx).ExecContext(ctx,
		`INSERT INTO payments (reservation_id, user_id, amount_cents, method, status, gateway_ref, merchant_ref)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ReservationID, p.UserID, p.AmountCents, p.Method, p.Status, p.GatewayRef, p.MerchantRef)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)
	loaded, err := r.GetByID(ctx, p.ID)
	if err != nil {
		return err
	}
	*p = *loaded
	return nil
}

// GetByID loads a payment attempt by primary key.
func (r *PaymentRepo) GetByID(ctx context.Context, id uint64) (*model.Payment, error) {
	row := r.store.conn(ctx).QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE id = ?`, id)
	return scanPayment(row)
}

// PendingByReservation returns the reservation's in-flight attempt, or
// ErrPaymentNotFound when every attempt is terminal.
func (r *PaymentRepo) PendingByReservation(ctx context.Context, reservationID uint64) (*model.Payment, error) {
	row := r.store.conn(ctx).QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments
		 WHERE reservation_id = ? AND status = 'PENDING'
		 ORDER BY id DESC LIMIT 1`, reservationID)
	return scanPayment(row)
}

// SettledByReservation returns the reservation's successful attempt,
// used by the refund path.
func (r *PaymentRepo) SettledByReservation(ctx context.Context, reservationID uint64) (*model.Payment, error) {
	row := r.store.conn(ctx).QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments
		 WHERE reservation_id = ? AND status = 'PAID'
		 ORDER BY id DESC LIMIT 1`, reservationID)
	return scanPayment(row)
}

// MarkSettled transitions a PENDING attempt to PAID, recording the
// gateway reference and settlement time. Losing the compare-and-set
// yields ErrStaleTransition.
func (r *PaymentRepo) MarkSettled(ctx context.Context, id uint64, gatewayRef string, paidAt time.Time) error {
	result, err := r.store.conn(ctx).ExecContext(ctx,
		`UPDATE payments
		 SET status = 'PAID', gateway_ref = ?, paid_at = ?, updated_at = UTC_TIMESTAMP()
		 WHERE id = ? AND status = 'PENDING'`, gatewayRef, paidAt.UTC(), id)
	if err != nil {
		return err
	}
	return oneRowOrStale(result)
}

// MarkFailed transitions a PENDING attempt to FAILED with the gateway
// reference and failure reason.
func (r *PaymentRepo) MarkFailed(ctx context.Context, id uint64, gatewayRef, reason string, at time.Time) error {
	result, err := r.store.conn(ctx).ExecContext(ctx,
		`UPDATE payments
		 SET status = 'FAILED', gateway_ref = ?, cancel_reason = ?, cancelled_at = ?, updated_at = UTC_TIMESTAMP()
		 WHERE id = ? AND status = 'PENDING'`, gatewayRef, reason, at.UTC(), id)
	if err != nil {
		return err
	}
	return oneRowOrStale(result)
}

// MarkCancelled cancels an attempt with a reason and timestamp. It
// applies to a PENDING attempt (explicit cancel before settlement) or a
// settled one (refund), guarded by the expected current status.
func (r *PaymentRepo) MarkCancelled(ctx context.Context, id uint64, from model.PaymentStatus, reason string, at time.Time) error {
	result, err := r.store.conn(ctx).ExecContext(ctx,
		`UPDATE payments
		 SET status = 'CANCELLED', cancel_reason = ?, cancelled_at = ?, updated_at = UTC_TIMESTAMP()
		 WHERE id = ? AND status = ?`, reason, at.UTC(), id, from)
	if err != nil {
		return err
	}
	return oneRowOrStale(result)
}

func oneRowOrStale(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrStaleTransition
	}
	return nil
}
