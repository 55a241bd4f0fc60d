package booking

import "errors"

// ErrScreeningNotBookable is returned when a hold targets a screening
// that is closed, completed or cancelled.
var ErrScreeningNotBookable = errors.New("screening not bookable")

// ErrHoldExpired is returned when a checkout is resumed after its hold
// TTL lapsed; the seats have already been released.
var ErrHoldExpired = errors.New("hold expired")

// ErrPaymentRejected is returned when the gateway reported a failure or
// the callback failed the amount integrity check. The reservation has
// been released; the caller may start over with a new hold.
var ErrPaymentRejected = errors.New("payment rejected")
