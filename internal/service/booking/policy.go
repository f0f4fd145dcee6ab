package booking

import (
	"time"

	"github.com/Alijeyrad/rookie_backend/internal/schema"
	"github.com/Alijeyrad/rookie_backend/internal/service/identity"
)

// CancellationPolicy decides how much of a confirmed booking is refunded when
// actor cancels it untilStart before the session begins.
type CancellationPolicy interface {
	RefundAmount(actor identity.Actor, b *schema.Booking, untilStart time.Duration) int64
}

type PolicyFunc func(actor identity.Actor, b *schema.Booking, untilStart time.Duration) int64

func (f PolicyFunc) RefundAmount(actor identity.Actor, b *schema.Booking, untilStart time.Duration) int64 {
	return f(actor, b, untilStart)
}

// WindowPolicy refunds everything when the expert cancels, and when the
// learner cancels at least window before the start. Later learner
// cancellations retain the payment.
func WindowPolicy(window time.Duration) CancellationPolicy {
	return PolicyFunc(func(actor identity.Actor, b *schema.Booking, untilStart time.Duration) int64 {
		switch actor.(type) {
		case identity.Expert:
			return b.AmountMinor
		case identity.Learner:
			if untilStart >= window {
				return b.AmountMinor
			}
		}
		return 0
	})
}
