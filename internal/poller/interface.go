package poller

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"shift_processor/internal/domain"
)

// Payment is a shift handed over for status tracking.
type Payment struct {
	Shift         domain.Shift
	SettleAddress string
	SettleAmount  decimal.NullDecimal
	CustomID      string
	AddedAt       time.Time
}

// Failure describes a shift the tracker gave up on.
type Failure struct {
	Payment  Payment
	Reason   string
	FailedAt time.Time
}

// Tracker is the status-tracking collaborator a payment is handed to.
// How and how often it polls is up to the implementation.
type Tracker interface {
	// AddPayment starts tracking a created shift.
	AddPayment(ctx context.Context, p Payment) error

	// PollingShift returns the tracked payment of shiftID, if any.
	PollingShift(shiftID string) (Payment, bool)

	// FailedShift returns the failure record of shiftID, if any.
	FailedShift(shiftID string) (Failure, bool)

	// StopPolling stops tracking shiftID. Unknown ids are a no-op.
	StopPolling(ctx context.Context, shiftID string) error
}
