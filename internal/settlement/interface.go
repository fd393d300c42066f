package settlement

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"shift_processor/internal/domain"
	"shift_processor/internal/infra/sideshift"
)

// FiatRateSource converts the shop currency to USD.
type FiatRateSource interface {
	RateToUSD(ctx context.Context, currency string) (decimal.Decimal, error)
}

// PairSource fetches live pair rates and deposit limits.
type PairSource interface {
	GetPair(ctx context.Context, from, to string) (domain.ExchangePair, error)
}

// Exchange is the part of the exchange API the orchestrator drives.
type Exchange interface {
	PairSource
	RequestQuote(ctx context.Context, req sideshift.QuoteRequest) (domain.Quote, error)
	CreateFixedShift(ctx context.Context, req sideshift.FixedShiftRequest) (domain.Shift, error)
	CreateVariableShift(ctx context.Context, req sideshift.VariableShiftRequest) (domain.Shift, error)
	CreateCheckout(ctx context.Context, req sideshift.CheckoutRequest) (domain.Checkout, error)
}

// ShiftCanceller reads and cancels existing shifts.
type ShiftCanceller interface {
	GetShift(ctx context.Context, id string) (domain.Shift, error)
	CancelOrder(ctx context.Context, orderID string) error
}

// Auditor records created shifts and integrity failures. Failures to record are logged only.
type Auditor interface {
	RecordShift(ctx context.Context, shift domain.Shift, ts int64) error
	RecordIntegrityFailure(ctx context.Context, shift domain.Shift, mismatch domain.Mismatch, ts int64) error
}

// Observer counts state machine steps and failures.
type Observer interface {
	ObserveStep(operation, step string)
	ObserveFailure(operation string, err error)
}

type nopObserver struct{}

func (nopObserver) ObserveStep(string, string)  {}
func (nopObserver) ObserveFailure(string, error) {}

type clock func() time.Time
