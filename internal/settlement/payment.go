package settlement

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"shift_processor/internal/domain"
	"shift_processor/internal/poller"
)

// Payments creates fixed-rate payments and hands them to the tracker.
type Payments struct {
	orch    *Orchestrator
	tracker poller.Tracker
	log     zerolog.Logger
	newID   func() string
}

// NewPayments creates the payment entry point.
func NewPayments(orch *Orchestrator, tracker poller.Tracker, logger zerolog.Logger) *Payments {
	return &Payments{
		orch:    orch,
		tracker: tracker,
		log:     logger.With().Str("component", "payments").Logger(),
		newID:   uuid.NewString,
	}
}

// Start creates the shift for req and registers it under customID.
// An external id is generated when the caller did not supply one.
func (p *Payments) Start(ctx context.Context, req PaymentRequest, customID string) (domain.Shift, error) {
	if req.ExternalID == nil {
		id := p.newID()
		req.ExternalID = &id
	}

	shift, err := p.orch.CreateCryptocurrencyPayment(ctx, req)
	if err != nil {
		return domain.Shift{}, err
	}

	err = p.tracker.AddPayment(ctx, poller.Payment{
		Shift:         shift,
		SettleAddress: shift.SettleAddress,
		SettleAmount:  shift.SettleAmount,
		CustomID:      customID,
	})
	if err != nil {
		// the shift exists upstream; the caller still needs its id
		return shift, domain.Wrap(domain.KindUpstream, "settlement.Payments.Start", err, "register shift %s with tracker", shift.ID)
	}

	p.log.Info().
		Str("shift", shift.ID).
		Str("custom_id", customID).
		Str("external_id", *req.ExternalID).
		Str("deposit", domain.Key(shift.DepositCoin, shift.DepositNetwork)).
		Str("settle_amount", shift.SettleAmount.Decimal.String()).
		Msg("💰 payment created")
	return shift, nil
}
