package settlement

import (
	"strings"

	"github.com/shopspring/decimal"

	"shift_processor/internal/domain"
	"shift_processor/pkg/safe"
)

// IntegrityEpsilon is the tolerance between requested and returned settle amounts.
var IntegrityEpsilon = decimal.New(1, -6)

// Expectation is what an order must settle to. A nil amount skips the amount check.
type Expectation struct {
	SettleCoin    string
	SettleNetwork string
	SettleAddress string
	SettleAmount  *decimal.Decimal
}

func expectFor(w domain.Wallet, amount *decimal.Decimal) Expectation {
	return Expectation{
		SettleCoin:    w.Coin,
		SettleNetwork: w.Network,
		SettleAddress: w.Address,
		SettleAmount:  amount,
	}
}

// VerifyShift compares a shift returned by the exchange with what was requested.
// On mismatch the error is an integrity error carrying the shift for inspection.
func VerifyShift(exp Expectation, shift domain.Shift) error {
	mm := compare(exp, shift.SettleCoin, shift.SettleNetwork, shift.SettleAddress, shift.SettleAmount)
	if mm == nil {
		return nil
	}
	s := shift
	return &domain.Error{
		Kind:     domain.KindIntegrity,
		Op:       "settlement.VerifyShift",
		Msg:      "wrong " + mm.Field + ": " + mm.Expected + " != " + mm.Actual,
		Shift:    &s,
		Mismatch: mm,
	}
}

// VerifyCheckout applies the same checks to a hosted checkout.
// On mismatch the error carries the checkout.
func VerifyCheckout(exp Expectation, c domain.Checkout) error {
	mm := compare(exp, c.SettleCoin, c.SettleNetwork, c.SettleAddress, decimal.NewNullDecimal(c.SettleAmount))
	if mm == nil {
		return nil
	}
	co := c
	return &domain.Error{
		Kind:     domain.KindIntegrity,
		Op:       "settlement.VerifyCheckout",
		Msg:      "wrong " + mm.Field + ": " + mm.Expected + " != " + mm.Actual,
		Checkout: &co,
		Mismatch: mm,
	}
}

// VerifyNotification applies the same checks to a webhook payload.
func VerifyNotification(exp Expectation, n domain.Notification) error {
	mm := compare(exp, n.SettleCoin, n.SettleNetwork, n.SettleAddress, n.SettleAmount)
	if mm == nil {
		return nil
	}
	return &domain.Error{
		Kind:     domain.KindIntegrity,
		Op:       "settlement.VerifyNotification",
		Msg:      "wrong " + mm.Field + ": " + mm.Expected + " != " + mm.Actual,
		Mismatch: mm,
	}
}

func compare(exp Expectation, coin, network, address string, amount decimal.NullDecimal) *domain.Mismatch {
	if exp.SettleAmount != nil {
		if !amount.Valid {
			return &domain.Mismatch{Field: "settleAmount", Expected: exp.SettleAmount.String(), Actual: "null"}
		}
		if !safe.WithinEpsilon(*exp.SettleAmount, amount.Decimal, IntegrityEpsilon) {
			return &domain.Mismatch{Field: "settleAmount", Expected: exp.SettleAmount.String(), Actual: amount.Decimal.String()}
		}
	}
	if !strings.EqualFold(exp.SettleCoin, coin) {
		return &domain.Mismatch{Field: "settleCoin", Expected: exp.SettleCoin, Actual: coin}
	}
	if !strings.EqualFold(exp.SettleNetwork, network) {
		return &domain.Mismatch{Field: "settleNetwork", Expected: exp.SettleNetwork, Actual: network}
	}
	if !strings.EqualFold(exp.SettleAddress, address) {
		return &domain.Mismatch{Field: "settleAddress", Expected: exp.SettleAddress, Actual: address}
	}
	return nil
}
