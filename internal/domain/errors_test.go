package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_IsMatchesKind(t *testing.T) {
	err := Errorf(KindValidation, "settlement.FiatToCrypto", "amount must be positive")

	assert.ErrorIs(t, err, ErrValidation)
	assert.NotErrorIs(t, err, ErrUpstream)
	assert.Equal(t, KindValidation, KindOf(err))
	assert.Equal(t, "settlement.FiatToCrypto: amount must be positive", err.Error())
}

func TestError_WrapKeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(KindUpstream, "sideshift.GetPair", cause, "pair %s to %s", "BTC-bitcoin", "USDT-bsc")

	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrUpstream)

	wrapped := fmt.Errorf("outer: %w", err)
	assert.Equal(t, KindUpstream, KindOf(wrapped))
}

func TestRewrap_PreservesKindAndDetails(t *testing.T) {
	shift := &Shift{ID: "abc"}
	inner := &Error{Kind: KindIntegrity, Msg: "wrong settle address", Shift: shift}

	err := Rewrap("settlement.CreateFixedShiftFromUSD", inner, "fixed shift BTC-bitcoin to USDT-bsc")

	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, KindIntegrity, e.Kind)
	assert.Same(t, shift, e.Shift)
	assert.ErrorIs(t, err, ErrIntegrity)

	checkout := &Checkout{ID: "co-1"}
	err = Rewrap("settlement.RequestCheckout", &Error{Kind: KindIntegrity, Checkout: checkout}, "checkout")
	require.ErrorAs(t, err, &e)
	assert.Same(t, checkout, e.Checkout)
}

func TestRewrap_UnknownBecomesUpstream(t *testing.T) {
	err := Rewrap("op", errors.New("boom"), "context")
	assert.Equal(t, KindUpstream, KindOf(err))
	assert.Nil(t, Rewrap("op", nil, "context"))
}

func TestKindOf_Plain(t *testing.T) {
	assert.Equal(t, KindUnknown, KindOf(errors.New("x")))
	assert.Equal(t, "unknown", KindUnknown.String())
}

func TestBoundViolation_Attached(t *testing.T) {
	err := &Error{
		Kind: KindAvailability,
		Msg:  "amount below minimum",
		Bound: &BoundViolation{
			Side:   BelowMinimum,
			Amount: decimal.RequireFromString("0.0001"),
			Limit:  decimal.RequireFromString("0.001"),
			Coin:   "BTC",
		},
	}
	var e *Error
	require.ErrorAs(t, fmt.Errorf("ctx: %w", err), &e)
	assert.Equal(t, BelowMinimum, e.Bound.Side)
}
