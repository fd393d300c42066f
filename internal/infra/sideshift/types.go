package sideshift

import (
	"fmt"

	"github.com/shopspring/decimal"
)

const (
	// MainnetURL is the v2 REST endpoint.
	MainnetURL = "https://sideshift.ai/api/v2"
	// CheckoutURL is the hosted checkout page prefix.
	CheckoutURL = "https://pay.sideshift.ai/checkout/"

	maxBodyBytes = 4 << 20
)

// QuoteRequest asks for a fixed-rate quote. Exactly one amount must be set.
type QuoteRequest struct {
	DepositCoin    string           `json:"depositCoin"`
	DepositNetwork string           `json:"depositNetwork"`
	SettleCoin     string           `json:"settleCoin"`
	SettleNetwork  string           `json:"settleNetwork"`
	DepositAmount  *decimal.Decimal `json:"depositAmount,omitempty"`
	SettleAmount   *decimal.Decimal `json:"settleAmount,omitempty"`
	AffiliateID    string           `json:"affiliateId"`
	CommissionRate *decimal.Decimal `json:"commissionRate,omitempty"`
	UserIP         *string          `json:"-"`
}

// FixedShiftRequest creates a fixed shift from a quote.
type FixedShiftRequest struct {
	SettleAddress string  `json:"settleAddress"`
	SettleMemo    *string `json:"settleMemo,omitempty"`
	RefundAddress *string `json:"refundAddress,omitempty"`
	RefundMemo    *string `json:"refundMemo,omitempty"`
	QuoteID       string  `json:"quoteId"`
	AffiliateID   string  `json:"affiliateId"`
	ExternalID    *string `json:"externalId,omitempty"`
	UserIP        *string `json:"-"`
}

// VariableShiftRequest creates a variable-rate shift.
type VariableShiftRequest struct {
	SettleAddress  string           `json:"settleAddress"`
	SettleMemo     *string          `json:"settleMemo,omitempty"`
	RefundAddress  *string          `json:"refundAddress,omitempty"`
	RefundMemo     *string          `json:"refundMemo,omitempty"`
	DepositCoin    string           `json:"depositCoin"`
	DepositNetwork string           `json:"depositNetwork"`
	SettleCoin     string           `json:"settleCoin"`
	SettleNetwork  string           `json:"settleNetwork"`
	AffiliateID    string           `json:"affiliateId"`
	CommissionRate *decimal.Decimal `json:"commissionRate,omitempty"`
	ExternalID     *string          `json:"externalId,omitempty"`
	UserIP         *string          `json:"-"`
}

// CheckoutRequest creates a hosted checkout.
type CheckoutRequest struct {
	SettleCoin    string          `json:"settleCoin"`
	SettleNetwork string          `json:"settleNetwork"`
	SettleAmount  decimal.Decimal `json:"settleAmount"`
	SettleAddress string          `json:"settleAddress"`
	SettleMemo    *string         `json:"settleMemo,omitempty"`
	AffiliateID   string          `json:"affiliateId"`
	SuccessURL    string          `json:"successUrl"`
	CancelURL     string          `json:"cancelUrl"`
	ExternalID    *string         `json:"externalId,omitempty"`
	UserIP        *string         `json:"-"`
}

type cancelOrderRequest struct {
	OrderID string `json:"orderId"`
}

// errorResponse is the error envelope of every endpoint.
type errorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// APIError is a non-2xx answer from the exchange.
type APIError struct {
	Endpoint   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("sideshift %s: status %d: %s", e.Endpoint, e.StatusCode, e.Message)
}

// Temporary reports whether the failure says something about the exchange
// rather than about the request.
func (e *APIError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}
