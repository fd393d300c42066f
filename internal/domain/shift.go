package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ShiftType distinguishes fixed-rate and variable-rate orders.
type ShiftType string

const (
	ShiftFixed    ShiftType = "fixed"
	ShiftVariable ShiftType = "variable"
)

// Quote is a time-boxed rate lock used to create a fixed shift.
type Quote struct {
	ID             string          `json:"id"`
	CreatedAt      time.Time       `json:"createdAt"`
	DepositCoin    string          `json:"depositCoin"`
	DepositNetwork string          `json:"depositNetwork"`
	SettleCoin     string          `json:"settleCoin"`
	SettleNetwork  string          `json:"settleNetwork"`
	ExpiresAt      time.Time       `json:"expiresAt"`
	DepositAmount  decimal.Decimal `json:"depositAmount"`
	SettleAmount   decimal.Decimal `json:"settleAmount"`
	Rate           decimal.Decimal `json:"rate"`
	AffiliateID    string          `json:"affiliateId,omitempty"`
}

// Shift is the exchange order. Owned by the exchange; read-only here.
type Shift struct {
	ID             string              `json:"id"`
	CreatedAt      time.Time           `json:"createdAt"`
	Type           ShiftType           `json:"type"`
	Status         ShiftStatus         `json:"status"`
	QuoteID        string              `json:"quoteId,omitempty"`
	DepositCoin    string              `json:"depositCoin"`
	DepositNetwork string              `json:"depositNetwork"`
	DepositAddress string              `json:"depositAddress"`
	DepositMemo    string              `json:"depositMemo,omitempty"`
	DepositAmount  decimal.NullDecimal `json:"depositAmount"`
	DepositMin     decimal.NullDecimal `json:"depositMin"`
	DepositMax     decimal.NullDecimal `json:"depositMax"`
	SettleCoin     string              `json:"settleCoin"`
	SettleNetwork  string              `json:"settleNetwork"`
	SettleAddress  string              `json:"settleAddress"`
	SettleMemo     string              `json:"settleMemo,omitempty"`
	SettleAmount   decimal.NullDecimal `json:"settleAmount"`
	Rate           decimal.NullDecimal `json:"rate"`
	RefundAddress  string              `json:"refundAddress,omitempty"`
	ExternalID     string              `json:"externalId,omitempty"`
	ExpiresAt      time.Time           `json:"expiresAt"`
}

// Checkout is a hosted order; the exchange's page collects deposit details.
type Checkout struct {
	ID            string          `json:"id"`
	CreatedAt     time.Time       `json:"createdAt"`
	SettleCoin    string          `json:"settleCoin"`
	SettleNetwork string          `json:"settleNetwork"`
	SettleAddress string          `json:"settleAddress"`
	SettleMemo    string          `json:"settleMemo,omitempty"`
	SettleAmount  decimal.Decimal `json:"settleAmount"`
	SuccessURL    string          `json:"successUrl"`
	CancelURL     string          `json:"cancelUrl"`
	ExternalID    string          `json:"externalId,omitempty"`
	ExpiresAt     time.Time       `json:"expiresAt"`
	Link          string          `json:"link,omitempty"`
}
