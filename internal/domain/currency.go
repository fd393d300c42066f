package domain

import "github.com/shopspring/decimal"

// CurrencySetting is the shop's pricing setup. Immutable after load.
type CurrencySetting struct {
	Currency          string // ISO 4217
	USDReferenceCoin  string // coin-network used to price non-stable settle coins
	FiatShiftLimitUSD decimal.Decimal
	DecimalPrecision  int32
}

// ExchangePair is a live rate quote between two coin-networks. Never cached.
type ExchangePair struct {
	DepositCoin    string          `json:"depositCoin"`
	DepositNetwork string          `json:"depositNetwork"`
	SettleCoin     string          `json:"settleCoin"`
	SettleNetwork  string          `json:"settleNetwork"`
	Rate           decimal.Decimal `json:"rate"`
	Min            decimal.Decimal `json:"min"`
	Max            decimal.Decimal `json:"max"`
}
