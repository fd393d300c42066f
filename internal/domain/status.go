package domain

import "github.com/shopspring/decimal"

// ShiftStatus is the lifecycle state reported by the exchange.
type ShiftStatus string

const (
	StatusWaiting    ShiftStatus = "waiting"
	StatusPending    ShiftStatus = "pending"
	StatusProcessing ShiftStatus = "processing"
	StatusReview     ShiftStatus = "review"
	StatusSettling   ShiftStatus = "settling"
	StatusSettled    ShiftStatus = "settled"
	StatusRefund     ShiftStatus = "refund"
	StatusRefunding  ShiftStatus = "refunding"
	StatusRefunded   ShiftStatus = "refunded"
	StatusExpired    ShiftStatus = "expired"
	StatusCancelled  ShiftStatus = "cancelled"
)

// IsTerminal reports whether the shift can no longer change.
func (s ShiftStatus) IsTerminal() bool {
	switch s {
	case StatusSettled, StatusRefunded, StatusExpired, StatusCancelled:
		return true
	}
	return false
}

// IsKnown reports whether s is one of the statuses above.
func (s ShiftStatus) IsKnown() bool {
	switch s {
	case StatusWaiting, StatusPending, StatusProcessing, StatusReview, StatusSettling,
		StatusSettled, StatusRefund, StatusRefunding, StatusRefunded, StatusExpired, StatusCancelled:
		return true
	}
	return false
}

// Notification is the webhook payload shape for a shift status change.
type Notification struct {
	ID            string              `json:"id"`
	Status        ShiftStatus         `json:"status"`
	SettleAmount  decimal.NullDecimal `json:"settleAmount"`
	SettleCoin    string              `json:"settleCoin"`
	SettleNetwork string              `json:"settleNetwork"`
	SettleAddress string              `json:"settleAddress"`
}
