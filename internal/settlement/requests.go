package settlement

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"shift_processor/internal/domain"
)

// Optional fields are pointers: nil is absent and is never sent upstream.

// QuoteShiftRequest creates a fixed shift in one step. Exactly one amount is set.
type QuoteShiftRequest struct {
	DepositCoin    string `validate:"required"`
	DepositNetwork string `validate:"required"`
	SettleCoin     string `validate:"required"`
	SettleNetwork  string `validate:"required"`
	SettleAddress  string `validate:"required"`
	SettleMemo     domain.Memo
	DepositAmount  *decimal.Decimal
	SettleAmount   *decimal.Decimal
	RefundAddress  *string
	RefundMemo     *string
	ExternalID     *string
	UserIP         *string
}

// FiatShiftRequest creates a fixed shift priced in the shop currency into a
// caller-chosen destination.
type FiatShiftRequest struct {
	DepositCoin    string `validate:"required"`
	DepositNetwork string `validate:"required"`
	FiatAmount     decimal.Decimal
	SettleCoin     string `validate:"required"`
	SettleNetwork  string `validate:"required"`
	SettleAddress  string `validate:"required"`
	SettleMemo     domain.Memo
	RefundAddress  *string
	RefundMemo     *string
	ExternalID     *string
	UserIP         *string
}

// PaymentRequest creates a fixed shift priced in the shop currency into the
// configured wallets.
type PaymentRequest struct {
	DepositCoin    string `validate:"required"`
	DepositNetwork string `validate:"required"`
	FiatAmount     decimal.Decimal
	RefundAddress  *string
	RefundMemo     *string
	ExternalID     *string
	UserIP         *string
}

// VariableShiftRequest creates a variable shift into the configured wallets.
type VariableShiftRequest struct {
	DepositCoin    string `validate:"required"`
	DepositNetwork string `validate:"required"`
	RefundAddress  *string
	RefundMemo     *string
	ExternalID     *string
	UserIP         *string
}

// CheckoutRequest creates a hosted checkout. No fiat conversion happens.
type CheckoutRequest struct {
	SettleCoin    string `validate:"required"`
	SettleNetwork string `validate:"required"`
	SettleAddress string `validate:"required"`
	SettleAmount  decimal.Decimal
	SuccessURL    string `validate:"required,url"`
	CancelURL     string `validate:"required,url"`
	SettleMemo    domain.Memo
	ExternalID    *string
	UserIP        *string
}

var validate = validator.New()

// validateRequest turns struct tag failures into a validation error naming the fields.
func validateRequest(op string, req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fe.Field())
		}
		return domain.Wrap(domain.KindValidation, op, err, "missing or invalid %s", strings.Join(fields, ", "))
	}
	return domain.Wrap(domain.KindValidation, op, err, "invalid request")
}
