package settlement

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shift_processor/internal/domain"
)

func returnedShift(amount string) domain.Shift {
	return domain.Shift{
		ID:            "s1",
		SettleCoin:    "USDT",
		SettleNetwork: "bsc",
		SettleAddress: "0xAbCdEf",
		SettleAmount:  decimal.NewNullDecimal(dec(amount)),
	}
}

func TestVerifyShift_CaseInsensitive(t *testing.T) {
	exp := Expectation{SettleCoin: "usdt", SettleNetwork: "BSC", SettleAddress: "0xabcdef", SettleAmount: decPtr("100.02")}
	assert.NoError(t, VerifyShift(exp, returnedShift("100.02")))
}

func TestVerifyShift_Amount(t *testing.T) {
	exp := Expectation{SettleCoin: "USDT", SettleNetwork: "bsc", SettleAddress: "0xAbCdEf", SettleAmount: decPtr("100.02")}

	assert.NoError(t, VerifyShift(exp, returnedShift("100.0200005")))
	assert.NoError(t, VerifyShift(exp, returnedShift("100.020001")))

	for _, amount := range []string{"100.03", "100.00002", "100.0200011"} {
		err := VerifyShift(exp, returnedShift(amount))
		require.Error(t, err, amount)
		assert.True(t, errors.Is(err, domain.ErrIntegrity), amount)
	}

	err := VerifyShift(exp, returnedShift("100.03"))
	assert.Contains(t, err.Error(), "100.02")
	assert.Contains(t, err.Error(), "100.03")

	var de *domain.Error
	require.True(t, errors.As(err, &de))
	require.NotNil(t, de.Shift, "the order is kept for inspection")
	assert.Equal(t, "s1", de.Shift.ID)
	assert.Equal(t, "settleAmount", de.Mismatch.Field)
}

func TestVerifyShift_NoAmountCheck(t *testing.T) {
	exp := Expectation{SettleCoin: "USDT", SettleNetwork: "bsc", SettleAddress: "0xAbCdEf"}
	s := returnedShift("1")
	s.SettleAmount = decimal.NullDecimal{}
	assert.NoError(t, VerifyShift(exp, s))
}

func TestVerifyShift_MissingAmount(t *testing.T) {
	exp := Expectation{SettleCoin: "USDT", SettleNetwork: "bsc", SettleAddress: "0xAbCdEf", SettleAmount: decPtr("1")}
	s := returnedShift("1")
	s.SettleAmount = decimal.NullDecimal{}
	assert.True(t, errors.Is(VerifyShift(exp, s), domain.ErrIntegrity))
}

func TestVerifyShift_Destination(t *testing.T) {
	exp := Expectation{SettleCoin: "USDT", SettleNetwork: "bsc", SettleAddress: "0xAbCdEf"}

	cases := map[string]func(*domain.Shift){
		"settleCoin":    func(s *domain.Shift) { s.SettleCoin = "USDC" },
		"settleNetwork": func(s *domain.Shift) { s.SettleNetwork = "tron" },
		"settleAddress": func(s *domain.Shift) { s.SettleAddress = "0xattacker" },
	}
	for field, mutate := range cases {
		s := returnedShift("1")
		mutate(&s)
		err := VerifyShift(exp, s)
		var de *domain.Error
		require.True(t, errors.As(err, &de), field)
		assert.Equal(t, domain.KindIntegrity, de.Kind)
		assert.Equal(t, field, de.Mismatch.Field)
	}
}

func TestVerifyNotification(t *testing.T) {
	exp := Expectation{SettleCoin: "USDT", SettleNetwork: "bsc", SettleAddress: "0xabc", SettleAmount: decPtr("5")}
	n := domain.Notification{
		ID: "s1", Status: domain.StatusSettled,
		SettleCoin: "USDT", SettleNetwork: "bsc", SettleAddress: "0xABC",
		SettleAmount: decimal.NewNullDecimal(dec("5.0000001")),
	}
	assert.NoError(t, VerifyNotification(exp, n))

	n.SettleAddress = "0xother"
	assert.True(t, errors.Is(VerifyNotification(exp, n), domain.ErrIntegrity))
}
