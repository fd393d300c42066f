package settlement

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shift_processor/internal/domain"
	"shift_processor/pkg/safe"
)

func newConverter(t *testing.T, setting domain.CurrencySetting, coins []domain.RawCoin) (*Converter, *fakeRates, *fakeExchange) {
	t.Helper()
	rates := &fakeRates{rate: decimal.NewFromInt(1)}
	ex := newFakeExchange()
	return NewConverter(loadedCatalog(t, coins), rates, ex, setting, zerolog.Nop()), rates, ex
}

func TestFiatToCrypto_StableSettle(t *testing.T) {
	conv, rates, ex := newConverter(t, testSetting(), fixtureCoins())

	got, err := conv.FiatToCrypto(context.Background(), dec("100.00"), "BTC-mainnet", "USDT-bsc")
	require.NoError(t, err)
	assert.True(t, got.Equal(dec("100.02")), "got %s", got)
	assert.Equal(t, 1, rates.calls)
	assert.Empty(t, ex.pairCalls, "stablecoins are priced 1:1")
}

func TestFiatToCrypto_StableSettleMatchesFormula(t *testing.T) {
	conv, rates, _ := newConverter(t, testSetting(), fixtureCoins())
	rates.rate = dec("0.913457")

	for _, s := range []string{"0.01", "1", "99.99", "123.456789", "12345.678", "20000"} {
		amount := dec(s)
		want := amount.Mul(rates.rate).Mul(dec("1.0002")).Round(6)

		got, err := conv.FiatToCrypto(context.Background(), amount, "ETH-ethereum", "DAI-bsc")
		require.NoError(t, err, s)
		assert.True(t, got.Equal(want), "%s: got %s want %s", s, got, want)
		assert.True(t, got.IsPositive(), s)
	}
}

func TestFiatToCrypto_FiatRateNotRoundedBeforeMarkup(t *testing.T) {
	conv, rates, _ := newConverter(t, testSetting(), fixtureCoins())
	rates.rate = dec("0.1234565")

	// 0.1234565 * 1.0002 = 0.1234811913; rounding the fiat product first would give 0.123482
	got, err := conv.FiatToCrypto(context.Background(), dec("1"), "ETH-ethereum", "DAI-bsc")
	require.NoError(t, err)
	assert.Equal(t, "0.123481", got.String())
}

func TestFiatToCrypto_InvalidAmountNoRemoteCall(t *testing.T) {
	conv, rates, ex := newConverter(t, testSetting(), fixtureCoins())

	for _, s := range []string{"0", "-1", "20000.01", "1000000"} {
		_, err := conv.FiatToCrypto(context.Background(), dec(s), "BTC-bitcoin", "USDT-bsc")
		require.Error(t, err, s)
		assert.True(t, errors.Is(err, domain.ErrValidation), s)
	}
	assert.Zero(t, rates.calls)
	assert.Empty(t, ex.pairCalls)
}

func TestFiatToCrypto_MalformedCoinNetwork(t *testing.T) {
	conv, rates, _ := newConverter(t, testSetting(), fixtureCoins())

	for _, pair := range [][2]string{{"", "USDT-bsc"}, {"BTC-bitcoin", ""}, {"BTC", "USDT-bsc"}, {"BTC-bitcoin", "-bsc"}} {
		_, err := conv.FiatToCrypto(context.Background(), dec("10"), pair[0], pair[1])
		assert.True(t, errors.Is(err, domain.ErrValidation), "%v", pair)
	}
	assert.Zero(t, rates.calls)
}

func TestFiatToCrypto_ReferenceBranch(t *testing.T) {
	conv, _, ex := newConverter(t, testSetting(), fixtureCoins())
	ex.setPair("USDT-bsc", "BTC-bitcoin", "0.0000161234", "0.0001", "10")

	got, err := conv.FiatToCrypto(context.Background(), dec("100"), "ETH-ethereum", "BTC-bitcoin")
	require.NoError(t, err)
	assert.Equal(t, []string{"USDT-bsc/BTC-bitcoin"}, ex.pairCalls)
	want := safe.Mul(dec("100.02"), dec("0.0000161234"), 6)
	assert.True(t, got.Equal(want), "got %s want %s", got, want)
}

func TestFiatToCrypto_StableDepositBranch(t *testing.T) {
	conv, _, ex := newConverter(t, testSetting(), fixtureCoins())
	ex.setPair("DAI-bsc", "ETH-ethereum", "0.00031", "1", "100000")

	_, err := conv.FiatToCrypto(context.Background(), dec("50"), "DAI-bsc", "ETH-ethereum")
	require.NoError(t, err)
	assert.Equal(t, []string{"DAI-bsc/ETH-ethereum"}, ex.pairCalls)
}

func TestFiatToCrypto_SameCoinUsesAlternative(t *testing.T) {
	setting := testSetting()
	setting.USDReferenceCoin = "BNB-bsc"
	conv, _, ex := newConverter(t, setting, fixtureCoins())
	ex.setPair("USDT-bsc", "BNB-bsc", "0.0017", "1", "100000")

	got, err := conv.FiatToCrypto(context.Background(), dec("100"), "bnb-BSC", "BNB-bsc")
	require.NoError(t, err)
	assert.Equal(t, []string{"USDT-bsc/BNB-bsc"}, ex.pairCalls)
	assert.True(t, got.Equal(safe.Mul(dec("100.02"), dec("0.0017"), 6)))
}

func TestFiatToCrypto_SameStableCoinResolvesAlternative(t *testing.T) {
	conv, _, ex := newConverter(t, testSetting(), fixtureCoins())

	got, err := conv.FiatToCrypto(context.Background(), dec("100"), "USDT-bsc", "USDT-bsc")
	require.NoError(t, err)
	assert.True(t, got.Equal(dec("100.02")))
	assert.Empty(t, ex.pairCalls)
}

func TestFiatToCrypto_SameCoinWithoutAlternative(t *testing.T) {
	onlyOne := []domain.RawCoin{{
		Coin: "USDT", Mainnet: "bsc", Networks: []string{"bsc"},
		DepositOffline: domain.FlagAll(false), SettleOffline: domain.FlagAll(false),
	}}
	conv, rates, ex := newConverter(t, testSetting(), onlyOne)

	_, err := conv.FiatToCrypto(context.Background(), dec("100"), "USDT-bsc", "USDT-bsc")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrValidation))
	assert.Contains(t, err.Error(), "cannot shift between the same coin network pair")
	assert.Zero(t, rates.calls)
	assert.Empty(t, ex.pairCalls)
}

func TestFiatToCrypto_UpstreamFailures(t *testing.T) {
	conv, rates, ex := newConverter(t, testSetting(), fixtureCoins())

	rates.err = errors.New("rate api down")
	_, err := conv.FiatToCrypto(context.Background(), dec("10"), "ETH-ethereum", "USDT-bsc")
	assert.True(t, errors.Is(err, domain.ErrUpstream))

	rates.err = nil
	ex.pairErr = errors.New("exchange down")
	_, err = conv.FiatToCrypto(context.Background(), dec("10"), "ETH-ethereum", "BTC-bitcoin")
	assert.True(t, errors.Is(err, domain.ErrUpstream))
	assert.Contains(t, err.Error(), "exchange down")
}

func TestFiatToCrypto_UnusablePairRate(t *testing.T) {
	conv, _, ex := newConverter(t, testSetting(), fixtureCoins())
	ex.setPair("USDT-bsc", "BTC-bitcoin", "0", "0", "0")

	_, err := conv.FiatToCrypto(context.Background(), dec("10"), "ETH-ethereum", "BTC-bitcoin")
	assert.True(t, errors.Is(err, domain.ErrValidation))
}

func TestUSDToSettleAmount(t *testing.T) {
	conv, _, ex := newConverter(t, testSetting(), fixtureCoins())
	ex.setPair("USDT-bsc", "ETH-ethereum", "0.0003", "1", "100000")

	got, err := conv.USDToSettleAmount(context.Background(), dec("10"), "ETH", "ethereum")
	require.NoError(t, err)
	assert.True(t, got.Equal(safe.Mul(dec("10.002"), dec("0.0003"), 6)))
}
