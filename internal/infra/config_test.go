package infra

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shift_processor/internal/domain"
)

const sampleConfig = `
app:
  name: shop
  version: 1.2.0
  env: prod
shop:
  currency: EUR
  usd_reference_coin: USDT-bsc
  fiat_shift_limit_usd: 15000
  decimal_precision: 6
wallets:
  - coin: USDT
    network: bsc
    address: 0x1111111111111111111111111111111111111111
  - coin: XRP
    network: ripple
    address: rEb8TK3gBgk5auZkwc6sHnwrGVJH8DuaLh
    memo: "123456"
sideshift:
  affiliate_id: aff1
  commission_rate: "0.005"
  timeout: 20s
  circuit_breaker:
    failure_threshold: 3
catalog:
  refresh_interval: 6h
  icon_delay: 250ms
logging:
  level: debug
  format: json
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0600))
	return p
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("SIDESHIFT_SECRET", "s3cr3t")
	t.Setenv("SHIFT_WALLET_ADDRESS", "")

	cfg, err := LoadConfig(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "s3cr3t", cfg.SideShift.Secret)
	assert.Equal(t, "aff1", cfg.SideShift.AffiliateID)
	assert.Equal(t, 20*time.Second, cfg.SideShift.Timeout.Duration)
	assert.Equal(t, 3, cfg.SideShift.Breaker.FailureThreshold)
	assert.Equal(t, 2, cfg.SideShift.Breaker.SuccessThreshold, "default applied")
	assert.Equal(t, 6*time.Hour, cfg.Catalog.RefreshInterval.Duration)
	assert.Equal(t, 250*time.Millisecond, cfg.Catalog.IconDelay.Duration)
	assert.Equal(t, 5*time.Minute, cfg.Payments.CancelGrace.Duration)
	assert.Equal(t, "https://sideshift.ai/api/v2", cfg.SideShift.BaseURL)

	cs := cfg.CurrencySetting()
	assert.Equal(t, "EUR", cs.Currency)
	assert.Equal(t, "15000", cs.FiatShiftLimitUSD.String())
	assert.Equal(t, int32(6), cs.DecimalPrecision)

	wallets := cfg.SettleWallets()
	require.Len(t, wallets, 2)
	assert.False(t, wallets[0].Memo.IsSet())
	memo, ok := wallets[1].Memo.Value()
	assert.True(t, ok)
	assert.Equal(t, "123456", memo)
}

func TestLoadConfig_EnvWalletOverride(t *testing.T) {
	t.Setenv("SHIFT_WALLET_ADDRESS", "0x2222222222222222222222222222222222222222")
	t.Setenv("SHIFT_LOG_LEVEL", "WARN")

	cfg, err := LoadConfig(writeConfig(t, sampleConfig))
	require.NoError(t, err)
	assert.Equal(t, "0x2222222222222222222222222222222222222222", cfg.Wallets[0].Address)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad currency", func(c *Config) { c.Shop.Currency = "XYZ1" }},
		{"bad reference coin", func(c *Config) { c.Shop.USDReferenceCoin = "USDT" }},
		{"non-positive limit", func(c *Config) { c.Shop.FiatShiftLimitUSD = c.Shop.FiatShiftLimitUSD.Neg() }},
		{"too many wallets", func(c *Config) {
			c.Wallets = []WalletConfig{
				{Coin: "BTC", Network: "bitcoin", Address: "a"},
				{Coin: "ETH", Network: "ethereum", Address: "b"},
				{Coin: "SOL", Network: "solana", Address: "c"},
			}
		}},
		{"duplicate wallets", func(c *Config) {
			c.Wallets = []WalletConfig{
				{Coin: "USDT", Network: "bsc", Address: "a"},
				{Coin: "usdt", Network: "BSC", Address: "b"},
			}
		}},
		{"wallet without address", func(c *Config) {
			c.Wallets = []WalletConfig{{Coin: "USDT", Network: "bsc"}}
		}},
		{"bad base url", func(c *Config) { c.SideShift.BaseURL = "not a url" }},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrConfiguration)
		})
	}

	assert.NoError(t, DefaultConfig().Validate())
}

func TestNewValidator_CoinNetworkTag(t *testing.T) {
	var v *validator.Validate
	require.NotPanics(t, func() { v = newValidator() })

	type ref struct {
		Coin string `validate:"coinnetwork"`
	}
	assert.NoError(t, v.Struct(ref{Coin: "USDT-bsc"}))
	assert.Error(t, v.Struct(ref{Coin: "USDT"}))
}

func TestLoadSecretConfig(t *testing.T) {
	p := filepath.Join(t.TempDir(), "sideshift.yaml")
	require.NoError(t, os.WriteFile(p, []byte("sideshift:\n  secret: abc\n  affiliate_id: xyz\n"), 0600))

	sec, err := LoadSecretConfig(p)
	require.NoError(t, err)

	t.Setenv("SIDESHIFT_SECRET", "")
	t.Setenv("SIDESHIFT_AFFILIATE_ID", "")
	cfg := DefaultConfig()
	sec.Apply(cfg)
	assert.Equal(t, "abc", cfg.SideShift.Secret)
	assert.Equal(t, "xyz", cfg.SideShift.AffiliateID)

	_, err = LoadSecretConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestPrintBanner(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Wallets = []WalletConfig{{Coin: "USDT", Network: "bsc", Address: "0x1111111111111111111111111111111111119999"}}

	var buf bytes.Buffer
	printBanner(&buf, cfg)
	out := buf.String()
	assert.Contains(t, out, "USDT-bsc 0x11…9999")
	assert.Contains(t, out, "SIDESHIFT SECRET MISSING")
}
