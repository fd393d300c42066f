package infra

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"shift_processor/internal/domain"
)

// DefaultUserAgent identifies outbound requests.
const DefaultUserAgent = "shift-processor/1.0 (+https://sideshift.ai)"

// Duration wraps time.Duration to support YAML unmarshalling.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses human readable duration strings.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return nil
	}
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be string")
	}
	raw := value.Value
	if raw == "" {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	d.Duration = parsed
	return nil
}

// ShopConfig is the merchant's pricing setup.
type ShopConfig struct {
	Currency          string          `yaml:"currency" validate:"required,iso4217"`
	USDReferenceCoin  string          `yaml:"usd_reference_coin" validate:"required,coinnetwork"`
	FiatShiftLimitUSD decimal.Decimal `yaml:"fiat_shift_limit_usd"`
	DecimalPrecision  int32           `yaml:"decimal_precision" validate:"gte=0,lte=18"`
}

// WalletConfig is one settlement wallet. The first entry is the main wallet.
type WalletConfig struct {
	Coin    string  `yaml:"coin" validate:"required,alphanum"`
	Network string  `yaml:"network" validate:"required"`
	Address string  `yaml:"address" validate:"required"`
	Memo    *string `yaml:"memo"`
}

// SideShiftConfig configures the exchange client.
type SideShiftConfig struct {
	BaseURL        string          `yaml:"base_url" validate:"required,url"`
	CheckoutURL    string          `yaml:"checkout_url" validate:"required,url"`
	Secret         string          `yaml:"secret"`
	AffiliateID    string          `yaml:"affiliate_id"`
	CommissionRate decimal.Decimal `yaml:"commission_rate"`
	Timeout        Duration        `yaml:"timeout"`
	Breaker        struct {
		FailureThreshold int      `yaml:"failure_threshold" validate:"gte=0"`
		SuccessThreshold int      `yaml:"success_threshold" validate:"gte=0"`
		Timeout          Duration `yaml:"timeout"`
	} `yaml:"circuit_breaker"`
}

// FiatRateConfig configures the fiat->USD rate source.
type FiatRateConfig struct {
	URL     string   `yaml:"url" validate:"required,url"`
	Timeout Duration `yaml:"timeout"`
}

// CatalogConfig configures listing refresh and icon assets.
type CatalogConfig struct {
	RefreshInterval Duration `yaml:"refresh_interval"`
	IconDir         string   `yaml:"icon_dir"`
	IconDelay       Duration `yaml:"icon_delay"`
}

// PaymentsConfig tunes the post-creation helpers.
type PaymentsConfig struct {
	CancelGrace       Duration `yaml:"cancel_grace"`
	CancelCacheSize   int      `yaml:"cancel_cache_size" validate:"gte=0"`
	RedirectReset     Duration `yaml:"redirect_reset"`
	RedirectCacheSize int      `yaml:"redirect_cache_size" validate:"gte=0"`
	RedirectLimit     int      `yaml:"redirect_limit" validate:"gte=0"`
	TrackerCacheSize  int      `yaml:"tracker_cache_size" validate:"gte=0"`
	TrackerTTL        Duration `yaml:"tracker_ttl"`
}

// Config는 애플리케이션의 모든 설정을 담습니다.
// LoadConfig로 로드된 후에 환경 변수를 통해 민감 내용을 덮어씁니다.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
		Env     string `yaml:"env" validate:"omitempty,oneof=dev prod"`
	} `yaml:"app"`

	Shop      ShopConfig      `yaml:"shop"`
	Wallets   []WalletConfig  `yaml:"wallets" validate:"max=2,dive"`
	SideShift SideShiftConfig `yaml:"sideshift"`
	FiatRate  FiatRateConfig  `yaml:"fiat_rate"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Payments  PaymentsConfig  `yaml:"payments"`

	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Listen  string `yaml:"listen" validate:"omitempty,hostname_port"`
	} `yaml:"metrics"`

	Storage struct {
		Path string `yaml:"path"`
	} `yaml:"storage"`

	Logging struct {
		Level  string `yaml:"level" validate:"omitempty,oneof=trace debug info warn error"`
		Format string `yaml:"format" validate:"omitempty,oneof=console json"`
	} `yaml:"logging"`
}

// DefaultConfig returns a configuration with every default applied.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	if c.App.Name == "" {
		c.App.Name = AppName
	}
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.Shop.Currency == "" {
		c.Shop.Currency = "USD"
	}
	if c.Shop.USDReferenceCoin == "" {
		c.Shop.USDReferenceCoin = "USDT-bsc"
	}
	if c.Shop.FiatShiftLimitUSD.IsZero() {
		c.Shop.FiatShiftLimitUSD = decimal.NewFromInt(20000)
	}
	if c.Shop.DecimalPrecision == 0 {
		c.Shop.DecimalPrecision = 6
	}
	if c.SideShift.BaseURL == "" {
		c.SideShift.BaseURL = "https://sideshift.ai/api/v2"
	}
	if c.SideShift.CheckoutURL == "" {
		c.SideShift.CheckoutURL = "https://pay.sideshift.ai/checkout/"
	}
	if c.SideShift.Timeout.Duration == 0 {
		c.SideShift.Timeout.Duration = 15 * time.Second
	}
	if c.SideShift.Breaker.FailureThreshold == 0 {
		c.SideShift.Breaker.FailureThreshold = 5
	}
	if c.SideShift.Breaker.SuccessThreshold == 0 {
		c.SideShift.Breaker.SuccessThreshold = 2
	}
	if c.SideShift.Breaker.Timeout.Duration == 0 {
		c.SideShift.Breaker.Timeout.Duration = 30 * time.Second
	}
	if c.FiatRate.URL == "" {
		c.FiatRate.URL = "https://api.exchangerate-api.com/v4/latest/"
	}
	if c.FiatRate.Timeout.Duration == 0 {
		c.FiatRate.Timeout.Duration = 10 * time.Second
	}
	if c.Catalog.RefreshInterval.Duration == 0 {
		c.Catalog.RefreshInterval.Duration = 12 * time.Hour
	}
	if c.Catalog.IconDelay.Duration == 0 {
		c.Catalog.IconDelay.Duration = 500 * time.Millisecond
	}
	if c.Payments.CancelGrace.Duration == 0 {
		c.Payments.CancelGrace.Duration = 5 * time.Minute
	}
	if c.Payments.CancelCacheSize == 0 {
		c.Payments.CancelCacheSize = 1024
	}
	if c.Payments.RedirectReset.Duration == 0 {
		c.Payments.RedirectReset.Duration = 2 * time.Minute
	}
	if c.Payments.RedirectCacheSize == 0 {
		c.Payments.RedirectCacheSize = 4096
	}
	if c.Payments.RedirectLimit == 0 {
		c.Payments.RedirectLimit = 10
	}
	if c.Payments.TrackerCacheSize == 0 {
		c.Payments.TrackerCacheSize = 4096
	}
	if c.Payments.TrackerTTL.Duration == 0 {
		c.Payments.TrackerTTL.Duration = 24 * time.Hour
	}
	if c.Metrics.Listen == "" {
		c.Metrics.Listen = "localhost:9090"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
}

// LoadConfig는 설정 파일을 읽고 파싱합니다.
// A .env file next to the process is loaded first when present.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()

	// 보안 우선 - 환경 변수 오버라이드 지원
	overrideWithEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("coinnetwork", validCoinNetwork); err != nil {
		panic(fmt.Sprintf("register coinnetwork validation: %v", err))
	}
	return v
}

func validCoinNetwork(fl validator.FieldLevel) bool {
	_, _, err := domain.ParseCoinNetwork(fl.Field().String())
	return err == nil
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return domain.Wrap(domain.KindConfiguration, "infra.Config.Validate", err, "field validation failed")
	}

	if !c.Shop.FiatShiftLimitUSD.IsPositive() {
		return domain.Errorf(domain.KindConfiguration, "infra.Config.Validate", "fiat shift limit must be positive")
	}
	if c.SideShift.CommissionRate.IsNegative() {
		return domain.Errorf(domain.KindConfiguration, "infra.Config.Validate", "commission rate must not be negative")
	}

	if len(c.Wallets) == 2 && domain.SameKey(c.Wallets[0].key(), c.Wallets[1].key()) {
		return domain.Errorf(domain.KindConfiguration, "infra.Config.Validate",
			"main and secondary wallets must use different coin-networks (%s)", c.Wallets[0].key())
	}

	return nil
}

func (w WalletConfig) key() string {
	return domain.Key(w.Coin, w.Network)
}

// CurrencySetting converts the shop section.
func (c *Config) CurrencySetting() domain.CurrencySetting {
	return domain.CurrencySetting{
		Currency:          strings.ToUpper(c.Shop.Currency),
		USDReferenceCoin:  c.Shop.USDReferenceCoin,
		FiatShiftLimitUSD: c.Shop.FiatShiftLimitUSD,
		DecimalPrecision:  c.Shop.DecimalPrecision,
	}
}

// SettleWallets converts the wallet section. Main wallet first.
func (c *Config) SettleWallets() []domain.Wallet {
	out := make([]domain.Wallet, 0, len(c.Wallets))
	for _, w := range c.Wallets {
		memo := domain.NoMemo()
		if w.Memo != nil {
			memo = domain.MemoOf(*w.Memo)
		}
		out = append(out, domain.Wallet{Coin: w.Coin, Network: w.Network, Address: w.Address, Memo: memo})
	}
	return out
}

// overrideWithEnv는 환경 변수가 존재할 경우 설정 값을 덮어씁니다.
// 환경 변수는 설정 파일보다 우선합니다.
func overrideWithEnv(cfg *Config) {
	if cfg.SideShift.Secret != "" {
		// logger is not configured yet
		fmt.Println("⚠️  SECURITY WARNING: SideShift secret found in config file.")
		fmt.Println("   Recommendation: use SIDESHIFT_SECRET or a secrets file instead.")
	}

	if secret := os.Getenv("SIDESHIFT_SECRET"); secret != "" {
		cfg.SideShift.Secret = secret
	}
	if id := os.Getenv("SIDESHIFT_AFFILIATE_ID"); id != "" {
		cfg.SideShift.AffiliateID = id
	}
	if addr := os.Getenv("SHIFT_WALLET_ADDRESS"); addr != "" && len(cfg.Wallets) > 0 {
		cfg.Wallets[0].Address = addr
	}
	if addr := os.Getenv("SHIFT_SECONDARY_WALLET_ADDRESS"); addr != "" && len(cfg.Wallets) > 1 {
		cfg.Wallets[1].Address = addr
	}
	if level := os.Getenv("SHIFT_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = strings.ToLower(level)
	}
}
