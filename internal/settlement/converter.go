package settlement

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"shift_processor/internal/catalog"
	"shift_processor/internal/domain"
	"shift_processor/pkg/safe"
)

// markup absorbs exchange and network cost (+0.02%).
var markup = decimal.RequireFromString("1.0002")

// pairPlaces is the rounding applied to amountUSD * pairRate.
const pairPlaces int32 = 6

// Converter turns a shop-currency amount into a settle-coin amount.
type Converter struct {
	cat     *catalog.Catalog
	rates   FiatRateSource
	pairs   PairSource
	setting domain.CurrencySetting
	log     zerolog.Logger
}

// NewConverter creates a converter. A zero precision falls back to safe.DefaultPlaces.
func NewConverter(cat *catalog.Catalog, rates FiatRateSource, pairs PairSource, setting domain.CurrencySetting, logger zerolog.Logger) *Converter {
	if setting.DecimalPrecision <= 0 {
		setting.DecimalPrecision = safe.DefaultPlaces
	}
	return &Converter{
		cat:     cat,
		rates:   rates,
		pairs:   pairs,
		setting: setting,
		log:     logger.With().Str("component", "converter").Logger(),
	}
}

// Setting returns the currency setting in use.
func (c *Converter) Setting() domain.CurrencySetting { return c.setting }

// FiatToCrypto converts fiatAmount into an amount of settleCoinNetwork.
// Input problems fail with a validation error before any remote call.
func (c *Converter) FiatToCrypto(ctx context.Context, fiatAmount decimal.Decimal, depositCoinNetwork, settleCoinNetwork string) (decimal.Decimal, error) {
	const op = "settlement.FiatToCrypto"
	p := c.setting.DecimalPrecision

	if err := c.validate(op, fiatAmount, depositCoinNetwork, settleCoinNetwork); err != nil {
		return decimal.Zero, err
	}

	ref := c.setting.USDReferenceCoin
	sameCoin := domain.SameKey(depositCoinNetwork, settleCoinNetwork) && domain.SameKey(settleCoinNetwork, ref)

	// the exchange cannot quote a pair against itself
	var alternative string
	if sameCoin {
		alt, ok, err := c.cat.AlternativeStableCoin(ref)
		if err != nil {
			return decimal.Zero, err
		}
		if !ok {
			return decimal.Zero, domain.Errorf(domain.KindValidation, op,
				"cannot shift between the same coin network pair: %s %s", depositCoinNetwork, settleCoinNetwork)
		}
		alternative = alt
	}

	rate, err := c.rates.RateToUSD(ctx, c.setting.Currency)
	if err != nil {
		return decimal.Zero, domain.Rewrap(op, err, "fiat rate for %s", c.setting.Currency)
	}
	if !rate.IsPositive() {
		return decimal.Zero, domain.Errorf(domain.KindUpstream, op, "unusable fiat rate %s for %s", rate, c.setting.Currency)
	}

	// rounded once, after the markup
	amountUSD := safe.Mul(fiatAmount.Mul(rate), markup, p)

	if catalog.IsStableCoin(settleCoinNetwork) {
		return amountUSD, nil
	}

	var from string
	switch {
	case catalog.IsStableCoin(depositCoinNetwork) && !domain.SameKey(depositCoinNetwork, settleCoinNetwork):
		from = depositCoinNetwork
	case sameCoin:
		from = alternative
	default:
		from = ref
	}

	pair, err := c.pairs.GetPair(ctx, from, settleCoinNetwork)
	if err != nil {
		return decimal.Zero, domain.Rewrap(op, err, "pair %s to %s", from, settleCoinNetwork)
	}
	if !pair.Rate.IsPositive() {
		return decimal.Zero, domain.Errorf(domain.KindValidation, op,
			"failed to get exchange rate for %s to %s", from, settleCoinNetwork)
	}

	crypto := safe.Mul(amountUSD, pair.Rate, pairPlaces)
	c.log.Debug().
		Str("from", from).
		Str("settle", settleCoinNetwork).
		Str("amount_usd", amountUSD.String()).
		Str("rate", pair.Rate.String()).
		Str("amount", crypto.String()).
		Msg("converted")

	return safe.Round(crypto, p), nil
}

// USDToSettleAmount prices fiatAmount in settleCoin on settleNetwork, using the
// reference coin as the deposit side.
func (c *Converter) USDToSettleAmount(ctx context.Context, fiatAmount decimal.Decimal, settleCoin, settleNetwork string) (decimal.Decimal, error) {
	return c.FiatToCrypto(ctx, fiatAmount, c.setting.USDReferenceCoin, domain.Key(settleCoin, settleNetwork))
}

func (c *Converter) validate(op string, fiatAmount decimal.Decimal, deposit, settle string) error {
	if !fiatAmount.IsPositive() {
		return domain.Errorf(domain.KindValidation, op, "amount to shift must be greater than zero, got %s", fiatAmount)
	}
	if limit := c.setting.FiatShiftLimitUSD; limit.IsPositive() && fiatAmount.GreaterThan(limit) {
		return domain.Errorf(domain.KindValidation, op, "amount to shift must not exceed %s", limit)
	}
	if strings.TrimSpace(c.setting.USDReferenceCoin) == "" {
		return domain.Errorf(domain.KindConfiguration, op, "no USD reference coin configured")
	}
	for _, cn := range []string{deposit, settle} {
		if _, _, err := domain.ParseCoinNetwork(cn); err != nil {
			return domain.Rewrap(op, err, "missing or malformed coin-network")
		}
	}
	return nil
}
