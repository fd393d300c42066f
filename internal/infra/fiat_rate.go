package infra

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"shift_processor/internal/domain"
)

// latestRatesResponse represents the exchangerate-api "latest" payload
type latestRatesResponse struct {
	Base  string                     `json:"base"`
	Rates map[string]decimal.Decimal `json:"rates"`
}

// FiatRateClient converts shop currency amounts to USD.
// Rates are fetched per call and never cached.
type FiatRateClient struct {
	apiURL     string
	httpClient *http.Client
	log        zerolog.Logger
}

// NewFiatRateClient creates a client for baseURL (currency code is appended).
func NewFiatRateClient(baseURL string, timeout time.Duration, logger zerolog.Logger) *FiatRateClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &FiatRateClient{
		apiURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: logger.With().Str("component", "fiat-rate").Logger(),
	}
}

// RateToUSD returns how many USD one unit of currency buys.
func (c *FiatRateClient) RateToUSD(ctx context.Context, currency string) (decimal.Decimal, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	rate, err := c.doFetch(ctx, currency)
	if err != nil {
		c.log.Warn().Err(err).Str("currency", currency).Msg("fiat rate fetch failed")
		return decimal.Zero, domain.Wrap(domain.KindUpstream, "infra.RateToUSD", err, "fiat rate for %s", currency)
	}
	return rate, nil
}

func (c *FiatRateClient) doFetch(ctx context.Context, currency string) (decimal.Decimal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+currency, nil)
	if err != nil {
		return decimal.Zero, err
	}
	req.Header.Set("User-Agent", DefaultUserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return decimal.Zero, err
	}

	var data latestRatesResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return decimal.Zero, fmt.Errorf("malformed rate payload: %w", err)
	}

	rate, ok := data.Rates["USD"]
	if !ok || !rate.IsPositive() {
		return decimal.Zero, fmt.Errorf("malformed rate payload: no usable USD rate")
	}

	c.log.Debug().Str("currency", currency).Str("rate", rate.String()).Msg("fiat rate fetched")
	return rate, nil
}
