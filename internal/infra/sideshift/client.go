package sideshift

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"shift_processor/internal/domain"
	"shift_processor/internal/infra"
)

// Options configures a Client.
type Options struct {
	BaseURL        string
	CheckoutURL    string
	Credentials    *Credentials
	CommissionRate decimal.Decimal // zero means not sent
	Timeout        time.Duration
	Breaker        *infra.CircuitBreaker
	// Observe is called once per request with the endpoint label.
	Observe func(endpoint string, started time.Time, err error)
}

// Client talks to the SideShift v2 REST API.
// It never retries; a tripped breaker fails calls fast.
type Client struct {
	baseURL        string
	checkoutURL    string
	creds          *Credentials
	commissionRate decimal.Decimal
	httpClient     *http.Client
	breaker        *infra.CircuitBreaker
	observe        func(endpoint string, started time.Time, err error)
	log            zerolog.Logger
}

// NewClient creates a new SideShift REST client.
func NewClient(opts Options, logger zerolog.Logger) *Client {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = MainnetURL
	}
	checkoutURL := opts.CheckoutURL
	if checkoutURL == "" {
		checkoutURL = CheckoutURL
	}
	if !strings.HasSuffix(checkoutURL, "/") {
		checkoutURL += "/"
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	creds := opts.Credentials
	if creds == nil {
		creds = NewCredentials("", "")
	}
	return &Client{
		baseURL:        baseURL,
		checkoutURL:    checkoutURL,
		creds:          creds,
		commissionRate: opts.CommissionRate,
		httpClient:     &http.Client{Timeout: timeout},
		breaker:        opts.Breaker,
		observe:        opts.Observe,
		log:            logger.With().Str("component", "sideshift").Logger(),
	}
}

// AffiliateID returns the configured affiliate id.
func (c *Client) AffiliateID() string { return c.creds.AffiliateID() }

// CommissionRate returns the configured commission, nil when unset.
func (c *Client) CommissionRate() *decimal.Decimal {
	if !c.commissionRate.IsPositive() {
		return nil
	}
	r := c.commissionRate
	return &r
}

// CheckoutLink builds the hosted page URL of a checkout.
func (c *Client) CheckoutLink(id string) string {
	return c.checkoutURL + url.PathEscape(id)
}

// Close wipes the credentials.
func (c *Client) Close() {
	c.creds.Wipe()
}

// GetCoins fetches the full coin listing.
func (c *Client) GetCoins(ctx context.Context) ([]domain.RawCoin, error) {
	var coins []domain.RawCoin
	if err := c.doJSON(ctx, "coins", http.MethodGet, "/coins", nil, nil, &coins); err != nil {
		return nil, err
	}
	return coins, nil
}

// GetCoinIcon downloads the icon of a coin-network.
func (c *Client) GetCoinIcon(ctx context.Context, coinNetwork string) ([]byte, error) {
	return c.do(ctx, "coin_icon", http.MethodGet, "/coins/icon/"+url.PathEscape(coinNetwork), nil, nil)
}

// GetPair fetches the live rate and deposit limits between two coin-networks.
func (c *Client) GetPair(ctx context.Context, from, to string) (domain.ExchangePair, error) {
	q := url.Values{}
	if id := c.creds.AffiliateID(); id != "" {
		q.Set("affiliateId", id)
	}
	if rate := c.CommissionRate(); rate != nil {
		q.Set("commissionRate", rate.String())
	}
	path := "/pair/" + url.PathEscape(from) + "/" + url.PathEscape(to)
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var pair domain.ExchangePair
	if err := c.doJSON(ctx, "pair", http.MethodGet, path, nil, nil, &pair); err != nil {
		return domain.ExchangePair{}, err
	}
	return pair, nil
}

// RequestQuote asks for a fixed-rate quote.
func (c *Client) RequestQuote(ctx context.Context, req QuoteRequest) (domain.Quote, error) {
	if req.AffiliateID == "" {
		req.AffiliateID = c.creds.AffiliateID()
	}
	if req.CommissionRate == nil {
		req.CommissionRate = c.CommissionRate()
	}
	var quote domain.Quote
	if err := c.doJSON(ctx, "quote", http.MethodPost, "/quotes", req.UserIP, req, &quote); err != nil {
		return domain.Quote{}, err
	}
	return quote, nil
}

// CreateFixedShift creates a shift from a quote.
func (c *Client) CreateFixedShift(ctx context.Context, req FixedShiftRequest) (domain.Shift, error) {
	if req.AffiliateID == "" {
		req.AffiliateID = c.creds.AffiliateID()
	}
	var shift domain.Shift
	if err := c.doJSON(ctx, "shift_fixed", http.MethodPost, "/shifts/fixed", req.UserIP, req, &shift); err != nil {
		return domain.Shift{}, err
	}
	return shift, nil
}

// CreateVariableShift creates a variable-rate shift.
func (c *Client) CreateVariableShift(ctx context.Context, req VariableShiftRequest) (domain.Shift, error) {
	if req.AffiliateID == "" {
		req.AffiliateID = c.creds.AffiliateID()
	}
	if req.CommissionRate == nil {
		req.CommissionRate = c.CommissionRate()
	}
	var shift domain.Shift
	if err := c.doJSON(ctx, "shift_variable", http.MethodPost, "/shifts/variable", req.UserIP, req, &shift); err != nil {
		return domain.Shift{}, err
	}
	return shift, nil
}

// CreateCheckout creates a hosted checkout and fills in its link.
func (c *Client) CreateCheckout(ctx context.Context, req CheckoutRequest) (domain.Checkout, error) {
	if req.AffiliateID == "" {
		req.AffiliateID = c.creds.AffiliateID()
	}
	var checkout domain.Checkout
	if err := c.doJSON(ctx, "checkout_create", http.MethodPost, "/checkout", req.UserIP, req, &checkout); err != nil {
		return domain.Checkout{}, err
	}
	checkout.Link = c.CheckoutLink(checkout.ID)
	return checkout, nil
}

// GetCheckout fetches a checkout by id.
func (c *Client) GetCheckout(ctx context.Context, id string, userIP *string) (domain.Checkout, error) {
	var checkout domain.Checkout
	if err := c.doJSON(ctx, "checkout_get", http.MethodGet, "/checkout/"+url.PathEscape(id), userIP, nil, &checkout); err != nil {
		return domain.Checkout{}, err
	}
	checkout.Link = c.CheckoutLink(checkout.ID)
	return checkout, nil
}

// GetShift fetches a shift by id.
func (c *Client) GetShift(ctx context.Context, id string) (domain.Shift, error) {
	var shift domain.Shift
	if err := c.doJSON(ctx, "shift_get", http.MethodGet, "/shifts/"+url.PathEscape(id), nil, nil, &shift); err != nil {
		return domain.Shift{}, err
	}
	return shift, nil
}

// CancelOrder cancels a shift that has not received a deposit yet.
func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	_, err := c.do(ctx, "cancel_order", http.MethodPost, "/cancel-order", nil, cancelOrderRequest{OrderID: orderID})
	return err
}

func (c *Client) doJSON(ctx context.Context, endpoint, method, path string, userIP *string, body, out any) error {
	raw, err := c.do(ctx, endpoint, method, path, userIP, body)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return domain.Wrap(domain.KindUpstream, "sideshift."+endpoint, err, "malformed response")
	}
	return nil
}

// do runs one request through the breaker and maps failures to upstream errors.
func (c *Client) do(ctx context.Context, endpoint, method, path string, userIP *string, body any) ([]byte, error) {
	started := time.Now()
	var out []byte
	call := func() error {
		var err error
		out, err = c.roundTrip(ctx, endpoint, method, path, userIP, body)
		return err
	}

	var err error
	if c.breaker != nil {
		err = c.breaker.Execute(call, countsAgainstBreaker)
	} else {
		err = call()
	}
	if c.observe != nil {
		c.observe(endpoint, started, err)
	}
	if err != nil {
		c.log.Warn().Err(err).Str("endpoint", endpoint).Dur("elapsed", time.Since(started)).Msg("⚠️ sideshift request failed")
		var de *domain.Error
		if errors.As(err, &de) {
			return nil, err
		}
		return nil, domain.Wrap(domain.KindUpstream, "sideshift."+endpoint, err, "request failed")
	}
	return out, nil
}

func (c *Client) roundTrip(ctx context.Context, endpoint, method, path string, userIP *string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", infra.DefaultUserAgent)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.creds.Headers(userIP) {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Endpoint: endpoint, StatusCode: resp.StatusCode}
		var env errorResponse
		if json.Unmarshal(raw, &env) == nil && env.Error.Message != "" {
			apiErr.Message = env.Error.Message
		} else {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return nil, apiErr
	}

	c.log.Debug().Str("endpoint", endpoint).Int("status", resp.StatusCode).Int("bytes", len(raw)).Msg("sideshift response")
	return raw, nil
}

// countsAgainstBreaker keeps caller mistakes (4xx) from tripping the breaker.
func countsAgainstBreaker(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}
	return !errors.Is(err, context.Canceled)
}
