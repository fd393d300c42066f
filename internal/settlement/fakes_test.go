package settlement

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"shift_processor/internal/catalog"
	"shift_processor/internal/domain"
	"shift_processor/internal/infra/sideshift"
)

var testNow = time.Date(2025, 3, 4, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func strPtr(s string) *string { return &s }

func intPtr(v int) *int { return &v }

func fixtureCoins() []domain.RawCoin {
	return []domain.RawCoin{
		{
			Coin: "BTC", Name: "Bitcoin", Mainnet: "bitcoin", Networks: []string{"bitcoin"},
			DepositOffline: domain.FlagAll(false), SettleOffline: domain.FlagAll(false),
		},
		{
			Coin: "ETH", Name: "Ethereum", Mainnet: "ethereum", Networks: []string{"ethereum"},
			DepositOffline: domain.FlagAll(false), SettleOffline: domain.FlagAll(false),
		},
		{
			Coin: "BNB", Name: "BNB", Mainnet: "bsc", Networks: []string{"bsc"},
			DepositOffline: domain.FlagAll(false), SettleOffline: domain.FlagAll(false),
		},
		{
			Coin: "USDT", Name: "Tether", Mainnet: "ethereum", Networks: []string{"ethereum", "bsc"},
			TokenDetails: map[string]domain.TokenDetail{
				"bsc": {ContractAddress: "0x55d398326f99059ff775485246999027b3197955", Decimals: intPtr(18)},
			},
			DepositOffline: domain.FlagAll(false), SettleOffline: domain.FlagAll(false),
		},
		{
			Coin: "DAI", Name: "Dai", Mainnet: "ethereum", Networks: []string{"bsc"},
			DepositOffline: domain.FlagAll(false), SettleOffline: domain.FlagAll(false),
		},
		{
			Coin: "XRP", Name: "Ripple", Mainnet: "ripple", NetworksWithMemo: []string{"ripple"},
			TokenDetails: map[string]domain.TokenDetail{
				"ripple": {Decimals: intPtr(2)},
			},
			DepositOffline: domain.FlagAll(false), SettleOffline: domain.FlagAll(false),
		},
		{
			Coin: "LTC", Name: "Litecoin", Mainnet: "litecoin",
			DepositOffline: domain.FlagAll(true), SettleOffline: domain.FlagAll(false),
		},
	}
}

func loadedCatalog(t *testing.T, coins []domain.RawCoin) *catalog.Catalog {
	t.Helper()
	c := catalog.New(zerolog.Nop())
	c.Load(coins)
	return c
}

func testSetting() domain.CurrencySetting {
	return domain.CurrencySetting{
		Currency:          "USD",
		USDReferenceCoin:  "USDT-bsc",
		FiatShiftLimitUSD: decimal.NewFromInt(20000),
		DecimalPrecision:  6,
	}
}

func testWallets() []domain.Wallet {
	return []domain.Wallet{
		{Coin: "USDT", Network: "bsc", Address: "0xMainWallet", Memo: domain.NoMemo()},
		{Coin: "BTC", Network: "bitcoin", Address: "bc1qSecondary", Memo: domain.NoMemo()},
	}
}

type fakeRates struct {
	mu    sync.Mutex
	rate  decimal.Decimal
	err   error
	calls int
}

func (f *fakeRates) RateToUSD(ctx context.Context, currency string) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.rate, f.err
}

// fakeExchange echoes requests back as orders unless tamper is set.
type fakeExchange struct {
	mu sync.Mutex

	pairs    map[string]domain.ExchangePair
	pairErr  error
	quoteErr error
	shiftErr error
	tamper   func(*domain.Shift)

	pairCalls      []string
	quotes         []sideshift.QuoteRequest
	fixedShifts    []sideshift.FixedShiftRequest
	variableReqs   []sideshift.VariableShiftRequest
	checkoutReqs   []sideshift.CheckoutRequest
	lastQuote      domain.Quote
	checkoutLink   string
	shiftsByID     map[string]domain.Shift
	cancelled      []string
	cancelErr      error
	checkoutTamper func(*domain.Checkout)
}

func newFakeExchange() *fakeExchange {
	return &fakeExchange{pairs: map[string]domain.ExchangePair{}, shiftsByID: map[string]domain.Shift{}}
}

func (f *fakeExchange) setPair(from, to, rate, min, max string) {
	fc, fn, _ := domain.ParseCoinNetwork(from)
	tc, tn, _ := domain.ParseCoinNetwork(to)
	f.pairs[from+"/"+to] = domain.ExchangePair{
		DepositCoin: fc, DepositNetwork: fn, SettleCoin: tc, SettleNetwork: tn,
		Rate: dec(rate), Min: dec(min), Max: dec(max),
	}
}

func (f *fakeExchange) GetPair(ctx context.Context, from, to string) (domain.ExchangePair, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pairCalls = append(f.pairCalls, from+"/"+to)
	if f.pairErr != nil {
		return domain.ExchangePair{}, f.pairErr
	}
	p, ok := f.pairs[from+"/"+to]
	if !ok {
		return domain.ExchangePair{}, errors.New("pair not found: " + from + "/" + to)
	}
	return p, nil
}

func (f *fakeExchange) RequestQuote(ctx context.Context, req sideshift.QuoteRequest) (domain.Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.quotes = append(f.quotes, req)
	if f.quoteErr != nil {
		return domain.Quote{}, f.quoteErr
	}
	q := domain.Quote{
		ID:             "quote-1",
		CreatedAt:      testNow,
		DepositCoin:    req.DepositCoin,
		DepositNetwork: req.DepositNetwork,
		SettleCoin:     req.SettleCoin,
		SettleNetwork:  req.SettleNetwork,
		ExpiresAt:      testNow.Add(15 * time.Minute),
	}
	if req.SettleAmount != nil {
		q.SettleAmount = *req.SettleAmount
	}
	if req.DepositAmount != nil {
		q.DepositAmount = *req.DepositAmount
	}
	f.lastQuote = q
	return q, nil
}

func (f *fakeExchange) CreateFixedShift(ctx context.Context, req sideshift.FixedShiftRequest) (domain.Shift, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fixedShifts = append(f.fixedShifts, req)
	if f.shiftErr != nil {
		return domain.Shift{}, f.shiftErr
	}
	q := f.lastQuote
	s := domain.Shift{
		ID:             "shift-1",
		CreatedAt:      testNow,
		Type:           domain.ShiftFixed,
		Status:         domain.StatusWaiting,
		QuoteID:        req.QuoteID,
		DepositCoin:    q.DepositCoin,
		DepositNetwork: q.DepositNetwork,
		DepositAddress: "deposit-address",
		SettleCoin:     q.SettleCoin,
		SettleNetwork:  q.SettleNetwork,
		SettleAddress:  req.SettleAddress,
		SettleAmount:   decimal.NewNullDecimal(q.SettleAmount),
		ExpiresAt:      q.ExpiresAt,
	}
	if req.ExternalID != nil {
		s.ExternalID = *req.ExternalID
	}
	if req.SettleMemo != nil {
		s.SettleMemo = *req.SettleMemo
	}
	if f.tamper != nil {
		f.tamper(&s)
	}
	return s, nil
}

func (f *fakeExchange) CreateVariableShift(ctx context.Context, req sideshift.VariableShiftRequest) (domain.Shift, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.variableReqs = append(f.variableReqs, req)
	if f.shiftErr != nil {
		return domain.Shift{}, f.shiftErr
	}
	s := domain.Shift{
		ID:             "variable-1",
		CreatedAt:      testNow,
		Type:           domain.ShiftVariable,
		Status:         domain.StatusWaiting,
		DepositCoin:    req.DepositCoin,
		DepositNetwork: req.DepositNetwork,
		SettleCoin:     req.SettleCoin,
		SettleNetwork:  req.SettleNetwork,
		SettleAddress:  req.SettleAddress,
	}
	if f.tamper != nil {
		f.tamper(&s)
	}
	return s, nil
}

func (f *fakeExchange) CreateCheckout(ctx context.Context, req sideshift.CheckoutRequest) (domain.Checkout, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checkoutReqs = append(f.checkoutReqs, req)
	if f.shiftErr != nil {
		return domain.Checkout{}, f.shiftErr
	}
	c := domain.Checkout{
		ID:            "checkout-1",
		CreatedAt:     testNow,
		SettleCoin:    req.SettleCoin,
		SettleNetwork: req.SettleNetwork,
		SettleAddress: req.SettleAddress,
		SettleAmount:  req.SettleAmount,
		SuccessURL:    req.SuccessURL,
		CancelURL:     req.CancelURL,
		Link:          f.checkoutLink,
	}
	if f.checkoutTamper != nil {
		f.checkoutTamper(&c)
	}
	return c, nil
}

func (f *fakeExchange) GetShift(ctx context.Context, id string) (domain.Shift, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.shiftsByID[id]
	if !ok {
		return domain.Shift{}, errors.New("shift not found")
	}
	return s, nil
}

func (f *fakeExchange) CancelOrder(ctx context.Context, orderID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancelErr != nil {
		return f.cancelErr
	}
	f.cancelled = append(f.cancelled, orderID)
	return nil
}

func (f *fakeExchange) remoteCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pairCalls) + len(f.quotes) + len(f.fixedShifts) + len(f.variableReqs) + len(f.checkoutReqs)
}

type recordingObserver struct {
	mu       sync.Mutex
	steps    []string
	failures []string
}

func (r *recordingObserver) ObserveStep(op, step string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps = append(r.steps, op+":"+step)
}

func (r *recordingObserver) ObserveFailure(op string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, op+":"+domain.KindOf(err).String())
}

type fakeAuditor struct {
	mu         sync.Mutex
	shifts     []string
	mismatches []domain.Mismatch
	cancels    []string
}

func (a *fakeAuditor) RecordShift(ctx context.Context, shift domain.Shift, ts int64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.shifts = append(a.shifts, shift.ID)
	return nil
}

func (a *fakeAuditor) RecordIntegrityFailure(ctx context.Context, shift domain.Shift, mm domain.Mismatch, ts int64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.mismatches = append(a.mismatches, mm)
	return nil
}

func (a *fakeAuditor) RecordCancel(ctx context.Context, shiftID string, ts int64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cancels = append(a.cancels, shiftID)
	return nil
}

type harness struct {
	cat   *catalog.Catalog
	ex    *fakeExchange
	rates *fakeRates
	obs   *recordingObserver
	audit *fakeAuditor
	orch  *Orchestrator
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		cat:   loadedCatalog(t, fixtureCoins()),
		ex:    newFakeExchange(),
		rates: &fakeRates{rate: decimal.NewFromInt(1)},
		obs:   &recordingObserver{},
		audit: &fakeAuditor{},
	}
	orch, err := NewOrchestrator(h.cat, h.ex, h.rates, testWallets(), testSetting(), zerolog.Nop(),
		WithAuditor(h.audit), WithObserver(h.obs))
	require.NoError(t, err)
	orch.now = func() time.Time { return testNow }
	h.orch = orch
	return h
}
