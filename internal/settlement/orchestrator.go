package settlement

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"shift_processor/internal/catalog"
	"shift_processor/internal/domain"
	"shift_processor/internal/infra/sideshift"
	"shift_processor/pkg/safe"
)

// Step is a state of the per-request state machine.
type Step string

const (
	StepValidated        Step = "validated"
	StepQuoteRequested   Step = "quote_requested"
	StepShiftCreated     Step = "shift_created"
	StepIntegrityChecked Step = "integrity_checked"
	StepReturned         Step = "returned"
	StepFailed           Step = "failed"
)

// variableNominalFiat only picks a wallet for variable shifts; the amount is not fixed.
var variableNominalFiat = decimal.NewFromInt(200)

// impliedPlaces is the precision of settleAmount / pairRate in bound checks.
const impliedPlaces int32 = 8

// SettlementData is everything needed to create a shift for a fiat amount.
type SettlementData struct {
	Wallet       domain.Wallet
	SettleAmount decimal.Decimal
	Pair         *domain.ExchangePair
}

// Orchestrator drives quote, shift and checkout creation against the exchange.
// It holds no per-request state; steps of one request run strictly in order.
type Orchestrator struct {
	cat         *catalog.Catalog
	conv        *Converter
	wallets     *WalletSelector
	ex          Exchange
	checkoutURL string
	auditor     Auditor
	obs         Observer
	log         zerolog.Logger
	now         clock
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithAuditor records created shifts and integrity failures.
func WithAuditor(a Auditor) Option {
	return func(o *Orchestrator) { o.auditor = a }
}

// WithObserver counts steps and failures.
func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) {
		if obs != nil {
			o.obs = obs
		}
	}
}

// WithCheckoutURL overrides the hosted checkout link prefix.
func WithCheckoutURL(base string) Option {
	return func(o *Orchestrator) {
		if base != "" && !strings.HasSuffix(base, "/") {
			base += "/"
		}
		o.checkoutURL = base
	}
}

// NewOrchestrator wires the orchestrator to an explicitly injected catalog.
// Every operation fails closed until the catalog has been loaded.
func NewOrchestrator(cat *catalog.Catalog, ex Exchange, rates FiatRateSource, wallets []domain.Wallet, setting domain.CurrencySetting, logger zerolog.Logger, opts ...Option) (*Orchestrator, error) {
	const op = "settlement.NewOrchestrator"
	if cat == nil {
		return nil, domain.Errorf(domain.KindConfiguration, op, "catalog is required")
	}
	if ex == nil || rates == nil {
		return nil, domain.Errorf(domain.KindConfiguration, op, "exchange and fiat rate source are required")
	}
	if _, _, err := domain.ParseCoinNetwork(setting.USDReferenceCoin); err != nil {
		return nil, domain.Wrap(domain.KindConfiguration, op, err, "invalid USD reference coin")
	}

	o := &Orchestrator{
		cat:         cat,
		conv:        NewConverter(cat, rates, ex, setting, logger),
		wallets:     NewWalletSelector(cat, wallets),
		ex:          ex,
		checkoutURL: sideshift.CheckoutURL,
		obs:         nopObserver{},
		log:         logger.With().Str("component", "orchestrator").Logger(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Converter exposes the rate converter.
func (o *Orchestrator) Converter() *Converter { return o.conv }

// Wallets exposes the wallet selector.
func (o *Orchestrator) Wallets() *WalletSelector { return o.wallets }

// GetSettlementData resolves wallet, settle amount and pair for a fiat payment
// deposited in depositCoinNetwork.
func (o *Orchestrator) GetSettlementData(ctx context.Context, fiatAmount decimal.Decimal, depositCoinNetwork string) (SettlementData, error) {
	const op = "settlement.GetSettlementData"

	snap, err := o.cat.Snapshot()
	if err != nil {
		return SettlementData{}, err
	}
	if !snap.IsValid(depositCoinNetwork) {
		return SettlementData{}, domain.Errorf(domain.KindValidation, op, "invalid deposit coin or network %q", depositCoinNetwork)
	}

	wallet, err := o.wallets.SelectSettleWallet(depositCoinNetwork)
	if err != nil {
		return SettlementData{}, err
	}

	settleAmount, err := o.conv.FiatToCrypto(ctx, fiatAmount, depositCoinNetwork, wallet.Key())
	if err != nil {
		return SettlementData{}, domain.Rewrap(op, err, "failed to calculate amount for %s %s to %s",
			fiatAmount, depositCoinNetwork, wallet.Key())
	}

	pair, err := o.IsShiftAvailable(ctx, depositCoinNetwork, wallet.Key(), &settleAmount)
	if err != nil {
		return SettlementData{}, err
	}

	return SettlementData{Wallet: wallet, SettleAmount: settleAmount, Pair: pair}, nil
}

// IsShiftAvailable checks both coin-networks against the catalog and, when
// settleAmount is given, the pair's deposit bounds. The pair is returned only
// when a bound check was made.
func (o *Orchestrator) IsShiftAvailable(ctx context.Context, depositCoinNetwork, settleCoinNetwork string, settleAmount *decimal.Decimal) (*domain.ExchangePair, error) {
	const op = "settlement.IsShiftAvailable"

	snap, err := o.cat.Snapshot()
	if err != nil {
		return nil, err
	}
	if !snap.IsValid(depositCoinNetwork) {
		return nil, domain.Errorf(domain.KindValidation, op, "invalid deposit coin %q", depositCoinNetwork)
	}
	if !snap.IsValid(settleCoinNetwork) {
		return nil, domain.Errorf(domain.KindValidation, op, "invalid settle coin %q", settleCoinNetwork)
	}

	avail := snap.ShiftAvailability(depositCoinNetwork, settleCoinNetwork)
	if !avail.IsShiftPossible {
		return nil, domain.Errorf(domain.KindAvailability, op,
			"shift %s to %s unavailable: deposit offline %t, settle offline %t",
			depositCoinNetwork, settleCoinNetwork, avail.IsDepositOffline, avail.IsSettleOffline)
	}

	if settleAmount == nil {
		return nil, nil
	}
	pair, err := o.checkBounds(ctx, depositCoinNetwork, settleCoinNetwork, *settleAmount)
	if err != nil {
		return nil, err
	}
	return &pair, nil
}

func (o *Orchestrator) checkBounds(ctx context.Context, deposit, settle string, settleAmount decimal.Decimal) (domain.ExchangePair, error) {
	const op = "settlement.checkBounds"

	pair, err := o.ex.GetPair(ctx, deposit, settle)
	if err != nil {
		return domain.ExchangePair{}, domain.Rewrap(op, err, "pair %s to %s", deposit, settle)
	}
	if !pair.Rate.IsPositive() {
		return domain.ExchangePair{}, domain.Errorf(domain.KindValidation, op, "pair %s to %s has no usable rate", deposit, settle)
	}

	coin := pair.DepositCoin
	if coin == "" {
		coin, _, _ = strings.Cut(deposit, "-")
	}
	implied := safe.Div(settleAmount, pair.Rate, impliedPlaces)

	if implied.LessThan(pair.Min) {
		return domain.ExchangePair{}, &domain.Error{
			Kind:  domain.KindAvailability,
			Op:    op,
			Msg:   "amount " + implied.String() + " is below the minimum of " + pair.Min.String() + " " + coin + " required to create a shift",
			Bound: &domain.BoundViolation{Side: domain.BelowMinimum, Amount: implied, Limit: pair.Min, Coin: coin},
		}
	}
	if pair.Max.IsPositive() && implied.GreaterThan(pair.Max) {
		return domain.ExchangePair{}, &domain.Error{
			Kind:  domain.KindAvailability,
			Op:    op,
			Msg:   "amount " + implied.String() + " is above the maximum of " + pair.Max.String() + " " + coin + " required to create a shift",
			Bound: &domain.BoundViolation{Side: domain.AboveMaximum, Amount: implied, Limit: pair.Max, Coin: coin},
		}
	}
	return pair, nil
}

// RequestQuoteAndShift requests a quote and creates a fixed shift from it.
// The amount sent is rounded to the coin's own decimals when the catalog has them.
func (o *Orchestrator) RequestQuoteAndShift(ctx context.Context, req QuoteShiftRequest) (domain.Shift, error) {
	f := o.begin("RequestQuoteAndShift", req.DepositCoin, req.DepositNetwork, req.SettleCoin, req.SettleNetwork, req.ExternalID)
	shift, err := o.quoteAndShift(ctx, f, req)
	if err != nil {
		return domain.Shift{}, f.fail(err)
	}
	f.advance(StepReturned)
	return shift, nil
}

// quoteAndShift creates the fixed shift and checks it against the request.
func (o *Orchestrator) quoteAndShift(ctx context.Context, f *flow, req QuoteShiftRequest) (domain.Shift, error) {
	const op = "settlement.RequestQuoteAndShift"

	if err := validateRequest(op, req); err != nil {
		return domain.Shift{}, err
	}
	if (req.DepositAmount == nil) == (req.SettleAmount == nil) {
		return domain.Shift{}, domain.Errorf(domain.KindValidation, op, "exactly one of deposit amount or settle amount is required")
	}
	if (req.SettleAmount != nil && !req.SettleAmount.IsPositive()) || (req.DepositAmount != nil && !req.DepositAmount.IsPositive()) {
		return domain.Shift{}, domain.Errorf(domain.KindValidation, op, "amount to shift must be greater than zero")
	}

	deposit := domain.Key(req.DepositCoin, req.DepositNetwork)
	settle := domain.Key(req.SettleCoin, req.SettleNetwork)

	if _, err := o.IsShiftAvailable(ctx, deposit, settle, req.SettleAmount); err != nil {
		return domain.Shift{}, err
	}

	quoteReq := sideshift.QuoteRequest{
		DepositCoin:    req.DepositCoin,
		DepositNetwork: req.DepositNetwork,
		SettleCoin:     req.SettleCoin,
		SettleNetwork:  req.SettleNetwork,
		UserIP:         req.UserIP,
	}
	var amountDesc string
	if req.SettleAmount != nil {
		a := o.roundFor(req.SettleCoin, req.SettleNetwork, *req.SettleAmount)
		quoteReq.SettleAmount = &a
		amountDesc = a.String() + " " + settle
	} else {
		a := o.roundFor(req.DepositCoin, req.DepositNetwork, *req.DepositAmount)
		quoteReq.DepositAmount = &a
		amountDesc = a.String() + " " + deposit
	}
	f.advance(StepValidated)

	quote, err := o.ex.RequestQuote(ctx, quoteReq)
	if err != nil {
		return domain.Shift{}, domain.Rewrap(op, err, "error creating quote: %s to %s (%s)", deposit, settle, amountDesc)
	}
	f.advance(StepQuoteRequested)

	shift, err := o.ex.CreateFixedShift(ctx, sideshift.FixedShiftRequest{
		SettleAddress: req.SettleAddress,
		SettleMemo:    req.SettleMemo.Ptr(),
		RefundAddress: req.RefundAddress,
		RefundMemo:    req.RefundMemo,
		QuoteID:       quote.ID,
		ExternalID:    req.ExternalID,
		UserIP:        req.UserIP,
	})
	if err != nil {
		return domain.Shift{}, domain.Rewrap(op, err, "error creating shift from quote %s: %s to %s (%s)", quote.ID, deposit, settle, amountDesc)
	}
	f.advance(StepShiftCreated)
	o.recordShift(ctx, shift)

	// a deposit-amount quote leaves the settle amount to the exchange
	exp := Expectation{
		SettleCoin:    req.SettleCoin,
		SettleNetwork: req.SettleNetwork,
		SettleAddress: req.SettleAddress,
		SettleAmount:  quoteReq.SettleAmount,
	}
	if err := o.verify(ctx, exp, shift); err != nil {
		return domain.Shift{}, err
	}
	f.advance(StepIntegrityChecked)
	return shift, nil
}

// roundFor applies the coin-specific decimals, else the configured precision.
func (o *Orchestrator) roundFor(coin, network string, amount decimal.Decimal) decimal.Decimal {
	places := o.conv.Setting().DecimalPrecision
	if d, ok, err := o.cat.Decimals(coin, network); err == nil && ok && d >= 0 {
		if int32(d) != places {
			o.log.Debug().Str("coin", domain.Key(coin, network)).Int("decimals", d).Msg("coin-specific decimals")
		}
		places = int32(d)
	}
	return safe.Round(amount, places)
}

// CreateFixedShiftFromUSD converts a shop-currency amount and creates a fixed
// shift into the requested destination, then checks the returned order.
func (o *Orchestrator) CreateFixedShiftFromUSD(ctx context.Context, req FiatShiftRequest) (domain.Shift, error) {
	const op = "settlement.CreateFixedShiftFromUSD"
	f := o.begin("CreateFixedShiftFromUSD", req.DepositCoin, req.DepositNetwork, req.SettleCoin, req.SettleNetwork, req.ExternalID)

	if err := validateRequest(op, req); err != nil {
		return domain.Shift{}, f.fail(err)
	}

	deposit := domain.Key(req.DepositCoin, req.DepositNetwork)
	settle := domain.Key(req.SettleCoin, req.SettleNetwork)

	settleAmount, err := o.conv.FiatToCrypto(ctx, req.FiatAmount, deposit, settle)
	if err != nil {
		return domain.Shift{}, f.fail(domain.Rewrap(op, err, "failed to calculate amount for %s %s to %s", req.FiatAmount, deposit, settle))
	}

	shift, err := o.quoteAndShift(ctx, f, QuoteShiftRequest{
		DepositCoin:    req.DepositCoin,
		DepositNetwork: req.DepositNetwork,
		SettleCoin:     req.SettleCoin,
		SettleNetwork:  req.SettleNetwork,
		SettleAddress:  req.SettleAddress,
		SettleMemo:     req.SettleMemo,
		SettleAmount:   &settleAmount,
		RefundAddress:  req.RefundAddress,
		RefundMemo:     req.RefundMemo,
		ExternalID:     req.ExternalID,
		UserIP:         req.UserIP,
	})
	if err != nil {
		return domain.Shift{}, f.fail(err)
	}
	f.advance(StepReturned)
	return shift, nil
}

// CreateCryptocurrencyPayment creates a fixed shift for a shop-currency amount
// into the configured wallets.
func (o *Orchestrator) CreateCryptocurrencyPayment(ctx context.Context, req PaymentRequest) (domain.Shift, error) {
	const op = "settlement.CreateCryptocurrencyPayment"
	f := o.begin("CreateCryptocurrencyPayment", req.DepositCoin, req.DepositNetwork, "", "", req.ExternalID)

	if err := validateRequest(op, req); err != nil {
		return domain.Shift{}, f.fail(err)
	}
	if !req.FiatAmount.IsPositive() {
		return domain.Shift{}, f.fail(domain.Errorf(domain.KindValidation, op, "amount to shift must be greater than zero, got %s", req.FiatAmount))
	}

	deposit := domain.Key(req.DepositCoin, req.DepositNetwork)
	data, err := o.GetSettlementData(ctx, req.FiatAmount, deposit)
	if err != nil {
		return domain.Shift{}, f.fail(err)
	}
	f.advance(StepValidated)

	// failures past this point are counted by CreateFixedShiftFromUSD
	shift, err := o.CreateFixedShiftFromUSD(ctx, FiatShiftRequest{
		DepositCoin:    req.DepositCoin,
		DepositNetwork: req.DepositNetwork,
		FiatAmount:     req.FiatAmount,
		SettleCoin:     data.Wallet.Coin,
		SettleNetwork:  data.Wallet.Network,
		SettleAddress:  data.Wallet.Address,
		SettleMemo:     data.Wallet.Memo,
		RefundAddress:  req.RefundAddress,
		RefundMemo:     req.RefundMemo,
		ExternalID:     req.ExternalID,
		UserIP:         req.UserIP,
	})
	if err != nil {
		return domain.Shift{}, err
	}
	f.advance(StepReturned)
	return shift, nil
}

// CreateVariableShift creates a variable-rate shift into the configured wallets.
// The returned order is checked without an amount, which is unknown until deposit.
func (o *Orchestrator) CreateVariableShift(ctx context.Context, req VariableShiftRequest) (domain.Shift, error) {
	const op = "settlement.CreateVariableShift"
	f := o.begin("CreateVariableShift", req.DepositCoin, req.DepositNetwork, "", "", req.ExternalID)

	if err := validateRequest(op, req); err != nil {
		return domain.Shift{}, f.fail(err)
	}

	deposit := domain.Key(req.DepositCoin, req.DepositNetwork)
	data, err := o.GetSettlementData(ctx, variableNominalFiat, deposit)
	if err != nil {
		return domain.Shift{}, f.fail(err)
	}
	wallet := data.Wallet

	if _, err := o.IsShiftAvailable(ctx, deposit, wallet.Key(), nil); err != nil {
		return domain.Shift{}, f.fail(err)
	}
	f.advance(StepValidated)

	shift, err := o.ex.CreateVariableShift(ctx, sideshift.VariableShiftRequest{
		SettleAddress:  wallet.Address,
		SettleMemo:     wallet.Memo.Ptr(),
		RefundAddress:  req.RefundAddress,
		RefundMemo:     req.RefundMemo,
		DepositCoin:    req.DepositCoin,
		DepositNetwork: req.DepositNetwork,
		SettleCoin:     wallet.Coin,
		SettleNetwork:  wallet.Network,
		ExternalID:     req.ExternalID,
		UserIP:         req.UserIP,
	})
	if err != nil {
		return domain.Shift{}, f.fail(domain.Rewrap(op, err, "error creating variable shift: %s to %s", deposit, wallet.Key()))
	}
	f.advance(StepShiftCreated)
	o.recordShift(ctx, shift)

	if err := o.verify(ctx, expectFor(wallet, nil), shift); err != nil {
		return domain.Shift{}, f.fail(err)
	}
	f.advance(StepIntegrityChecked)
	f.advance(StepReturned)
	return shift, nil
}

// RequestCheckout creates a hosted checkout and returns it with its link.
func (o *Orchestrator) RequestCheckout(ctx context.Context, req CheckoutRequest) (domain.Checkout, error) {
	const op = "settlement.RequestCheckout"
	f := o.begin("RequestCheckout", "", "", req.SettleCoin, req.SettleNetwork, req.ExternalID)

	if err := validateRequest(op, req); err != nil {
		return domain.Checkout{}, f.fail(err)
	}
	if !req.SettleAmount.IsPositive() {
		return domain.Checkout{}, f.fail(domain.Errorf(domain.KindValidation, op, "settle amount must be greater than zero"))
	}
	f.advance(StepValidated)

	checkout, err := o.ex.CreateCheckout(ctx, sideshift.CheckoutRequest{
		SettleCoin:    req.SettleCoin,
		SettleNetwork: req.SettleNetwork,
		SettleAmount:  req.SettleAmount,
		SettleAddress: req.SettleAddress,
		SettleMemo:    req.SettleMemo.Ptr(),
		SuccessURL:    req.SuccessURL,
		CancelURL:     req.CancelURL,
		ExternalID:    req.ExternalID,
		UserIP:        req.UserIP,
	})
	if err != nil {
		return domain.Checkout{}, f.fail(domain.Rewrap(op, err, "error creating checkout: %s - %s %s (%s)",
			req.SettleAddress, req.SettleAmount, req.SettleCoin, req.SettleNetwork))
	}
	f.advance(StepShiftCreated)

	if checkout.Link == "" {
		checkout.Link = o.checkoutURL + checkout.ID
	}

	amount := req.SettleAmount
	exp := Expectation{SettleCoin: req.SettleCoin, SettleNetwork: req.SettleNetwork, SettleAddress: req.SettleAddress, SettleAmount: &amount}
	if err := VerifyCheckout(exp, checkout); err != nil {
		return domain.Checkout{}, f.fail(err)
	}
	f.advance(StepIntegrityChecked)
	f.advance(StepReturned)
	return checkout, nil
}

func (o *Orchestrator) verify(ctx context.Context, exp Expectation, shift domain.Shift) error {
	err := VerifyShift(exp, shift)
	if err == nil {
		return nil
	}
	o.log.Error().
		Err(err).
		Str("shift", shift.ID).
		Str("expected_address", exp.SettleAddress).
		Str("returned_address", shift.SettleAddress).
		Msg("🚨 shift integrity check failed")
	if o.auditor != nil {
		var de *domain.Error
		if errors.As(err, &de) && de.Mismatch != nil {
			if aerr := o.auditor.RecordIntegrityFailure(ctx, shift, *de.Mismatch, o.now().UnixMicro()); aerr != nil {
				o.log.Warn().Err(aerr).Str("shift", shift.ID).Msg("audit write failed")
			}
		}
	}
	return err
}

func (o *Orchestrator) recordShift(ctx context.Context, shift domain.Shift) {
	if o.auditor == nil {
		return
	}
	if err := o.auditor.RecordShift(ctx, shift, o.now().UnixMicro()); err != nil {
		o.log.Warn().Err(err).Str("shift", shift.ID).Msg("audit write failed")
	}
}
