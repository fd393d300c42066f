package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"shift_processor/internal/catalog"
	"shift_processor/internal/domain"
	"shift_processor/internal/infra"
	"shift_processor/internal/infra/sideshift"
	"shift_processor/internal/poller"
	"shift_processor/internal/settlement"
)

func main() {
	secretPath := flag.String("secrets", "secrets/sideshift.yaml", "secrets file with the SideShift secret and affiliate id")
	address := flag.String("address", "", "settle address for the test shift (USDT on bsc)")
	wait := flag.Bool("wait", false, "wait for the delayed cancellation to run")
	flag.Parse()

	// 1. Setup Logger
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
	logger.Info().Msg("🚀 Starting SideShift Integration Test...")

	// 2. Load Secret Config First
	logger.Info().Str("path", *secretPath).Msg("🔑 Loading Secrets")
	secretCfg, err := infra.LoadSecretConfig(*secretPath)
	if err != nil {
		logger.Error().Err(err).Msg("❌ Failed to load secrets")
		os.Exit(1)
	}
	if *address == "" {
		logger.Error().Msg("❌ -address is required")
		os.Exit(1)
	}

	// 3. Config is built in code; the test never reads config.yaml
	cfg := infra.DefaultConfig()
	secretCfg.Apply(cfg)
	cfg.Wallets = []infra.WalletConfig{{Coin: "USDT", Network: "bsc", Address: *address}}

	client := sideshift.NewClient(sideshift.Options{
		BaseURL:     cfg.SideShift.BaseURL,
		Credentials: sideshift.NewCredentials(cfg.SideShift.Secret, cfg.SideShift.AffiliateID),
		Timeout:     cfg.SideShift.Timeout.Duration,
	}, logger)
	// Ensure the client wipes its secret on exit
	defer client.Close()

	ctx := context.Background()

	// STEP 1: Catalog
	cat := catalog.New(logger)
	snap, _, err := catalog.NewSynchronizer(client, cat, logger).Refresh(ctx)
	if err != nil {
		fail(logger, "Refresh", err)
	}
	logger.Info().Int("entries", snap.Len()).Int("stable", len(snap.StableCoins())).Msg("✅ STEP 1: Catalog loaded")

	// STEP 2: Settlement data for a small fiat amount
	rates := infra.NewFiatRateClient(cfg.FiatRate.URL, cfg.FiatRate.Timeout.Duration, logger)
	orch, err := settlement.NewOrchestrator(cat, client, rates, cfg.SettleWallets(), cfg.CurrencySetting(), logger)
	if err != nil {
		fail(logger, "NewOrchestrator", err)
	}
	data, err := orch.GetSettlementData(ctx, decimal.NewFromInt(25), "ETH-ethereum")
	if err != nil {
		fail(logger, "GetSettlementData", err)
	}
	logger.Info().Str("settle_amount", data.SettleAmount.String()).Str("wallet", data.Wallet.Key()).Msg("✅ STEP 2: Settlement data")

	// STEP 3: Variable shift into the test wallet, integrity-checked
	shift, err := orch.CreateVariableShift(ctx, settlement.VariableShiftRequest{
		DepositCoin:    "ETH",
		DepositNetwork: "ethereum",
	})
	if err != nil {
		fail(logger, "CreateVariableShift", err)
	}
	logger.Info().Str("shift", shift.ID).Str("deposit_address", shift.DepositAddress).Msg("✅ STEP 3: Variable shift created")

	// STEP 4: Cancel (delayed until the shift is old enough)
	tracker := poller.NewMemoryTracker(16, time.Hour, logger)
	canceller := settlement.NewCanceller(client, tracker, settlement.DefaultCancelGrace, 16, logger)
	defer canceller.Close()

	outcome, err := canceller.RequestCancel(ctx, shift.ID)
	if err != nil {
		fail(logger, "RequestCancel", err)
	}
	logger.Info().Str("outcome", outcome.String()).Msg("✅ STEP 4: Cancellation requested")

	if *wait && outcome == settlement.CancelScheduled {
		logger.Info().Dur("grace", settlement.DefaultCancelGrace).Msg("⏳ waiting for delayed cancellation")
		for canceller.Pending(shift.ID) {
			time.Sleep(5 * time.Second)
		}
		final, err := client.GetShift(ctx, shift.ID)
		if err != nil {
			fail(logger, "GetShift", err)
		}
		logger.Info().Str("status", string(final.Status)).Msg("✅ STEP 5: Shift status after cancel")
	}

	logger.Info().Msg("🎉 Integration Test Passed!")
}

func fail(logger zerolog.Logger, step string, err error) {
	logger.Error().Err(err).Str("step", step).Str("kind", domain.KindOf(err).String()).Msg("❌ Integration step failed")
	os.Exit(1)
}
