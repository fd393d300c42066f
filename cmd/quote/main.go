package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"shift_processor/internal/catalog"
	"shift_processor/internal/domain"
	"shift_processor/internal/infra"
	"shift_processor/internal/infra/sideshift"
	"shift_processor/internal/settlement"
)

func main() {
	deposit := flag.String("deposit", "", "deposit coin-network, e.g. ETH-ethereum")
	settle := flag.String("settle", "", "settle coin-network; empty uses the configured wallets")
	amount := flag.String("amount", "100", "amount in the shop currency")
	flag.Parse()

	if err := run(*deposit, *settle, *amount); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}

func run(deposit, settle, amount string) error {
	fiat, err := decimal.NewFromString(amount)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", amount, err)
	}

	cfg, err := infra.LoadConfig(infra.ResolveConfigPath())
	if err != nil {
		return err
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.WarnLevel)

	client := sideshift.NewClient(sideshift.Options{
		BaseURL:        cfg.SideShift.BaseURL,
		Credentials:    sideshift.NewCredentials(cfg.SideShift.Secret, cfg.SideShift.AffiliateID),
		CommissionRate: cfg.SideShift.CommissionRate,
		Timeout:        cfg.SideShift.Timeout.Duration,
	}, logger)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cat := catalog.New(logger)
	snap, _, err := catalog.NewSynchronizer(client, cat, logger).Refresh(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("=== Shift Processor Quote (%d coin-networks listed) ===\n\n", snap.Len())

	rates := infra.NewFiatRateClient(cfg.FiatRate.URL, cfg.FiatRate.Timeout.Duration, logger)
	orch, err := settlement.NewOrchestrator(cat, client, rates, cfg.SettleWallets(), cfg.CurrencySetting(), logger)
	if err != nil {
		return err
	}

	if settle != "" {
		coin, network, err := domain.ParseCoinNetwork(settle)
		if err != nil {
			return err
		}
		out, err := orch.Converter().USDToSettleAmount(ctx, fiat, coin, network)
		if err != nil {
			return err
		}
		fmt.Printf("💱 %s %s -> %s %s\n", fiat, cfg.Shop.Currency, out, settle)
		return nil
	}

	if deposit == "" {
		return fmt.Errorf("-deposit or -settle is required")
	}
	data, err := orch.GetSettlementData(ctx, fiat, deposit)
	if err != nil {
		return err
	}

	fmt.Printf("📥 Deposit:  %s\n", deposit)
	fmt.Printf("📤 Settle:   %s %s\n", data.SettleAmount, data.Wallet.Key())
	fmt.Printf("   Wallet:   %s\n", infra.MaskAddress(data.Wallet.Address))
	if memo, ok := data.Wallet.Memo.Value(); ok {
		fmt.Printf("   Memo:     %s\n", memo)
	}
	if data.Pair != nil {
		fmt.Printf("📊 Rate:     %s (min %s, max %s)\n", data.Pair.Rate, data.Pair.Min, data.Pair.Max)
	}
	if link, ok := snap.ExplorerLink(data.Wallet.Network); ok {
		fmt.Printf("🔎 Explorer: %s%s\n", link, data.Wallet.Address)
	}
	return nil
}
