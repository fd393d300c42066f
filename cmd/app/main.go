package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"shift_processor/internal/app"
)

const initialLoadAttempts = 5

func main() {
	os.Exit(run())
}

func run() int {
	// 1. System Bootstrapping
	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(); err != nil {
		log.Error().Err(err).Msg("❌ Bootstrapping failed")
		return 1
	}
	defer bootstrap.Close()

	logger := bootstrap.Logger
	cfg := bootstrap.Config

	// 2. Graceful Shutdown Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Initial catalog load; nothing works until it succeeds
	if err := bootstrap.LoadCatalog(ctx, initialLoadAttempts); err != nil {
		logger.Error().Err(err).Msg("❌ Initial catalog load failed")
		return 1
	}

	// 4. Settle wallets must be usable at startup
	online, err := bootstrap.Orchestrator.Wallets().SettleWalletsOnline()
	switch {
	case err != nil:
		logger.Warn().Err(err).Msg("⚠️ Payment creation disabled")
	case !online[0]:
		logger.Error().Str("wallet", cfg.Wallets[0].Coin+"-"+cfg.Wallets[0].Network).Msg("❌ Main settle wallet is offline")
		return 1
	case len(online) > 1 && !online[1]:
		logger.Warn().Str("wallet", cfg.Wallets[1].Coin+"-"+cfg.Wallets[1].Network).Msg("⚠️ Secondary settle wallet is offline")
	}

	// 5. Metrics endpoint
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", bootstrap.Metrics.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			if !bootstrap.Catalog.Loaded() {
				http.Error(w, "catalog not loaded", http.StatusServiceUnavailable)
				return
			}
			w.Write([]byte("ok"))
		})
		srv := &http.Server{Addr: cfg.Metrics.Listen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		go func() {
			logger.Info().Str("listen", cfg.Metrics.Listen).Msg("📈 Metrics server started")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("Metrics server failed")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	// 6. Periodic refresh
	ticker := time.NewTicker(cfg.Catalog.RefreshInterval.Duration)
	defer ticker.Stop()

	logger.Info().Dur("refresh", cfg.Catalog.RefreshInterval.Duration).Msg("✨ Shift Processor fully operational. Press Ctrl+C to exit.")

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("👋 Shutting down gracefully...")
			return 0
		case <-ticker.C:
			// a failed refresh keeps the previous snapshot
			if _, err := bootstrap.SyncCatalog(ctx); err != nil {
				logger.Warn().Err(err).Msg("catalog refresh failed")
			}
		}
	}
}
