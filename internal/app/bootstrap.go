package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"shift_processor/internal/catalog"
	"shift_processor/internal/domain"
	"shift_processor/internal/infra"
	"shift_processor/internal/infra/sideshift"
	"shift_processor/internal/poller"
	"shift_processor/internal/settlement"
	"shift_processor/internal/storage"
)

// DefaultSecretsPath is read when SHIFT_SECRETS is not set. A missing file is not an error.
const DefaultSecretsPath = "secrets/sideshift.yaml"

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config  *infra.Config
	Logger  zerolog.Logger
	Paths   infra.DataPaths
	Store   *storage.Store
	Metrics *infra.Metrics

	Client  *sideshift.Client
	Breaker *infra.CircuitBreaker
	Rates   *infra.FiatRateClient
	Catalog *catalog.Catalog
	Sync    *catalog.Synchronizer
	Icons   *infra.IconStore

	Orchestrator *settlement.Orchestrator
	Tracker      *poller.MemoryTracker
	Payments     *settlement.Payments
	Canceller    *settlement.Canceller
	Redirects    *settlement.RedirectGuard

	// Quiet suppresses the startup banner.
	Quiet bool
	// Backoff paces LoadCatalog retries.
	Backoff infra.Backoff

	unlock func()
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{Logger: zerolog.Nop(), Backoff: infra.DefaultBackoff()}
}

// Initialize loads configuration and secrets, then wires every component.
func (b *Bootstrap) Initialize() error {
	// 1. Load Config (Dynamic Path Resolution)
	cfg, err := infra.LoadConfig(infra.ResolveConfigPath())
	if err != nil {
		return err // Let main handle the error
	}

	// 1.1 Secrets file (optional; environment wins)
	secretsPath := os.Getenv("SHIFT_SECRETS")
	if secretsPath == "" {
		secretsPath = DefaultSecretsPath
	}
	if _, statErr := os.Stat(secretsPath); statErr == nil {
		secrets, err := infra.LoadSecretConfig(secretsPath)
		if err != nil {
			return err
		}
		secrets.Apply(cfg)
	}

	return b.InitializeWith(cfg)
}

// InitializeWith wires every component from an already loaded config.
func (b *Bootstrap) InitializeWith(cfg *infra.Config) error {
	b.Config = cfg

	// 2. Setup Logger
	b.Logger = infra.NewLogger(cfg)
	b.Logger.Info().Msg("🚀 Bootstrapping Shift Processor...")
	if !b.Quiet {
		infra.PrintBanner(cfg)
	}

	// 3. Storage (Single-Writer WAL DB)
	b.Paths = infra.ResolveDataPaths(cfg)
	if err := infra.EnsureDir(b.Paths.DataDir); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}
	if err := infra.EnsureDir(b.Paths.IconDir); err != nil {
		return fmt.Errorf("failed to create icon dir: %w", err)
	}

	// 3.1 Singleton Instance Lock
	unlock, err := infra.CreateLockFile(b.Paths.DataDir)
	if err != nil {
		return err
	}
	b.unlock = unlock

	store, err := storage.Open(b.Paths.Database)
	if err != nil {
		b.Close()
		return err
	}
	b.Store = store
	b.Logger.Info().Str("path", b.Paths.Database).Msg("✅ Store initialized (WAL-mode)")

	// 4. Metrics
	b.Metrics = infra.NewMetrics("")

	// 5. Exchange client behind a circuit breaker
	bcfg := infra.DefaultCircuitBreakerConfig("sideshift")
	bcfg.FailureThreshold = cfg.SideShift.Breaker.FailureThreshold
	bcfg.SuccessThreshold = cfg.SideShift.Breaker.SuccessThreshold
	bcfg.Timeout = cfg.SideShift.Breaker.Timeout.Duration
	bcfg.OnStateChange = b.Metrics.ObserveCircuit
	b.Breaker = infra.NewCircuitBreaker(bcfg, b.Logger)

	b.Client = sideshift.NewClient(sideshift.Options{
		BaseURL:        cfg.SideShift.BaseURL,
		CheckoutURL:    cfg.SideShift.CheckoutURL,
		Credentials:    sideshift.NewCredentials(cfg.SideShift.Secret, cfg.SideShift.AffiliateID),
		CommissionRate: cfg.SideShift.CommissionRate,
		Timeout:        cfg.SideShift.Timeout.Duration,
		Breaker:        b.Breaker,
		Observe:        b.Metrics.ObserveUpstream,
	}, b.Logger)
	// the plain-text copy is no longer needed once the client holds it
	cfg.SideShift.Secret = ""

	b.Rates = infra.NewFiatRateClient(cfg.FiatRate.URL, cfg.FiatRate.Timeout.Duration, b.Logger)

	// 6. Catalog + synchronizer
	b.Catalog = catalog.New(b.Logger)
	b.Icons = infra.NewIconStore(b.Paths.IconDir, b.Client, cfg.Catalog.IconDelay.Duration, b.Logger)
	b.Icons.SetObserver(b.Metrics.ObserveIcon)
	b.Sync = catalog.NewSynchronizer(b.Client, b.Catalog, b.Logger,
		catalog.WithKeyStore(b.Store),
		catalog.WithIcons(b.Icons),
		catalog.WithObserver(b.Metrics),
	)

	// 7. Settlement
	orch, err := settlement.NewOrchestrator(b.Catalog, b.Client, b.Rates, cfg.SettleWallets(), cfg.CurrencySetting(), b.Logger,
		settlement.WithAuditor(b.Store),
		settlement.WithObserver(b.Metrics),
		settlement.WithCheckoutURL(cfg.SideShift.CheckoutURL),
	)
	if err != nil {
		b.Close()
		return err
	}
	b.Orchestrator = orch

	b.Tracker = poller.NewMemoryTracker(cfg.Payments.TrackerCacheSize, cfg.Payments.TrackerTTL.Duration, b.Logger)
	b.Payments = settlement.NewPayments(orch, b.Tracker, b.Logger)
	b.Canceller = settlement.NewCanceller(b.Client, b.Tracker, cfg.Payments.CancelGrace.Duration, cfg.Payments.CancelCacheSize, b.Logger,
		settlement.WithCancelAuditor(b.Store),
		settlement.WithScheduleHook(b.Metrics.ObserveCancel),
	)
	b.Redirects = settlement.NewRedirectGuard(cfg.Payments.RedirectLimit, cfg.Payments.RedirectCacheSize,
		cfg.Payments.RedirectReset.Duration, b.Metrics.ObserveRedirectBlock)

	b.Logger.Info().Int("wallets", len(cfg.Wallets)).Msg("✅ Settlement wired")
	return nil
}

// SyncCatalog refreshes the listing and records one CoinInfo per coin-network.
func (b *Bootstrap) SyncCatalog(ctx context.Context) (catalog.Diff, error) {
	b.Logger.Info().Msg("🔄 Starting catalog synchronization...")

	snap, diff, err := b.Sync.Refresh(ctx)
	if err != nil {
		return catalog.Diff{}, err
	}

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, 4)
	var mu sync.Mutex
	var errs []error

	nowUnixM := time.Now().UnixMicro()
	for _, entry := range snap.Entries() {
		wg.Add(1)
		go func(e domain.CoinNetwork) {
			defer wg.Done()
			select {
			case <-ctx.Done():
				return
			case semaphore <- struct{}{}:
			}
			defer func() { <-semaphore }()

			key := e.Key()
			avail := snap.Availability(e.Coin, e.Network)
			info := domain.CoinInfo{
				Key:            key,
				Name:           e.Name,
				IsActive:       avail.IsShiftPossible,
				HasMemo:        e.HasMemo,
				UpdatedAtUnixM: nowUnixM,
			}

			if existing, ok, err := b.Store.GetCoinInfo(ctx, key); err == nil && ok {
				info.LastSyncedUnixM = existing.LastSyncedUnixM
				info.IconPath = existing.IconPath
			}
			if path, ok := b.Icons.Path(key); ok {
				if info.IconPath != path {
					info.LastSyncedUnixM = nowUnixM
				}
				info.IconPath = path
			}

			if err := b.Store.UpsertCoinInfo(ctx, info); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}(entry)
	}
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		b.Logger.Warn().Err(err).Int("failed", len(errs)).Msg("some coin records were not saved")
	}
	b.Logger.Info().
		Int("entries", snap.Len()).
		Int("added", len(diff.Added)).
		Int("removed", len(diff.Removed)).
		Msg("✨ Catalog synchronization completed")
	return diff, ctx.Err()
}

// LoadCatalog runs the initial synchronization, retrying upstream failures with backoff.
func (b *Bootstrap) LoadCatalog(ctx context.Context, attempts int) error {
	return b.Backoff.Retry(ctx, attempts, func(ctx context.Context) error {
		_, err := b.SyncCatalog(ctx)
		return err
	}, func(attempt int, delay time.Duration, err error) {
		b.Logger.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", delay).Msg("catalog load failed, retrying")
	})
}

// Close releases every resource acquired by Initialize. Safe to call twice.
func (b *Bootstrap) Close() {
	if b.Canceller != nil {
		b.Canceller.Close()
	}
	if b.Client != nil {
		b.Client.Close()
	}
	if b.Store != nil {
		if err := b.Store.Close(); err != nil {
			b.Logger.Warn().Err(err).Msg("store close failed")
		}
		b.Store = nil
	}
	if b.unlock != nil {
		b.unlock()
		b.unlock = nil
	}
}
