package catalog

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"shift_processor/internal/domain"
)

// CoinSource fetches the exchange's full coin listing.
type CoinSource interface {
	GetCoins(ctx context.Context) ([]domain.RawCoin, error)
}

// KeyStore persists the last seen identity set across restarts.
type KeyStore interface {
	LoadCatalogKeys(ctx context.Context) ([]string, error)
	SaveCatalogKeys(ctx context.Context, keys []string, ts int64) error
}

// IconReconciler downloads icons for listed keys and removes unlisted ones.
type IconReconciler interface {
	Reconcile(ctx context.Context, keys []string) error
}

// RefreshObserver receives the outcome of every refresh.
type RefreshObserver interface {
	ObserveRefresh(entries int, diff Diff, err error)
}

// Diff is the identity change between two snapshots.
type Diff struct {
	Added   []string
	Removed []string
}

// HasNew reports whether a key appeared.
func (d Diff) HasNew() bool { return len(d.Added) > 0 }

// DiffKeys compares identity sets case-insensitively. Attributes are ignored.
func DiffKeys(prev, next []string) Diff {
	before := make(map[string]struct{}, len(prev))
	for _, k := range prev {
		before[strings.ToLower(k)] = struct{}{}
	}
	after := make(map[string]struct{}, len(next))
	var d Diff
	for _, k := range next {
		lk := strings.ToLower(k)
		after[lk] = struct{}{}
		if _, ok := before[lk]; !ok {
			d.Added = append(d.Added, k)
		}
	}
	for _, k := range prev {
		if _, ok := after[strings.ToLower(k)]; !ok {
			d.Removed = append(d.Removed, k)
		}
	}
	return d
}

// Synchronizer refreshes the catalog from the exchange.
// Scheduling is up to the caller.
type Synchronizer struct {
	source   CoinSource
	catalog  *Catalog
	store    KeyStore
	icons    IconReconciler
	observer RefreshObserver
	log      zerolog.Logger
	now      func() time.Time
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithKeyStore persists identity sets so diffs survive restarts.
func WithKeyStore(store KeyStore) Option {
	return func(s *Synchronizer) { s.store = store }
}

// WithIcons enables icon reconciliation on new listings.
func WithIcons(icons IconReconciler) Option {
	return func(s *Synchronizer) { s.icons = icons }
}

// WithObserver reports refresh outcomes (metrics).
func WithObserver(o RefreshObserver) Option {
	return func(s *Synchronizer) { s.observer = o }
}

// NewSynchronizer wires a synchronizer for cat.
func NewSynchronizer(source CoinSource, cat *Catalog, logger zerolog.Logger, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		source:  source,
		catalog: cat,
		log:     logger.With().Str("component", "catalog-sync").Logger(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Refresh fetches the listing, installs a new snapshot and reconciles icons
// when new coin-networks appeared. Icon failures are logged, not returned.
func (s *Synchronizer) Refresh(ctx context.Context) (*Snapshot, Diff, error) {
	raw, err := s.source.GetCoins(ctx)
	if err != nil {
		err = domain.Rewrap("catalog.Refresh", err, "fetch coin list")
		s.observe(0, Diff{}, err)
		return nil, Diff{}, err
	}

	prevKeys := s.previousKeys(ctx)

	snap := BuildSnapshot(raw, s.now())
	s.catalog.Install(snap)

	keys := snap.Keys()
	diff := DiffKeys(prevKeys, keys)

	if s.store != nil {
		if err := s.store.SaveCatalogKeys(ctx, keys, s.now().UnixMicro()); err != nil {
			s.log.Warn().Err(err).Msg("failed to persist catalog keys")
		}
	}

	if diff.HasNew() && s.icons != nil {
		s.log.Info().Int("new", len(diff.Added)).Msg("🆕 new coins listed, reconciling icons")
		if err := s.icons.Reconcile(ctx, keys); err != nil {
			s.log.Error().Err(err).Msg("icon reconciliation failed")
		}
	}

	s.log.Info().
		Int("entries", snap.Len()).
		Int("added", len(diff.Added)).
		Int("removed", len(diff.Removed)).
		Msg("✅ catalog refreshed")
	s.observe(snap.Len(), diff, nil)
	return snap, diff, nil
}

// previousKeys prefers the in-memory snapshot, then the persisted set.
func (s *Synchronizer) previousKeys(ctx context.Context) []string {
	if prev, err := s.catalog.Snapshot(); err == nil {
		return prev.Keys()
	}
	if s.store == nil {
		return nil
	}
	keys, err := s.store.LoadCatalogKeys(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to load persisted catalog keys")
		return nil
	}
	return keys
}

func (s *Synchronizer) observe(entries int, diff Diff, err error) {
	if s.observer != nil {
		s.observer.ObserveRefresh(entries, diff, err)
	}
}
