package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shift_processor/internal/domain"
)

var fixedNow = time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

type fakeSource struct {
	coins []domain.RawCoin
	err   error
	calls int
}

func (f *fakeSource) GetCoins(ctx context.Context) ([]domain.RawCoin, error) {
	f.calls++
	return f.coins, f.err
}

type fakeIcons struct {
	calls [][]string
	err   error
}

func (f *fakeIcons) Reconcile(ctx context.Context, keys []string) error {
	f.calls = append(f.calls, keys)
	return f.err
}

type memKeyStore struct {
	keys  []string
	saved int
}

func (m *memKeyStore) LoadCatalogKeys(ctx context.Context) ([]string, error) { return m.keys, nil }
func (m *memKeyStore) SaveCatalogKeys(ctx context.Context, keys []string, ts int64) error {
	m.keys = keys
	m.saved++
	return nil
}

type recordingObserver struct {
	errs  []error
	diffs []Diff
}

func (r *recordingObserver) ObserveRefresh(entries int, diff Diff, err error) {
	r.errs = append(r.errs, err)
	r.diffs = append(r.diffs, diff)
}

func TestDiffKeys(t *testing.T) {
	d := DiffKeys([]string{"BTC-bitcoin", "ETH-ethereum"}, []string{"btc-bitcoin", "SOL-solana"})
	assert.Equal(t, []string{"SOL-solana"}, d.Added)
	assert.Equal(t, []string{"ETH-ethereum"}, d.Removed)
	assert.True(t, d.HasNew())
	assert.False(t, DiffKeys([]string{"A-b"}, []string{"A-b"}).HasNew())
}

func TestSynchronizer_FirstRefreshReconcilesIcons(t *testing.T) {
	src := &fakeSource{coins: fixtureCoins()}
	icons := &fakeIcons{}
	obs := &recordingObserver{}
	cat := New(zerolog.Nop())

	sync := NewSynchronizer(src, cat, zerolog.Nop(), WithIcons(icons), WithObserver(obs))
	snap, diff, err := sync.Refresh(context.Background())
	require.NoError(t, err)

	assert.True(t, cat.Loaded())
	assert.Equal(t, snap.Len(), len(diff.Added))
	require.Len(t, icons.calls, 1)
	assert.Equal(t, snap.Keys(), icons.calls[0])
	require.Len(t, obs.errs, 1)
	assert.NoError(t, obs.errs[0])
}

func TestSynchronizer_AttributeChangeDoesNotReconcile(t *testing.T) {
	src := &fakeSource{coins: fixtureCoins()}
	icons := &fakeIcons{}
	cat := New(zerolog.Nop())
	sync := NewSynchronizer(src, cat, zerolog.Nop(), WithIcons(icons))

	_, _, err := sync.Refresh(context.Background())
	require.NoError(t, err)

	// same identities, BTC now offline
	changed := fixtureCoins()
	changed[0].DepositOffline = domain.FlagAll(true)
	src.coins = changed

	_, diff, err := sync.Refresh(context.Background())
	require.NoError(t, err)
	assert.False(t, diff.HasNew())
	assert.Len(t, icons.calls, 1)

	a, err := cat.Availability("BTC", "bitcoin")
	require.NoError(t, err)
	assert.False(t, a.IsShiftPossible, "new snapshot installed")
}

func TestSynchronizer_NewListingReconciles(t *testing.T) {
	src := &fakeSource{coins: fixtureCoins()}
	icons := &fakeIcons{}
	cat := New(zerolog.Nop())
	sync := NewSynchronizer(src, cat, zerolog.Nop(), WithIcons(icons))

	_, _, err := sync.Refresh(context.Background())
	require.NoError(t, err)

	src.coins = append(fixtureCoins(), domain.RawCoin{Coin: "SOL", Mainnet: "solana"})
	_, diff, err := sync.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"SOL-solana"}, diff.Added)
	assert.Len(t, icons.calls, 2)
}

func TestSynchronizer_UsesPersistedKeysAfterRestart(t *testing.T) {
	store := &memKeyStore{keys: BuildSnapshot(fixtureCoins(), fixedNow).Keys()}
	icons := &fakeIcons{}
	cat := New(zerolog.Nop())
	sync := NewSynchronizer(&fakeSource{coins: fixtureCoins()}, cat, zerolog.Nop(), WithIcons(icons), WithKeyStore(store))

	_, diff, err := sync.Refresh(context.Background())
	require.NoError(t, err)
	assert.False(t, diff.HasNew())
	assert.Empty(t, icons.calls)
	assert.Equal(t, 1, store.saved)
}

func TestSynchronizer_FetchFailureKeepsOldSnapshot(t *testing.T) {
	src := &fakeSource{coins: fixtureCoins()}
	cat := New(zerolog.Nop())
	sync := NewSynchronizer(src, cat, zerolog.Nop())

	first, _, err := sync.Refresh(context.Background())
	require.NoError(t, err)

	src.err = errors.New("503 service unavailable")
	_, _, err = sync.Refresh(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUpstream)

	current, err := cat.Snapshot()
	require.NoError(t, err)
	assert.Same(t, first, current)
}

func TestSynchronizer_IconFailureIsNotFatal(t *testing.T) {
	icons := &fakeIcons{err: errors.New("disk full")}
	cat := New(zerolog.Nop())
	sync := NewSynchronizer(&fakeSource{coins: fixtureCoins()}, cat, zerolog.Nop(), WithIcons(icons))

	_, _, err := sync.Refresh(context.Background())
	assert.NoError(t, err)
	assert.True(t, cat.Loaded())
}
