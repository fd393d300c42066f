package catalog

import (
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"shift_processor/internal/domain"
)

// ErrNotLoaded is returned by every query until the first snapshot is installed.
var ErrNotLoaded = domain.Errorf(domain.KindConfiguration, "catalog", "catalog not loaded")

// Catalog holds the current listing snapshot.
// Readers never block: they get whichever snapshot is installed.
type Catalog struct {
	current atomic.Pointer[Snapshot]
	log     zerolog.Logger
	now     func() time.Time
}

// New returns an empty catalog. Queries fail until Load or Install.
func New(logger zerolog.Logger) *Catalog {
	return &Catalog{
		log: logger.With().Str("component", "catalog").Logger(),
		now: time.Now,
	}
}

// Load builds a snapshot from the raw listing and installs it.
func (c *Catalog) Load(raw []domain.RawCoin) *Snapshot {
	s := BuildSnapshot(raw, c.now())
	c.Install(s)
	return s
}

// Install swaps s in and returns the previous snapshot (nil on first load).
func (c *Catalog) Install(s *Snapshot) *Snapshot {
	prev := c.current.Swap(s)
	if d := s.Duplicates(); len(d) > 0 {
		c.log.Warn().Strs("keys", d).Msg("duplicate coin-network keys dropped")
	}
	c.log.Debug().Int("entries", s.Len()).Int("stable", len(s.stable)).Msg("snapshot installed")
	return prev
}

// Snapshot returns the installed snapshot. Take it once per operation.
func (c *Catalog) Snapshot() (*Snapshot, error) {
	s := c.current.Load()
	if s == nil {
		return nil, ErrNotLoaded
	}
	return s, nil
}

// Loaded reports whether a snapshot has been installed.
func (c *Catalog) Loaded() bool {
	return c.current.Load() != nil
}

// IsValid reports whether coinNetwork is listed (case-insensitive).
func (c *Catalog) IsValid(coinNetwork string) (bool, error) {
	s, err := c.Snapshot()
	if err != nil {
		return false, err
	}
	return s.IsValid(coinNetwork), nil
}

// Availability reports the deposit/settle state of a coin on a network.
func (c *Catalog) Availability(coin, network string) (domain.Availability, error) {
	s, err := c.Snapshot()
	if err != nil {
		return domain.Offline(), err
	}
	return s.Availability(coin, network), nil
}

// Decimals returns the token precision override, if any.
func (c *Catalog) Decimals(coin, network string) (int, bool, error) {
	s, err := c.Snapshot()
	if err != nil {
		return 0, false, err
	}
	d, ok := s.Decimals(coin, network)
	return d, ok, nil
}

// AlternativeStableCoin resolves a rate-discovery substitute for ref.
func (c *Catalog) AlternativeStableCoin(ref string) (string, bool, error) {
	s, err := c.Snapshot()
	if err != nil {
		return "", false, err
	}
	alt, ok := s.AlternativeStableCoin(ref)
	return alt, ok, nil
}

// TokenContract returns the contract address of a token on network.
func (c *Catalog) TokenContract(coin, network string) (string, bool, error) {
	s, err := c.Snapshot()
	if err != nil {
		return "", false, err
	}
	addr, ok := s.TokenContract(coin, network)
	return addr, ok, nil
}

// ExplorerLink returns the address-explorer base URL for network.
func (c *Catalog) ExplorerLink(network string) (string, bool, error) {
	s, err := c.Snapshot()
	if err != nil {
		return "", false, err
	}
	link, ok := s.ExplorerLink(network)
	return link, ok, nil
}
