package catalog

import (
	"sort"
	"strings"
	"time"

	"shift_processor/internal/domain"
)

// Snapshot is an immutable view of the exchange listing.
// A new one is built on every refresh and swapped in whole.
type Snapshot struct {
	entries   []domain.CoinNetwork
	index     map[string]int // lower-cased key -> entries position
	stable    []string
	raw       []domain.RawCoin
	networks  []string
	explorers map[string]string
	builtAt   time.Time

	// keys dropped because an earlier entry already claimed them
	duplicates []string
}

// BuildSnapshot expands every coin into one entry per network.
// The first occurrence of a key wins.
func BuildSnapshot(raw []domain.RawCoin, now time.Time) *Snapshot {
	s := &Snapshot{
		index:   make(map[string]int),
		raw:     raw,
		builtAt: now,
	}

	seenNetworks := make(map[string]struct{})
	for _, coin := range raw {
		for _, net := range coin.ExpandedNetworks() {
			key := domain.Key(coin.Coin, net)
			lk := strings.ToLower(key)
			if _, dup := s.index[lk]; dup {
				s.duplicates = append(s.duplicates, key)
				continue
			}

			entry := domain.CoinNetwork{
				Coin:           coin.Coin,
				Network:        net,
				Name:           coin.Name,
				DepositOffline: coin.DepositOffline.For(net),
				SettleOffline:  coin.SettleOffline.For(net),
				HasMemo:        containsFold(coin.NetworksWithMemo, net),
			}
			if v := coin.FixedOnly.For(net); v != nil {
				entry.FixedOnly = *v
			}
			if v := coin.VariableOnly.For(net); v != nil {
				entry.VariableOnly = *v
			}
			if detail, ok := tokenDetail(coin.TokenDetails, net); ok {
				entry.IsToken = len(coin.Networks) > 0
				entry.ContractAddress = detail.ContractAddress
				entry.Decimals = detail.Decimals
			}

			s.index[lk] = len(s.entries)
			s.entries = append(s.entries, entry)
			if IsStableCoin(key) {
				s.stable = append(s.stable, key)
			}
			if _, ok := seenNetworks[net]; !ok {
				seenNetworks[net] = struct{}{}
				s.networks = append(s.networks, net)
			}
		}
	}

	s.explorers = buildExplorerLinks(s.networks)
	return s
}

func tokenDetail(details map[string]domain.TokenDetail, network string) (domain.TokenDetail, bool) {
	if d, ok := details[network]; ok {
		return d, true
	}
	for n, d := range details {
		if strings.EqualFold(n, network) {
			return d, true
		}
	}
	return domain.TokenDetail{}, false
}

func containsFold(list []string, v string) bool {
	for _, s := range list {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}

// Len returns the number of coin-network entries.
func (s *Snapshot) Len() int { return len(s.entries) }

// BuiltAt returns when the snapshot was built.
func (s *Snapshot) BuiltAt() time.Time { return s.builtAt }

// Duplicates lists keys that were dropped while building.
func (s *Snapshot) Duplicates() []string { return append([]string(nil), s.duplicates...) }

// Keys returns the ordered identity set.
func (s *Snapshot) Keys() []string {
	out := make([]string, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.Key()
	}
	return out
}

// Entries returns a copy of the ordered entries.
func (s *Snapshot) Entries() []domain.CoinNetwork {
	return append([]domain.CoinNetwork(nil), s.entries...)
}

// StableCoins returns the ordered stablecoin keys.
func (s *Snapshot) StableCoins() []string { return append([]string(nil), s.stable...) }

// Raw returns the listing the snapshot was built from.
func (s *Snapshot) Raw() []domain.RawCoin { return s.raw }

// Lookup finds an entry by key, case-insensitively.
func (s *Snapshot) Lookup(key string) (domain.CoinNetwork, bool) {
	i, ok := s.index[strings.ToLower(key)]
	if !ok {
		return domain.CoinNetwork{}, false
	}
	return s.entries[i], true
}

// IsValid reports whether key is listed.
func (s *Snapshot) IsValid(key string) bool {
	_, ok := s.index[strings.ToLower(key)]
	return ok
}

// Availability reports both sides of one coin-network.
// Unknown flags count as offline.
func (s *Snapshot) Availability(coin, network string) domain.Availability {
	e, ok := s.Lookup(domain.Key(coin, network))
	if !ok {
		return domain.Offline()
	}
	dep := isOffline(e.DepositOffline)
	set := isOffline(e.SettleOffline)
	return domain.Availability{
		IsDepositOffline: dep,
		IsSettleOffline:  set,
		IsShiftPossible:  !dep && !set,
	}
}

// ShiftAvailability reports the deposit side of one coin and the settle side of another.
func (s *Snapshot) ShiftAvailability(depositKey, settleKey string) domain.Availability {
	a := domain.Offline()
	if e, ok := s.Lookup(depositKey); ok {
		a.IsDepositOffline = isOffline(e.DepositOffline)
	}
	if e, ok := s.Lookup(settleKey); ok {
		a.IsSettleOffline = isOffline(e.SettleOffline)
	}
	a.IsShiftPossible = !a.IsDepositOffline && !a.IsSettleOffline
	return a
}

// SettleOnline reports whether key can currently be settled into.
func (s *Snapshot) SettleOnline(key string) bool {
	e, ok := s.Lookup(key)
	return ok && !isOffline(e.SettleOffline)
}

func isOffline(flag *bool) bool {
	return flag == nil || *flag
}

// Decimals returns the token-specific precision, if the exchange reports one.
func (s *Snapshot) Decimals(coin, network string) (int, bool) {
	e, ok := s.Lookup(domain.Key(coin, network))
	if !ok || e.Decimals == nil {
		return 0, false
	}
	return *e.Decimals, true
}

// TokenContract returns the token's contract address on network.
func (s *Snapshot) TokenContract(coin, network string) (string, bool) {
	e, ok := s.Lookup(domain.Key(coin, network))
	if !ok || !e.IsToken || e.ContractAddress == "" {
		return "", false
	}
	return e.ContractAddress, true
}

// TokenGroup is the set of tokens living on one chain.
type TokenGroup struct {
	Chain  string
	Tokens []domain.RawCoin
}

// Groups splits the listing into networks, native coins and tokens.
type Groups struct {
	SupportedNetworks []string
	MainnetCoins      []domain.RawCoin
	TokensByChain     []TokenGroup
}

// Groups classifies the raw listing. Order follows the listing.
func (s *Snapshot) Groups() Groups {
	supported := make(map[string]struct{})
	var g Groups
	for _, c := range s.raw {
		for _, n := range c.Networks {
			if _, ok := supported[n]; !ok {
				supported[n] = struct{}{}
				g.SupportedNetworks = append(g.SupportedNetworks, n)
			}
		}
	}

	chainPos := make(map[string]int)
	for _, c := range s.raw {
		if _, ok := supported[c.Mainnet]; ok && c.Mainnet != "" {
			g.MainnetCoins = append(g.MainnetCoins, c)
			continue
		}
		chains := make([]string, 0, len(c.TokenDetails))
		for chain := range c.TokenDetails {
			chains = append(chains, chain)
		}
		sort.Strings(chains)
		for _, chain := range chains {
			i, ok := chainPos[chain]
			if !ok {
				i = len(g.TokensByChain)
				chainPos[chain] = i
				g.TokensByChain = append(g.TokensByChain, TokenGroup{Chain: chain})
			}
			g.TokensByChain[i].Tokens = append(g.TokensByChain[i].Tokens, c)
		}
	}
	return g
}
