package catalog

import (
	"strings"

	"shift_processor/internal/domain"
)

// PreferredStableNetworks are tried in order when no alternative stablecoin
// exists on the reference coin's own network.
var PreferredStableNetworks = []string{"avax", "bsc", "polygon", "tron", "solana"}

// IsStableCoin reports whether the symbol part of a coin-network contains USD or DAI.
// Stablecoins are priced 1:1 against USD.
func IsStableCoin(coinNetwork string) bool {
	symbol, _, _ := strings.Cut(coinNetwork, "-")
	s := strings.ToUpper(symbol)
	return strings.Contains(s, "USD") || strings.Contains(s, "DAI")
}

// AlternativeStableCoin finds a stablecoin to stand in for ref during rate
// discovery. It never returns ref itself.
func (s *Snapshot) AlternativeStableCoin(ref string) (string, bool) {
	_, refNetwork, _ := strings.Cut(ref, "-")

	for _, key := range s.stable {
		_, net, _ := strings.Cut(key, "-")
		if strings.EqualFold(net, refNetwork) && !domain.SameKey(key, ref) {
			return key, true
		}
	}

	for _, preferred := range PreferredStableNetworks {
		if strings.EqualFold(preferred, refNetwork) {
			continue
		}
		for _, key := range s.stable {
			_, net, _ := strings.Cut(key, "-")
			if strings.EqualFold(net, preferred) && !domain.SameKey(key, ref) {
				return key, true
			}
		}
	}

	return "", false
}
