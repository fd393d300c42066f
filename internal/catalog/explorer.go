package catalog

import (
	"sort"
	"strings"
)

const explorerBaseURL = "https://3xpl.com/"

// 3xpl chain slugs.
var explorerChains = map[string]struct{}{
	"aptos": {}, "arbitrum-one": {}, "avalanche": {}, "base": {}, "beacon-chain": {}, "bitcoin": {},
	"bitcoin-cash": {}, "blast": {}, "bnb": {}, "bob": {}, "botanix": {}, "cardano": {}, "dash": {},
	"digibyte": {}, "dogecoin": {}, "ecash": {}, "ethereum": {}, "ethereum-classic": {}, "fantom": {},
	"galactica-evm": {}, "gnosis-chain": {}, "groestlcoin": {}, "handshake": {}, "kusama": {},
	"linea": {}, "liquid-network": {}, "litecoin": {}, "mantle": {}, "merlin": {}, "monero": {},
	"moonbeam": {}, "opbnb": {}, "optimism": {}, "peercoin": {}, "polkadot": {}, "polygon": {},
	"polygon-zkevm": {}, "rootstock": {}, "scroll": {}, "sei-evm": {}, "solana": {}, "stacks": {},
	"stellar": {}, "ton": {}, "tron": {}, "xrp-ledger": {}, "zcash": {}, "zksync-era": {},
}

// Exchange network name -> 3xpl slug.
var explorerAliases = map[string]string{
	"arbitrum":    "arbitrum-one",
	"avax":        "avalanche",
	"bitcoincash": "bitcoin-cash",
	"bsc":         "bnb",
	"doge":        "dogecoin",
	"seievm":      "sei-evm",
	"liquid":      "liquid-network",
	"xec":         "ecash",
	"zksyncera":   "zksync-era",
	"ripple":      "xrp-ledger",
}

// explorerSlug maps an exchange network to its explorer slug, or "" if unsupported.
func explorerSlug(network string) string {
	n := strings.ToLower(network)
	if alias, ok := explorerAliases[n]; ok {
		return alias
	}
	if _, ok := explorerChains[n]; ok {
		return n
	}
	return ""
}

func buildExplorerLinks(networks []string) map[string]string {
	links := make(map[string]string)
	for _, n := range networks {
		if slug := explorerSlug(n); slug != "" {
			links[slug] = explorerBaseURL + slug + "/address/"
		}
	}
	return links
}

// ExplorerLink returns the address-explorer base URL for an exchange network.
func (s *Snapshot) ExplorerLink(network string) (string, bool) {
	link, ok := s.explorers[explorerSlug(network)]
	return link, ok
}

// ExplorerSlugs lists the explorer chains covered by the current listing, sorted.
func (s *Snapshot) ExplorerSlugs() []string {
	out := make([]string, 0, len(s.explorers))
	for slug := range s.explorers {
		out = append(out, slug)
	}
	sort.Strings(out)
	return out
}
