package domain

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/goccy/go-json"
)

// CoinNetwork is one tradable coin on one network, as listed by the exchange.
// Offline flags are nil when the exchange did not report them.
type CoinNetwork struct {
	Coin            string
	Network         string
	Name            string
	ContractAddress string
	Decimals        *int
	DepositOffline  *bool
	SettleOffline   *bool
	HasMemo         bool
	IsToken         bool
	FixedOnly       bool
	VariableOnly    bool
}

// Key returns the "SYMBOL-network" identity.
func (c CoinNetwork) Key() string {
	return Key(c.Coin, c.Network)
}

// Availability is the result of an availability lookup.
type Availability struct {
	IsDepositOffline bool
	IsSettleOffline  bool
	IsShiftPossible  bool
}

// Offline returns an Availability for a coin nobody knows about.
func Offline() Availability {
	return Availability{IsDepositOffline: true, IsSettleOffline: true}
}

// Key formats a coin-network identity.
func Key(coin, network string) string {
	return coin + "-" + network
}

// SameKey compares two coin-network identities case-insensitively.
func SameKey(a, b string) bool {
	return strings.EqualFold(a, b)
}

var (
	coinPattern    = regexp.MustCompile(`^[A-Za-z0-9.]+$`)
	networkPattern = regexp.MustCompile(`^[A-Za-z0-9.\-]+$`)
)

// ParseCoinNetwork splits "SYMBOL-network" on the first dash.
func ParseCoinNetwork(s string) (coin, network string, err error) {
	s = strings.TrimSpace(s)
	coin, network, ok := strings.Cut(s, "-")
	if !ok || coin == "" || network == "" {
		return "", "", Errorf(KindValidation, "domain.ParseCoinNetwork", "invalid coin-network %q", s)
	}
	if !coinPattern.MatchString(coin) || !networkPattern.MatchString(network) {
		return "", "", Errorf(KindValidation, "domain.ParseCoinNetwork", "invalid coin-network %q", s)
	}
	return coin, network, nil
}

// SanitizeKey strips every character that is not alphanumeric, '-' or '.'.
// Used to derive file names from coin-network identities.
func SanitizeKey(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.':
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// NetworkFlag decodes the exchange's "bool or list of networks" fields
// (depositOffline, settleOffline, fixedOnly, variableOnly).
type NetworkFlag struct {
	Known    bool
	All      bool
	Networks []string
}

// FlagAll builds a flag that applies to every network.
func FlagAll(v bool) NetworkFlag {
	return NetworkFlag{Known: true, All: v}
}

// FlagNetworks builds a flag that applies only to the listed networks.
func FlagNetworks(networks ...string) NetworkFlag {
	return NetworkFlag{Known: true, Networks: networks}
}

func (f *NetworkFlag) UnmarshalJSON(data []byte) error {
	*f = NetworkFlag{}
	if string(data) == "null" {
		return nil
	}

	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		f.Known, f.All = true, b
		return nil
	}

	var nets []string
	if err := json.Unmarshal(data, &nets); err != nil {
		return fmt.Errorf("network flag: expected bool or string list, got %s", string(data))
	}
	f.Known, f.Networks = true, nets
	return nil
}

func (f NetworkFlag) MarshalJSON() ([]byte, error) {
	switch {
	case !f.Known:
		return []byte("null"), nil
	case len(f.Networks) > 0:
		return json.Marshal(f.Networks)
	default:
		return json.Marshal(f.All)
	}
}

// For resolves the flag for one network. Nil means unknown.
func (f NetworkFlag) For(network string) *bool {
	if !f.Known {
		return nil
	}
	v := f.All
	for _, n := range f.Networks {
		if strings.EqualFold(n, network) {
			v = true
			break
		}
	}
	return &v
}

// TokenDetail is the per-network contract info of a token.
type TokenDetail struct {
	ContractAddress string `json:"contractAddress"`
	Decimals        *int   `json:"decimals,omitempty"`
}

// RawCoin is one element of the exchange's coin listing.
type RawCoin struct {
	Coin             string                 `json:"coin"`
	Name             string                 `json:"name"`
	Networks         []string               `json:"networks"`
	Mainnet          string                 `json:"mainnet"`
	NetworksWithMemo []string               `json:"networksWithMemo,omitempty"`
	TokenDetails     map[string]TokenDetail `json:"tokenDetails,omitempty"`
	DepositOffline   NetworkFlag            `json:"depositOffline"`
	SettleOffline    NetworkFlag            `json:"settleOffline"`
	FixedOnly        NetworkFlag            `json:"fixedOnly"`
	VariableOnly     NetworkFlag            `json:"variableOnly"`
}

// ExpandedNetworks returns the coin's networks, falling back to the mainnet.
func (r RawCoin) ExpandedNetworks() []string {
	if len(r.Networks) > 0 {
		return r.Networks
	}
	if r.Mainnet != "" {
		return []string{r.Mainnet}
	}
	return nil
}
