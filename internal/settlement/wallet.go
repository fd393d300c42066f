package settlement

import (
	"shift_processor/internal/catalog"
	"shift_processor/internal/domain"
)

// WalletSelector picks which configured wallet receives a settlement.
// The first wallet is the main one, the optional second the secondary.
type WalletSelector struct {
	cat     *catalog.Catalog
	wallets []domain.Wallet
}

// NewWalletSelector keeps at most two wallets.
func NewWalletSelector(cat *catalog.Catalog, wallets []domain.Wallet) *WalletSelector {
	if len(wallets) > 2 {
		wallets = wallets[:2]
	}
	return &WalletSelector{cat: cat, wallets: append([]domain.Wallet(nil), wallets...)}
}

// Wallets returns the configured wallets, main first.
func (s *WalletSelector) Wallets() []domain.Wallet {
	return append([]domain.Wallet(nil), s.wallets...)
}

// SelectSettleWallet returns the wallet a deposit in depositCoinNetwork settles into.
// A deposit in the main wallet's coin-network goes to the secondary wallet so the
// exchange never sees a self-pair.
func (s *WalletSelector) SelectSettleWallet(depositCoinNetwork string) (domain.Wallet, error) {
	const op = "settlement.SelectSettleWallet"
	if len(s.wallets) == 0 {
		return domain.Wallet{}, domain.Errorf(domain.KindConfiguration, op, "no wallet set, settlement unavailable")
	}

	snap, err := s.cat.Snapshot()
	if err != nil {
		return domain.Wallet{}, err
	}

	main := s.wallets[0]
	target := main
	if len(s.wallets) == 2 && domain.SameKey(depositCoinNetwork, main.Key()) {
		target = s.wallets[1]
	}

	if !snap.SettleOnline(target.Key()) {
		return domain.Wallet{}, domain.Errorf(domain.KindAvailability, op,
			"cannot set settle wallet %s, try again later", target.Key())
	}
	return target, nil
}

// SettleWalletsOnline reports the settle availability of each configured wallet.
func (s *WalletSelector) SettleWalletsOnline() ([]bool, error) {
	if len(s.wallets) == 0 {
		return nil, domain.Errorf(domain.KindConfiguration, "settlement.SettleWalletsOnline", "no wallet set")
	}
	snap, err := s.cat.Snapshot()
	if err != nil {
		return nil, err
	}
	out := make([]bool, len(s.wallets))
	for i, w := range s.wallets {
		out[i] = snap.SettleOnline(w.Key())
	}
	return out, nil
}
