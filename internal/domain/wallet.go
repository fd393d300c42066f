package domain

// Memo is either absent or carries a destination tag / memo value.
type Memo struct {
	value string
	set   bool
}

// NoMemo is the absent memo.
func NoMemo() Memo { return Memo{} }

// MemoOf wraps a memo value. An empty value is still a present memo.
func MemoOf(v string) Memo { return Memo{value: v, set: true} }

// Value returns the memo and whether it is present.
func (m Memo) Value() (string, bool) { return m.value, m.set }

func (m Memo) IsSet() bool { return m.set }

// Ptr returns nil for NoMemo, for optional request fields.
func (m Memo) Ptr() *string {
	if !m.set {
		return nil
	}
	v := m.value
	return &v
}

func (m Memo) String() string {
	if !m.set {
		return "<none>"
	}
	return m.value
}

// Wallet is a settlement destination configured by the merchant.
type Wallet struct {
	Coin    string
	Network string
	Address string
	Memo    Memo
}

// Key returns the wallet's coin-network identity.
func (w Wallet) Key() string {
	return Key(w.Coin, w.Network)
}
