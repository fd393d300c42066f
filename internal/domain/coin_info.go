package domain

// CoinInfo is the persisted per coin-network record kept next to the catalog.
// Fields ordered for cache-line friendliness (8-byte fields first).
type CoinInfo struct {
	LastSyncedUnixM int64  `json:"last_synced_unix,string"` // icon download, Unix Micro
	CreatedAtUnixM  int64  `json:"created_at_unix,string"`
	UpdatedAtUnixM  int64  `json:"updated_at_unix,string"`
	Key             string `json:"key"`
	Name            string `json:"name"`
	IconPath        string `json:"icon_path"`
	IsActive        bool   `json:"is_active"` // shift possible at last refresh
	HasMemo         bool   `json:"has_memo"`
}
