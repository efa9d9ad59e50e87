package watchlist

import "time"

// Entry is one watched symbol with its last known quote snapshot.
// Snapshot fields are nil until the first successful refresh.
type Entry struct {
	Symbol         string     `json:"symbol"`
	AddedAt        time.Time  `json:"added_at"`
	Price          *float64   `json:"price,omitempty"`
	Change         *float64   `json:"change,omitempty"`
	ChangePercent  *float64   `json:"change_percent,omitempty"`
	QuoteUpdatedAt *time.Time `json:"quote_updated_at,omitempty"`
}

// RefreshResult summarizes one bulk refresh: per-symbol outcomes plus counts.
type RefreshResult struct {
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
	Errors    map[string]string `json:"errors,omitempty"`
}
