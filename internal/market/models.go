package market

import (
	"fmt"
	"time"

	"github.com/ataha322/stock-agent-hackathon/internal/cache"
)

// Quote is the provider-agnostic quote snapshot cached under the quote category.
type Quote struct {
	Symbol           string    `json:"symbol"`
	Price            float64   `json:"price"`
	Change           float64   `json:"change"`
	ChangePercent    float64   `json:"change_percent"`
	PreviousClose    float64   `json:"previous_close"`
	Volume           int64     `json:"volume"`
	LatestTradingDay time.Time `json:"latest_trading_day"`
}

// SeriesPoint is one date/close pair of a historical series, ordered ascending
// by date. Only the range-filtered series is ever cached.
type SeriesPoint struct {
	Date  time.Time `json:"date"`
	Close float64   `json:"close"`
}

// Range selects the look-back window of a historical series request.
type Range string

const (
	Range1M Range = "1m"
	Range3M Range = "3m"
	Range1Y Range = "1y"
	Range5Y Range = "5y"
)

// ParseRange validates a range string from the API surface.
func ParseRange(s string) (Range, error) {
	switch Range(s) {
	case Range1M, Range3M, Range1Y, Range5Y:
		return Range(s), nil
	default:
		return "", fmt.Errorf("invalid range %q (want 1m, 3m, 1y or 5y)", s)
	}
}

// Days returns the look-back window length in days.
func (r Range) Days() int {
	switch r {
	case Range1M:
		return 30
	case Range3M:
		return 90
	case Range1Y:
		return 365
	case Range5Y:
		return 1825
	default:
		return 0
	}
}

// Category returns the cache category for this range.
func (r Range) Category() string {
	switch r {
	case Range1M:
		return cache.CategoryHistorical1M
	case Range3M:
		return cache.CategoryHistorical3M
	case Range1Y:
		return cache.CategoryHistorical1Y
	case Range5Y:
		return cache.CategoryHistorical5Y
	default:
		return ""
	}
}

// validationResult is the payload cached under the validation category.
// Negative results are cached too, so repeated invalid-ticker entry attempts
// never re-hit the provider.
type validationResult struct {
	Valid bool `json:"valid"`
}
