package alphavantage

import "time"

// GlobalQuote is a snapshot quote for a single symbol (GLOBAL_QUOTE).
type GlobalQuote struct {
	Symbol           string
	Open             float64
	High             float64
	Low              float64
	Price            float64
	Volume           int64
	LatestTradingDay time.Time
	PreviousClose    float64
	Change           float64
	ChangePercent    float64
}

// DailyPrice is one bar of the daily time series (TIME_SERIES_DAILY).
type DailyPrice struct {
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

// SymbolMatch is one result of a symbol search (SYMBOL_SEARCH).
type SymbolMatch struct {
	Symbol     string
	Name       string
	Type       string
	Region     string
	Currency   string
	MatchScore float64
}

// CacheTTL configures the process-local response cache per endpoint.
// This cache exists to collapse duplicate HTTP calls inside one refresh
// batch; durable caching lives in the persistent store above this client.
type CacheTTL struct {
	Quote        time.Duration
	TimeSeries   time.Duration
	SymbolSearch time.Duration
}

// DefaultCacheTTL returns the default memory-cache TTLs.
func DefaultCacheTTL() CacheTTL {
	return CacheTTL{
		Quote:        5 * time.Minute,
		TimeSeries:   1 * time.Hour,
		SymbolSearch: 24 * time.Hour,
	}
}
