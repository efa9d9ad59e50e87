package alphavantage

import "fmt"

// ErrRateLimitExceeded is returned when the daily request budget is exhausted
// or the provider signals throttling in its response body.
type ErrRateLimitExceeded struct{}

func (e ErrRateLimitExceeded) Error() string {
	return "alpha vantage rate limit exceeded, try again later"
}

// ErrInvalidAPIKey is returned when the provider rejects the configured key.
type ErrInvalidAPIKey struct{}

func (e ErrInvalidAPIKey) Error() string {
	return "alpha vantage API key is invalid or missing"
}

// ErrSymbolNotFound is returned when the provider has no data for a symbol.
type ErrSymbolNotFound struct {
	Symbol string
}

func (e ErrSymbolNotFound) Error() string {
	return fmt.Sprintf("symbol not found: %s", e.Symbol)
}

// ErrHTTPStatus is returned for transport-level failures (non-200 responses).
type ErrHTTPStatus struct {
	Status int
}

func (e ErrHTTPStatus) Error() string {
	return fmt.Sprintf("alpha vantage returned HTTP status %d", e.Status)
}
