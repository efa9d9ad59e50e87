package market

import "fmt"

// Error taxonomy surfaced to callers. The presentation layer distinguishes
// rate-limit (wait and retry) from invalid-symbol (user input error) from
// transient transport failure (retryable).

// ErrInvalidSymbol means the user asked for a symbol the provider does not know.
type ErrInvalidSymbol struct {
	Symbol string
}

func (e ErrInvalidSymbol) Error() string {
	return fmt.Sprintf("invalid symbol: %s", e.Symbol)
}

// ErrRateLimitExceeded means the provider budget is exhausted; never cached.
type ErrRateLimitExceeded struct{}

func (e ErrRateLimitExceeded) Error() string {
	return "provider rate limit exceeded, try again later"
}

// ErrNoDataAvailable means the provider had no data for an otherwise valid request.
type ErrNoDataAvailable struct {
	Symbol string
}

func (e ErrNoDataAvailable) Error() string {
	return fmt.Sprintf("no data available for %s", e.Symbol)
}

// ErrUpstreamHTTP is a transport-level failure talking to the provider.
type ErrUpstreamHTTP struct {
	Status int
}

func (e ErrUpstreamHTTP) Error() string {
	if e.Status == 0 {
		return "upstream request failed"
	}
	return fmt.Sprintf("upstream returned HTTP status %d", e.Status)
}
