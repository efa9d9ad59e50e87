// Package market adapts the raw provider client into normalized, cache-first
// market data operations. Every read consults the persistent store before the
// provider, and every successful provider response is persisted before return.
package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ataha322/stock-agent-hackathon/internal/cache"
	"github.com/ataha322/stock-agent-hackathon/internal/clients/alphavantage"
)

// Adapter is the market-data gateway: normalized quotes, symbol validation
// and range-filtered historical series.
type Adapter struct {
	client alphavantage.ClientInterface
	store  *cache.Repository
	log    zerolog.Logger
}

// NewAdapter creates a market data adapter over the given provider client
// and persistent store.
func NewAdapter(client alphavantage.ClientInterface, store *cache.Repository, log zerolog.Logger) *Adapter {
	return &Adapter{
		client: client,
		store:  store,
		log:    log.With().Str("adapter", "market").Logger(),
	}
}

// NormalizeSymbol canonicalizes a user-supplied ticker. All cache keys and
// provider calls use the canonical form.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// GetQuote returns the quote for a symbol, serving from the store when a
// fresh entry exists and hitting the provider otherwise. A provider failure
// after a cache miss surfaces as an error; stale entries are never returned
// implicitly.
func (a *Adapter) GetQuote(ctx context.Context, symbol string) (*Quote, error) {
	symbol = NormalizeSymbol(symbol)
	if symbol == "" {
		return nil, ErrInvalidSymbol{Symbol: symbol}
	}

	if raw, err := a.store.GetIfFresh(symbol, cache.CategoryQuote); err != nil {
		a.log.Warn().Err(err).Str("symbol", symbol).Msg("Quote cache read failed, falling through to provider")
	} else if raw != nil {
		var quote Quote
		if err := json.Unmarshal(raw, &quote); err == nil {
			a.log.Debug().Str("symbol", symbol).Msg("Quote served from cache")
			return &quote, nil
		}
		a.log.Warn().Str("symbol", symbol).Msg("Corrupt cached quote, refetching")
	}

	gq, err := a.client.GetGlobalQuote(ctx, symbol)
	if err != nil {
		return nil, mapProviderError(symbol, err)
	}
	if gq.Price == 0 {
		return nil, ErrNoDataAvailable{Symbol: symbol}
	}

	quote := &Quote{
		Symbol:           gq.Symbol,
		Price:            gq.Price,
		Change:           gq.Change,
		ChangePercent:    gq.ChangePercent,
		PreviousClose:    gq.PreviousClose,
		Volume:           gq.Volume,
		LatestTradingDay: gq.LatestTradingDay,
	}

	if err := a.store.Put(symbol, cache.CategoryQuote, quote, cache.TTLQuote); err != nil {
		a.log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to cache quote")
	}

	return quote, nil
}

// ValidateSymbol reports whether a ticker exists at the provider, using an
// exact case-insensitive match against search results. Both positive and
// negative outcomes are cached; rate-limit errors are propagated uncached so
// a quota blip never poisons a symbol as invalid.
func (a *Adapter) ValidateSymbol(ctx context.Context, symbol string) (bool, error) {
	symbol = NormalizeSymbol(symbol)
	if symbol == "" {
		return false, nil
	}

	if raw, err := a.store.GetIfFresh(symbol, cache.CategoryValidation); err != nil {
		a.log.Warn().Err(err).Str("symbol", symbol).Msg("Validation cache read failed, falling through to provider")
	} else if raw != nil {
		var result validationResult
		if err := json.Unmarshal(raw, &result); err == nil {
			return result.Valid, nil
		}
	}

	matches, err := a.client.SearchSymbol(ctx, symbol)
	if err != nil {
		return false, mapProviderError(symbol, err)
	}

	valid := false
	for _, m := range matches {
		if strings.EqualFold(m.Symbol, symbol) {
			valid = true
			break
		}
	}

	if err := a.store.Put(symbol, cache.CategoryValidation, validationResult{Valid: valid}, cache.TTLValidation); err != nil {
		a.log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to cache validation result")
	}

	return valid, nil
}

// GetHistoricalSeries returns the daily close series for a symbol restricted
// to the requested range, ascending by date. The series is filtered to the
// range window before caching so each range category stores exactly what it
// serves.
func (a *Adapter) GetHistoricalSeries(ctx context.Context, symbol string, rng Range) ([]SeriesPoint, error) {
	symbol = NormalizeSymbol(symbol)
	if symbol == "" {
		return nil, ErrInvalidSymbol{Symbol: symbol}
	}

	category := rng.Category()
	if category == "" {
		return nil, fmt.Errorf("invalid range %q", rng)
	}

	if raw, err := a.store.GetIfFresh(symbol, category); err != nil {
		a.log.Warn().Err(err).Str("symbol", symbol).Msg("Series cache read failed, falling through to provider")
	} else if raw != nil {
		var points []SeriesPoint
		if err := json.Unmarshal(raw, &points); err == nil {
			a.log.Debug().Str("symbol", symbol).Str("range", string(rng)).Msg("Series served from cache")
			return points, nil
		}
		a.log.Warn().Str("symbol", symbol).Str("range", string(rng)).Msg("Corrupt cached series, refetching")
	}

	prices, err := a.client.GetDailyTimeSeries(ctx, symbol)
	if err != nil {
		return nil, mapProviderError(symbol, err)
	}
	if len(prices) == 0 {
		return nil, ErrNoDataAvailable{Symbol: symbol}
	}

	cutoff := time.Now().AddDate(0, 0, -rng.Days())

	points := make([]SeriesPoint, 0, len(prices))
	for _, p := range prices {
		if p.Date.Before(cutoff) {
			continue
		}
		points = append(points, SeriesPoint{Date: p.Date, Close: p.Close})
	}
	sort.Slice(points, func(i, j int) bool {
		return points[i].Date.Before(points[j].Date)
	})

	if len(points) == 0 {
		return nil, ErrNoDataAvailable{Symbol: symbol}
	}

	if err := a.store.Put(symbol, category, points, cache.TTLHistorical); err != nil {
		a.log.Warn().Err(err).Str("symbol", symbol).Str("range", string(rng)).Msg("Failed to cache series")
	}

	return points, nil
}

// RemainingRequests exposes the provider's remaining daily budget for the
// diagnostics surface.
func (a *Adapter) RemainingRequests() int {
	return a.client.GetRemainingRequests()
}

// mapProviderError translates provider-specific failures into the adapter's
// error taxonomy.
func mapProviderError(symbol string, err error) error {
	var notFound alphavantage.ErrSymbolNotFound
	if errors.As(err, &notFound) {
		return ErrInvalidSymbol{Symbol: symbol}
	}

	var rateLimited alphavantage.ErrRateLimitExceeded
	if errors.As(err, &rateLimited) {
		return ErrRateLimitExceeded{}
	}

	var httpErr alphavantage.ErrHTTPStatus
	if errors.As(err, &httpErr) {
		return ErrUpstreamHTTP{Status: httpErr.Status}
	}

	var badKey alphavantage.ErrInvalidAPIKey
	if errors.As(err, &badKey) {
		return ErrUpstreamHTTP{}
	}

	return fmt.Errorf("provider request for %s failed: %w", symbol, err)
}
