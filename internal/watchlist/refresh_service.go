package watchlist

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ataha322/stock-agent-hackathon/internal/market"
)

// refreshConcurrency bounds simultaneous quote lookups during a bulk refresh.
const refreshConcurrency = 4

// QuoteSource supplies quotes for refresh. Satisfied by the market adapter,
// so refreshes are cache-first and budget-aware for free.
type QuoteSource interface {
	GetQuote(ctx context.Context, symbol string) (*market.Quote, error)
}

// RefreshService refreshes the quote snapshots of every watched symbol.
type RefreshService struct {
	repo   *Repository
	quotes QuoteSource
	log    zerolog.Logger
}

// NewRefreshService creates a refresh service.
func NewRefreshService(repo *Repository, quotes QuoteSource, log zerolog.Logger) *RefreshService {
	return &RefreshService{
		repo:   repo,
		quotes: quotes,
		log:    log.With().Str("service", "watchlist_refresh").Logger(),
	}
}

// RefreshAll fetches quotes for every watchlist entry concurrently and
// stores the snapshots. A failure for one symbol never aborts the others;
// each outcome is tracked and summarized in the result.
func (s *RefreshService) RefreshAll(ctx context.Context) (*RefreshResult, error) {
	entries, err := s.repo.ListAll()
	if err != nil {
		return nil, err
	}

	result := &RefreshResult{Errors: map[string]string{}}
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(refreshConcurrency)

	for _, entry := range entries {
		symbol := entry.Symbol
		g.Go(func() error {
			quote, err := s.quotes.GetQuote(ctx, symbol)

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				result.Failed++
				result.Errors[symbol] = err.Error()
				s.log.Warn().Err(err).Str("symbol", symbol).Msg("Watchlist refresh failed for symbol")
				return nil
			}

			if _, err := s.repo.UpdateQuoteSnapshot(symbol, quote.Price, quote.Change, quote.ChangePercent); err != nil {
				result.Failed++
				result.Errors[symbol] = err.Error()
				return nil
			}

			result.Succeeded++
			return nil
		})
	}

	// Goroutines never return errors; Wait only joins them.
	_ = g.Wait()

	s.log.Info().
		Int("succeeded", result.Succeeded).
		Int("failed", result.Failed).
		Msg("Watchlist refresh finished")

	return result, nil
}
