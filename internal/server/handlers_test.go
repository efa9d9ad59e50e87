package server

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	_ "modernc.org/sqlite"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ataha322/stock-agent-hackathon/internal/analysis"
	"github.com/ataha322/stock-agent-hackathon/internal/cache"
	"github.com/ataha322/stock-agent-hackathon/internal/clients/alphavantage"
	"github.com/ataha322/stock-agent-hackathon/internal/clients/perplexity"
	"github.com/ataha322/stock-agent-hackathon/internal/inflight"
	"github.com/ataha322/stock-agent-hackathon/internal/market"
	"github.com/ataha322/stock-agent-hackathon/internal/watchlist"
)

type stubMarketClient struct {
	quote     *alphavantage.GlobalQuote
	quoteErr  error
	matches   []alphavantage.SymbolMatch
	searchErr error
	prices    []alphavantage.DailyPrice
	pricesErr error
}

func (c *stubMarketClient) GetGlobalQuote(ctx context.Context, symbol string) (*alphavantage.GlobalQuote, error) {
	return c.quote, c.quoteErr
}

func (c *stubMarketClient) SearchSymbol(ctx context.Context, keywords string) ([]alphavantage.SymbolMatch, error) {
	return c.matches, c.searchErr
}

func (c *stubMarketClient) GetDailyTimeSeries(ctx context.Context, symbol string) ([]alphavantage.DailyPrice, error) {
	return c.prices, c.pricesErr
}

func (c *stubMarketClient) GetRemainingRequests() int { return 25 }

type stubAIClient struct {
	response string
	err      error
}

func (c *stubAIClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, *perplexity.Usage, error) {
	if c.err != nil {
		return "", nil, c.err
	}
	return c.response, &perplexity.Usage{Model: "sonar"}, nil
}

func newTestServer(t *testing.T, marketClient alphavantage.ClientInterface, aiClient perplexity.ClientInterface) *Server {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE api_cache (
			symbol TEXT NOT NULL,
			category TEXT NOT NULL,
			data TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			expires_at INTEGER NOT NULL,
			PRIMARY KEY (symbol, category)
		);
		CREATE TABLE watchlist (
			symbol           TEXT PRIMARY KEY,
			added_at         INTEGER NOT NULL,
			price            REAL,
			change           REAL,
			change_percent   REAL,
			quote_updated_at INTEGER
		);
	`)
	require.NoError(t, err)

	store := cache.NewRepository(db)
	marketAdapter := market.NewAdapter(marketClient, store, zerolog.Nop())
	analysisAdapter := analysis.NewAdapter(aiClient, store, inflight.NewGuard(), nil, zerolog.Nop())
	watchRepo := watchlist.NewRepository(db, zerolog.Nop())
	refresh := watchlist.NewRefreshService(watchRepo, marketAdapter, zerolog.Nop())

	return New(Config{
		Log:       zerolog.Nop(),
		Cache:     store,
		Market:    marketAdapter,
		Analysis:  analysisAdapter,
		Watchlist: watchRepo,
		Refresh:   refresh,
		Port:      0,
		DevMode:   true,
	})
}

func doRequest(t *testing.T, s *Server, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestHandleGetQuote(t *testing.T) {
	client := &stubMarketClient{
		quote: &alphavantage.GlobalQuote{Symbol: "AAPL", Price: 195.5, Change: 2.1, ChangePercent: 1.09},
	}
	s := newTestServer(t, client, &stubAIClient{})

	rec := doRequest(t, s, http.MethodGet, "/api/quote/aapl", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var quote market.Quote
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &quote))
	assert.Equal(t, "AAPL", quote.Symbol)
	assert.InDelta(t, 195.5, quote.Price, 1e-9)
}

func TestHandleGetQuote_ErrorStatuses(t *testing.T) {
	tests := []struct {
		name       string
		clientErr  error
		wantStatus int
	}{
		{"invalid symbol", alphavantage.ErrSymbolNotFound{Symbol: "NOPE"}, http.StatusUnprocessableEntity},
		{"rate limited", alphavantage.ErrRateLimitExceeded{}, http.StatusTooManyRequests},
		{"upstream failure", alphavantage.ErrHTTPStatus{Status: 503}, http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, &stubMarketClient{quoteErr: tt.clientErr}, &stubAIClient{})

			rec := doRequest(t, s, http.MethodGet, "/api/quote/NOPE", nil)
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestHandleGetHistory(t *testing.T) {
	now := time.Now()
	client := &stubMarketClient{
		prices: []alphavantage.DailyPrice{
			{Date: now.AddDate(0, 0, -2), Close: 100},
			{Date: now.AddDate(0, 0, -1), Close: 102},
		},
	}
	s := newTestServer(t, client, &stubAIClient{})

	rec := doRequest(t, s, http.MethodGet, "/api/history/AAPL?range=1m", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Symbol string               `json:"symbol"`
		Range  string               `json:"range"`
		Points []market.SeriesPoint `json:"points"`
		Stats  *market.SeriesStats  `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Equal(t, "AAPL", resp.Symbol)
	assert.Equal(t, "1m", resp.Range)
	assert.Len(t, resp.Points, 2)
	require.NotNil(t, resp.Stats)
	assert.InDelta(t, 101, resp.Stats.Mean, 1e-9)
}

func TestHandleGetHistory_BadRange(t *testing.T) {
	s := newTestServer(t, &stubMarketClient{}, &stubAIClient{})

	rec := doRequest(t, s, http.MethodGet, "/api/history/AAPL?range=2w", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, s, http.MethodGet, "/api/history/AAPL", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleGetAnalysis(t *testing.T) {
	ai := &stubAIClient{response: `1. Recent News
• Solid quarter

2. Major Events
• Buyback announced

3. Valuation Assessment
• Rich multiple`}
	s := newTestServer(t, &stubMarketClient{}, ai)

	rec := doRequest(t, s, http.MethodGet, "/api/analysis/AAPL", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var result analysis.Analysis
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "AAPL", result.Symbol)
	assert.Equal(t, []string{"Solid quarter"}, result.RecentNews)
}

func TestHandleGetEvents(t *testing.T) {
	ai := &stubAIClient{response: "2024-03-01 | Q1 earnings beat | positive"}
	s := newTestServer(t, &stubMarketClient{}, ai)

	rec := doRequest(t, s, http.MethodGet, "/api/analysis/AAPL/events", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Symbol string                    `json:"symbol"`
		Events []analysis.FinancialEvent `json:"events"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Events, 1)
	assert.Equal(t, "Q1 earnings beat", resp.Events[0].Description)
}

func TestWatchlistFlow(t *testing.T) {
	client := &stubMarketClient{
		matches: []alphavantage.SymbolMatch{{Symbol: "AAPL"}},
		quote:   &alphavantage.GlobalQuote{Symbol: "AAPL", Price: 100, Change: 1, ChangePercent: 1},
	}
	s := newTestServer(t, client, &stubAIClient{})

	// Add.
	rec := doRequest(t, s, http.MethodPost, "/api/watchlist/", []byte(`{"symbol":"aapl"}`))
	assert.Equal(t, http.StatusCreated, rec.Code)

	// Duplicate add reports added=false.
	rec = doRequest(t, s, http.MethodPost, "/api/watchlist/", []byte(`{"symbol":"AAPL"}`))
	assert.Equal(t, http.StatusOK, rec.Code)
	var addResp struct {
		Added bool `json:"added"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &addResp))
	assert.False(t, addResp.Added)

	// Refresh populates snapshots.
	rec = doRequest(t, s, http.MethodPost, "/api/watchlist/refresh", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var refreshResp watchlist.RefreshResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &refreshResp))
	assert.Equal(t, 1, refreshResp.Succeeded)

	// List shows the snapshot.
	rec = doRequest(t, s, http.MethodGet, "/api/watchlist/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listResp struct {
		Entries []watchlist.Entry `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listResp))
	require.Len(t, listResp.Entries, 1)
	require.NotNil(t, listResp.Entries[0].Price)
	assert.InDelta(t, 100, *listResp.Entries[0].Price, 1e-9)

	// Remove.
	rec = doRequest(t, s, http.MethodDelete, "/api/watchlist/AAPL", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, s, http.MethodDelete, "/api/watchlist/AAPL", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAddWatchlist_RejectsUnknownSymbol(t *testing.T) {
	s := newTestServer(t, &stubMarketClient{matches: nil}, &stubAIClient{})

	rec := doRequest(t, s, http.MethodPost, "/api/watchlist/", []byte(`{"symbol":"BOGUS"}`))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestCacheInvalidateAndStats(t *testing.T) {
	client := &stubMarketClient{
		quote: &alphavantage.GlobalQuote{Symbol: "AAPL", Price: 100},
	}
	s := newTestServer(t, client, &stubAIClient{})

	// Populate the quote category.
	rec := doRequest(t, s, http.MethodGet, "/api/quote/AAPL", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, s, http.MethodGet, "/api/cache/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats cache.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, int64(1), stats.Total)

	// Invalidate it.
	rec = doRequest(t, s, http.MethodPost, "/api/cache/invalidate", []byte(`{"symbol":"AAPL","category":"quote"}`))
	require.Equal(t, http.StatusOK, rec.Code)
	var invResp struct {
		Removed bool `json:"removed"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &invResp))
	assert.True(t, invResp.Removed)

	// Second invalidation is a no-op.
	rec = doRequest(t, s, http.MethodPost, "/api/cache/invalidate", []byte(`{"symbol":"AAPL","category":"quote"}`))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &invResp))
	assert.False(t, invResp.Removed)

	// Unknown category is rejected.
	rec = doRequest(t, s, http.MethodPost, "/api/cache/invalidate", []byte(`{"symbol":"AAPL","category":"bogus"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(t, &stubMarketClient{}, &stubAIClient{})

	rec := doRequest(t, s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}
