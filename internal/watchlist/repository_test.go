package watchlist

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "modernc.org/sqlite"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ataha322/stock-agent-hackathon/internal/market"
)

func setupTestRepo(t *testing.T) *Repository {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE watchlist (
			symbol           TEXT PRIMARY KEY,
			added_at         INTEGER NOT NULL,
			price            REAL,
			change           REAL,
			change_percent   REAL,
			quote_updated_at INTEGER
		)
	`)
	require.NoError(t, err)

	return NewRepository(db, zerolog.Nop())
}

func TestAdd(t *testing.T) {
	repo := setupTestRepo(t)

	added, err := repo.Add("aapl")
	require.NoError(t, err)
	assert.True(t, added)

	// Duplicate (case-insensitive) is rejected without error.
	added, err = repo.Add("AAPL")
	require.NoError(t, err)
	assert.False(t, added)

	_, err = repo.Add("   ")
	assert.Error(t, err)
}

func TestRemove(t *testing.T) {
	repo := setupTestRepo(t)

	removed, err := repo.Remove("AAPL")
	require.NoError(t, err)
	assert.False(t, removed)

	_, err = repo.Add("AAPL")
	require.NoError(t, err)

	removed, err = repo.Remove("aapl")
	require.NoError(t, err)
	assert.True(t, removed)
}

func TestListAll_OrderedByInsertionDescending(t *testing.T) {
	repo := setupTestRepo(t)

	// Insert with explicit timestamps so ordering is deterministic.
	now := time.Now().Unix()
	for i, symbol := range []string{"AAPL", "MSFT", "GOOG"} {
		_, err := repo.db.Exec(
			"INSERT INTO watchlist (symbol, added_at) VALUES (?, ?)",
			symbol, now+int64(i),
		)
		require.NoError(t, err)
	}

	entries, err := repo.ListAll()
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, "GOOG", entries[0].Symbol)
	assert.Equal(t, "MSFT", entries[1].Symbol)
	assert.Equal(t, "AAPL", entries[2].Symbol)

	// No snapshot yet.
	assert.Nil(t, entries[0].Price)
	assert.Nil(t, entries[0].QuoteUpdatedAt)
}

func TestListAll_Empty(t *testing.T) {
	repo := setupTestRepo(t)

	entries, err := repo.ListAll()
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.NotNil(t, entries)
}

func TestUpdateQuoteSnapshot(t *testing.T) {
	repo := setupTestRepo(t)

	updated, err := repo.UpdateQuoteSnapshot("AAPL", 195.5, 2.1, 1.09)
	require.NoError(t, err)
	assert.False(t, updated)

	_, err = repo.Add("AAPL")
	require.NoError(t, err)

	updated, err = repo.UpdateQuoteSnapshot("aapl", 195.5, 2.1, 1.09)
	require.NoError(t, err)
	assert.True(t, updated)

	entries, err := repo.ListAll()
	require.NoError(t, err)
	require.Len(t, entries, 1)

	require.NotNil(t, entries[0].Price)
	assert.InDelta(t, 195.5, *entries[0].Price, 1e-9)
	require.NotNil(t, entries[0].ChangePercent)
	assert.InDelta(t, 1.09, *entries[0].ChangePercent, 1e-9)
	assert.NotNil(t, entries[0].QuoteUpdatedAt)
}

// flakyQuoteSource fails for the symbols in failFor and succeeds otherwise.
type flakyQuoteSource struct {
	failFor map[string]bool
}

func (f *flakyQuoteSource) GetQuote(ctx context.Context, symbol string) (*market.Quote, error) {
	if f.failFor[symbol] {
		return nil, errors.New("provider unavailable")
	}
	return &market.Quote{Symbol: symbol, Price: 100, Change: 1, ChangePercent: 1}, nil
}

func TestRefreshAll_PartialFailure(t *testing.T) {
	repo := setupTestRepo(t)
	for _, symbol := range []string{"AAPL", "MSFT", "GOOG"} {
		_, err := repo.Add(symbol)
		require.NoError(t, err)
	}

	source := &flakyQuoteSource{failFor: map[string]bool{"MSFT": true}}
	service := NewRefreshService(repo, source, zerolog.Nop())

	result, err := service.RefreshAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, result.Succeeded)
	assert.Equal(t, 1, result.Failed)
	assert.Contains(t, result.Errors, "MSFT")

	entries, err := repo.ListAll()
	require.NoError(t, err)
	for _, e := range entries {
		if e.Symbol == "MSFT" {
			assert.Nil(t, e.Price)
		} else {
			require.NotNil(t, e.Price)
			assert.InDelta(t, 100, *e.Price, 1e-9)
		}
	}
}

func TestRefreshAll_EmptyWatchlist(t *testing.T) {
	repo := setupTestRepo(t)
	service := NewRefreshService(repo, &flakyQuoteSource{}, zerolog.Nop())

	result, err := service.RefreshAll(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.Succeeded)
	assert.Zero(t, result.Failed)
}
