package cache

import (
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	_ "modernc.org/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSchema = `
CREATE TABLE api_cache (
	symbol      TEXT NOT NULL,
	category    TEXT NOT NULL,
	data        TEXT NOT NULL,
	created_at  INTEGER NOT NULL,
	expires_at  INTEGER NOT NULL,
	PRIMARY KEY (symbol, category)
);
CREATE INDEX idx_api_cache_expires ON api_cache(expires_at);
`

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(testSchema)
	require.NoError(t, err)

	return db
}

func TestPut(t *testing.T) {
	repo := NewRepository(setupTestDB(t))

	data := map[string]interface{}{
		"symbol": "AAPL",
		"price":  195.5,
	}

	err := repo.Put("AAPL", CategoryQuote, data, 24*time.Hour)
	require.NoError(t, err)

	var storedData string
	var expiresAt int64
	err = repo.db.QueryRow(
		"SELECT data, expires_at FROM api_cache WHERE symbol = ? AND category = ?",
		"AAPL", CategoryQuote,
	).Scan(&storedData, &expiresAt)
	require.NoError(t, err)

	var parsed map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(storedData), &parsed))
	assert.Equal(t, "AAPL", parsed["symbol"])

	expected := time.Now().Add(24 * time.Hour).Unix()
	assert.InDelta(t, expected, expiresAt, 5)
}

func TestPut_UpsertReplacesEntry(t *testing.T) {
	repo := NewRepository(setupTestDB(t))

	require.NoError(t, repo.Put("AAPL", CategoryQuote, map[string]float64{"price": 100}, time.Hour))
	require.NoError(t, repo.Put("AAPL", CategoryQuote, map[string]float64{"price": 200}, time.Hour))

	var count int64
	require.NoError(t, repo.db.QueryRow("SELECT COUNT(*) FROM api_cache").Scan(&count))
	assert.Equal(t, int64(1), count)

	raw, err := repo.GetIfFresh("AAPL", CategoryQuote)
	require.NoError(t, err)
	assert.JSONEq(t, `{"price":200}`, string(raw))
}

func TestPut_InvalidCategory(t *testing.T) {
	repo := NewRepository(setupTestDB(t))

	err := repo.Put("AAPL", "bogus", "data", time.Hour)
	assert.Error(t, err)
}

func TestGetIfFresh(t *testing.T) {
	repo := NewRepository(setupTestDB(t))

	// Miss.
	raw, err := repo.GetIfFresh("AAPL", CategoryQuote)
	require.NoError(t, err)
	assert.Nil(t, raw)

	// Fresh hit.
	require.NoError(t, repo.Put("AAPL", CategoryQuote, map[string]string{"v": "fresh"}, time.Hour))
	raw, err = repo.GetIfFresh("AAPL", CategoryQuote)
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":"fresh"}`, string(raw))

	// Expired entry behaves like a miss.
	require.NoError(t, repo.Put("MSFT", CategoryQuote, map[string]string{"v": "old"}, -time.Hour))
	raw, err = repo.GetIfFresh("MSFT", CategoryQuote)
	require.NoError(t, err)
	assert.Nil(t, raw)
}

func TestGet_ReturnsStaleData(t *testing.T) {
	repo := NewRepository(setupTestDB(t))

	require.NoError(t, repo.Put("AAPL", CategoryQuote, map[string]string{"v": "stale"}, -time.Hour))

	raw, err := repo.Get("AAPL", CategoryQuote)
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":"stale"}`, string(raw))

	// Still a miss for unknown keys.
	raw, err = repo.Get("GHOST", CategoryQuote)
	require.NoError(t, err)
	assert.Nil(t, raw)
}

func TestInvalidate_LeavesSiblingCategories(t *testing.T) {
	repo := NewRepository(setupTestDB(t))

	require.NoError(t, repo.Put("AAPL", CategoryAnalysis, "narrative", time.Hour))
	require.NoError(t, repo.Put("AAPL", CategoryEvents, "events", time.Hour))

	removed, err := repo.Invalidate("AAPL", CategoryAnalysis)
	require.NoError(t, err)
	assert.True(t, removed)

	raw, err := repo.GetIfFresh("AAPL", CategoryAnalysis)
	require.NoError(t, err)
	assert.Nil(t, raw)

	// Sibling category untouched.
	raw, err = repo.GetIfFresh("AAPL", CategoryEvents)
	require.NoError(t, err)
	assert.NotNil(t, raw)

	// Invalidating a missing entry reports false.
	removed, err = repo.Invalidate("AAPL", CategoryAnalysis)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestSweepExpired(t *testing.T) {
	repo := NewRepository(setupTestDB(t))

	require.NoError(t, repo.Put("AAPL", CategoryQuote, "fresh", time.Hour))
	require.NoError(t, repo.Put("MSFT", CategoryQuote, "old", -time.Hour))
	require.NoError(t, repo.Put("GOOG", CategoryValidation, "old", -time.Minute))

	deleted, err := repo.SweepExpired()
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	// Second sweep removes nothing.
	deleted, err = repo.SweepExpired()
	require.NoError(t, err)
	assert.Zero(t, deleted)

	raw, err := repo.GetIfFresh("AAPL", CategoryQuote)
	require.NoError(t, err)
	assert.NotNil(t, raw)
}

func TestGetStats(t *testing.T) {
	repo := NewRepository(setupTestDB(t))

	require.NoError(t, repo.Put("AAPL", CategoryQuote, "fresh", time.Hour))
	require.NoError(t, repo.Put("MSFT", CategoryQuote, "old", -time.Hour))

	stats, err := repo.GetStats()
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Total)
	assert.Equal(t, int64(1), stats.Expired)
}

func TestValidateCategory_AllKnownCategories(t *testing.T) {
	for _, category := range AllCategories {
		assert.NoError(t, validateCategory(category), category)
	}
	assert.Error(t, validateCategory("historical_2w"))
}
