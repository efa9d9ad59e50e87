// Package cache provides persistent caching for external API responses.
// Entries are stored as JSON blobs keyed by (symbol, category) with
// expiration timestamps for cache-first behavior.
package cache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Cache categories. Each category is an independent namespace within the
// store, so invalidating one never disturbs its siblings for the same symbol.
const (
	CategoryQuote        = "quote"
	CategoryValidation   = "validation"
	CategoryHistorical1M = "historical_1m"
	CategoryHistorical3M = "historical_3m"
	CategoryHistorical1Y = "historical_1y"
	CategoryHistorical5Y = "historical_5y"
	CategoryAnalysis     = "analysis"
	CategoryEvents       = "events"
)

// AllCategories lists every cache category for validation and diagnostics.
var AllCategories = []string{
	CategoryQuote,
	CategoryValidation,
	CategoryHistorical1M,
	CategoryHistorical3M,
	CategoryHistorical1Y,
	CategoryHistorical5Y,
	CategoryAnalysis,
	CategoryEvents,
}

// validCategories is a set for O(1) category validation.
var validCategories = func() map[string]bool {
	m := make(map[string]bool, len(AllCategories))
	for _, c := range AllCategories {
		m[c] = true
	}
	return m
}()

// Repository provides cache operations over the api_cache table.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new cache repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// validateCategory ensures the category is in our allowed list.
func validateCategory(category string) error {
	if !validCategories[category] {
		return fmt.Errorf("invalid cache category: %s", category)
	}
	return nil
}

// Stats holds diagnostic counts for the cache table.
type Stats struct {
	Total   int64 `json:"total"`
	Expired int64 `json:"expired"`
}

// Put saves data with expiration = now + ttl.
// Uses INSERT OR REPLACE so at most one live entry exists per (symbol, category).
func (r *Repository) Put(symbol, category string, data interface{}, ttl time.Duration) error {
	if err := validateCategory(category); err != nil {
		return err
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	now := time.Now()
	expiresAt := now.Add(ttl).Unix()

	_, err = r.db.Exec(
		"INSERT OR REPLACE INTO api_cache (symbol, category, data, created_at, expires_at) VALUES (?, ?, ?, ?, ?)",
		symbol, category, string(jsonData), now.Unix(), expiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to store %s cache entry: %w", category, err)
	}

	return nil
}

// GetIfFresh returns data only if expires_at > now, nil otherwise.
// Returns nil, nil if the key doesn't exist or the entry is expired.
// Expired rows are NOT deleted on read; real deletion happens via SweepExpired.
func (r *Repository) GetIfFresh(symbol, category string) (json.RawMessage, error) {
	if err := validateCategory(category); err != nil {
		return nil, err
	}

	now := time.Now().Unix()

	var data string
	err := r.db.QueryRow(
		"SELECT data FROM api_cache WHERE symbol = ? AND category = ? AND expires_at > ?",
		symbol, category, now,
	).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s cache entry: %w", category, err)
	}

	return json.RawMessage(data), nil
}

// Get returns data regardless of expiration status.
// Use this as a fallback when API calls fail - stale data is better than no data.
// Returns nil, nil if the key doesn't exist.
func (r *Repository) Get(symbol, category string) (json.RawMessage, error) {
	if err := validateCategory(category); err != nil {
		return nil, err
	}

	var data string
	err := r.db.QueryRow(
		"SELECT data FROM api_cache WHERE symbol = ? AND category = ?",
		symbol, category,
	).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s cache entry: %w", category, err)
	}

	return json.RawMessage(data), nil
}

// Invalidate removes a specific entry regardless of expiry.
// Returns whether a row was removed, so callers can tell a forced refresh
// apart from a no-op.
func (r *Repository) Invalidate(symbol, category string) (bool, error) {
	if err := validateCategory(category); err != nil {
		return false, err
	}

	result, err := r.db.Exec(
		"DELETE FROM api_cache WHERE symbol = ? AND category = ?",
		symbol, category,
	)
	if err != nil {
		return false, fmt.Errorf("failed to invalidate %s cache entry: %w", category, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return affected > 0, nil
}

// SweepExpired removes all rows whose expiry has passed.
// Returns the number of rows deleted. Intended to run once at process start
// and daily via CleanupJob.
func (r *Repository) SweepExpired() (int64, error) {
	now := time.Now().Unix()

	result, err := r.db.Exec("DELETE FROM api_cache WHERE expires_at < ?", now)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep expired cache entries: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return deleted, nil
}

// GetStats returns diagnostic counts (total rows, expired rows still occupying storage).
func (r *Repository) GetStats() (*Stats, error) {
	stats := &Stats{}

	if err := r.db.QueryRow("SELECT COUNT(*) FROM api_cache").Scan(&stats.Total); err != nil {
		return nil, fmt.Errorf("failed to count cache entries: %w", err)
	}

	now := time.Now().Unix()
	if err := r.db.QueryRow("SELECT COUNT(*) FROM api_cache WHERE expires_at < ?", now).Scan(&stats.Expired); err != nil {
		return nil, fmt.Errorf("failed to count expired cache entries: %w", err)
	}

	return stats, nil
}
