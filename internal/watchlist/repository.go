// Package watchlist persists the user's watched symbols and their last
// known quote snapshots.
package watchlist

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ataha322/stock-agent-hackathon/internal/market"
)

// Repository provides watchlist operations over the watchlist table.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new watchlist repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "watchlist").Logger(),
	}
}

// Add inserts a symbol. Returns false when it is already present.
// Callers validate the symbol against the provider before adding.
func (r *Repository) Add(symbol string) (bool, error) {
	symbol = market.NormalizeSymbol(symbol)
	if symbol == "" {
		return false, fmt.Errorf("empty symbol")
	}

	result, err := r.db.Exec(
		"INSERT OR IGNORE INTO watchlist (symbol, added_at) VALUES (?, ?)",
		symbol, time.Now().Unix(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to add watchlist entry: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return affected > 0, nil
}

// Remove deletes a symbol. Returns false when it was absent.
func (r *Repository) Remove(symbol string) (bool, error) {
	symbol = market.NormalizeSymbol(symbol)

	result, err := r.db.Exec("DELETE FROM watchlist WHERE symbol = ?", symbol)
	if err != nil {
		return false, fmt.Errorf("failed to remove watchlist entry: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return affected > 0, nil
}

// ListAll returns all entries ordered most recently added first.
func (r *Repository) ListAll() ([]Entry, error) {
	rows, err := r.db.Query(`
		SELECT symbol, added_at, price, change, change_percent, quote_updated_at
		FROM watchlist
		ORDER BY added_at DESC, symbol ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list watchlist: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var addedAt int64
		var quoteUpdatedAt sql.NullInt64

		if err := rows.Scan(&e.Symbol, &addedAt, &e.Price, &e.Change, &e.ChangePercent, &quoteUpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan watchlist entry: %w", err)
		}

		e.AddedAt = time.Unix(addedAt, 0)
		if quoteUpdatedAt.Valid {
			t := time.Unix(quoteUpdatedAt.Int64, 0)
			e.QuoteUpdatedAt = &t
		}

		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate watchlist: %w", err)
	}

	return entries, nil
}

// UpdateQuoteSnapshot overwrites the snapshot fields in place and refreshes
// the snapshot timestamp. Returns false when the symbol is not watched.
func (r *Repository) UpdateQuoteSnapshot(symbol string, price, change, changePercent float64) (bool, error) {
	symbol = market.NormalizeSymbol(symbol)

	result, err := r.db.Exec(`
		UPDATE watchlist
		SET price = ?, change = ?, change_percent = ?, quote_updated_at = ?
		WHERE symbol = ?
	`, price, change, changePercent, time.Now().Unix(), symbol)
	if err != nil {
		return false, fmt.Errorf("failed to update quote snapshot: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return affected > 0, nil
}
