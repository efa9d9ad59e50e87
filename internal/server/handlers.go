package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ataha322/stock-agent-hackathon/internal/analysis"
	"github.com/ataha322/stock-agent-hackathon/internal/market"
)

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"service": "stock-agent",
	})
}

func (s *Server) handleGetQuote(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	quote, err := s.market.GetQuote(r.Context(), symbol)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, quote)
}

func (s *Server) handleValidateSymbol(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	valid, err := s.market.ValidateSymbol(r.Context(), symbol)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"symbol": market.NormalizeSymbol(symbol),
		"valid":  valid,
	})
}

// historyResponse bundles the filtered series with derived indicators.
type historyResponse struct {
	Symbol string               `json:"symbol"`
	Range  market.Range         `json:"range"`
	Points []market.SeriesPoint `json:"points"`
	Stats  *market.SeriesStats  `json:"stats,omitempty"`
	SMA20  []market.SeriesPoint `json:"sma_20,omitempty"`
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	rng, err := market.ParseRange(r.URL.Query().Get("range"))
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	points, err := s.market.GetHistoricalSeries(r.Context(), symbol, rng)
	if err != nil {
		s.writeError(w, err)
		return
	}

	resp := historyResponse{
		Symbol: market.NormalizeSymbol(symbol),
		Range:  rng,
		Points: points,
		SMA20:  market.SMA(points, 20),
	}
	if stats, err := market.ComputeStats(points); err == nil {
		resp.Stats = stats
	}

	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	result, err := s.analysis.GetAnalysis(r.Context(), symbol)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	events, err := s.analysis.GetFinancialEvents(r.Context(), symbol)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"symbol": market.NormalizeSymbol(symbol),
		"events": events,
	})
}

func (s *Server) handleListWatchlist(w http.ResponseWriter, r *http.Request) {
	entries, err := s.watchlist.ListAll()
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{"entries": entries})
}

func (s *Server) handleAddWatchlist(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Symbol string `json:"symbol"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	symbol := market.NormalizeSymbol(req.Symbol)
	if symbol == "" {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "symbol is required"})
		return
	}

	valid, err := s.market.ValidateSymbol(r.Context(), symbol)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !valid {
		s.writeError(w, market.ErrInvalidSymbol{Symbol: symbol})
		return
	}

	added, err := s.watchlist.Add(symbol)
	if err != nil {
		s.writeError(w, err)
		return
	}

	status := http.StatusCreated
	if !added {
		status = http.StatusOK
	}
	s.writeJSON(w, status, map[string]interface{}{
		"symbol": symbol,
		"added":  added,
	})
}

func (s *Server) handleRemoveWatchlist(w http.ResponseWriter, r *http.Request) {
	symbol := market.NormalizeSymbol(chi.URLParam(r, "symbol"))

	removed, err := s.watchlist.Remove(symbol)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !removed {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "symbol not in watchlist"})
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"symbol":  symbol,
		"removed": true,
	})
}

func (s *Server) handleRefreshWatchlist(w http.ResponseWriter, r *http.Request) {
	result, err := s.refresh.RefreshAll(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleInvalidateCache(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Symbol   string `json:"symbol"`
		Category string `json:"category"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	symbol := market.NormalizeSymbol(req.Symbol)
	if symbol == "" || req.Category == "" {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "symbol and category are required"})
		return
	}

	removed, err := s.cache.Invalidate(symbol, req.Category)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"symbol":   symbol,
		"category": req.Category,
		"removed":  removed,
	})
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.cache.GetStats()
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleListBackups(w http.ResponseWriter, r *http.Request) {
	if s.backups == nil {
		s.writeJSON(w, http.StatusOK, map[string]interface{}{
			"enabled": false,
			"backups": []interface{}{},
		})
		return
	}

	backups, err := s.backups.ListBackups(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"enabled": true,
		"backups": backups,
	})
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError maps domain errors to HTTP statuses. Rate limits tell the user
// to wait, invalid symbols point at their input, upstream failures are
// retryable gateway errors.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	var invalidSymbol market.ErrInvalidSymbol
	var rateLimited market.ErrRateLimitExceeded
	var noData market.ErrNoDataAvailable
	var upstream market.ErrUpstreamHTTP

	switch {
	case errors.As(err, &invalidSymbol):
		status = http.StatusUnprocessableEntity
	case errors.As(err, &rateLimited):
		status = http.StatusTooManyRequests
	case errors.As(err, &noData):
		status = http.StatusNotFound
	case errors.As(err, &upstream):
		status = http.StatusBadGateway
	case errors.Is(err, analysis.ErrRefreshInProgress):
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		s.log.Error().Err(err).Msg("Request failed")
	}

	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}
