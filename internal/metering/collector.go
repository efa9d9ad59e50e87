// Package metering reports AI usage costs to an external collaborator.
// Reporting is fire-and-forget: a dead collector must never block or fail
// the caching path that triggered it.
package metering

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// UsageRecord is one billable AI call.
type UsageRecord struct {
	ID           string    `json:"id"`
	Symbol       string    `json:"symbol"`
	Operation    string    `json:"operation"`
	Model        string    `json:"model"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	Cost         float64   `json:"cost"`
	Currency     string    `json:"currency"`
	Timestamp    time.Time `json:"timestamp"`
}

// Collector receives usage records.
type Collector interface {
	Record(ctx context.Context, rec UsageRecord) error
}

// HTTPCollector posts usage records as JSON to a metering endpoint.
type HTTPCollector struct {
	url    string
	client *http.Client
	log    zerolog.Logger
}

// NewHTTPCollector creates a collector posting to the given URL.
func NewHTTPCollector(url string, log zerolog.Logger) *HTTPCollector {
	return &HTTPCollector{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    log.With().Str("component", "metering").Logger(),
	}
}

// Record posts one usage record. The response body is not consulted;
// a non-2xx status is still an error so ReportAsync can log it.
func (c *HTTPCollector) Record(ctx context.Context, rec UsageRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal usage record: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build metering request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("metering request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("metering endpoint returned status %d", resp.StatusCode)
	}

	return nil
}

// NewRecord builds a usage record with a fresh ID and timestamp.
func NewRecord(symbol, operation, model string, inputTokens, outputTokens int, costUSD float64) UsageRecord {
	return UsageRecord{
		ID:           uuid.New().String(),
		Symbol:       symbol,
		Operation:    operation,
		Model:        model,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		Cost:         costUSD,
		Currency:     "USD",
		Timestamp:    time.Now().UTC(),
	}
}

// ReportAsync sends a record on a detached goroutine. Errors (and panics)
// are contained and logged; the caller's critical path never waits.
func ReportAsync(collector Collector, rec UsageRecord, log zerolog.Logger) {
	if collector == nil {
		return
	}

	go func() {
		defer func() {
			if p := recover(); p != nil {
				log.Error().Interface("panic", p).Msg("Metering report panicked")
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := collector.Record(ctx, rec); err != nil {
			log.Warn().Err(err).Str("record_id", rec.ID).Msg("Failed to report usage record")
		}
	}()
}
