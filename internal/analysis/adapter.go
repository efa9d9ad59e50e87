// Package analysis adapts the AI-text provider into structured, cache-first
// narrative analysis and financial events for a symbol.
package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ataha322/stock-agent-hackathon/internal/cache"
	"github.com/ataha322/stock-agent-hackathon/internal/clients/perplexity"
	"github.com/ataha322/stock-agent-hackathon/internal/inflight"
	"github.com/ataha322/stock-agent-hackathon/internal/market"
	"github.com/ataha322/stock-agent-hackathon/internal/metering"
)

// ErrRefreshInProgress signals that another fetch for the same symbol and
// kind is already running; the caller should back off, not wait.
var ErrRefreshInProgress = errors.New("refresh already in progress")

const (
	analysisSystemPrompt = "You are a financial analyst. Be factual and concise. Use bullet points."

	analysisPromptTemplate = `Provide a concise analysis of the stock %s in exactly three sections:
1. Recent News
2. Major Events
3. Valuation Assessment
Use bullet points under each section header.`

	eventsPromptTemplate = `List up to 10 significant recent financial events for the stock %s.
Format each event on its own line exactly as:
YYYY-MM-DD | short description | positive/negative/neutral
Output nothing but event lines.`
)

// Adapter serves AI analysis cache-first, with an in-flight guard collapsing
// concurrent triggers for the same symbol.
type Adapter struct {
	ai    perplexity.ClientInterface
	store *cache.Repository
	guard *inflight.Guard
	meter metering.Collector
	log   zerolog.Logger
}

// NewAdapter creates an analysis adapter. meter may be nil, in which case
// usage reporting is skipped.
func NewAdapter(ai perplexity.ClientInterface, store *cache.Repository, guard *inflight.Guard, meter metering.Collector, log zerolog.Logger) *Adapter {
	return &Adapter{
		ai:    ai,
		store: store,
		guard: guard,
		meter: meter,
		log:   log.With().Str("adapter", "analysis").Logger(),
	}
}

// GetAnalysis returns the three-section narrative plus events for a symbol.
// Served from the store when fresh; otherwise one upstream call is made,
// guarded so concurrent triggers for the same symbol issue exactly one.
func (a *Adapter) GetAnalysis(ctx context.Context, symbol string) (*Analysis, error) {
	symbol = market.NormalizeSymbol(symbol)

	if cached := a.cachedAnalysis(symbol); cached != nil {
		return cached, nil
	}

	if !a.guard.TryAcquire(inflight.KindAnalysis, symbol) {
		return nil, ErrRefreshInProgress
	}
	defer a.guard.Release(inflight.KindAnalysis, symbol)

	// The previous holder may have populated the store between our cache
	// check and the acquire.
	if cached := a.cachedAnalysis(symbol); cached != nil {
		return cached, nil
	}

	prompt := fmt.Sprintf(analysisPromptTemplate, symbol)
	content, usage, err := a.ai.Complete(ctx, analysisSystemPrompt, prompt)
	if err != nil {
		return nil, fmt.Errorf("analysis fetch for %s failed: %w", symbol, err)
	}

	recentNews, majorEvents, valuation := parseSections(content)

	events, err := a.GetFinancialEvents(ctx, symbol)
	if err != nil {
		// Another trigger is refreshing events; the narrative still renders.
		events = []FinancialEvent{}
	}

	result := &Analysis{
		Symbol:      symbol,
		RecentNews:  recentNews,
		MajorEvents: majorEvents,
		Valuation:   valuation,
		Events:      events,
		LastUpdated: time.Now().UTC(),
	}

	if err := a.store.Put(symbol, cache.CategoryAnalysis, result, cache.TTLAnalysis); err != nil {
		a.log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to cache analysis")
	}

	a.reportUsage(symbol, "analysis", usage)

	return result, nil
}

// GetFinancialEvents returns the dated event list for a symbol, cached
// independently of the narrative. An upstream failure yields an empty list,
// never an error, so events can never block the rest of the analysis.
func (a *Adapter) GetFinancialEvents(ctx context.Context, symbol string) ([]FinancialEvent, error) {
	symbol = market.NormalizeSymbol(symbol)

	if cached := a.cachedEvents(symbol); cached != nil {
		return cached, nil
	}

	if !a.guard.TryAcquire(inflight.KindEvents, symbol) {
		return nil, ErrRefreshInProgress
	}
	defer a.guard.Release(inflight.KindEvents, symbol)

	if cached := a.cachedEvents(symbol); cached != nil {
		return cached, nil
	}

	prompt := fmt.Sprintf(eventsPromptTemplate, symbol)
	content, usage, err := a.ai.Complete(ctx, analysisSystemPrompt, prompt)
	if err != nil {
		a.log.Warn().Err(err).Str("symbol", symbol).Msg("Events fetch failed, returning empty list")
		return []FinancialEvent{}, nil
	}

	events := parseEvents(content)

	if err := a.store.Put(symbol, cache.CategoryEvents, events, cache.TTLEvents); err != nil {
		a.log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to cache events")
	}

	a.reportUsage(symbol, "events", usage)

	return events, nil
}

func (a *Adapter) cachedAnalysis(symbol string) *Analysis {
	raw, err := a.store.GetIfFresh(symbol, cache.CategoryAnalysis)
	if err != nil {
		a.log.Warn().Err(err).Str("symbol", symbol).Msg("Analysis cache read failed")
		return nil
	}
	if raw == nil {
		return nil
	}

	var result Analysis
	if err := json.Unmarshal(raw, &result); err != nil {
		a.log.Warn().Str("symbol", symbol).Msg("Corrupt cached analysis, refetching")
		return nil
	}
	return &result
}

func (a *Adapter) cachedEvents(symbol string) []FinancialEvent {
	raw, err := a.store.GetIfFresh(symbol, cache.CategoryEvents)
	if err != nil {
		a.log.Warn().Err(err).Str("symbol", symbol).Msg("Events cache read failed")
		return nil
	}
	if raw == nil {
		return nil
	}

	var events []FinancialEvent
	if err := json.Unmarshal(raw, &events); err != nil {
		a.log.Warn().Str("symbol", symbol).Msg("Corrupt cached events, refetching")
		return nil
	}
	if events == nil {
		events = []FinancialEvent{}
	}
	return events
}

func (a *Adapter) reportUsage(symbol, operation string, usage *perplexity.Usage) {
	if usage == nil {
		return
	}
	rec := metering.NewRecord(symbol, operation, usage.Model, usage.InputTokens, usage.OutputTokens, usage.CostUSD)
	metering.ReportAsync(a.meter, rec, a.log)
}
