package cache

import "time"

// TTL constants for different data categories.
// These are added to time.Now() when storing to calculate expires_at.
//
// Everything persistent is 24 hours: the upstream providers enforce strict
// daily request budgets, so freshness is deliberately traded for quota.
// Quotes are significant on a 5-minute scale but still cached for a day;
// a user who wants fresher data invalidates the category explicitly.
const (
	TTLQuote      = 24 * time.Hour // Quote snapshots
	TTLValidation = 24 * time.Hour // Symbol validation results (negative results included)
	TTLHistorical = 24 * time.Hour // Range-filtered daily series
	TTLAnalysis   = 24 * time.Hour // AI narrative sections
	TTLEvents     = 24 * time.Hour // AI financial events (separate clock from analysis)

	// Process-local only, never persisted: collapses duplicate upstream HTTP
	// calls within a single refresh batch.
	TTLMemoryQuote = 5 * time.Minute
)
