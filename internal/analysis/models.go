package analysis

import "time"

// Impact tags a financial event as good, bad or indifferent for the holder.
type Impact string

const (
	ImpactPositive Impact = "positive"
	ImpactNegative Impact = "negative"
	ImpactNeutral  Impact = "neutral"
)

// FinancialEvent is one dated event extracted from the AI response.
type FinancialEvent struct {
	Date        time.Time `json:"date"`
	Description string    `json:"description"`
	Impact      Impact    `json:"impact"`
}

// Analysis is the normalized AI narrative for one symbol: three bulleted
// sections plus the event list, cached whole under the analysis category.
type Analysis struct {
	Symbol      string           `json:"symbol"`
	RecentNews  []string         `json:"recent_news"`
	MajorEvents []string         `json:"major_events"`
	Valuation   []string         `json:"valuation"`
	Events      []FinancialEvent `json:"events"`
	LastUpdated time.Time        `json:"last_updated"`
}
