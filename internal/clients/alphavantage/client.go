// Package alphavantage provides a client for the Alpha Vantage market data API.
// The client enforces the provider's daily request budget and keeps a short
// process-local response cache to avoid redundant calls within a batch.
package alphavantage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const defaultBaseURL = "https://www.alphavantage.co/query"

// defaultDailyLimit matches the provider's free-tier budget.
const defaultDailyLimit = 25

// ClientInterface defines the market data operations consumers depend on.
type ClientInterface interface {
	GetGlobalQuote(ctx context.Context, symbol string) (*GlobalQuote, error)
	SearchSymbol(ctx context.Context, keywords string) ([]SymbolMatch, error)
	GetDailyTimeSeries(ctx context.Context, symbol string) ([]DailyPrice, error)
	GetRemainingRequests() int
}

// Client for the Alpha Vantage API.
type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
	log     zerolog.Logger

	cacheTTL CacheTTL

	mu           sync.Mutex
	requestCount int
	requestLimit int
	resetTime    time.Time

	cacheMu sync.RWMutex
	cache   map[string]cacheEntry
}

type cacheEntry struct {
	data      interface{}
	expiresAt time.Time
}

// NewClient creates a new Alpha Vantage client.
func NewClient(apiKey string, log zerolog.Logger) *Client {
	return &Client{
		apiKey:       apiKey,
		baseURL:      defaultBaseURL,
		client:       &http.Client{Timeout: 15 * time.Second},
		log:          log.With().Str("client", "alphavantage").Logger(),
		cacheTTL:     DefaultCacheTTL(),
		requestLimit: defaultDailyLimit,
		resetTime:    nextMidnightUTC(),
		cache:        make(map[string]cacheEntry),
	}
}

// SetCacheTTL overrides the memory-cache TTL configuration.
func (c *Client) SetCacheTTL(ttl CacheTTL) {
	c.cacheTTL = ttl
}

// SetDailyLimit overrides the daily request budget (the free tier allows 25).
func (c *Client) SetDailyLimit(limit int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requestLimit = limit
}

// GetRemainingRequests returns how many upstream calls are left today.
// Cache hits do not consume budget.
func (c *Client) GetRemainingRequests() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.maybeResetLocked()
	return c.requestLimit - c.requestCount
}

// ResetDailyCounter resets the request counter (normally happens at UTC midnight).
func (c *Client) ResetDailyCounter() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requestCount = 0
	c.resetTime = nextMidnightUTC()
}

// checkRateLimit consumes one unit of the daily budget, or fails if exhausted.
func (c *Client) checkRateLimit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.maybeResetLocked()

	if c.requestCount >= c.requestLimit {
		return ErrRateLimitExceeded{}
	}

	c.requestCount++
	return nil
}

func (c *Client) maybeResetLocked() {
	if time.Now().UTC().After(c.resetTime) {
		c.requestCount = 0
		c.resetTime = nextMidnightUTC()
	}
}

// nextMidnightUTC returns the next UTC midnight, when the provider's daily
// budget renews.
func nextMidnightUTC() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
}

// GetGlobalQuote fetches the current quote snapshot for a symbol.
func (c *Client) GetGlobalQuote(ctx context.Context, symbol string) (*GlobalQuote, error) {
	params := map[string]string{"symbol": symbol}
	cacheKey := buildCacheKey("GLOBAL_QUOTE", params)

	if cached, ok := c.getFromCache(cacheKey); ok {
		if quote, ok := cached.(*GlobalQuote); ok {
			return quote, nil
		}
	}

	body, err := c.request(ctx, "GLOBAL_QUOTE", params)
	if err != nil {
		return nil, err
	}

	quote, err := parseGlobalQuote(body)
	if err != nil {
		return nil, err
	}
	if quote.Symbol == "" {
		// The provider answers an unknown symbol with an empty Global Quote object.
		return nil, ErrSymbolNotFound{Symbol: symbol}
	}

	c.setCache(cacheKey, quote, c.cacheTTL.Quote)
	return quote, nil
}

// SearchSymbol runs a symbol search and returns the best matches.
func (c *Client) SearchSymbol(ctx context.Context, keywords string) ([]SymbolMatch, error) {
	params := map[string]string{"keywords": keywords}
	cacheKey := buildCacheKey("SYMBOL_SEARCH", params)

	if cached, ok := c.getFromCache(cacheKey); ok {
		if matches, ok := cached.([]SymbolMatch); ok {
			return matches, nil
		}
	}

	body, err := c.request(ctx, "SYMBOL_SEARCH", params)
	if err != nil {
		return nil, err
	}

	matches, err := parseSymbolSearch(body)
	if err != nil {
		return nil, err
	}

	c.setCache(cacheKey, matches, c.cacheTTL.SymbolSearch)
	return matches, nil
}

// GetDailyTimeSeries fetches the full daily price history for a symbol,
// sorted newest first.
func (c *Client) GetDailyTimeSeries(ctx context.Context, symbol string) ([]DailyPrice, error) {
	params := map[string]string{"symbol": symbol, "outputsize": "full"}
	cacheKey := buildCacheKey("TIME_SERIES_DAILY", params)

	if cached, ok := c.getFromCache(cacheKey); ok {
		if prices, ok := cached.([]DailyPrice); ok {
			return prices, nil
		}
	}

	body, err := c.request(ctx, "TIME_SERIES_DAILY", params)
	if err != nil {
		return nil, err
	}

	prices, err := parseDailyTimeSeries(body)
	if err != nil {
		return nil, err
	}
	if len(prices) == 0 {
		return nil, ErrSymbolNotFound{Symbol: symbol}
	}

	c.setCache(cacheKey, prices, c.cacheTTL.TimeSeries)
	return prices, nil
}

// request performs a budgeted GET against the API and checks the body for
// provider-signaled errors.
func (c *Client) request(ctx context.Context, function string, params map[string]string) ([]byte, error) {
	if c.apiKey == "" {
		return nil, ErrInvalidAPIKey{}
	}

	if err := c.checkRateLimit(); err != nil {
		return nil, err
	}

	values := url.Values{}
	values.Set("function", function)
	values.Set("apikey", c.apiKey)
	for k, v := range params {
		values.Set(k, v)
	}

	reqURL := c.baseURL + "?" + values.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	c.log.Debug().Str("function", function).Msg("Calling Alpha Vantage")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, ErrHTTPStatus{Status: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if err := c.checkAPIError(body); err != nil {
		return nil, err
	}

	return body, nil
}

// checkAPIError detects error payloads the provider returns with HTTP 200:
// a "Note"/"Information" field or a plain-text thank-you page means
// throttling, an "Error Message" field means the request itself was bad.
func (c *Client) checkAPIError(body []byte) error {
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "Thank you for using Alpha Vantage") {
		return ErrRateLimitExceeded{}
	}

	var envelope struct {
		Note         string `json:"Note"`
		Information  string `json:"Information"`
		ErrorMessage string `json:"Error Message"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		// Not a JSON error envelope; let the endpoint parser decide.
		return nil
	}

	if envelope.Note != "" || envelope.Information != "" {
		c.log.Warn().Msg("Alpha Vantage signaled throttling")
		return ErrRateLimitExceeded{}
	}
	if envelope.ErrorMessage != "" {
		return fmt.Errorf("alpha vantage error: %s", envelope.ErrorMessage)
	}

	return nil
}

// Memory cache helpers

func (c *Client) setCache(key string, data interface{}, ttl time.Duration) {
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()
	c.cache[key] = cacheEntry{
		data:      data,
		expiresAt: time.Now().Add(ttl),
	}
}

func (c *Client) getFromCache(key string) (interface{}, bool) {
	c.cacheMu.RLock()
	defer c.cacheMu.RUnlock()

	entry, ok := c.cache[key]
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.data, true
}

// ClearCache drops all memory-cached responses.
func (c *Client) ClearCache() {
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()
	c.cache = make(map[string]cacheEntry)
}

// buildCacheKey builds a stable memory-cache key from the API function and
// its parameters, excluding the API key.
func buildCacheKey(function string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if k == "apikey" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(function)
	for _, k := range keys {
		b.WriteString("&")
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(params[k])
	}
	return b.String()
}

// Parse helpers. Alpha Vantage returns every number as a string, with
// "None", "null", "-" and trailing "%" all in circulation.

func parseFloat64(s string) float64 {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	if s == "" || s == "None" || s == "null" || s == "-" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

func parseFloat64Ptr(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" || s == "None" || s == "null" || s == "-" {
		return nil
	}
	f, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64)
	if err != nil {
		return nil
	}
	return &f
}

func parseInt64(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" || s == "None" || s == "null" || s == "-" {
		return 0
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	// Large volumes occasionally arrive in scientific notation.
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int64(f)
	}
	return 0
}

func parseDate(s string) time.Time {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return time.Time{}
	}
	return t
}

func parseDateTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t
	}
	return parseDate(s)
}

// parseGlobalQuote extracts the quote snapshot from a GLOBAL_QUOTE response.
func parseGlobalQuote(body []byte) (*GlobalQuote, error) {
	var envelope struct {
		GlobalQuote map[string]string `json:"Global Quote"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to parse global quote: %w", err)
	}

	q := envelope.GlobalQuote
	return &GlobalQuote{
		Symbol:           q["01. symbol"],
		Open:             parseFloat64(q["02. open"]),
		High:             parseFloat64(q["03. high"]),
		Low:              parseFloat64(q["04. low"]),
		Price:            parseFloat64(q["05. price"]),
		Volume:           parseInt64(q["06. volume"]),
		LatestTradingDay: parseDate(q["07. latest trading day"]),
		PreviousClose:    parseFloat64(q["08. previous close"]),
		Change:           parseFloat64(q["09. change"]),
		ChangePercent:    parseFloat64(q["10. change percent"]),
	}, nil
}

// parseSymbolSearch extracts matches from a SYMBOL_SEARCH response.
func parseSymbolSearch(body []byte) ([]SymbolMatch, error) {
	var envelope struct {
		BestMatches []map[string]string `json:"bestMatches"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to parse symbol search: %w", err)
	}

	matches := make([]SymbolMatch, 0, len(envelope.BestMatches))
	for _, m := range envelope.BestMatches {
		matches = append(matches, SymbolMatch{
			Symbol:     m["1. symbol"],
			Name:       m["2. name"],
			Type:       m["3. type"],
			Region:     m["4. region"],
			Currency:   m["8. currency"],
			MatchScore: parseFloat64(m["9. matchScore"]),
		})
	}
	return matches, nil
}

// parseDailyTimeSeries extracts daily bars from a TIME_SERIES_DAILY response,
// sorted newest first.
func parseDailyTimeSeries(body []byte) ([]DailyPrice, error) {
	var envelope struct {
		TimeSeries map[string]map[string]string `json:"Time Series (Daily)"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to parse daily time series: %w", err)
	}

	prices := make([]DailyPrice, 0, len(envelope.TimeSeries))
	for date, bar := range envelope.TimeSeries {
		prices = append(prices, DailyPrice{
			Date:   parseDate(date),
			Open:   parseFloat64(bar["1. open"]),
			High:   parseFloat64(bar["2. high"]),
			Low:    parseFloat64(bar["3. low"]),
			Close:  parseFloat64(bar["4. close"]),
			Volume: parseInt64(bar["5. volume"]),
		})
	}

	sort.Slice(prices, func(i, j int) bool {
		return prices[i].Date.After(prices[j].Date)
	})

	return prices, nil
}
