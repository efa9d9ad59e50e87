// Package perplexity provides a client for the Perplexity chat API (or any
// OpenAI-compatible endpoint). Responses are free text; all structure is
// recovered downstream by heuristic parsing.
package perplexity

import (
	"context"
	"fmt"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/rs/zerolog"
)

// Usage carries token counts and the estimated cost of one completed call.
type Usage struct {
	Model        string
	InputTokens  int
	OutputTokens int
	CostUSD      float64
}

// ModelPricing holds per-million-token prices for cost estimation.
type ModelPricing struct {
	InputPerMToken  float64
	OutputPerMToken float64
}

// modelPrices covers the Perplexity sonar family; unknown models fall back
// to the base sonar rate.
var modelPrices = map[string]ModelPricing{
	"sonar":           {InputPerMToken: 1.0, OutputPerMToken: 1.0},
	"sonar-pro":       {InputPerMToken: 3.0, OutputPerMToken: 15.0},
	"sonar-reasoning": {InputPerMToken: 1.0, OutputPerMToken: 5.0},
}

const defaultModel = "sonar"

// ClientInterface defines the AI-text operations consumers depend on.
type ClientInterface interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, *Usage, error)
}

// Client wraps the OpenAI-compatible chat completions API.
type Client struct {
	api     openai.Client
	model   string
	timeout time.Duration
	log     zerolog.Logger
}

// NewClient creates a new AI-text client. baseURL selects the provider
// endpoint (Perplexity by default); model falls back to sonar when empty.
func NewClient(apiKey, baseURL, model string, log zerolog.Logger) *Client {
	if model == "" {
		model = defaultModel
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	return &Client{
		api:     openai.NewClient(opts...),
		model:   model,
		timeout: 60 * time.Second,
		log:     log.With().Str("client", "perplexity").Logger(),
	}
}

// Complete issues a single chat completion and returns the raw text content
// plus usage/cost metadata. No retries: a failure surfaces immediately and
// the caller decides whether to re-trigger.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, *Usage, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	messages := []openai.ChatCompletionMessageParamUnion{}
	if systemPrompt != "" {
		messages = append(messages, openai.SystemMessage(systemPrompt))
	}
	messages = append(messages, openai.UserMessage(userPrompt))

	completion, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.model),
		Messages: messages,
	})
	if err != nil {
		return "", nil, fmt.Errorf("chat completion failed: %w", err)
	}

	if len(completion.Choices) == 0 {
		return "", nil, fmt.Errorf("no choices in completion response")
	}

	usage := c.extractUsage(completion.Usage)

	c.log.Debug().
		Str("model", c.model).
		Int("input_tokens", usage.InputTokens).
		Int("output_tokens", usage.OutputTokens).
		Float64("cost_usd", usage.CostUSD).
		Msg("Chat completion finished")

	return completion.Choices[0].Message.Content, usage, nil
}

func (c *Client) extractUsage(usage openai.CompletionUsage) *Usage {
	inputTokens := int(usage.PromptTokens)
	outputTokens := int(usage.CompletionTokens)

	return &Usage{
		Model:        c.model,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		CostUSD:      calculateCost(c.model, inputTokens, outputTokens),
	}
}

// calculateCost estimates the dollar cost of a call from the model's
// per-million-token pricing.
func calculateCost(model string, input, output int) float64 {
	pricing, ok := modelPrices[model]
	if !ok {
		pricing = modelPrices[defaultModel]
	}

	inputCost := float64(input) * pricing.InputPerMToken / 1_000_000
	outputCost := float64(output) * pricing.OutputPerMToken / 1_000_000

	return inputCost + outputCost
}
