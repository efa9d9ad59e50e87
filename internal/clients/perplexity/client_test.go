package perplexity

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestNewClient_DefaultModel(t *testing.T) {
	client := NewClient("test-key", "", "", zerolog.Nop())

	assert.NotNil(t, client)
	assert.Equal(t, "sonar", client.model)
}

func TestNewClient_CustomModel(t *testing.T) {
	client := NewClient("test-key", "https://api.perplexity.ai", "sonar-pro", zerolog.Nop())

	assert.Equal(t, "sonar-pro", client.model)
}

func TestCalculateCost(t *testing.T) {
	tests := []struct {
		name     string
		model    string
		input    int
		output   int
		expected float64
	}{
		{
			name:     "sonar base rate",
			model:    "sonar",
			input:    1_000_000,
			output:   1_000_000,
			expected: 2.0,
		},
		{
			name:     "sonar-pro asymmetric rate",
			model:    "sonar-pro",
			input:    1_000_000,
			output:   1_000_000,
			expected: 18.0,
		},
		{
			name:     "unknown model falls back to sonar",
			model:    "mystery-model",
			input:    500_000,
			output:   500_000,
			expected: 1.0,
		},
		{
			name:     "zero tokens",
			model:    "sonar",
			input:    0,
			output:   0,
			expected: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cost := calculateCost(tt.model, tt.input, tt.output)
			assert.InDelta(t, tt.expected, cost, 1e-9)
		})
	}
}

func TestInterfaceImplementation(t *testing.T) {
	var _ ClientInterface = (*Client)(nil)
}
