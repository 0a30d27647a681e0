package llm

import "context"

// Provider defines the interface for interacting with LLM backends.
// Implementations handle protocol-specific details such as request
// formatting, authentication, and response parsing. The contract is
// deliberately narrow: an ordered sequence of role/text turns in, one raw
// text blob out.
type Provider interface {
	Generate(ctx context.Context, messages []Message) (string, error)
}

// Config holds common configuration for LLM providers.
type Config struct {
	BaseURL         string
	APIKey          string
	Model           string
	Temperature     float32
	TopP            float32
	TopK            int
	MaxOutputTokens int
	// SafetySettings maps harm categories to block thresholds for backends
	// that support content filtering (Gemini). Ignored elsewhere.
	SafetySettings []SafetySetting
}

// SafetySetting configures one content-safety threshold.
type SafetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}
