// Package gemini implements the llm.Provider interface for the Google
// Gemini generateContent API.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/user/scriptforge/pkg/llm"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com"

// DefaultSafetySettings blocks medium-and-above content across the four
// standard harm categories.
func DefaultSafetySettings() []llm.SafetySetting {
	categories := []string{
		"HARM_CATEGORY_HARASSMENT",
		"HARM_CATEGORY_HATE_SPEECH",
		"HARM_CATEGORY_SEXUALLY_EXPLICIT",
		"HARM_CATEGORY_DANGEROUS_CONTENT",
	}
	settings := make([]llm.SafetySetting, 0, len(categories))
	for _, c := range categories {
		settings = append(settings, llm.SafetySetting{
			Category:  c,
			Threshold: "BLOCK_MEDIUM_AND_ABOVE",
		})
	}
	return settings
}

// Client is a minimal Gemini generateContent API wrapper.
type Client struct {
	config     *llm.Config
	baseURL    string
	httpClient *http.Client
}

// New creates a new Gemini client with the given configuration.
func New(config *llm.Config) *Client {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		config:  config,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

type generateRequest struct {
	Contents         []content           `json:"contents"`
	GenerationConfig *generationConfig   `json:"generationConfig,omitempty"`
	SafetySettings   []llm.SafetySetting `json:"safetySettings,omitempty"`
}

type content struct {
	Role  string `json:"role"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature     *float32 `json:"temperature,omitempty"`
	TopP            *float32 `json:"topP,omitempty"`
	TopK            *int     `json:"topK,omitempty"`
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
}

type generateResponse struct {
	Candidates     []candidate     `json:"candidates"`
	PromptFeedback *promptFeedback `json:"promptFeedback,omitempty"`
}

type candidate struct {
	Content      content `json:"content"`
	FinishReason string  `json:"finishReason"`
}

type promptFeedback struct {
	BlockReason string `json:"blockReason"`
}

// Generate sends the conversation to the generateContent endpoint and
// returns the model's text response.
func (c *Client) Generate(ctx context.Context, messages []llm.Message) (string, error) {
	if c.config.APIKey == "" {
		return "", llm.ErrNotConfigured
	}

	reqBody := generateRequest{
		Contents:       toContents(messages),
		SafetySettings: c.config.SafetySettings,
	}

	gc := &generationConfig{MaxOutputTokens: c.config.MaxOutputTokens}
	if c.config.Temperature != 0 {
		temp := c.config.Temperature
		gc.Temperature = &temp
	}
	if c.config.TopP != 0 {
		topP := c.config.TopP
		gc.TopP = &topP
	}
	if c.config.TopK != 0 {
		topK := c.config.TopK
		gc.TopK = &topK
	}
	reqBody.GenerationConfig = gc

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		c.baseURL, c.config.Model, url.QueryEscape(c.config.APIKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", llm.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", fmt.Errorf("%w (status %d)", llm.ErrUnauthorized, resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", llm.ErrRateLimited
	case resp.StatusCode >= 500:
		return "", fmt.Errorf("%w (status %d)", llm.ErrUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var genResp generateResponse
	if err := json.Unmarshal(respBody, &genResp); err != nil {
		return "", fmt.Errorf("parsing response: %w", err)
	}

	if genResp.PromptFeedback != nil && genResp.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("%w: %s", llm.ErrBlocked, genResp.PromptFeedback.BlockReason)
	}
	if len(genResp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates in response")
	}

	cand := genResp.Candidates[0]
	if cand.FinishReason == "SAFETY" {
		return "", fmt.Errorf("%w: candidate finished with SAFETY", llm.ErrBlocked)
	}

	var buf bytes.Buffer
	for _, p := range cand.Content.Parts {
		buf.WriteString(p.Text)
	}
	return buf.String(), nil
}

// toContents maps conversation messages onto Gemini's two-role vocabulary.
// Gemini has no system role in this API version, so system turns become
// user turns, matching the transcript shape the adapter builds.
func toContents(messages []llm.Message) []content {
	out := make([]content, 0, len(messages))
	for _, msg := range messages {
		out = append(out, content{
			Role:  mapRole(msg.Role),
			Parts: []part{{Text: msg.Content}},
		})
	}
	return out
}

func mapRole(role string) string {
	switch role {
	case "assistant", "model":
		return "model"
	default:
		return "user"
	}
}
