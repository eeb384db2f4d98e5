// Package llm wraps the Gemini API behind a small client interface so the
// workflow engine can be tested against a stub and a future provider swap
// stays local to this package.
package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// ModelTier selects model capability per task.
type ModelTier string

const (
	// TierLite covers classification-style tasks: page categorization.
	TierLite ModelTier = "lite"
	// TierStandard covers structured judgment tasks: final relevance scoring.
	TierStandard ModelTier = "standard"
)

// Config maps tiers to model names.
type Config struct {
	Models map[ModelTier]string
}

// DefaultConfig returns the default Gemini model assignment.
func DefaultConfig() *Config {
	return &Config{
		Models: map[ModelTier]string{
			TierLite:     "gemini-2.5-flash-lite",
			TierStandard: "gemini-2.5-flash",
		},
	}
}

// Model returns the model name for a tier, falling back to lite.
func (c *Config) Model(tier ModelTier) string {
	if model, ok := c.Models[tier]; ok {
		return model
	}
	return c.Models[TierLite]
}

// Client generates content for the workflow engine.
type Client interface {
	// GenerateJSON generates a JSON response for a prompt.
	GenerateJSON(ctx context.Context, prompt string, tier ModelTier) (string, error)
	// Close releases any resources held by the client.
	Close() error
}

// GeminiClient implements Client for Google Gemini.
type GeminiClient struct {
	client *genai.Client
	config *Config
}

// NewGeminiClient creates a Gemini-backed client.
func NewGeminiClient(ctx context.Context, config *Config, apiKey string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if config == nil {
		config = DefaultConfig()
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiClient{client: client, config: config}, nil
}

// GenerateJSON generates a JSON response for a prompt using the tier's
// model. Temperature is kept low; judgments must be reproducible enough to
// compare across runs.
func (c *GeminiClient) GenerateJSON(ctx context.Context, prompt string, tier ModelTier) (string, error) {
	modelName := c.config.Model(tier)
	if modelName == "" {
		return "", fmt.Errorf("no model configured for tier %s", tier)
	}

	model := c.client.GenerativeModel(modelName)
	model.SetTemperature(0.1)
	model.ResponseMIMEType = "application/json"

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	text, err := extractText(resp)
	if err != nil {
		return "", err
	}
	return CleanJSONBlock(text), nil
}

// Close releases resources held by the client.
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

func extractText(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates in response")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("no content in response")
	}

	var parts []string
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			parts = append(parts, string(text))
		}
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("no text parts in response")
	}
	return strings.Join(parts, ""), nil
}

// CleanJSONBlock removes markdown code block wrappers. Models wrap JSON in
// ```json fences even when told not to.
func CleanJSONBlock(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}
