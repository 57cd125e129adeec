// Package llm provides the LLM clients and the arbitration tier that
// issues a second opinion on medium-confidence matches.
package llm

import (
	"context"
	"fmt"
	"strings"
)

// Client is a minimal text-generation interface over any LLM provider.
type Client interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ClientConfig selects and configures a provider.
type ClientConfig struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
}

// NewClient builds a provider client from config.
func NewClient(ctx context.Context, cfg ClientConfig) (Client, error) {
	switch strings.ToLower(cfg.Provider) {
	case "claude":
		return NewClaudeClient(cfg.APIKey, cfg.Model, cfg.BaseURL), nil
	case "openai":
		return NewOpenAIClient(cfg.APIKey, cfg.Model, cfg.BaseURL), nil
	case "gemini":
		return NewGeminiClient(ctx, cfg.APIKey, cfg.Model)
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.Provider)
	}
}
