// Package provider builds the summarization backends: an OpenAI-compatible
// chat model and a fixed-output stub.
package provider

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/page-summarizer/internal/config"
	"github.com/JakeFAU/page-summarizer/internal/summary"
)

// DefaultMaxWords caps summary length when callers pass no limit.
const DefaultMaxWords = 300

// New selects a provider by cfg.Provider. Unknown names and a model provider
// without credentials fail with *summary.ConfigError.
func New(cfg config.SummarizerConfig, logger *zap.Logger) (summary.Provider, error) {
	switch name := strings.ToLower(strings.TrimSpace(cfg.Provider)); name {
	case NameOpenAI, "model":
		return NewOpenAI(OpenAIConfig{
			APIKey:        cfg.APIKey,
			Model:         cfg.Model,
			BaseURL:       cfg.BaseURL,
			MaxInputChars: cfg.MaxInputChars,
			Temperature:   cfg.Temperature,
			MaxTokens:     cfg.MaxTokens,
			Timeout:       time.Duration(cfg.TimeoutSeconds) * time.Second,
		}, logger)
	case NameStub, "stub":
		return Stub{}, nil
	default:
		return nil, &summary.ConfigError{
			Key: "summarizer.provider",
			Msg: fmt.Sprintf("unknown provider %q (expected %q or %q)", cfg.Provider, NameOpenAI, NameStub),
		}
	}
}
