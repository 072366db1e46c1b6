package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/JakeFAU/page-summarizer/internal/summary"
)

const (
	// NameOpenAI identifies the model-backed provider.
	NameOpenAI = "openai"

	truncationMarker = "..."

	systemPromptTemplate = "You are a helpful assistant that creates concise, informative summaries of articles. " +
		"Keep summaries under %d words. Focus on the main points and key takeaways."
	userPromptPrefix = "Please summarize this article:\n\n"
)

// OpenAIConfig tunes the model-backed provider.
type OpenAIConfig struct {
	APIKey        string
	Model         string
	BaseURL       string
	MaxInputChars int
	Temperature   float32
	MaxTokens     int
	Timeout       time.Duration
}

type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAI summarizes text with an OpenAI-compatible chat completion endpoint.
type OpenAI struct {
	client chatCompleter
	cfg    OpenAIConfig
	logger *zap.Logger
}

// NewOpenAI builds the model-backed provider. A missing API key is a *summary.ConfigError.
func NewOpenAI(cfg OpenAIConfig, logger *zap.Logger) (*OpenAI, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, &summary.ConfigError{
			Key: "summarizer.api_key",
			Msg: "an API key is required for the openai provider",
		}
	}
	if cfg.Model == "" {
		cfg.Model = openai.GPT4oMini
	}
	if cfg.MaxInputChars <= 0 {
		cfg.MaxInputChars = 50000
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 500
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	clientCfg.HTTPClient = &http.Client{
		Timeout:   cfg.Timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	return &OpenAI{
		client: openai.NewClientWithConfig(clientCfg),
		cfg:    cfg,
		logger: logger,
	}, nil
}

// Name implements summary.Provider.
func (p *OpenAI) Name() string { return NameOpenAI }

// Summarize sends one chat completion request. Every failure is a *summary.ProviderError.
func (p *OpenAI) Summarize(ctx context.Context, text string, maxWords int) (string, error) {
	if maxWords <= 0 {
		maxWords = DefaultMaxWords
	}
	input, truncated := Truncate(text, p.cfg.MaxInputChars)
	if truncated {
		p.logger.Debug("article truncated before summarization",
			zap.Int("limit", p.cfg.MaxInputChars),
		)
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: fmt.Sprintf(systemPromptTemplate, maxWords)},
			{Role: openai.ChatMessageRoleUser, Content: userPromptPrefix + input},
		},
		Temperature: p.cfg.Temperature,
		MaxTokens:   p.cfg.MaxTokens,
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			p.logger.Warn("openai api error",
				zap.Int("status_code", apiErr.HTTPStatusCode),
				zap.String("type", apiErr.Type),
			)
		}
		return "", summary.NewProviderError(NameOpenAI, "openai request failed", err)
	}
	if len(resp.Choices) == 0 {
		return "", summary.NewProviderError(NameOpenAI, "openai returned no choices", nil)
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", summary.NewProviderError(NameOpenAI, "openai returned an empty summary", nil)
	}
	p.logger.Debug("summary generated",
		zap.String("model", p.cfg.Model),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
	)
	return content, nil
}

// Truncate cuts text to at most limit characters and appends a marker when it did.
func Truncate(text string, limit int) (string, bool) {
	if limit <= 0 {
		return text, false
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text, false
	}
	return string(runes[:limit]) + truncationMarker, true
}
