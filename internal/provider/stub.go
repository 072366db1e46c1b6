package provider

import (
	"context"

	"github.com/JakeFAU/page-summarizer/internal/summary"
)

// NameStub identifies the placeholder provider used in development and tests.
const NameStub = "mock"

// StubSummary is the fixed text returned by Stub.
const StubSummary = "This is a mock summary generated for testing purposes. " +
	"In production, this would be a real AI-generated summary of the article content."

// Stub returns a fixed summary without calling any external service.
type Stub struct {
	// Err, when set, is returned wrapped as a *summary.ProviderError.
	Err error
}

// Name implements summary.Provider.
func (Stub) Name() string { return NameStub }

// Summarize returns StubSummary, or Err as a provider failure.
func (s Stub) Summarize(ctx context.Context, _ string, _ int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", summary.NewProviderError(NameStub, "summarize canceled", err)
	}
	if s.Err != nil {
		return "", summary.NewProviderError(NameStub, "stub failure", s.Err)
	}
	return StubSummary, nil
}
