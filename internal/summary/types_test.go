package summary

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	t.Parallel()

	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusProcessing, true},
		{StatusPending, StatusFailed, true},
		{StatusPending, StatusCompleted, false},
		{StatusProcessing, StatusProcessing, false},
		{StatusPending, StatusPending, false},
		{StatusProcessing, StatusCompleted, true},
		{StatusProcessing, StatusFailed, true},
		{StatusProcessing, StatusPending, false},
		{StatusCompleted, StatusFailed, false},
		{StatusCompleted, StatusCompleted, false},
		{StatusFailed, StatusProcessing, false},
		{StatusFailed, StatusCompleted, false},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("%s->%s", tc.from, tc.to), func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, CanTransition(tc.from, tc.to))
		})
	}
}

func TestPredecessors(t *testing.T) {
	t.Parallel()

	require.Equal(t, []Status{StatusPending}, Predecessors(StatusProcessing))
	require.Equal(t, []Status{StatusProcessing}, Predecessors(StatusCompleted))
	require.Equal(t, []Status{StatusPending, StatusProcessing}, Predecessors(StatusFailed))
	require.Empty(t, Predecessors(StatusPending))
}

func TestParseStatus(t *testing.T) {
	t.Parallel()

	got, err := ParseStatus(" Completed ")
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, got)
	require.True(t, got.Terminal())

	_, err = ParseStatus("archived")
	require.Error(t, err)
}

func TestErrorKinds(t *testing.T) {
	t.Parallel()

	fetchErr := NewFetchError("https://example.com", "Failed to fetch URL", errors.New("status 404"))
	require.Equal(t, "Failed to fetch URL: status 404", fetchErr.Error())
	require.True(t, IsExpected(fmt.Errorf("wrapped: %w", fetchErr)))

	short := NewFetchError("https://example.com", "Insufficient content extracted from https://example.com (got 12 chars)", nil)
	require.Contains(t, short.Error(), "Insufficient content")

	providerErr := NewProviderError("openai", "empty response from model", nil)
	require.True(t, IsExpected(providerErr))

	require.False(t, IsExpected(errors.New("disk full")))
	require.False(t, IsExpected(&ConfigError{Key: "summarizer.api_key", Msg: "required"}))
	require.Equal(t, "summarizer.api_key: required", (&ConfigError{Key: "summarizer.api_key", Msg: "required"}).Error())
}
