package collyfetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/page-summarizer/internal/summary"
)

const longArticle = `<html><head><title>Bees</title></head><body>
<nav>Menu entry</nav>
<article><h1>How bees communicate</h1>
<p>Honey bees share the location of food with a waggle dance performed on the comb. The angle of the
dance relative to vertical encodes the direction of the source relative to the sun.</p>
<p>The duration of the waggle run tells nest mates how far away the flowers are, and the vigor of the
dance signals how rewarding the source is.</p></article></body></html>`

func newTestFetcher() *Fetcher {
	return New(Config{UserAgent: "summarizer-test", Timeout: 2 * time.Second}, zap.NewNop())
}

func TestFetchReturnsReadableText(t *testing.T) {
	t.Parallel()

	userAgents := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userAgents <- r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(longArticle))
	}))
	defer srv.Close()

	text, err := newTestFetcher().Fetch(context.Background(), srv.URL+"/bees")
	require.NoError(t, err)
	require.Contains(t, text, "waggle dance")
	require.NotContains(t, text, "Menu entry")
	require.Equal(t, "summarizer-test", <-userAgents)
}

func TestFetchFollowsRedirects(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/new", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(longArticle))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	text, err := newTestFetcher().Fetch(context.Background(), srv.URL+"/old")
	require.NoError(t, err)
	require.Contains(t, text, "waggle run")
}

func TestFetchRepeatedURL(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(longArticle))
	}))
	defer srv.Close()

	f := newTestFetcher()
	for i := 0; i < 2; i++ {
		_, err := f.Fetch(context.Background(), srv.URL)
		require.NoError(t, err)
	}
}

func TestFetchErrorStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestFetcher().Fetch(context.Background(), srv.URL)
	var fetchErr *summary.FetchError
	require.ErrorAs(t, err, &fetchErr)
	require.Contains(t, err.Error(), "Failed to fetch URL")
	require.Contains(t, err.Error(), "404")
}

func TestFetchInsufficientContent(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html><body><p>Too short.</p></body></html>"))
	}))
	defer srv.Close()

	_, err := newTestFetcher().Fetch(context.Background(), srv.URL)
	var fetchErr *summary.FetchError
	require.ErrorAs(t, err, &fetchErr)
	require.Contains(t, err.Error(), "Insufficient content")
	require.Contains(t, err.Error(), srv.URL)
}

func TestFetchTransportError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	addr := srv.URL
	srv.Close()

	_, err := newTestFetcher().Fetch(context.Background(), addr)
	var fetchErr *summary.FetchError
	require.ErrorAs(t, err, &fetchErr)
}

func TestFetchTimeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
		_, _ = w.Write([]byte(longArticle))
	}))
	defer srv.Close()
	defer close(release)

	f := New(Config{Timeout: 100 * time.Millisecond}, zap.NewNop())
	_, err := f.Fetch(context.Background(), srv.URL)
	var fetchErr *summary.FetchError
	require.ErrorAs(t, err, &fetchErr)
}

func TestFetchRejectsInvalidURL(t *testing.T) {
	t.Parallel()

	f := newTestFetcher()
	for _, raw := range []string{"invalid://url", "/relative/path", "ftp://example.com/file", "http://"} {
		_, err := f.Fetch(context.Background(), raw)
		var fetchErr *summary.FetchError
		require.ErrorAs(t, err, &fetchErr, raw)
	}
}

func TestFetchHonorsContext(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(longArticle))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestFetcher().Fetch(ctx, srv.URL)
	require.Error(t, err)
	require.True(t, errors.Is(err, context.Canceled) || strings.Contains(err.Error(), "canceled"))
}

func TestConfigureCollectorHooks(t *testing.T) {
	t.Parallel()

	var result page
	var fetchErr error
	hooks := &stubHooks{}
	configureCollectorHooks(hooks, &result, &fetchErr)
	require.NotNil(t, hooks.onResponse)
	require.NotNil(t, hooks.onError)

	hooks.onResponse(&colly.Response{
		StatusCode: http.StatusOK,
		Body:       []byte("body"),
		Request:    &colly.Request{URL: mustParseURL(t, "https://example.com/final")},
	})
	require.Equal(t, http.StatusOK, result.statusCode)
	require.Equal(t, "body", string(result.body))
	require.Equal(t, "https://example.com/final", result.url.String())

	hooks.onError(&colly.Response{StatusCode: http.StatusBadGateway}, errors.New("Bad Gateway"))
	require.EqualError(t, fetchErr, "status 502: Bad Gateway")

	hooks.onError(nil, errors.New("dial tcp: refused"))
	require.EqualError(t, fetchErr, "dial tcp: refused")
}

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("failed to parse url %q: %v", raw, err)
	}
	return u
}

type stubHooks struct {
	onResponse colly.ResponseCallback
	onError    colly.ErrorCallback
}

func (s *stubHooks) OnResponse(cb colly.ResponseCallback) {
	s.onResponse = cb
}

func (s *stubHooks) OnError(cb colly.ErrorCallback) {
	s.onError = cb
}
