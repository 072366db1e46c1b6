// Package collyfetcher implements summary.Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"
	"unicode/utf8"

	"github.com/gocolly/colly/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/JakeFAU/page-summarizer/internal/extract"
	"github.com/JakeFAU/page-summarizer/internal/summary"
)

const (
	defaultTimeout         = 30 * time.Second
	defaultMinContentChars = 100
)

// Config controls collector behavior.
type Config struct {
	UserAgent       string
	Timeout         time.Duration
	MinContentChars int
	MaxBodyBytes    int
}

// Fetcher implements summary.Fetcher with a single GET per call.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
	logger        *zap.Logger
}

type collectorHooks interface {
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// page is what one visit produced.
type page struct {
	url        *url.URL
	statusCode int
	body       []byte
}

// New builds a Fetcher. Per-fetch collectors are cloned from one base
// collector so they share its transport and timeout.
func New(cfg Config, logger *zap.Logger) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MinContentChars <= 0 {
		cfg.MinContentChars = defaultMinContentChars
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := []colly.CollectorOption{
		colly.AllowURLRevisit(),
		colly.IgnoreRobotsTxt(),
	}
	if cfg.UserAgent != "" {
		opts = append(opts, colly.UserAgent(cfg.UserAgent))
	}
	if cfg.MaxBodyBytes > 0 {
		opts = append(opts, colly.MaxBodySize(cfg.MaxBodyBytes))
	}
	c := colly.NewCollector(opts...)
	c.DisableCookies()
	c.SetRequestTimeout(cfg.Timeout)
	c.WithTransport(otelhttp.NewTransport(newHTTPTransport()))

	return &Fetcher{
		cfg:           cfg,
		baseCollector: c,
		logger:        logger,
	}
}

// Fetch downloads rawURL and returns its readable text. Every failure is a *summary.FetchError.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	target, err := validateURL(rawURL)
	if err != nil {
		return "", summary.NewFetchError(rawURL, "Failed to fetch URL", err)
	}

	start := time.Now()
	result, err := f.visit(ctx, target.String())
	if err != nil {
		f.logger.Debug("page fetch failed", zap.String("url", rawURL), zap.Error(err))
		return "", summary.NewFetchError(rawURL, "Failed to fetch URL", err)
	}

	text := extract.Text(string(result.body), result.url)
	chars := utf8.RuneCountInString(text)
	f.logger.Debug("page fetched",
		zap.String("url", rawURL),
		zap.Int("status_code", result.statusCode),
		zap.Int("bytes", len(result.body)),
		zap.Int("chars", chars),
		zap.Duration("duration", time.Since(start)),
	)
	if chars < f.cfg.MinContentChars {
		return "", summary.NewFetchError(
			rawURL,
			fmt.Sprintf("Insufficient content extracted from %s (got %d chars)", rawURL, chars),
			nil,
		)
	}
	return text, nil
}

func (f *Fetcher) visit(ctx context.Context, target string) (page, error) {
	var (
		result   page
		fetchErr error
	)
	collector := f.baseCollector.Clone()
	collector.Context = ctx
	configureCollectorHooks(collector, &result, &fetchErr)

	if err := runCollector(ctx, collector, target, &fetchErr); err != nil {
		return page{}, err
	}
	if result.body == nil {
		return page{}, errors.New("empty response")
	}
	return result, nil
}

func configureCollectorHooks(hooks collectorHooks, result *page, fetchErr *error) {
	hooks.OnResponse(func(r *colly.Response) {
		*result = page{
			url:        r.Request.URL,
			statusCode: r.StatusCode,
			body:       append([]byte{}, r.Body...),
		}
	})

	hooks.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode >= http.StatusMultipleChoices {
			*fetchErr = fmt.Errorf("status %d: %w", r.StatusCode, err)
			return
		}
		*fetchErr = err
	})
}

func runCollector(ctx context.Context, collector *colly.Collector, target string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(target)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		if *fetchErr != nil {
			return *fetchErr
		}
		if err != nil {
			return fmt.Errorf("visit: %w", err)
		}
		return nil
	}
}

func validateURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	if !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("url %q must be an absolute http or https URL", raw)
	}
	return u, nil
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
