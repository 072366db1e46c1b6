package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/page-summarizer/internal/clock/system"
	"github.com/JakeFAU/page-summarizer/internal/config"
	"github.com/JakeFAU/page-summarizer/internal/summary"
)

func testConfig() *config.Config {
	return &config.Config{
		Environment: "test",
		Testing:     true,
		Server:      config.ServerConfig{Port: 0, RequestTimeoutSeconds: 5},
		Fetcher:     config.FetcherConfig{TimeoutSeconds: 5, UserAgent: "test-agent", MinContentChars: 100, MaxBodyBytes: 1 << 20},
		Summarizer: config.SummarizerConfig{
			Provider:       "stub",
			MaxWords:       300,
			MaxInputChars:  50000,
			TimeoutSeconds: 5,
		},
		Worker:   config.WorkerConfig{Concurrency: 2, QueueDepth: 8, EnqueueTimeoutMs: 100, StoreTimeoutSeconds: 2},
		Database: config.DatabaseConfig{Backend: config.BackendMemory},
		Tracing:  config.TracingConfig{ServiceName: "page-summarizer-test"},
		Logging:  config.LoggingConfig{Level: "error"},
	}
}

func TestOpenStoreBackends(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clock := system.New()

	mem, err := OpenStore(ctx, config.DatabaseConfig{Backend: config.BackendMemory}, clock)
	require.NoError(t, err)
	applied, err := Migrate(ctx, mem)
	require.NoError(t, err)
	require.False(t, applied, "memory store has no schema")
	require.NoError(t, mem.Close())

	dsn := filepath.Join(t.TempDir(), "summaries.db")
	lite, err := OpenStore(ctx, config.DatabaseConfig{Backend: config.BackendSQLite, DSN: dsn}, clock)
	require.NoError(t, err)
	applied, err = Migrate(ctx, lite)
	require.NoError(t, err)
	require.True(t, applied)
	rec, err := lite.Create(ctx, "https://example.com")
	require.NoError(t, err)
	require.Equal(t, summary.StatusPending, rec.Status)
	require.NoError(t, lite.Close())

	_, err = OpenStore(ctx, config.DatabaseConfig{Backend: "mongo"}, clock)
	var cfgErr *summary.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	require.Equal(t, "database.backend", cfgErr.Key)
}

func TestBuildFailsFastWithoutProviderCredentials(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Summarizer.Provider = "openai"
	cfg.Summarizer.APIKey = ""

	app, err := Build(context.Background(), cfg)
	require.Error(t, err)
	require.Nil(t, app)
	var cfgErr *summary.ConfigError
	require.True(t, errors.As(err, &cfgErr))
}

func TestBuildRejectsBadReaperSchedule(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Reaper = config.ReaperConfig{Enabled: true, Schedule: "whenever"}

	_, err := Build(context.Background(), cfg)
	require.Error(t, err)
	require.Contains(t, err.Error(), "reaper init failed")
}

func TestRunServesUntilCanceled(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Reaper = config.ReaperConfig{Enabled: true, Schedule: "@every 1h"}
	app, err := Build(context.Background(), cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer waitCancel()
	addr, err := app.Addr(waitCtx)
	require.NoError(t, err)
	port := addr[strings.LastIndex(addr, ":"):]
	base := "http://127.0.0.1" + port

	resp, err := http.Get(base + "/ping")
	require.NoError(t, err)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.NoError(t, resp.Body.Close())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "pong!", body["ping"])

	resp, err = http.Post(base+"/summaries", "application/json", strings.NewReader(`{"url":"ftp://example.com"}`))
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
