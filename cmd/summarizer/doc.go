// Package main hosts the summarizer service entrypoint.
//
// Architecture overview:
//   - HTTP API: internal/api.Server exposes CRUD endpoints under /summaries plus ping, health, and metrics.
//     POST /summaries validates the URL, stores a pending record, and enqueues it before responding 201.
//   - Dispatcher & queue: work flows through a bounded in-memory queue sized by worker.queue_depth and is fanned
//     out to a fixed pool sized by worker.concurrency. A full queue turns into a 503 and the record is removed.
//   - Task pipeline: each task moves its record to processing, fetches the page with the Colly fetcher, extracts
//     readable text, and asks the configured provider (OpenAI-compatible or stub) for a summary. Every outcome,
//     including panics, ends as completed or failed on the record.
//   - Persistence: records live in memory, SQLite, or Postgres (database.backend). SQL backends migrate on start
//     when database.auto_migrate is set, or through the migrate subcommand.
//   - Configuration & plumbing: Viper populates config from an optional file, .env, and APP_-prefixed env vars; zap
//     provides structured logging; Prometheus metrics are served on /metrics; OpenTelemetry spans are exported over
//     OTLP/HTTP when tracing.enabled is set.
//
// Operational notes:
//   - Shutdown: SIGTERM stops the listener, closes the queue, and gives in-flight tasks a grace period. Records
//     still queued stay pending; the optional reaper fails records left in processing by a previous process.
//   - Provider credentials are checked at startup so a misconfigured deployment never accepts work.
//
// Quick checklist:
//   - Configure env vars: PORT or APP_SERVER_PORT, OPENAI_API_KEY or APP_SUMMARIZER_API_KEY,
//     APP_SUMMARIZER_PROVIDER=stub for local runs, DATABASE_URL with APP_DATABASE_BACKEND=postgres.
//   - Run locally: go run ./cmd/summarizer serve --config config.yaml (or rely solely on env overrides).
package main
