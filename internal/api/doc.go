// Package api hosts the HTTP server, middleware, and REST handlers. Notable routes:
//   - GET /ping, /health and /healthz for liveness and database checks.
//   - GET /metrics for Prometheus scraping.
//   - POST /summaries to create a record and schedule its summary.
//   - GET, PUT and DELETE /summaries/{id}, and GET /summaries to list.
//
// Validation failures answer 422 with a detail list naming the offending
// location, for example {"loc":["body","url"],"msg":"...","type":"url_scheme"}.
package api
