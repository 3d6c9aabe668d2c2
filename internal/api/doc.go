// Package api hosts the HTTP server, middleware and handlers of the crawl
// service. Routes:
//   - POST /submit_url submits one URL unless it was crawled recently.
//   - POST /submit submits up to 100 URLs under one job ID.
//   - GET /results/{job_id}?page=N pages through stored results, newest first.
//   - GET /healthz and /readyz for health checks, GET /metrics for Prometheus.
package api
