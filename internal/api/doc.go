// Package api hosts the HTTP server, middleware, and REST handlers. Notable
// routes:
//   - GET /quotes returns every stored chapter excerpt in insertion order.
//   - POST /scrape queues a harvest and returns immediately.
//   - GET /books groups stored excerpts into books, splitting at prologues.
//   - GET /harvests and /harvests/{id} report run status and counters.
//   - GET /healthz, /readyz and /metrics for probes and Prometheus.
package api
