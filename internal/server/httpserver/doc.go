// Package httpserver serves the sesspool admin API over HTTP or HTTPS.
//
// Routes:
//
//	GET  /health                               liveness
//	GET  /ready                                every origin holds a credential
//	GET  /metrics                              Prometheus
//	GET  /admin/v1/pool                        per-origin stats
//	GET  /admin/v1/pool/{origin}               credentials by fingerprint
//	POST /admin/v1/pool/{origin}/refill        run a replenishment
//	POST /admin/v1/pool/{origin}/invalidate    drop a token or fingerprint
//	GET  /v1/catalog/{origin}/search?q=        catalog search
//	GET  /v1/items/{origin}/{id}               item details
//
// /admin and /v1 require the configured API key when one is set.
package httpserver
