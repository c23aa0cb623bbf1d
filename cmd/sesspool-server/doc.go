// Package main provides the entry point for sesspool-server.
//
// The server keeps a pool of marketplace session credentials per origin,
// replenishes it in the background, and exposes:
//
//   - an admin API for pool inspection, refill and invalidation
//   - catalog search and item reads that draw credentials from the pool
//   - Prometheus metrics on /metrics
//
// Usage:
//
//	sesspool-server [flags]
//	sesspool-server -config /etc/sesspool/config.yaml
//
// Every setting can be overridden with SESSPOOL_* environment variables,
// using "__" between levels (SESSPOOL_POOL__MAX_CAPACITY=30).
package main
