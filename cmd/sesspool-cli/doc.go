// Package main provides the entry point for sesspool-cli.
//
// The CLI talks to a running sesspool-server over its admin API:
//
//   - pool inspection, refill and invalidation
//   - catalog search and item lookups through the pool
//   - health and readiness checks
//
// Usage:
//
//	sesspool-cli [global flags] <command> [args]
//	sesspool-cli pool ls
//	sesspool-cli -o json pool refill --count 5 co.uk
//	sesspool-cli item get com https://www.vinted.com/items/123
package main
