// Package service provides the credential pool and its consumers.
//
// This package contains:
//
//   - Pool: per-origin store of short-lived session credentials with lazy
//     expiry, persistence and synchronous replenishment
//   - Replenish: the single-flight run that fetches fresh tokens with
//     jittered pacing
//   - WithCredential: the bounded draw/call/invalidate retry loop
//   - CatalogService: catalog search and item lookup built on the loop
//
// Storage and token acquisition are injected through the Store and
// TokenFetcher interfaces, so the pool knows nothing about files or HTTP.
package service
