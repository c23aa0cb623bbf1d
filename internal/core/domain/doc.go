// Package domain defines the core domain models for sesspool.
//
// Domain models are pure value objects without IO dependencies or
// framework coupling. This package contains:
//
//   - Credential: an ephemeral origin session token with its lifetime
//   - Origin: a regional variant of the target site
//   - Errors: the error taxonomy shared by the pool, client and consumers
package domain
