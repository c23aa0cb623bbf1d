// Package config defines the sesspool-server configuration.
//
//   - spec.go: ServerConfig and its sections
//   - default.go: defaults
//   - verify.go: validation run after loading
//   - sanitize.go: secret masking for logs
//
// Configuration is loaded with internal/infra/confloader: YAML file,
// then SESSPOOL_* environment variables (SESSPOOL_POOL__MIN_THRESHOLD).
package config
