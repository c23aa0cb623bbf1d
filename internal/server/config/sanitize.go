package config

import "strings"

// Sanitize returns a copy of the config with secrets masked, for logging.
func Sanitize(cfg *ServerConfig) *ServerConfig {
	sanitized := *cfg
	sanitized.Origins = append(sanitized.Origins[:0:0], cfg.Origins...)

	if sanitized.Security.EncryptionKey != "" {
		sanitized.Security.EncryptionKey = maskSecret(sanitized.Security.EncryptionKey)
	}
	if sanitized.Security.AdminAPIKey != "" {
		sanitized.Security.AdminAPIKey = maskSecret(sanitized.Security.AdminAPIKey)
	}

	return &sanitized
}

// maskSecret keeps the first and last two characters.
func maskSecret(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}
