// Package tlsroots handles certificates on both sides of the process.
//
// Outbound, Load builds the trust store for the origin client: system
// roots plus an optional CA file or directory, applied on top of the
// client's browser TLS profile. Inbound, Watcher serves the admin
// listener's certificate and reloads it when the files change.
package tlsroots
