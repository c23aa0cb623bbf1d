// Package logger builds the server's log/slog logger.
//
// Output is JSON or text at a level that can be changed at runtime with
// SetLevel. Session tokens never reach the output: any JWT-shaped
// substring is rewritten to jwt#<fingerprint>, and values under keys
// such as cookie or password are dropped. Records logged with a context
// from WithRequestID carry the admin request ID.
package logger
