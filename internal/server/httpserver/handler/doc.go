// Package handler implements the admin and consumer HTTP endpoints.
//
// Every JSON response uses the envelope in types.go. Credentials are
// exposed by fingerprint only; raw tokens never leave the process
// through this package.
package handler
