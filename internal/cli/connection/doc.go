// Package connection is the sesspool-cli HTTP client for the admin API.
//
// It adds the API key to every request and unwraps the server's response
// envelope into typed results or an *APIError.
package connection
