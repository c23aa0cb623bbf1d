// Package client is the hardened HTTP client used against the
// marketplace origins.
//
// Every request goes out with a Chrome-like TLS profile and browser
// header set, optionally through a SOCKS5 proxy, and under an optional
// outbound rate limit. Responses with status >= 500 become
// domain.ErrUpstreamServer; transport failures become
// domain.ErrTransport. A 401 for a request that carried a session token
// invalidates that token, draws a fresh one and replays the request
// once.
//
// FetchToken obtains a new session token from an origin's landing page
// and is the pool's token source.
package client
