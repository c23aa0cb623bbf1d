package client

import (
	"context"
	"crypto/x509"
	"fmt"
	"net"
	"time"

	utls "github.com/refraction-networking/utls"
)

// browserHello is the browser whose ClientHello is reproduced. It
// matches chromeVersion in the user agent.
var browserHello = utls.HelloChrome_120

type dialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// browserHelloSpec returns the Chrome ClientHello: its cipher suites,
// curves, signature algorithms and extension order, with ALPN narrowed
// to http/1.1. net/http only speaks HTTP/2 over *tls.Conn.
func browserHelloSpec() (*utls.ClientHelloSpec, error) {
	spec, err := utls.UTLSIdToSpec(browserHello)
	if err != nil {
		return nil, err
	}
	for _, ext := range spec.Extensions {
		if alpn, ok := ext.(*utls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
		}
	}
	return &spec, nil
}

// browserTLSDialer returns a DialTLSContext that opens a connection with
// dial, so the proxy applies, and handshakes with the browser
// ClientHello against roots.
func browserTLSDialer(dial dialFunc, roots *x509.CertPool, timeout time.Duration) dialFunc {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, err
		}
		// Extensions carry handshake state, so every connection gets its own spec.
		spec, err := browserHelloSpec()
		if err != nil {
			return nil, fmt.Errorf("client hello: %w", err)
		}

		raw, err := dial(ctx, network, addr)
		if err != nil {
			return nil, err
		}
		conn := utls.UClient(raw, &utls.Config{ServerName: host, RootCAs: roots}, utls.HelloCustom)
		if err := conn.ApplyPreset(spec); err != nil {
			raw.Close()
			return nil, fmt.Errorf("client hello: %w", err)
		}

		hctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		if err := conn.HandshakeContext(hctx); err != nil {
			raw.Close()
			return nil, err
		}
		return conn, nil
	}
}
