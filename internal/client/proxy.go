package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"

	"golang.org/x/net/proxy"

	"github.com/yndnr/sesspool-go/internal/infra/confloader"
)

// DefaultProxySettingsFile is read from the working directory when present.
const DefaultProxySettingsFile = "proxy-settings.json"

// ProxyEnvPrefix prefixes the proxy environment variables
// (PROXY_HOST, PROXY_PORT, PROXY_USER, PROXY_PASS).
const ProxyEnvPrefix = "PROXY_"

// ProxySettings configures the SOCKS5 tunnel. The settings file uses
// username/password; the environment uses USER/PASS. Both are accepted.
type ProxySettings struct {
	Host     string `koanf:"host" json:"host" yaml:"host"`
	Port     int    `koanf:"port" json:"port" yaml:"port"`
	Username string `koanf:"username" json:"username,omitempty" yaml:"username,omitempty"`
	Password string `koanf:"password" json:"password,omitempty" yaml:"password,omitempty"`
	User     string `koanf:"user" json:"-" yaml:"-"`
	Pass     string `koanf:"pass" json:"-" yaml:"-"`
}

// Enabled reports whether a tunnel is configured.
func (s *ProxySettings) Enabled() bool {
	return s != nil && s.Host != "" && s.Port > 0
}

// Address returns host:port.
func (s *ProxySettings) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// auth returns the SOCKS5 credentials, or nil for an open proxy.
func (s *ProxySettings) auth() *proxy.Auth {
	user, pass := s.Username, s.Password
	if s.User != "" {
		user = s.User
	}
	if s.Pass != "" {
		pass = s.Pass
	}
	if user == "" || pass == "" {
		return nil
	}
	return &proxy.Auth{User: user, Password: pass}
}

// LoadProxySettings reads path (JSON or YAML, skipped when absent) and
// overlays PROXY_* environment variables. It returns nil when neither
// source names a host and port.
func LoadProxySettings(path string) (*ProxySettings, error) {
	var s ProxySettings
	loader := confloader.NewLoader(
		confloader.WithEnvPrefix(ProxyEnvPrefix),
		confloader.WithOptionalConfigFile(path),
	)
	if err := loader.Load(&s); err != nil {
		return nil, fmt.Errorf("load proxy settings: %w", err)
	}
	if !s.Enabled() {
		return nil, nil
	}
	return &s, nil
}

// dialer returns the DialContext for the transport: a SOCKS5 dialer when
// s is enabled, a plain net.Dialer otherwise.
func dialer(s *ProxySettings, base *net.Dialer) (func(ctx context.Context, network, addr string) (net.Conn, error), error) {
	if !s.Enabled() {
		return base.DialContext, nil
	}

	d, err := proxy.SOCKS5("tcp", s.Address(), s.auth(), base)
	if err != nil {
		return nil, fmt.Errorf("socks5 dialer: %w", err)
	}
	cd, ok := d.(proxy.ContextDialer)
	if !ok {
		return nil, errors.New("socks5 dialer does not support contexts")
	}
	return cd.DialContext, nil
}
