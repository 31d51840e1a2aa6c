package fetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/proxy"
)

// DefaultUserAgent is sent when no user agent is configured.
const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0"

// TransportConfig configures the HTTP client used by the Fetcher.
type TransportConfig struct {
	// Proxy is an optional SOCKS5 proxy, either "host:port" or
	// "socks5://[user:pass@]host:port". Empty means a direct connection.
	Proxy string

	// Timeout bounds a single request, including reading the body.
	Timeout time.Duration

	// Cookie is a raw Cookie header value (e.g. a settings-page session).
	Cookie string

	// UserAgent overrides DefaultUserAgent.
	UserAgent string

	// Headers are added to every request.
	Headers map[string]string
}

// NewHTTPClient builds an HTTP client for the search service.
//
// Design decision: cookies and headers are injected by a RoundTripper rather
// than on each request so redirects (the service redirects to its block page)
// carry the same session.
func NewHTTPClient(cfg TransportConfig) (*http.Client, error) {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	if cfg.Proxy != "" {
		dialer, err := newSOCKS5Dialer(cfg.Proxy)
		if err != nil {
			return nil, err
		}
		transport.Proxy = nil
		transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			if cd, ok := dialer.(proxy.ContextDialer); ok {
				return cd.DialContext(ctx, network, addr)
			}
			return dialer.Dial(network, addr)
		}
	}

	jar, _ := cookiejar.New(nil) //nolint:errcheck // cookiejar.New only fails with invalid options

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	return &http.Client{
		Transport: &headerInjectingTransport{
			base:      transport,
			cookie:    cfg.Cookie,
			userAgent: userAgent,
			headers:   cfg.Headers,
		},
		Timeout: cfg.Timeout,
		Jar:     jar,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}, nil
}

// newSOCKS5Dialer parses the proxy setting and returns a SOCKS5 dialer.
func newSOCKS5Dialer(setting string) (proxy.Dialer, error) {
	var (
		address string
		auth    *proxy.Auth
	)

	if strings.Contains(setting, "://") {
		u, err := url.Parse(setting)
		if err != nil || (u.Scheme != "socks5" && u.Scheme != "socks5h") {
			return nil, fmt.Errorf("%w: %q", ErrInvalidProxyAddress, setting)
		}
		address = u.Host
		if u.User != nil {
			password, _ := u.User.Password()
			auth = &proxy.Auth{User: u.User.Username(), Password: password}
		}
	} else {
		address = setting
	}

	if !isValidProxyAddress(address) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidProxyAddress, setting)
	}

	dialer, err := proxy.SOCKS5("tcp", address, auth, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
	}
	return dialer, nil
}

// isValidProxyAddress checks for a non-empty host and a port in 1..65535.
func isValidProxyAddress(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" {
		return false
	}
	n, err := strconv.Atoi(port)
	return err == nil && n >= 1 && n <= 65535
}

// headerInjectingTransport adds the session cookie, user agent and custom
// headers to every request.
type headerInjectingTransport struct {
	base      http.RoundTripper
	cookie    string
	userAgent string
	headers   map[string]string
}

// RoundTrip implements http.RoundTripper.
func (t *headerInjectingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())

	if t.cookie != "" {
		if existing := clone.Header.Get("Cookie"); existing != "" {
			clone.Header.Set("Cookie", existing+"; "+t.cookie)
		} else {
			clone.Header.Set("Cookie", t.cookie)
		}
	}

	if clone.Header.Get("User-Agent") == "" {
		clone.Header.Set("User-Agent", t.userAgent)
	}
	if clone.Header.Get("Accept-Language") == "" {
		clone.Header.Set("Accept-Language", "en-US,en;q=0.8")
	}

	for key, value := range t.headers {
		clone.Header.Set(key, value)
	}

	return t.base.RoundTrip(clone)
}
