package fetcher

import "errors"

var (
	// ErrInvalidProxyAddress is returned when the proxy is neither "host:port"
	// nor a socks5:// URL.
	ErrInvalidProxyAddress = errors.New("invalid proxy address: expected host:port or socks5://[user:pass@]host:port")

	// ErrInvalidBaseURL is returned when the service base URL cannot be parsed.
	ErrInvalidBaseURL = errors.New("invalid base URL: expected absolute http(s) URL")
)
