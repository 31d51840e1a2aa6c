package fetcher

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewHTTPClientInjectsHeaders(t *testing.T) {
	t.Parallel()

	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	client, err := NewHTTPClient(TransportConfig{
		Cookie:    "GSP=LM=1:CF=4",
		UserAgent: "citenet-test",
		Headers:   map[string]string{"X-Trace": "1"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	resp, err := client.Get(srv.URL)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()

	if got.Get("Cookie") != "GSP=LM=1:CF=4" {
		t.Errorf("Cookie = %q", got.Get("Cookie"))
	}
	if got.Get("User-Agent") != "citenet-test" {
		t.Errorf("User-Agent = %q", got.Get("User-Agent"))
	}
	if got.Get("X-Trace") != "1" {
		t.Errorf("X-Trace = %q", got.Get("X-Trace"))
	}
	if got.Get("Accept-Language") == "" {
		t.Error("Accept-Language not set")
	}
}

func TestNewHTTPClientProxy(t *testing.T) {
	t.Parallel()

	valid := []string{"127.0.0.1:9050", "localhost:1080", "socks5://user:pw@127.0.0.1:1080", "socks5h://proxy.local:9050"}
	for _, p := range valid {
		if _, err := NewHTTPClient(TransportConfig{Proxy: p}); err != nil {
			t.Errorf("proxy %q: unexpected error %v", p, err)
		}
	}

	invalid := []string{"127.0.0.1", ":9050", "127.0.0.1:0", "127.0.0.1:70000", "http://127.0.0.1:8080"}
	for _, p := range invalid {
		if _, err := NewHTTPClient(TransportConfig{Proxy: p}); !errors.Is(err, ErrInvalidProxyAddress) {
			t.Errorf("proxy %q: error = %v, want ErrInvalidProxyAddress", p, err)
		}
	}
}
