package mocks

import (
	"net/http"
	"net/url"
	"sync/atomic"
)

// RewriteTransport sends requests for Host to Target, keeping path and query.
// It lets tests fetch URLs on the fixed content host from an httptest server.
// An empty Host rewrites every request.
type RewriteTransport struct {
	Host   string
	Target *url.URL
	Base   http.RoundTripper
}

func (t *RewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Host != "" && req.URL.Hostname() != t.Host {
		return t.base().RoundTrip(req)
	}
	out := req.Clone(req.Context())
	out.URL.Scheme = t.Target.Scheme
	out.URL.Host = t.Target.Host
	out.Host = t.Target.Host
	return t.base().RoundTrip(out)
}

func (t *RewriteTransport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

// CountingTransport counts outbound requests
type CountingTransport struct {
	Base  http.RoundTripper
	count atomic.Int64
}

func (t *CountingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.count.Add(1)
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req)
}

// Count returns the number of requests seen so far
func (t *CountingTransport) Count() int64 {
	return t.count.Load()
}

// NewClient returns an HTTP client that counts every request and sends those
// addressed to host to target instead
func NewClient(host, target string) (*http.Client, *CountingTransport) {
	u, err := url.Parse(target)
	if err != nil {
		panic(err)
	}
	counter := &CountingTransport{Base: &RewriteTransport{Host: host, Target: u}}
	return &http.Client{Transport: counter}, counter
}
