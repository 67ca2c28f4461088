package article

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/GoogleCloudPlatform/functions-framework-go/funcframework"

	"github.com/pep299/article-classifier-proxy/internal/apperr"
)

// DefaultMaxBytes caps the size of a content API response
const DefaultMaxBytes = 5 * 1024 * 1024

// Result is an article together with its extracted text
type Result struct {
	Text    string  `json:"text"`
	Article *Record `json:"article"`
}

// Fetcher retrieves articles from the content API
type Fetcher struct {
	httpClient *http.Client
	maxBytes   int64
}

// NewFetcher creates a fetcher. A nil client gets a 60 second timeout and a
// non-positive maxBytes falls back to DefaultMaxBytes.
func NewFetcher(httpClient *http.Client, maxBytes int64) *Fetcher {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Fetcher{
		httpClient: httpClient,
		maxBytes:   maxBytes,
	}
}

// JSONURL returns a copy of u asking the content API for its JSON representation
func JSONURL(u *url.URL) *url.URL {
	out := *u
	q := out.Query()
	q.Set("_format", "json")
	out.RawQuery = q.Encode()
	return &out
}

// Fetch downloads the article at u, which must already be validated, and
// extracts its text
func (f *Fetcher) Fetch(ctx context.Context, u *url.URL) (*Result, error) {
	logger := log.New(funcframework.LogWriter(ctx), "", 0)
	start := time.Now()

	target := JSONURL(u)
	data, err := f.get(ctx, target.String())
	if err != nil {
		logger.Printf("Article fetch failed url=%s error=%v", u, err)
		return nil, err
	}

	record, err := Parse(data)
	if err != nil {
		logger.Printf("Article parse failed url=%s error=%v", u, err)
		return nil, err
	}

	result := &Result{
		Text:    record.Text(),
		Article: record,
	}

	logger.Printf("Article fetched url=%s text_length=%d duration_ms=%d",
		u, len(result.Text), time.Since(start).Milliseconds())
	return result, nil
}

func (f *Fetcher) get(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.UpstreamError, "Failed to fetch article", fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; Article Classifier Proxy/1.0)")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.UpstreamError, "Failed to fetch article", fmt.Errorf("sending request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperr.New(apperr.UpstreamError, fmt.Sprintf("Content API returned status %d", resp.StatusCode))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, apperr.Wrap(apperr.UpstreamError, "Failed to fetch article", fmt.Errorf("reading response: %w", err))
	}
	if int64(len(data)) > f.maxBytes {
		return nil, apperr.New(apperr.UpstreamError, fmt.Sprintf("Article exceeds %d bytes", f.maxBytes))
	}

	return data, nil
}
