// Package backend talks to the prediction backend that extracts entities,
// themes and per-method classifications from article text.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pep299/article-classifier-proxy/internal/apperr"
	"github.com/pep299/article-classifier-proxy/internal/prediction"
)

// Mode selects what the proxy forwards to the backend
type Mode string

const (
	// ModeText forwards the extracted article text
	ModeText Mode = "text"
	// ModeURL forwards the validated article URL
	ModeURL Mode = "url"
)

// ParseMode parses a configured mode, defaulting to ModeText
func ParseMode(raw string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ModeText:
		return ModeText, nil
	case ModeURL:
		return ModeURL, nil
	default:
		return "", fmt.Errorf("unknown backend payload mode %q", raw)
	}
}

// Payload is the single form field sent to the backend
type Payload struct {
	URL  string
	Text string
}

// Form encodes the payload as the backend expects it
func (p Payload) Form() url.Values {
	form := url.Values{}
	if p.URL != "" {
		form.Set("url", p.URL)
	} else {
		form.Set("text", p.Text)
	}
	return form
}

// Client handles prediction backend calls
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a backend client for baseURL. A nil httpClient gets a
// 60 second timeout.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// BaseURL returns the backend root URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Entities returns the backend's entity extraction response as received,
// annotated html included. The body is only checked to be valid JSON.
func (c *Client) Entities(ctx context.Context, payload Payload) (json.RawMessage, error) {
	data, err := c.post(ctx, "/entities", nil, payload)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}

// Themes returns the themes of the payload. Both a bare list of strings and
// {"themes": [...]} are accepted.
func (c *Client) Themes(ctx context.Context, payload Payload) ([]string, error) {
	data, err := c.post(ctx, "/themes", nil, payload)
	if err != nil {
		return nil, err
	}

	themes, err := decodeThemes(data)
	if err != nil {
		return nil, apperr.Wrap(apperr.UpstreamError, "Unexpected themes response", err)
	}
	return themes, nil
}

func decodeThemes(data []byte) ([]string, error) {
	data = bytes.TrimSpace(data)

	var list []string
	if len(data) > 0 && data[0] == '[' {
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, err
		}
	} else {
		var wrapped struct {
			Themes *[]string `json:"themes"`
		}
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return nil, err
		}
		if wrapped.Themes == nil {
			return nil, fmt.Errorf("missing themes field")
		}
		list = *wrapped.Themes
	}

	if list == nil {
		list = []string{}
	}
	return list, nil
}

// Predict classifies the payload with method
func (c *Client) Predict(ctx context.Context, method prediction.Method, payload Payload) (*prediction.Result, error) {
	query := url.Values{}
	query.Set("method", method.String())

	data, err := c.post(ctx, "/predict", query, payload)
	if err != nil {
		return nil, err
	}
	return prediction.Normalize(method, data)
}

// Status checks that the backend answers on /status
func (c *Client) Status(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/status", nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status check failed with status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, query url.Values, payload Payload) ([]byte, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(payload.Form().Encode()))
	if err != nil {
		return nil, apperr.Wrap(apperr.UpstreamError, "Backend request failed", fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.UpstreamError, "Backend request failed", fmt.Errorf("sending request: %w", err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.Wrap(apperr.UpstreamError, "Backend request failed", fmt.Errorf("reading response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperr.New(apperr.UpstreamError, fmt.Sprintf("Backend %s returned status %d", path, resp.StatusCode))
	}
	if !json.Valid(data) {
		return nil, apperr.New(apperr.UpstreamError, fmt.Sprintf("Backend %s returned invalid JSON", path))
	}

	return data, nil
}
