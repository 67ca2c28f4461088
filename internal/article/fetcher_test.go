package article

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/pep299/article-classifier-proxy/internal/apperr"
	"github.com/pep299/article-classifier-proxy/internal/mocks"
)

const articlePath = "/x/y/article-123"

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse %s: %v", raw, err)
	}
	return u
}

func TestJSONURL(t *testing.T) {
	u := mustParse(t, "https://www.lejournaldesentreprises.com/a/b?page=2")

	got := JSONURL(u)
	if got.Query().Get("_format") != "json" {
		t.Errorf("Expected _format=json, got '%s'", got.RawQuery)
	}
	if got.Query().Get("page") != "2" {
		t.Errorf("Expected existing query to be kept, got '%s'", got.RawQuery)
	}
	if u.RawQuery != "page=2" {
		t.Errorf("Expected input URL to be left untouched, got '%s'", u.RawQuery)
	}
}

func TestFetchScenario(t *testing.T) {
	api := mocks.NewContentAPI(map[string]string{
		articlePath: `{"title":[{"value":"T"}],"body":[{"value":"<p>Hello</p>"}]}`,
	})
	defer api.Close()

	client, counter := mocks.NewClient("www.lejournaldesentreprises.com", api.URL())
	fetcher := NewFetcher(client, 0)

	result, err := fetcher.Fetch(context.Background(), mustParse(t, "https://www.lejournaldesentreprises.com"+articlePath))
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	if result.Text != "Hello" {
		t.Errorf("Expected text 'Hello', got %q", result.Text)
	}
	if result.Article.Title() != "T" {
		t.Errorf("Expected title 'T', got '%s'", result.Article.Title())
	}
	if counter.Count() != 1 {
		t.Errorf("Expected exactly one outbound request, got %d", counter.Count())
	}

	queries := api.Queries()
	if len(queries) != 1 || queries[0].Get("_format") != "json" {
		t.Errorf("Expected a single _format=json request, got %v", queries)
	}
}

func TestFetchWithAbstract(t *testing.T) {
	api := mocks.NewContentAPI(map[string]string{
		articlePath: `{"title":[{"value":"T"}],"field_abstract":[{"value":"<p>Resume</p>"}],"body":[{"value":"<p>Corps</p>"}]}`,
	})
	defer api.Close()

	client, _ := mocks.NewClient("www.lejournaldesentreprises.com", api.URL())
	result, err := NewFetcher(client, 0).Fetch(context.Background(), mustParse(t, "https://www.lejournaldesentreprises.com"+articlePath))
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if result.Text != "Resume. Corps" {
		t.Errorf("Expected 'Resume. Corps', got %q", result.Text)
	}
}

func TestFetchErrors(t *testing.T) {
	api := mocks.NewContentAPI(map[string]string{
		"/broken":    `{"title":`,
		"/untitled":  `{"body":[{"value":"x"}]}`,
		"/oversized": `{"title":[{"value":"T"}],"body":[{"value":"` + strings.Repeat("a", 2048) + `"}]}`,
	})
	defer api.Close()
	api.SetStatus("/down", http.StatusServiceUnavailable)

	client, _ := mocks.NewClient("www.lejournaldesentreprises.com", api.URL())
	fetcher := NewFetcher(client, 1024)

	tests := []struct {
		path     string
		wantKind apperr.Kind
	}{
		{"/broken", apperr.UpstreamError},
		{"/untitled", apperr.MalformedArticle},
		{"/oversized", apperr.UpstreamError},
		{"/down", apperr.UpstreamError},
		{"/missing", apperr.UpstreamError},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			_, err := fetcher.Fetch(context.Background(), mustParse(t, "https://www.lejournaldesentreprises.com"+tt.path))
			if err == nil {
				t.Fatal("Expected error")
			}
			if kind := apperr.KindOf(err); kind != tt.wantKind {
				t.Errorf("Expected kind %s, got %s (%v)", tt.wantKind, kind, err)
			}
		})
	}
}

func TestFetchTransportFailure(t *testing.T) {
	api := mocks.NewContentAPI(nil)
	api.Close()

	client, _ := mocks.NewClient("www.lejournaldesentreprises.com", api.URL())
	_, err := NewFetcher(client, 0).Fetch(context.Background(), mustParse(t, "https://www.lejournaldesentreprises.com/a"))
	if !apperr.IsKind(err, apperr.UpstreamError) {
		t.Errorf("Expected UpstreamError, got %v", err)
	}
}
