// Package service implements the proxy operations on top of the source
// validator, the article fetcher and the backend client.
package service

import (
	"context"
	"encoding/json"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/GoogleCloudPlatform/functions-framework-go/funcframework"

	"github.com/pep299/article-classifier-proxy/internal/apperr"
	"github.com/pep299/article-classifier-proxy/internal/article"
	"github.com/pep299/article-classifier-proxy/internal/backend"
	"github.com/pep299/article-classifier-proxy/internal/prediction"
	"github.com/pep299/article-classifier-proxy/internal/source"
)

// EntitiesResult is the /entities response. Entities holds the backend
// response body untouched.
type EntitiesResult struct {
	Entities json.RawMessage `json:"entities"`
}

// ThemesResult is the /themes response
type ThemesResult struct {
	Themes []string `json:"themes"`
}

// EntitiesOutcome is the entities part of an analysis
type EntitiesOutcome struct {
	State    prediction.State `json:"state"`
	Entities json.RawMessage  `json:"entities,omitempty"`
	Error    string           `json:"error,omitempty"`
}

// ThemesOutcome is the themes part of an analysis
type ThemesOutcome struct {
	State  prediction.State `json:"state"`
	Themes []string         `json:"themes,omitempty"`
	Error  string           `json:"error,omitempty"`
}

// Analysis is a whole submission: the article followed by every enrichment
type Analysis struct {
	Submission  string               `json:"submission"`
	Article     *article.Result      `json:"article"`
	Entities    EntitiesOutcome      `json:"entities"`
	Themes      ThemesOutcome        `json:"themes"`
	Predictions []prediction.Outcome `json:"predictions"`
}

// Proxy runs the article, entities, themes and predict operations
type Proxy struct {
	validator *source.Validator
	fetcher   *article.Fetcher
	backend   *backend.Client
	mode      backend.Mode
	methods   *prediction.MethodSet
}

// NewProxy wires the proxy collaborators. A nil method set accepts every
// known method.
func NewProxy(validator *source.Validator, fetcher *article.Fetcher, client *backend.Client, mode backend.Mode, methods *prediction.MethodSet) *Proxy {
	if methods == nil {
		methods, _ = prediction.NewMethodSet(nil)
	}
	if mode == "" {
		mode = backend.ModeText
	}
	return &Proxy{
		validator: validator,
		fetcher:   fetcher,
		backend:   client,
		mode:      mode,
		methods:   methods,
	}
}

// Methods returns the accepted prediction methods
func (p *Proxy) Methods() []prediction.Method {
	return p.methods.Methods()
}

// Mode returns what is forwarded to the backend
func (p *Proxy) Mode() backend.Mode {
	return p.mode
}

// Backend returns the backend client
func (p *Proxy) Backend() *backend.Client {
	return p.backend
}

// Article validates rawURL and fetches the article behind it
func (p *Proxy) Article(ctx context.Context, rawURL string) (*article.Result, error) {
	u, err := p.validator.Validate(rawURL)
	if err != nil {
		return nil, err
	}
	return p.fetcher.Fetch(ctx, u)
}

// Entities returns the named entities of the article at rawURL
func (p *Proxy) Entities(ctx context.Context, rawURL string) (*EntitiesResult, error) {
	u, err := p.validator.Validate(rawURL)
	if err != nil {
		return nil, err
	}
	payload, err := p.payload(ctx, u)
	if err != nil {
		return nil, err
	}

	entities, err := p.backend.Entities(ctx, payload)
	if err != nil {
		p.logger(ctx).Printf("Entities failed url=%s error=%v", u, err)
		return nil, err
	}
	return &EntitiesResult{Entities: entities}, nil
}

// Themes returns the themes of the article at rawURL
func (p *Proxy) Themes(ctx context.Context, rawURL string) (*ThemesResult, error) {
	u, err := p.validator.Validate(rawURL)
	if err != nil {
		return nil, err
	}
	payload, err := p.payload(ctx, u)
	if err != nil {
		return nil, err
	}

	themes, err := p.backend.Themes(ctx, payload)
	if err != nil {
		p.logger(ctx).Printf("Themes failed url=%s error=%v", u, err)
		return nil, err
	}
	return &ThemesResult{Themes: themes}, nil
}

// Predict classifies the article at rawURL with rawMethod. The method is
// checked before the URL so a bad method never triggers a fetch.
func (p *Proxy) Predict(ctx context.Context, rawURL, rawMethod string) (*prediction.Result, error) {
	method, err := p.methods.Parse(rawMethod)
	if err != nil {
		return nil, err
	}
	u, err := p.validator.Validate(rawURL)
	if err != nil {
		return nil, err
	}
	payload, err := p.payload(ctx, u)
	if err != nil {
		return nil, err
	}
	return p.predict(ctx, method, payload)
}

// PredictAll classifies the article at rawURL with every accepted method
// concurrently, without entities or themes. A failing method is reported in
// its outcome and does not fail the call.
func (p *Proxy) PredictAll(ctx context.Context, rawURL string) ([]prediction.Outcome, error) {
	u, err := p.validator.Validate(rawURL)
	if err != nil {
		return nil, err
	}
	payload, err := p.payload(ctx, u)
	if err != nil {
		return nil, err
	}

	return prediction.FanOut(ctx, p.methods.Methods(), func(ctx context.Context, m prediction.Method) (*prediction.Result, error) {
		return p.predict(ctx, m, payload)
	}), nil
}

// Analyze fetches the article once, then runs entities, themes and every
// accepted method concurrently. Enrichment failures are reported per part;
// only validation and article errors fail the whole analysis.
func (p *Proxy) Analyze(ctx context.Context, rawURL string) (*Analysis, error) {
	logger := p.logger(ctx)
	start := time.Now()

	u, err := p.validator.Validate(rawURL)
	if err != nil {
		return nil, err
	}

	fetched, err := p.fetcher.Fetch(ctx, u)
	if err != nil {
		return nil, err
	}

	payload := backend.Payload{Text: fetched.Text}
	if p.mode == backend.ModeURL {
		payload = backend.Payload{URL: u.String()}
	}

	analysis := &Analysis{Article: fetched}

	var wg sync.WaitGroup
	wg.Add(3)

	go func() {
		defer wg.Done()
		entities, err := p.backend.Entities(ctx, payload)
		if err != nil {
			logger.Printf("Entities failed url=%s error=%v", u, err)
			analysis.Entities = EntitiesOutcome{State: prediction.StateFailed, Error: apperr.Message(err)}
			return
		}
		analysis.Entities = EntitiesOutcome{State: prediction.StateSucceeded, Entities: entities}
	}()

	go func() {
		defer wg.Done()
		themes, err := p.backend.Themes(ctx, payload)
		if err != nil {
			logger.Printf("Themes failed url=%s error=%v", u, err)
			analysis.Themes = ThemesOutcome{State: prediction.StateFailed, Error: apperr.Message(err)}
			return
		}
		analysis.Themes = ThemesOutcome{State: prediction.StateSucceeded, Themes: themes}
	}()

	go func() {
		defer wg.Done()
		agg := prediction.NewAggregator()
		sub := agg.Run(ctx, p.methods.Methods(), func(ctx context.Context, m prediction.Method) (*prediction.Result, error) {
			return p.predict(ctx, m, payload)
		})
		analysis.Submission = sub.ID
		analysis.Predictions = agg.Snapshot()
	}()

	wg.Wait()

	failed := 0
	for _, o := range analysis.Predictions {
		if o.State == prediction.StateFailed {
			failed++
		}
	}
	logger.Printf("Analysis complete url=%s submission=%s methods=%d failed=%d duration_ms=%d",
		u, analysis.Submission, len(analysis.Predictions), failed, time.Since(start).Milliseconds())

	return analysis, nil
}

func (p *Proxy) predict(ctx context.Context, method prediction.Method, payload backend.Payload) (*prediction.Result, error) {
	start := time.Now()
	result, err := p.backend.Predict(ctx, method, payload)
	if err != nil {
		p.logger(ctx).Printf("Prediction failed method=%s error=%v", method, err)
		return nil, err
	}
	p.logger(ctx).Printf("Prediction complete method=%s labels=%d duration_ms=%d",
		method, len(result.Predictions), time.Since(start).Milliseconds())
	return result, nil
}

// payload builds what is forwarded for u: the URL itself, or the extracted
// text of the article behind it
func (p *Proxy) payload(ctx context.Context, u *url.URL) (backend.Payload, error) {
	if p.mode == backend.ModeURL {
		return backend.Payload{URL: u.String()}, nil
	}
	fetched, err := p.fetcher.Fetch(ctx, u)
	if err != nil {
		return backend.Payload{}, err
	}
	return backend.Payload{Text: fetched.Text}, nil
}

func (p *Proxy) logger(ctx context.Context) *log.Logger {
	return log.New(funcframework.LogWriter(ctx), "", 0)
}
