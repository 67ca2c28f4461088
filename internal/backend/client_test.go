package backend

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/pep299/article-classifier-proxy/internal/apperr"
	"github.com/pep299/article-classifier-proxy/internal/mocks"
	"github.com/pep299/article-classifier-proxy/internal/prediction"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		input   string
		want    Mode
		wantErr bool
	}{
		{"", ModeText, false},
		{"text", ModeText, false},
		{" URL ", ModeURL, false},
		{"html", "", true},
	}

	for _, tt := range tests {
		got, err := ParseMode(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseMode(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseMode(%q) = %s, want %s", tt.input, got, tt.want)
		}
	}
}

func TestPayloadForm(t *testing.T) {
	form := Payload{Text: "Hello"}.Form()
	if form.Get("text") != "Hello" || form.Has("url") {
		t.Errorf("Expected text-only form, got %v", form)
	}

	form = Payload{URL: "https://www.lejournaldesentreprises.com/a"}.Form()
	if form.Get("url") != "https://www.lejournaldesentreprises.com/a" || form.Has("text") {
		t.Errorf("Expected url-only form, got %v", form)
	}
}

func TestEntities(t *testing.T) {
	mock := mocks.NewBackend()
	defer mock.Close()
	body := `{"html":"<mark>Acme</mark>","entities":[["Acme","ORG"]]}`
	mock.SetEntities(body)

	client := NewClient(mock.URL()+"/", nil)
	entities, err := client.Entities(context.Background(), Payload{Text: "Acme"})
	if err != nil {
		t.Fatalf("Entities failed: %v", err)
	}

	if string(entities) != body {
		t.Errorf("Expected backend response unchanged, got %s", entities)
	}

	requests := mock.Requests()
	if len(requests) != 1 || requests[0].Path != "/entities" || requests[0].Form.Get("text") != "Acme" {
		t.Errorf("Unexpected backend requests: %+v", requests)
	}
}

func TestEntitiesAnyShape(t *testing.T) {
	bodies := []string{`{"html":""}`, `[]`, `{"entities":null}`}

	for _, body := range bodies {
		mock := mocks.NewBackend()
		mock.SetEntities(body)

		entities, err := NewClient(mock.URL(), nil).Entities(context.Background(), Payload{Text: "x"})
		mock.Close()
		if err != nil {
			t.Fatalf("Entities(%s) failed: %v", body, err)
		}
		if string(entities) != body {
			t.Errorf("Expected %s unchanged, got %s", body, entities)
		}
	}
}

func TestThemes(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		expected []string
		wantErr  bool
	}{
		{"bare list", `["économie","industrie"]`, []string{"économie", "industrie"}, false},
		{"wrapped", `{"themes":["emploi"]}`, []string{"emploi"}, false},
		{"empty", `[]`, []string{}, false},
		{"wrong shape", `{"labels":["x"]}`, nil, true},
		{"numbers", `[1,2]`, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := mocks.NewBackend()
			defer mock.Close()
			mock.SetThemes(tt.body)

			themes, err := NewClient(mock.URL(), nil).Themes(context.Background(), Payload{Text: "x"})
			if tt.wantErr {
				if !apperr.IsKind(err, apperr.UpstreamError) {
					t.Errorf("Expected UpstreamError, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Themes failed: %v", err)
			}
			if themes == nil || len(themes) != len(tt.expected) {
				t.Fatalf("Expected %v, got %v", tt.expected, themes)
			}
			for i := range themes {
				if themes[i] != tt.expected[i] {
					t.Errorf("Theme %d: expected '%s', got '%s'", i, tt.expected[i], themes[i])
				}
			}
		})
	}
}

func TestPredict(t *testing.T) {
	mock := mocks.NewBackend()
	defer mock.Close()
	mock.SetPrediction("bert", `{"predictions":[{"label":"economy","score":0.9}]}`)

	result, err := NewClient(mock.URL(), nil).Predict(context.Background(), prediction.MethodBERT, Payload{Text: "Hello"})
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}

	if result.Method != prediction.MethodBERT {
		t.Errorf("Expected method bert, got %s", result.Method)
	}
	if len(result.Predictions) != 1 || result.Predictions[0].Label != "economy" || result.Predictions[0].Score != 0.9 {
		t.Errorf("Unexpected predictions: %+v", result.Predictions)
	}

	requests := mock.Requests()
	if len(requests) != 1 || requests[0].Path != "/predict" || requests[0].Method != "bert" {
		t.Errorf("Unexpected backend requests: %+v", requests)
	}
}

func TestUpstreamErrors(t *testing.T) {
	mock := mocks.NewBackend()
	defer mock.Close()
	mock.SetStatus("/entities", http.StatusInternalServerError)
	mock.SetThemes(`not json`)
	mock.SetStatus("predict:gpt-4", http.StatusBadGateway)

	client := NewClient(mock.URL(), nil)
	ctx := context.Background()

	if _, err := client.Entities(ctx, Payload{Text: "x"}); !apperr.IsKind(err, apperr.UpstreamError) {
		t.Errorf("Entities: expected UpstreamError, got %v", err)
	}
	if _, err := client.Themes(ctx, Payload{Text: "x"}); !apperr.IsKind(err, apperr.UpstreamError) {
		t.Errorf("Themes: expected UpstreamError, got %v", err)
	}
	if _, err := client.Predict(ctx, prediction.MethodGPT4, Payload{Text: "x"}); !apperr.IsKind(err, apperr.UpstreamError) {
		t.Errorf("Predict: expected UpstreamError, got %v", err)
	}
}

func TestTimeout(t *testing.T) {
	mock := mocks.NewBackend()
	defer mock.Close()
	mock.SetDelay("predict:zeste", 2*time.Second)

	client := NewClient(mock.URL(), &http.Client{Timeout: 50 * time.Millisecond})
	_, err := client.Predict(context.Background(), prediction.MethodZeste, Payload{Text: "x"})
	if !apperr.IsKind(err, apperr.UpstreamError) {
		t.Errorf("Expected UpstreamError on timeout, got %v", err)
	}
}

func TestStatus(t *testing.T) {
	mock := mocks.NewBackend()
	defer mock.Close()

	client := NewClient(mock.URL(), nil)
	if err := client.Status(context.Background()); err != nil {
		t.Errorf("Expected healthy backend, got %v", err)
	}

	mock.SetStatus("/status", http.StatusServiceUnavailable)
	if err := client.Status(context.Background()); err == nil {
		t.Error("Expected status error")
	}
}
