package prediction

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/pep299/article-classifier-proxy/internal/apperr"
)

func TestNewMethodSet(t *testing.T) {
	set, err := NewMethodSet(nil)
	if err != nil {
		t.Fatalf("NewMethodSet failed: %v", err)
	}
	if len(set.Methods()) != len(AllMethods) {
		t.Errorf("Expected all %d methods, got %v", len(AllMethods), set.Methods())
	}

	set, err = NewMethodSet([]string{"bert", " zeste", "bert"})
	if err != nil {
		t.Fatalf("NewMethodSet failed: %v", err)
	}
	methods := set.Methods()
	if len(methods) != 2 || methods[0] != MethodBERT || methods[1] != MethodZeste {
		t.Errorf("Expected [bert zeste], got %v", methods)
	}

	if _, err := NewMethodSet([]string{"bert", "svm"}); err == nil {
		t.Error("Expected error for unknown method")
	}
}

func TestMethodSetParse(t *testing.T) {
	set, _ := NewMethodSet([]string{"bert", "gpt-4"})

	tests := []struct {
		input    string
		want     Method
		wantKind apperr.Kind
	}{
		{"bert", MethodBERT, ""},
		{"gpt-4", MethodGPT4, ""},
		{"", "", apperr.InvalidInput},
		{"   ", "", apperr.InvalidInput},
		{"zeste", "", apperr.InvalidMethod},
		{"BERT", "", apperr.InvalidMethod},
		{"random-forest", "", apperr.InvalidMethod},
	}

	for _, tt := range tests {
		got, err := set.Parse(tt.input)
		if kind := apperr.KindOf(err); kind != tt.wantKind {
			t.Errorf("Parse(%q) kind = %s, want %s", tt.input, kind, tt.wantKind)
		}
		if got != tt.want {
			t.Errorf("Parse(%q) = %s, want %s", tt.input, got, tt.want)
		}
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		expected []Item
	}{
		{
			name:     "predictions list",
			body:     `{"predictions":[{"label":"economy","score":0.9},{"label":"tech","score":0.1}]}`,
			expected: []Item{{"economy", 0.9}, {"tech", 0.1}},
		},
		{
			name:     "parallel arrays",
			body:     `{"labels":["a","b"],"scores":[0.7,0.3]}`,
			expected: []Item{{"a", 0.7}, {"b", 0.3}},
		},
		{
			name:     "bare list",
			body:     `[{"label":"x","score":1}]`,
			expected: []Item{{"x", 1}},
		},
		{
			name:     "empty predictions",
			body:     `{"predictions":[]}`,
			expected: []Item{},
		},
		{
			name:     "empty arrays",
			body:     `{"labels":[],"scores":[]}`,
			expected: []Item{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Normalize(MethodBERT, []byte(tt.body))
			if err != nil {
				t.Fatalf("Normalize failed: %v", err)
			}
			if result.Method != MethodBERT {
				t.Errorf("Expected method bert, got %s", result.Method)
			}
			if result.Predictions == nil {
				t.Fatal("Expected non-nil predictions")
			}
			if len(result.Predictions) != len(tt.expected) {
				t.Fatalf("Expected %v, got %v", tt.expected, result.Predictions)
			}
			for i := range tt.expected {
				if result.Predictions[i] != tt.expected[i] {
					t.Errorf("Item %d: expected %+v, got %+v", i, tt.expected[i], result.Predictions[i])
				}
			}
		})
	}
}

func TestNormalizeErrors(t *testing.T) {
	bodies := []string{
		`not json`,
		`{"labels":["a","b"],"scores":[0.5]}`,
		`{"result":"ok"}`,
		`{"predictions":"economy"}`,
		`"economy"`,
	}

	for _, body := range bodies {
		if _, err := Normalize(MethodZeste, []byte(body)); !apperr.IsKind(err, apperr.UpstreamError) {
			t.Errorf("Normalize(%s): expected UpstreamError, got %v", body, err)
		}
	}
}

func TestEmptyResultEncodesAsList(t *testing.T) {
	result, err := Normalize(MethodGPT4, []byte(`{"predictions":null}`))
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}

	data, _ := json.Marshal(result)
	if string(data) != `{"method":"gpt-4","predictions":[]}` {
		t.Errorf("Unexpected encoding: %s", data)
	}
}

func TestAggregatorArbitraryOrder(t *testing.T) {
	for trial := 0; trial < 20; trial++ {
		agg := NewAggregator()
		sub := agg.Begin(AllMethods)

		order := append([]Method(nil), AllMethods...)
		rand.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

		var wg sync.WaitGroup
		for _, m := range order {
			agg.MarkRequested(sub, m)
			wg.Add(1)
			go func(m Method) {
				defer wg.Done()
				agg.Complete(sub, m, &Result{Method: m, Predictions: []Item{{Label: string(m), Score: 1}}}, nil)
			}(m)
		}
		wg.Wait()

		snapshot := agg.Snapshot()
		if len(snapshot) != len(AllMethods) {
			t.Fatalf("Expected %d outcomes, got %d", len(AllMethods), len(snapshot))
		}
		for i, o := range snapshot {
			if o.State != StateSucceeded {
				t.Errorf("Expected %s succeeded, got %s", o.Method, o.State)
			}
			if len(o.Predictions) != 1 || o.Predictions[0].Label != string(o.Method) {
				t.Errorf("Expected %s to keep its own predictions, got %+v", o.Method, o.Predictions)
			}
			if i > 0 && snapshot[i-1].Method >= o.Method {
				t.Errorf("Expected snapshot sorted by method, got %v before %v", snapshot[i-1].Method, o.Method)
			}
		}
		if !agg.done() {
			t.Error("Expected aggregator to be done")
		}
	}
}

func TestAggregatorPartialFailure(t *testing.T) {
	agg := NewAggregator()
	sub := agg.Begin(AllMethods)

	agg.Complete(sub, MethodBERT, &Result{Predictions: []Item{{"a", 0.5}}}, nil)
	agg.Complete(sub, MethodClaudeV1, &Result{Predictions: []Item{{"b", 0.5}}}, nil)
	agg.Complete(sub, MethodGPT4, nil, apperr.New(apperr.UpstreamError, "Backend /predict returned status 502"))
	agg.Complete(sub, MethodZeste, &Result{Predictions: []Item{}}, nil)

	states := map[State]int{}
	for _, o := range agg.Snapshot() {
		states[o.State]++
		if o.Method == MethodGPT4 && o.Error != "Backend /predict returned status 502" {
			t.Errorf("Expected failure message kept, got '%s'", o.Error)
		}
	}
	if states[StateSucceeded] != 3 || states[StateFailed] != 1 {
		t.Errorf("Expected 3 succeeded and 1 failed, got %v", states)
	}
}

func TestAggregatorTerminalIsFinal(t *testing.T) {
	agg := NewAggregator()
	sub := agg.Begin([]Method{MethodBERT})

	if !agg.Complete(sub, MethodBERT, &Result{Predictions: []Item{{"first", 1}}}, nil) {
		t.Fatal("Expected first result to be recorded")
	}
	if agg.Complete(sub, MethodBERT, nil, errors.New("late failure")) {
		t.Error("Expected second result to be discarded")
	}
	if agg.MarkRequested(sub, MethodBERT) {
		t.Error("Expected terminal slot to stay terminal")
	}

	o := agg.Snapshot()[0]
	if o.State != StateSucceeded || o.Predictions[0].Label != "first" {
		t.Errorf("Expected first result kept, got %+v", o)
	}
}

func TestAggregatorDiscardsStaleSubmission(t *testing.T) {
	agg := NewAggregator()
	old := agg.Begin([]Method{MethodBERT, MethodZeste})
	agg.MarkRequested(old, MethodBERT)

	current := agg.Begin([]Method{MethodBERT})
	if current.Generation <= old.Generation || current.ID == old.ID {
		t.Fatalf("Expected a newer submission, got %+v after %+v", current, old)
	}

	if agg.Complete(old, MethodBERT, &Result{Predictions: []Item{{"stale", 1}}}, nil) {
		t.Error("Expected stale result to be discarded")
	}
	if agg.Complete(current, MethodZeste, &Result{}, nil) {
		t.Error("Expected method outside the submission to be discarded")
	}

	snapshot := agg.Snapshot()
	if len(snapshot) != 1 || snapshot[0].State != StateIdle {
		t.Errorf("Expected only an idle bert slot, got %+v", snapshot)
	}
	if agg.active() != current {
		t.Errorf("Expected current submission %+v, got %+v", current, agg.active())
	}
}

func TestFanOut(t *testing.T) {
	delays := map[Method]time.Duration{
		MethodBERT:     30 * time.Millisecond,
		MethodClaudeV1: 0,
		MethodGPT4:     10 * time.Millisecond,
		MethodZeste:    20 * time.Millisecond,
	}

	var mu sync.Mutex
	calls := map[Method]int{}

	outcomes := FanOut(context.Background(), AllMethods, func(ctx context.Context, m Method) (*Result, error) {
		mu.Lock()
		calls[m]++
		mu.Unlock()

		time.Sleep(delays[m])
		if m == MethodClaudeV1 {
			return nil, apperr.New(apperr.UpstreamError, "Backend request failed")
		}
		return &Result{Method: m, Predictions: []Item{{Label: "economy", Score: 0.5}}}, nil
	})

	if len(outcomes) != 4 {
		t.Fatalf("Expected 4 outcomes, got %d", len(outcomes))
	}
	for _, o := range outcomes {
		if calls[o.Method] != 1 {
			t.Errorf("Expected one call for %s, got %d", o.Method, calls[o.Method])
		}
		want := StateSucceeded
		if o.Method == MethodClaudeV1 {
			want = StateFailed
		}
		if o.State != want {
			t.Errorf("Expected %s %s, got %s", o.Method, want, o.State)
		}
	}
}
