package prediction

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/pep299/article-classifier-proxy/internal/apperr"
)

// Item is one label with the backend's confidence score
type Item struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Result is the canonical prediction response for one method. Predictions
// keep the backend's order and are never nil once normalized.
type Result struct {
	Method      Method `json:"method"`
	Predictions []Item `json:"predictions"`
}

// Normalize converts a backend /predict body into a Result. Accepted shapes are
// {"predictions":[{"label","score"}]} and {"labels":[...],"scores":[...]};
// a bare array of items is accepted as well.
func Normalize(method Method, body []byte) (*Result, error) {
	body = bytes.TrimSpace(body)
	if !json.Valid(body) {
		return nil, apperr.New(apperr.UpstreamError, "Prediction backend returned invalid JSON")
	}

	if body[0] == '[' {
		var items []Item
		if err := json.Unmarshal(body, &items); err != nil {
			return nil, apperr.Wrap(apperr.UpstreamError, "Unexpected prediction response", err)
		}
		return newResult(method, items), nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, apperr.Wrap(apperr.UpstreamError, "Unexpected prediction response", err)
	}

	if raw, ok := fields["predictions"]; ok {
		var items []Item
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, apperr.Wrap(apperr.UpstreamError, "Unexpected prediction response", err)
		}
		return newResult(method, items), nil
	}

	rawLabels, hasLabels := fields["labels"]
	rawScores, hasScores := fields["scores"]
	if !hasLabels && !hasScores {
		return nil, apperr.New(apperr.UpstreamError, "Prediction backend returned no predictions field")
	}

	var labels []string
	var scores []float64
	if hasLabels {
		if err := json.Unmarshal(rawLabels, &labels); err != nil {
			return nil, apperr.Wrap(apperr.UpstreamError, "Unexpected prediction labels", err)
		}
	}
	if hasScores {
		if err := json.Unmarshal(rawScores, &scores); err != nil {
			return nil, apperr.Wrap(apperr.UpstreamError, "Unexpected prediction scores", err)
		}
	}
	if len(labels) != len(scores) {
		return nil, apperr.New(apperr.UpstreamError,
			fmt.Sprintf("Prediction backend returned %d labels and %d scores", len(labels), len(scores)))
	}

	items := make([]Item, len(labels))
	for i := range labels {
		items[i] = Item{Label: labels[i], Score: scores[i]}
	}
	return newResult(method, items), nil
}

func newResult(method Method, items []Item) *Result {
	if items == nil {
		items = []Item{}
	}
	return &Result{Method: method, Predictions: items}
}
