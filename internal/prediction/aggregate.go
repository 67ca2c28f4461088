package prediction

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/pep299/article-classifier-proxy/internal/apperr"
)

// State is the lifecycle position of one method within a submission
type State string

const (
	StateIdle      State = "idle"
	StateRequested State = "requested"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

// Terminal reports whether no further transition is possible
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// Outcome is the per-method entry of a submission
type Outcome struct {
	Method      Method `json:"method"`
	State       State  `json:"state"`
	Predictions []Item `json:"predictions,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Submission identifies one analysis request. Generation orders submissions
// of the same aggregator; ID is unique across processes.
type Submission struct {
	ID         string
	Generation uint64
}

// Aggregator tracks the outcomes of concurrent method requests for the
// latest submission. Results tagged with an older submission are dropped.
type Aggregator struct {
	mu         sync.Mutex
	current    Submission
	generation uint64
	slots      map[Method]*Outcome
}

// NewAggregator creates an aggregator with no submission
func NewAggregator() *Aggregator {
	return &Aggregator{slots: map[Method]*Outcome{}}
}

// Begin starts a new submission for methods, discarding the previous one
func (a *Aggregator) Begin(methods []Method) Submission {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.generation++
	a.current = Submission{ID: uuid.NewString(), Generation: a.generation}
	a.slots = make(map[Method]*Outcome, len(methods))
	for _, m := range methods {
		a.slots[m] = &Outcome{Method: m, State: StateIdle}
	}
	return a.current
}

func (a *Aggregator) active() Submission {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}

// MarkRequested moves an idle method of sub to requested
func (a *Aggregator) MarkRequested(sub Submission, m Method) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	slot, ok := a.slot(sub, m)
	if !ok || slot.State != StateIdle {
		return false
	}
	slot.State = StateRequested
	return true
}

// Complete records the result of m for sub. It reports false when the
// result was discarded: sub is stale, m is not part of it, or m already
// reached a terminal state.
func (a *Aggregator) Complete(sub Submission, m Method, result *Result, err error) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	slot, ok := a.slot(sub, m)
	if !ok || slot.State.Terminal() {
		return false
	}

	if err != nil {
		slot.State = StateFailed
		slot.Error = apperr.Message(err)
		return true
	}

	slot.State = StateSucceeded
	slot.Predictions = []Item{}
	if result != nil && result.Predictions != nil {
		slot.Predictions = append(slot.Predictions, result.Predictions...)
	}
	return true
}

// Snapshot returns a copy of every outcome of the current submission,
// ordered by method name
func (a *Aggregator) Snapshot() []Outcome {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]Outcome, 0, len(a.slots))
	for _, slot := range a.slots {
		o := *slot
		if slot.Predictions != nil {
			o.Predictions = append([]Item{}, slot.Predictions...)
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Method < out[j].Method })
	return out
}

// done reports whether every method of the current submission is terminal
func (a *Aggregator) done() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, slot := range a.slots {
		if !slot.State.Terminal() {
			return false
		}
	}
	return true
}

func (a *Aggregator) slot(sub Submission, m Method) (*Outcome, bool) {
	if sub.Generation != a.current.Generation || sub.ID != a.current.ID {
		return nil, false
	}
	slot, ok := a.slots[m]
	return slot, ok
}

// PredictFunc classifies with one method
type PredictFunc func(ctx context.Context, m Method) (*Result, error)

// Run opens a submission for methods, calls fn for each of them
// concurrently and records every result. It returns once every call has
// answered; results arriving after a newer Begin are dropped.
func (a *Aggregator) Run(ctx context.Context, methods []Method, fn PredictFunc) Submission {
	sub := a.Begin(methods)

	type result struct {
		method Method
		result *Result
		err    error
	}
	results := make(chan result, len(methods))

	for _, m := range methods {
		a.MarkRequested(sub, m)
		go func(m Method) {
			r, err := fn(ctx, m)
			results <- result{method: m, result: r, err: err}
		}(m)
	}

	for range methods {
		r := <-results
		a.Complete(sub, r.method, r.result, r.err)
	}

	return sub
}

// FanOut runs fn for every method concurrently under a fresh submission and
// returns the outcomes. One method failing does not affect the others.
func FanOut(ctx context.Context, methods []Method, fn PredictFunc) []Outcome {
	agg := NewAggregator()
	agg.Run(ctx, methods, fn)
	return agg.Snapshot()
}
