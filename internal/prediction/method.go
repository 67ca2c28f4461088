// Package prediction holds the classification methods offered by the
// prediction backend, the canonical result shape, and the aggregation of
// concurrent per-method results for one submission.
package prediction

import (
	"fmt"
	"strings"

	"github.com/pep299/article-classifier-proxy/internal/apperr"
)

// Method identifies one classification algorithm of the backend
type Method string

const (
	MethodBERT     Method = "bert"
	MethodClaudeV1 Method = "claude-v1"
	MethodGPT4     Method = "gpt-4"
	MethodZeste    Method = "zeste"
)

// AllMethods lists every method the backend implements, in display order
var AllMethods = []Method{MethodBERT, MethodClaudeV1, MethodGPT4, MethodZeste}

func (m Method) String() string {
	return string(m)
}

// Known reports whether m is implemented by the backend
func (m Method) Known() bool {
	for _, known := range AllMethods {
		if m == known {
			return true
		}
	}
	return false
}

// MethodSet is the set of methods a deployment accepts
type MethodSet struct {
	methods []Method
}

// NewMethodSet builds a set from names. An empty list means every known
// method; an unknown name is an error.
func NewMethodSet(names []string) (*MethodSet, error) {
	if len(names) == 0 {
		return &MethodSet{methods: append([]Method(nil), AllMethods...)}, nil
	}

	seen := make(map[Method]bool, len(names))
	methods := make([]Method, 0, len(names))
	for _, name := range names {
		m := Method(strings.TrimSpace(name))
		if !m.Known() {
			return nil, fmt.Errorf("unknown prediction method %q", name)
		}
		if seen[m] {
			continue
		}
		seen[m] = true
		methods = append(methods, m)
	}
	return &MethodSet{methods: methods}, nil
}

// Methods returns the accepted methods in configured order
func (s *MethodSet) Methods() []Method {
	return append([]Method(nil), s.methods...)
}

// Contains reports whether m is accepted
func (s *MethodSet) Contains(m Method) bool {
	for _, accepted := range s.methods {
		if m == accepted {
			return true
		}
	}
	return false
}

// Parse validates a caller-supplied method name against the set
func (s *MethodSet) Parse(raw string) (Method, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", apperr.New(apperr.InvalidInput, "Missing method")
	}
	m := Method(raw)
	if !s.Contains(m) {
		return "", apperr.New(apperr.InvalidMethod, "Invalid method")
	}
	return m, nil
}
