package article

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/pep299/article-classifier-proxy/internal/apperr"
)

// Field names read from the content API representation
const (
	FieldTitle    = "title"
	FieldBody     = "body"
	FieldAbstract = "field_abstract"
	FieldCreated  = "created"
	FieldAuthor   = "field_auteur_libre"
)

// Value is one localized entry of a content field. Value holds the raw text
// (frequently HTML); non-string scalars are kept in their JSON form.
type Value struct {
	Value     string `json:"value"`
	Format    string `json:"format,omitempty"`
	Summary   string `json:"summary,omitempty"`
	Processed string `json:"processed,omitempty"`
	Lang      string `json:"lang,omitempty"`

	// IsString is false when the upstream value was a number, bool or null
	IsString bool `json:"-"`
}

// UnmarshalJSON accepts any scalar for "value" and ignores unknown keys
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	v.Value, v.IsString = scalar(raw["value"])
	v.Format, _ = scalar(raw["format"])
	v.Summary, _ = scalar(raw["summary"])
	v.Processed, _ = scalar(raw["processed"])
	v.Lang, _ = scalar(raw["lang"])
	return nil
}

func scalar(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	return string(raw), false
}

// Record is an article as served by the content API: a mapping of field name
// to localized values. The raw fields are kept so the record can be returned
// to callers exactly as received.
type Record struct {
	fields map[string]json.RawMessage

	title    []Value
	body     []Value
	abstract []Value
	created  []Value
	author   []Value
}

// Parse decodes a content API payload. Invalid JSON is an upstream error;
// valid JSON without a usable title and body is a malformed article.
// Optional fields that are missing or of an unexpected shape are treated as absent.
func Parse(data []byte) (*Record, error) {
	if !json.Valid(data) {
		return nil, apperr.New(apperr.UpstreamError, "Content API returned invalid JSON")
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		return nil, apperr.Wrap(apperr.MalformedArticle, "Article is not an object", err)
	}

	r := &Record{fields: fields}

	var err error
	if r.title, err = r.required(FieldTitle); err != nil {
		return nil, err
	}
	if r.body, err = r.required(FieldBody); err != nil {
		return nil, err
	}
	r.abstract = r.optional(FieldAbstract)
	r.created = r.optional(FieldCreated)
	r.author = r.optional(FieldAuthor)

	return r, nil
}

func (r *Record) required(name string) ([]Value, error) {
	raw, ok := r.fields[name]
	if !ok {
		return nil, apperr.New(apperr.MalformedArticle, fmt.Sprintf("Article has no %s", name))
	}
	var values []Value
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, apperr.Wrap(apperr.MalformedArticle, fmt.Sprintf("Article %s is malformed", name), err)
	}
	if len(values) == 0 || !values[0].IsString {
		return nil, apperr.New(apperr.MalformedArticle, fmt.Sprintf("Article has no %s", name))
	}
	return values, nil
}

func (r *Record) optional(name string) []Value {
	raw, ok := r.fields[name]
	if !ok {
		return nil
	}
	var values []Value
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil
	}
	return values
}

// Field decodes any field of the record
func (r *Record) Field(name string) ([]Value, bool) {
	values := r.optional(name)
	return values, len(values) > 0
}

func first(values []Value) (string, bool) {
	if len(values) == 0 || !values[0].IsString {
		return "", false
	}
	return values[0].Value, true
}

// Title returns the first title value
func (r *Record) Title() string {
	s, _ := first(r.title)
	return s
}

// BodyHTML returns the first body value
func (r *Record) BodyHTML() string {
	s, _ := first(r.body)
	return s
}

// AbstractHTML returns the first abstract value, if any
func (r *Record) AbstractHTML() (string, bool) {
	return first(r.abstract)
}

// Created returns the first creation date value, if any
func (r *Record) Created() (string, bool) {
	return first(r.created)
}

// Author returns the free-text author line, if any
func (r *Record) Author() (string, bool) {
	return first(r.author)
}

// Text is the plain-text form of the abstract and body joined for prediction
func (r *Record) Text() string {
	abstract, _ := r.AbstractHTML()
	return JoinText(ToText(abstract), ToText(r.BodyHTML()))
}

// MarshalJSON re-encodes the raw fields as received
func (r *Record) MarshalJSON() ([]byte, error) {
	if r == nil {
		return []byte("null"), nil
	}
	return json.Marshal(r.fields)
}
