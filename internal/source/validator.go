package source

import (
	"net/url"
	"strings"

	"github.com/pep299/article-classifier-proxy/internal/apperr"
)

// DefaultHost is the only content site articles may be fetched from
const DefaultHost = "www.lejournaldesentreprises.com"

// Validator restricts submitted URLs to a single allowed host. Every outbound
// call made on behalf of a caller goes through Validate first.
type Validator struct {
	host string
}

// NewValidator creates a validator for host. An empty host falls back to DefaultHost.
func NewValidator(host string) *Validator {
	host = strings.TrimSpace(host)
	if host == "" {
		host = DefaultHost
	}
	return &Validator{host: host}
}

// Host returns the allowed host
func (v *Validator) Host() string {
	return v.host
}

// Validate parses raw as an absolute URL on the allowed host. The parsed URL
// is returned untouched, query included.
func (v *Validator) Validate(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, apperr.New(apperr.InvalidInput, "Missing url")
	}

	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return nil, apperr.Wrap(apperr.InvalidInput, "Invalid url", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, apperr.New(apperr.InvalidSource, "Invalid url")
	}
	if !strings.EqualFold(u.Hostname(), v.host) {
		return nil, apperr.New(apperr.InvalidSource, "Invalid url")
	}

	return u, nil
}
