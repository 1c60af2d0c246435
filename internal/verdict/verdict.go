// Package verdict decides whether a single request may proceed. It combines
// bot detection, a request shield and a sliding-window rate counter behind
// one Provider call.
package verdict

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"
)

// Reason tags why a request was denied.
type Reason int

const (
	ReasonBot Reason = iota + 1
	ReasonShield
	ReasonRateLimit
)

func (r Reason) String() string {
	switch r {
	case ReasonBot:
		return "bot"
	case ReasonShield:
		return "shield"
	case ReasonRateLimit:
		return "rate_limit"
	default:
		return "unknown"
	}
}

// Verdict is either Allowed or Denied. The unexported method keeps the set
// closed to this package.
type Verdict interface {
	verdict()
}

// Allowed lets the request through.
type Allowed struct {
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Denied blocks the request.
type Denied struct {
	Reason  Reason
	Limit   int
	ResetAt time.Time
}

func (Allowed) verdict() {}
func (Denied) verdict()  {}

// Rule is a sliding-window limit: at most Max requests per Key within Window.
// Name scopes the counting bucket.
type Rule struct {
	Name   string
	Window time.Duration
	Max    int
}

// ErrInvalidRule is returned for an unnamed rule or one with a non-positive bound.
var ErrInvalidRule = errors.New("verdict: invalid rule")

func (r Rule) validate() error {
	if r.Name == "" || r.Window <= 0 || r.Max <= 0 {
		return ErrInvalidRule
	}
	return nil
}

// Request is the slice of an HTTP request the provider inspects.
type Request struct {
	Key       string
	Method    string
	Path      string
	RawQuery  string
	UserAgent string
	Headers   map[string]string
}

// inspectedHeaders are passed to the shield besides the path and query.
var inspectedHeaders = []string{"Referer", "Cookie", "X-Forwarded-Host", "X-Original-URL", "X-Rewrite-URL"}

// RequestFrom captures what the provider needs from r.
func RequestFrom(r *http.Request, key string) Request {
	headers := make(map[string]string, len(inspectedHeaders))
	for _, h := range inspectedHeaders {
		v := r.Header.Get(h)
		if h == "Cookie" {
			// Only the values; the "; " separators would trip the shell rules.
			v = cookieValues(r)
		}
		if v != "" {
			headers[h] = v
		}
	}
	return Request{
		Key:       key,
		Method:    r.Method,
		Path:      r.URL.Path,
		RawQuery:  r.URL.RawQuery,
		UserAgent: r.UserAgent(),
		Headers:   headers,
	}
}

func cookieValues(r *http.Request) string {
	var vals []string
	for _, c := range r.Cookies() {
		if c.Value != "" {
			vals = append(vals, c.Value)
		}
	}
	return strings.Join(vals, "\n")
}

// Provider returns a verdict for req under rule. An error means no decision
// could be made.
type Provider interface {
	Protect(ctx context.Context, req Request, rule Rule) (Verdict, error)
}
