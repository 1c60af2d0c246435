// Package throttle applies role-tiered request limits in front of the API
// routes. Decisions come from a verdict.Provider; the gate only picks the
// policy, bounds the call and turns the verdict into a response.
package throttle

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/isdelr/acquisitions-api/internal/auth"
	"github.com/isdelr/acquisitions-api/internal/httpx"
	"github.com/isdelr/acquisitions-api/internal/models"
	"github.com/isdelr/acquisitions-api/internal/verdict"
	"github.com/rs/zerolog/log"
)

const (
	forbiddenMessage   = "Automated requests are not allowed."
	rateLimitedMessage = "Too many requests. Please slow down."
	internalMessage    = "Something went wrong with the security middleware."
)

var errNoVerdict = errors.New("throttle: provider returned no verdict")

// KeyFunc identifies the caller for counting.
type KeyFunc func(r *http.Request) string

// Recorder receives one observation per decision.
type Recorder interface {
	ObserveThrottle(role, outcome string)
}

// Options configures a Gate. Nil KeyFunc means DefaultKeyFunc.
type Options struct {
	// Timeout bounds a single provider call. Zero means no bound.
	Timeout  time.Duration
	KeyFunc  KeyFunc
	Recorder Recorder
}

// Outcome is the verdict together with the policy it was reached under.
type Outcome struct {
	Policy  Policy
	Verdict verdict.Verdict
}

// Gate is the role-aware throttle.
type Gate struct {
	provider verdict.Provider
	policies Policies
	timeout  time.Duration
	keyFn    KeyFunc
	recorder Recorder
}

// NewGate validates policies and wires the provider.
func NewGate(provider verdict.Provider, policies Policies, opts Options) (*Gate, error) {
	if provider == nil {
		return nil, errors.New("throttle: provider is required")
	}
	if err := policies.Validate(); err != nil {
		return nil, err
	}
	if opts.KeyFunc == nil {
		opts.KeyFunc = DefaultKeyFunc
	}
	return &Gate{
		provider: provider,
		policies: policies,
		timeout:  opts.Timeout,
		keyFn:    opts.KeyFunc,
		recorder: opts.Recorder,
	}, nil
}

// DefaultKeyFunc uses the host part of RemoteAddr. Run chi's RealIP before
// the gate to honour proxy headers.
func DefaultKeyFunc(r *http.Request) string {
	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil && host != "" {
		return host
	}
	if addr != "" {
		return addr
	}
	return "unknown"
}

// Check asks the provider about req under the caller's policy. A provider
// that does not answer within the timeout is an error, never an allow.
func (g *Gate) Check(ctx context.Context, id *models.Identity, req verdict.Request) (Outcome, error) {
	policy := g.policies.For(id)
	out := Outcome{Policy: policy}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	type result struct {
		v   verdict.Verdict
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := g.provider.Protect(ctx, req, policy.rule())
		done <- result{v, err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return out, fmt.Errorf("verdict provider: %w", res.err)
		}
		if res.v == nil {
			return out, errNoVerdict
		}
		out.Verdict = res.v
		return out, nil
	case <-ctx.Done():
		return out, fmt.Errorf("verdict provider: %w", ctx.Err())
	}
}

// Middleware rejects bots, suspicious requests and callers over their budget.
// It must run after auth.Authenticate and before any role check.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := auth.IdentityFrom(r.Context())
		req := verdict.RequestFrom(r, g.keyFn(r))

		out, err := g.Check(r.Context(), id, req)
		if err != nil {
			log.Error().Err(err).Str("ip", req.Key).Str("path", req.Path).Msg("Security middleware error")
			g.observe(out.Policy, "error")
			httpx.WriteError(w, http.StatusInternalServerError, internalMessage)
			return
		}

		switch v := out.Verdict.(type) {
		case verdict.Allowed:
			setLimitHeaders(w, v.Limit, v.Remaining, v.ResetAt)
			g.observe(out.Policy, "allowed")
			next.ServeHTTP(w, r)

		case verdict.Denied:
			g.observe(out.Policy, v.Reason.String())
			switch v.Reason {
			case verdict.ReasonBot:
				log.Warn().
					Str("ip", req.Key).
					Str("userAgent", req.UserAgent).
					Str("path", req.Path).
					Msg("Bot request blocked")
				httpx.WriteError(w, http.StatusForbidden, forbiddenMessage)

			case verdict.ReasonShield:
				log.Warn().
					Str("ip", req.Key).
					Str("userAgent", req.UserAgent).
					Str("path", req.Path).
					Str("method", req.Method).
					Msg("Shield blocked request")
				httpx.WriteError(w, http.StatusForbidden, forbiddenMessage)

			case verdict.ReasonRateLimit:
				log.Warn().
					Str("ip", req.Key).
					Str("userAgent", req.UserAgent).
					Str("path", req.Path).
					Str("method", req.Method).
					Str("rule", out.Policy.RuleName()).
					Msg("Rate limit exceeded")
				setLimitHeaders(w, v.Limit, 0, v.ResetAt)
				if retry := retryAfter(v.ResetAt); retry > 0 {
					w.Header().Set("Retry-After", strconv.Itoa(retry))
				}
				httpx.WriteError(w, http.StatusTooManyRequests, rateLimitedMessage)

			default:
				log.Error().Str("reason", v.Reason.String()).Str("path", req.Path).Msg("Unknown denial reason")
				httpx.WriteError(w, http.StatusInternalServerError, internalMessage)
			}

		default:
			log.Error().Str("path", req.Path).Msgf("Unexpected verdict %T", v)
			httpx.WriteError(w, http.StatusInternalServerError, internalMessage)
		}
	})
}

func (g *Gate) observe(p Policy, outcome string) {
	if g.recorder != nil {
		g.recorder.ObserveThrottle(string(p.Role), outcome)
	}
}

func setLimitHeaders(w http.ResponseWriter, limit, remaining int, resetAt time.Time) {
	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	if !resetAt.IsZero() {
		h.Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))
	}
}

// retryAfter rounds the wait up to whole seconds.
func retryAfter(resetAt time.Time) int {
	if resetAt.IsZero() {
		return 0
	}
	d := time.Until(resetAt)
	if d <= 0 {
		return 1
	}
	return int((d + time.Second - 1) / time.Second)
}
