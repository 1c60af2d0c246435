package verdict

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// Mode controls whether denials are enforced.
type Mode string

const (
	ModeLive   Mode = "live"
	ModeDryRun Mode = "dry_run"
)

// Engine is the in-process Provider. Checks run in order: bot, shield,
// rate limit. A request stopped by an earlier check is not counted.
type Engine struct {
	counter Counter
	bots    BotDetector
	shield  *Shield
	mode    Mode
	now     func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithBotDetector enables the user agent check.
func WithBotDetector(d BotDetector) Option {
	return func(e *Engine) { e.bots = d }
}

// WithShield enables attack pattern inspection.
func WithShield(s *Shield) Option {
	return func(e *Engine) { e.shield = s }
}

// WithMode sets live or dry run enforcement.
func WithMode(m Mode) Option {
	return func(e *Engine) { e.mode = m }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an Engine counting with counter. Without options it only
// rate limits.
func NewEngine(counter Counter, opts ...Option) *Engine {
	e := &Engine{
		counter: counter,
		mode:    ModeLive,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Protect implements Provider.
func (e *Engine) Protect(ctx context.Context, req Request, rule Rule) (Verdict, error) {
	if err := rule.validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	v, err := e.evaluate(ctx, req, rule)
	if err != nil {
		return nil, err
	}

	if d, ok := v.(Denied); ok && e.mode == ModeDryRun {
		log.Info().
			Str("rule", rule.Name).
			Str("reason", d.Reason.String()).
			Str("ip", req.Key).
			Str("path", req.Path).
			Msg("Dry run: request would have been denied")
		return Allowed{Limit: rule.Max, Remaining: 0, ResetAt: d.ResetAt}, nil
	}
	return v, nil
}

func (e *Engine) evaluate(ctx context.Context, req Request, rule Rule) (Verdict, error) {
	now := e.now()

	if e.bots.IsBot(req.UserAgent) {
		return Denied{Reason: ReasonBot, Limit: rule.Max}, nil
	}
	if e.shield != nil && e.shield.Suspicious(req) {
		return Denied{Reason: ReasonShield, Limit: rule.Max}, nil
	}

	usage, err := e.counter.Hit(ctx, rule, req.Key, now)
	if err != nil {
		return nil, fmt.Errorf("count request: %w", err)
	}
	if !usage.Allowed {
		return Denied{Reason: ReasonRateLimit, Limit: rule.Max, ResetAt: usage.ResetAt}, nil
	}

	remaining := rule.Max - usage.Count
	if remaining < 0 {
		remaining = 0
	}
	return Allowed{Limit: rule.Max, Remaining: remaining, ResetAt: usage.ResetAt}, nil
}
