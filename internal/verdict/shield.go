package verdict

import (
	"net/url"
	"regexp"
)

// Shield matches common attack payloads in the path, query string and a few
// headers. Request bodies are not inspected.
type Shield struct {
	patterns []*regexp.Regexp
}

var defaultShieldPatterns = []*regexp.Regexp{
	// path traversal
	regexp.MustCompile(`(?i)(\.\./|\.\.\\|%2e%2e)`),
	// SQL injection
	regexp.MustCompile(`(?i)(\bunion\b[\s\S]*\bselect\b|'\s*or\s+'?\d*'?\s*=|\bor\s+1\s*=\s*1\b|;\s*drop\s+table\b|\bsleep\s*\(\s*\d+\s*\)|\bbenchmark\s*\()`),
	// cross-site scripting
	regexp.MustCompile(`(?i)(<\s*script\b|javascript\s*:|\bon(error|load|mouseover)\s*=)`),
	// shell injection
	regexp.MustCompile(`(\$\(|;\s*(cat|rm|wget|curl|sh|bash)\b|\|\s*(sh|bash)\b)`),
}

// NewShield returns a Shield with the built-in rule set.
func NewShield() *Shield {
	return &Shield{patterns: defaultShieldPatterns}
}

// Suspicious reports whether any inspected part of req matches a rule.
func (s *Shield) Suspicious(req Request) bool {
	candidates := []string{req.Path, req.RawQuery}
	if p, err := url.PathUnescape(req.Path); err == nil {
		candidates = append(candidates, p)
	}
	if q, err := url.QueryUnescape(req.RawQuery); err == nil {
		candidates = append(candidates, q)
	}
	for _, v := range req.Headers {
		candidates = append(candidates, v)
	}

	for _, c := range candidates {
		if c == "" {
			continue
		}
		for _, p := range s.patterns {
			if p.MatchString(c) {
				return true
			}
		}
	}
	return false
}
