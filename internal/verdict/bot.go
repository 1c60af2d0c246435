package verdict

import "strings"

// BotDetector flags automated clients by user agent. Allowed entries win over
// blocked ones so that search engine crawlers can be let through.
type BotDetector struct {
	blocked    []string
	allowed    []string
	blockEmpty bool
}

// NewBotDetector lower-cases the given substrings once up front.
func NewBotDetector(blocked, allowed []string, blockEmpty bool) BotDetector {
	return BotDetector{
		blocked:    lowerAll(blocked),
		allowed:    lowerAll(allowed),
		blockEmpty: blockEmpty,
	}
}

// IsBot reports whether userAgent looks automated.
func (d BotDetector) IsBot(userAgent string) bool {
	ua := strings.ToLower(strings.TrimSpace(userAgent))
	if ua == "" {
		return d.blockEmpty
	}
	for _, a := range d.allowed {
		if strings.Contains(ua, a) {
			return false
		}
	}
	for _, b := range d.blocked {
		if strings.Contains(ua, b) {
			return true
		}
	}
	return false
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
