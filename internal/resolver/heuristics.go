package resolver

import (
	"strings"

	"github.com/dgnsrekt/soapstream/internal/config"
	"github.com/dgnsrekt/soapstream/internal/types"
)

// Heuristics is an ordered rule set; the first matching rule names the hit.
type Heuristics []config.Rule

// Match reports whether ev is a candidate under any rule. Error statuses are
// rejected for rules that set SkipErrors.
func (h Heuristics) Match(ev types.ResponseEvent) (string, bool) {
	for _, r := range h {
		if matchRule(r, ev) {
			return r.Name, true
		}
	}
	return "", false
}

func matchRule(r config.Rule, ev types.ResponseEvent) bool {
	if r.SkipErrors && ev.Status >= 400 {
		return false
	}
	u := strings.ToLower(ev.URL)
	if len(r.URLContains) > 0 && !containsAny(u, r.URLContains) {
		return false
	}
	// Content type and URL keywords are alternatives; either one is enough.
	if len(r.ContentTypes) > 0 || len(r.URLKeywords) > 0 {
		return containsAny(responseContentType(ev), r.ContentTypes) || containsAny(u, r.URLKeywords)
	}
	return len(r.URLContains) > 0
}

func responseContentType(ev types.ResponseEvent) string {
	ct := ev.ContentType
	if ct == "" {
		ct = ev.MimeType
	}
	return strings.ToLower(ct)
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if sub != "" && strings.Contains(s, strings.ToLower(sub)) {
			return true
		}
	}
	return false
}
