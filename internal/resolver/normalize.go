package resolver

import (
	"log/slog"
	"net/url"
	"strings"

	"github.com/dgnsrekt/soapstream/internal/config"
)

var defaultTracking = config.DefaultProfile().Tracking

// Normalize strips tracking redirects using the default tracking markers.
func Normalize(raw string) string {
	return NormalizeWith(defaultTracking, raw)
}

// NormalizeWith returns the destination URL embedded in a tracking wrapper,
// or raw unchanged when it is clean or the embedded value can't be decoded.
// Nested wrappers are unwrapped until the result is no longer a decodable
// tracking URL, so NormalizeWith(t, NormalizeWith(t, u)) equals
// NormalizeWith(t, u). Every unwrap yields a strictly shorter string, which
// bounds the loop.
func NormalizeWith(t config.Tracking, raw string) string {
	cur := raw
	for {
		next, ok := unwrap(t, cur)
		if !ok || len(next) >= len(cur) {
			return cur
		}
		cur = next
	}
}

// IsTracking reports whether raw carries a tracking marker and an embedded
// destination parameter.
func IsTracking(t config.Tracking, raw string) bool {
	lower := strings.ToLower(raw)
	marked := false
	for _, m := range t.Markers {
		if m != "" && strings.Contains(lower, strings.ToLower(m)) {
			marked = true
			break
		}
	}
	if !marked {
		return false
	}
	for _, p := range t.Params {
		if p != "" && strings.Contains(lower, strings.ToLower(p)+"=") {
			return true
		}
	}
	return false
}

func unwrap(t config.Tracking, raw string) (string, bool) {
	if !IsTracking(t, raw) {
		return "", false
	}
	u, err := url.Parse(raw)
	if err != nil {
		slog.Debug("tracking url unparsable, keeping original", "url", raw, "error", err)
		return "", false
	}
	q := u.Query()
	for _, p := range t.Params {
		if dest, ok := asDestination(q.Get(p)); ok {
			return dest, true
		}
	}
	slog.Debug("tracking url has no decodable destination, keeping original", "url", raw)
	return "", false
}

// asDestination accepts a query value already decoded once and decodes at
// most one more layer until it is an absolute http(s) URL.
func asDestination(v string) (string, bool) {
	if v == "" {
		return "", false
	}
	if isAbsoluteHTTP(v) {
		return v, true
	}
	dec, err := url.QueryUnescape(v)
	if err != nil || dec == v {
		return "", false
	}
	if isAbsoluteHTTP(dec) {
		return dec, true
	}
	return "", false
}

func isAbsoluteHTTP(v string) bool {
	u, err := url.Parse(v)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
