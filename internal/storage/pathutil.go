package storage

import (
	"net/url"
	"strings"
)

// TransformURLToPathSegment turns a page URL's path into a single
// filesystem-safe segment: "/film/some-movie/" becomes "film_some-movie"
// and an empty path becomes "root".
func TransformURLToPathSegment(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	seg := strings.Trim(parsed.Path, "/")
	if seg == "" {
		return "root", nil
	}
	return sanitize(seg), nil
}

// BrowserIDFromTargetID returns the first 8 chars of a CDP target ID, the
// short form used in logs.
func BrowserIDFromTargetID(targetID string) string {
	if len(targetID) >= 8 {
		return targetID[:8]
	}
	return targetID
}

// SessionFileName maps a session id onto a file name stem. Path separators
// and other unsafe bytes become underscores.
func SessionFileName(sessionID string) string {
	name := sanitize(strings.TrimSpace(sessionID))
	if name == "" || strings.Trim(name, ".") == "" {
		return "session"
	}
	return name
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '.':
			return r
		default:
			return '_'
		}
	}, s)
}
