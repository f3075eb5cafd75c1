package resolver

import (
	"net/url"
	"strings"
	"time"
)

// Target identifies the page to resolve. It is a value type: copies never
// share state, and the With* helpers return new values.
type Target struct {
	URL         string `json:"url"`
	EpisodeID   string `json:"episode_id,omitempty"`
	Title       string `json:"title,omitempty"`
	ServerIndex int    `json:"server_index"`
}

// NewTarget returns a movie target for rawURL using the first server.
func NewTarget(rawURL, title string) Target {
	return Target{URL: strings.TrimSpace(rawURL), Title: strings.TrimSpace(title)}
}

// WithEpisode returns a copy of t that selects the given episode.
func (t Target) WithEpisode(id string) Target {
	t.EpisodeID = strings.TrimSpace(id)
	return t
}

// WithServer returns a copy of t that selects the server at index.
func (t Target) WithServer(index int) Target {
	t.ServerIndex = index
	return t
}

// IsSeries reports whether an episode must be selected before playback.
func (t Target) IsSeries() bool { return t.EpisodeID != "" }

func (t Target) validate() error {
	if t.URL == "" {
		return newError(CodeValidation, "target url is required", nil)
	}
	u, err := url.Parse(t.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return newError(CodeValidation, "target url must be an absolute http(s) url", err)
	}
	if t.ServerIndex < 0 {
		return newError(CodeValidation, "server index must not be negative", nil)
	}
	return nil
}

// Candidate is a response provisionally believed to carry the media URL.
type Candidate struct {
	URL         string    `json:"url"`
	ContentType string    `json:"content_type,omitempty"`
	Status      int       `json:"status"`
	RequestID   string    `json:"request_id,omitempty"`
	Rule        string    `json:"rule"`
	SeenAt      time.Time `json:"seen_at"`
}

// ResolvedStream is the terminal output of a successful resolution.
type ResolvedStream struct {
	StreamURL  string    `json:"stream_url"`
	Title      string    `json:"title,omitempty"`
	SourceLink string    `json:"source_link"`
	EpisodeID  string    `json:"episode_id,omitempty"`
	Candidate  Candidate `json:"candidate"`
}
