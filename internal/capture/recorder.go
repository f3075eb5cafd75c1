// Package capture records the network responses each resolver session
// observes as JSONL, one file per session.
package capture

import (
	"log/slog"
	"time"

	"github.com/dgnsrekt/soapstream/internal/config"
	"github.com/dgnsrekt/soapstream/internal/resolver"
	"github.com/dgnsrekt/soapstream/internal/storage"
	"github.com/dgnsrekt/soapstream/internal/types"
)

const (
	group = "sessions/responses"

	// DefaultMaxURLBytes bounds recorded URLs; longer ones keep a hash.
	DefaultMaxURLBytes = 2048
)

// Record kinds.
const (
	KindResponse = "response"
	KindResolved = "resolved"
)

// Record is one JSONL line.
type Record struct {
	Kind            string    `json:"kind"`
	Timestamp       time.Time `json:"timestamp"`
	SessionID       string    `json:"session_id"`
	RequestID       string    `json:"request_id,omitempty"`
	TargetID        string    `json:"target_id,omitempty"`
	URL             string    `json:"url"`
	URLTruncated    bool      `json:"url_truncated,omitempty"`
	URLOriginalSize int       `json:"url_original_size,omitempty"`
	URLSHA256       string    `json:"url_sha256,omitempty"`
	Status          int       `json:"status,omitempty"`
	MimeType        string    `json:"mime_type,omitempty"`
	ContentType     string    `json:"content_type,omitempty"`
	ResourceType    string    `json:"resource_type,omitempty"`
	Tracking        bool      `json:"tracking,omitempty"`
	Rule            string    `json:"rule,omitempty"`
	StreamURL       string    `json:"stream_url,omitempty"`
	Title           string    `json:"title,omitempty"`
	EpisodeID       string    `json:"episode_id,omitempty"`
}

// Recorder turns session hooks into JSONL records.
type Recorder struct {
	registry    *storage.WriterRegistry
	heuristics  resolver.Heuristics
	tracking    config.Tracking
	maxURLBytes int
}

// NewRecorder writes under dir/<date>/sessions/responses/<session>.jsonl.
func NewRecorder(dir string, bufferSize, maxSizeMB int, profile *config.Profile) *Recorder {
	if profile == nil {
		profile = config.DefaultProfile()
	}
	return &Recorder{
		registry:    storage.NewWriterRegistry(dir, bufferSize, maxSizeMB),
		heuristics:  resolver.Heuristics(profile.StreamRules),
		tracking:    profile.Tracking,
		maxURLBytes: DefaultMaxURLBytes,
	}
}

// Hooks returns session hooks that feed the recorder.
func (r *Recorder) Hooks() resolver.Hooks {
	return resolver.Hooks{
		OnResponse: r.recordResponse,
		OnResolved: r.recordResolved,
		OnClosed:   r.release,
	}
}

func (r *Recorder) recordResponse(sessionID string, ev types.ResponseEvent) {
	rec := Record{
		Kind:         KindResponse,
		Timestamp:    ev.Timestamp,
		SessionID:    sessionID,
		RequestID:    ev.RequestID,
		TargetID:     ev.TargetID,
		Status:       ev.Status,
		MimeType:     ev.MimeType,
		ContentType:  ev.ContentType,
		ResourceType: ev.ResourceType,
		Tracking:     resolver.IsTracking(r.tracking, ev.URL),
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	if rule, ok := r.heuristics.Match(ev); ok {
		rec.Rule = rule
	}
	r.setURL(&rec, ev.URL)
	r.write(sessionID, rec)
}

func (r *Recorder) recordResolved(sessionID string, stream resolver.ResolvedStream) {
	rec := Record{
		Kind:      KindResolved,
		Timestamp: time.Now(),
		SessionID: sessionID,
		RequestID: stream.Candidate.RequestID,
		Rule:      stream.Candidate.Rule,
		StreamURL: stream.StreamURL,
		Title:     stream.Title,
		EpisodeID: stream.EpisodeID,
		Tracking:  stream.StreamURL != stream.Candidate.URL,
	}
	r.setURL(&rec, stream.Candidate.URL)
	r.write(sessionID, rec)
}

func (r *Recorder) setURL(rec *Record, raw string) {
	d := digestURL(raw, r.maxURLBytes)
	rec.URL = d.Value
	if d.Truncated {
		rec.URLTruncated = true
		rec.URLOriginalSize = d.Size
		rec.URLSHA256 = d.SHA256
	}
}

func (r *Recorder) write(sessionID string, rec Record) {
	w, ok := r.registry.GetWriter(group, sessionID)
	if !ok {
		slog.Debug("capture record after session close ignored", "session_id", sessionID, "kind", rec.Kind)
		return
	}
	if err := w.Write(rec); err != nil {
		slog.Debug("capture record dropped", "session_id", sessionID, "error", err)
	}
}

func (r *Recorder) release(sessionID string) {
	if err := r.registry.Release(group, sessionID); err != nil {
		slog.Warn("capture writer close failed", "session_id", sessionID, "error", err)
	}
}

// Close flushes every open session file.
func (r *Recorder) Close() error {
	return r.registry.Close()
}
