package resolver

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dgnsrekt/soapstream/internal/config"
)

// FailureRecorder persists diagnostics for a failed resolution.
type FailureRecorder interface {
	RecordFailure(ctx context.Context, s *Session, target Target, cause error)
}

// Manager opens one browser session per operation and guarantees teardown.
type Manager struct {
	cfg     *config.Config
	profile *config.Profile
	open    Opener
	hooks   Hooks
	failure FailureRecorder
}

func NewManager(cfg *config.Config, profile *config.Profile, open Opener, hooks Hooks) *Manager {
	return &Manager{cfg: cfg, profile: profile, open: open, hooks: hooks}
}

// SetFailureRecorder installs a recorder called before a failed session is
// torn down.
func (m *Manager) SetFailureRecorder(r FailureRecorder) { m.failure = r }

func (m *Manager) Config() *config.Config   { return m.cfg }
func (m *Manager) Profile() *config.Profile { return m.profile }

// Open starts a browser session with the popup suppressor installed.
func (m *Manager) Open(ctx context.Context) (*Session, error) {
	d, err := m.open(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, newError(CodeSessionFault, "browser session failed to start", err)
	}
	return newSession(d, m.cfg, m.profile, m.hooks), nil
}

// WithSession runs fn against a fresh session. The session is closed on every
// exit path, including panics in fn.
func (m *Manager) WithSession(ctx context.Context, fn func(*Session) error) (err error) {
	s, err := m.Open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			_ = s.Close()
			err = newError(CodeSessionFault, "session fault", fmt.Errorf("panic: %v", r))
			return
		}
		if cerr := s.Close(); cerr != nil {
			slog.Warn("session close failed", "session_id", s.ID(), "error", cerr)
		}
	}()
	return fn(s)
}

// Resolve runs one resolution in its own session.
func (m *Manager) Resolve(ctx context.Context, target Target) (ResolvedStream, error) {
	if err := target.validate(); err != nil {
		return ResolvedStream{}, err
	}
	var out ResolvedStream
	err := m.WithSession(ctx, func(s *Session) error {
		stream, err := s.Resolve(ctx, target)
		if err != nil {
			if m.failure != nil {
				m.failure.RecordFailure(ctx, s, target, err)
			}
			return err
		}
		out = stream
		return nil
	})
	return out, err
}

// Episodes lists episode ids for a series page, read from the same anchored
// page the playback trigger starts from.
func (m *Manager) Episodes(ctx context.Context, pageURL string) ([]string, error) {
	target := NewTarget(pageURL, "")
	if err := target.validate(); err != nil {
		return nil, err
	}
	var ids []string
	err := m.WithSession(ctx, func(s *Session) error {
		if err := s.Open(ctx, target); err != nil {
			return err
		}
		got, err := s.EpisodeIDs(ctx)
		ids = got
		return err
	})
	return ids, err
}
