package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dgnsrekt/soapstream/internal/config"
	"github.com/dgnsrekt/soapstream/internal/types"
)

// Hooks receive session progress. Every field is optional and handlers must
// not block.
type Hooks struct {
	OnState       func(sessionID string, from, to State)
	OnPopupClosed func(sessionID string, ev types.PageEvent)
	OnResponse    func(sessionID string, ev types.ResponseEvent)
	OnResolved    func(sessionID string, stream ResolvedStream)
	OnClosed      func(sessionID string)
}

// Session owns one browser for its lifetime. The popup suppressor is
// installed before any navigation and all resources are released on Close.
type Session struct {
	id      string
	driver  Driver
	cfg     *config.Config
	profile *config.Profile
	hooks   Hooks
	popups  *PopupSuppressor

	detach    []func()
	closeOnce sync.Once
	closeErr  error
}

func newSession(d Driver, cfg *config.Config, profile *config.Profile, hooks Hooks) *Session {
	s := &Session{
		id:      uuid.NewString(),
		driver:  d,
		cfg:     cfg,
		profile: profile,
		hooks:   hooks,
	}
	s.popups = NewPopupSuppressor(d, cfg.PopupWait(), func(ev types.PageEvent) {
		if s.hooks.OnPopupClosed != nil {
			s.hooks.OnPopupClosed(s.id, ev)
		}
	})
	s.detach = append(s.detach, d.OnPageCreated(s.popups.Handle))
	if hooks.OnResponse != nil {
		s.detach = append(s.detach, d.OnResponse(func(ev types.ResponseEvent) {
			hooks.OnResponse(s.id, ev)
		}))
	}
	return s
}

func (s *Session) ID() string { return s.id }

// PopupsClosed returns the number of secondary pages closed so far.
func (s *Session) PopupsClosed() int64 { return s.popups.Closed() }

// Open navigates the main page to target, appending the play anchor for
// targets without a fragment.
func (s *Session) Open(ctx context.Context, target Target) error {
	if err := target.validate(); err != nil {
		return err
	}
	u := target.URL
	if anchor := s.profile.PlayAnchor; anchor != "" && !strings.Contains(u, "#") {
		u += anchor
	}
	return s.Navigate(ctx, u)
}

// Navigate loads rawURL in the main page within the navigation timeout.
func (s *Session) Navigate(ctx context.Context, rawURL string) error {
	navCtx, cancel := context.WithTimeout(ctx, s.cfg.NavTimeout())
	defer cancel()
	slog.Debug("session navigate", "session_id", s.id, "url", rawURL)
	if err := s.driver.Navigate(navCtx, rawURL); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return newError(CodeNavigation, fmt.Sprintf("page did not load: %s", rawURL), err)
	}
	return nil
}

// EpisodeIDs lists the episode control ids on the current page in page order.
func (s *Session) EpisodeIDs(ctx context.Context) ([]string, error) {
	ids, err := listAttr(ctx, s.driver, s.profile.Selectors.EpisodeList, "id")
	if err != nil {
		return nil, newError(CodeNavigation, "episode list could not be read", err)
	}
	return ids, nil
}

// Action is work run while a response is awaited. captured is closed once a
// matching response has been recorded.
type Action func(ctx context.Context, captured <-chan struct{}) error

// ExpectResponse subscribes an interceptor for rules, runs action, and
// returns the first matching candidate seen within timeout. The subscription
// is in place before action starts and is removed before returning.
func (s *Session) ExpectResponse(ctx context.Context, rules Heuristics, timeout time.Duration, action Action) (Candidate, error) {
	ic := NewInterceptor(rules)
	detach := s.driver.OnResponse(ic.Handle)
	defer detach()

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	actionDone := make(chan error, 1)
	if action == nil {
		close(actionDone)
	} else {
		go func() { actionDone <- action(waitCtx, ic.Matched()) }()
	}

	var actionErr error
	finished := false
	select {
	case <-ic.Matched():
	case actionErr = <-actionDone:
		finished = true
		if actionErr == nil {
			select {
			case <-ic.Matched():
			case <-waitCtx.Done():
			}
		}
	case <-waitCtx.Done():
	}
	cancel()
	if !finished {
		if err := <-actionDone; err != nil {
			actionErr = err
		}
	}

	if cand, ok := ic.Candidate(); ok {
		return cand, nil
	}
	if ctx.Err() != nil {
		return Candidate{}, ctx.Err()
	}
	if actionErr != nil {
		var coded *CodedError
		if errors.As(actionErr, &coded) {
			return Candidate{}, actionErr
		}
		return Candidate{}, newError(CodeNoStream, "no matching response", actionErr)
	}
	return Candidate{}, newError(CodeNoStream, fmt.Sprintf("no matching response within %s (%d responses seen)", timeout, ic.Seen()), nil)
}

// AwaitMatchingResponse waits up to timeout for a response matching rules.
func (s *Session) AwaitMatchingResponse(ctx context.Context, rules Heuristics, timeout time.Duration) (Candidate, bool) {
	cand, err := s.ExpectResponse(ctx, rules, timeout, nil)
	return cand, err == nil
}

// Resolve opens target, unlocks playback and returns the normalized stream.
func (s *Session) Resolve(ctx context.Context, target Target) (ResolvedStream, error) {
	if err := target.validate(); err != nil {
		return ResolvedStream{}, err
	}
	start := time.Now()
	if err := s.Open(ctx, target); err != nil {
		return ResolvedStream{}, err
	}

	trig := NewTrigger(s.driver, TriggerOptionsFrom(s.cfg, s.profile), func(from, to State) {
		slog.Debug("trigger state", "session_id", s.id, "from", from, "to", to)
		if s.hooks.OnState != nil {
			s.hooks.OnState(s.id, from, to)
		}
	})
	cand, err := s.ExpectResponse(ctx, Heuristics(s.profile.StreamRules), s.cfg.RequestTimeout(),
		func(ctx context.Context, captured <-chan struct{}) error {
			return trig.Run(ctx, target, captured)
		})
	if err != nil {
		slog.Warn("stream resolution failed", "session_id", s.id, "url", target.URL, "episode_id", target.EpisodeID, "attempts", trig.Attempts(), "error", err)
		return ResolvedStream{}, err
	}

	stream := ResolvedStream{
		StreamURL:  NormalizeWith(s.profile.Tracking, cand.URL),
		Title:      target.Title,
		SourceLink: target.URL,
		EpisodeID:  target.EpisodeID,
		Candidate:  cand,
	}
	slog.Info("stream resolved",
		"session_id", s.id,
		"url", target.URL,
		"episode_id", target.EpisodeID,
		"rule", cand.Rule,
		"tracking_unwrapped", stream.StreamURL != cand.URL,
		"popups_closed", s.PopupsClosed(),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	if s.hooks.OnResolved != nil {
		s.hooks.OnResolved(s.id, stream)
	}
	return stream, nil
}

// ResponseBody returns the body of a response seen in this session.
func (s *Session) ResponseBody(ctx context.Context, requestID string) ([]byte, error) {
	body, err := s.driver.ResponseBody(ctx, requestID)
	if err != nil {
		return nil, newError(CodeSessionFault, "response body unavailable", err)
	}
	return body, nil
}

// Screenshot captures the main page.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	return s.driver.Screenshot(ctx)
}

// Pages lists the pages known to the session.
func (s *Session) Pages() []types.TabInfo { return s.driver.Pages() }

// Close detaches observers, waits for pending popup closes and shuts the
// browser down. It is safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		for i := len(s.detach) - 1; i >= 0; i-- {
			s.detach[i]()
		}
		s.popups.Stop()
		if err := s.driver.Close(); err != nil {
			s.closeErr = newError(CodeSessionFault, "browser shutdown failed", err)
		}
		if s.hooks.OnClosed != nil {
			s.hooks.OnClosed(s.id)
		}
		slog.Debug("session closed", "session_id", s.id, "popups_closed", s.PopupsClosed())
	})
	return s.closeErr
}

// MergeHooks returns Hooks that call each non-nil handler of hs in order.
func MergeHooks(hs ...Hooks) Hooks {
	var out Hooks
	for _, h := range hs {
		h := h
		if h.OnState != nil {
			prev := out.OnState
			out.OnState = func(id string, from, to State) {
				if prev != nil {
					prev(id, from, to)
				}
				h.OnState(id, from, to)
			}
		}
		if h.OnPopupClosed != nil {
			prev := out.OnPopupClosed
			out.OnPopupClosed = func(id string, ev types.PageEvent) {
				if prev != nil {
					prev(id, ev)
				}
				h.OnPopupClosed(id, ev)
			}
		}
		if h.OnResponse != nil {
			prev := out.OnResponse
			out.OnResponse = func(id string, ev types.ResponseEvent) {
				if prev != nil {
					prev(id, ev)
				}
				h.OnResponse(id, ev)
			}
		}
		if h.OnResolved != nil {
			prev := out.OnResolved
			out.OnResolved = func(id string, stream ResolvedStream) {
				if prev != nil {
					prev(id, stream)
				}
				h.OnResolved(id, stream)
			}
		}
		if h.OnClosed != nil {
			prev := out.OnClosed
			out.OnClosed = func(id string) {
				if prev != nil {
					prev(id)
				}
				h.OnClosed(id)
			}
		}
	}
	return out
}
