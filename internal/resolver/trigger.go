package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/dgnsrekt/soapstream/internal/config"
)

// State is a playback trigger phase.
type State int

const (
	StateIdle State = iota
	StateClickingPlay
	StateServerSelecting
	StateGestureSimulating
	StateCaptured
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateClickingPlay:
		return "clicking_play"
	case StateServerSelecting:
		return "server_selecting"
	case StateGestureSimulating:
		return "gesture_simulating"
	case StateCaptured:
		return "captured"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further transitions happen from s.
func (s State) Terminal() bool { return s == StateCaptured || s == StateFailed }

// TriggerOptions tunes the unlock sequence.
type TriggerOptions struct {
	Selectors   config.Selectors
	MaxAttempts int
	GestureWait time.Duration
	FrameWait   time.Duration
	PointerX    float64
	PointerY    float64
}

// TriggerOptionsFrom builds options from runtime config and a site profile.
func TriggerOptionsFrom(cfg *config.Config, profile *config.Profile) TriggerOptions {
	return TriggerOptions{
		Selectors:   profile.Selectors,
		MaxAttempts: cfg.MaxGestureAttempts,
		GestureWait: cfg.GestureWait(),
		FrameWait:   cfg.FrameWait(),
		PointerX:    200,
		PointerY:    200,
	}
}

// Trigger drives a page through the interactions that start playback. All
// interactions share one attempt budget, so a page that never starts
// playback ends in StateFailed.
type Trigger struct {
	driver   Driver
	opts     TriggerOptions
	observer func(from, to State)

	mu       sync.Mutex
	state    State
	attempts int
}

func NewTrigger(d Driver, opts TriggerOptions, observer func(from, to State)) *Trigger {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}
	return &Trigger{driver: d, opts: opts, observer: observer}
}

func (t *Trigger) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Trigger) Attempts() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.attempts
}

func (t *Trigger) setState(to State) {
	t.mu.Lock()
	from := t.state
	t.state = to
	t.mu.Unlock()
	if from != to && t.observer != nil {
		t.observer(from, to)
	}
}

func (t *Trigger) fail(err error) error {
	t.setState(StateFailed)
	return err
}

// spend consumes one attempt from the shared budget.
func (t *Trigger) spend(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return t.fail(newError(CodeNoStream, "playback trigger interrupted", err))
	}
	t.mu.Lock()
	if t.attempts >= t.opts.MaxAttempts {
		n := t.attempts
		t.mu.Unlock()
		return t.fail(newError(CodeNoStream, fmt.Sprintf("playback did not start after %d attempts", n), nil))
	}
	t.attempts++
	t.mu.Unlock()
	return nil
}

func (t *Trigger) captured(captured <-chan struct{}) bool {
	select {
	case <-captured:
		t.setState(StateCaptured)
		return true
	default:
		return false
	}
}

// pause waits d unless the stream is captured or ctx ends first.
func (t *Trigger) pause(ctx context.Context, d time.Duration, captured <-chan struct{}) (bool, error) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-captured:
		t.setState(StateCaptured)
		return true, nil
	case <-ctx.Done():
		if t.captured(captured) {
			return true, nil
		}
		return false, t.fail(newError(CodeNoStream, "playback trigger interrupted", ctx.Err()))
	case <-timer.C:
		return false, nil
	}
}

// Run executes the unlock sequence for target. It returns nil once captured
// is closed, a NAVIGATION_ERROR when a required control is missing, and a
// NO_STREAM_FOUND error when the attempt budget or ctx runs out.
func (t *Trigger) Run(ctx context.Context, target Target, captured <-chan struct{}) error {
	t.mu.Lock()
	t.attempts = 0
	t.mu.Unlock()
	t.setState(StateIdle)

	t.setState(StateClickingPlay)
	for {
		if t.captured(captured) {
			return nil
		}
		if err := t.spend(ctx); err != nil {
			return err
		}
		res, err := clickNth(ctx, t.driver, t.opts.Selectors.PlayNow, 0)
		if res == ClickAbsent {
			break
		}
		if res == ClickFailed {
			slog.Debug("play control click failed", "error", err)
		}
	}

	t.setState(StateServerSelecting)
	if t.captured(captured) {
		return nil
	}
	if err := t.spend(ctx); err != nil {
		return err
	}
	res, err := clickNth(ctx, t.driver, t.opts.Selectors.Server, target.ServerIndex)
	switch res {
	case ClickAbsent:
		return t.fail(newError(CodeNavigation, fmt.Sprintf("server control %d not found", target.ServerIndex), nil))
	case ClickFailed:
		return t.fail(newError(CodeNavigation, fmt.Sprintf("server control %d could not be clicked", target.ServerIndex), err))
	}

	t.setState(StateGestureSimulating)
	if target.IsSeries() {
		return t.runEpisode(ctx, target, captured)
	}
	for {
		if t.captured(captured) {
			return nil
		}
		if err := t.spend(ctx); err != nil {
			return err
		}
		if err := t.gesture(ctx); err != nil {
			slog.Debug("gesture dispatch failed", "error", err)
		}
		done, err := t.pause(ctx, t.opts.GestureWait, captured)
		if done || err != nil {
			return err
		}
	}
}

func (t *Trigger) gesture(ctx context.Context) error {
	x, y := t.opts.PointerX, t.opts.PointerY
	if err := t.driver.MouseMove(ctx, x, y); err != nil {
		return err
	}
	if err := t.driver.MousePress(ctx, x, y); err != nil {
		return err
	}
	if err := t.driver.MouseRelease(ctx, x, y); err != nil {
		return err
	}
	return t.driver.PressKey(ctx, " ")
}

// runEpisode selects the episode, then loads the player frame as the main
// document so the manifest request happens in the observed page.
func (t *Trigger) runEpisode(ctx context.Context, target Target, captured <-chan struct{}) error {
	if t.captured(captured) {
		return nil
	}
	if err := t.spend(ctx); err != nil {
		return err
	}
	res, err := clickNth(ctx, t.driver, episodeSelector(target.EpisodeID), 0)
	switch res {
	case ClickAbsent:
		return t.fail(newError(CodeNavigation, fmt.Sprintf("episode %q not found", target.EpisodeID), nil))
	case ClickFailed:
		return t.fail(newError(CodeNavigation, fmt.Sprintf("episode %q could not be selected", target.EpisodeID), err))
	}

	done, err := t.pause(ctx, t.opts.FrameWait, captured)
	if done || err != nil {
		return err
	}

	src, found, err := readAttr(ctx, t.driver, t.opts.Selectors.PlayerFrame, "src")
	if err != nil {
		return t.fail(newError(CodeNavigation, "player frame could not be read", err))
	}
	if !found || strings.TrimSpace(src) == "" {
		return t.fail(newError(CodeNavigation, "player frame not found", nil))
	}
	frameURL := resolveRef(target.URL, src)
	slog.Debug("loading player frame", "url", frameURL)
	if err := t.driver.Navigate(ctx, frameURL); err != nil {
		if t.captured(captured) {
			return nil
		}
		return t.fail(newError(CodeNavigation, "player frame did not load", err))
	}

	select {
	case <-captured:
		t.setState(StateCaptured)
		return nil
	case <-ctx.Done():
		if t.captured(captured) {
			return nil
		}
		return t.fail(newError(CodeNoStream, "no stream after loading player frame", ctx.Err()))
	}
}

func resolveRef(base, ref string) string {
	ref = strings.TrimSpace(ref)
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}
