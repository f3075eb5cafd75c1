package resolver

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dgnsrekt/soapstream/internal/config"
)

func testTriggerOptions(max int) TriggerOptions {
	return TriggerOptions{
		Selectors:   config.DefaultProfile().Selectors,
		MaxAttempts: max,
		GestureWait: time.Millisecond,
		FrameWait:   time.Millisecond,
		PointerX:    200,
		PointerY:    200,
	}
}

func movieTarget() Target {
	return NewTarget("https://site.example/film/some-movie", "Some Movie")
}

func TestTriggerAttemptBudgetBounded(t *testing.T) {
	f := newFakeDriver()
	trig := NewTrigger(f, testTriggerOptions(4), nil)

	err := trig.Run(context.Background(), movieTarget(), make(chan struct{}))
	if !IsCode(err, CodeNoStream) {
		t.Fatalf("Run() error = %v, want %s", err, CodeNoStream)
	}
	if trig.State() != StateFailed {
		t.Fatalf("State() = %s, want failed", trig.State())
	}
	if trig.Attempts() != 4 {
		t.Fatalf("Attempts() = %d, want 4", trig.Attempts())
	}
	if f.gestures != 2 {
		t.Fatalf("gestures = %d, want 2", f.gestures)
	}
}

func TestTriggerStopsOnceCaptured(t *testing.T) {
	f := newFakeDriver()
	captured := make(chan struct{})
	f.onGesture = func(_ *fakeDriver, n int) {
		if n == 2 {
			close(captured)
		}
	}
	var mu sync.Mutex
	var seen []State
	trig := NewTrigger(f, testTriggerOptions(10), func(_, to State) {
		mu.Lock()
		seen = append(seen, to)
		mu.Unlock()
	})

	if err := trig.Run(context.Background(), movieTarget(), captured); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if f.gestures != 2 {
		t.Fatalf("gestures = %d, want 2", f.gestures)
	}
	if f.keys[0] != " " {
		t.Fatalf("key = %q, want space", f.keys[0])
	}
	want := []State{StateClickingPlay, StateServerSelecting, StateGestureSimulating, StateCaptured}
	mu.Lock()
	defer mu.Unlock()
	if len(seen) != len(want) {
		t.Fatalf("transitions = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("transitions = %v, want %v", seen, want)
		}
	}
}

func TestTriggerClicksPlayUntilAbsent(t *testing.T) {
	f := newFakeDriver()
	f.playPresent = 2
	captured := make(chan struct{})
	f.onGesture = func(_ *fakeDriver, _ int) { close(captured) }

	trig := NewTrigger(f, testTriggerOptions(10), nil)
	if err := trig.Run(context.Background(), movieTarget(), captured); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if f.playLookups != 3 {
		t.Fatalf("play lookups = %d, want 3", f.playLookups)
	}
	if trig.Attempts() != 5 {
		t.Fatalf("Attempts() = %d, want 5", trig.Attempts())
	}
}

func TestTriggerAlreadyCapturedSkipsInteraction(t *testing.T) {
	f := newFakeDriver()
	captured := make(chan struct{})
	close(captured)
	trig := NewTrigger(f, testTriggerOptions(10), nil)
	if err := trig.Run(context.Background(), movieTarget(), captured); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if trig.Attempts() != 0 || f.playLookups != 0 {
		t.Fatalf("interaction after capture: attempts=%d lookups=%d", trig.Attempts(), f.playLookups)
	}
	if trig.State() != StateCaptured {
		t.Fatalf("State() = %s", trig.State())
	}
}

func TestTriggerMissingServerIsNavigationError(t *testing.T) {
	f := newFakeDriver()
	trig := NewTrigger(f, testTriggerOptions(10), nil)
	err := trig.Run(context.Background(), movieTarget().WithServer(3), make(chan struct{}))
	if !IsCode(err, CodeNavigation) {
		t.Fatalf("Run() error = %v, want %s", err, CodeNavigation)
	}
	if trig.State() != StateFailed {
		t.Fatalf("State() = %s", trig.State())
	}
}

func TestTriggerContextCancelled(t *testing.T) {
	f := newFakeDriver()
	opts := testTriggerOptions(1000)
	opts.GestureWait = time.Second
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	trig := NewTrigger(f, opts, nil)
	err := trig.Run(ctx, movieTarget(), make(chan struct{}))
	if !IsCode(err, CodeNoStream) {
		t.Fatalf("Run() error = %v, want %s", err, CodeNoStream)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Run() error = %v, want wrapped deadline", err)
	}
}

func TestTriggerEpisodeLoadsPlayerFrame(t *testing.T) {
	f := newFakeDriver()
	f.episodes = []string{"ep-1", "ep-2"}
	f.frameSrc = "/embed/ep-2?autoplay=1"
	captured := make(chan struct{})
	f.onNavigate = func(_ *fakeDriver, url string) {
		if url == "https://site.example/embed/ep-2?autoplay=1" {
			close(captured)
		}
	}

	trig := NewTrigger(f, testTriggerOptions(10), nil)
	target := NewTarget("https://site.example/tv/some-show", "Some Show").WithEpisode("ep-2")
	if err := trig.Run(context.Background(), target, captured); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if f.gestures != 0 {
		t.Fatalf("series pass used %d movie gestures", f.gestures)
	}
}

func TestTriggerEpisodeMissing(t *testing.T) {
	f := newFakeDriver()
	f.episodes = []string{"ep-1"}
	trig := NewTrigger(f, testTriggerOptions(10), nil)
	target := NewTarget("https://site.example/tv/some-show", "").WithEpisode("ep-9")
	err := trig.Run(context.Background(), target, make(chan struct{}))
	if !IsCode(err, CodeNavigation) {
		t.Fatalf("Run() error = %v, want %s", err, CodeNavigation)
	}
}

func TestTriggerPlayerFrameMissing(t *testing.T) {
	f := newFakeDriver()
	f.episodes = []string{"ep-1"}
	trig := NewTrigger(f, testTriggerOptions(10), nil)
	target := NewTarget("https://site.example/tv/some-show", "").WithEpisode("ep-1")
	err := trig.Run(context.Background(), target, make(chan struct{}))
	if !IsCode(err, CodeNavigation) {
		t.Fatalf("Run() error = %v, want %s", err, CodeNavigation)
	}
}
