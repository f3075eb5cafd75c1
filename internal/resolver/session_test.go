package resolver

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dgnsrekt/soapstream/internal/config"
	"github.com/dgnsrekt/soapstream/internal/types"
)

func newTestManager(f *fakeDriver, cfg *config.Config, hooks Hooks) *Manager {
	return NewManager(cfg, config.DefaultProfile(), func(context.Context) (Driver, error) {
		return f, nil
	}, hooks)
}

func TestResolveMovieEndToEnd(t *testing.T) {
	dest := "https://cdn.example.com/hls/master.m3u8"
	f := newFakeDriver()
	f.playPresent = 1
	f.onNavigate = func(f *fakeDriver, _ string) {
		f.emitPage(types.PageEvent{TargetID: "popup-1", URL: "https://ads.example/pop"})
	}
	f.onGesture = func(f *fakeDriver, n int) {
		f.emitResponse(types.ResponseEvent{URL: "https://cdn.example.com/hls/seg-0.ts", Status: 200, ContentType: "video/mp2t"})
		if n == 2 {
			f.emitResponse(manifest("http://track.example/ping.gif?mu=" + url.QueryEscape(dest)))
			f.emitResponse(manifest("https://cdn.example.com/hls/other/master.m3u8"))
		}
	}

	var mu sync.Mutex
	var states []State
	var popups []string
	m := newTestManager(f, testConfig(), Hooks{
		OnState: func(_ string, _, to State) {
			mu.Lock()
			states = append(states, to)
			mu.Unlock()
		},
		OnPopupClosed: func(_ string, ev types.PageEvent) {
			mu.Lock()
			popups = append(popups, ev.TargetID)
			mu.Unlock()
		},
	})

	stream, err := m.Resolve(context.Background(), NewTarget("https://site.example/film/some-movie", "Some Movie"))
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if stream.StreamURL != dest {
		t.Fatalf("StreamURL = %q, want %q", stream.StreamURL, dest)
	}
	if !strings.Contains(stream.Candidate.URL, "ping.gif") {
		t.Fatalf("Candidate.URL = %q, want raw tracking url", stream.Candidate.URL)
	}
	if stream.Title != "Some Movie" || stream.SourceLink != "https://site.example/film/some-movie" {
		t.Fatalf("stream = %+v", stream)
	}
	if f.navigated[0] != "https://site.example/film/some-movie#play-now" {
		t.Fatalf("navigated = %v", f.navigated)
	}
	if f.closedCount() != 1 {
		t.Fatalf("driver closed %d times, want 1", f.closedCount())
	}
	if f.subscriberCount() != 0 {
		t.Fatalf("%d subscribers left after resolve", f.subscriberCount())
	}
	mu.Lock()
	defer mu.Unlock()
	if len(popups) != 1 || popups[0] != "popup-1" {
		t.Fatalf("popups closed = %v", popups)
	}
	if states[len(states)-1] != StateCaptured {
		t.Fatalf("final state = %v", states)
	}
}

func TestResolveMoviePassThrough(t *testing.T) {
	direct := "https://cdn.example.com/hls/play.m3u8?token=a%2Fb&expires=1700000000"
	f := newFakeDriver()
	f.onGesture = func(f *fakeDriver, n int) {
		if n == 1 {
			f.emitResponse(types.ResponseEvent{URL: direct, Status: 200, ContentType: "application/vnd.apple.mpegurl"})
		}
	}
	m := newTestManager(f, testConfig(), Hooks{})

	stream, err := m.Resolve(context.Background(), NewTarget("https://site.example/film/other-movie", "Other Movie"))
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if stream.StreamURL != direct || stream.Candidate.URL != direct {
		t.Fatalf("stream = %+v, want %q unchanged", stream, direct)
	}
	if stream.Candidate.Rule != "manifest-content-type" {
		t.Fatalf("Rule = %q", stream.Candidate.Rule)
	}
	if f.closedCount() != 1 {
		t.Fatalf("driver closed %d times, want 1", f.closedCount())
	}
}

func TestResolveSeriesEndToEnd(t *testing.T) {
	dest := "https://cdn.example.com/ep2/playlist.m3u8"
	f := newFakeDriver()
	f.episodes = []string{"ep-1", "ep-2"}
	f.frameSrc = "https://player.example/embed/ep-2"
	f.onNavigate = func(f *fakeDriver, u string) {
		if u == f.frameSrc {
			f.emitResponse(manifest(dest))
		}
	}
	m := newTestManager(f, testConfig(), Hooks{})

	target := NewTarget("https://site.example/tv/some-show", "Some Show").WithEpisode("ep-2")
	stream, err := m.Resolve(context.Background(), target)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if stream.StreamURL != dest || stream.EpisodeID != "ep-2" {
		t.Fatalf("stream = %+v", stream)
	}
	if f.closedCount() != 1 {
		t.Fatalf("driver closed %d times, want 1", f.closedCount())
	}
}

func TestResolveNoStreamTearsDown(t *testing.T) {
	f := newFakeDriver()
	cfg := testConfig()
	cfg.MaxGestureAttempts = 3
	m := newTestManager(f, cfg, Hooks{})

	start := time.Now()
	_, err := m.Resolve(context.Background(), NewTarget("https://site.example/film/nothing", ""))
	if !IsCode(err, CodeNoStream) {
		t.Fatalf("Resolve() error = %v, want %s", err, CodeNoStream)
	}
	if time.Since(start) > cfg.RequestTimeout()+cfg.NavTimeout() {
		t.Fatalf("Resolve() took %s", time.Since(start))
	}
	if f.closedCount() != 1 || f.subscriberCount() != 0 {
		t.Fatalf("teardown incomplete: closes=%d subs=%d", f.closedCount(), f.subscriberCount())
	}
}

func TestResolveTimeoutWhenGesturesNeverFinish(t *testing.T) {
	f := newFakeDriver()
	cfg := testConfig()
	cfg.RequestTimeoutMS = 100
	cfg.GestureWaitMS = 10000
	m := newTestManager(f, cfg, Hooks{})

	start := time.Now()
	_, err := m.Resolve(context.Background(), NewTarget("https://site.example/film/slow", ""))
	if !IsCode(err, CodeNoStream) {
		t.Fatalf("Resolve() error = %v, want %s", err, CodeNoStream)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Fatalf("Resolve() took %s", elapsed)
	}
}

func TestResolveNavigationFailure(t *testing.T) {
	f := newFakeDriver()
	f.navErr = errors.New("net::ERR_NAME_NOT_RESOLVED")
	m := newTestManager(f, testConfig(), Hooks{})
	_, err := m.Resolve(context.Background(), NewTarget("https://site.example/film/x", ""))
	if !IsCode(err, CodeNavigation) {
		t.Fatalf("Resolve() error = %v, want %s", err, CodeNavigation)
	}
	if f.closedCount() != 1 {
		t.Fatalf("driver closed %d times, want 1", f.closedCount())
	}
}

func TestResolveValidation(t *testing.T) {
	opened := false
	m := NewManager(testConfig(), config.DefaultProfile(), func(context.Context) (Driver, error) {
		opened = true
		return newFakeDriver(), nil
	}, Hooks{})
	for _, target := range []Target{
		NewTarget("", ""),
		NewTarget("ftp://site.example/x", ""),
		NewTarget("/film/relative", ""),
		NewTarget("https://site.example/film/x", "").WithServer(-1),
	} {
		if _, err := m.Resolve(context.Background(), target); !IsCode(err, CodeValidation) {
			t.Fatalf("Resolve(%+v) error = %v, want %s", target, err, CodeValidation)
		}
	}
	if opened {
		t.Fatal("browser opened for an invalid target")
	}
}

func TestManagerOpenFailureIsSessionFault(t *testing.T) {
	m := NewManager(testConfig(), config.DefaultProfile(), func(context.Context) (Driver, error) {
		return nil, errors.New("chromium not found")
	}, Hooks{})
	_, err := m.Resolve(context.Background(), NewTarget("https://site.example/film/x", ""))
	if !IsCode(err, CodeSessionFault) {
		t.Fatalf("Resolve() error = %v, want %s", err, CodeSessionFault)
	}
}

func TestWithSessionReleasesOnPanic(t *testing.T) {
	f := newFakeDriver()
	m := newTestManager(f, testConfig(), Hooks{})
	err := m.WithSession(context.Background(), func(*Session) error {
		panic("boom")
	})
	if !IsCode(err, CodeSessionFault) {
		t.Fatalf("WithSession() error = %v, want %s", err, CodeSessionFault)
	}
	if f.closedCount() != 1 || f.subscriberCount() != 0 {
		t.Fatalf("teardown incomplete: closes=%d subs=%d", f.closedCount(), f.subscriberCount())
	}
}

func TestSessionCloseIdempotent(t *testing.T) {
	f := newFakeDriver()
	m := newTestManager(f, testConfig(), Hooks{})
	s, err := m.Open(context.Background())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
	if f.closedCount() != 1 {
		t.Fatalf("driver closed %d times, want 1", f.closedCount())
	}
}

func TestManagerEpisodes(t *testing.T) {
	f := newFakeDriver()
	f.episodes = []string{"1001", "1002", "1003"}
	m := newTestManager(f, testConfig(), Hooks{})
	ids, err := m.Episodes(context.Background(), "https://site.example/tv/some-show")
	if err != nil {
		t.Fatalf("Episodes() error = %v", err)
	}
	if strings.Join(ids, ",") != "1001,1002,1003" {
		t.Fatalf("Episodes() = %v", ids)
	}
	if f.navigated[0] != "https://site.example/tv/some-show#play-now" {
		t.Fatalf("navigated = %v", f.navigated)
	}
}

func TestExpectResponseDuringNavigation(t *testing.T) {
	f := newFakeDriver()
	f.onNavigate = func(f *fakeDriver, _ string) {
		f.emitResponse(types.ResponseEvent{RequestID: "r1", URL: "https://site.example/search?q=a", Status: 200, ContentType: "application/json"})
	}
	m := newTestManager(f, testConfig(), Hooks{})
	err := m.WithSession(context.Background(), func(s *Session) error {
		cand, err := s.ExpectResponse(context.Background(), Heuristics(config.DefaultProfile().SearchRules), time.Second,
			func(ctx context.Context, _ <-chan struct{}) error {
				return s.Navigate(ctx, "https://site.example/search?q=a")
			})
		if err != nil {
			return err
		}
		if cand.RequestID != "r1" || cand.Rule != "search-json" {
			t.Fatalf("candidate = %+v", cand)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithSession() error = %v", err)
	}
}

func TestAwaitMatchingResponseTimesOut(t *testing.T) {
	f := newFakeDriver()
	m := newTestManager(f, testConfig(), Hooks{})
	err := m.WithSession(context.Background(), func(s *Session) error {
		if _, ok := s.AwaitMatchingResponse(context.Background(), Heuristics(config.DefaultProfile().StreamRules), 20*time.Millisecond); ok {
			t.Fatal("AwaitMatchingResponse() matched with no traffic")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithSession() error = %v", err)
	}
}

func TestMergeHooksCallsInOrder(t *testing.T) {
	var calls []string
	h := MergeHooks(
		Hooks{OnState: func(string, State, State) { calls = append(calls, "a") }},
		Hooks{},
		Hooks{
			OnState:    func(string, State, State) { calls = append(calls, "b") },
			OnResolved: func(string, ResolvedStream) { calls = append(calls, "r") },
		},
	)
	h.OnState("s", StateIdle, StateClickingPlay)
	h.OnResolved("s", ResolvedStream{})
	if strings.Join(calls, ",") != "a,b,r" {
		t.Fatalf("calls = %v", calls)
	}
	if h.OnPopupClosed != nil || h.OnResponse != nil {
		t.Fatal("unset hooks should stay nil")
	}
}
