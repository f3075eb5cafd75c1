package cdp

import (
	"context"
	"fmt"
	"sync"
)

// loadTracker records which requests have finished loading so response
// bodies are only fetched once Chrome holds the whole body.
type loadTracker struct {
	mu   sync.Mutex
	reqs map[string]*loadState
}

type loadState struct {
	done chan struct{}
	err  error
}

func newLoadTracker() *loadTracker {
	return &loadTracker{reqs: make(map[string]*loadState)}
}

func (t *loadTracker) state(requestID string) *loadState {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.reqs[requestID]
	if !ok {
		st = &loadState{done: make(chan struct{})}
		t.reqs[requestID] = st
	}
	return st
}

// finish marks requestID loaded. Only the first call has an effect.
func (t *loadTracker) finish(requestID string, err error) {
	st := t.state(requestID)
	t.mu.Lock()
	defer t.mu.Unlock()
	select {
	case <-st.done:
	default:
		st.err = err
		close(st.done)
	}
}

// wait blocks until requestID finished loading or ctx ends.
func (t *loadTracker) wait(ctx context.Context, requestID string) error {
	st := t.state(requestID)
	select {
	case <-st.done:
		t.mu.Lock()
		defer t.mu.Unlock()
		return st.err
	case <-ctx.Done():
		return fmt.Errorf("request %s still loading: %w", requestID, ctx.Err())
	}
}

func (t *loadTracker) reset() {
	t.mu.Lock()
	t.reqs = make(map[string]*loadState)
	t.mu.Unlock()
}
