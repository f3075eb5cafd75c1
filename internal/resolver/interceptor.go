package resolver

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dgnsrekt/soapstream/internal/types"
)

// Interceptor records the first response matching its heuristics. Later
// matches are ignored; the recorded candidate never changes once set.
type Interceptor struct {
	rules Heuristics

	mu      sync.Mutex
	found   bool
	cand    Candidate
	seen    int
	matched chan struct{}
}

func NewInterceptor(rules Heuristics) *Interceptor {
	return &Interceptor{rules: rules, matched: make(chan struct{})}
}

// Handle classifies one response event. It never blocks.
func (i *Interceptor) Handle(ev types.ResponseEvent) {
	rule, ok := i.rules.Match(ev)

	i.mu.Lock()
	defer i.mu.Unlock()
	i.seen++
	if !ok {
		return
	}
	if i.found {
		slog.Debug("interceptor ignoring later match", "url", ev.URL, "rule", rule)
		return
	}
	seenAt := ev.Timestamp
	if seenAt.IsZero() {
		seenAt = time.Now()
	}
	i.found = true
	i.cand = Candidate{
		URL:         ev.URL,
		ContentType: responseContentType(ev),
		Status:      ev.Status,
		RequestID:   ev.RequestID,
		Rule:        rule,
		SeenAt:      seenAt,
	}
	close(i.matched)
	slog.Debug("interceptor matched", "url", ev.URL, "rule", rule, "status", ev.Status)
}

// Matched is closed when the first candidate is recorded.
func (i *Interceptor) Matched() <-chan struct{} { return i.matched }

// Candidate returns the recorded candidate, if any.
func (i *Interceptor) Candidate() (Candidate, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.cand, i.found
}

// Seen returns the number of responses observed.
func (i *Interceptor) Seen() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.seen
}

// Await blocks until a candidate is recorded, timeout elapses or ctx ends.
func (i *Interceptor) Await(ctx context.Context, timeout time.Duration) (Candidate, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-i.matched:
	case <-timer.C:
	case <-ctx.Done():
	}
	return i.Candidate()
}
