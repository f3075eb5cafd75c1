package resolver

import (
	"context"
	"testing"
	"time"

	"github.com/dgnsrekt/soapstream/internal/config"
	"github.com/dgnsrekt/soapstream/internal/types"
)

func TestInterceptorFirstMatchWins(t *testing.T) {
	ic := NewInterceptor(Heuristics(config.DefaultProfile().StreamRules))
	ic.Handle(types.ResponseEvent{URL: "https://cdn.x/seg.ts", Status: 200})
	ic.Handle(manifest("https://cdn.x/first/master.m3u8"))
	ic.Handle(manifest("https://cdn.x/second/master.m3u8"))

	select {
	case <-ic.Matched():
	default:
		t.Fatal("Matched() not closed after a match")
	}
	cand, ok := ic.Candidate()
	if !ok || cand.URL != "https://cdn.x/first/master.m3u8" {
		t.Fatalf("Candidate() = %+v, %v", cand, ok)
	}
	if cand.Rule != "manifest-content-type" {
		t.Fatalf("rule = %q", cand.Rule)
	}
	if ic.Seen() != 3 {
		t.Fatalf("Seen() = %d, want 3", ic.Seen())
	}
}

func TestInterceptorAwaitTimeout(t *testing.T) {
	ic := NewInterceptor(Heuristics(config.DefaultProfile().StreamRules))
	start := time.Now()
	if _, ok := ic.Await(context.Background(), 30*time.Millisecond); ok {
		t.Fatal("Await() matched with no responses")
	}
	if time.Since(start) > time.Second {
		t.Fatal("Await() overran its timeout")
	}
}

func TestInterceptorAwaitReturnsOnMatch(t *testing.T) {
	ic := NewInterceptor(Heuristics(config.DefaultProfile().StreamRules))
	go func() {
		time.Sleep(10 * time.Millisecond)
		ic.Handle(manifest("https://cdn.x/master.m3u8"))
	}()
	cand, ok := ic.Await(context.Background(), 2*time.Second)
	if !ok || cand.URL != "https://cdn.x/master.m3u8" {
		t.Fatalf("Await() = %+v, %v", cand, ok)
	}
}
