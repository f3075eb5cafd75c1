package resolver

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgnsrekt/soapstream/internal/types"
)

const popupCloseTimeout = 2 * time.Second

// PopupSuppressor closes every page other than the main one. Each close runs
// on its own goroutine so the event stream is never blocked, and failures are
// logged rather than propagated.
type PopupSuppressor struct {
	driver   Driver
	mainID   string
	wait     time.Duration
	onClosed func(types.PageEvent)

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	stopped bool
	wg      sync.WaitGroup
	closed  atomic.Int64
}

func NewPopupSuppressor(d Driver, wait time.Duration, onClosed func(types.PageEvent)) *PopupSuppressor {
	ctx, cancel := context.WithCancel(context.Background())
	return &PopupSuppressor{
		driver:   d,
		mainID:   d.MainTargetID(),
		wait:     wait,
		onClosed: onClosed,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Handle schedules a close for ev unless it is the main page.
func (p *PopupSuppressor) Handle(ev types.PageEvent) {
	if ev.TargetID == "" || ev.TargetID == p.mainID {
		return
	}
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.wg.Add(1)
	p.mu.Unlock()

	go p.suppress(ev)
}

func (p *PopupSuppressor) suppress(ev types.PageEvent) {
	defer p.wg.Done()

	waitCtx, cancel := context.WithTimeout(p.ctx, p.wait)
	if err := p.driver.WaitPageLoaded(waitCtx, ev.TargetID); err != nil {
		slog.Debug("popup load wait ended", "target_id", ev.TargetID, "error", err)
	}
	cancel()

	closeCtx, cancel := context.WithTimeout(context.Background(), popupCloseTimeout)
	defer cancel()
	if err := p.driver.ClosePage(closeCtx, ev.TargetID); err != nil {
		slog.Debug("popup close failed", "target_id", ev.TargetID, "url", ev.URL, "error", err)
		return
	}
	p.closed.Add(1)
	slog.Debug("popup closed", "target_id", ev.TargetID, "url", ev.URL)
	if p.onClosed != nil {
		p.onClosed(ev)
	}
}

// Closed returns the number of popups closed so far.
func (p *PopupSuppressor) Closed() int64 { return p.closed.Load() }

// Stop cuts pending load waits short and waits for in-flight closes.
func (p *PopupSuppressor) Stop() {
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()
	p.cancel()
	p.wg.Wait()
}
