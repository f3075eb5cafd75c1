package cdp

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	cdpproto "github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"

	"github.com/dgnsrekt/soapstream/internal/storage"
	"github.com/dgnsrekt/soapstream/internal/types"
)

const pagePollInterval = 100 * time.Millisecond

// Allocator produces a chromedp allocator context for one session.
type Allocator func(parent context.Context) (context.Context, context.CancelFunc)

// Client drives one browser page over CDP and fans out its network and
// target events to subscribers.
type Client struct {
	registry    *PageRegistry
	loads       *loadTracker
	ownsBrowser bool

	allocCancel context.CancelFunc
	tabCtx      context.Context
	tabCancel   context.CancelFunc

	mu       sync.Mutex
	mainID   target.ID
	nextSub  int
	respSubs map[int]func(types.ResponseEvent)
	pageSubs map[int]func(types.PageEvent)

	closeOnce sync.Once
}

// Open starts a browser through alloc and attaches to its first page. When
// ownsBrowser is false the browser is shared, so only pages opened by the
// main page are reported as popups.
func Open(ctx context.Context, alloc Allocator, ownsBrowser bool) (*Client, error) {
	allocCtx, allocCancel := alloc(context.Background())
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	c := &Client{
		registry:    NewPageRegistry(),
		loads:       newLoadTracker(),
		ownsBrowser: ownsBrowser,
		allocCancel: allocCancel,
		tabCtx:      tabCtx,
		tabCancel:   tabCancel,
		respSubs:    make(map[int]func(types.ResponseEvent)),
		pageSubs:    make(map[int]func(types.PageEvent)),
	}
	chromedp.ListenTarget(tabCtx, c.onTargetEvent)
	chromedp.ListenBrowser(tabCtx, c.onBrowserEvent)

	errCh := make(chan error, 1)
	go func() {
		errCh <- chromedp.Run(tabCtx,
			network.Enable(),
			network.SetCacheDisabled(true),
			page.Enable(),
			chromedp.ActionFunc(func(ctx context.Context) error {
				cc := chromedp.FromContext(ctx)
				c.mu.Lock()
				c.mainID = cc.Target.TargetID
				c.mu.Unlock()
				return target.SetDiscoverTargets(true).Do(cdpproto.WithExecutor(ctx, cc.Browser))
			}),
		)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to start browser session: %w", err)
		}
	case <-ctx.Done():
		c.Close()
		<-errCh
		return nil, ctx.Err()
	}

	main := c.MainTargetID()
	if _, err := c.registry.Register(target.ID(main), "about:blank", true); err != nil {
		slog.Debug("register main page failed", "target_id", main, "error", err)
	}
	slog.Info("browser session attached", "target_id", main, "browser_id", storage.BrowserIDFromTargetID(main), "owns_browser", ownsBrowser)
	return c, nil
}

// run executes actions on the main page, honouring ctx cancellation without
// tearing the page down.
func (c *Client) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(c.tabCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// runBrowser executes fn against the browser-level executor.
func (c *Client) runBrowser(ctx context.Context, fn func(ctx context.Context) error) error {
	return c.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return fn(cdpproto.WithExecutor(ctx, chromedp.FromContext(ctx).Browser))
	}))
}

func (c *Client) MainTargetID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return string(c.mainID)
}

func (c *Client) Navigate(ctx context.Context, url string) error {
	return c.run(ctx, chromedp.Navigate(url))
}

func (c *Client) Evaluate(ctx context.Context, expr string) (string, error) {
	var out string
	if err := c.run(ctx, chromedp.Evaluate(expr, &out)); err != nil {
		return "", err
	}
	return out, nil
}

func (c *Client) MouseMove(ctx context.Context, x, y float64) error {
	return c.run(ctx, chromedp.MouseEvent(input.MouseMoved, x, y))
}

func (c *Client) MousePress(ctx context.Context, x, y float64) error {
	return c.run(ctx, chromedp.MouseEvent(input.MousePressed, x, y, chromedp.ButtonLeft, chromedp.ClickCount(1)))
}

func (c *Client) MouseRelease(ctx context.Context, x, y float64) error {
	return c.run(ctx, chromedp.MouseEvent(input.MouseReleased, x, y, chromedp.ButtonLeft, chromedp.ClickCount(1)))
}

func (c *Client) PressKey(ctx context.Context, key string) error {
	return c.run(ctx, chromedp.KeyEvent(key))
}

// WaitPageLoaded polls the target until it has navigated away from the
// initial blank document.
func (c *Client) WaitPageLoaded(ctx context.Context, targetID string) error {
	ticker := time.NewTicker(pagePollInterval)
	defer ticker.Stop()
	for {
		var info *target.Info
		err := c.runBrowser(ctx, func(ctx context.Context) error {
			var err error
			info, err = target.GetTargetInfo().WithTargetID(target.ID(targetID)).Do(ctx)
			return err
		})
		if err != nil {
			return err
		}
		if info != nil && info.URL != "" && info.URL != "about:blank" {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) ClosePage(ctx context.Context, targetID string) error {
	if targetID == c.MainTargetID() {
		return fmt.Errorf("refusing to close main page %s", targetID)
	}
	err := c.runBrowser(ctx, func(ctx context.Context) error {
		return target.CloseTarget(target.ID(targetID)).Do(ctx)
	})
	if err == nil {
		c.registry.Remove(target.ID(targetID))
	}
	return err
}

func (c *Client) OnResponse(fn func(types.ResponseEvent)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSub
	c.nextSub++
	c.respSubs[id] = fn
	return func() {
		c.mu.Lock()
		delete(c.respSubs, id)
		c.mu.Unlock()
	}
}

func (c *Client) OnPageCreated(fn func(types.PageEvent)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSub
	c.nextSub++
	c.pageSubs[id] = fn
	return func() {
		c.mu.Lock()
		delete(c.pageSubs, id)
		c.mu.Unlock()
	}
}

// ResponseBody waits for the request to finish loading, then fetches its
// body. Bodies requested on responseReceived alone are usually not there yet.
func (c *Client) ResponseBody(ctx context.Context, requestID string) ([]byte, error) {
	if err := c.loads.wait(ctx, requestID); err != nil {
		return nil, err
	}
	var body []byte
	err := c.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		body, err = network.GetResponseBody(network.RequestID(requestID)).Do(ctx)
		return err
	}))
	return body, err
}

func (c *Client) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := c.run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, err
	}
	return buf, nil
}

// Pages lists the pages known to this session, main page first.
func (c *Client) Pages() []types.TabInfo {
	return c.registry.List()
}

func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.respSubs = make(map[int]func(types.ResponseEvent))
		c.pageSubs = make(map[int]func(types.PageEvent))
		c.mu.Unlock()

		c.tabCancel()
		c.allocCancel()
		c.loads.reset()
		slog.Debug("browser session closed", "target_id", c.MainTargetID(), "pages", c.registry.Count())
	})
	return nil
}

func (c *Client) onTargetEvent(ev interface{}) {
	switch e := ev.(type) {
	case *network.EventResponseReceived:
		if e.Response == nil {
			return
		}
		c.emitResponse(responseEvent(c.MainTargetID(), e))
	case *network.EventLoadingFinished:
		c.loads.finish(string(e.RequestID), nil)
	case *network.EventLoadingFailed:
		c.loads.finish(string(e.RequestID), fmt.Errorf("request %s failed: %s", e.RequestID, e.ErrorText))
	case *page.EventFrameNavigated:
		if e.Frame == nil || e.Frame.ParentID != "" {
			return
		}
		main := c.MainTargetID()
		if info, err := c.registry.Register(target.ID(main), e.Frame.URL, true); err == nil {
			slog.Debug("main page navigated", "target_id", main, "path_segment", info.PathSegment, "url", truncateURL(e.Frame.URL))
		}
	}
}

func (c *Client) onBrowserEvent(ev interface{}) {
	switch e := ev.(type) {
	case *target.EventTargetCreated:
		info := e.TargetInfo
		main := target.ID(c.MainTargetID())
		if info == nil || info.Type != "page" || main == "" || info.TargetID == main {
			return
		}
		if !c.ownsBrowser && info.OpenerID != main {
			return
		}
		if _, err := c.registry.Register(info.TargetID, info.URL, false); err != nil {
			slog.Debug("register popup failed", "target_id", info.TargetID, "error", err)
		}
		c.emitPage(types.PageEvent{
			TargetID:  string(info.TargetID),
			OpenerID:  string(info.OpenerID),
			URL:       info.URL,
			CreatedAt: time.Now(),
		})
	case *target.EventTargetDestroyed:
		c.registry.Remove(e.TargetID)
	}
}

func (c *Client) emitResponse(ev types.ResponseEvent) {
	c.mu.Lock()
	subs := make([]func(types.ResponseEvent), 0, len(c.respSubs))
	for _, fn := range c.respSubs {
		subs = append(subs, fn)
	}
	c.mu.Unlock()
	for _, fn := range subs {
		fn(ev)
	}
}

func (c *Client) emitPage(ev types.PageEvent) {
	c.mu.Lock()
	subs := make([]func(types.PageEvent), 0, len(c.pageSubs))
	for _, fn := range c.pageSubs {
		subs = append(subs, fn)
	}
	c.mu.Unlock()
	for _, fn := range subs {
		fn(ev)
	}
}

func responseEvent(targetID string, e *network.EventResponseReceived) types.ResponseEvent {
	headers := make(map[string]string, len(e.Response.Headers))
	for k, v := range e.Response.Headers {
		headers[strings.ToLower(k)] = fmt.Sprint(v)
	}
	return types.ResponseEvent{
		RequestID:    string(e.RequestID),
		TargetID:     targetID,
		URL:          e.Response.URL,
		Status:       int(e.Response.Status),
		MimeType:     e.Response.MimeType,
		ContentType:  headers["content-type"],
		ResourceType: e.Type.String(),
		Headers:      headers,
		Timestamp:    time.Now(),
	}
}

func truncateURL(url string) string {
	if len(url) > 120 {
		return url[:120] + "..."
	}
	return url
}
