package resolver

import (
	"context"

	"github.com/dgnsrekt/soapstream/internal/types"
)

// Driver is the browser surface the engine needs. The production
// implementation is cdp.Client; tests use an in-memory fake.
type Driver interface {
	// MainTargetID identifies the one page treated as main for the session.
	MainTargetID() string

	// Navigate loads url in the main page and waits for the load event.
	Navigate(ctx context.Context, url string) error

	// Evaluate runs a JS expression in the main page and returns its
	// string result.
	Evaluate(ctx context.Context, expr string) (string, error)

	MouseMove(ctx context.Context, x, y float64) error
	MousePress(ctx context.Context, x, y float64) error
	MouseRelease(ctx context.Context, x, y float64) error
	PressKey(ctx context.Context, key string) error

	// WaitPageLoaded blocks until a secondary page reaches a minimal load
	// state or ctx ends.
	WaitPageLoaded(ctx context.Context, targetID string) error
	ClosePage(ctx context.Context, targetID string) error

	// OnResponse and OnPageCreated register observers and return a detach
	// func. Handlers run on the driver's event goroutine and must not block.
	OnResponse(fn func(types.ResponseEvent)) (detach func())
	OnPageCreated(fn func(types.PageEvent)) (detach func())

	ResponseBody(ctx context.Context, requestID string) ([]byte, error)
	Screenshot(ctx context.Context) ([]byte, error)

	// Pages lists the pages known to the session, main page first.
	Pages() []types.TabInfo

	// Close releases the browser and every page. Safe to call twice.
	Close() error
}

// Opener starts a browser and returns its driver.
type Opener func(ctx context.Context) (Driver, error)
