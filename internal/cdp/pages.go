package cdp

import (
	"sort"
	"sync"

	"github.com/chromedp/cdproto/target"

	"github.com/dgnsrekt/soapstream/internal/storage"
	"github.com/dgnsrekt/soapstream/internal/types"
)

// PageRegistry maps CDP target IDs to page metadata for one session.
type PageRegistry struct {
	pages map[target.ID]*types.TabInfo
	mu    sync.RWMutex
}

func NewPageRegistry() *PageRegistry {
	return &PageRegistry{pages: make(map[target.ID]*types.TabInfo)}
}

func (r *PageRegistry) Register(targetID target.ID, url string, main bool) (*types.TabInfo, error) {
	pathSegment, err := storage.TransformURLToPathSegment(url)
	if err != nil {
		return nil, err
	}

	info := &types.TabInfo{
		TargetID:    string(targetID),
		URL:         url,
		PathSegment: pathSegment,
		BrowserID:   storage.BrowserIDFromTargetID(string(targetID)),
		Main:        main,
	}

	r.mu.Lock()
	r.pages[targetID] = info
	r.mu.Unlock()

	return info, nil
}

func (r *PageRegistry) Get(targetID target.ID) (*types.TabInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.pages[targetID]
	return info, ok
}

func (r *PageRegistry) GetByStringID(tabID string) (*types.TabInfo, bool) {
	return r.Get(target.ID(tabID))
}

func (r *PageRegistry) Remove(targetID target.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.pages, targetID)
}

func (r *PageRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.pages)
}

// List returns a copy of every page, main page first.
func (r *PageRegistry) List() []types.TabInfo {
	r.mu.RLock()
	out := make([]types.TabInfo, 0, len(r.pages))
	for _, info := range r.pages {
		out = append(out, *info)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Main != out[j].Main {
			return out[i].Main
		}
		return out[i].TargetID < out[j].TargetID
	})
	return out
}
