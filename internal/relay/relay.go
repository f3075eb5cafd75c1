package relay

import (
	"log/slog"
	"time"

	"github.com/dgnsrekt/soapstream/internal/resolver"
	"github.com/dgnsrekt/soapstream/internal/types"
)

type feedInfo struct {
	stateFilter map[string]bool // nil means accept all
}

// Relay turns engine progress callbacks into broker events.
type Relay struct {
	broker *Broker
	feeds  map[string]feedInfo
}

// NewRelay creates a relay publishing the feeds enabled in cfg.
func NewRelay(cfg *RelayConfig, broker *Broker) *Relay {
	r := &Relay{broker: broker, feeds: make(map[string]feedInfo, len(cfg.Feeds))}
	for _, f := range cfg.Feeds {
		info := feedInfo{}
		if len(f.States) > 0 {
			info.stateFilter = make(map[string]bool, len(f.States))
			for _, s := range f.States {
				info.stateFilter[s] = true
			}
		}
		r.feeds[f.Name] = info
	}
	slog.Info("relay configured", "feeds", len(r.feeds))
	return r
}

type stateEvent struct {
	SessionID string    `json:"session_id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Terminal  bool      `json:"terminal"`
	At        time.Time `json:"at"`
}

type popupEvent struct {
	SessionID string `json:"session_id"`
	TargetID  string `json:"target_id"`
	URL       string `json:"url"`
}

type streamEvent struct {
	SessionID string                  `json:"session_id"`
	Stream    resolver.ResolvedStream `json:"stream"`
}

// Hooks returns engine callbacks that publish to the broker.
func (r *Relay) Hooks() resolver.Hooks {
	return resolver.Hooks{
		OnState:       r.onState,
		OnPopupClosed: r.onPopupClosed,
		OnResolved:    r.onResolved,
	}
}

func (r *Relay) onState(sessionID string, from, to resolver.State) {
	info, ok := r.feeds[FeedState]
	if !ok {
		return
	}
	if info.stateFilter != nil && !info.stateFilter[to.String()] {
		return
	}
	r.broker.PublishJSON(FeedState, stateEvent{
		SessionID: sessionID,
		From:      from.String(),
		To:        to.String(),
		Terminal:  to.Terminal(),
		At:        time.Now().UTC(),
	})
}

func (r *Relay) onPopupClosed(sessionID string, ev types.PageEvent) {
	if _, ok := r.feeds[FeedPopup]; !ok {
		return
	}
	r.broker.PublishJSON(FeedPopup, popupEvent{SessionID: sessionID, TargetID: ev.TargetID, URL: ev.URL})
}

func (r *Relay) onResolved(sessionID string, stream resolver.ResolvedStream) {
	if _, ok := r.feeds[FeedStream]; !ok {
		return
	}
	r.broker.PublishJSON(FeedStream, streamEvent{SessionID: sessionID, Stream: stream})
}
