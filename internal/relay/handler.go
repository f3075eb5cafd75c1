package relay

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// sseKeepalive is how often an idle SSE stream gets a comment line, so
// proxies do not close it between resolves.
var sseKeepalive = 15 * time.Second

// SSEHandler streams broker events as server-sent events. Each event carries
// its sequence number as the SSE id. ?feeds=state,stream limits the feeds.
func SSEHandler(broker *Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming not supported", http.StatusInternalServerError)
			return
		}
		filter := parseFeeds(r.URL.Query().Get("feeds"))

		h := w.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		h.Set("X-Accel-Buffering", "no")
		flusher.Flush()

		id, ch := broker.Subscribe()
		defer broker.Unsubscribe(id)

		ping := time.NewTicker(sseKeepalive)
		defer ping.Stop()
		for {
			select {
			case <-r.Context().Done():
				return
			case <-ping.C:
				fmt.Fprint(w, ": keepalive\n\n")
				flusher.Flush()
			case evt, ok := <-ch:
				if !ok {
					return
				}
				if !filter.allows(evt.Feed) {
					continue
				}
				fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", evt.Seq, evt.Feed, evt.Payload)
				flusher.Flush()
			}
		}
	}
}

// feedFilter is a set of feed names; nil allows every feed.
type feedFilter map[string]bool

func (f feedFilter) allows(feed string) bool { return f == nil || f[feed] }

func parseFeeds(q string) feedFilter {
	var f feedFilter
	for _, name := range strings.Split(q, ",") {
		if name = strings.TrimSpace(name); name != "" {
			if f == nil {
				f = make(feedFilter)
			}
			f[name] = true
		}
	}
	return f
}
