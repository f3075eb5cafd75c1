package relay

import (
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
)

const subscriberBufSize = 256

// Event is one engine progress event. Seq increases across all feeds so a
// client can tell when it missed events; Payload is a JSON document.
type Event struct {
	Seq     int64  `json:"seq"`
	Feed    string `json:"feed"`
	Payload string `json:"payload"`
}

// Broker fans events out to SSE and WebSocket subscribers. Publishing never
// waits on a subscriber; a full subscriber buffer drops the event and counts
// it.
type Broker struct {
	mu      sync.RWMutex
	subs    map[int64]chan Event
	nextID  atomic.Int64
	seq     atomic.Int64
	dropped atomic.Int64
}

func NewBroker() *Broker {
	return &Broker{subs: make(map[int64]chan Event)}
}

// Subscribe registers a client and returns its id and a buffered event
// channel. The channel is closed by Unsubscribe.
func (b *Broker) Subscribe() (int64, <-chan Event) {
	id := b.nextID.Add(1)
	ch := make(chan Event, subscriberBufSize)
	b.mu.Lock()
	b.subs[id] = ch
	b.mu.Unlock()
	slog.Debug("relay: subscriber added", "subscriber_id", id)
	return id, ch
}

func (b *Broker) Unsubscribe(id int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
}

// Publish stamps evt with the next sequence number and offers it to every
// subscriber.
func (b *Broker) Publish(evt Event) {
	evt.Seq = b.seq.Add(1)
	b.mu.RLock()
	defer b.mu.RUnlock()
	for id, ch := range b.subs {
		select {
		case ch <- evt:
		default:
			if b.dropped.Add(1)%100 == 1 {
				slog.Warn("relay: slow subscriber, dropping events", "subscriber_id", id, "feed", evt.Feed, "dropped_total", b.dropped.Load())
			}
		}
	}
}

// PublishJSON marshals v and publishes it on feed.
func (b *Broker) PublishJSON(feed string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Warn("relay: marshal event failed", "feed", feed, "error", err)
		return
	}
	b.Publish(Event{Feed: feed, Payload: string(data)})
}

func (b *Broker) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Dropped is the number of events lost to full subscriber buffers.
func (b *Broker) Dropped() int64 { return b.dropped.Load() }
