package relay

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

type wsFrame struct {
	Seq  int64           `json:"seq"`
	Feed string          `json:"feed"`
	Data json.RawMessage `json:"data"`
}

// WSHandler streams relay events over a WebSocket as {"seq","feed","data"} text
// frames. Clients may filter feeds via ?feeds=name1,name2.
func WSHandler(broker *Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter := parseFeeds(r.URL.Query().Get("feeds"))

		conn, _, _, err := ws.UpgradeHTTP(r, w)
		if err != nil {
			slog.Debug("relay: ws upgrade failed", "error", err)
			return
		}
		defer conn.Close()

		id, ch := broker.Subscribe()
		defer broker.Unsubscribe(id)

		// Reader goroutine only watches for the client going away.
		gone := make(chan struct{})
		go func() {
			defer close(gone)
			for {
				if _, _, err := wsutil.ReadClientData(conn); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case <-gone:
				return
			case <-r.Context().Done():
				return
			case evt, ok := <-ch:
				if !ok {
					return
				}
				if !filter.allows(evt.Feed) {
					continue
				}
				data, err := json.Marshal(wsFrame{Seq: evt.Seq, Feed: evt.Feed, Data: json.RawMessage(evt.Payload)})
				if err != nil {
					continue
				}
				if err := wsutil.WriteServerText(conn, data); err != nil {
					slog.Debug("relay: ws write failed", "error", err)
					return
				}
			}
		}
	}
}
