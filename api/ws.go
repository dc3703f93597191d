package api

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/sambitsargam/AeroSwap/events"
)

// Feed pushes bus events to websocket clients so UIs react to state
// transitions instead of polling the status endpoints.
type Feed struct {
	bus      *events.Bus
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

func NewFeed(bus *events.Bus) *Feed {
	return &Feed{
		bus:      bus,
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		clients:  make(map[*websocket.Conn]struct{}),
	}
}

// Start begins forwarding bus events to connected clients.
func (f *Feed) Start() {
	ch, _ := f.bus.Subscribe()
	go func() {
		for event := range ch {
			f.broadcast(event)
		}
	}()
}

func (f *Feed) broadcast(event events.Event) {
	msg, err := json.Marshal(event)
	if err != nil {
		log.WithField("error", err).Warn("failed to marshal event")
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for conn := range f.clients {
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			conn.Close()
			delete(f.clients, conn)
		}
	}
}

// Handler accepts websocket connections.
func (f *Feed) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := f.upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.WithField("error", err).Warn("websocket upgrade failed")
			return
		}

		f.mu.Lock()
		f.clients[conn] = struct{}{}
		f.mu.Unlock()

		go func() {
			defer func() {
				f.mu.Lock()
				delete(f.clients, conn)
				f.mu.Unlock()
				conn.Close()
			}()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	}
}
