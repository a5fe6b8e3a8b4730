// Package ws streams session events to websocket observers.
package ws

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/btouchard/recents/internal/notify"
)

type client struct {
	conn *websocket.Conn
	send chan []byte
}

func newClient(conn *websocket.Conn, buffer int) *client {
	c := &client{
		conn: conn,
		send: make(chan []byte, buffer),
	}
	go c.writePump()
	return c
}

func (c *client) writePump() {
	defer func() { _ = c.conn.Close() }()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func (c *client) close() {
	close(c.send)
}

// Broadcaster fans session events out to connected websocket clients.
// It implements notify.Notifier and never blocks the caller: a client whose
// send buffer is full is disconnected.
type Broadcaster struct {
	mu      sync.RWMutex
	clients map[*client]bool

	buffer   int
	upgrader websocket.Upgrader
}

// NewBroadcaster creates a Broadcaster with a per-client send buffer.
func NewBroadcaster(buffer int) *Broadcaster {
	if buffer < 1 {
		buffer = 64
	}
	return &Broadcaster{
		clients: make(map[*client]bool),
		buffer:  buffer,
		upgrader: websocket.Upgrader{
			// Access is enforced by the bearer middleware.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the request and registers the connection until the
// peer goes away.
func (b *Broadcaster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("ws upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	slog.Info("ws client connected", "remote", r.RemoteAddr)
	c := b.addClient(newClient(conn, b.buffer))

	go func() {
		defer func() {
			b.removeClient(c)
			slog.Info("ws client disconnected", "remote", r.RemoteAddr)
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Notify broadcasts the event as JSON.
func (b *Broadcaster) Notify(event notify.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		slog.Error("ws marshal failed", "type", event.Type, "error", err)
		return
	}

	// Sends happen under the read lock so removeClient cannot close a
	// channel mid-send; they never block.
	var slow []*client
	b.mu.RLock()
	for c := range b.clients {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	b.mu.RUnlock()

	for _, c := range slow {
		slog.Warn("ws client too slow, disconnecting")
		b.removeClient(c)
	}
}

// ClientCount returns the number of connected clients.
func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Close disconnects every client.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for c := range b.clients {
		delete(b.clients, c)
		c.close()
	}
}

func (b *Broadcaster) addClient(c *client) *client {
	b.mu.Lock()
	b.clients[c] = true
	b.mu.Unlock()
	return c
}

func (b *Broadcaster) removeClient(c *client) {
	b.mu.Lock()
	if _, ok := b.clients[c]; ok {
		delete(b.clients, c)
		c.close()
	}
	b.mu.Unlock()
}
