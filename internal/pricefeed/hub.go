// Package pricefeed streams outcome price snapshots to websocket subscribers.
package pricefeed

import (
	"context"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// Snapshot is one broadcast frame: the prices of every outcome of one market
// at one instant.
type Snapshot struct {
	Market    string           `json:"market"`
	Question  string           `json:"question"`
	Status    string           `json:"status"`
	Prices    map[string]string `json:"prices"`
	Timestamp time.Time        `json:"timestamp"`
}

// Hub fans snapshots out to connected clients. Clients that cannot keep up
// are dropped.
type Hub struct {
	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan Snapshot
	done       chan struct{}
	logger     *zap.Logger

	mu      sync.RWMutex
	stopped bool
}

// NewHub creates an idle hub; call Run to start it.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan Snapshot, 64),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run processes registrations and broadcasts until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case client := <-h.register:
			h.clients[client] = struct{}{}
			ClientsConnected.Inc()
			h.logger.Debug("pricefeed-client-registered", zap.Int("clients", len(h.clients)))
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				ClientsConnected.Dec()
			}
		case snapshot := <-h.broadcast:
			payload, err := json.Marshal(snapshot)
			if err != nil {
				h.logger.Error("pricefeed-marshal-failed", zap.Error(err))
				continue
			}
			for client := range h.clients {
				select {
				case client.send <- payload:
				default:
					delete(h.clients, client)
					close(client.send)
					ClientsConnected.Dec()
					h.logger.Warn("pricefeed-client-dropped-slow-consumer")
				}
			}
			SnapshotsBroadcastTotal.Inc()
		}
	}
}

// Publish enqueues a snapshot for broadcast. Snapshots are discarded when the
// hub is saturated or stopped.
func (h *Hub) Publish(snapshot Snapshot) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.stopped {
		return
	}
	select {
	case h.broadcast <- snapshot:
	default:
		h.logger.Warn("pricefeed-snapshot-dropped-hub-saturated")
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	h.stopped = true
	h.mu.Unlock()
	close(h.done)
	for client := range h.clients {
		delete(h.clients, client)
		close(client.send)
		ClientsConnected.Dec()
	}
}

// Client is one websocket subscriber.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// NewClient attaches a websocket connection to the hub and starts its pumps.
// A connection that lands after the hub has stopped is closed and nil is
// returned; the HTTP server keeps draining upgrades during shutdown.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	client := &Client{
		hub:  hub,
		conn: conn,
		send: make(chan []byte, 32),
	}
	select {
	case hub.register <- client:
	case <-hub.done:
		conn.Close()
		return nil
	}
	go client.writePump()
	go client.readPump()
	return client
}

// readPump drains inbound control frames; the feed is one-directional.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, _, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			err := c.conn.WriteMessage(websocket.TextMessage, payload)
			if err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := c.conn.WriteMessage(websocket.PingMessage, nil)
			if err != nil {
				return
			}
		}
	}
}
