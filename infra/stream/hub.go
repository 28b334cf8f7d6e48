// Package stream pushes decisions and priority changes to websocket clients.
package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kilianp07/gridshed/core/events"
	"github.com/kilianp07/gridshed/infra/logger"
	"github.com/kilianp07/gridshed/internal/eventbus"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 64
)

// Message is the JSON envelope written to every client.
type Message struct {
	Type    string `json:"type"` // "decision" or "priority"
	Payload any    `json:"payload"`
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// Hub tracks connected clients and fans messages out to them. Clients that
// cannot keep up are disconnected.
type Hub struct {
	clients    map[*client]struct{}
	register   chan *client
	unregister chan *client
	done       chan struct{}
	upgrader   websocket.Upgrader
	log        logger.Logger
}

// NewHub creates a hub. Run must be started before clients connect.
func NewHub(log logger.Logger) *Hub {
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Hub{
		clients:    make(map[*client]struct{}),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		log: log,
	}
}

// Run forwards bus events to clients until ctx is canceled. Either bus may
// be nil.
func (h *Hub) Run(ctx context.Context, decisions *eventbus.Bus[events.DecisionEvent], priorities *eventbus.Bus[events.PriorityEvent]) {
	var dch <-chan events.DecisionEvent
	var pch <-chan events.PriorityEvent
	if decisions != nil {
		dch = decisions.Subscribe(sendBuffer)
		defer decisions.Unsubscribe(dch)
	}
	if priorities != nil {
		pch = priorities.Subscribe(0)
		defer priorities.Unsubscribe(pch)
	}
	defer h.shutdown()
	for {
		select {
		case <-ctx.Done():
			return
		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.log.Debugf("stream client connected (%d total)", len(h.clients))
		case c := <-h.unregister:
			h.drop(c)
		case ev, ok := <-dch:
			if !ok {
				dch = nil
				continue
			}
			h.fanOut(Message{Type: "decision", Payload: ev.Decision})
		case ev, ok := <-pch:
			if !ok {
				pch = nil
				continue
			}
			h.fanOut(Message{Type: "priority", Payload: ev})
		}
	}
}

func (h *Hub) fanOut(m Message) {
	b, err := json.Marshal(m)
	if err != nil {
		h.log.Errorf("stream encode %s: %v", m.Type, err)
		return
	}
	for c := range h.clients {
		select {
		case c.send <- b:
		default:
			h.log.Warnf("stream client too slow, disconnecting")
			h.drop(c)
		}
	}
}

func (h *Hub) drop(c *client) {
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) shutdown() {
	close(h.done)
	for c := range h.clients {
		h.drop(c)
	}
}

// ServeHTTP upgrades the request to a websocket and registers the client.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warnf("websocket upgrade: %v", err)
		return
	}
	c := &client{hub: h, conn: conn, send: make(chan []byte, sendBuffer)}
	select {
	case h.register <- c:
	case <-h.done:
		_ = conn.Close()
		return
	}
	go c.writePump()
	go c.readPump()
}

// readPump only services control frames; clients do not send data.
func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.log.Debugf("stream read: %v", err)
			}
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
