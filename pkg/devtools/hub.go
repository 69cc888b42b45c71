package devtools

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// hub fans engine events out to connected websocket clients and keeps a
// backlog ring so new clients see recent history.
type hub struct {
	logger *slog.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
	backlog []Event
	start   int
}

func newHub(logger *slog.Logger) *hub {
	return &hub{
		logger:  logger,
		clients: make(map[*client]struct{}),
		backlog: make([]Event, 0, backlogSize),
	}
}

// publish runs inline on the reactive path via the hooks, so it is a
// lock, two appends, and non-blocking channel sends. Slow clients lose
// events instead of stalling the engine.
func (h *hub) publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.backlog) < backlogSize {
		h.backlog = append(h.backlog, ev)
	} else {
		h.backlog[h.start] = ev
		h.start = (h.start + 1) % backlogSize
	}

	for c := range h.clients {
		select {
		case c.send <- ev:
		default:
			c.dropped++
		}
	}
}

// snapshot returns the backlog oldest-first.
func (h *hub) snapshot() []Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Event, 0, len(h.backlog))
	for i := 0; i < len(h.backlog); i++ {
		out = append(out, h.backlog[(h.start+i)%len(h.backlog)])
	}
	return out
}

func (h *hub) register(conn *websocket.Conn) *client {
	c := &client{
		hub:    h,
		conn:   conn,
		send:   make(chan Event, clientBuffer),
		done:   make(chan struct{}),
		replay: h.snapshot(),
	}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	return c
}

func (h *hub) unregister(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if !ok {
		return
	}
	close(c.done)
	c.conn.Close()
	if c.dropped > 0 {
		h.logger.Warn("devtools client lagged", "dropped_events", c.dropped)
	}
}

func (h *hub) clientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *hub) closeAll() {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()
	for _, c := range clients {
		h.unregister(c)
	}
}

// client is one websocket subscriber.
type client struct {
	hub     *hub
	conn    *websocket.Conn
	send    chan Event
	done    chan struct{}
	replay  []Event
	dropped int
}

// writeLoop streams the replay backlog, then live events, until the
// client goes away.
func (c *client) writeLoop() {
	for _, ev := range c.replay {
		if !c.write(ev) {
			return
		}
	}
	for {
		select {
		case ev := <-c.send:
			if !c.write(ev) {
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *client) write(ev Event) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.conn.WriteJSON(ev); err != nil {
		c.hub.logger.Debug("devtools write error", "error", err)
		return false
	}
	return true
}

// readLoop discards inbound messages; its job is to notice the close.
func (c *client) readLoop() {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
