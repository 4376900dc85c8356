package console

import (
	"fmt"
	"sync"
	"time"

	"posecam/dispatch"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 5 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	clientSendSize = 16
)

// hub fans send events out to websocket clients. Slow clients drop events
// rather than stall the broadcaster.
type hub struct {
	mutex   sync.RWMutex
	clients map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	send chan dispatch.SendEvent
	once sync.Once
}

func newHub() *hub {
	return &hub{clients: make(map[*client]struct{})}
}

func (h *hub) add(conn *websocket.Conn) *client {
	c := &client{conn: conn, send: make(chan dispatch.SendEvent, clientSendSize)}
	h.mutex.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mutex.Unlock()
	debugMsg("CONSOLE", fmt.Sprintf("Event client connected from %s (%d connected)", conn.RemoteAddr(), n))
	return c
}

func (h *hub) remove(c *client) {
	h.mutex.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mutex.Unlock()
	if ok {
		c.once.Do(func() { close(c.send) })
	}
}

func (h *hub) count() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

func (h *hub) broadcast(ev dispatch.SendEvent) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- ev:
		default:
			debugMsg("CONSOLE_WARN", fmt.Sprintf("Dropping event %s for slow client %s", ev.ID, c.conn.RemoteAddr()))
		}
	}
}

func (h *hub) closeAll() {
	h.mutex.Lock()
	clients := h.clients
	h.clients = make(map[*client]struct{})
	h.mutex.Unlock()
	for c := range clients {
		c.once.Do(func() { close(c.send) })
	}
}

// writePump owns all writes to the connection
func (h *hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(ev); err != nil {
				h.remove(c)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.remove(c)
				return
			}
		}
	}
}

// readPump discards client messages and detects disconnects
func (h *hub) readPump(c *client) {
	defer h.remove(c)
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
