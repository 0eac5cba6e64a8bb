package gateway

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var ErrClientDisconnected = errors.New("client disconnected")

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer. Must exceed
	// the sweeper's stale threshold so the transport never evicts a
	// connection the sweeper still considers live.
	pongWait = 6 * time.Minute

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 4096

	// Outbound buffer per connection
	sendBufferSize = 256
)

// Client is one live transport-level connection. It starts unauthenticated;
// userID is bound once by a successful authenticate event and never rebound.
//
// The send channel is never closed: concurrent emitters may be mid-send on it
// at any moment, so teardown signals the write pump through done instead.
type Client struct {
	id   string
	gw   *Gateway
	conn *websocket.Conn
	send chan []byte
	done chan struct{}

	mu     sync.RWMutex
	userID string
	rooms  map[string]struct{}

	closed int32
}

func newClient(gw *Gateway, conn *websocket.Conn) *Client {
	return &Client{
		id:    uuid.NewString(),
		gw:    gw,
		conn:  conn,
		send:  make(chan []byte, sendBufferSize),
		done:  make(chan struct{}),
		rooms: make(map[string]struct{}),
	}
}

func (c *Client) ID() string {
	return c.id
}

// UserID returns the bound user id, or "" while unauthenticated.
func (c *Client) UserID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userID
}

// bindUser binds the connection to a user. Returns false if already bound.
func (c *Client) bindUser(userID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.userID != "" {
		return false
	}
	c.userID = userID
	return true
}

func (c *Client) addRoom(roomID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rooms[roomID] = struct{}{}
}

func (c *Client) removeRoom(roomID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.rooms, roomID)
}

func (c *Client) roomList() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rooms := make([]string, 0, len(c.rooms))
	for roomID := range c.rooms {
		rooms = append(rooms, roomID)
	}
	return rooms
}

func (c *Client) isClosed() bool {
	return atomic.LoadInt32(&c.closed) == 1
}

func (c *Client) close() {
	if atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		close(c.done)
	}
}

// forceClose tears down the transport. Used by the sweeper; the read pump
// observes the closed connection and runs the ordinary detach path.
func (c *Client) forceClose() {
	c.close()
	if c.conn != nil {
		c.conn.Close()
	}
}

// enqueue hands a frame to the write pump without blocking. A full buffer
// means the client stopped draining; drop the connection rather than stall
// every other sender.
func (c *Client) enqueue(data []byte) error {
	select {
	case <-c.done:
		return ErrClientDisconnected
	default:
	}
	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return ErrClientDisconnected
	default:
		slog.Warn("send buffer full, dropping client", "clientID", c.id, "userID", c.UserID())
		c.forceClose()
		return ErrClientDisconnected
	}
}

func (c *Client) sendEvent(t EventType, payload interface{}) error {
	data, err := encodeEvent(t, payload)
	if err != nil {
		return err
	}
	return c.enqueue(data)
}

func (c *Client) sendError(t EventType, code, message string) {
	if err := c.sendEvent(t, ErrorPayload{Code: code, Message: message}); err != nil {
		slog.Debug("failed to send error event", "clientID", c.id, "error", err)
	}
}

func (c *Client) readPump() {
	defer func() {
		c.close()
		c.gw.detach(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Error("websocket read error", "clientID", c.id, "userID", c.UserID(), "error", err)
			}
			return
		}

		var ev Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			c.sendError(EventError, "INVALID_EVENT", "malformed event payload")
			continue
		}

		c.gw.dispatch(c, &ev)
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
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				slog.Debug("websocket write error", "clientID", c.id, "error", err)
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
