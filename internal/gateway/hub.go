package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"social-service/internal/models"
)

var ErrNotAuthenticated = errors.New("connection not authenticated")

// How long a socket-initiated persistence call may take before the event is
// rejected back to the sender.
const storeTimeout = 5 * time.Second

// MessageStore persists records on behalf of socket-initiated events. The
// delivery pipeline itself never writes; persistence always happens before
// fan-out.
type MessageStore interface {
	SaveMessage(ctx context.Context, m *models.Message) error
	MarkRead(ctx context.Context, messageID, readerID string) error
}

// PresenceMirror shadows presence transitions into an external store so the
// REST layer can answer status queries without touching the gateway. All
// calls are best-effort.
type PresenceMirror interface {
	SetOnline(ctx context.Context, userID string) error
	SetOffline(ctx context.Context, userID string) error
}

// PresenceScope controls who observes presence transitions.
const (
	// PresenceScopeGlobal broadcasts every transition to every connected
	// client. Matches the current product behaviour for small deployments.
	PresenceScopeGlobal = "global"

	// PresenceScopeContacts is reserved for scoping broadcasts to a social
	// graph. Not implemented yet.
	PresenceScopeContacts = "contacts"
)

// Config carries the gateway policy knobs.
type Config struct {
	PresenceScope string
	Sweeper       SweeperConfig
}

func DefaultConfig() Config {
	return Config{
		PresenceScope: PresenceScopeGlobal,
		Sweeper:       DefaultSweeperConfig(),
	}
}

// Gateway owns all realtime state for one server process: the connection
// registry, room membership and the delivery fan-out. Registry and room
// state are per-process; horizontal scaling needs an external broadcast bus
// this design does not include.
type Gateway struct {
	registry *Registry
	namer    RoomNamer
	verifier TokenVerifier
	store    MessageStore
	mirror   PresenceMirror
	cfg      Config
	logger   *slog.Logger

	mu      sync.RWMutex
	clients map[string]*Client            // connection id -> client
	rooms   map[string]map[*Client]struct{} // room id -> members

	sweepMu      sync.Mutex
	sweepStop    chan struct{}
	sweepRunning bool
}

func New(cfg Config, verifier TokenVerifier, store MessageStore, mirror PresenceMirror, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		registry: NewRegistry(),
		namer:    NewRoomNamer(),
		verifier: verifier,
		store:    store,
		mirror:   mirror,
		cfg:      cfg,
		clients:  make(map[string]*Client),
		rooms:    make(map[string]map[*Client]struct{}),
		logger:   logger.With("component", "gateway"),
	}
}

// Attach takes ownership of an upgraded connection and starts its pumps.
func (g *Gateway) Attach(conn *websocket.Conn) *Client {
	c := newClient(g, conn)

	g.mu.Lock()
	g.clients[c.id] = c
	g.mu.Unlock()

	go c.writePump()
	go c.readPump()

	g.logger.Info("connection attached", "clientID", c.id)
	return c
}

// detach runs the full teardown for a connection. Safe to call more than
// once; only the first call observes the client.
func (g *Gateway) detach(c *Client) {
	g.mu.Lock()
	if _, ok := g.clients[c.id]; !ok {
		g.mu.Unlock()
		return
	}
	delete(g.clients, c.id)
	for _, roomID := range c.roomList() {
		g.removeFromRoomLocked(c, roomID)
	}
	g.mu.Unlock()

	c.close()

	if userID, offline := g.registry.Unregister(c.id); offline {
		g.publishStatus(userID, false)
	}
	g.logger.Info("connection detached", "clientID", c.id, "userID", c.UserID())
}

// IsUserOnline reports whether the user has at least one live authenticated
// connection on this process.
func (g *Gateway) IsUserOnline(userID string) bool {
	return g.registry.IsOnline(userID)
}

// Registry exposes the registry to collaborators that need read access
// (status endpoints, tests).
func (g *Gateway) Registry() *Registry {
	return g.registry
}

// dispatch routes one inbound event. Called from the connection's read pump,
// so per-connection ordering follows the transport.
func (g *Gateway) dispatch(c *Client, ev *Event) {
	switch ev.Type {
	case EventAuthenticate:
		g.handleAuthenticate(c, ev.Data)
	case EventClientPing:
		g.handlePing(c)
	case EventJoinChat:
		g.handleChatRoom(c, ev.Data, true)
	case EventLeaveChat:
		g.handleChatRoom(c, ev.Data, false)
	case EventJoinPost:
		g.handlePostRoom(c, ev.Data, true)
	case EventLeavePost:
		g.handlePostRoom(c, ev.Data, false)
	case EventSendMessage:
		g.handleSendMessage(c, ev.Data)
	case EventMarkRead:
		g.handleMarkRead(c, ev.Data)
	case EventGetOnlineStatus:
		g.handleGetOnlineStatus(c, ev.Data)
	case EventClientDisconnect:
		c.forceClose()
	default:
		c.sendError(EventError, "UNKNOWN_EVENT", "unsupported event type: "+string(ev.Type))
	}
}

func (g *Gateway) handleAuthenticate(c *Client, data json.RawMessage) {
	var payload AuthenticatePayload
	if data != nil {
		if err := json.Unmarshal(data, &payload); err != nil {
			c.sendError(EventAuthFailed, "TOKEN_INVALID", "malformed authenticate payload")
			return
		}
	}

	// Re-authentication on a bound connection is a no-op.
	if bound := c.UserID(); bound != "" {
		c.sendEvent(EventAuthSuccess, AuthResultPayload{UserID: bound})
		return
	}

	userID, err := g.verifier.Verify(payload.Token)
	if err != nil {
		g.logger.Debug("authentication failed", "clientID", c.id, "error", err)
		c.sendEvent(EventAuthFailed, AuthResultPayload{Code: authErrorCode(err), Message: err.Error()})
		return
	}

	c.bindUser(userID)
	first := g.registry.Register(userID, c.id)

	c.sendEvent(EventAuthSuccess, AuthResultPayload{UserID: userID})
	g.sendOnlineSnapshot(c)

	if first {
		g.publishStatus(userID, true)
	} else {
		g.mirrorOnline(userID)
	}
	g.logger.Info("connection authenticated", "clientID", c.id, "userID", userID, "firstConnection", first)
}

// requireUser returns the bound user id, rejecting the action with an
// explicit auth_error event when the connection never authenticated.
func (g *Gateway) requireUser(c *Client) (string, bool) {
	userID := c.UserID()
	if userID == "" {
		c.sendError(EventAuthError, "NOT_AUTHENTICATED", "authenticate before performing this action")
		return "", false
	}
	return userID, true
}

func (g *Gateway) handlePing(c *Client) {
	if userID := c.UserID(); userID != "" {
		if !g.registry.Touch(userID) {
			// The sweeper evicted this user between pings. Re-register and
			// republish the online transition.
			first := g.registry.Register(userID, c.id)
			if first {
				g.publishStatus(userID, true)
			}
			g.logger.Info("re-registered connection after eviction race", "clientID", c.id, "userID", userID)
		} else {
			g.mirrorOnline(userID)
		}
	}
	c.sendEvent(EventServerPong, PongPayload{ServerTime: time.Now().UnixMilli()})
}

func (g *Gateway) handleChatRoom(c *Client, data json.RawMessage, join bool) {
	userID, ok := g.requireUser(c)
	if !ok {
		return
	}
	var payload ChatRoomPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.PartnerID == "" {
		c.sendError(EventError, "INVALID_PAYLOAD", "partnerId is required")
		return
	}

	roomID := g.namer.DirectRoom(userID, payload.PartnerID)
	if join {
		g.joinRoom(c, roomID)
		c.sendEvent(EventChatJoined, RoomJoinedPayload{RoomID: roomID})
	} else {
		g.leaveRoom(c, roomID)
	}
}

func (g *Gateway) handlePostRoom(c *Client, data json.RawMessage, join bool) {
	if _, ok := g.requireUser(c); !ok {
		return
	}
	var payload PostRoomPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.PostID == "" {
		c.sendError(EventError, "INVALID_PAYLOAD", "postId is required")
		return
	}

	roomID := g.namer.PostRoom(payload.PostID)
	if join {
		g.joinRoom(c, roomID)
		// chat_joined is the ack for every room kind; clients tell them apart
		// by the room id prefix.
		c.sendEvent(EventChatJoined, RoomJoinedPayload{RoomID: roomID})
	} else {
		g.leaveRoom(c, roomID)
	}
}

func (g *Gateway) handleSendMessage(c *Client, data json.RawMessage) {
	userID, ok := g.requireUser(c)
	if !ok {
		return
	}

	var msg models.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError(EventMessageError, "INVALID_PAYLOAD", "malformed message payload")
		return
	}
	msg.SenderID = userID
	if msg.ReceiverKey() == "" {
		c.sendError(EventMessageError, "INVALID_PAYLOAD", "receiverId is required")
		return
	}
	if msg.Type == "" {
		msg.Type = models.MessageTypeText
	}

	// Persist before fan-out. The record is the durable truth; the broadcast
	// is only a hint.
	if g.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		err := g.store.SaveMessage(ctx, &msg)
		cancel()
		if err != nil {
			g.logger.Error("failed to persist message", "clientID", c.id, "userID", userID, "error", err)
			c.sendError(EventMessageError, "PERSIST_FAILED", "message could not be saved")
			return
		}
	}

	if err := g.EmitMessageEvent(MessageSent, &msg); err != nil {
		g.logger.Warn("message fan-out incomplete", "messageID", msg.ID, "error", err)
	}
}

func (g *Gateway) handleMarkRead(c *Client, data json.RawMessage) {
	userID, ok := g.requireUser(c)
	if !ok {
		return
	}
	var payload MarkReadPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.MessageID == "" {
		c.sendError(EventError, "INVALID_PAYLOAD", "messageId is required")
		return
	}

	if g.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		err := g.store.MarkRead(ctx, payload.MessageID, userID)
		cancel()
		if err != nil {
			g.logger.Warn("failed to persist read flag", "messageID", payload.MessageID, "error", err)
		}
	}

	if payload.SenderID != "" {
		status := MessageStatusPayload{
			MessageID: payload.MessageID,
			ChatID:    payload.ChatID,
			ReaderID:  userID,
			Status:    "read",
		}
		if err := g.emitToUser(payload.SenderID, EventMessageStatusUpdate, status); err != nil {
			g.logger.Debug("read receipt not delivered", "senderID", payload.SenderID, "error", err)
		}
	}
}

func (g *Gateway) handleGetOnlineStatus(c *Client, data json.RawMessage) {
	var query OnlineStatusQuery
	if err := json.Unmarshal(data, &query); err != nil {
		c.sendError(EventError, "INVALID_PAYLOAD", "userIds is required")
		return
	}

	statuses := make(map[string]bool, len(query.UserIDs))
	for _, id := range query.UserIDs {
		statuses[id] = g.registry.IsOnline(id)
	}
	c.sendEvent(EventOnlineStatus, OnlineStatusPayload{Statuses: statuses})
}

// Room membership. Join and leave are idempotent.

func (g *Gateway) joinRoom(c *Client, roomID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	members, ok := g.rooms[roomID]
	if !ok {
		members = make(map[*Client]struct{})
		g.rooms[roomID] = members
	}
	members[c] = struct{}{}
	c.addRoom(roomID)
}

func (g *Gateway) leaveRoom(c *Client, roomID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.removeFromRoomLocked(c, roomID)
}

func (g *Gateway) removeFromRoomLocked(c *Client, roomID string) {
	if members, ok := g.rooms[roomID]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(g.rooms, roomID)
		}
	}
	c.removeRoom(roomID)
}

// Emission helpers. Frames are encoded once and fanned out to every
// relevant connection.

func (g *Gateway) emitToRoom(roomID string, t EventType, payload interface{}) error {
	data, err := encodeEvent(t, payload)
	if err != nil {
		return err
	}

	g.mu.RLock()
	members := make([]*Client, 0, len(g.rooms[roomID]))
	for c := range g.rooms[roomID] {
		members = append(members, c)
	}
	g.mu.RUnlock()

	var errs []error
	for _, c := range members {
		if err := c.enqueue(data); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// emitToUser targets the user's personal channel: every live connection
// bound to that user, whether or not it joined any room.
func (g *Gateway) emitToUser(userID string, t EventType, payload interface{}) error {
	data, err := encodeEvent(t, payload)
	if err != nil {
		return err
	}

	var errs []error
	for _, connID := range g.registry.Connections(userID) {
		g.mu.RLock()
		c, ok := g.clients[connID]
		g.mu.RUnlock()
		if !ok {
			continue
		}
		if err := c.enqueue(data); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (g *Gateway) broadcast(t EventType, payload interface{}) {
	data, err := encodeEvent(t, payload)
	if err != nil {
		g.logger.Error("failed to encode broadcast", "event", t, "error", err)
		return
	}

	g.mu.RLock()
	clients := make([]*Client, 0, len(g.clients))
	for _, c := range g.clients {
		clients = append(clients, c)
	}
	g.mu.RUnlock()

	for _, c := range clients {
		if err := c.enqueue(data); err != nil {
			g.logger.Debug("broadcast skipped closed client", "clientID", c.id)
		}
	}
}
