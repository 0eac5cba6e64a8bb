package gateway

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "unit-test-secret"

func newTestGateway() *Gateway {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(DefaultConfig(), NewJWTVerifier(testSecret), nil, nil, logger)
}

func newTestGatewayWithStore(store MessageStore) *Gateway {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(DefaultConfig(), NewJWTVerifier(testSecret), store, nil, logger)
}

// attachTestClient registers a client without a transport; events pile up in
// its buffered send channel where tests can read them.
func attachTestClient(g *Gateway) *Client {
	c := newClient(g, nil)
	g.mu.Lock()
	g.clients[c.id] = c
	g.mu.Unlock()
	return c
}

func signToken(t *testing.T, userID string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func clientEvent(t *testing.T, typ EventType, payload interface{}) *Event {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return &Event{Type: typ, Data: raw}
}

func drainEvents(t *testing.T, c *Client) []Event {
	t.Helper()
	var events []Event
	for {
		select {
		case data := <-c.send:
			var ev Event
			require.NoError(t, json.Unmarshal(data, &ev))
			events = append(events, ev)
		default:
			return events
		}
	}
}

func countByType(events []Event, typ EventType) int {
	n := 0
	for _, ev := range events {
		if ev.Type == typ {
			n++
		}
	}
	return n
}

func findByType(t *testing.T, events []Event, typ EventType) Event {
	t.Helper()
	for _, ev := range events {
		if ev.Type == typ {
			return ev
		}
	}
	t.Fatalf("no %s event among %d events", typ, len(events))
	return Event{}
}

func authenticate(t *testing.T, g *Gateway, c *Client, userID string) {
	t.Helper()
	g.dispatch(c, clientEvent(t, EventAuthenticate, AuthenticatePayload{Token: signToken(t, userID)}))
	events := drainEvents(t, c)
	require.Equal(t, 1, countByType(events, EventAuthSuccess))
}

func TestAuthenticateSuccess(t *testing.T) {
	g := newTestGateway()
	a := attachTestClient(g)
	observer := attachTestClient(g)

	g.dispatch(a, clientEvent(t, EventAuthenticate, AuthenticatePayload{Token: signToken(t, "alice")}))

	events := drainEvents(t, a)
	success := findByType(t, events, EventAuthSuccess)
	var result AuthResultPayload
	require.NoError(t, json.Unmarshal(success.Data, &result))
	assert.Equal(t, "alice", result.UserID)

	snapshot := findByType(t, events, EventOnlineUsersList)
	var online OnlineUsersPayload
	require.NoError(t, json.Unmarshal(snapshot.Data, &online))
	assert.Contains(t, online.UserIDs, "alice")

	// Any connected client observes the transition, authenticated or not.
	observerEvents := drainEvents(t, observer)
	change := findByType(t, observerEvents, EventUserStatusChange)
	var status StatusChangePayload
	require.NoError(t, json.Unmarshal(change.Data, &status))
	assert.Equal(t, "alice", status.UserID)
	assert.True(t, status.IsOnline)

	assert.True(t, g.IsUserOnline("alice"))
}

func TestAuthenticateInvalidToken(t *testing.T) {
	g := newTestGateway()
	c := attachTestClient(g)

	g.dispatch(c, clientEvent(t, EventAuthenticate, AuthenticatePayload{Token: "garbage"}))

	events := drainEvents(t, c)
	failed := findByType(t, events, EventAuthFailed)
	var result AuthResultPayload
	require.NoError(t, json.Unmarshal(failed.Data, &result))
	assert.Equal(t, "TOKEN_INVALID", result.Code)
	assert.Empty(t, c.UserID())
	assert.Empty(t, g.registry.OnlineUsers())
}

func TestAuthenticateMissingToken(t *testing.T) {
	g := newTestGateway()
	c := attachTestClient(g)

	g.dispatch(c, &Event{Type: EventAuthenticate})

	events := drainEvents(t, c)
	failed := findByType(t, events, EventAuthFailed)
	var result AuthResultPayload
	require.NoError(t, json.Unmarshal(failed.Data, &result))
	assert.Equal(t, "TOKEN_MISSING", result.Code)
}

func TestReauthenticationIsNoOp(t *testing.T) {
	g := newTestGateway()
	c := attachTestClient(g)
	authenticate(t, g, c, "alice")

	g.dispatch(c, clientEvent(t, EventAuthenticate, AuthenticatePayload{Token: signToken(t, "mallory")}))

	events := drainEvents(t, c)
	success := findByType(t, events, EventAuthSuccess)
	var result AuthResultPayload
	require.NoError(t, json.Unmarshal(success.Data, &result))
	assert.Equal(t, "alice", result.UserID)
	assert.Len(t, g.registry.Connections("alice"), 1)
	assert.False(t, g.IsUserOnline("mallory"))
}

func TestUnauthenticatedActionsRejected(t *testing.T) {
	g := newTestGateway()
	c := attachTestClient(g)

	attempts := []*Event{
		clientEvent(t, EventJoinChat, ChatRoomPayload{PartnerID: "bob"}),
		clientEvent(t, EventLeaveChat, ChatRoomPayload{PartnerID: "bob"}),
		clientEvent(t, EventJoinPost, PostRoomPayload{PostID: "42"}),
		clientEvent(t, EventLeavePost, PostRoomPayload{PostID: "42"}),
		clientEvent(t, EventSendMessage, map[string]string{"receiverId": "bob", "content": "hi"}),
		clientEvent(t, EventMarkRead, MarkReadPayload{MessageID: "m1"}),
	}
	for _, ev := range attempts {
		g.dispatch(c, ev)
	}

	events := drainEvents(t, c)
	assert.Equal(t, len(attempts), countByType(events, EventAuthError))

	g.mu.RLock()
	defer g.mu.RUnlock()
	assert.Empty(t, g.rooms)
}

func TestJoinChatBothSidesLandInSameRoom(t *testing.T) {
	g := newTestGateway()
	a := attachTestClient(g)
	b := attachTestClient(g)
	authenticate(t, g, a, "alice")
	authenticate(t, g, b, "bob")
	drainEvents(t, a)
	drainEvents(t, b)

	g.dispatch(a, clientEvent(t, EventJoinChat, ChatRoomPayload{PartnerID: "bob"}))
	g.dispatch(b, clientEvent(t, EventJoinChat, ChatRoomPayload{PartnerID: "alice"}))

	var joinedA, joinedB RoomJoinedPayload
	require.NoError(t, json.Unmarshal(findByType(t, drainEvents(t, a), EventChatJoined).Data, &joinedA))
	require.NoError(t, json.Unmarshal(findByType(t, drainEvents(t, b), EventChatJoined).Data, &joinedB))

	assert.Equal(t, "chat:alice-bob", joinedA.RoomID)
	assert.Equal(t, joinedA.RoomID, joinedB.RoomID)

	g.mu.RLock()
	defer g.mu.RUnlock()
	assert.Len(t, g.rooms[joinedA.RoomID], 2)
}

func TestJoinRoomIdempotent(t *testing.T) {
	g := newTestGateway()
	a := attachTestClient(g)
	authenticate(t, g, a, "alice")

	g.dispatch(a, clientEvent(t, EventJoinChat, ChatRoomPayload{PartnerID: "bob"}))
	g.dispatch(a, clientEvent(t, EventJoinChat, ChatRoomPayload{PartnerID: "bob"}))

	g.mu.RLock()
	assert.Len(t, g.rooms["chat:alice-bob"], 1)
	g.mu.RUnlock()

	g.dispatch(a, clientEvent(t, EventLeaveChat, ChatRoomPayload{PartnerID: "bob"}))
	g.dispatch(a, clientEvent(t, EventLeaveChat, ChatRoomPayload{PartnerID: "bob"}))

	g.mu.RLock()
	defer g.mu.RUnlock()
	assert.Empty(t, g.rooms)
}

func TestGetOnlineStatus(t *testing.T) {
	g := newTestGateway()
	a := attachTestClient(g)
	authenticate(t, g, a, "alice")
	drainEvents(t, a)

	g.dispatch(a, clientEvent(t, EventGetOnlineStatus, OnlineStatusQuery{
		UserIDs: []string{"alice", "ghost-1", "ghost-2"},
	}))

	ev := findByType(t, drainEvents(t, a), EventOnlineStatus)
	var payload OnlineStatusPayload
	require.NoError(t, json.Unmarshal(ev.Data, &payload))
	assert.Equal(t, map[string]bool{
		"alice":   true,
		"ghost-1": false,
		"ghost-2": false,
	}, payload.Statuses)
}

func TestPingAnsweredWithServerTime(t *testing.T) {
	g := newTestGateway()
	c := attachTestClient(g)
	authenticate(t, g, c, "alice")
	drainEvents(t, c)

	before := time.Now().Add(-time.Second).UnixMilli()
	g.dispatch(c, clientEvent(t, EventClientPing, PingPayload{Timestamp: time.Now().UnixMilli()}))

	ev := findByType(t, drainEvents(t, c), EventServerPong)
	var pong PongPayload
	require.NoError(t, json.Unmarshal(ev.Data, &pong))
	assert.GreaterOrEqual(t, pong.ServerTime, before)
}

func TestPingReregistersAfterEvictionRace(t *testing.T) {
	g := newTestGateway()
	c := attachTestClient(g)
	observer := attachTestClient(g)
	authenticate(t, g, c, "alice")
	drainEvents(t, c)
	drainEvents(t, observer)

	// Simulate the sweeper winning a race against a network blip.
	g.registry.RemoveUser("alice")
	require.False(t, g.IsUserOnline("alice"))

	g.dispatch(c, &Event{Type: EventClientPing})

	assert.True(t, g.IsUserOnline("alice"))
	change := findByType(t, drainEvents(t, observer), EventUserStatusChange)
	var status StatusChangePayload
	require.NoError(t, json.Unmarshal(change.Data, &status))
	assert.Equal(t, "alice", status.UserID)
	assert.True(t, status.IsOnline)
}

func TestDetachPublishesOfflineOnlyWhenLastConnectionGone(t *testing.T) {
	g := newTestGateway()
	tab1 := attachTestClient(g)
	tab2 := attachTestClient(g)
	observer := attachTestClient(g)
	authenticate(t, g, tab1, "alice")
	authenticate(t, g, tab2, "alice")
	drainEvents(t, observer)

	g.detach(tab1)
	assert.Equal(t, 0, countByType(drainEvents(t, observer), EventUserStatusChange))
	assert.True(t, g.IsUserOnline("alice"))

	g.detach(tab2)
	events := drainEvents(t, observer)
	require.Equal(t, 1, countByType(events, EventUserStatusChange))
	var status StatusChangePayload
	require.NoError(t, json.Unmarshal(findByType(t, events, EventUserStatusChange).Data, &status))
	assert.False(t, status.IsOnline)
	assert.False(t, g.IsUserOnline("alice"))

	// Double detach is harmless.
	g.detach(tab2)
	assert.Equal(t, 0, countByType(drainEvents(t, observer), EventUserStatusChange))
}

func TestUnknownEventType(t *testing.T) {
	g := newTestGateway()
	c := attachTestClient(g)

	g.dispatch(c, &Event{Type: "no_such_event"})

	ev := findByType(t, drainEvents(t, c), EventError)
	var payload ErrorPayload
	require.NoError(t, json.Unmarshal(ev.Data, &payload))
	assert.Equal(t, "UNKNOWN_EVENT", payload.Code)
}
