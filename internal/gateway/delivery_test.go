package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"social-service/internal/models"
)

type fakeStore struct {
	saved   []*models.Message
	read    []string
	saveErr error
}

func (s *fakeStore) SaveMessage(_ context.Context, m *models.Message) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	m.ID = "persisted-1"
	s.saved = append(s.saved, m)
	return nil
}

func (s *fakeStore) MarkRead(_ context.Context, messageID, _ string) error {
	s.read = append(s.read, messageID)
	return nil
}

func joinDirectRoom(t *testing.T, g *Gateway, c *Client, partnerID string) {
	t.Helper()
	g.dispatch(c, clientEvent(t, EventJoinChat, ChatRoomPayload{PartnerID: partnerID}))
	drainEvents(t, c)
}

func TestEmitMessageSentFanOut(t *testing.T) {
	g := newTestGateway()
	a := attachTestClient(g)
	b := attachTestClient(g)
	outsider := attachTestClient(g)
	authenticate(t, g, a, "alice")
	authenticate(t, g, b, "bob")
	authenticate(t, g, outsider, "carol")
	joinDirectRoom(t, g, a, "bob")
	joinDirectRoom(t, g, b, "alice")
	drainEvents(t, a)
	drainEvents(t, b)
	drainEvents(t, outsider)

	msg := &models.Message{ID: "m1", SenderID: "alice", ReceiverID: "bob", Content: "hi"}
	require.NoError(t, g.EmitMessageEvent(MessageSent, msg))

	// Receiver: one room event plus one personal notification.
	bEvents := drainEvents(t, b)
	assert.Equal(t, 1, countByType(bEvents, EventNewMessage))
	assert.Equal(t, 1, countByType(bEvents, EventNewMessageNotification))

	// Sender: one room event plus the delivered ack.
	aEvents := drainEvents(t, a)
	assert.Equal(t, 1, countByType(aEvents, EventNewMessage))
	assert.Equal(t, 1, countByType(aEvents, EventMessageDelivered))

	// Uninvolved users see nothing.
	outsiderEvents := drainEvents(t, outsider)
	assert.Equal(t, 0, countByType(outsiderEvents, EventNewMessage))
	assert.Equal(t, 0, countByType(outsiderEvents, EventNewMessageNotification))
}

func TestEmitMessageSentReachesReceiverOutsideRoom(t *testing.T) {
	g := newTestGateway()
	b := attachTestClient(g)
	authenticate(t, g, b, "bob")
	drainEvents(t, b)

	msg := &models.Message{ID: "m1", SenderID: "alice", ReceiverID: "bob", Content: "hi"}
	require.NoError(t, g.EmitMessageEvent(MessageSent, msg))

	events := drainEvents(t, b)
	assert.Equal(t, 0, countByType(events, EventNewMessage))
	assert.Equal(t, 1, countByType(events, EventNewMessageNotification))
}

func TestEmitMessageEchoesCorrelationID(t *testing.T) {
	g := newTestGateway()
	b := attachTestClient(g)
	authenticate(t, g, b, "bob")
	drainEvents(t, b)

	msg := &models.Message{ID: "m1", SenderID: "alice", ReceiverID: "bob", Content: "hi", TempID: "tmp-77"}
	require.NoError(t, g.EmitMessageEvent(MessageSent, msg))

	ev := findByType(t, drainEvents(t, b), EventNewMessageNotification)
	var payload MessageEventPayload
	require.NoError(t, json.Unmarshal(ev.Data, &payload))
	assert.Equal(t, "tmp-77", payload.TempID)
	assert.Equal(t, "chat:alice-bob", payload.RoomID)
	assert.Equal(t, "m1", payload.Message.ID)
}

func TestEmitMessageResolvesPopulatedParticipants(t *testing.T) {
	g := newTestGateway()
	b := attachTestClient(g)
	authenticate(t, g, b, "bob")
	drainEvents(t, b)

	msg := &models.Message{
		ID:       "m2",
		Content:  "hello",
		Sender:   &models.UserSummary{ID: "alice", Username: "Alice"},
		Receiver: &models.UserSummary{ID: "bob", Username: "Bob"},
	}
	require.NoError(t, g.EmitMessageEvent(MessageSent, msg))
	assert.Equal(t, 1, countByType(drainEvents(t, b), EventNewMessageNotification))
}

func TestEmitMessageRead(t *testing.T) {
	g := newTestGateway()
	a := attachTestClient(g)
	authenticate(t, g, a, "alice")
	drainEvents(t, a)

	msg := &models.Message{ID: "m1", SenderID: "alice", ReceiverID: "bob", Read: true}
	require.NoError(t, g.EmitMessageEvent(MessageRead, msg))

	ev := findByType(t, drainEvents(t, a), EventMessageStatusUpdate)
	var status MessageStatusPayload
	require.NoError(t, json.Unmarshal(ev.Data, &status))
	assert.Equal(t, "m1", status.MessageID)
	assert.Equal(t, "read", status.Status)
}

func TestEmitMessageMissingParticipants(t *testing.T) {
	g := newTestGateway()
	err := g.EmitMessageEvent(MessageSent, &models.Message{ID: "m1", Content: "orphan"})
	assert.Error(t, err)
}

func TestEmitMessageUnknownEventType(t *testing.T) {
	g := newTestGateway()
	msg := &models.Message{ID: "m1", SenderID: "a", ReceiverID: "b"}
	assert.Error(t, g.EmitMessageEvent("message_exploded", msg))
}

func TestEmitNotificationReachesEveryConnection(t *testing.T) {
	g := newTestGateway()
	tab1 := attachTestClient(g)
	tab2 := attachTestClient(g)
	authenticate(t, g, tab1, "bob")
	authenticate(t, g, tab2, "bob")
	drainEvents(t, tab1)
	drainEvents(t, tab2)

	n := &models.Notification{ID: "n1", UserID: "bob", Text: "alice commented on your post", Type: models.NotificationTypePost}
	require.NoError(t, g.EmitNotificationEvent("bob", n))

	for _, c := range []*Client{tab1, tab2} {
		ev := findByType(t, drainEvents(t, c), EventNewNotification)
		var payload NotificationPayload
		require.NoError(t, json.Unmarshal(ev.Data, &payload))
		assert.Equal(t, "n1", payload.Notification.ID)
	}
}

func TestSendMessagePersistsBeforeFanOut(t *testing.T) {
	store := &fakeStore{}
	g := newTestGatewayWithStore(store)
	a := attachTestClient(g)
	b := attachTestClient(g)
	authenticate(t, g, a, "alice")
	authenticate(t, g, b, "bob")
	drainEvents(t, a)
	drainEvents(t, b)

	g.dispatch(a, clientEvent(t, EventSendMessage, map[string]string{
		"receiverId": "bob",
		"content":    "hello",
		"tempId":     "tmp-1",
	}))

	require.Len(t, store.saved, 1)
	assert.Equal(t, "alice", store.saved[0].SenderID)

	aEvents := drainEvents(t, a)
	assert.Equal(t, 1, countByType(aEvents, EventMessageDelivered))
	bEvents := drainEvents(t, b)
	assert.Equal(t, 1, countByType(bEvents, EventNewMessageNotification))
}

func TestSendMessagePersistFailureRejectsSender(t *testing.T) {
	store := &fakeStore{saveErr: errors.New("db down")}
	g := newTestGatewayWithStore(store)
	a := attachTestClient(g)
	b := attachTestClient(g)
	authenticate(t, g, a, "alice")
	authenticate(t, g, b, "bob")
	drainEvents(t, a)
	drainEvents(t, b)

	g.dispatch(a, clientEvent(t, EventSendMessage, map[string]string{
		"receiverId": "bob",
		"content":    "hello",
	}))

	aEvents := drainEvents(t, a)
	assert.Equal(t, 1, countByType(aEvents, EventMessageError))
	assert.Equal(t, 0, countByType(drainEvents(t, b), EventNewMessageNotification))
}

func TestMarkReadEmitsStatusToSender(t *testing.T) {
	store := &fakeStore{}
	g := newTestGatewayWithStore(store)
	reader := attachTestClient(g)
	sender := attachTestClient(g)
	authenticate(t, g, reader, "bob")
	authenticate(t, g, sender, "alice")
	drainEvents(t, reader)
	drainEvents(t, sender)

	g.dispatch(reader, clientEvent(t, EventMarkRead, MarkReadPayload{
		MessageID: "m1",
		ChatID:    "chat:alice-bob",
		SenderID:  "alice",
	}))

	assert.Equal(t, []string{"m1"}, store.read)
	ev := findByType(t, drainEvents(t, sender), EventMessageStatusUpdate)
	var status MessageStatusPayload
	require.NoError(t, json.Unmarshal(ev.Data, &status))
	assert.Equal(t, "bob", status.ReaderID)
	assert.Equal(t, "read", status.Status)
}
