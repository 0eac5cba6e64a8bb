package gateway

import (
	"errors"
	"fmt"

	"social-service/internal/models"
)

// EmitMessageEvent fans a persisted message out to the conversation room and
// the participants' personal channels. The record must already be durable;
// this never writes. Delivery is best-effort and at-most-once: the returned
// error is for the caller's log, never for failing the request that
// persisted the record. Clients that miss the broadcast recover through the
// REST history endpoint.
func (g *Gateway) EmitMessageEvent(eventType EventType, m *models.Message) error {
	senderID := m.SenderKey()
	receiverID := m.ReceiverKey()
	if senderID == "" || receiverID == "" {
		return fmt.Errorf("message %s: missing participant ids", m.ID)
	}

	roomID := g.namer.DirectRoom(senderID, receiverID)
	payload := MessageEventPayload{Message: m, RoomID: roomID, TempID: m.TempID}

	var errs []error
	switch eventType {
	case MessageSent:
		// Room event covers both participants if they joined; the personal
		// notification reaches a receiver browsing elsewhere; the delivered
		// ack lets the sender's UI advance without being in the room.
		if err := g.emitToRoom(roomID, EventNewMessage, payload); err != nil {
			errs = append(errs, fmt.Errorf("room %s: %w", roomID, err))
		}
		if err := g.emitToUser(receiverID, EventNewMessageNotification, payload); err != nil {
			errs = append(errs, fmt.Errorf("receiver %s: %w", receiverID, err))
		}
		if err := g.emitToUser(senderID, EventMessageDelivered, payload); err != nil {
			errs = append(errs, fmt.Errorf("sender %s: %w", senderID, err))
		}

	case MessageRead:
		status := MessageStatusPayload{MessageID: m.ID, ChatID: roomID, ReaderID: receiverID, Status: "read"}
		if err := g.emitToRoom(roomID, EventMessageStatusUpdate, status); err != nil {
			errs = append(errs, fmt.Errorf("room %s: %w", roomID, err))
		}
		if err := g.emitToUser(senderID, EventMessageStatusUpdate, status); err != nil {
			errs = append(errs, fmt.Errorf("sender %s: %w", senderID, err))
		}

	default:
		return fmt.Errorf("unknown message event type %q", eventType)
	}

	return errors.Join(errs...)
}

// EmitNotificationEvent pushes a persisted notification to the target's
// personal channel only. Same best-effort contract as EmitMessageEvent.
func (g *Gateway) EmitNotificationEvent(userID string, n *models.Notification) error {
	if userID == "" {
		return errors.New("notification target user id is empty")
	}
	return g.emitToUser(userID, EventNewNotification, NotificationPayload{Notification: n})
}
