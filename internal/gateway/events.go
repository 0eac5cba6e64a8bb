package gateway

import (
	"encoding/json"
	"fmt"

	"social-service/internal/models"
)

// EventType identifies a websocket event on either direction of the wire.
type EventType string

// Client -> server events.
const (
	EventAuthenticate     EventType = "authenticate"
	EventClientPing       EventType = "client_ping"
	EventJoinChat         EventType = "join_chat"
	EventLeaveChat        EventType = "leave_chat"
	EventJoinPost         EventType = "join_post"
	EventLeavePost        EventType = "leave_post"
	EventSendMessage      EventType = "send_message"
	EventMarkRead         EventType = "mark_read"
	EventGetOnlineStatus  EventType = "get_online_status"
	EventClientDisconnect EventType = "client_disconnect"
)

// Server -> client events.
const (
	EventAuthSuccess            EventType = "authentication_success"
	EventAuthFailed             EventType = "authentication_failed"
	EventOnlineUsersList        EventType = "online_users_list"
	EventUserStatusChange       EventType = "user_status_change"
	EventChatJoined             EventType = "chat_joined"
	EventNewMessage             EventType = "new_message"
	EventNewMessageNotification EventType = "new_message_notification"
	EventMessageDelivered       EventType = "message_delivered"
	EventMessageStatusUpdate    EventType = "message_status_update"
	EventMessageError           EventType = "message_error"
	EventServerProbe            EventType = "server_probe"
	EventServerPong             EventType = "server_pong"
	EventNewNotification        EventType = "new_notification"
	EventOnlineStatus           EventType = "online_status"
	EventAuthError              EventType = "auth_error"
	EventError                  EventType = "error"
)

// Delivery event kinds accepted by EmitMessageEvent. These name what happened
// to the persisted record, not a wire event.
const (
	MessageSent EventType = "message_sent"
	MessageRead EventType = "message_read"
)

// Event is the wire envelope. Data is decoded per Type.
type Event struct {
	Type EventType       `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

func encodeEvent(t EventType, payload interface{}) ([]byte, error) {
	var data json.RawMessage
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", t, err)
		}
		data = raw
	}
	return json.Marshal(Event{Type: t, Data: data})
}

// Payloads for client -> server events.

type AuthenticatePayload struct {
	Token string `json:"token"`
}

type PingPayload struct {
	Timestamp int64 `json:"timestamp,omitempty"`
}

type ChatRoomPayload struct {
	PartnerID string `json:"partnerId"`
}

type PostRoomPayload struct {
	PostID string `json:"postId"`
}

type MarkReadPayload struct {
	MessageID string `json:"messageId"`
	ChatID    string `json:"chatId"`
	SenderID  string `json:"senderId"`
}

type OnlineStatusQuery struct {
	UserIDs []string `json:"userIds"`
}

// Payloads for server -> client events.

type AuthResultPayload struct {
	UserID  string `json:"userId,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

type PongPayload struct {
	ServerTime int64 `json:"serverTime"`
}

type RoomJoinedPayload struct {
	RoomID string `json:"roomId"`
}

type StatusChangePayload struct {
	UserID     string `json:"userId"`
	IsOnline   bool   `json:"isOnline"`
	LastActive int64  `json:"lastActive,omitempty"`
}

type OnlineUsersPayload struct {
	UserIDs []string `json:"userIds"`
}

type OnlineStatusPayload struct {
	Statuses map[string]bool `json:"statuses"`
}

// MessageEventPayload wraps a persisted message with the computed room id.
// TempID is echoed back verbatim when the client supplied one.
type MessageEventPayload struct {
	Message *models.Message `json:"message"`
	RoomID  string          `json:"roomId"`
	TempID  string          `json:"tempId,omitempty"`
}

type MessageStatusPayload struct {
	MessageID string `json:"messageId"`
	ChatID    string `json:"chatId,omitempty"`
	ReaderID  string `json:"readerId,omitempty"`
	Status    string `json:"status"`
}

type NotificationPayload struct {
	Notification *models.Notification `json:"notification"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
