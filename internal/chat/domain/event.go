package domain

import "encoding/json"

// Action websocket inbound action
type Action string

const (
	// JoinConversation websocket action join_conversation
	JoinConversation Action = "join_conversation"
	// LeaveConversation websocket action leave_conversation
	LeaveConversation Action = "leave_conversation"
	// TypingStart websocket action typing_start
	TypingStart Action = "typing_start"
	// TypingStop websocket action typing_stop
	TypingStop Action = "typing_stop"
	// MarkAsRead websocket action mark_as_read
	MarkAsRead Action = "mark_as_read"
)

// Outbound event names fanned out to conversation / user rooms.
const (
	// EventMessageNew emitted after a message is persisted
	EventMessageNew = "message:new"
	// EventMessageEdit emitted after an edit is persisted
	EventMessageEdit = "message:edit"
	// EventMessageDelete emitted after a soft delete is persisted
	EventMessageDelete = "message:delete"
	// EventUserStatusChanged emitted on presence transitions
	EventUserStatusChanged = "user_status_changed"
	// EventUserTyping emitted on typing_start
	EventUserTyping = "user_typing"
	// EventUserStopTyping emitted on typing_stop or typing expiry
	EventUserStopTyping = "user_stop_typing"
	// EventMessageRead emitted after a read receipt is recorded
	EventMessageRead = "message_read"
)

// WSRequest websocket request
type WSRequest struct {
	Action         string `json:"action"`
	ConversationID string `json:"conversation_id,omitempty"`
	MessageID      string `json:"message_id,omitempty"`
}

// WSResponse websocket response / pushed event
type WSResponse struct {
	Event   string      `json:"event"`
	Success bool        `json:"success"`
	Payload interface{} `json:"payload,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// EventEnvelope is the wire form carried over the redis bridge so peer
// instances can re-deliver a room event locally. Instance tags the origin
// node so the publisher skips its own echo.
type EventEnvelope struct {
	Instance string          `json:"instance"`
	Room     string          `json:"room"`
	Event    string          `json:"event"`
	Payload  json.RawMessage `json:"payload"`
}

// TypingPayload body of user_typing / user_stop_typing
type TypingPayload struct {
	UserID         string `json:"userId"`
	Username       string `json:"username,omitempty"`
	ConversationID string `json:"conversationId"`
}

// StatusPayload body of user_status_changed
type StatusPayload struct {
	UserID     string `json:"userId"`
	Status     string `json:"status"`
	LastSeenAt string `json:"lastSeenAt"`
}

// ReadPayload body of message_read
type ReadPayload struct {
	MessageID string        `json:"messageId"`
	ReadBy    []ReadReceipt `json:"readBy"`
	ReadAt    string        `json:"readAt"`
}
