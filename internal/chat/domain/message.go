package domain

import "time"

// MessageType definition message content type
type MessageType string

const (
	// MessageTypeText definition plain text message
	MessageTypeText MessageType = "text"
	// MessageTypeImage definition image message
	MessageTypeImage MessageType = "image"
	// MessageTypeFile definition file message
	MessageTypeFile MessageType = "file"
	// MessageTypeEmoji definition emoji message
	MessageTypeEmoji MessageType = "emoji"
)

// MessageStatus definition delivery state derived from read receipts
type MessageStatus string

const (
	// MessageStatusSent definition persisted, nobody else has seen it
	MessageStatusSent MessageStatus = "sent"
	// MessageStatusDelivered definition at least one reader recorded
	MessageStatusDelivered MessageStatus = "delivered"
	// MessageStatusRead definition read state
	MessageStatusRead MessageStatus = "read"
)

// MaxContentLength is the message content cap.
const MaxContentLength = 2000

// DeletedPlaceholder replaces the content of a soft-deleted message.
const DeletedPlaceholder = "This message has been deleted."

// FileInfo is the media store result attached to file/image messages.
type FileInfo struct {
	URL      string `bson:"url,omitempty" json:"url,omitempty"`
	PublicID string `bson:"public_id,omitempty" json:"publicId,omitempty"`
	Filename string `bson:"filename,omitempty" json:"filename,omitempty"`
	Size     int64  `bson:"size,omitempty" json:"size,omitempty"`
}

// ReadReceipt is one per-message reader record.
type ReadReceipt struct {
	UserID string    `bson:"user" json:"userId"`
	ReadAt time.Time `bson:"read_at" json:"readAt"`
}

// Message definition message document
type Message struct {
	ID             string        `bson:"_id,omitempty" json:"id"`
	ConversationID string        `bson:"conversation" json:"conversationId"`
	SenderID       string        `bson:"sender" json:"senderId"`
	Content        string        `bson:"content" json:"content"`
	Type           MessageType   `bson:"type" json:"type"`
	File           *FileInfo     `bson:"file,omitempty" json:"file,omitempty"`
	ReplyTo        string        `bson:"reply_to,omitempty" json:"replyTo,omitempty"`
	ForwardedFrom  string        `bson:"forwarded_from,omitempty" json:"forwardedFrom,omitempty"`
	IsDeleted      bool          `bson:"is_deleted" json:"isDeleted"`
	IsEdited       bool          `bson:"is_edited" json:"isEdited"`
	EditedAt       *time.Time    `bson:"edited_at,omitempty" json:"editedAt,omitempty"`
	Status         MessageStatus `bson:"status" json:"status"`
	ReadBy         []ReadReceipt `bson:"read_by,omitempty" json:"readBy,omitempty"`
	CreatedAt      time.Time     `bson:"created_at" json:"createdAt"`
	UpdatedAt      time.Time     `bson:"updated_at" json:"updatedAt"`
}

// HasReader check userID already recorded as a reader
func (m *Message) HasReader(userID string) bool {
	for _, r := range m.ReadBy {
		if r.UserID == userID {
			return true
		}
	}
	return false
}

// Preview builds the lastMessage snapshot for this message. Non-text
// messages show the filename (or the type as fallback) instead of content.
func (m *Message) Preview() LastMessage {
	content := m.Content
	if m.Type == MessageTypeImage || m.Type == MessageTypeFile {
		content = string(m.Type)
		if m.File != nil && m.File.Filename != "" {
			content = m.File.Filename
		}
	}
	created := m.CreatedAt
	return LastMessage{
		MessageID: m.ID,
		SenderID:  m.SenderID,
		Type:      string(m.Type),
		Content:   content,
		IsDeleted: false,
		CreatedAt: &created,
	}
}
