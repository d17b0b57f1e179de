package domain

import (
	"sort"
	"strings"
	"time"
)

// ConversationType definition conversation type
type ConversationType string

const (
	// ConversationTypePrivate definition 1 on 1 conversation
	ConversationTypePrivate ConversationType = "private"
	// ConversationTypeGroup definition group conversation
	ConversationTypeGroup ConversationType = "group"
)

// MinGroupMembers is the floor enforced at group creation and member removal.
const MinGroupMembers = 3

// Participant is the per-member record inside a conversation document.
// LastReadAt is the read cursor; UnreadCount only changes through atomic
// store-side increments.
type Participant struct {
	UserID            string     `bson:"user" json:"userId"`
	LastReadMessageID string     `bson:"last_read_message,omitempty" json:"lastReadMessageId,omitempty"`
	LastReadAt        *time.Time `bson:"last_read_at,omitempty" json:"lastReadAt,omitempty"`
	UnreadCount       int        `bson:"unread_count" json:"unreadCount"`
}

// Avatar definition group avatar stored on the media store
type Avatar struct {
	URL      string `bson:"url,omitempty" json:"url,omitempty"`
	PublicID string `bson:"public_id,omitempty" json:"publicId,omitempty"`
}

// LastMessage is the denormalized preview of the most recent non-deleted
// message. It is a cache for listing, not the source of message content.
type LastMessage struct {
	MessageID string     `bson:"message_id,omitempty" json:"messageId,omitempty"`
	SenderID  string     `bson:"sender,omitempty" json:"senderId,omitempty"`
	Type      string     `bson:"type,omitempty" json:"type,omitempty"`
	Content   string     `bson:"content,omitempty" json:"content,omitempty"`
	IsDeleted bool       `bson:"is_deleted" json:"isDeleted"`
	CreatedAt *time.Time `bson:"created_at,omitempty" json:"createdAt,omitempty"`
}

// Conversation definition conversation document
type Conversation struct {
	ID           string           `bson:"_id,omitempty" json:"id"`
	Type         ConversationType `bson:"type" json:"type"`
	Participants []Participant    `bson:"participants" json:"participants"`
	Name         string           `bson:"name,omitempty" json:"name,omitempty"`
	Avatar       Avatar           `bson:"avatar,omitempty" json:"avatar,omitempty"`
	Admin        []string         `bson:"admin,omitempty" json:"admin,omitempty"`
	LastMessage  LastMessage      `bson:"last_message,omitempty" json:"lastMessage"`
	IsActive     bool             `bson:"is_active" json:"isActive"`

	// PairKey is set for private conversations only. The repository keeps a
	// unique sparse index on it so concurrent duplicate creations collapse
	// into a single document.
	PairKey string `bson:"pair_key,omitempty" json:"-"`

	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"`

	// UnreadCount is computed per caller on reads, never persisted here.
	UnreadCount int `bson:"-" json:"unreadCount"`
}

// PrivatePairKey builds the order-independent lookup key for a 1 on 1 pair.
func PrivatePairKey(userA, userB string) string {
	pair := []string{userA, userB}
	sort.Strings(pair)
	return strings.Join(pair, ":")
}

// Participant returns the record for userID, or nil.
func (c *Conversation) Participant(userID string) *Participant {
	for i := range c.Participants {
		if c.Participants[i].UserID == userID {
			return &c.Participants[i]
		}
	}
	return nil
}

// HasParticipant check userID is a member
func (c *Conversation) HasParticipant(userID string) bool {
	return c.Participant(userID) != nil
}

// IsAdmin check userID has membership-management rights
func (c *Conversation) IsAdmin(userID string) bool {
	for _, id := range c.Admin {
		if id == userID {
			return true
		}
	}
	return false
}
