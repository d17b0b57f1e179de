package app

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"realtime_chat_service/internal/chat/domain"
	"realtime_chat_service/internal/chat/repository"
	"realtime_chat_service/pkg/logger"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// typingTTL bounds how long a typing indicator survives without a stop or a
// refresh, so a crashed client never types forever.
const typingTTL = 6 * time.Second

// ConversationRoom builds the room name for a conversation.
func ConversationRoom(conversationID string) string {
	return "conversation_" + conversationID
}

// UserRoom builds the per-user room used for direct pushes.
func UserRoom(userID string) string {
	return "user_" + userID
}

// Client is one websocket connection. Writes go through send so concurrent
// broadcasts never interleave on the wire.
type Client struct {
	conn     *websocket.Conn
	UserID   string
	Username string
	mu       sync.Mutex
}

// NewClient create a Client
func NewClient(conn *websocket.Conn, userID, username string) *Client {
	return &Client{conn: conn, UserID: userID, Username: username}
}

func (c *Client) send(resp domain.WSResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.WriteJSON(resp); err != nil {
		logger.Log.Debug(fmt.Sprintf("ws write to %s failed: %v", c.UserID, err))
	}
}

// Hub tracks rooms, per-user connection counts and typing state, and fans
// events out to local sockets and, through the redis bridge, to peer
// instances. It implements Broadcaster.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]bool
	// conns counts live sockets per user; presence flips only on 0<->1.
	conns  map[string]int
	typing map[string]map[string]*time.Timer

	instance string
	bridge   *repository.RedisPubSub
}

// NewHub create Hub. bridge may be nil for single-instance deployments.
func NewHub(bridge *repository.RedisPubSub) *Hub {
	return &Hub{
		rooms:    make(map[string]map[*Client]bool),
		conns:    make(map[string]int),
		typing:   make(map[string]map[string]*time.Timer),
		instance: uuid.New().String(),
		bridge:   bridge,
	}
}

// Run subscribes to the bridge and re-delivers events published by peer
// instances. Blocks until ctx is done.
func (h *Hub) Run(ctx context.Context) error {
	if h.bridge == nil {
		<-ctx.Done()
		return nil
	}
	return h.bridge.Subscribe(ctx, func(env domain.EventEnvelope) {
		if env.Instance == h.instance {
			return
		}
		h.deliver(env.Room, env.Event, json.RawMessage(env.Payload), nil)
	})
}

// Register adds the client to its user room and counts the connection. It
// reports whether this is the user's first live connection.
func (h *Hub) Register(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.joinLocked(UserRoom(c.UserID), c)
	h.conns[c.UserID]++
	return h.conns[c.UserID] == 1
}

// Unregister removes the client from every room, clears its typing
// indicators and reports whether the user has no connections left.
func (h *Hub) Unregister(c *Client) bool {
	h.typingClear(c)

	h.mu.Lock()
	defer h.mu.Unlock()
	for room, members := range h.rooms {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	h.conns[c.UserID]--
	if h.conns[c.UserID] <= 0 {
		delete(h.conns, c.UserID)
		return true
	}
	return false
}

// JoinRoom adds the client to a room.
func (h *Hub) JoinRoom(room string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.joinLocked(room, c)
}

// LeaveRoom removes the client from a room.
func (h *Hub) LeaveRoom(room string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if members, ok := h.rooms[room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

// InRoom check the client joined the room.
func (h *Hub) InRoom(room string, c *Client) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.rooms[room][c]
}

func (h *Hub) joinLocked(room string, c *Client) {
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Client]bool)
		h.rooms[room] = members
	}
	members[c] = true
}

// ToConversation broadcasts an event to a conversation room on every
// instance.
func (h *Hub) ToConversation(conversationID, event string, payload interface{}) {
	h.broadcast(ConversationRoom(conversationID), event, payload, nil)
}

// ToUser pushes an event to all of the user's connections on every instance.
func (h *Hub) ToUser(userID, event string, payload interface{}) {
	h.broadcast(UserRoom(userID), event, payload, nil)
}

// broadcast delivers locally and forwards over the bridge. except is skipped
// locally; remote instances never hold the excepted client.
func (h *Hub) broadcast(room, event string, payload interface{}, except *Client) {
	h.deliver(room, event, payload, except)
	if h.bridge == nil {
		return
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		logger.Log.Errorf(fmt.Sprintf("marshal %s payload failed", event), err)
		return
	}
	env := domain.EventEnvelope{
		Instance: h.instance,
		Room:     room,
		Event:    event,
		Payload:  raw,
	}
	if err := h.bridge.Publish(context.Background(), env); err != nil {
		logger.Log.Errorf(fmt.Sprintf("publish %s to bridge failed", event), err)
	}
}

func (h *Hub) deliver(room, event string, payload interface{}, except *Client) {
	h.mu.RLock()
	members := make([]*Client, 0, len(h.rooms[room]))
	for c := range h.rooms[room] {
		if c != except {
			members = append(members, c)
		}
	}
	h.mu.RUnlock()

	resp := domain.WSResponse{Event: event, Success: true, Payload: payload}
	for _, c := range members {
		c.send(resp)
	}
}

// StartTyping broadcasts a typing indicator to everyone else in the room and
// arms the expiry timer. A repeat start refreshes the timer.
func (h *Hub) StartTyping(conversationID string, c *Client) {
	h.mu.Lock()
	byUser, ok := h.typing[conversationID]
	if !ok {
		byUser = make(map[string]*time.Timer)
		h.typing[conversationID] = byUser
	}
	if t, ok := byUser[c.UserID]; ok {
		t.Stop()
	}
	userID, username := c.UserID, c.Username
	byUser[c.UserID] = time.AfterFunc(typingTTL, func() {
		h.expireTyping(conversationID, userID, username)
	})
	h.mu.Unlock()

	h.broadcast(ConversationRoom(conversationID), domain.EventUserTyping, domain.TypingPayload{
		UserID:         c.UserID,
		Username:       c.Username,
		ConversationID: conversationID,
	}, c)
}

// StopTyping cancels the indicator and tells the room.
func (h *Hub) StopTyping(conversationID string, c *Client) {
	if !h.cancelTyping(conversationID, c.UserID) {
		return
	}
	h.broadcast(ConversationRoom(conversationID), domain.EventUserStopTyping, domain.TypingPayload{
		UserID:         c.UserID,
		Username:       c.Username,
		ConversationID: conversationID,
	}, c)
}

func (h *Hub) expireTyping(conversationID, userID, username string) {
	if !h.cancelTyping(conversationID, userID) {
		return
	}
	h.broadcast(ConversationRoom(conversationID), domain.EventUserStopTyping, domain.TypingPayload{
		UserID:         userID,
		Username:       username,
		ConversationID: conversationID,
	}, nil)
}

// cancelTyping drops the typing record, reporting whether one existed.
func (h *Hub) cancelTyping(conversationID, userID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	byUser, ok := h.typing[conversationID]
	if !ok {
		return false
	}
	t, ok := byUser[userID]
	if !ok {
		return false
	}
	t.Stop()
	delete(byUser, userID)
	if len(byUser) == 0 {
		delete(h.typing, conversationID)
	}
	return true
}

// typingClear stops every indicator the client left behind on disconnect.
func (h *Hub) typingClear(c *Client) {
	h.mu.Lock()
	var stale []string
	for convID, byUser := range h.typing {
		if _, ok := byUser[c.UserID]; ok {
			stale = append(stale, convID)
		}
	}
	h.mu.Unlock()

	for _, convID := range stale {
		if h.cancelTyping(convID, c.UserID) {
			h.broadcast(ConversationRoom(convID), domain.EventUserStopTyping, domain.TypingPayload{
				UserID:         c.UserID,
				Username:       c.Username,
				ConversationID: convID,
			}, nil)
		}
	}
}
