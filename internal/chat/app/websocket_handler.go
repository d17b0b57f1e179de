package app

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"realtime_chat_service/internal/chat/domain"
	"realtime_chat_service/internal/chat/repository"
	errdef "realtime_chat_service/pkg/err"
	"realtime_chat_service/pkg/logger"
	"realtime_chat_service/pkg/middlewares"

	"github.com/gofiber/websocket/v2"
)

const (
	pingInterval = 30 * time.Second
	pongWait     = 60 * time.Second
)

// WebsocketHandler owns the realtime side: connection lifecycle, room
// membership, typing relays and presence transitions.
type WebsocketHandler struct {
	hub      *Hub
	convUC   *ConversationUseCase
	msgUC    *MessageUseCase
	userRepo repository.UserRepository
}

// NewWebsocketHandler create WebsocketHandler
func NewWebsocketHandler(hub *Hub, convUC *ConversationUseCase, msgUC *MessageUseCase, userRepo repository.UserRepository) *WebsocketHandler {
	return &WebsocketHandler{
		hub:      hub,
		convUC:   convUC,
		msgUC:    msgUC,
		userRepo: userRepo,
	}
}

// HandleConnection runs one websocket session: auto-joins the user's active
// conversation rooms, processes inbound actions and, on disconnect, clears
// typing state and flips presence once the last connection is gone.
func (h *WebsocketHandler) HandleConnection(conn *websocket.Conn) {
	defer conn.Close()

	userID, ok := conn.Locals(middlewares.TokenUserID).(string)
	if !ok || userID == "" {
		writeError(conn, "unauthorized")
		return
	}

	ctx := context.Background()
	user, err := h.userRepo.FindByID(ctx, userID)
	if err != nil || user == nil {
		writeError(conn, "user not found")
		return
	}

	client := NewClient(conn, userID, user.Username)
	first := h.hub.Register(client)

	convIDs, err := h.convUC.ActiveConversationIDs(ctx, userID)
	if err != nil {
		logger.Log.Errorf(fmt.Sprintf("auto-join for %s failed", userID), err)
	}
	for _, id := range convIDs {
		h.hub.JoinRoom(ConversationRoom(id), client)
	}
	if first {
		h.setPresence(ctx, userID, convIDs, domain.UserStatusOnline)
	}

	defer func() {
		if h.hub.Unregister(client) {
			// Conversations joined or created mid-session must see the offline
			// event too, so the id list is re-derived here.
			dctx := context.Background()
			h.setPresence(dctx, userID, h.presenceTargets(dctx, userID, convIDs), domain.UserStatusOffline)
		}
	}()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				client.mu.Lock()
				err := conn.WriteMessage(websocket.PingMessage, nil)
				client.mu.Unlock()
				if err != nil {
					return
				}
			}
		}
	}()

	for {
		mt, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		var req domain.WSRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			client.send(domain.WSResponse{Event: "error", Error: "invalid request"})
			continue
		}
		h.handleAction(ctx, client, req)
	}
}

func (h *WebsocketHandler) handleAction(ctx context.Context, client *Client, req domain.WSRequest) {
	switch domain.Action(req.Action) {
	case domain.JoinConversation:
		// Re-check membership so a stale client cannot join a room it was
		// removed from.
		if _, err := h.convUC.GetByID(ctx, req.ConversationID, client.UserID); err != nil {
			client.send(domain.WSResponse{Event: req.Action, Error: errdef.Message(err)})
			return
		}
		h.hub.JoinRoom(ConversationRoom(req.ConversationID), client)
		client.send(domain.WSResponse{Event: req.Action, Success: true})

	case domain.LeaveConversation:
		h.hub.LeaveRoom(ConversationRoom(req.ConversationID), client)
		h.hub.StopTyping(req.ConversationID, client)
		client.send(domain.WSResponse{Event: req.Action, Success: true})

	case domain.TypingStart:
		if !h.hub.InRoom(ConversationRoom(req.ConversationID), client) {
			client.send(domain.WSResponse{Event: req.Action, Error: "not in conversation"})
			return
		}
		h.hub.StartTyping(req.ConversationID, client)

	case domain.TypingStop:
		h.hub.StopTyping(req.ConversationID, client)

	case domain.MarkAsRead:
		readBy, err := h.msgUC.MarkMessageRead(ctx, req.MessageID, client.UserID)
		if err != nil {
			client.send(domain.WSResponse{Event: req.Action, Error: errdef.Message(err)})
			return
		}
		client.send(domain.WSResponse{Event: req.Action, Success: true, Payload: readBy})

	default:
		client.send(domain.WSResponse{Event: "error", Error: "unknown action: " + req.Action})
	}
}

// presenceTargets returns the user's current active conversation ids, falling
// back to the connect-time snapshot when the lookup fails.
func (h *WebsocketHandler) presenceTargets(ctx context.Context, userID string, fallback []string) []string {
	ids, err := h.convUC.ActiveConversationIDs(ctx, userID)
	if err != nil {
		logger.Log.Errorf(fmt.Sprintf("refresh conversations of %s failed", userID), err)
		return fallback
	}
	return ids
}

// setPresence persists the status flip and tells every room the user sits in.
func (h *WebsocketHandler) setPresence(ctx context.Context, userID string, convIDs []string, status domain.UserStatus) {
	now := time.Now()
	if err := h.userRepo.SetStatus(ctx, userID, status, now); err != nil {
		logger.Log.Errorf(fmt.Sprintf("set status of %s failed", userID), err)
	}
	payload := domain.StatusPayload{
		UserID:     userID,
		Status:     string(status),
		LastSeenAt: now.Format(time.RFC3339),
	}
	for _, id := range convIDs {
		h.hub.ToConversation(id, domain.EventUserStatusChanged, payload)
	}
}

func writeError(conn *websocket.Conn, msg string) {
	_ = conn.WriteJSON(domain.WSResponse{Event: "error", Error: msg})
}
