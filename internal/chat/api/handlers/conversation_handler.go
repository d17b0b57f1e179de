package handlers

import (
	"strings"

	"realtime_chat_service/internal/chat/app"
	"realtime_chat_service/internal/chat/domain"
	"realtime_chat_service/pkg/logger"

	"github.com/gofiber/fiber/v2"
)

// ConversationHandler definition conversation HTTP endpoints
type ConversationHandler struct {
	uc    *app.ConversationUseCase
	media domain.MediaStore
}

// NewConversationHandler create ConversationHandler
func NewConversationHandler(uc *app.ConversationUseCase, media domain.MediaStore) *ConversationHandler {
	return &ConversationHandler{uc: uc, media: media}
}

// CreatePrivate opens (or returns) the 1 on 1 conversation with another user.
func (h *ConversationHandler) CreatePrivate(c *fiber.Ctx) error {
	userID, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}
	type request struct {
		ParticipantID string `json:"participantId"`
	}
	var req request
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request"})
	}

	view, isNew, err := h.uc.CreatePrivate(c.Context(), userID, req.ParticipantID)
	if err != nil {
		return fail(c, err)
	}
	status := fiber.StatusOK
	if isNew {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(fiber.Map{
		"conversation": view.Conversation,
		"users":        view.Users,
		"isNew":        isNew,
	})
}

// CreateGroup creates a group conversation. Accepts JSON or multipart; the
// multipart form may carry an avatar file which is stored best-effort.
func (h *ConversationHandler) CreateGroup(c *fiber.Ctx) error {
	userID, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}

	var (
		name    string
		members []string
		avatar  *domain.Avatar
	)
	if form, err := c.MultipartForm(); err == nil && form != nil {
		name = c.FormValue("name")
		for _, id := range strings.Split(c.FormValue("members"), ",") {
			if id = strings.TrimSpace(id); id != "" {
				members = append(members, id)
			}
		}
		if file, err := c.FormFile("avatar"); err == nil && h.media != nil {
			src, oerr := file.Open()
			if oerr != nil {
				logger.Log.Errorf("open avatar upload failed", oerr)
			} else {
				info, uerr := h.media.Upload(c.Context(), src, file.Size, file.Filename, file.Header.Get("Content-Type"))
				src.Close()
				if uerr != nil {
					// Group creation still succeeds without the avatar.
					logger.Log.Errorf("store avatar failed", uerr)
				} else {
					avatar = &domain.Avatar{URL: info.URL, PublicID: info.PublicID}
				}
			}
		}
	} else {
		type request struct {
			Name      string   `json:"name"`
			MemberIDs []string `json:"memberIds"`
		}
		var req request
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request"})
		}
		name = req.Name
		members = req.MemberIDs
	}

	view, err := h.uc.CreateGroup(c.Context(), userID, name, members, avatar)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"conversation": view.Conversation,
		"users":        view.Users,
	})
}

// List returns the caller's active conversations ordered by latest activity.
func (h *ConversationHandler) List(c *fiber.Ctx) error {
	userID, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}
	page, limit := parsePagination(c)

	views, pagination, err := h.uc.List(c.Context(), userID, page, limit)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"conversations": views,
		"pagination":    pagination,
	})
}

// Get returns one conversation with populated participants.
func (h *ConversationHandler) Get(c *fiber.Ctx) error {
	userID, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}
	view, err := h.uc.GetByID(c.Context(), c.Params("id"), userID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"conversation": view.Conversation,
		"users":        view.Users,
	})
}

// Delete soft-deletes a conversation.
func (h *ConversationHandler) Delete(c *fiber.Ctx) error {
	userID, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}
	if err := h.uc.SoftDelete(c.Context(), c.Params("id"), userID); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"message": "conversation deleted"})
}

// MarkRead resets the caller's unread counter and reports how many messages
// the reset covered.
func (h *ConversationHandler) MarkRead(c *fiber.Ctx) error {
	userID, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}
	unreadBefore, err := h.uc.MarkRead(c.Context(), c.Params("id"), userID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"unreadBefore": unreadBefore})
}

// AddMembers adds users to a group conversation.
func (h *ConversationHandler) AddMembers(c *fiber.Ctx) error {
	userID, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}
	type request struct {
		MemberIDs []string `json:"memberIds"`
	}
	var req request
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request"})
	}
	view, err := h.uc.AddMembers(c.Context(), c.Params("id"), userID, req.MemberIDs)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"conversation": view.Conversation,
		"users":        view.Users,
	})
}

// RemoveMember removes one user from a group conversation.
func (h *ConversationHandler) RemoveMember(c *fiber.Ctx) error {
	userID, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}
	view, err := h.uc.RemoveMember(c.Context(), c.Params("id"), userID, c.Params("memberId"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"conversation": view.Conversation,
		"users":        view.Users,
	})
}
