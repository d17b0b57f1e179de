package handlers

import (
	"realtime_chat_service/internal/chat/app"
	"realtime_chat_service/internal/chat/domain"
	"realtime_chat_service/pkg/logger"

	"github.com/gofiber/fiber/v2"
)

// MessageHandler definition message HTTP endpoints
type MessageHandler struct {
	uc    *app.MessageUseCase
	media domain.MediaStore
}

// NewMessageHandler create MessageHandler
func NewMessageHandler(uc *app.MessageUseCase, media domain.MediaStore) *MessageHandler {
	return &MessageHandler{uc: uc, media: media}
}

// Create sends a message. Accepts JSON or multipart; a multipart attachment
// is stored best-effort and the message degrades to plain text when the
// store is unavailable.
func (h *MessageHandler) Create(c *fiber.Ctx) error {
	userID, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}

	in := app.CreateMessageInput{}
	if form, err := c.MultipartForm(); err == nil && form != nil {
		in.ConversationID = c.FormValue("conversationId")
		in.Content = c.FormValue("content")
		in.Type = domain.MessageType(c.FormValue("type"))
		in.ReplyTo = c.FormValue("replyTo")
		in.ForwardedFrom = c.FormValue("forwardedFrom")

		if file, err := c.FormFile("file"); err == nil && h.media != nil {
			src, oerr := file.Open()
			if oerr != nil {
				logger.Log.Errorf("open upload failed", oerr)
			} else {
				info, uerr := h.media.Upload(c.Context(), src, file.Size, file.Filename, file.Header.Get("Content-Type"))
				src.Close()
				if uerr != nil {
					// The message still goes out, just without the attachment.
					logger.Log.Errorf("store attachment failed", uerr)
					in.Type = domain.MessageTypeText
				} else {
					in.File = info
				}
			}
		}
	} else {
		type request struct {
			ConversationID string `json:"conversationId"`
			Content        string `json:"content"`
			Type           string `json:"type"`
			ReplyTo        string `json:"replyTo"`
			ForwardedFrom  string `json:"forwardedFrom"`
		}
		var req request
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request"})
		}
		in = app.CreateMessageInput{
			ConversationID: req.ConversationID,
			Content:        req.Content,
			Type:           domain.MessageType(req.Type),
			ReplyTo:        req.ReplyTo,
			ForwardedFrom:  req.ForwardedFrom,
		}
	}

	msg, err := h.uc.Create(c.Context(), userID, in)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": msg})
}

// List pages through a conversation's messages in chronological order.
func (h *MessageHandler) List(c *fiber.Ctx) error {
	userID, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}
	page, limit := parsePagination(c)

	msgs, pagination, err := h.uc.List(c.Context(), c.Params("conversationId"), userID, page, limit)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"messages":   msgs,
		"pagination": pagination,
	})
}

// Edit rewrites the caller's own message.
func (h *MessageHandler) Edit(c *fiber.Ctx) error {
	userID, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}
	type request struct {
		Content string `json:"content"`
	}
	var req request
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request"})
	}
	msg, err := h.uc.Edit(c.Context(), c.Params("id"), userID, req.Content)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"message": msg})
}

// Delete soft-deletes the caller's own message.
func (h *MessageHandler) Delete(c *fiber.Ctx) error {
	userID, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}
	msg, err := h.uc.Delete(c.Context(), c.Params("id"), userID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"message": msg})
}

// MarkRead records a read receipt for one message.
func (h *MessageHandler) MarkRead(c *fiber.Ctx) error {
	userID, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}
	readBy, err := h.uc.MarkMessageRead(c.Context(), c.Params("id"), userID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"readBy": readBy})
}
