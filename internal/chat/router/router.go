package router

import (
	"realtime_chat_service/internal/chat/api/handlers"
	"realtime_chat_service/internal/chat/app"
	"realtime_chat_service/pkg/middlewares"
	"realtime_chat_service/pkg/token"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// RegisterRoutes wires the REST endpoints and the websocket entry. Every
// route sits behind the JWT middleware; the websocket upgrade reuses the
// same identity from c.Locals.
func RegisterRoutes(r *fiber.App, conv *handlers.ConversationHandler, msg *handlers.MessageHandler, ws *app.WebsocketHandler, blacklist *token.Blacklist) {
	r.Use(middlewares.JWTMiddleware(blacklist))

	conversations := r.Group("/api/conversations")
	conversations.Post("/private", conv.CreatePrivate)
	conversations.Post("/group", conv.CreateGroup)
	conversations.Get("/", conv.List)
	conversations.Get("/:id", conv.Get)
	conversations.Delete("/:id", conv.Delete)
	conversations.Put("/:id/read", conv.MarkRead)
	conversations.Post("/:id/members", conv.AddMembers)
	conversations.Delete("/:id/members/:memberId", conv.RemoveMember)

	messages := r.Group("/api/messages")
	messages.Post("/", msg.Create)
	messages.Get("/:conversationId", msg.List)
	messages.Put("/:id", msg.Edit)
	messages.Delete("/:id", msg.Delete)
	messages.Put("/:id/read", msg.MarkRead)

	r.Get("/ws", websocket.New(func(c *websocket.Conn) {
		ws.HandleConnection(c)
	}))
}
