package middlewares

import (
	"strings"

	t_token "realtime_chat_service/pkg/token"

	"github.com/gofiber/fiber/v2"
)

const (
	// QueryToken token in query name, used by websocket handshakes
	QueryToken = "auth"

	// CookieToken token in cookie name
	CookieToken = "auth_token"

	// TokenUserID get user id from token, set c.Locals name
	TokenUserID = "UserID"
	// TokenRoles get roles from token, set c.Locals name
	TokenRoles = "Roles"
)

// JWTMiddleware validates the bearer credential and stores the caller
// identity in locals. Token is taken from the Authorization header, the
// auth cookie, or the auth query param (websocket handshake).
func JWTMiddleware(blacklist *t_token.Blacklist) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenStr := ""
		if h := c.Get(fiber.HeaderAuthorization); strings.HasPrefix(h, "Bearer ") {
			tokenStr = strings.TrimPrefix(h, "Bearer ")
		}
		if tokenStr == "" {
			tokenStr = c.Query(QueryToken)
		}
		if tokenStr == "" {
			tokenStr = c.Cookies(CookieToken)
		}
		if tokenStr == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing token",
			})
		}

		claims, err := t_token.ParseJWT(tokenStr)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid token",
			})
		}

		if blacklist != nil {
			revoked, err := blacklist.IsBlacklisted(c.Context(), tokenStr)
			if err == nil && revoked {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"error": "Token revoked",
				})
			}
		}

		c.Locals(TokenUserID, claims.UserID)
		c.Locals(TokenRoles, claims.Roles)

		return c.Next()
	}
}
