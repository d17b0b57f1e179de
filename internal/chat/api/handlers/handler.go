package handlers

import (
	"strconv"

	errdef "realtime_chat_service/pkg/err"
	"realtime_chat_service/pkg/middlewares"

	"github.com/gofiber/fiber/v2"
)

const (
	defaultPage  = 1
	defaultLimit = 20
	maxLimit     = 100
)

// statusOf maps an error kind to its HTTP status. Missing and foreign
// resources both read as 404 so existence is never leaked.
func statusOf(err error) int {
	switch errdef.KindOf(err) {
	case errdef.KindValidation, errdef.KindInvalidOperation:
		return fiber.StatusBadRequest
	case errdef.KindPermissionDenied:
		return fiber.StatusForbidden
	case errdef.KindNotFound, errdef.KindAccessDenied:
		return fiber.StatusNotFound
	case errdef.KindConflict:
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

func fail(c *fiber.Ctx, err error) error {
	return c.Status(statusOf(err)).JSON(fiber.Map{"error": errdef.Message(err)})
}

func currentUser(c *fiber.Ctx) (string, bool) {
	userID, ok := c.Locals(middlewares.TokenUserID).(string)
	return userID, ok && userID != ""
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
}

// parsePagination reads page/limit query params. Non-numeric or non-positive
// values fall back to the defaults instead of erroring.
func parsePagination(c *fiber.Ctx) (page, limit int) {
	page = defaultPage
	limit = defaultLimit
	if v, err := strconv.Atoi(c.Query("page")); err == nil && v > 0 {
		page = v
	}
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 {
		limit = v
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return page, limit
}
