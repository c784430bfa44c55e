package utils

import "github.com/gofiber/fiber/v2"

var includeStackTraces = true

// ConfigureResponses toggles stack detail in 500 bodies; production mode
// surfaces the message only.
func ConfigureResponses(production bool) {
	includeStackTraces = !production
}

func Success(c *fiber.Ctx, status int, data interface{}) error {
	return c.Status(status).JSON(fiber.Map{
		"success": true,
		"data":    data,
	})
}

func Error(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"error":   message,
	})
}

// Internal renders a 500 envelope. The underlying error is attached only
// outside production mode.
func Internal(c *fiber.Ctx, message string, err error) error {
	body := fiber.Map{
		"success": false,
		"error":   message,
	}
	if includeStackTraces && err != nil {
		body["detail"] = err.Error()
	}
	return c.Status(fiber.StatusInternalServerError).JSON(body)
}

func Paginated(c *fiber.Ctx, data interface{}, page, limit int, total int64) error {
	totalPages := int((total + int64(limit) - 1) / int64(limit))
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": true,
		"data":    data,
		"pagination": fiber.Map{
			"page":       page,
			"limit":      limit,
			"total":      total,
			"totalPages": totalPages,
		},
	})
}
