package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/wildatlas/backend/pkg/utils"
)

const Version = "1.0.0"

func GetVersion(c *fiber.Ctx) error {
	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"version":    Version,
		"apiVersion": "v1",
	})
}
