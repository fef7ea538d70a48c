package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/lingopal/lingopal-client/internal/services"
)

// GetSettings returns the persisted client preferences: theme, language
// filter, and the student identity that prefills the transcript dialog.
func GetSettings(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		settings, err := svc.Settings.Get(c.Context())
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		return c.JSON(settings)
	}
}

// UpdateSettings replaces the persisted client preferences.
func UpdateSettings(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var in services.Settings
		if err := c.BodyParser(&in); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid request body",
			})
		}

		if err := svc.Settings.Update(c.Context(), in); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": err.Error(),
			})
		}

		settings, err := svc.Settings.Get(c.Context())
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		return c.JSON(settings)
	}
}
