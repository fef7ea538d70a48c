package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/lingopal/lingopal-client/internal/api"
	"github.com/lingopal/lingopal-client/internal/services"
)

// ListPrompts groups persona titles by language.
func ListPrompts(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		grouped, err := svc.Prompts.List(c.Context())
		if err != nil {
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		return c.JSON(fiber.Map{
			"prompts":  grouped,
			"selected": svc.Prompts.Selected(),
		})
	}
}

// GetPrompt loads a persona into the editor and returns its fields.
func GetPrompt(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		payload, err := svc.Prompts.Select(c.Context(), c.Params("title"))
		if err != nil {
			if errors.Is(err, services.ErrPromptNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
					"error": "Prompt not found",
				})
			}
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		return c.JSON(payload)
	}
}

// DeselectPrompt returns the editor to create-new mode.
func DeselectPrompt(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		svc.Prompts.Deselect()
		return c.JSON(fiber.Map{"selected": ""})
	}
}

// CreatePrompt saves a new persona.
func CreatePrompt(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var payload api.PromptPayload
		if err := c.BodyParser(&payload); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid request body",
			})
		}

		if err := svc.Prompts.Create(c.Context(), payload); err != nil {
			if errors.Is(err, services.ErrPromptExists) {
				return c.Status(fiber.StatusConflict).JSON(fiber.Map{
					"error": err.Error(),
				})
			}
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"message": "Prompt created",
		})
	}
}

// UpdatePrompt replaces the fields of the persona named in the path. The
// title in the path wins over anything in the body.
func UpdatePrompt(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var payload api.PromptPayload
		if err := c.BodyParser(&payload); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid request body",
			})
		}
		payload.Title = c.Params("title")

		if err := svc.Prompts.Update(c.Context(), payload); err != nil {
			if errors.Is(err, services.ErrPromptNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
					"error": "Prompt not found",
				})
			}
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		return c.JSON(fiber.Map{"message": "Prompt updated"})
	}
}

// DeletePrompt removes a persona.
func DeletePrompt(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := svc.Prompts.Delete(c.Context(), c.Params("title")); err != nil {
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		return c.JSON(fiber.Map{
			"message":  "Prompt deleted",
			"selected": svc.Prompts.Selected(),
		})
	}
}
