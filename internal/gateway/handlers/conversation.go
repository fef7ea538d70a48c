package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/lingopal/lingopal-client/internal/models"
	"github.com/lingopal/lingopal-client/internal/services"
)

// GetChatbots returns persona definitions keyed by title, optionally filtered
// to one language via ?language=.
func GetChatbots(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var (
			configs map[string]models.ChatbotConfig
			err     error
		)
		if language := c.Query("language"); language != "" {
			configs, err = svc.Conversation.ChatbotsByLanguage(c.Context(), language)
		} else {
			configs, err = svc.Conversation.Chatbots(c.Context())
		}
		if err != nil {
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		return c.JSON(configs)
	}
}

// GetLanguages returns the unique persona languages, sorted.
func GetLanguages(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		languages, err := svc.Conversation.Languages(c.Context())
		if err != nil {
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		return c.JSON(fiber.Map{"languages": languages})
	}
}

// SelectChatbot switches the active chatbot and reseeds the conversation.
func SelectChatbot(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req struct {
			Title string `json:"title"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid request body",
			})
		}

		if err := svc.Conversation.Select(c.Context(), req.Title); err != nil {
			if errors.Is(err, services.ErrUnknownChatbot) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
					"error": "Unknown chatbot",
				})
			}
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"error": err.Error(),
			})
		}

		return c.JSON(fiber.Map{
			"selected": svc.Conversation.Selected(),
			"messages": svc.Conversation.Log().Snapshot(),
		})
	}
}

// GetMessages returns the rendered conversation log.
func GetMessages(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"selected":            svc.Conversation.Selected(),
			"conversation_length": svc.Conversation.ConversationLength(),
			"messages":            svc.Conversation.Log().Snapshot(),
		})
	}
}

// SendMessage runs the send-text flow and returns the updated log.
func SendMessage(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req struct {
			Message string `json:"message"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid request body",
			})
		}

		if err := svc.Conversation.SendText(c.Context(), req.Message); err != nil {
			if errors.Is(err, services.ErrBusy) {
				return c.Status(fiber.StatusConflict).JSON(fiber.Map{
					"error": "A message is already being sent",
				})
			}
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"error": err.Error(),
			})
		}

		return c.JSON(fiber.Map{
			"conversation_length": svc.Conversation.ConversationLength(),
			"messages":            svc.Conversation.Log().Snapshot(),
		})
	}
}

// ClearHistory drops the stored conversation and reseeds the log.
func ClearHistory(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := svc.Conversation.ClearHistory(c.Context()); err != nil {
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		return c.JSON(fiber.Map{
			"messages": svc.Conversation.Log().Snapshot(),
		})
	}
}

// GetHistory returns the backend-stored exchange history.
func GetHistory(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		history, err := svc.Conversation.History(c.Context())
		if err != nil {
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		return c.JSON(fiber.Map{"conversations": history})
	}
}

// SendTranscript emails the conversation to an instructor.
func SendTranscript(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req services.TranscriptInput
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid request body",
			})
		}

		if err := svc.Conversation.SendTranscript(c.Context(), req); err != nil {
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		return c.JSON(fiber.Map{"message": "Transcript sent"})
	}
}

// SpeakMessage lazily synthesizes audio for a log entry.
func SpeakMessage(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		url, err := svc.Conversation.SpeakMessage(c.Context(), c.Params("id"))
		if err != nil {
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		return c.JSON(fiber.Map{"audioUrl": url})
	}
}
