package gateway

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/lingopal/lingopal-client/internal/api"
	"github.com/lingopal/lingopal-client/internal/audio"
	"github.com/lingopal/lingopal-client/internal/gateway/handlers"
	"github.com/lingopal/lingopal-client/internal/gateway/middleware"
	"github.com/lingopal/lingopal-client/internal/services"
)

// SetupRoutes configures the local API surface the browser UI talks to.
func SetupRoutes(app *fiber.App, svc *services.Services, rec *audio.Recorder, client *api.Client) {
	root := app.Group("/api")

	// Conversation
	root.Get("/chatbots", handlers.GetChatbots(svc))
	root.Get("/languages", handlers.GetLanguages(svc))
	root.Post("/chatbots/select", handlers.SelectChatbot(svc))
	root.Get("/messages", handlers.GetMessages(svc))
	root.Post("/messages", handlers.SendMessage(svc))
	root.Post("/messages/:id/tts", handlers.SpeakMessage(svc))
	root.Post("/history/clear", handlers.ClearHistory(svc))
	root.Get("/history", handlers.GetHistory(svc))
	root.Post("/transcript", handlers.SendTranscript(svc))

	// Persisted preferences
	root.Get("/settings", handlers.GetSettings(svc))
	root.Put("/settings", handlers.UpdateSettings(svc))

	// Microphone capture
	root.Get("/recorder", handlers.GetRecorderState(rec))
	root.Post("/recorder/start", handlers.StartRecording(rec))
	root.Post("/recorder/stop", handlers.StopRecording(rec, svc))
	root.Post("/recorder/upload", handlers.UploadRecording(svc))
	root.Post("/audio/send", handlers.SendAudio(svc))

	// Audio playback proxy
	root.Get("/audio/:filename", handlers.ProxyAudio(client))

	// Instructor views
	root.Post("/professor/login", handlers.ProfessorLogin(svc))

	professor := root.Group("/professor", middleware.ProfessorRequired(svc.Professor))
	professor.Get("/students", handlers.GetStudents(svc))
	professor.Get("/conversation", handlers.GetStudentConversation(svc))

	prompts := root.Group("/prompts", middleware.ProfessorRequired(svc.Professor))
	prompts.Get("/", handlers.ListPrompts(svc))
	prompts.Post("/", handlers.CreatePrompt(svc))
	prompts.Post("/deselect", handlers.DeselectPrompt(svc))
	prompts.Get("/:title", handlers.GetPrompt(svc))
	prompts.Put("/:title", handlers.UpdatePrompt(svc))
	prompts.Delete("/:title", handlers.DeletePrompt(svc))

	// WebSocket event stream
	root.Use("/events", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	root.Get("/events", websocket.New(handlers.StreamEvents(svc)))

	// Health check
	root.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"service": "lingopal-client",
		})
	})
}
