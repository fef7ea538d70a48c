package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/lingopal/lingopal-client/internal/auth"
	"github.com/lingopal/lingopal-client/internal/gateway/middleware"
	"github.com/lingopal/lingopal-client/internal/services"
)

// ProfessorLogin checks the instructor password and returns a session token.
func ProfessorLogin(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid request body",
			})
		}

		token, err := svc.Professor.Login(req.Email, req.Password)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrInvalidPassword):
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"error": "Incorrect password",
				})
			case errors.Is(err, services.ErrProfessorDisabled):
				return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
					"error": "Professor access is not configured",
				})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": err.Error(),
			})
		}

		return c.JSON(fiber.Map{"token": token, "email": req.Email})
	}
}

// GetStudents lists the students who submitted transcripts to the logged-in
// instructor.
func GetStudents(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims := middleware.GetProfessor(c)
		if claims == nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Not authenticated",
			})
		}

		students, err := svc.Professor.Students(c.Context(), claims.Email)
		if err != nil {
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		return c.JSON(fiber.Map{"students": students})
	}
}

// GetStudentConversation loads a student's latest conversation with a chatbot.
func GetStudentConversation(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims := middleware.GetProfessor(c)
		if claims == nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Not authenticated",
			})
		}

		studentKey := c.Query("student_key")
		chatbotName := c.Query("chatbot_name")
		if studentKey == "" || chatbotName == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "student_key and chatbot_name are required",
			})
		}

		conversation, err := svc.Professor.StudentConversation(c.Context(), claims.Email, studentKey, chatbotName)
		if err != nil {
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		return c.JSON(conversation)
	}
}
