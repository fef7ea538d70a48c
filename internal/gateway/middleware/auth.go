package middleware

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/lingopal/lingopal-client/internal/auth"
	"github.com/lingopal/lingopal-client/internal/services"
)

const professorLocal = "professor"

// ProfessorRequired rejects requests without a valid instructor token. The
// token comes from the Authorization header as a bearer token.
func ProfessorRequired(svc *services.ProfessorService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get("Authorization")
		token := strings.TrimPrefix(header, "Bearer ")
		if token == "" || token == header {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Not authenticated",
			})
		}

		claims, err := svc.Validate(token)
		if err != nil {
			msg := "Invalid token"
			if errors.Is(err, auth.ErrExpiredToken) {
				msg = "Token expired"
			}
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": msg,
			})
		}

		c.Locals(professorLocal, claims)
		return c.Next()
	}
}

// GetProfessor returns the claims stored by ProfessorRequired, or nil.
func GetProfessor(c *fiber.Ctx) *auth.ProfessorClaims {
	claims, _ := c.Locals(professorLocal).(*auth.ProfessorClaims)
	return claims
}
