package middleware

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"

	"github.com/lingopal/lingopal-client/internal/api"
	"github.com/lingopal/lingopal-client/internal/auth"
	"github.com/lingopal/lingopal-client/internal/models"
	"github.com/lingopal/lingopal-client/internal/services"
)

type noopProfessorBackend struct{}

func (noopProfessorBackend) Students(ctx context.Context, professorEmail string) ([]models.StudentRecord, error) {
	return nil, nil
}

func (noopProfessorBackend) StudentConversation(ctx context.Context, profEmail, studentKey, chatbotName string) (*api.ProfessorConversation, error) {
	return nil, nil
}

const testSecret = "test-secret"

func newTestApp(t *testing.T) (*fiber.App, *services.ProfessorService) {
	hash, err := auth.HashPassword("open sesame")
	assert.NoError(t, err)
	svc := services.NewProfessorService(noopProfessorBackend{}, auth.NewJWTService(testSecret, "lingopal"), hash)

	app := fiber.New()
	app.Get("/guarded", ProfessorRequired(svc), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"email": GetProfessor(c).Email})
	})
	return app, svc
}

func expiredToken(t *testing.T) string {
	claims := auth.ProfessorClaims{
		Email: "prof@example.com",
		Role:  "professor",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	assert.NoError(t, err)
	return token
}

func TestProfessorRequired_ValidToken(t *testing.T) {
	app, svc := newTestApp(t)

	token, err := svc.Login("prof@example.com", "open sesame")
	assert.NoError(t, err)

	req := httptest.NewRequest("GET", "/guarded", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	assert.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, _ := io.ReadAll(resp.Body)
	var out map[string]string
	assert.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, "prof@example.com", out["email"])
}

func TestProfessorRequired_MissingToken(t *testing.T) {
	app, _ := newTestApp(t)

	resp, err := app.Test(httptest.NewRequest("GET", "/guarded", nil))
	assert.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestProfessorRequired_ExpiredToken(t *testing.T) {
	app, _ := newTestApp(t)

	req := httptest.NewRequest("GET", "/guarded", nil)
	req.Header.Set("Authorization", "Bearer "+expiredToken(t))
	resp, err := app.Test(req)
	assert.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	body, _ := io.ReadAll(resp.Body)
	var out map[string]string
	assert.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, "Token expired", out["error"])
}

func TestProfessorRequired_GarbageToken(t *testing.T) {
	app, _ := newTestApp(t)

	req := httptest.NewRequest("GET", "/guarded", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	resp, err := app.Test(req)
	assert.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
