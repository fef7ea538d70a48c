package services

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/lingopal/lingopal-client/internal/api"
	"github.com/lingopal/lingopal-client/internal/auth"
	"github.com/lingopal/lingopal-client/internal/models"
)

// ErrProfessorDisabled is returned when no instructor password hash is
// configured.
var ErrProfessorDisabled = errors.New("professor access is not configured")

// ProfessorBackend is the slice of the API client the instructor views use.
type ProfessorBackend interface {
	Students(ctx context.Context, professorEmail string) ([]models.StudentRecord, error)
	StudentConversation(ctx context.Context, profEmail, studentKey, chatbotName string) (*api.ProfessorConversation, error)
}

// ProfessorService gates the instructor views behind a shared password and
// hands out short-lived session tokens.
type ProfessorService struct {
	backend      ProfessorBackend
	jwt          *auth.JWTService
	passwordHash string
	log          *logrus.Entry
}

// NewProfessorService creates the instructor service. An empty passwordHash
// disables login entirely.
func NewProfessorService(backend ProfessorBackend, jwt *auth.JWTService, passwordHash string) *ProfessorService {
	return &ProfessorService{
		backend:      backend,
		jwt:          jwt,
		passwordHash: passwordHash,
		log:          logrus.WithField("component", "professor"),
	}
}

// Login checks the instructor password and mints a session token.
func (s *ProfessorService) Login(email, password string) (string, error) {
	if s.passwordHash == "" {
		return "", ErrProfessorDisabled
	}
	if !auth.CheckPassword(password, s.passwordHash) {
		s.log.WithField("email", email).Warn("failed professor login")
		return "", auth.ErrInvalidPassword
	}

	token, err := s.jwt.GenerateProfessorToken(email)
	if err != nil {
		return "", err
	}
	s.log.WithField("email", email).Info("professor logged in")
	return token, nil
}

// Validate parses a session token and returns its claims.
func (s *ProfessorService) Validate(token string) (*auth.ProfessorClaims, error) {
	return s.jwt.ValidateToken(token)
}

// Students lists the students who submitted transcripts to this instructor.
func (s *ProfessorService) Students(ctx context.Context, email string) ([]models.StudentRecord, error) {
	return s.backend.Students(ctx, email)
}

// StudentConversation loads a student's latest conversation with a chatbot.
func (s *ProfessorService) StudentConversation(ctx context.Context, email, studentKey, chatbotName string) (*api.ProfessorConversation, error) {
	return s.backend.StudentConversation(ctx, email, studentKey, chatbotName)
}
