package services

import (
	"github.com/lingopal/lingopal-client/internal/api"
	"github.com/lingopal/lingopal-client/internal/auth"
	"github.com/lingopal/lingopal-client/internal/chatlog"
	"github.com/lingopal/lingopal-client/internal/config"
	"github.com/lingopal/lingopal-client/internal/repository"
	"github.com/lingopal/lingopal-client/internal/session"
)

// Services holds all service instances
type Services struct {
	Conversation *ConversationService
	Prompts      *PromptService
	Professor    *ProfessorService
	Settings     *SettingsService

	Tokens *session.Manager
}

// NewServices creates all service instances
func NewServices(cfg *config.Config, client *api.Client, state repository.StateRepository) *Services {
	log := chatlog.New()
	tokens := session.NewManager(client, state)

	conversation := NewConversationService(log, tokens, client, state, cfg.Defaults.Voice)
	prompts := NewPromptService(client, conversation.RefreshChatbots)

	jwtService := auth.NewJWTService(cfg.Professor.JWTSecret, "lingopal")
	professor := NewProfessorService(client, jwtService, cfg.Professor.PasswordHash)

	settings := NewSettingsService(state, cfg.Defaults.Theme, cfg.Defaults.Language)

	return &Services{
		Conversation: conversation,
		Prompts:      prompts,
		Professor:    professor,
		Settings:     settings,
		Tokens:       tokens,
	}
}
