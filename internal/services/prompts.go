package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/lingopal/lingopal-client/internal/api"
	"github.com/lingopal/lingopal-client/internal/models"
)

var (
	// ErrPromptExists is returned when creating a persona under a taken title.
	ErrPromptExists = errors.New("a prompt with this title already exists")
	// ErrPromptNotFound is returned when the title doesn't match any persona.
	ErrPromptNotFound = errors.New("prompt not found")
)

// PromptBackend is the slice of the API client the prompt admin uses.
type PromptBackend interface {
	Chatbots(ctx context.Context) (map[string]models.ChatbotConfig, error)
	SavePrompt(ctx context.Context, p api.PromptPayload) error
	UpdatePrompt(ctx context.Context, p api.PromptPayload) error
	DeletePrompt(ctx context.Context, title string) error
}

// PromptService manages the persona catalog and the editor's selection state.
// A "" selection means the editor is in create-new mode. The title is the
// persona's identity: updates replace every other field but never the title.
type PromptService struct {
	backend PromptBackend

	// invalidate tells the conversation layer its cached persona
	// definitions are stale after a mutation.
	invalidate func(ctx context.Context) error

	mu       sync.Mutex
	selected string

	log *logrus.Entry
}

// NewPromptService creates the prompt admin service. invalidate may be nil.
func NewPromptService(backend PromptBackend, invalidate func(ctx context.Context) error) *PromptService {
	return &PromptService{
		backend:    backend,
		invalidate: invalidate,
		log:        logrus.WithField("component", "prompts"),
	}
}

// All returns every persona definition keyed by title.
func (s *PromptService) All(ctx context.Context) (map[string]models.ChatbotConfig, error) {
	return s.backend.Chatbots(ctx)
}

// List groups persona titles by conversation language, titles sorted within
// each group.
func (s *PromptService) List(ctx context.Context) (map[string][]string, error) {
	configs, err := s.backend.Chatbots(ctx)
	if err != nil {
		return nil, err
	}
	grouped := map[string][]string{}
	for title, cfg := range configs {
		grouped[cfg.Language] = append(grouped[cfg.Language], title)
	}
	for _, titles := range grouped {
		sort.Strings(titles)
	}
	return grouped, nil
}

// Select loads a persona into the editor and remembers the selection.
func (s *PromptService) Select(ctx context.Context, title string) (*api.PromptPayload, error) {
	configs, err := s.backend.Chatbots(ctx)
	if err != nil {
		return nil, err
	}
	cfg, ok := configs[title]
	if !ok {
		return nil, ErrPromptNotFound
	}

	s.mu.Lock()
	s.selected = title
	s.mu.Unlock()

	return &api.PromptPayload{
		Title:       title,
		Name:        cfg.Name,
		Language:    cfg.Language,
		Level:       cfg.Level,
		InitialText: cfg.InitialText,
		Prompt:      cfg.Prompt,
	}, nil
}

// Deselect returns the editor to create-new mode.
func (s *PromptService) Deselect() {
	s.mu.Lock()
	s.selected = ""
	s.mu.Unlock()
}

// Selected returns the title loaded in the editor, or "" in create-new mode.
func (s *PromptService) Selected() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

// Create saves a new persona. Titles are unique; a clash fails before the
// backend is asked.
func (s *PromptService) Create(ctx context.Context, p api.PromptPayload) error {
	if err := validatePrompt(p); err != nil {
		return err
	}

	configs, err := s.backend.Chatbots(ctx)
	if err != nil {
		return err
	}
	if _, taken := configs[p.Title]; taken {
		return ErrPromptExists
	}

	if err := s.backend.SavePrompt(ctx, p); err != nil {
		return err
	}
	s.log.WithField("title", p.Title).Info("prompt created")
	s.refresh(ctx)
	return nil
}

// Update replaces the fields of an existing persona. The title identifies the
// persona and cannot change.
func (s *PromptService) Update(ctx context.Context, p api.PromptPayload) error {
	if err := validatePrompt(p); err != nil {
		return err
	}

	configs, err := s.backend.Chatbots(ctx)
	if err != nil {
		return err
	}
	if _, ok := configs[p.Title]; !ok {
		return ErrPromptNotFound
	}

	if err := s.backend.UpdatePrompt(ctx, p); err != nil {
		return err
	}
	s.log.WithField("title", p.Title).Info("prompt updated")
	s.refresh(ctx)
	return nil
}

// Delete removes a persona. Deleting the persona loaded in the editor drops
// the selection so the editor falls back to create-new mode.
func (s *PromptService) Delete(ctx context.Context, title string) error {
	if err := s.backend.DeletePrompt(ctx, title); err != nil {
		return err
	}

	s.mu.Lock()
	if s.selected == title {
		s.selected = ""
	}
	s.mu.Unlock()

	s.log.WithField("title", title).Info("prompt deleted")
	s.refresh(ctx)
	return nil
}

func (s *PromptService) refresh(ctx context.Context) {
	if s.invalidate == nil {
		return
	}
	if err := s.invalidate(ctx); err != nil {
		s.log.WithError(err).Warn("refreshing chatbot cache failed")
	}
}

func validatePrompt(p api.PromptPayload) error {
	var missing []string
	if strings.TrimSpace(p.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(p.Language) == "" {
		missing = append(missing, "language")
	}
	if strings.TrimSpace(p.Prompt) == "" {
		missing = append(missing, "prompt")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required fields: %s", strings.Join(missing, ", "))
	}
	return nil
}
