package services

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/lingopal/lingopal-client/internal/repository"
)

// Settings are the client preferences restored when the UI reloads: the
// theme, the language filter for the chatbot list, and the student identity
// that prefills the transcript dialog.
type Settings struct {
	Theme        string `json:"theme"`
	Language     string `json:"language"`
	StudentName  string `json:"student_name"`
	StudentEmail string `json:"student_email"`
}

// SettingsService reads and writes the persisted client preferences. Absent
// theme and language fall back to the configured defaults.
type SettingsService struct {
	state           repository.StateRepository
	defaultTheme    string
	defaultLanguage string
	log             *logrus.Entry
}

// NewSettingsService creates the settings service over the state store.
func NewSettingsService(state repository.StateRepository, defaultTheme, defaultLanguage string) *SettingsService {
	return &SettingsService{
		state:           state,
		defaultTheme:    defaultTheme,
		defaultLanguage: defaultLanguage,
		log:             logrus.WithField("component", "settings"),
	}
}

// Get returns the stored settings, defaulting theme and language when unset.
func (s *SettingsService) Get(ctx context.Context) (Settings, error) {
	out := Settings{}

	var err error
	if out.Theme, err = s.state.Get(ctx, repository.KeyTheme); err != nil {
		return Settings{}, err
	}
	if out.Language, err = s.state.Get(ctx, repository.KeyLanguage); err != nil {
		return Settings{}, err
	}
	if out.StudentName, err = s.state.Get(ctx, repository.KeyStudentName); err != nil {
		return Settings{}, err
	}
	if out.StudentEmail, err = s.state.Get(ctx, repository.KeyStudentEmail); err != nil {
		return Settings{}, err
	}

	if out.Theme == "" {
		out.Theme = s.defaultTheme
	}
	if out.Language == "" {
		out.Language = s.defaultLanguage
	}
	return out, nil
}

// Update persists the given settings wholesale.
func (s *SettingsService) Update(ctx context.Context, in Settings) error {
	values := map[string]string{
		repository.KeyTheme:        in.Theme,
		repository.KeyLanguage:     in.Language,
		repository.KeyStudentName:  in.StudentName,
		repository.KeyStudentEmail: in.StudentEmail,
	}
	for key, value := range values {
		if err := s.state.Set(ctx, key, value); err != nil {
			return err
		}
	}
	s.log.WithFields(logrus.Fields{"theme": in.Theme, "language": in.Language}).Debug("settings updated")
	return nil
}
