package services

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lingopal/lingopal-client/internal/api"
	"github.com/lingopal/lingopal-client/internal/audio"
	"github.com/lingopal/lingopal-client/internal/chatlog"
	"github.com/lingopal/lingopal-client/internal/models"
	"github.com/lingopal/lingopal-client/internal/repository"
	"github.com/lingopal/lingopal-client/internal/session"
)

// DefaultGreeting seeds the log before any chatbot is selected and after a
// history clear.
const DefaultGreeting = "Please select a chatbot to start the conversation."

const (
	processingPlaceholder = "🎤 Processing audio..."
	audioErrorText        = "Error processing audio"
	certErrorText         = "Connection error: SSL certificate issue."
)

var (
	// ErrBusy is returned when a send is attempted while the same flow is
	// still outstanding. The UI disables the control; this is the backstop.
	ErrBusy = errors.New("a request for this flow is already in progress")
	// ErrNoRecording is returned when send-audio runs without a capture.
	ErrNoRecording = errors.New("no recording to send")
	// ErrUnknownChatbot is returned when selecting a title the backend
	// doesn't know.
	ErrUnknownChatbot = errors.New("unknown chatbot")
)

// languageCodes maps conversation languages to the transcription language
// hints the backend passes to Whisper.
var languageCodes = map[string]string{
	"English":    "en",
	"Japanese":   "ja",
	"Chinese":    "zh",
	"Russian":    "ru",
	"Arabic":     "ar",
	"German":     "de",
	"Vietnamese": "vi",
	"Korean":     "ko",
	"Spanish":    "es",
	"French":     "fr",
}

// Backend is the slice of the API client the orchestrator uses.
type Backend interface {
	Chatbots(ctx context.Context) (map[string]models.ChatbotConfig, error)
	ClearConversation(ctx context.Context, token string) error
	Conversation(ctx context.Context, token string) ([]models.HistoryEntry, error)
	GetResponse(ctx context.Context, req api.ChatRequest) (*api.ChatResponse, error)
	Transcribe(ctx context.Context, req api.TranscribeRequest) (*api.TranscribeResult, error)
	Synthesize(ctx context.Context, text, voice string) (string, error)
	AudioURL(filename string) string
	SendTranscript(ctx context.Context, req api.TranscriptRequest) error
}

// TranscriptInput collects what the transcript email dialog submits.
type TranscriptInput struct {
	StudentName    string `json:"student_name"`
	StudentEmail   string `json:"student_email"`
	ProfessorEmail string `json:"professor_email"`
	ProfessorName  string `json:"professor_name"`
	ExtraNote      string `json:"extra_note"`
}

// ConversationService coordinates the session token manager and the message
// log around the send-text, send-audio and switch-chatbot flows. Log
// mutations happen optimistically before the backend answers; failures stay
// visible as in-band assistant messages and never roll back what the user
// actually sent.
type ConversationService struct {
	log     *chatlog.Log
	tokens  *session.Manager
	backend Backend
	state   repository.StateRepository
	voice   string

	mu       sync.Mutex
	configs  map[string]models.ChatbotConfig
	selected string
	language string
	convLen  int
	pending  *audio.Recording

	textBusy  atomic.Bool
	audioBusy atomic.Bool

	logger *logrus.Entry
}

// NewConversationService creates the orchestrator and seeds the log with the
// default greeting.
func NewConversationService(log *chatlog.Log, tokens *session.Manager, backend Backend, state repository.StateRepository, voice string) *ConversationService {
	s := &ConversationService{
		log:     log,
		tokens:  tokens,
		backend: backend,
		state:   state,
		voice:   voice,
		logger:  logrus.WithField("component", "conversation"),
	}
	log.Reset(chatlog.Message{Role: chatlog.RoleAssistant, Text: DefaultGreeting})
	return s
}

// Log exposes the message log for rendering and event streaming.
func (s *ConversationService) Log() *chatlog.Log { return s.log }

// RefreshChatbots re-reads the persona definitions from the backend.
func (s *ConversationService) RefreshChatbots(ctx context.Context) error {
	configs, err := s.backend.Chatbots(ctx)
	if err != nil {
		return fmt.Errorf("fetching chatbot configs: %w", err)
	}
	s.mu.Lock()
	s.configs = configs
	s.mu.Unlock()
	return nil
}

// Chatbots returns the cached persona definitions, fetching on first use.
func (s *ConversationService) Chatbots(ctx context.Context) (map[string]models.ChatbotConfig, error) {
	s.mu.Lock()
	cached := s.configs
	s.mu.Unlock()
	if cached != nil {
		return cached, nil
	}
	if err := s.RefreshChatbots(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.configs, nil
}

// ChatbotsByLanguage returns the persona definitions for one language.
func (s *ConversationService) ChatbotsByLanguage(ctx context.Context, language string) (map[string]models.ChatbotConfig, error) {
	configs, err := s.Chatbots(ctx)
	if err != nil {
		return nil, err
	}
	out := map[string]models.ChatbotConfig{}
	for title, cfg := range configs {
		if cfg.Language == language {
			out[title] = cfg
		}
	}
	return out, nil
}

// Languages returns the unique persona languages, sorted.
func (s *ConversationService) Languages(ctx context.Context) ([]string, error) {
	configs, err := s.Chatbots(ctx)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var out []string
	for _, cfg := range configs {
		if !seen[cfg.Language] {
			seen[cfg.Language] = true
			out = append(out, cfg.Language)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Selected returns the title of the active chatbot, or "".
func (s *ConversationService) Selected() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

// ConversationLength returns the backend-reported number of stored exchanges.
func (s *ConversationService) ConversationLength() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.convLen
}

// Select switches to a different chatbot: the token rotates (new conversation
// boundary), the counter resets, and the log reseeds with the persona
// greeting. Greeting audio is synthesized in the background and patched onto
// the greeting entry; the patch targets the entry's ID, so it lands nowhere
// if the log has moved on by then.
func (s *ConversationService) Select(ctx context.Context, title string) error {
	if title == "" {
		s.mu.Lock()
		s.selected = ""
		s.mu.Unlock()
		s.log.Reset(chatlog.Message{Role: chatlog.RoleAssistant, Text: DefaultGreeting})
		return nil
	}

	configs, err := s.Chatbots(ctx)
	if err != nil {
		return err
	}
	cfg, ok := configs[title]
	if !ok {
		return ErrUnknownChatbot
	}

	if _, err := s.tokens.Rotate(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	s.selected = title
	s.language = cfg.Language
	s.convLen = 0
	s.mu.Unlock()

	if err := s.state.Set(ctx, repository.KeyLanguage, cfg.Language); err != nil {
		s.logger.WithError(err).Warn("persisting conversation language failed")
	}

	greetingID := s.log.Reset(chatlog.Message{Role: chatlog.RoleAssistant, Text: cfg.InitialText})

	go s.attachSpeech(greetingID, cfg.InitialText)

	s.logger.WithFields(logrus.Fields{"chatbot": title, "language": cfg.Language}).Info("chatbot selected")
	return nil
}

// SendText runs the send-text flow. Precondition and transport failures are
// surfaced as in-band assistant messages; the returned error covers only
// conditions the caller must handle itself (overlapping send, no token).
func (s *ConversationService) SendText(ctx context.Context, text string) error {
	if !s.textBusy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer s.textBusy.Store(false)

	if strings.TrimSpace(text) == "" && !s.HasRecording() {
		return nil
	}

	s.mu.Lock()
	selected := s.selected
	language := s.language
	s.mu.Unlock()

	if selected == "" {
		// The pending recording survives; it rides along once a chatbot
		// is selected.
		s.log.Append(chatlog.Message{Role: chatlog.RoleAssistant, Text: "Please select a chatbot first."})
		return nil
	}

	token, err := s.tokens.EnsureToken(ctx)
	if err != nil {
		return err
	}

	rec := s.takeRecording()
	display := text
	if strings.TrimSpace(display) == "" {
		display = "Audio message"
	}
	userMsg := chatlog.Message{Role: chatlog.RoleUser, Text: display}
	if rec != nil {
		userMsg.AudioURL = rec.PreviewPath
	}
	s.log.Append(userMsg)

	resp, err := s.backend.GetResponse(ctx, api.ChatRequest{
		Message:         display,
		SelectedChatbot: selected,
		UserToken:       token.Value,
		Language:        language,
	})
	if err != nil {
		s.appendFailure(err)
		return nil
	}

	if s.tokens.Active() != token.Value {
		// The token rotated while the request was in flight; the reply
		// belongs to a conversation the log no longer shows.
		s.logger.WithField("token", token.Value).Warn("dropping reply issued under a superseded token")
		return nil
	}

	s.log.Append(chatlog.Message{Role: chatlog.RoleAssistant, Text: resp.Response})
	s.setConversationLength(resp.ConversationLength)
	return nil
}

// SendAudio runs the send-audio flow over the most recent recording. A
// placeholder user entry is appended first and patched by ID once the
// transcript arrives; uploads are serialized so a second send waits for the
// first.
func (s *ConversationService) SendAudio(ctx context.Context) error {
	if !s.audioBusy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer s.audioBusy.Store(false)

	if !s.HasRecording() {
		return ErrNoRecording
	}

	s.mu.Lock()
	selected := s.selected
	language := s.language
	s.mu.Unlock()
	if language == "" {
		language = "English"
	}

	token, err := s.tokens.EnsureToken(ctx)
	if err != nil {
		return err
	}

	rec := s.takeRecording()
	placeholderID := s.log.Append(chatlog.Message{
		Role:     chatlog.RoleUser,
		Text:     processingPlaceholder,
		AudioURL: rec.PreviewPath,
	})

	result, err := s.backend.Transcribe(ctx, api.TranscribeRequest{
		Audio:           rec.Data,
		MIMEType:        rec.MIMEType,
		UserToken:       token.Value,
		SelectedChatbot: selected,
		Language:        language,
		LanguageCode:    codeFor(language),
	})
	if err != nil {
		errText := audioErrorText
		s.log.Patch(placeholderID, chatlog.Patch{Text: &errText})
		s.log.Append(chatlog.Message{Role: chatlog.RoleAssistant, Text: audioErrorText})
		return nil
	}

	if s.tokens.Active() != token.Value {
		s.logger.WithField("token", token.Value).Warn("dropping transcription issued under a superseded token")
		return nil
	}

	audioURL := s.backend.AudioURL(result.Filename)
	s.log.Patch(placeholderID, chatlog.Patch{Text: &result.Transcript, AudioURL: &audioURL})
	s.log.Append(chatlog.Message{Role: chatlog.RoleAssistant, Text: result.OpenAIResponse.Response})
	s.setConversationLength(result.ConversationLength)
	return nil
}

// SetRecording hands a finished capture to the orchestrator. It is consumed
// by the next SendAudio, or attached to the next SendText as a voice note.
func (s *ConversationService) SetRecording(rec *audio.Recording) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = rec
}

// HasRecording reports whether a capture is waiting to be sent.
func (s *ConversationService) HasRecording() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending != nil
}

// ClearHistory asks the backend to drop the stored conversation (best
// effort), rotates the token unconditionally, and reseeds the log.
func (s *ConversationService) ClearHistory(ctx context.Context) error {
	if active := s.tokens.Active(); active != "" {
		if err := s.backend.ClearConversation(ctx, active); err != nil {
			s.logger.WithError(err).Warn("clearing server-side history failed")
		}
	}

	_, rotateErr := s.tokens.Rotate(ctx)

	s.setConversationLength(0)
	s.log.Reset(chatlog.Message{Role: chatlog.RoleAssistant, Text: DefaultGreeting})
	return rotateErr
}

// History retrieves the stored conversation for display.
func (s *ConversationService) History(ctx context.Context) ([]models.HistoryEntry, error) {
	active := s.tokens.Active()
	if active == "" {
		return nil, nil
	}
	return s.backend.Conversation(ctx, active)
}

// SendTranscript emails the conversation to an instructor and remembers the
// student's name and email for next time.
func (s *ConversationService) SendTranscript(ctx context.Context, in TranscriptInput) error {
	active := s.tokens.Active()
	if active == "" {
		return errors.New("no active conversation to send")
	}
	if in.ProfessorEmail == "" {
		return errors.New("professor email is required")
	}

	if err := s.state.Set(ctx, repository.KeyStudentName, in.StudentName); err != nil {
		s.logger.WithError(err).Warn("persisting student name failed")
	}
	if err := s.state.Set(ctx, repository.KeyStudentEmail, in.StudentEmail); err != nil {
		s.logger.WithError(err).Warn("persisting student email failed")
	}

	chatbotName := "General Chatbot"
	s.mu.Lock()
	if cfg, ok := s.configs[s.selected]; ok {
		chatbotName = cfg.Name
	}
	s.mu.Unlock()

	return s.backend.SendTranscript(ctx, api.TranscriptRequest{
		UserToken:      active,
		ProfessorEmail: in.ProfessorEmail,
		ProfessorName:  in.ProfessorName,
		ExtraNote:      in.ExtraNote,
		StudentEmail:   in.StudentEmail,
		StudentName:    in.StudentName,
		ChatbotName:    chatbotName,
	})
}

// SpeakMessage lazily synthesizes audio for a log entry and attaches the URL.
// Entries that already carry audio are returned as-is.
func (s *ConversationService) SpeakMessage(ctx context.Context, id string) (string, error) {
	msg, ok := s.log.Get(id)
	if !ok {
		return "", fmt.Errorf("message %s not found", id)
	}
	if msg.AudioURL != "" {
		return msg.AudioURL, nil
	}

	filename, err := s.backend.Synthesize(ctx, msg.Text, s.voice)
	if err != nil {
		return "", err
	}
	url := s.backend.AudioURL(filename)
	s.log.Patch(id, chatlog.Patch{AudioURL: &url})
	return url, nil
}

func (s *ConversationService) takeRecording() *audio.Recording {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.pending
	s.pending = nil
	return rec
}

func (s *ConversationService) setConversationLength(n int) {
	s.mu.Lock()
	s.convLen = n
	s.mu.Unlock()
}

// attachSpeech fetches greeting audio and patches it onto the entry. Runs
// detached from the triggering request with its own deadline.
func (s *ConversationService) attachSpeech(id, text string) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	filename, err := s.backend.Synthesize(ctx, text, s.voice)
	if err != nil {
		s.logger.WithError(err).Debug("greeting synthesis failed")
		return
	}
	url := s.backend.AudioURL(filename)
	if !s.log.Patch(id, chatlog.Patch{AudioURL: &url}) {
		s.logger.Debug("greeting entry replaced before synthesis finished")
	}
}

// appendFailure surfaces a transport failure as an in-band assistant
// message, distinguishing the certificate class from everything else.
func (s *ConversationService) appendFailure(err error) {
	text := fmt.Sprintf("Error: %v", err)
	if isCertificateError(err) {
		text = certErrorText
	}
	s.log.Append(chatlog.Message{Role: chatlog.RoleAssistant, Text: text})
}

func isCertificateError(err error) bool {
	var certErr *tls.CertificateVerificationError
	if errors.As(err, &certErr) {
		return true
	}
	var unknownAuthority x509.UnknownAuthorityError
	if errors.As(err, &unknownAuthority) {
		return true
	}
	var hostnameErr x509.HostnameError
	if errors.As(err, &hostnameErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "certificate") || strings.Contains(msg, "tls") || strings.Contains(msg, "ssl")
}

func codeFor(language string) string {
	if code, ok := languageCodes[language]; ok {
		return code
	}
	return "en"
}
