package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lingopal/lingopal-client/internal/api"
	"github.com/lingopal/lingopal-client/internal/audio"
	"github.com/lingopal/lingopal-client/internal/chatlog"
	"github.com/lingopal/lingopal-client/internal/models"
	"github.com/lingopal/lingopal-client/internal/session"
)

type memState struct {
	mu     sync.Mutex
	values map[string]string
}

func newMemState() *memState {
	return &memState{values: map[string]string{}}
}

func (m *memState) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.values[key], nil
}

func (m *memState) Set(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *memState) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

func (m *memState) get(key string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.values[key]
}

// fakeBackend implements both Backend and the session issuer.
type fakeBackend struct {
	mu sync.Mutex

	configs  map[string]models.ChatbotConfig
	tokenSeq int

	chatFn       func(req api.ChatRequest) (*api.ChatResponse, error)
	transcribeFn func(req api.TranscribeRequest) (*api.TranscribeResult, error)

	clearCalls  []string
	clearErr    error
	synthErr    error
	transcripts []api.TranscriptRequest
	history     []models.HistoryEntry
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		configs: map[string]models.ChatbotConfig{
			"Yoko_Ono": {
				Name:        "Yoko Ono",
				Language:    "Japanese",
				Level:       "beginner",
				InitialText: "こんにちは！",
				Prompt:      "You are a patient Japanese tutor.",
			},
			"Pierre": {
				Name:        "Pierre",
				Language:    "French",
				Level:       "intermediate",
				InitialText: "Bonjour !",
				Prompt:      "You are a French tutor.",
			},
		},
		// Greeting synthesis runs detached; keep it inert unless a test
		// opts in.
		synthErr: errors.New("tts disabled"),
	}
}

func (f *fakeBackend) StartConversation(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokenSeq++
	return fmt.Sprintf("token-%d", f.tokenSeq), nil
}

func (f *fakeBackend) Chatbots(ctx context.Context) (map[string]models.ChatbotConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.configs, nil
}

func (f *fakeBackend) ClearConversation(ctx context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clearCalls = append(f.clearCalls, token)
	return f.clearErr
}

func (f *fakeBackend) Conversation(ctx context.Context, token string) ([]models.HistoryEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.history, nil
}

func (f *fakeBackend) GetResponse(ctx context.Context, req api.ChatRequest) (*api.ChatResponse, error) {
	if f.chatFn != nil {
		return f.chatFn(req)
	}
	return &api.ChatResponse{Response: "reply to " + req.Message, ConversationLength: 1}, nil
}

func (f *fakeBackend) Transcribe(ctx context.Context, req api.TranscribeRequest) (*api.TranscribeResult, error) {
	if f.transcribeFn != nil {
		return f.transcribeFn(req)
	}
	result := &api.TranscribeResult{
		Filename:           "upload.mp3",
		Transcript:         "transcribed words",
		ConversationLength: 1,
	}
	result.OpenAIResponse.Response = "reply to audio"
	return result, nil
}

func (f *fakeBackend) Synthesize(ctx context.Context, text, voice string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.synthErr != nil {
		return "", f.synthErr
	}
	return "speech.mp3", nil
}

func (f *fakeBackend) AudioURL(filename string) string {
	return "https://backend.test/audio/" + filename
}

func (f *fakeBackend) SendTranscript(ctx context.Context, req api.TranscriptRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transcripts = append(f.transcripts, req)
	return nil
}

func newTestService(backend *fakeBackend) (*ConversationService, *memState) {
	state := newMemState()
	tokens := session.NewManager(backend, state)
	svc := NewConversationService(chatlog.New(), tokens, backend, state, "alloy")
	return svc, state
}

func TestConversationService_SeedsDefaultGreeting(t *testing.T) {
	svc, _ := newTestService(newFakeBackend())

	snapshot := svc.Log().Snapshot()
	assert.Equal(t, 1, len(snapshot))
	assert.Equal(t, chatlog.RoleAssistant, snapshot[0].Role)
	assert.Equal(t, DefaultGreeting, snapshot[0].Text)
}

func TestConversationService_SelectReseedsLogAndRotates(t *testing.T) {
	backend := newFakeBackend()
	svc, state := newTestService(backend)
	ctx := context.Background()

	err := svc.Select(ctx, "Yoko_Ono")
	assert.NoError(t, err)

	snapshot := svc.Log().Snapshot()
	assert.Equal(t, 1, len(snapshot))
	assert.Equal(t, "こんにちは！", snapshot[0].Text)
	assert.Equal(t, "Yoko_Ono", svc.Selected())
	assert.Equal(t, 0, svc.ConversationLength())
	assert.Equal(t, "Japanese", state.get("language"))

	first := svc.Selected()
	firstToken := state.get("user_token")

	err = svc.Select(ctx, "Pierre")
	assert.NoError(t, err)
	assert.NotEqual(t, first, svc.Selected())
	assert.NotEqual(t, firstToken, state.get("user_token"))
	assert.Equal(t, 1, svc.Log().Len())
}

func TestConversationService_SelectUnknownChatbot(t *testing.T) {
	svc, _ := newTestService(newFakeBackend())

	err := svc.Select(context.Background(), "Nobody")
	assert.ErrorIs(t, err, ErrUnknownChatbot)
	assert.Equal(t, DefaultGreeting, svc.Log().Snapshot()[0].Text)
}

func TestConversationService_SendTextWithoutChatbot(t *testing.T) {
	backend := newFakeBackend()
	backend.chatFn = func(req api.ChatRequest) (*api.ChatResponse, error) {
		t.Fatal("no request should reach the backend")
		return nil, nil
	}
	svc, _ := newTestService(backend)
	svc.SetRecording(&audio.Recording{Data: []byte("note"), MIMEType: "audio/webm"})

	err := svc.SendText(context.Background(), "hello")
	assert.NoError(t, err)

	snapshot := svc.Log().Snapshot()
	assert.Equal(t, 2, len(snapshot))
	assert.Equal(t, "Please select a chatbot first.", snapshot[1].Text)

	// The un-sent voice note waits for a chatbot to be selected.
	assert.True(t, svc.HasRecording())
}

func TestConversationService_SendTextAppendsTurnPair(t *testing.T) {
	backend := newFakeBackend()
	svc, _ := newTestService(backend)
	ctx := context.Background()

	assert.NoError(t, svc.Select(ctx, "Yoko_Ono"))

	for i := 1; i <= 3; i++ {
		backend.chatFn = func(req api.ChatRequest) (*api.ChatResponse, error) {
			assert.Equal(t, "Yoko_Ono", req.SelectedChatbot)
			assert.Equal(t, "Japanese", req.Language)
			assert.NotEmpty(t, req.UserToken)
			return &api.ChatResponse{Response: "reply", ConversationLength: i}, nil
		}
		assert.NoError(t, svc.SendText(ctx, fmt.Sprintf("message %d", i)))
	}

	// One greeting plus a user/assistant pair per send.
	assert.Equal(t, 7, svc.Log().Len())
	assert.Equal(t, 3, svc.ConversationLength())
}

func TestConversationService_SendTextEmptyIsIgnored(t *testing.T) {
	svc, _ := newTestService(newFakeBackend())
	assert.NoError(t, svc.Select(context.Background(), "Yoko_Ono"))

	assert.NoError(t, svc.SendText(context.Background(), "   "))
	assert.Equal(t, 1, svc.Log().Len())
}

func TestConversationService_SendTextFailureStaysInBand(t *testing.T) {
	backend := newFakeBackend()
	backend.chatFn = func(req api.ChatRequest) (*api.ChatResponse, error) {
		return nil, errors.New("connection refused")
	}
	svc, _ := newTestService(backend)
	ctx := context.Background()
	assert.NoError(t, svc.Select(ctx, "Yoko_Ono"))

	err := svc.SendText(ctx, "hello")
	assert.NoError(t, err)

	snapshot := svc.Log().Snapshot()
	assert.Equal(t, 3, len(snapshot))
	assert.Equal(t, "hello", snapshot[1].Text) // the user's turn stays
	assert.Contains(t, snapshot[2].Text, "Error:")
}

func TestConversationService_CertificateFailureText(t *testing.T) {
	backend := newFakeBackend()
	backend.chatFn = func(req api.ChatRequest) (*api.ChatResponse, error) {
		return nil, errors.New("x509: certificate signed by unknown authority")
	}
	svc, _ := newTestService(backend)
	ctx := context.Background()
	assert.NoError(t, svc.Select(ctx, "Yoko_Ono"))

	assert.NoError(t, svc.SendText(ctx, "hello"))

	snapshot := svc.Log().Snapshot()
	assert.Equal(t, "Connection error: SSL certificate issue.", snapshot[2].Text)
}

func TestConversationService_SendTextBusy(t *testing.T) {
	svc, _ := newTestService(newFakeBackend())
	svc.textBusy.Store(true)

	err := svc.SendText(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrBusy)
}

func TestConversationService_StaleTokenReplyIsDropped(t *testing.T) {
	backend := newFakeBackend()
	svc, _ := newTestService(backend)
	ctx := context.Background()
	assert.NoError(t, svc.Select(ctx, "Yoko_Ono"))

	backend.chatFn = func(req api.ChatRequest) (*api.ChatResponse, error) {
		// The user switches chatbots while this turn is in flight.
		assert.NoError(t, svc.Select(ctx, "Pierre"))
		return &api.ChatResponse{Response: "late reply", ConversationLength: 5}, nil
	}

	assert.NoError(t, svc.SendText(ctx, "hello"))

	// Only Pierre's greeting survives; the late reply never lands and the
	// counter still belongs to the new conversation.
	snapshot := svc.Log().Snapshot()
	assert.Equal(t, 1, len(snapshot))
	assert.Equal(t, "Bonjour !", snapshot[0].Text)
	assert.Equal(t, 0, svc.ConversationLength())
}

func TestConversationService_SendAudioPatchesPlaceholder(t *testing.T) {
	backend := newFakeBackend()
	svc, _ := newTestService(backend)
	ctx := context.Background()
	assert.NoError(t, svc.Select(ctx, "Yoko_Ono"))

	svc.SetRecording(&audio.Recording{Data: []byte("bytes"), MIMEType: "audio/webm", PreviewPath: "/tmp/rec.webm"})

	var observed [][]chatlog.Message
	svc.Log().Subscribe(func(messages []chatlog.Message) {
		observed = append(observed, messages)
	})

	assert.NoError(t, svc.SendAudio(ctx))

	snapshot := svc.Log().Snapshot()
	assert.Equal(t, 3, len(snapshot))
	assert.Equal(t, "transcribed words", snapshot[1].Text)
	assert.Equal(t, "https://backend.test/audio/upload.mp3", snapshot[1].AudioURL)
	assert.Equal(t, "reply to audio", snapshot[2].Text)
	assert.Equal(t, 1, svc.ConversationLength())
	assert.False(t, svc.HasRecording())

	// The placeholder was visible before the transcript replaced it.
	assert.Equal(t, "🎤 Processing audio...", observed[0][1].Text)
}

func TestConversationService_SendAudioWithoutRecording(t *testing.T) {
	svc, _ := newTestService(newFakeBackend())
	err := svc.SendAudio(context.Background())
	assert.ErrorIs(t, err, ErrNoRecording)
}

func TestConversationService_SendAudioFailure(t *testing.T) {
	backend := newFakeBackend()
	backend.transcribeFn = func(req api.TranscribeRequest) (*api.TranscribeResult, error) {
		return nil, errors.New("whisper exploded")
	}
	svc, _ := newTestService(backend)
	ctx := context.Background()
	assert.NoError(t, svc.Select(ctx, "Yoko_Ono"))
	svc.SetRecording(&audio.Recording{Data: []byte("bytes"), MIMEType: "audio/webm"})

	assert.NoError(t, svc.SendAudio(ctx))

	snapshot := svc.Log().Snapshot()
	assert.Equal(t, 3, len(snapshot))
	assert.Equal(t, "Error processing audio", snapshot[1].Text)
	assert.Equal(t, "Error processing audio", snapshot[2].Text)
}

func TestConversationService_SendAudioDefaultsLanguage(t *testing.T) {
	backend := newFakeBackend()
	var got api.TranscribeRequest
	backend.transcribeFn = func(req api.TranscribeRequest) (*api.TranscribeResult, error) {
		got = req
		result := &api.TranscribeResult{Filename: "f.mp3", Transcript: "t", ConversationLength: 1}
		result.OpenAIResponse.Response = "r"
		return result, nil
	}
	svc, _ := newTestService(backend)
	svc.SetRecording(&audio.Recording{Data: []byte("bytes"), MIMEType: "audio/webm"})

	assert.NoError(t, svc.SendAudio(context.Background()))
	assert.Equal(t, "English", got.Language)
	assert.Equal(t, "en", got.LanguageCode)
}

func TestConversationService_ClearHistory(t *testing.T) {
	backend := newFakeBackend()
	svc, state := newTestService(backend)
	ctx := context.Background()
	assert.NoError(t, svc.Select(ctx, "Yoko_Ono"))
	assert.NoError(t, svc.SendText(ctx, "hello"))

	before := state.get("user_token")
	assert.NoError(t, svc.ClearHistory(ctx))

	assert.Equal(t, []string{before}, backend.clearCalls)
	assert.NotEqual(t, before, state.get("user_token"))
	assert.Equal(t, 0, svc.ConversationLength())

	snapshot := svc.Log().Snapshot()
	assert.Equal(t, 1, len(snapshot))
	assert.Equal(t, DefaultGreeting, snapshot[0].Text)
}

func TestConversationService_ClearHistoryIgnoresBackendFailure(t *testing.T) {
	backend := newFakeBackend()
	backend.clearErr = errors.New("backend down")
	svc, _ := newTestService(backend)
	ctx := context.Background()
	assert.NoError(t, svc.Select(ctx, "Yoko_Ono"))

	assert.NoError(t, svc.ClearHistory(ctx))
	assert.Equal(t, DefaultGreeting, svc.Log().Snapshot()[0].Text)
}

func TestConversationService_SendTranscript(t *testing.T) {
	backend := newFakeBackend()
	svc, state := newTestService(backend)
	ctx := context.Background()
	assert.NoError(t, svc.Select(ctx, "Yoko_Ono"))

	err := svc.SendTranscript(ctx, TranscriptInput{
		StudentName:    "Alex",
		StudentEmail:   "alex@example.com",
		ProfessorEmail: "prof@example.com",
	})
	assert.NoError(t, err)

	assert.Equal(t, "Alex", state.get("student_name"))
	assert.Equal(t, "alex@example.com", state.get("student_email"))
	assert.Equal(t, 1, len(backend.transcripts))
	assert.Equal(t, "Yoko Ono", backend.transcripts[0].ChatbotName)
}

func TestConversationService_SendTranscriptRequiresProfessorEmail(t *testing.T) {
	svc, _ := newTestService(newFakeBackend())
	assert.NoError(t, svc.Select(context.Background(), "Yoko_Ono"))

	err := svc.SendTranscript(context.Background(), TranscriptInput{StudentName: "Alex"})
	assert.Error(t, err)
}

func TestConversationService_SpeakMessage(t *testing.T) {
	backend := newFakeBackend()
	backend.synthErr = nil
	svc, _ := newTestService(backend)

	id := svc.Log().Append(chatlog.Message{Role: chatlog.RoleAssistant, Text: "say this"})

	url, err := svc.SpeakMessage(context.Background(), id)
	assert.NoError(t, err)
	assert.Equal(t, "https://backend.test/audio/speech.mp3", url)

	msg, _ := svc.Log().Get(id)
	assert.Equal(t, url, msg.AudioURL)

	// Already-attached audio short-circuits.
	again, err := svc.SpeakMessage(context.Background(), id)
	assert.NoError(t, err)
	assert.Equal(t, url, again)
}

func TestConversationService_ChatbotsByLanguage(t *testing.T) {
	svc, _ := newTestService(newFakeBackend())

	configs, err := svc.ChatbotsByLanguage(context.Background(), "Japanese")
	assert.NoError(t, err)
	assert.Equal(t, 1, len(configs))
	assert.Equal(t, "Yoko Ono", configs["Yoko_Ono"].Name)
}

func TestConversationService_Languages(t *testing.T) {
	svc, _ := newTestService(newFakeBackend())

	languages, err := svc.Languages(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, []string{"French", "Japanese"}, languages)
}
