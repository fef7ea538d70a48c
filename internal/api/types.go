package api

import (
	"fmt"

	"github.com/lingopal/lingopal-client/internal/models"
)

// ChatRequest is the payload for POST /get_response.
type ChatRequest struct {
	Message         string `json:"message"`
	SelectedChatbot string `json:"selectedChatbot"`
	UserToken       string `json:"user_token"`
	Language        string `json:"language"`
}

// ChatResponse is the reply to a text turn.
type ChatResponse struct {
	Response           string `json:"response"`
	UserToken          string `json:"user_token"`
	ConversationLength int    `json:"conversation_length"`
}

// TranscribeRequest carries a recorded audio blob to POST /whisper.
type TranscribeRequest struct {
	Audio           []byte
	Filename        string
	MIMEType        string
	UserToken       string
	SelectedChatbot string
	Language        string
	LanguageCode    string
}

// TranscribeResult is one element of the /whisper response array.
type TranscribeResult struct {
	Filename       string `json:"filename"`
	Transcript     string `json:"transcript"`
	OpenAIResponse struct {
		Response string `json:"response"`
	} `json:"openai_response"`
	UserToken          string `json:"user_token"`
	ConversationLength int    `json:"conversation_length"`
}

// TranscriptRequest is the payload for POST /send_transcript.
type TranscriptRequest struct {
	UserToken      string `json:"user_token"`
	ProfessorEmail string `json:"professor_email"`
	ProfessorName  string `json:"professor_name"`
	ExtraNote      string `json:"extra_note"`
	StudentEmail   string `json:"student_email"`
	StudentName    string `json:"student_name"`
	ChatbotName    string `json:"chatbot_name"`
}

// PromptPayload is the form submitted to /save_prompt and /update_prompt.
type PromptPayload struct {
	Title       string `json:"title"`
	Name        string `json:"name"`
	Language    string `json:"language"`
	Level       string `json:"level"`
	InitialText string `json:"initialText"`
	Prompt      string `json:"prompt"`
}

// ProfessorConversation is a stored conversation as seen in the professor view.
type ProfessorConversation struct {
	Conversation []models.HistoryEntry `json:"conversation"`
	ChatbotName  string                `json:"chatbot_name"`
	StudentName  string                `json:"student_name"`
	Timestamp    string                `json:"timestamp"`
}

type startConversationResponse struct {
	UserToken string `json:"user_token"`
	Message   string `json:"message"`
}

type conversationResponse struct {
	Conversations []models.HistoryEntry `json:"conversations"`
	Total         int                   `json:"total"`
}

type ttsRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice"`
}

type ttsResponse struct {
	Success       bool   `json:"success"`
	AudioFilename string `json:"audio_filename"`
	Message       string `json:"message"`
}

type promptStatusResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

type studentsResponse struct {
	Students []models.StudentRecord `json:"students"`
}

// HTTPError is a non-2xx backend reply, carrying the decoded error message
// when the body had one.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend request failed: status=%d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("backend request failed: status=%d", e.StatusCode)
}
