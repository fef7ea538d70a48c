package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lingopal/lingopal-client/internal/models"
)

const defaultTimeout = 2 * time.Minute

// Client talks to the tutoring backend REST service. All conversation state
// lives server-side, keyed by the user token passed on each call.
type Client struct {
	baseURL string
	http    *http.Client
	log     *logrus.Entry
}

// NewClient creates a client for the given base URL. A zero timeout selects
// the default; whisper and TTS calls can take a while.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		log:     logrus.WithField("component", "api"),
	}
}

// Chatbots fetches all persona definitions, keyed by title.
func (c *Client) Chatbots(ctx context.Context) (map[string]models.ChatbotConfig, error) {
	var out map[string]models.ChatbotConfig
	if err := c.doJSON(ctx, http.MethodGet, "/data", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// StartConversation asks the backend for a fresh session token.
func (c *Client) StartConversation(ctx context.Context) (string, error) {
	var out startConversationResponse
	if err := c.doJSON(ctx, http.MethodPost, "/start_conversation", nil, struct{}{}, &out); err != nil {
		return "", err
	}
	if out.UserToken == "" {
		return "", fmt.Errorf("backend returned an empty user token")
	}
	return out.UserToken, nil
}

// ClearConversation drops the server-side history for a token.
func (c *Client) ClearConversation(ctx context.Context, token string) error {
	body := map[string]string{"user_token": token}
	return c.doJSON(ctx, http.MethodPost, "/clear_conversation", nil, body, nil)
}

// Conversation retrieves the stored history for a token.
func (c *Client) Conversation(ctx context.Context, token string) ([]models.HistoryEntry, error) {
	q := url.Values{"user_token": {token}}
	var out conversationResponse
	if err := c.doJSON(ctx, http.MethodGet, "/get_conversation", q, nil, &out); err != nil {
		return nil, err
	}
	return out.Conversations, nil
}

// GetResponse sends one text turn and returns the assistant reply.
func (c *Client) GetResponse(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	var out ChatResponse
	if err := c.doJSON(ctx, http.MethodPost, "/get_response", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Synthesize converts text to speech and returns the server-side filename.
func (c *Client) Synthesize(ctx context.Context, text, voice string) (string, error) {
	var out ttsResponse
	if err := c.doJSON(ctx, http.MethodPost, "/tts", nil, ttsRequest{Text: text, Voice: voice}, &out); err != nil {
		return "", err
	}
	if out.AudioFilename == "" {
		return "", fmt.Errorf("tts returned no audio filename")
	}
	return out.AudioFilename, nil
}

// AudioURL returns the absolute URL a synthesized or uploaded file is served from.
func (c *Client) AudioURL(filename string) string {
	return c.baseURL + "/audio/" + url.PathEscape(filename)
}

// FetchAudio streams an audio file from the backend. The caller closes the body.
func (c *Client) FetchAudio(ctx context.Context, filename string) (io.ReadCloser, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.AudioURL(filename), nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, "", decodeError(resp)
	}
	return resp.Body, resp.Header.Get("Content-Type"), nil
}

// Transcribe uploads a recording to /whisper and returns the transcript plus
// the assistant reply the backend generated from it.
func (c *Client) Transcribe(ctx context.Context, req TranscribeRequest) (*TranscribeResult, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	filename := req.Filename
	if filename == "" {
		filename = "voice-message.webm"
	}
	part, err := w.CreateFormFile("audio", filename)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(req.Audio); err != nil {
		return nil, err
	}

	fields := map[string]string{
		"user_token":      req.UserToken,
		"selectedChatbot": req.SelectedChatbot,
		"language":        req.Language,
		"language_code":   req.LanguageCode,
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/whisper", &buf)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp)
	}

	var results []TranscribeResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("decoding whisper response: %w", err)
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("whisper returned no results")
	}
	return &results[0], nil
}

// SendTranscript emails the conversation to an instructor.
func (c *Client) SendTranscript(ctx context.Context, req TranscriptRequest) error {
	return c.doJSON(ctx, http.MethodPost, "/send_transcript", nil, req, nil)
}

// SavePrompt creates a new persona. The backend rejects duplicate titles.
func (c *Client) SavePrompt(ctx context.Context, p PromptPayload) error {
	return c.doJSON(ctx, http.MethodPost, "/save_prompt", nil, p, nil)
}

// UpdatePrompt replaces the fields of an existing persona.
func (c *Client) UpdatePrompt(ctx context.Context, p PromptPayload) error {
	return c.doJSON(ctx, http.MethodPost, "/update_prompt", nil, p, nil)
}

// DeletePrompt removes a persona by title.
func (c *Client) DeletePrompt(ctx context.Context, title string) error {
	body := map[string]string{"prompt_name": title}
	var out promptStatusResponse
	if err := c.doJSON(ctx, http.MethodPost, "/delete_prompt", nil, body, &out); err != nil {
		return err
	}
	if !out.Success {
		return fmt.Errorf("delete prompt: %s", out.Message)
	}
	return nil
}

// Students lists the students who submitted transcripts to a professor.
func (c *Client) Students(ctx context.Context, professorEmail string) ([]models.StudentRecord, error) {
	q := url.Values{"email": {professorEmail}}
	var out studentsResponse
	if err := c.doJSON(ctx, http.MethodGet, "/professor/students", q, nil, &out); err != nil {
		return nil, err
	}
	return out.Students, nil
}

// StudentConversation loads the latest stored conversation a student had with
// a chatbot, for professor review.
func (c *Client) StudentConversation(ctx context.Context, profEmail, studentKey, chatbotName string) (*ProfessorConversation, error) {
	q := url.Values{
		"prof_email":   {profEmail},
		"student_key":  {studentKey},
		"chatbot_name": {chatbotName},
	}
	var out ProfessorConversation
	if err := c.doJSON(ctx, http.MethodGet, "/professor/conversation", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// doJSON performs a JSON round trip. A nil out discards the response body;
// non-2xx statuses come back as *HTTPError.
func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, in, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.WithFields(logrus.Fields{"method": method, "path": path, "error": err}).Debug("request failed")
		return err
	}
	defer resp.Body.Close()

	c.log.WithFields(logrus.Fields{
		"method":   method,
		"path":     path,
		"status":   resp.StatusCode,
		"duration": time.Since(start).String(),
	}).Debug("request complete")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	httpErr := &HTTPError{StatusCode: resp.StatusCode}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return httpErr
	}
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &payload) == nil {
		if payload.Error != "" {
			httpErr.Message = payload.Error
		} else {
			httpErr.Message = payload.Message
		}
	}
	return httpErr
}
