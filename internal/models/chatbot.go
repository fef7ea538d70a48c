package models

// ChatbotConfig is a backend-defined persona. Configs are keyed by a unique
// title on the backend; the struct holds everything else.
type ChatbotConfig struct {
	Name        string `json:"name"`
	Language    string `json:"language"`
	Level       string `json:"level"`
	InitialText string `json:"initialText"`
	Prompt      string `json:"prompt"`
}

// HistoryEntry is one stored user/assistant exchange, retrieved for display
// only. It is not part of the live message log.
type HistoryEntry struct {
	User      string `json:"user"`
	Assistant string `json:"assistant"`
}

// ChatbotUsage records when a student last talked to a chatbot.
type ChatbotUsage struct {
	LastUsed string `json:"last_used"`
}

// StudentRecord summarizes a student's submissions for the professor view.
type StudentRecord struct {
	Key      string                  `json:"key"`
	Name     string                  `json:"name"`
	Email    string                  `json:"email"`
	Chatbots map[string]ChatbotUsage `json:"chatbots"`
}
