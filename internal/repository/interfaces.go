package repository

import "context"

// Keys for the persisted client-side state. All values are optional; readers
// must tolerate absence.
const (
	KeySessionToken = "user_token"
	KeyStudentName  = "student_name"
	KeyStudentEmail = "student_email"
	KeyTheme        = "theme"
	KeyLanguage     = "language"
)

// StateRepository is the durable key-value store for client settings that
// survive restarts: the session token, the student's identity for transcript
// emails, theme and conversation language.
type StateRepository interface {
	// Get returns the stored value, or "" when the key is absent.
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}
