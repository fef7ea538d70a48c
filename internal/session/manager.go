package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/lingopal/lingopal-client/internal/repository"
)

// Origin records how the active token came to be.
type Origin string

const (
	// OriginPersisted means the token was read back from durable storage.
	OriginPersisted Origin = "persisted"
	// OriginIssued means the backend minted the token in this process.
	OriginIssued Origin = "freshly-issued"
)

// Token is the opaque backend-issued identifier that correlates client
// requests with server-held conversation state.
type Token struct {
	Value  string
	Origin Origin
}

// Issuer mints new tokens. The backend API client satisfies this.
type Issuer interface {
	StartConversation(ctx context.Context) (string, error)
}

// Manager owns the lifecycle of the session token. At most one token is
// active at a time; rotation replaces it for all future requests but does
// not cancel requests already in flight under the old value.
type Manager struct {
	mu     sync.Mutex
	active Token

	issuer Issuer
	state  repository.StateRepository
	log    *logrus.Entry
}

// NewManager creates a token manager backed by the given issuer and store.
func NewManager(issuer Issuer, state repository.StateRepository) *Manager {
	return &Manager{
		issuer: issuer,
		state:  state,
		log:    logrus.WithField("component", "session"),
	}
}

// EnsureToken returns the active token, falling back to durable storage and
// finally to the backend. The mutex is held across issuance so concurrent
// callers share a single token-creation request.
func (m *Manager) EnsureToken(ctx context.Context) (Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active.Value != "" {
		return m.active, nil
	}

	stored, err := m.state.Get(ctx, repository.KeySessionToken)
	if err != nil {
		m.log.WithError(err).Warn("reading stored token failed, requesting a new one")
	}
	if stored != "" {
		m.active = Token{Value: stored, Origin: OriginPersisted}
		m.log.WithField("origin", OriginPersisted).Debug("token restored")
		return m.active, nil
	}

	return m.issueLocked(ctx)
}

// Rotate unconditionally requests a new token and replaces the active one.
// On failure the previous token stays in place and the caller must treat its
// action as failed.
func (m *Manager) Rotate(ctx context.Context) (Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.issueLocked(ctx)
}

// Active returns the current token value, or "" when none exists yet. Flows
// use this to discard responses that arrive after a rotation.
func (m *Manager) Active() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active.Value
}

func (m *Manager) issueLocked(ctx context.Context) (Token, error) {
	value, err := m.issuer.StartConversation(ctx)
	if err != nil {
		return Token{}, fmt.Errorf("requesting session token: %w", err)
	}
	if err := m.state.Set(ctx, repository.KeySessionToken, value); err != nil {
		// The token still works for this process; only the restart path suffers.
		m.log.WithError(err).Warn("persisting session token failed")
	}
	m.active = Token{Value: value, Origin: OriginIssued}
	m.log.WithField("origin", OriginIssued).Debug("token issued")
	return m.active, nil
}
