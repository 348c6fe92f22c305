package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"socialscope/internal/logging"
	"socialscope/internal/store"
)

// Manager owns the capture session lifecycle for a single participant and
// guarantees at most one open session at a time. The current session id is
// process-wide state with a single writer (the manager) and multiple readers.
type Manager struct {
	store         *store.Store
	logger        *slog.Logger
	participantID string

	mu      sync.RWMutex
	current string
}

// NewManager constructs a session manager for the enrolled participant.
func NewManager(st *store.Store, logger *slog.Logger, participantID string) (*Manager, error) {
	if st == nil {
		return nil, errors.New("session manager requires a store")
	}
	if participantID == "" {
		return nil, errors.New("session manager requires a participant id")
	}
	return &Manager{
		store:         st,
		logger:        logging.NewComponentLogger(logger, "session"),
		participantID: participantID,
	}, nil
}

// ParticipantID returns the enrolled participant identifier.
func (m *Manager) ParticipantID() string {
	return m.participantID
}

// Current returns the in-memory current session id, empty when none is open.
func (m *Manager) Current() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Start ends any open session for the participant, creates a new session
// row, and returns its id. Session creation is a single atomic write; a
// store failure leaves no partial state.
func (m *Manager) Start(ctx context.Context, deviceInfoJSON string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ended, err := m.store.EndOpenSessions(ctx, m.participantID)
	if err != nil {
		return "", fmt.Errorf("supersede open sessions: %w", err)
	}
	if ended > 0 {
		m.logger.Info("superseded stale open session",
			logging.Int64("ended", ended),
			logging.String(logging.FieldParticipantID, m.participantID),
		)
	}

	session, err := m.store.CreateSession(ctx, m.participantID, deviceInfoJSON)
	if err != nil {
		m.current = ""
		return "", fmt.Errorf("create session: %w", err)
	}

	m.current = session.ID
	m.logger.Info("session started", logging.String(logging.FieldSessionID, session.ID))
	return session.ID, nil
}

// End closes the open session and clears the in-memory reference. A no-op
// when no session is open.
func (m *Manager) End(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.current
	if id == "" {
		open, err := m.store.OpenSession(ctx, m.participantID)
		if err != nil {
			return fmt.Errorf("find open session: %w", err)
		}
		if open == nil {
			return nil
		}
		id = open.ID
	}

	if err := m.store.EndSession(ctx, id); err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	m.current = ""
	m.logger.Info("session ended", logging.String(logging.FieldSessionID, id))
	return nil
}

// Active returns the open session id without creating one, reusing an
// open session found in the store after a cold start. Empty when no
// session is open. Used by the capture scheduler, which must stay quiet
// between sessions.
func (m *Manager) Active(ctx context.Context) (string, error) {
	m.mu.RLock()
	current := m.current
	m.mu.RUnlock()
	if current != "" {
		return current, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != "" {
		return m.current, nil
	}

	open, err := m.store.OpenSession(ctx, m.participantID)
	if err != nil {
		return "", fmt.Errorf("find open session: %w", err)
	}
	if open == nil {
		return "", nil
	}
	m.current = open.ID
	m.logger.Debug("reusing open session", logging.String(logging.FieldSessionID, open.ID))
	return open.ID, nil
}

// Ensure returns the currently open session id, reusing an open session
// found in the store or creating a fresh one. Used by ingestion so the
// first event after a cold start does not fail.
func (m *Manager) Ensure(ctx context.Context) (string, error) {
	m.mu.RLock()
	current := m.current
	m.mu.RUnlock()
	if current != "" {
		return current, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != "" {
		return m.current, nil
	}

	open, err := m.store.OpenSession(ctx, m.participantID)
	if err != nil {
		return "", fmt.Errorf("find open session: %w", err)
	}
	if open != nil {
		m.current = open.ID
		m.logger.Debug("reusing open session", logging.String(logging.FieldSessionID, open.ID))
		return open.ID, nil
	}

	session, err := m.store.CreateSession(ctx, m.participantID, "")
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	m.current = session.ID
	m.logger.Info("session started", logging.String(logging.FieldSessionID, session.ID))
	return session.ID, nil
}
