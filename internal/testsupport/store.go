package testsupport

import (
	"context"
	"testing"
	"time"

	"socialscope/internal/config"
	"socialscope/internal/store"
)

// MustOpenStore opens a store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// NewSession creates a session for tests using the provided store.
func NewSession(t testing.TB, st *store.Store, participantID string) *store.Session {
	t.Helper()

	session, err := st.CreateSession(context.Background(), participantID, `{"os":"test"}`)
	if err != nil {
		t.Fatalf("store.CreateSession: %v", err)
	}
	return session
}

// NewEvent inserts a minimal event for tests and returns it.
func NewEvent(t testing.TB, st *store.Store, session *store.Session, eventType store.EventType) *store.Event {
	t.Helper()

	event := &store.Event{
		ID:            newID(t),
		SessionID:     session.ID,
		ParticipantID: session.ParticipantID,
		Type:          eventType,
		Platform:      store.PlatformReddit,
		URL:           "https://reddit.com/r/test",
		OccurredAt:    time.Now().UTC(),
		PayloadJSON:   `{"kind":"test"}`,
	}
	if err := st.InsertEvent(context.Background(), event); err != nil {
		t.Fatalf("store.InsertEvent: %v", err)
	}
	return event
}
