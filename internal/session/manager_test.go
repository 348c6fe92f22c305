package session_test

import (
	"context"
	"testing"

	"socialscope/internal/logging"
	"socialscope/internal/session"
	"socialscope/internal/store"
	"socialscope/internal/testsupport"
)

func newTestManager(t *testing.T) (*session.Manager, *store.Store, string) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	manager, err := session.NewManager(st, logging.NewNop(), cfg.Study.ParticipantID)
	if err != nil {
		t.Fatalf("session.NewManager: %v", err)
	}
	return manager, st, cfg.Study.ParticipantID
}

func TestStartSupersedesOpenSession(t *testing.T) {
	manager, st, participantID := newTestManager(t)
	ctx := context.Background()

	first, err := manager.Start(ctx, `{"os":"android"}`)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	second, err := manager.Start(ctx, `{"os":"android"}`)
	if err != nil {
		t.Fatalf("Start again: %v", err)
	}
	if first == second {
		t.Fatal("expected a fresh session id")
	}

	old, err := st.GetSession(ctx, first)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if old.EndedAt == nil {
		t.Fatal("starting a session must end the previous open one")
	}
	open, err := st.OpenSession(ctx, participantID)
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}
	if open == nil || open.ID != second {
		t.Fatalf("expected %s open, got %+v", second, open)
	}
}

func TestEndIsNoOpWithoutSession(t *testing.T) {
	manager, _, _ := newTestManager(t)
	if err := manager.End(context.Background()); err != nil {
		t.Fatalf("End without session: %v", err)
	}
}

func TestEndFindsSessionOpenedElsewhere(t *testing.T) {
	manager, st, participantID := newTestManager(t)
	ctx := context.Background()

	// Session opened by a previous process; this manager has no in-memory
	// reference to it.
	created := testsupport.NewSession(t, st, participantID)

	if err := manager.End(ctx); err != nil {
		t.Fatalf("End: %v", err)
	}
	got, err := st.GetSession(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.EndedAt == nil {
		t.Fatal("expected externally opened session to be ended")
	}
}

func TestEnsureReusesOpenSession(t *testing.T) {
	manager, st, participantID := newTestManager(t)
	ctx := context.Background()

	created := testsupport.NewSession(t, st, participantID)

	got, err := manager.Ensure(ctx)
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if got != created.ID {
		t.Fatalf("expected reuse of %s, got %s", created.ID, got)
	}
	if manager.Current() != created.ID {
		t.Fatalf("expected current session %s, got %s", created.ID, manager.Current())
	}
}

func TestEnsureCreatesWhenNoneOpen(t *testing.T) {
	manager, st, participantID := newTestManager(t)
	ctx := context.Background()

	got, err := manager.Ensure(ctx)
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if got == "" {
		t.Fatal("expected a session id")
	}

	open, err := st.OpenSession(ctx, participantID)
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}
	if open == nil || open.ID != got {
		t.Fatalf("expected %s open in store, got %+v", got, open)
	}

	// Repeated Ensure keeps handing back the same session.
	again, err := manager.Ensure(ctx)
	if err != nil {
		t.Fatalf("Ensure again: %v", err)
	}
	if again != got {
		t.Fatalf("expected stable session id, got %s then %s", got, again)
	}
}

func TestActiveNeverCreatesSession(t *testing.T) {
	manager, st, participantID := newTestManager(t)
	ctx := context.Background()

	id, err := manager.Active(ctx)
	if err != nil {
		t.Fatalf("Active: %v", err)
	}
	if id != "" {
		t.Fatalf("expected no active session, got %q", id)
	}
	open, err := st.OpenSession(ctx, participantID)
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}
	if open != nil {
		t.Fatal("Active must not create a session")
	}

	started, err := manager.Start(ctx, "")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	id, err = manager.Active(ctx)
	if err != nil {
		t.Fatalf("Active after start: %v", err)
	}
	if id != started {
		t.Fatalf("expected active session %q, got %q", started, id)
	}
}

func TestActiveReusesSessionOpenedElsewhere(t *testing.T) {
	manager, st, participantID := newTestManager(t)
	ctx := context.Background()

	existing, err := st.CreateSession(ctx, participantID, "")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	id, err := manager.Active(ctx)
	if err != nil {
		t.Fatalf("Active: %v", err)
	}
	if id != existing.ID {
		t.Fatalf("expected reuse of %q, got %q", existing.ID, id)
	}
}
