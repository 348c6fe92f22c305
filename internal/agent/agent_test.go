package agent_test

import (
	"context"
	"sync"
	"testing"

	"socialscope/internal/agent"
	"socialscope/internal/logging"
	"socialscope/internal/testsupport"
)

func TestAgentLifecycle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ctx := context.Background()

	a, err := agent.New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("agent.New: %v", err)
	}
	defer a.Close()

	if err := a.Start(ctx); err != nil {
		t.Fatalf("agent.Start: %v", err)
	}

	status, err := a.Status(ctx)
	if err != nil {
		t.Fatalf("agent.Status: %v", err)
	}
	if !status.Running {
		t.Fatal("expected running status")
	}
	if status.ParticipantID != cfg.Study.ParticipantID {
		t.Fatalf("unexpected participant: %q", status.ParticipantID)
	}
	if status.SyncConfigured {
		t.Fatal("no remote configured; sync must report unconfigured")
	}

	a.Stop(ctx)
}

func TestSecondInstanceRejected(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	first, err := agent.New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("agent.New: %v", err)
	}
	defer first.Close()

	if _, err := agent.New(cfg, logging.NewNop()); err == nil {
		t.Fatal("expected second instance on same data dir to fail")
	}
}

func TestSessionBoundariesResetCapture(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ctx := context.Background()

	a, err := agent.New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("agent.New: %v", err)
	}
	defer a.Close()

	first, err := a.StartSession(ctx, `{"os":"android"}`)
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if first == "" {
		t.Fatal("expected session id")
	}

	second, err := a.StartSession(ctx, `{"os":"android"}`)
	if err != nil {
		t.Fatalf("StartSession again: %v", err)
	}
	if second == first {
		t.Fatal("expected a fresh session id")
	}

	if err := a.EndSession(ctx); err != nil {
		t.Fatalf("EndSession: %v", err)
	}

	status, err := a.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.OpenSessions != 0 {
		t.Fatalf("expected no open sessions, got %d", status.OpenSessions)
	}
	if status.Sessions != 2 {
		t.Fatalf("expected 2 recorded sessions, got %d", status.Sessions)
	}
}

func TestStatusConcurrentWithLifecycle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ctx := context.Background()

	a, err := agent.New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("agent.New: %v", err)
	}
	defer a.Close()

	done := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				if _, err := a.Status(ctx); err != nil {
					return
				}
			}
		}()
	}

	if err := a.Start(ctx); err != nil {
		t.Fatalf("agent.Start: %v", err)
	}
	a.Stop(ctx)
	close(done)
	wg.Wait()

	status, err := a.Status(ctx)
	if err != nil {
		t.Fatalf("agent.Status: %v", err)
	}
	if status.Running {
		t.Fatal("expected stopped status after Stop")
	}
	if status.StartedAt == nil {
		t.Fatal("expected a recorded start time")
	}
}
