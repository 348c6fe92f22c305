package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"socialscope/internal/store"
	"socialscope/internal/testsupport"
)

type cliTestEnv struct {
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	configPath := filepath.Join(base, "config.toml")
	body := fmt.Sprintf(`[paths]
data_dir = %q
log_dir = %q
capture_dir = %q

[study]
participant_id = "P-CLI"

[api]
bind = "127.0.0.1:0"
`,
		filepath.Join(base, "data"),
		filepath.Join(base, "logs"),
		filepath.Join(base, "captures"),
	)
	if err := os.WriteFile(configPath, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	return &cliTestEnv{configPath: configPath, baseDir: base}
}

func (env *cliTestEnv) openStore(t *testing.T) *store.Store {
	t.Helper()

	dataDir := filepath.Join(env.baseDir, "data")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		t.Fatalf("mkdir data dir: %v", err)
	}
	st, err := store.OpenPath(filepath.Join(dataDir, "socialscope.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func runCLI(t *testing.T, args []string, configPath string, stdin string) (string, string, error) {
	t.Helper()

	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	if stdin != "" {
		cmd.SetIn(strings.NewReader(stdin))
	}
	flags := []string{}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected output to contain %q, got:\n%s", needle, haystack)
	}
}

func TestCLISessionsAndEvents(t *testing.T) {
	env := setupCLITestEnv(t)
	st := env.openStore(t)

	session := testsupport.NewSession(t, st, "P-CLI")
	testsupport.NewEvent(t, st, session, store.EventPageView)
	testsupport.NewEvent(t, st, session, store.EventScroll)

	out, _, err := runCLI(t, []string{"sessions"}, env.configPath, "")
	if err != nil {
		t.Fatalf("sessions: %v", err)
	}
	requireContains(t, out, session.ID)
	requireContains(t, out, "open")

	out, _, err = runCLI(t, []string{"events"}, env.configPath, "")
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	requireContains(t, out, "page_view")
	requireContains(t, out, "scroll")
	requireContains(t, out, "reddit")
}

func TestCLIEventsEmpty(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"events"}, env.configPath, "")
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	requireContains(t, out, "No events recorded")
}

func TestCLIWipeRequiresConfirmation(t *testing.T) {
	env := setupCLITestEnv(t)
	st := env.openStore(t)

	session := testsupport.NewSession(t, st, "P-CLI")
	testsupport.NewEvent(t, st, session, store.EventPageView)

	// Wrong confirmation leaves the data in place.
	out, _, err := runCLI(t, []string{"wipe"}, env.configPath, "no\n")
	if err != nil {
		t.Fatalf("wipe aborted: %v", err)
	}
	requireContains(t, out, "Aborted")

	stats, err := st.Stats(context.Background())
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Events != 1 {
		t.Fatalf("expected event to survive aborted wipe, got %d", stats.Events)
	}

	out, _, err = runCLI(t, []string{"wipe", "--force"}, env.configPath, "")
	if err != nil {
		t.Fatalf("wipe --force: %v", err)
	}
	requireContains(t, out, "Local study data wiped")

	stats, err = st.Stats(context.Background())
	if err != nil {
		t.Fatalf("stats after wipe: %v", err)
	}
	if stats.Events != 0 || stats.Sessions != 0 {
		t.Fatalf("expected empty store after wipe, got %+v", stats)
	}
}

func TestCLIStatusOffline(t *testing.T) {
	env := setupCLITestEnv(t)
	st := env.openStore(t)
	testsupport.NewSession(t, st, "P-CLI")

	out, _, err := runCLI(t, []string{"status"}, env.configPath, "")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "not running")
	requireContains(t, out, "1 total, 1 open")
}

func TestCLISyncWithoutRemote(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"sync"}, env.configPath, "")
	if err == nil {
		t.Fatal("expected sync to fail without remote_url")
	}
	if !strings.Contains(err.Error(), "remote_url") {
		t.Fatalf("expected remote_url error, got %v", err)
	}
}
