package syncer_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"socialscope/internal/logging"
	"socialscope/internal/remote"
	"socialscope/internal/store"
	"socialscope/internal/syncer"
	"socialscope/internal/testsupport"
)

// recordingRemote captures every upsert path the syncer issues and can be
// told to fail requests matching a substring.
type recordingRemote struct {
	mu       sync.Mutex
	requests []string
	failWhen string
}

func (r *recordingRemote) record(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWhen != "" && strings.Contains(path, r.failWhen) {
		return &remoteError{path: path}
	}
	r.requests = append(r.requests, path)
	return nil
}

type remoteError struct{ path string }

func (e *remoteError) Error() string { return "remote rejected " + e.path }

func (r *recordingRemote) paths(prefix string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, path := range r.requests {
		if strings.HasPrefix(path, prefix) {
			out = append(out, path)
		}
	}
	return out
}

func newSyncedStore(t *testing.T) (*store.Store, *store.Session, string) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	session := testsupport.NewSession(t, st, cfg.Study.ParticipantID)
	return st, session, cfg.Study.ParticipantID
}

func newRecordingSyncer(st *store.Store, participantID string, rec *recordingRemote) *syncer.Syncer {
	return syncer.New(st, &recordingUploader{rec: rec}, logging.NewNop(), syncer.Options{
		ParticipantID: participantID,
		BatchSize:     10,
	})
}

type recordingUploader struct {
	rec *recordingRemote
}

func (u *recordingUploader) UpsertSession(_ context.Context, session *store.Session) error {
	return u.rec.record("session/" + session.ID)
}

func (u *recordingUploader) UpsertEvent(_ context.Context, event *store.Event) error {
	return u.rec.record("event/" + event.ID)
}

func (u *recordingUploader) UpsertStatusLog(_ context.Context, _ string, log *store.MarkupStatusLog) error {
	return u.rec.record("statuslog/" + log.ID)
}

func (u *recordingUploader) UpsertAlert(_ context.Context, alert *store.SafetyAlert) error {
	return u.rec.record("alert/" + alert.ID)
}

func (u *recordingUploader) UploadBlob(_ context.Context, blobPath string, _ string, _ io.Reader) error {
	return u.rec.record("blob/" + blobPath)
}

func (u *recordingUploader) Ping(context.Context) error { return nil }

func TestSyncOnceUploadsAndAcks(t *testing.T) {
	st, session, participantID := newSyncedStore(t)
	ctx := context.Background()

	event := testsupport.NewEvent(t, st, session, store.EventPageView)
	rec := &recordingRemote{}
	engine := newRecordingSyncer(st, participantID, rec)

	result := engine.SyncOnce(ctx)
	if result.Err != nil {
		t.Fatalf("SyncOnce: %v", result.Err)
	}
	if result.Events != 1 {
		t.Fatalf("expected 1 event synced, got %d", result.Events)
	}
	if got := rec.paths("event/"); len(got) != 1 || got[0] != "event/"+event.ID {
		t.Fatalf("unexpected event uploads: %v", got)
	}
	if got := rec.paths("session/"); len(got) != 1 {
		t.Fatalf("expected session upsert alongside the batch, got %v", got)
	}

	pending, err := st.UnsyncedEvents(ctx, 10)
	if err != nil {
		t.Fatalf("UnsyncedEvents: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected event acked, %d still pending", len(pending))
	}

	// A second pass uploads nothing new: sync is idempotent over acked
	// records.
	result = engine.SyncOnce(ctx)
	if result.Err != nil {
		t.Fatalf("second SyncOnce: %v", result.Err)
	}
	if result.Events != 0 {
		t.Fatalf("expected nothing to re-upload, got %d", result.Events)
	}
}

func TestSyncFailureLeavesRecordsUnsynced(t *testing.T) {
	st, session, participantID := newSyncedStore(t)
	ctx := context.Background()

	event := testsupport.NewEvent(t, st, session, store.EventPageView)
	rec := &recordingRemote{failWhen: "event/"}
	engine := newRecordingSyncer(st, participantID, rec)

	result := engine.SyncOnce(ctx)
	if result.Err == nil {
		t.Fatal("expected sync pass to report failure")
	}

	pending, err := st.UnsyncedEvents(ctx, 10)
	if err != nil {
		t.Fatalf("UnsyncedEvents: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != event.ID {
		t.Fatalf("failed upload must stay unsynced, got %+v", pending)
	}

	// Once the remote recovers, the same record uploads cleanly.
	rec.failWhen = ""
	result = engine.SyncOnce(ctx)
	if result.Err != nil {
		t.Fatalf("recovery SyncOnce: %v", result.Err)
	}
	if result.Events != 1 {
		t.Fatalf("expected retried event to sync, got %d", result.Events)
	}
}

func TestSyncStatusLogsAndAlerts(t *testing.T) {
	st, _, participantID := newSyncedStore(t)
	ctx := context.Background()

	if err := st.InsertMarkupStatusLog(ctx, &store.MarkupStatusLog{
		ID:          "log-sync",
		HTMLChanged: false,
		HTMLHash:    "abc",
		CapturedAt:  time.Now().UTC(),
	}); err != nil {
		t.Fatalf("InsertMarkupStatusLog: %v", err)
	}
	if err := st.InsertAlert(ctx, &store.SafetyAlert{
		ID:            "alert-sync",
		ParticipantID: participantID,
		TriggeredAt:   time.Now().UTC(),
	}); err != nil {
		t.Fatalf("InsertAlert: %v", err)
	}

	rec := &recordingRemote{}
	engine := newRecordingSyncer(st, participantID, rec)

	result := engine.SyncOnce(ctx)
	if result.Err != nil {
		t.Fatalf("SyncOnce: %v", result.Err)
	}
	if result.StatusLogs != 1 || result.Alerts != 1 {
		t.Fatalf("expected 1 status log and 1 alert, got %+v", result)
	}

	logs, err := st.UnsyncedStatusLogs(ctx, 10)
	if err != nil {
		t.Fatalf("UnsyncedStatusLogs: %v", err)
	}
	alerts, err := st.UnsyncedAlerts(ctx, 10)
	if err != nil {
		t.Fatalf("UnsyncedAlerts: %v", err)
	}
	if len(logs) != 0 || len(alerts) != 0 {
		t.Fatalf("expected everything acked, got %d logs %d alerts", len(logs), len(alerts))
	}
}

func TestSyncAgainstHTTPRemote(t *testing.T) {
	st, session, participantID := newSyncedStore(t)
	ctx := context.Background()

	event := testsupport.NewEvent(t, st, session, store.EventPageView)

	var mu sync.Mutex
	seen := map[string]int{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			http.Error(w, "unexpected method", http.StatusMethodNotAllowed)
			return
		}
		if r.Header.Get("Authorization") != "Bearer secret" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		mu.Lock()
		seen[r.URL.Path]++
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	uploader, err := remote.New(server.URL, "secret", 5*time.Second)
	if err != nil {
		t.Fatalf("remote.New: %v", err)
	}
	engine := syncer.New(st, uploader, logging.NewNop(), syncer.Options{
		ParticipantID: participantID,
		BatchSize:     10,
	})

	result := engine.SyncOnce(ctx)
	if result.Err != nil {
		t.Fatalf("SyncOnce: %v", result.Err)
	}

	mu.Lock()
	defer mu.Unlock()
	eventPath := "/participants/" + participantID + "/events/" + event.ID
	if seen[eventPath] != 1 {
		t.Fatalf("expected PUT %s once, saw %v", eventPath, seen)
	}
	sessionPath := "/participants/" + participantID + "/sessions/" + session.ID
	if seen[sessionPath] != 1 {
		t.Fatalf("expected PUT %s once, saw %v", sessionPath, seen)
	}
}
