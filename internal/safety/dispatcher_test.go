package safety_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"socialscope/internal/logging"
	"socialscope/internal/safety"
	"socialscope/internal/store"
	"socialscope/internal/testsupport"
)

type stubNotifier struct {
	delivery safety.Delivery
	err      error
	pages    int
}

func (s *stubNotifier) Page(context.Context, string, time.Time, string) (safety.Delivery, error) {
	s.pages++
	if s.err != nil {
		return safety.Delivery{}, s.err
	}
	return s.delivery, nil
}

func newTestDispatcher(t *testing.T, notifier safety.Notifier) (*safety.Dispatcher, *store.Store, string) {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithPageTarget("+15555550100"))
	st := testsupport.MustOpenStore(t, cfg)
	dispatcher := safety.NewDispatcher(st, notifier, logging.NewNop(), cfg.Study.ParticipantID, cfg.Safety.PageTarget)
	return dispatcher, st, cfg.Study.ParticipantID
}

func TestCreatePersistsBeforeDelivery(t *testing.T) {
	notifier := &stubNotifier{delivery: safety.Delivery{SID: "SM1", Status: "sent"}}
	dispatcher, st, participantID := newTestDispatcher(t, notifier)
	ctx := context.Background()

	alert, err := dispatcher.Create(ctx, safety.AlertInput{ResponsesJSON: `{"phq9":22}`})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	dispatcher.Wait()

	got, err := st.GetAlert(ctx, alert.ID)
	if err != nil {
		t.Fatalf("GetAlert: %v", err)
	}
	if got == nil {
		t.Fatal("alert row missing")
	}
	if got.ParticipantID != participantID {
		t.Fatalf("unexpected participant: %+v", got)
	}
	if !got.Handled || got.SMSSID != "SM1" || got.SMSStatus != "sent" || got.HandledAt == nil {
		t.Fatalf("expected delivery metadata recorded, got %+v", got)
	}
	if got.ResponsesJSON != `{"phq9":22}` {
		t.Fatalf("responses not preserved: %q", got.ResponsesJSON)
	}
}

func TestFailedDeliveryLeavesAlertUnhandled(t *testing.T) {
	notifier := &stubNotifier{err: errors.New("gateway down")}
	dispatcher, st, _ := newTestDispatcher(t, notifier)
	ctx := context.Background()

	alert, err := dispatcher.Create(ctx, safety.AlertInput{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	dispatcher.Wait()

	got, err := st.GetAlert(ctx, alert.ID)
	if err != nil {
		t.Fatalf("GetAlert: %v", err)
	}
	if got.Handled {
		t.Fatal("failed delivery must leave handled false")
	}
	if got.SMSError == "" {
		t.Fatal("failed delivery must record the error")
	}

	unhandled, err := st.UnhandledAlerts(ctx)
	if err != nil {
		t.Fatalf("UnhandledAlerts: %v", err)
	}
	if len(unhandled) != 1 {
		t.Fatalf("alert must stay visible to monitoring, got %d", len(unhandled))
	}
}

func TestResweepRetriesUnhandledAlerts(t *testing.T) {
	notifier := &stubNotifier{err: errors.New("gateway down")}
	dispatcher, st, _ := newTestDispatcher(t, notifier)
	ctx := context.Background()

	if _, err := dispatcher.Create(ctx, safety.AlertInput{}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	dispatcher.Wait()

	// Gateway recovers; resweep delivers the stranded alert.
	notifier.err = nil
	notifier.delivery = safety.Delivery{SID: "SM9", Status: "sent"}

	delivered, err := dispatcher.Resweep(ctx)
	if err != nil {
		t.Fatalf("Resweep: %v", err)
	}
	if delivered != 1 {
		t.Fatalf("expected 1 delivery, got %d", delivered)
	}

	unhandled, err := st.UnhandledAlerts(ctx)
	if err != nil {
		t.Fatalf("UnhandledAlerts: %v", err)
	}
	if len(unhandled) != 0 {
		t.Fatalf("expected no unhandled alerts after resweep, got %d", len(unhandled))
	}
}

func TestGatewayNotifierPage(t *testing.T) {
	var received struct {
		To   string `json:"to"`
		Body string `json:"body"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer gw-token" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			http.Error(w, "bad body", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"sid":"SM42","status":"queued"}`))
	}))
	defer server.Close()

	notifier, err := safety.NewGatewayNotifier(server.URL, "gw-token", 5*time.Second)
	if err != nil {
		t.Fatalf("NewGatewayNotifier: %v", err)
	}

	delivery, err := notifier.Page(context.Background(), "P-TEST", time.Now().UTC(), "+15555550100")
	if err != nil {
		t.Fatalf("Page: %v", err)
	}
	if delivery.SID != "SM42" || delivery.Status != "queued" {
		t.Fatalf("unexpected delivery receipt: %+v", delivery)
	}
	if received.To != "+15555550100" {
		t.Fatalf("unexpected page target: %q", received.To)
	}
	// Message bodies never carry survey responses.
	if received.Body == "" || len(received.Body) > 200 {
		t.Fatalf("unexpected message body: %q", received.Body)
	}
}

func TestGatewayNotifierRejectsEmptyTarget(t *testing.T) {
	notifier, err := safety.NewGatewayNotifier("http://127.0.0.1:0", "", time.Second)
	if err != nil {
		t.Fatalf("NewGatewayNotifier: %v", err)
	}
	if _, err := notifier.Page(context.Background(), "P-TEST", time.Now(), ""); err == nil {
		t.Fatal("expected empty page target to error")
	}
}
