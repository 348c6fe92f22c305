package ingest_test

import (
	"context"
	"testing"
	"time"

	"socialscope/internal/ingest"
	"socialscope/internal/logging"
	"socialscope/internal/session"
	"socialscope/internal/store"
	"socialscope/internal/testsupport"
)

func newTestIngestor(t *testing.T) (*ingest.Ingestor, *store.Store, string) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	sessions, err := session.NewManager(st, logging.NewNop(), cfg.Study.ParticipantID)
	if err != nil {
		t.Fatalf("session.NewManager: %v", err)
	}
	return ingest.New(st, sessions, logging.NewNop()), st, cfg.Study.ParticipantID
}

func TestIngestPersistsEvent(t *testing.T) {
	ing, st, participantID := newTestIngestor(t)
	ctx := context.Background()

	raw := []byte(`{"type":"page_view","platform":"reddit","url":"https://reddit.com/r/news","timestamp":1700000000000,"data":{"title":"r/news"}}`)
	ing.Ingest(ctx, raw)

	events, err := st.ListEvents(ctx, participantID, false, 10)
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	event := events[0]
	if event.Type != store.EventPageView || event.Platform != store.PlatformReddit {
		t.Fatalf("unexpected classification: %+v", event)
	}
	if event.OccurredAt.UTC() != time.UnixMilli(1700000000000).UTC() {
		t.Fatalf("expected source timestamp preserved, got %s", event.OccurredAt)
	}
	if event.PayloadJSON != `{"title":"r/news"}` {
		t.Fatalf("expected raw data preserved, got %q", event.PayloadJSON)
	}
	if event.SessionID == "" {
		t.Fatal("expected a session to be ensured")
	}
	if ing.Dropped() != 0 {
		t.Fatalf("expected no drops, got %d", ing.Dropped())
	}
}

func TestIngestDropsMalformedPayloads(t *testing.T) {
	ing, st, participantID := newTestIngestor(t)
	ctx := context.Background()

	ing.Ingest(ctx, []byte(`not json`))
	ing.Ingest(ctx, []byte(`{"platform":"reddit"}`))

	if ing.Dropped() != 2 {
		t.Fatalf("expected 2 drops, got %d", ing.Dropped())
	}
	events, err := st.ListEvents(ctx, participantID, false, 10)
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected no events persisted, got %d", len(events))
	}
}

func TestIngestDropsHandshakeSilently(t *testing.T) {
	ing, st, participantID := newTestIngestor(t)
	ctx := context.Background()

	ing.Ingest(ctx, []byte(`{"type":"observer_ready","platform":"reddit"}`))

	if ing.Dropped() != 0 {
		t.Fatalf("handshake must not count as a drop, got %d", ing.Dropped())
	}
	events, err := st.ListEvents(ctx, participantID, false, 10)
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("handshake must not persist an event, got %d", len(events))
	}
	open, err := st.OpenSession(ctx, participantID)
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}
	if open != nil {
		t.Fatal("handshake must not open a session")
	}
}

func TestIngestUnknownTypeFoldsToOther(t *testing.T) {
	ing, st, participantID := newTestIngestor(t)
	ctx := context.Background()

	ing.Ingest(ctx, []byte(`{"type":"future_event_kind","platform":"x","data":{"answer":42}}`))

	events, err := st.ListEvents(ctx, participantID, false, 10)
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Type != store.EventOther {
		t.Fatalf("unknown type must fold to other, got %s", events[0].Type)
	}
	if events[0].Platform != store.PlatformTwitter {
		t.Fatalf("platform x must map to twitter, got %s", events[0].Platform)
	}
	if events[0].PayloadJSON != `{"answer":42}` {
		t.Fatalf("opaque data must be preserved, got %q", events[0].PayloadJSON)
	}
}

func TestIngestNormalizesTypedPayloads(t *testing.T) {
	ing, st, participantID := newTestIngestor(t)
	ctx := context.Background()

	// Recognized type: the typed schema wins and unknown keys are stripped.
	ing.Ingest(ctx, []byte(`{"type":"scroll","platform":"reddit","data":{"depth":0.5,"debugMarker":"x"}}`))
	// Recognized type whose data fails its schema: raw structure survives.
	ing.Ingest(ctx, []byte(`{"type":"scroll","platform":"reddit","data":{"depth":"deep"}}`))

	events, err := st.ListEvents(ctx, participantID, false, 10)
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	payloads := map[string]bool{}
	for _, event := range events {
		payloads[event.PayloadJSON] = true
	}
	if !payloads[`{"depth":0.5}`] {
		t.Fatalf("expected normalized scroll payload, got %v", payloads)
	}
	if !payloads[`{"depth":"deep"}`] {
		t.Fatalf("expected opaque fallback for mismatched schema, got %v", payloads)
	}
}

func TestDecodeTypedBodies(t *testing.T) {
	_, body, err := ingest.Decode([]byte(`{"type":"scroll","data":{"depth":0.4,"maxDepth":0.9}}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if body.Scroll == nil || body.Scroll.Depth != 0.4 {
		t.Fatalf("expected typed scroll body, got %+v", body)
	}
	if len(body.Opaque) == 0 {
		t.Fatal("raw data must always be preserved")
	}
}

func TestOccurredAtFallsBackToReceiveTime(t *testing.T) {
	payload := &ingest.Payload{}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if got := payload.OccurredAt(now); !got.Equal(now) {
		t.Fatalf("expected receive-time fallback, got %s", got)
	}
}
