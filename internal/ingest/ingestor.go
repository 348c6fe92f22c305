package ingest

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"socialscope/internal/logging"
	"socialscope/internal/session"
	"socialscope/internal/store"
)

// Ingestor receives structured event payloads from instrumented web
// content, validates and normalizes them, attaches session identity, and
// writes them to the local store. Ingestion is fire-and-forget: the
// upstream page cannot handle failures, so malformed or unpersistable
// payloads are logged and dropped rather than surfaced.
type Ingestor struct {
	store    *store.Store
	sessions *session.Manager
	logger   *slog.Logger

	dropped atomic.Uint64
}

// New constructs an ingestor.
func New(st *store.Store, sessions *session.Manager, logger *slog.Logger) *Ingestor {
	return &Ingestor{
		store:    st,
		sessions: sessions,
		logger:   logging.NewComponentLogger(logger, "ingest"),
	}
}

// Dropped returns the count of payloads rejected since startup. Surfaced
// on agent status so silent drops stay observable.
func (i *Ingestor) Dropped() uint64 {
	return i.dropped.Load()
}

// Ingest processes one raw payload. It never returns an error; validation
// completes before persistence begins so no event is partially written.
func (i *Ingestor) Ingest(ctx context.Context, raw []byte) {
	payload, body, err := Decode(raw)
	if err != nil {
		i.dropped.Add(1)
		i.logger.Warn("dropping malformed payload", logging.Error(err))
		return
	}

	if payload.Type == HandshakeType {
		i.logger.Debug("observer ready", logging.String(logging.FieldURL, payload.URL))
		return
	}

	sessionID, err := i.sessions.Ensure(ctx)
	if err != nil {
		i.dropped.Add(1)
		i.logger.Error("dropping payload; no session available",
			logging.Error(err),
			logging.String(logging.FieldEventType, payload.Type),
		)
		return
	}

	event := &store.Event{
		ID:            uuid.NewString(),
		SessionID:     sessionID,
		ParticipantID: i.sessions.ParticipantID(),
		Type:          store.ParseEventType(payload.Type),
		Platform:      store.ParsePlatform(payload.Platform),
		URL:           payload.URL,
		OccurredAt:    payload.OccurredAt(time.Now()),
		PayloadJSON:   body.PayloadJSON(),
	}

	if err := i.store.InsertEvent(ctx, event); err != nil {
		i.dropped.Add(1)
		i.logger.Error("dropping payload; store write failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, string(event.Type)),
			logging.String(logging.FieldSessionID, sessionID),
		)
		return
	}

	i.logger.Debug("event ingested",
		logging.String(logging.FieldEventID, event.ID),
		logging.String(logging.FieldEventType, string(event.Type)),
	)
}
