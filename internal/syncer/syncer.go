package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"sync"
	"time"

	"socialscope/internal/logging"
	"socialscope/internal/remote"
	"socialscope/internal/store"
)

// Options configures the sync engine.
type Options struct {
	// Interval is the steady-state delay between sync passes.
	Interval time.Duration
	// RetryInterval is the shortened delay used after a failed pass.
	RetryInterval time.Duration
	// BatchSize caps how many records of each kind one pass uploads.
	BatchSize int
	// ParticipantID scopes the remote collections written to.
	ParticipantID string
}

// Result summarizes one sync pass.
type Result struct {
	Events      int
	Sessions    int
	StatusLogs  int
	Alerts      int
	CompletedAt time.Time
	Err         error
}

// Syncer drains unsynced local records to the remote store. Records are
// marked synced only after the remote acknowledges them, so a crash at
// any point re-sends rather than loses; the remote's id-keyed upserts
// make the re-send harmless.
type Syncer struct {
	store    *store.Store
	uploader remote.Uploader
	logger   *slog.Logger
	opts     Options

	trigger chan struct{}

	mu   sync.Mutex
	last Result

	runMu   sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

// New creates a sync engine. Defaults are applied for zero option values.
func New(st *store.Store, uploader remote.Uploader, logger *slog.Logger, opts Options) *Syncer {
	if opts.Interval <= 0 {
		opts.Interval = 60 * time.Second
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = 30 * time.Second
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 50
	}
	return &Syncer{
		store:    st,
		uploader: uploader,
		logger:   logging.NewComponentLogger(logger, "syncer"),
		opts:     opts,
		trigger:  make(chan struct{}, 1),
	}
}

// Start launches the background sync loop.
func (s *Syncer) Start(ctx context.Context) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.started {
		return errors.New("syncer already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.started = true

	go s.run(runCtx)
	s.logger.Info("sync engine started", "interval", s.opts.Interval.String(), "batch_size", s.opts.BatchSize)
	return nil
}

// Stop halts the background loop and waits for an in-flight pass to
// finish.
func (s *Syncer) Stop() {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if !s.started {
		return
	}
	s.cancel()
	<-s.done
	s.started = false
	s.logger.Info("sync engine stopped")
}

// TriggerNow requests an immediate sync pass. The request coalesces with
// any already-pending trigger.
func (s *Syncer) TriggerNow() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// LastResult returns the outcome of the most recent sync pass.
func (s *Syncer) LastResult() Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func (s *Syncer) run(ctx context.Context) {
	defer close(s.done)

	delay := s.opts.Interval
	timer := time.NewTimer(delay)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		case <-s.trigger:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}

		result := s.SyncOnce(ctx)
		if result.Err != nil && !errors.Is(result.Err, context.Canceled) {
			s.logger.Warn("sync pass failed", logging.Error(result.Err))
			delay = s.opts.RetryInterval
		} else {
			delay = s.opts.Interval
		}
		timer.Reset(delay)
	}
}

// SyncOnce runs a single sync pass: sessions touched by the batch first,
// then events with their artifacts, then status logs, then alerts.
func (s *Syncer) SyncOnce(ctx context.Context) Result {
	result := Result{CompletedAt: time.Now()}
	result.Err = s.syncPass(ctx, &result)

	s.mu.Lock()
	s.last = result
	s.mu.Unlock()

	if result.Err == nil && (result.Events > 0 || result.StatusLogs > 0 || result.Alerts > 0) {
		s.logger.Info("sync pass complete",
			"events", result.Events,
			"sessions", result.Sessions,
			"status_logs", result.StatusLogs,
			"alerts", result.Alerts)
	}
	return result
}

func (s *Syncer) syncPass(ctx context.Context, result *Result) error {
	events, err := s.store.UnsyncedEvents(ctx, s.opts.BatchSize)
	if err != nil {
		return fmt.Errorf("load unsynced events: %w", err)
	}

	if err := s.syncSessions(ctx, events, result); err != nil {
		return err
	}
	if err := s.syncEvents(ctx, events, result); err != nil {
		return err
	}
	if err := s.syncStatusLogs(ctx, result); err != nil {
		return err
	}
	return s.syncAlerts(ctx, result)
}

// syncSessions upserts every session referenced by the event batch plus
// the participant's open session, keeping remote session state current
// without a per-session dirty flag.
func (s *Syncer) syncSessions(ctx context.Context, events []*store.Event, result *Result) error {
	ids := make(map[string]struct{}, len(events))
	order := make([]string, 0, len(events))
	for _, event := range events {
		if _, seen := ids[event.SessionID]; !seen {
			ids[event.SessionID] = struct{}{}
			order = append(order, event.SessionID)
		}
	}

	if open, err := s.store.OpenSession(ctx, s.opts.ParticipantID); err != nil {
		return fmt.Errorf("load open session: %w", err)
	} else if open != nil {
		if _, seen := ids[open.ID]; !seen {
			ids[open.ID] = struct{}{}
			order = append(order, open.ID)
		}
	}
	if len(order) == 0 {
		return nil
	}

	sessions, err := s.store.SessionsByIDs(ctx, order)
	if err != nil {
		return fmt.Errorf("load sessions: %w", err)
	}
	for _, session := range sessions {
		if err := s.uploader.UpsertSession(ctx, session); err != nil {
			return fmt.Errorf("upsert session %s: %w", session.ID, err)
		}
		result.Sessions++
	}
	return nil
}

func (s *Syncer) syncEvents(ctx context.Context, events []*store.Event, result *Result) error {
	if len(events) == 0 {
		return nil
	}

	acked := make([]string, 0, len(events))
	for _, event := range events {
		if err := s.uploadArtifact(ctx, event); err != nil {
			break
		}
		if err := s.uploader.UpsertEvent(ctx, event); err != nil {
			// Partial batches are fine: ack what made it, retry the rest
			// next pass.
			s.logger.Warn("event upload failed", logging.FieldEventID, event.ID, logging.Error(err))
			break
		}
		acked = append(acked, event.ID)
	}
	if len(acked) == 0 {
		return fmt.Errorf("no events uploaded from batch of %d", len(events))
	}

	if err := s.store.MarkEventsSynced(ctx, acked); err != nil {
		return fmt.Errorf("mark events synced: %w", err)
	}
	result.Events = len(acked)
	if len(acked) < len(events) {
		return fmt.Errorf("uploaded %d of %d events", len(acked), len(events))
	}
	return nil
}

// uploadArtifact ships the screenshot or markup file backing an event
// before the event document itself, so a remote reader never sees an
// event whose artifact is missing. A locally deleted artifact is logged
// and skipped; the event record still syncs.
func (s *Syncer) uploadArtifact(ctx context.Context, event *store.Event) error {
	var filePath string
	switch event.Type {
	case store.EventScreenshot:
		capture, err := s.store.GetScreenshotCapture(ctx, event.ID)
		if err != nil {
			return err
		}
		if capture != nil {
			filePath = capture.FilePath
		}
	default:
		capture, err := s.store.MarkupCaptureByEvent(ctx, event.ID)
		if err != nil {
			return err
		}
		if capture != nil {
			filePath = capture.FilePath
		}
	}
	if filePath == "" {
		return nil
	}

	file, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Warn("artifact missing locally, syncing record without it",
				logging.FieldEventID, event.ID, "path", filePath)
			return nil
		}
		return fmt.Errorf("open artifact: %w", err)
	}
	defer file.Close()

	blobPath := fmt.Sprintf("participants/%s/sessions/%s/%s",
		event.ParticipantID, event.SessionID, filepath.Base(filePath))
	contentType := mime.TypeByExtension(filepath.Ext(filePath))
	if err := s.uploader.UploadBlob(ctx, blobPath, contentType, file); err != nil {
		s.logger.Warn("artifact upload failed", logging.FieldEventID, event.ID, logging.Error(err))
		return err
	}
	return nil
}

func (s *Syncer) syncStatusLogs(ctx context.Context, result *Result) error {
	logs, err := s.store.UnsyncedStatusLogs(ctx, s.opts.BatchSize)
	if err != nil {
		return fmt.Errorf("load unsynced status logs: %w", err)
	}
	if len(logs) == 0 {
		return nil
	}

	acked := make([]string, 0, len(logs))
	for _, log := range logs {
		if err := s.uploader.UpsertStatusLog(ctx, s.opts.ParticipantID, log); err != nil {
			s.logger.Warn("status log upload failed", "status_log_id", log.ID, logging.Error(err))
			break
		}
		acked = append(acked, log.ID)
	}
	if len(acked) == 0 {
		return fmt.Errorf("no status logs uploaded from batch of %d", len(logs))
	}

	if err := s.store.MarkStatusLogsSynced(ctx, acked); err != nil {
		return fmt.Errorf("mark status logs synced: %w", err)
	}
	result.StatusLogs = len(acked)
	if len(acked) < len(logs) {
		return fmt.Errorf("uploaded %d of %d status logs", len(acked), len(logs))
	}
	return nil
}

func (s *Syncer) syncAlerts(ctx context.Context, result *Result) error {
	alerts, err := s.store.UnsyncedAlerts(ctx, s.opts.BatchSize)
	if err != nil {
		return fmt.Errorf("load unsynced alerts: %w", err)
	}
	if len(alerts) == 0 {
		return nil
	}

	acked := make([]string, 0, len(alerts))
	for _, alert := range alerts {
		if err := s.uploader.UpsertAlert(ctx, alert); err != nil {
			s.logger.Warn("alert upload failed", logging.FieldAlertID, alert.ID, logging.Error(err))
			break
		}
		acked = append(acked, alert.ID)
	}
	if len(acked) == 0 {
		return fmt.Errorf("no alerts uploaded from batch of %d", len(alerts))
	}

	if err := s.store.MarkAlertsSynced(ctx, acked); err != nil {
		return fmt.Errorf("mark alerts synced: %w", err)
	}
	result.Alerts = len(acked)
	if len(acked) < len(alerts) {
		return fmt.Errorf("uploaded %d of %d alerts", len(acked), len(alerts))
	}
	return nil
}
