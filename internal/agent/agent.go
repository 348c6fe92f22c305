package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"socialscope/internal/api"
	"socialscope/internal/capture"
	"socialscope/internal/config"
	"socialscope/internal/ingest"
	"socialscope/internal/logging"
	"socialscope/internal/ocr"
	"socialscope/internal/preflight"
	"socialscope/internal/remote"
	"socialscope/internal/safety"
	"socialscope/internal/session"
	"socialscope/internal/store"
	"socialscope/internal/syncer"
)

// Agent wires the capture pipeline together: durable store, session
// manager, ingestor, capture scheduler, sync engine, safety dispatcher,
// and the loopback API bridge. One agent instance runs per device,
// enforced by a lock file under the data directory.
type Agent struct {
	cfg    *config.Config
	logger *slog.Logger

	lock       *flock.Flock
	store      *store.Store
	sessions   *session.Manager
	ingestor   *ingest.Ingestor
	scheduler  *capture.Scheduler
	syncer     *syncer.Syncer
	dispatcher *safety.Dispatcher
	server     *api.Server

	// stateMu guards the run state; the API bridge serves Status from
	// other goroutines while Start and Stop mutate it.
	stateMu   sync.Mutex
	startedAt time.Time
	running   bool
}

// New builds an agent from configuration. The instance lock is acquired
// and the store opened here; background loops start in Start.
func New(cfg *config.Config, logger *slog.Logger) (*Agent, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	if err := runPreflight(cfg, logger); err != nil {
		return nil, err
	}

	lock := flock.New(filepath.Join(cfg.Paths.DataDir, "socialscope.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire instance lock: %w", err)
	}
	if !locked {
		return nil, errors.New("another agent instance is already running")
	}

	st, err := store.Open(cfg)
	if err != nil {
		lock.Unlock()
		return nil, err
	}
	health, err := st.CheckHealth(context.Background())
	if err != nil {
		st.Close()
		lock.Unlock()
		return nil, fmt.Errorf("store health check: %w", err)
	}
	if len(health.MissingTables) > 0 {
		st.Close()
		lock.Unlock()
		return nil, fmt.Errorf("store missing tables: %s", strings.Join(health.MissingTables, ", "))
	}
	if !health.IntegrityCheck {
		st.Close()
		lock.Unlock()
		return nil, errors.New("store failed integrity check")
	}

	agent := &Agent{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "agent"),
		lock:   lock,
		store:  st,
	}

	agent.sessions, err = session.NewManager(st, logger, cfg.Study.ParticipantID)
	if err != nil {
		agent.Close()
		return nil, err
	}
	agent.ingestor = ingest.New(st, agent.sessions, logger)
	captureOpts := capture.Options{
		Interval:          time.Duration(cfg.Capture.IntervalSeconds) * time.Second,
		JPEGQuality:       cfg.Capture.JPEGQuality,
		SampleStride:      cfg.Capture.SampleStride,
		MismatchThreshold: cfg.Capture.MismatchThreshold,
		CaptureDir:        cfg.Paths.CaptureDir,
		MinFreeBytes:      uint64(cfg.Capture.MinFreeMiB) * 1024 * 1024,
	}
	if cfg.Capture.OCREnabled {
		captureOpts.Recognizer = ocr.NewCommand(cfg.Capture.OCRCommand)
	}
	agent.scheduler = capture.NewScheduler(st, agent.sessions, logger, captureOpts)

	var notifier safety.Notifier
	if cfg.Safety.GatewayURL != "" {
		notifier, err = safety.NewGatewayNotifier(
			cfg.Safety.GatewayURL,
			cfg.Safety.GatewayToken,
			time.Duration(cfg.Safety.RequestTimeout)*time.Second,
		)
		if err != nil {
			agent.Close()
			return nil, err
		}
	}
	agent.dispatcher = safety.NewDispatcher(st, notifier, logger, cfg.Study.ParticipantID, cfg.Safety.PageTarget)

	if cfg.Sync.RemoteURL != "" {
		uploader, err := remote.New(
			cfg.Sync.RemoteURL,
			cfg.Sync.APIToken,
			time.Duration(cfg.Sync.RequestTimeout)*time.Second,
		)
		if err != nil {
			agent.Close()
			return nil, err
		}
		agent.syncer = syncer.New(st, uploader, logger, syncer.Options{
			Interval:      time.Duration(cfg.Sync.IntervalSeconds) * time.Second,
			RetryInterval: time.Duration(cfg.Sync.ErrorRetrySeconds) * time.Second,
			BatchSize:     cfg.Sync.BatchSize,
			ParticipantID: cfg.Study.ParticipantID,
		})
	}

	agent.server, err = api.NewServer(api.Options{
		Bind:   cfg.API.Bind,
		Token:  cfg.API.Token,
		Events: agent.ingestor,
		Alerts: agent.dispatcher,
		Status: func(ctx context.Context) (any, error) {
			return agent.Status(ctx)
		},
	}, logger)
	if err != nil {
		agent.Close()
		return nil, err
	}

	return agent, nil
}

func runPreflight(cfg *config.Config, logger *slog.Logger) error {
	minFree := uint64(cfg.Capture.MinFreeMiB) * 1024 * 1024
	results := []preflight.Result{
		preflight.CheckDirectoryAccess("data directory", cfg.Paths.DataDir),
		preflight.CheckDirectoryAccess("capture directory", cfg.Paths.CaptureDir),
		preflight.CheckFreeSpace("capture disk space", cfg.Paths.CaptureDir, minFree),
	}
	for _, result := range results {
		if result.Passed {
			continue
		}
		logger.Error("preflight check failed", "check", result.Name, "detail", result.Detail)
		return fmt.Errorf("preflight: %s: %s", result.Name, result.Detail)
	}
	return nil
}

// Start launches the background loops and the API bridge. Unhandled
// safety alerts left over from a previous run are reswept first.
func (a *Agent) Start(ctx context.Context) error {
	a.stateMu.Lock()
	if a.running {
		a.stateMu.Unlock()
		return errors.New("agent already started")
	}
	a.stateMu.Unlock()

	if a.cfg.Safety.Resweep {
		if _, err := a.dispatcher.Resweep(ctx); err != nil {
			a.logger.Warn("alert resweep failed", logging.Error(err))
		}
	}

	if err := a.scheduler.Start(ctx); err != nil {
		return err
	}
	if a.syncer != nil {
		if err := a.syncer.Start(ctx); err != nil {
			a.scheduler.Stop()
			return err
		}
	}
	if err := a.server.Start(ctx); err != nil {
		a.scheduler.Stop()
		if a.syncer != nil {
			a.syncer.Stop()
		}
		return err
	}

	a.stateMu.Lock()
	a.startedAt = time.Now()
	a.running = true
	a.stateMu.Unlock()
	a.logger.Info("agent started",
		logging.FieldParticipantID, a.cfg.Study.ParticipantID,
		"api_addr", a.server.Addr())
	return nil
}

// Stop halts background loops and the API bridge, then waits for pending
// safety deliveries.
func (a *Agent) Stop(ctx context.Context) {
	a.stateMu.Lock()
	if !a.running {
		a.stateMu.Unlock()
		return
	}
	a.running = false
	a.stateMu.Unlock()

	if err := a.server.Stop(ctx); err != nil {
		a.logger.Warn("api shutdown error", logging.Error(err))
	}
	a.scheduler.Stop()
	if a.syncer != nil {
		a.syncer.Stop()
	}
	a.dispatcher.Wait()
	a.logger.Info("agent stopped")
}

// Close releases the store and the instance lock. Call after Stop.
func (a *Agent) Close() error {
	var errs []error
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			errs = append(errs, err)
		}
		a.store = nil
	}
	if a.lock != nil {
		if err := a.lock.Unlock(); err != nil {
			errs = append(errs, fmt.Errorf("release instance lock: %w", err))
		}
		a.lock = nil
	}
	return errors.Join(errs...)
}

// Store exposes the underlying durable store for CLI diagnostics.
func (a *Agent) Store() *store.Store {
	return a.store
}

// Scheduler exposes the capture scheduler so a capture surface can attach
// its target.
func (a *Agent) Scheduler() *capture.Scheduler {
	return a.scheduler
}

// TriggerSync requests an immediate sync pass, if syncing is configured.
func (a *Agent) TriggerSync() bool {
	if a.syncer == nil {
		return false
	}
	a.syncer.TriggerNow()
	return true
}

// StartSession ends any open session and begins a new one, resetting the
// capture dedup baselines so the first capture of the new session is
// always stored.
func (a *Agent) StartSession(ctx context.Context, deviceInfoJSON string) (string, error) {
	sessionID, err := a.sessions.Start(ctx, deviceInfoJSON)
	if err != nil {
		return "", err
	}
	a.scheduler.Reset()
	return sessionID, nil
}

// EndSession closes the current session, if one is open.
func (a *Agent) EndSession(ctx context.Context) error {
	if err := a.sessions.End(ctx); err != nil {
		return err
	}
	a.scheduler.Reset()
	return nil
}
