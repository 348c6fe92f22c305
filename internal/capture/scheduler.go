package capture

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"socialscope/internal/logging"
	"socialscope/internal/ocr"
	"socialscope/internal/preflight"
	"socialscope/internal/session"
	"socialscope/internal/store"
)

// Options configures scheduler construction. A nil Recognizer disables
// text recognition entirely.
type Options struct {
	Interval          time.Duration
	JPEGQuality       int
	SampleStride      int
	MismatchThreshold int
	CaptureDir        string
	MinFreeBytes      uint64
	Recognizer        ocr.Recognizer
}

// Scheduler drives screenshot and markup capture on a fixed cadence while
// a target is attached, writing only genuine changes. The capture tick is
// non-reentrant: an in-flight capture causes later ticks to be skipped,
// never queued, so memory stays bounded and the cadence is advisory.
type Scheduler struct {
	store      *store.Store
	sessions   *session.Manager
	logger     *slog.Logger
	detector   *Detector
	recognizer ocr.Recognizer

	interval     time.Duration
	jpegQuality  int
	captureDir   string
	minFreeBytes uint64

	mu                  sync.Mutex
	target              Target
	lastFrame           []byte
	lastMarkupHash      string
	lastMarkupCaptureID string
	generation          uint64

	busy    atomic.Bool
	skipped atomic.Uint64

	runMu   sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewScheduler constructs a capture scheduler.
func NewScheduler(st *store.Store, sessions *session.Manager, logger *slog.Logger, opts Options) *Scheduler {
	interval := opts.Interval
	if interval <= 0 {
		interval = time.Second
	}
	quality := opts.JPEGQuality
	if quality <= 0 || quality > 100 {
		quality = 85
	}
	return &Scheduler{
		store:        st,
		sessions:     sessions,
		logger:       logging.NewComponentLogger(logger, "capture"),
		detector:     NewDetector(opts.SampleStride, opts.MismatchThreshold),
		recognizer:   opts.Recognizer,
		interval:     interval,
		jpegQuality:  quality,
		captureDir:   opts.CaptureDir,
		minFreeBytes: opts.MinFreeBytes,
	}
}

// Attach installs the capture target. Capture ticks are no-ops while no
// target is attached.
func (s *Scheduler) Attach(target Target) {
	s.mu.Lock()
	s.target = target
	s.mu.Unlock()
}

// Detach removes the capture target.
func (s *Scheduler) Detach() {
	s.mu.Lock()
	s.target = nil
	s.mu.Unlock()
}

// Reset clears the last-frame and last-markup baselines. Called on every
// session boundary so a new session's first capture is never compared
// against the prior session's state. The generation bump invalidates any
// tick already in flight: its baseline writes are discarded, so a stale
// frame cannot be re-installed after the reset.
func (s *Scheduler) Reset() {
	s.mu.Lock()
	s.lastFrame = nil
	s.lastMarkupHash = ""
	s.lastMarkupCaptureID = ""
	s.generation++
	s.mu.Unlock()
}

// SkippedTicks returns the count of ticks skipped by the re-entrancy guard.
func (s *Scheduler) SkippedTicks() uint64 {
	return s.skipped.Load()
}

// Start launches the capture loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.running {
		return errors.New("capture scheduler already running")
	}

	s.seedMarkupBaseline(ctx)

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true

	s.wg.Add(1)
	go s.run(runCtx)
	return nil
}

// seedMarkupBaseline restores the markup dedup baseline from the store on
// warm start, so restarting the agent mid-session does not duplicate an
// unchanged document. Only a capture belonging to the still-open session
// may seed; anything older must compare as "changed".
func (s *Scheduler) seedMarkupBaseline(ctx context.Context) {
	sessionID, err := s.sessions.Active(ctx)
	if err != nil || sessionID == "" {
		return
	}

	latest, err := s.store.LatestMarkupCapture(ctx, s.sessions.ParticipantID())
	if err != nil {
		s.logger.Debug("markup baseline lookup failed", logging.Error(err))
		return
	}
	if latest == nil {
		return
	}
	event, err := s.store.GetEvent(ctx, latest.EventID)
	if err != nil || event == nil || event.SessionID != sessionID {
		return
	}

	s.mu.Lock()
	if s.lastMarkupHash == "" {
		s.lastMarkupHash = latest.ContentHash
		s.lastMarkupCaptureID = latest.ID
	}
	s.mu.Unlock()
	s.logger.Debug("markup baseline restored", logging.String("capture_id", latest.ID))
}

// Stop cancels the capture loop deterministically, waits for any in-flight
// tick, and clears all comparison baselines.
func (s *Scheduler) Stop() {
	s.runMu.Lock()
	if !s.running {
		s.runMu.Unlock()
		return
	}
	cancel := s.cancel
	s.running = false
	s.cancel = nil
	s.runMu.Unlock()

	cancel()
	s.wg.Wait()
	s.Reset()
}

func (s *Scheduler) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				s.CaptureOnce(ctx)
			}()
		}
	}
}

// CaptureOnce performs a single capture tick. It returns false when the
// tick was skipped because a previous capture is still in flight or no
// target is attached. Every failure inside the tick is logged and treated
// as "no capture this tick"; the scheduler never aborts on error.
func (s *Scheduler) CaptureOnce(ctx context.Context) bool {
	if !s.busy.CompareAndSwap(false, true) {
		s.skipped.Add(1)
		return false
	}
	defer s.busy.Store(false)

	// The generation is pinned before any target I/O: a Reset issued while
	// this tick is in flight invalidates its baseline writes wholesale.
	s.mu.Lock()
	target := s.target
	gen := s.generation
	s.mu.Unlock()
	if target == nil {
		return false
	}

	sessionID, err := s.sessions.Active(ctx)
	if err != nil {
		s.logger.Warn("capture tick skipped; session lookup failed", logging.Error(err))
		return false
	}
	if sessionID == "" {
		// No open session: the scheduler never starts one. Capture stays
		// quiet until the next session begins.
		return false
	}

	pageURL, err := target.URL(ctx)
	if err != nil {
		s.logger.Debug("page url unavailable", logging.Error(err))
		pageURL = ""
	}

	now := time.Now().UTC()
	s.captureScreenshot(ctx, target, sessionID, pageURL, now, gen)
	s.captureMarkup(ctx, target, sessionID, pageURL, now, gen)
	return true
}

type screenshotPayload struct {
	Kind            string `json:"kind"`
	RawBytes        int64  `json:"rawBytes"`
	CompressedBytes int64  `json:"compressedBytes"`
	OCRChars        int    `json:"ocrChars,omitempty"`
}

func (s *Scheduler) captureScreenshot(ctx context.Context, target Target, sessionID, pageURL string, now time.Time, gen uint64) {
	frame, err := target.TakeScreenshot(ctx)
	if err != nil {
		s.logger.Warn("screenshot capture failed", logging.Error(err))
		return
	}
	if len(frame) == 0 {
		s.logger.Debug("screenshot empty; skipping tick")
		return
	}

	s.mu.Lock()
	prev := s.lastFrame
	s.mu.Unlock()

	if prev != nil && !s.detector.FrameChanged(prev, frame) {
		return
	}

	if !s.artifactSpaceAvailable() {
		s.logger.Warn("low disk space; screenshot not stored")
		return
	}

	img, _, err := image.Decode(bytes.NewReader(frame))
	if err != nil {
		s.logger.Warn("screenshot decode failed", logging.Error(err))
		return
	}

	var compressed bytes.Buffer
	if err := jpeg.Encode(&compressed, img, &jpeg.Options{Quality: s.jpegQuality}); err != nil {
		s.logger.Warn("screenshot compression failed", logging.Error(err))
		return
	}

	dir, err := sessionDir(s.captureDir, s.sessions.ParticipantID(), sessionID)
	if err != nil {
		s.logger.Warn("capture directory unavailable", logging.Error(err))
		return
	}
	filePath := filepath.Join(dir, screenshotFilename(now))
	if err := os.WriteFile(filePath, compressed.Bytes(), 0o644); err != nil {
		s.logger.Warn("screenshot write failed", logging.Error(err))
		return
	}

	payload := screenshotPayload{
		Kind:            "screenshot",
		RawBytes:        int64(len(frame)),
		CompressedBytes: int64(compressed.Len()),
	}
	if s.recognizer != nil {
		if text, err := s.recognizer.ExtractText(ctx, filePath); err != nil {
			s.logger.Debug("text recognition failed", logging.Error(err))
		} else {
			payload.OCRChars = len([]rune(text))
		}
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		s.logger.Warn("screenshot payload encode failed", logging.Error(err))
		return
	}

	event := &store.Event{
		ID:            uuid.NewString(),
		SessionID:     sessionID,
		ParticipantID: s.sessions.ParticipantID(),
		Type:          store.EventScreenshot,
		Platform:      platformFromURL(pageURL),
		URL:           pageURL,
		OccurredAt:    now,
		PayloadJSON:   string(payloadJSON),
	}
	if err := s.store.InsertEvent(ctx, event); err != nil {
		s.logger.Error("screenshot event write failed", logging.Error(err))
		return
	}
	if err := s.store.InsertScreenshotCapture(ctx, &store.ScreenshotCapture{
		EventID:         event.ID,
		FilePath:        filePath,
		RawBytes:        int64(len(frame)),
		CompressedBytes: int64(compressed.Len()),
		CapturedAt:      now,
	}); err != nil {
		s.logger.Error("screenshot capture row write failed", logging.Error(err))
		return
	}

	// The uncompressed frame is the next baseline; comparing against the
	// lossy re-encoding would drift. A Reset issued while this tick was in
	// flight wins: the stale frame is not installed.
	s.mu.Lock()
	if s.generation == gen {
		s.lastFrame = frame
	}
	s.mu.Unlock()

	s.logger.Debug("screenshot stored",
		logging.String(logging.FieldEventID, event.ID),
		logging.Int64("compressed_bytes", int64(compressed.Len())),
	)
}

type markupPayload struct {
	Kind      string `json:"kind"`
	CharCount int64  `json:"charCount"`
}

func (s *Scheduler) captureMarkup(ctx context.Context, target Target, sessionID, pageURL string, now time.Time, gen uint64) {
	markup, err := target.EvaluateScript(ctx, markupScript)
	if err != nil {
		s.logger.Warn("markup capture failed", logging.Error(err))
		return
	}
	if markup == "" {
		return
	}

	digest := MarkupDigest(markup)

	s.mu.Lock()
	lastHash := s.lastMarkupHash
	lastCaptureID := s.lastMarkupCaptureID
	s.mu.Unlock()

	if lastHash != "" && digest == lastHash {
		// Checked, no change: audit row only, pointing at the capture that
		// is still current.
		log := &store.MarkupStatusLog{
			ID:            uuid.NewString(),
			HTMLChanged:   false,
			HTMLCaptureID: lastCaptureID,
			HTMLHash:      digest,
			CapturedAt:    now,
		}
		if err := s.store.InsertMarkupStatusLog(ctx, log); err != nil {
			s.logger.Error("markup status log write failed", logging.Error(err))
		}
		return
	}

	if !s.artifactSpaceAvailable() {
		s.logger.Warn("low disk space; markup not stored")
		return
	}

	dir, err := sessionDir(s.captureDir, s.sessions.ParticipantID(), sessionID)
	if err != nil {
		s.logger.Warn("capture directory unavailable", logging.Error(err))
		return
	}
	filePath := filepath.Join(dir, markupFilename(now))
	if err := os.WriteFile(filePath, []byte(markup), 0o644); err != nil {
		s.logger.Warn("markup write failed", logging.Error(err))
		return
	}

	payloadJSON, err := json.Marshal(markupPayload{Kind: "html_capture", CharCount: int64(len([]rune(markup)))})
	if err != nil {
		s.logger.Warn("markup payload encode failed", logging.Error(err))
		return
	}

	event := &store.Event{
		ID:            uuid.NewString(),
		SessionID:     sessionID,
		ParticipantID: s.sessions.ParticipantID(),
		Type:          store.EventOther,
		Platform:      platformFromURL(pageURL),
		URL:           pageURL,
		OccurredAt:    now,
		PayloadJSON:   string(payloadJSON),
	}
	if err := s.store.InsertEvent(ctx, event); err != nil {
		s.logger.Error("markup event write failed", logging.Error(err))
		return
	}

	capture := &store.MarkupCapture{
		ID:          uuid.NewString(),
		EventID:     event.ID,
		ContentHash: digest,
		FilePath:    filePath,
		CharCount:   int64(len([]rune(markup))),
		URL:         pageURL,
		Platform:    platformFromURL(pageURL),
		CapturedAt:  now,
	}
	if err := s.store.InsertMarkupCapture(ctx, capture); err != nil {
		s.logger.Error("markup capture row write failed", logging.Error(err))
		return
	}

	log := &store.MarkupStatusLog{
		ID:            uuid.NewString(),
		EventID:       event.ID,
		HTMLChanged:   true,
		HTMLCaptureID: capture.ID,
		HTMLHash:      digest,
		CapturedAt:    now,
	}
	if err := s.store.InsertMarkupStatusLog(ctx, log); err != nil {
		s.logger.Error("markup status log write failed", logging.Error(err))
		return
	}

	s.mu.Lock()
	if s.generation == gen {
		s.lastMarkupHash = digest
		s.lastMarkupCaptureID = capture.ID
	}
	s.mu.Unlock()

	s.logger.Debug("markup stored",
		logging.String(logging.FieldEventID, event.ID),
		logging.Int64("char_count", capture.CharCount),
	)
}

func (s *Scheduler) artifactSpaceAvailable() bool {
	if s.minFreeBytes == 0 {
		return true
	}
	free, err := preflight.FreeSpace(s.captureDir)
	if err != nil {
		// Stat failure should not halt capture; the write itself will
		// surface real disk errors.
		return true
	}
	return free >= s.minFreeBytes
}
