package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// InsertScreenshotCapture records the stored compressed frame for a
// screenshot event.
func (s *Store) InsertScreenshotCapture(ctx context.Context, capture *ScreenshotCapture) error {
	if capture == nil {
		return errors.New("capture is nil")
	}
	if capture.EventID == "" {
		return errors.New("capture event id required")
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO screenshot_captures (event_id, file_path, raw_bytes, compressed_bytes, captured_at)
         VALUES (?, ?, ?, ?, ?)`,
		capture.EventID,
		capture.FilePath,
		capture.RawBytes,
		capture.CompressedBytes,
		formatTime(capture.CapturedAt),
	)
	if err != nil {
		return fmt.Errorf("insert screenshot capture: %w", err)
	}
	return nil
}

// GetScreenshotCapture fetches the capture row for a screenshot event.
func (s *Store) GetScreenshotCapture(ctx context.Context, eventID string) (*ScreenshotCapture, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT event_id, file_path, raw_bytes, compressed_bytes, captured_at
         FROM screenshot_captures WHERE event_id = ?`,
		eventID,
	)
	var (
		capture     ScreenshotCapture
		capturedRaw string
	)
	err := row.Scan(&capture.EventID, &capture.FilePath, &capture.RawBytes, &capture.CompressedBytes, &capturedRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get screenshot capture: %w", err)
	}
	if captured, err := parseTimeString(capturedRaw); err == nil {
		capture.CapturedAt = captured
	}
	return &capture, nil
}

// InsertMarkupCapture records a stored markup artifact.
func (s *Store) InsertMarkupCapture(ctx context.Context, capture *MarkupCapture) error {
	if capture == nil {
		return errors.New("capture is nil")
	}
	if capture.ID == "" || capture.EventID == "" {
		return errors.New("capture id and event id required")
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO markup_captures (id, event_id, content_hash, file_path, char_count, url, platform, captured_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		capture.ID,
		capture.EventID,
		capture.ContentHash,
		capture.FilePath,
		capture.CharCount,
		nullableString(capture.URL),
		string(capture.Platform),
		formatTime(capture.CapturedAt),
	)
	if err != nil {
		return fmt.Errorf("insert markup capture: %w", err)
	}
	return nil
}

// GetMarkupCapture fetches a markup capture by identifier.
func (s *Store) GetMarkupCapture(ctx context.Context, id string) (*MarkupCapture, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, event_id, content_hash, file_path, char_count, url, platform, captured_at
         FROM markup_captures WHERE id = ?`,
		id,
	)
	capture, err := scanMarkupCapture(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get markup capture: %w", err)
	}
	return capture, nil
}

// MarkupCaptureByEvent fetches the markup capture created alongside the
// given event, if any.
func (s *Store) MarkupCaptureByEvent(ctx context.Context, eventID string) (*MarkupCapture, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, event_id, content_hash, file_path, char_count, url, platform, captured_at
         FROM markup_captures WHERE event_id = ?`,
		eventID,
	)
	capture, err := scanMarkupCapture(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("markup capture by event: %w", err)
	}
	return capture, nil
}

// LatestMarkupCapture returns the most recent markup capture for the
// participant, used to seed the dedup baseline on warm starts.
func (s *Store) LatestMarkupCapture(ctx context.Context, participantID string) (*MarkupCapture, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT mc.id, mc.event_id, mc.content_hash, mc.file_path, mc.char_count, mc.url, mc.platform, mc.captured_at
         FROM markup_captures mc
         JOIN events e ON e.id = mc.event_id
         WHERE e.participant_id = ?
         ORDER BY mc.captured_at DESC LIMIT 1`,
		participantID,
	)
	capture, err := scanMarkupCapture(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest markup capture: %w", err)
	}
	return capture, nil
}

// InsertMarkupStatusLog records the audit row for one markup poll.
func (s *Store) InsertMarkupStatusLog(ctx context.Context, log *MarkupStatusLog) error {
	if log == nil {
		return errors.New("status log is nil")
	}
	if log.ID == "" {
		return errors.New("status log id required")
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO markup_status_logs (id, event_id, html_changed, html_capture_id, html_hash, captured_at, synced)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		log.ID,
		nullableString(log.EventID),
		boolToInt(log.HTMLChanged),
		nullableString(log.HTMLCaptureID),
		log.HTMLHash,
		formatTime(log.CapturedAt),
		boolToInt(log.Synced),
	)
	if err != nil {
		return fmt.Errorf("insert markup status log: %w", err)
	}
	return nil
}

// UnsyncedStatusLogs returns up to limit status logs pending upload,
// oldest first.
func (s *Store) UnsyncedStatusLogs(ctx context.Context, limit int) ([]*MarkupStatusLog, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, event_id, html_changed, html_capture_id, html_hash, captured_at, synced
         FROM markup_status_logs WHERE synced = 0 ORDER BY captured_at LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query unsynced status logs: %w", err)
	}
	defer rows.Close()

	var logs []*MarkupStatusLog
	for rows.Next() {
		log, err := scanStatusLog(rows)
		if err != nil {
			return nil, err
		}
		logs = append(logs, log)
	}
	return logs, rows.Err()
}

// MarkStatusLogsSynced flips the synced flag for acknowledged log ids.
func (s *Store) MarkStatusLogsSynced(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE markup_status_logs SET synced = 1 WHERE id IN (`+makePlaceholders(len(ids))+`)`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("mark status logs synced: %w", err)
	}
	return nil
}

func scanMarkupCapture(scanner interface{ Scan(dest ...any) error }) (*MarkupCapture, error) {
	var (
		capture     MarkupCapture
		url         sql.NullString
		platform    string
		capturedRaw string
	)
	if err := scanner.Scan(&capture.ID, &capture.EventID, &capture.ContentHash, &capture.FilePath, &capture.CharCount, &url, &platform, &capturedRaw); err != nil {
		return nil, err
	}
	capture.URL = url.String
	capture.Platform = Platform(platform)
	if captured, err := parseTimeString(capturedRaw); err == nil {
		capture.CapturedAt = captured
	}
	return &capture, nil
}

func scanStatusLog(scanner interface{ Scan(dest ...any) error }) (*MarkupStatusLog, error) {
	var (
		log         MarkupStatusLog
		eventID     sql.NullString
		changed     int64
		captureID   sql.NullString
		capturedRaw string
		synced      int64
	)
	if err := scanner.Scan(&log.ID, &eventID, &changed, &captureID, &log.HTMLHash, &capturedRaw, &synced); err != nil {
		return nil, err
	}
	log.EventID = eventID.String
	log.HTMLChanged = changed != 0
	log.HTMLCaptureID = captureID.String
	log.Synced = synced != 0
	if captured, err := parseTimeString(capturedRaw); err == nil {
		log.CapturedAt = captured
	}
	return &log, nil
}
