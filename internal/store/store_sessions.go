package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const sessionColumns = "id, participant_id, started_at, ended_at, device_info_json, event_count"

// CreateSession inserts a new session row. Any open session for the
// participant must be ended first; the partial unique index rejects a
// second open session.
func (s *Store) CreateSession(ctx context.Context, participantID, deviceInfoJSON string) (*Session, error) {
	if participantID == "" {
		return nil, errors.New("participant id required")
	}
	now := time.Now().UTC()
	session := &Session{
		ID:             uuid.NewString(),
		ParticipantID:  participantID,
		StartedAt:      now,
		DeviceInfoJSON: deviceInfoJSON,
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO sessions (id, participant_id, started_at, ended_at, device_info_json, event_count)
         VALUES (?, ?, ?, NULL, ?, 0)`,
		session.ID,
		participantID,
		formatTime(now),
		nullableString(deviceInfoJSON),
	)
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	return session, nil
}

// GetSession fetches a session by identifier.
func (s *Store) GetSession(ctx context.Context, id string) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return session, nil
}

// OpenSession returns the participant's open session, or nil when none exists.
func (s *Store) OpenSession(ctx context.Context, participantID string) (*Session, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE participant_id = ? AND ended_at IS NULL LIMIT 1`,
		participantID,
	)
	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	return session, nil
}

// EndSession sets ended_at on a session. Ending an already-ended session is
// a no-op.
func (s *Store) EndSession(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE sessions SET ended_at = ? WHERE id = ? AND ended_at IS NULL`,
		formatTime(time.Now().UTC()),
		id,
	)
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	return nil
}

// EndOpenSessions closes every open session for the participant and returns
// the number of rows affected. Used when a new session supersedes a stale one.
func (s *Store) EndOpenSessions(ctx context.Context, participantID string) (int64, error) {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE sessions SET ended_at = ? WHERE participant_id = ? AND ended_at IS NULL`,
		formatTime(time.Now().UTC()),
		participantID,
	)
	if err != nil {
		return 0, fmt.Errorf("end open sessions: %w", err)
	}
	return res.RowsAffected()
}

// ListSessions returns sessions for the participant ordered newest first.
func (s *Store) ListSessions(ctx context.Context, participantID string, limit int) ([]*Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE participant_id = ? ORDER BY started_at DESC`
	args := []any{participantID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

// SessionsByIDs fetches the sessions matching the given identifiers.
func (s *Store) SessionsByIDs(ctx context.Context, ids []string) ([]*Session, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id IN (`+makePlaceholders(len(ids))+`)`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("sessions by ids: %w", err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

func scanSession(scanner interface{ Scan(dest ...any) error }) (*Session, error) {
	var (
		id          string
		participant string
		startedRaw  string
		endedRaw    sql.NullString
		deviceInfo  sql.NullString
		eventCount  int64
	)
	if err := scanner.Scan(&id, &participant, &startedRaw, &endedRaw, &deviceInfo, &eventCount); err != nil {
		return nil, err
	}

	session := &Session{
		ID:             id,
		ParticipantID:  participant,
		DeviceInfoJSON: deviceInfo.String,
		EventCount:     eventCount,
	}
	if started, err := parseTimeString(startedRaw); err == nil {
		session.StartedAt = started
	}
	if endedRaw.Valid {
		if ended, err := parseTimeString(endedRaw.String); err == nil {
			session.EndedAt = &ended
		}
	}
	return session, nil
}
