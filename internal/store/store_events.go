package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const eventColumns = "id, session_id, participant_id, event_type, platform, url, occurred_at, payload_json, synced, created_at"

// InsertEvent persists an event and bumps the owning session's event
// counter in a single transaction. The session must exist; validation
// happens before persistence so no event is partially written.
func (s *Store) InsertEvent(ctx context.Context, event *Event) error {
	if event == nil {
		return errors.New("event is nil")
	}
	if event.ID == "" {
		return errors.New("event id required")
	}
	if event.SessionID == "" {
		return errors.New("event session id required")
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin event tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO events (id, session_id, participant_id, event_type, platform, url, occurred_at, payload_json, synced, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID,
		event.SessionID,
		event.ParticipantID,
		string(event.Type),
		string(event.Platform),
		nullableString(event.URL),
		formatTime(event.OccurredAt),
		nullableString(event.PayloadJSON),
		boolToInt(event.Synced),
		formatTime(event.CreatedAt),
	); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}

	if _, err := tx.ExecContext(
		ctx,
		`UPDATE sessions SET event_count = event_count + 1 WHERE id = ?`,
		event.SessionID,
	); err != nil {
		return fmt.Errorf("increment session event count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit event: %w", err)
	}
	return nil
}

// GetEvent fetches an event by identifier.
func (s *Store) GetEvent(ctx context.Context, id string) (*Event, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id)
	event, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	return event, nil
}

// UnsyncedEvents returns up to limit events not yet acknowledged by the
// remote store, oldest first.
func (s *Store) UnsyncedEvents(ctx context.Context, limit int) ([]*Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+eventColumns+` FROM events WHERE synced = 0 ORDER BY created_at LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query unsynced events: %w", err)
	}
	defer rows.Close()
	return collectEvents(rows)
}

// ListEvents returns recent events for the participant, newest first,
// optionally restricted to unsynced rows.
func (s *Store) ListEvents(ctx context.Context, participantID string, unsyncedOnly bool, limit int) ([]*Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE participant_id = ?`
	if unsyncedOnly {
		query += ` AND synced = 0`
	}
	query += ` ORDER BY created_at DESC`
	args := []any{participantID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()
	return collectEvents(rows)
}

// MarkEventsSynced flips the synced flag for acknowledged event ids.
func (s *Store) MarkEventsSynced(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE events SET synced = 1 WHERE id IN (`+makePlaceholders(len(ids))+`)`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("mark events synced: %w", err)
	}
	return nil
}

func collectEvents(rows *sql.Rows) ([]*Event, error) {
	var events []*Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

func scanEvent(scanner interface{ Scan(dest ...any) error }) (*Event, error) {
	var (
		id          string
		sessionID   string
		participant string
		eventType   string
		platform    string
		url         sql.NullString
		occurredRaw string
		payload     sql.NullString
		synced      int64
		createdRaw  string
	)
	if err := scanner.Scan(&id, &sessionID, &participant, &eventType, &platform, &url, &occurredRaw, &payload, &synced, &createdRaw); err != nil {
		return nil, err
	}

	event := &Event{
		ID:            id,
		SessionID:     sessionID,
		ParticipantID: participant,
		Type:          EventType(eventType),
		Platform:      Platform(platform),
		URL:           url.String,
		PayloadJSON:   payload.String,
		Synced:        synced != 0,
	}
	if occurred, err := parseTimeString(occurredRaw); err == nil {
		event.OccurredAt = occurred
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		event.CreatedAt = created
	}
	return event, nil
}
