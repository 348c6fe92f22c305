package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const alertColumns = "id, participant_id, triggered_at, page_target, handled, responses_json, sms_sid, sms_status, sms_error, handled_at, synced"

// InsertAlert persists a new safety alert row.
func (s *Store) InsertAlert(ctx context.Context, alert *SafetyAlert) error {
	if alert == nil {
		return errors.New("alert is nil")
	}
	if alert.ID == "" {
		return errors.New("alert id required")
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO safety_alerts (id, participant_id, triggered_at, page_target, handled, responses_json, sms_sid, sms_status, sms_error, handled_at, synced)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		alert.ID,
		alert.ParticipantID,
		formatTime(alert.TriggeredAt),
		alert.PageTarget,
		boolToInt(alert.Handled),
		nullableString(alert.ResponsesJSON),
		nullableString(alert.SMSSID),
		nullableString(alert.SMSStatus),
		nullableString(alert.SMSError),
		nullableTime(alert.HandledAt),
		boolToInt(alert.Synced),
	)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

// GetAlert fetches an alert by identifier.
func (s *Store) GetAlert(ctx context.Context, id string) (*SafetyAlert, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+alertColumns+` FROM safety_alerts WHERE id = ?`, id)
	alert, err := scanAlert(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get alert: %w", err)
	}
	return alert, nil
}

// UpdateAlertDelivery records the outcome of a paging attempt. The handled
// flag is set only on confirmed delivery; failures record the error while
// the alert stays visible to downstream monitoring.
func (s *Store) UpdateAlertDelivery(ctx context.Context, alert *SafetyAlert) error {
	if alert == nil {
		return errors.New("alert is nil")
	}
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE safety_alerts
         SET handled = ?, sms_sid = ?, sms_status = ?, sms_error = ?, handled_at = ?, synced = 0
         WHERE id = ?`,
		boolToInt(alert.Handled),
		nullableString(alert.SMSSID),
		nullableString(alert.SMSStatus),
		nullableString(alert.SMSError),
		nullableTime(alert.HandledAt),
		alert.ID,
	)
	if err != nil {
		return fmt.Errorf("update alert delivery: %w", err)
	}
	return nil
}

// UnhandledAlerts returns alerts whose delivery has not been confirmed,
// oldest first.
func (s *Store) UnhandledAlerts(ctx context.Context) ([]*SafetyAlert, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+alertColumns+` FROM safety_alerts WHERE handled = 0 ORDER BY triggered_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("query unhandled alerts: %w", err)
	}
	defer rows.Close()
	return collectAlerts(rows)
}

// ListAlerts returns alerts for the participant, newest first.
func (s *Store) ListAlerts(ctx context.Context, participantID string, limit int) ([]*SafetyAlert, error) {
	query := `SELECT ` + alertColumns + ` FROM safety_alerts WHERE participant_id = ? ORDER BY triggered_at DESC`
	args := []any{participantID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()
	return collectAlerts(rows)
}

// UnsyncedAlerts returns alerts pending upload, oldest first.
func (s *Store) UnsyncedAlerts(ctx context.Context, limit int) ([]*SafetyAlert, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+alertColumns+` FROM safety_alerts WHERE synced = 0 ORDER BY triggered_at LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query unsynced alerts: %w", err)
	}
	defer rows.Close()
	return collectAlerts(rows)
}

// MarkAlertsSynced flips the synced flag for acknowledged alert ids.
func (s *Store) MarkAlertsSynced(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE safety_alerts SET synced = 1 WHERE id IN (`+makePlaceholders(len(ids))+`)`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("mark alerts synced: %w", err)
	}
	return nil
}

func collectAlerts(rows *sql.Rows) ([]*SafetyAlert, error) {
	var alerts []*SafetyAlert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, alert)
	}
	return alerts, rows.Err()
}

func scanAlert(scanner interface{ Scan(dest ...any) error }) (*SafetyAlert, error) {
	var (
		alert        SafetyAlert
		triggeredRaw string
		handled      int64
		responses    sql.NullString
		smsSID       sql.NullString
		smsStatus    sql.NullString
		smsError     sql.NullString
		handledRaw   sql.NullString
		synced       int64
	)
	if err := scanner.Scan(&alert.ID, &alert.ParticipantID, &triggeredRaw, &alert.PageTarget, &handled, &responses, &smsSID, &smsStatus, &smsError, &handledRaw, &synced); err != nil {
		return nil, err
	}
	alert.Handled = handled != 0
	alert.ResponsesJSON = responses.String
	alert.SMSSID = smsSID.String
	alert.SMSStatus = smsStatus.String
	alert.SMSError = smsError.String
	alert.Synced = synced != 0
	if triggered, err := parseTimeString(triggeredRaw); err == nil {
		alert.TriggeredAt = triggered
	}
	if handledRaw.Valid {
		if handledAt, err := parseTimeString(handledRaw.String); err == nil {
			alert.HandledAt = &handledAt
		}
	}
	return &alert, nil
}
