package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// Stats returns aggregated row counts for diagnostic output.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	counts := []struct {
		query string
		dest  *int
	}{
		{`SELECT COUNT(1) FROM sessions`, &stats.Sessions},
		{`SELECT COUNT(1) FROM sessions WHERE ended_at IS NULL`, &stats.OpenSessions},
		{`SELECT COUNT(1) FROM events`, &stats.Events},
		{`SELECT COUNT(1) FROM events WHERE synced = 0`, &stats.UnsyncedEvents},
		{`SELECT COUNT(1) FROM screenshot_captures`, &stats.Screenshots},
		{`SELECT COUNT(1) FROM markup_captures`, &stats.MarkupCaptures},
		{`SELECT COUNT(1) FROM markup_status_logs`, &stats.StatusLogs},
		{`SELECT COUNT(1) FROM safety_alerts`, &stats.SafetyAlerts},
		{`SELECT COUNT(1) FROM safety_alerts WHERE handled = 0`, &stats.UnhandledAlerts},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return Stats{}, fmt.Errorf("store stats: %w", err)
		}
	}
	return stats, nil
}

// Wipe removes all participant data from the store. This is the only
// operation that deletes events or alerts; it exists for the explicit
// data-wipe flow at study exit.
func (s *Store) Wipe(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin wipe tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	tables := []string{
		"markup_status_logs",
		"markup_captures",
		"screenshot_captures",
		"safety_alerts",
		"events",
		"sessions",
	}
	for _, table := range tables {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return fmt.Errorf("wipe %s: %w", table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit wipe: %w", err)
	}
	return nil
}

var requiredTables = []string{
	"sessions",
	"events",
	"screenshot_captures",
	"markup_captures",
	"markup_status_logs",
	"safety_alerts",
}

// CheckHealth returns diagnostic information about the store database.
func (s *Store) CheckHealth(ctx context.Context) (DatabaseHealth, error) {
	health := DatabaseHealth{DBPath: s.path}

	if s.path == "" {
		return health, errors.New("store database path is unknown")
	}

	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			health.DatabaseExists = false
			return health, nil
		}
		return health, fmt.Errorf("stat store database: %w", err)
	}
	if info.IsDir() {
		return health, fmt.Errorf("store database path %q is a directory", s.path)
	}
	health.DatabaseExists = true

	if s.db == nil {
		return health, errors.New("store database connection unavailable")
	}

	connCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(connCtx); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("ping store database: %w", err)
	}
	health.DatabaseReadable = true

	present := make(map[string]struct{})
	rows, err := s.db.QueryContext(connCtx, "SELECT name FROM sqlite_master WHERE type = 'table'")
	if err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("query table names: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			health.Error = err.Error()
			return health, fmt.Errorf("scan table name: %w", err)
		}
		present[name] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("iterate table names: %w", err)
	}

	for _, table := range requiredTables {
		if _, ok := present[table]; ok {
			health.TablesPresent = append(health.TablesPresent, table)
		} else {
			health.MissingTables = append(health.MissingTables, table)
		}
	}

	var integrityResult string
	row := s.db.QueryRowContext(connCtx, "PRAGMA integrity_check")
	if err := row.Scan(&integrityResult); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			health.Error = err.Error()
			return health, fmt.Errorf("integrity check: %w", err)
		}
	}
	health.IntegrityCheck = strings.EqualFold(integrityResult, "ok")

	return health, nil
}
