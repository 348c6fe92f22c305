package agent

import (
	"context"
	"time"
)

// Status is the diagnostic snapshot served by the API bridge and the
// status CLI command.
type Status struct {
	ParticipantID   string     `json:"participantId"`
	Running         bool       `json:"running"`
	StartedAt       *time.Time `json:"startedAt,omitempty"`
	CurrentSession  string     `json:"currentSession,omitempty"`
	Sessions        int        `json:"sessions"`
	OpenSessions    int        `json:"openSessions"`
	Events          int        `json:"events"`
	UnsyncedEvents  int        `json:"unsyncedEvents"`
	Screenshots     int        `json:"screenshots"`
	MarkupCaptures  int        `json:"markupCaptures"`
	StatusLogs      int        `json:"statusLogs"`
	SafetyAlerts    int        `json:"safetyAlerts"`
	UnhandledAlerts int        `json:"unhandledAlerts"`
	DroppedPayloads uint64     `json:"droppedPayloads"`
	SkippedTicks    uint64     `json:"skippedTicks"`
	LastSyncAt      *time.Time `json:"lastSyncAt,omitempty"`
	LastSyncError   string     `json:"lastSyncError,omitempty"`
	SyncConfigured  bool       `json:"syncConfigured"`
}

// Status assembles the current agent snapshot.
func (a *Agent) Status(ctx context.Context) (Status, error) {
	stats, err := a.store.Stats(ctx)
	if err != nil {
		return Status{}, err
	}

	a.stateMu.Lock()
	running := a.running
	startedAt := a.startedAt
	a.stateMu.Unlock()

	status := Status{
		ParticipantID:   a.cfg.Study.ParticipantID,
		Running:         running,
		CurrentSession:  a.sessions.Current(),
		Sessions:        stats.Sessions,
		OpenSessions:    stats.OpenSessions,
		Events:          stats.Events,
		UnsyncedEvents:  stats.UnsyncedEvents,
		Screenshots:     stats.Screenshots,
		MarkupCaptures:  stats.MarkupCaptures,
		StatusLogs:      stats.StatusLogs,
		SafetyAlerts:    stats.SafetyAlerts,
		UnhandledAlerts: stats.UnhandledAlerts,
		DroppedPayloads: a.ingestor.Dropped(),
		SkippedTicks:    a.scheduler.SkippedTicks(),
		SyncConfigured:  a.syncer != nil,
	}
	if !startedAt.IsZero() {
		status.StartedAt = &startedAt
	}
	if a.syncer != nil {
		last := a.syncer.LastResult()
		if !last.CompletedAt.IsZero() {
			completed := last.CompletedAt
			status.LastSyncAt = &completed
		}
		if last.Err != nil {
			status.LastSyncError = last.Err.Error()
		}
	}
	return status, nil
}
