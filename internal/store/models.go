package store

import (
	"strings"
	"time"
)

// EventType classifies an ingested or captured event.
type EventType string

const (
	EventPageView        EventType = "page_view"
	EventScroll          EventType = "scroll"
	EventContentExposure EventType = "content_exposure"
	EventInteraction     EventType = "interaction"
	EventScreenshot      EventType = "screenshot"
	EventOther           EventType = "other"
)

var eventTypes = map[EventType]struct{}{
	EventPageView:        {},
	EventScroll:          {},
	EventContentExposure: {},
	EventInteraction:     {},
	EventScreenshot:      {},
	EventOther:           {},
}

// ParseEventType maps an inbound type string onto the enumerated set,
// folding unknown values into EventOther.
func ParseEventType(value string) EventType {
	et := EventType(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := eventTypes[et]; ok {
		return et
	}
	return EventOther
}

// Platform identifies the social platform an event originated from.
type Platform string

const (
	PlatformReddit  Platform = "reddit"
	PlatformTwitter Platform = "twitter"
	PlatformOther   Platform = "other"
	PlatformUnknown Platform = "unknown"
)

// ParsePlatform maps an inbound platform string onto the enumerated set.
func ParsePlatform(value string) Platform {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "reddit":
		return PlatformReddit
	case "twitter", "x":
		return PlatformTwitter
	case "":
		return PlatformUnknown
	default:
		return PlatformOther
	}
}

// Session is one bounded period of instrumented browsing for a participant.
// At most one session per participant is open (EndedAt == nil) at a time.
type Session struct {
	ID             string
	ParticipantID  string
	StartedAt      time.Time
	EndedAt        *time.Time
	DeviceInfoJSON string
	EventCount     int64
}

// Open reports whether the session has not been ended.
func (s *Session) Open() bool {
	return s != nil && s.EndedAt == nil
}

// Event is a single captured behavior record. Rows are immutable after
// insert except for the synced flag, and are removed only by Wipe.
type Event struct {
	ID            string
	SessionID     string
	ParticipantID string
	Type          EventType
	Platform      Platform
	URL           string
	OccurredAt    time.Time
	PayloadJSON   string
	Synced        bool
	CreatedAt     time.Time
}

// ScreenshotCapture records a stored compressed frame, one-to-one with a
// screenshot Event.
type ScreenshotCapture struct {
	EventID         string
	FilePath        string
	RawBytes        int64
	CompressedBytes int64
	CapturedAt      time.Time
}

// MarkupCapture records a stored full-page markup artifact. Created only
// when the change detector reports a new content hash.
type MarkupCapture struct {
	ID          string
	EventID     string
	ContentHash string
	FilePath    string
	CharCount   int64
	URL         string
	Platform    Platform
	CapturedAt  time.Time
}

/// MarkupStatusLog is the per-tick audit record of markup polling: one row
// per check, whether or not the markup changed. When unchanged,
// HTMLCaptureID points at the capture that is still current.
type MarkupStatusLog struct {
	ID            string
	EventID       string
	HTMLChanged   bool
	HTMLCaptureID string
	HTMLHash      string
	CapturedAt    time.Time
	Synced        bool
}

// SafetyAlert is a crisis-flagged survey submission. Delivery metadata is
// written by the fast path once paging completes or fails; rows are never
// deleted.
type SafetyAlert struct {
	ID            string
	ParticipantID string
	TriggeredAt   time.Time
	PageTarget    string
	Handled       bool
	ResponsesJSON string
	SMSSID        string
	SMSStatus     string
	SMSError      string
	HandledAt     *time.Time
	Synced        bool
}

// Stats aggregates row counts for diagnostic output.
type Stats struct {
	Sessions        int
	OpenSessions    int
	Events          int
	UnsyncedEvents  int
	Screenshots     int
	MarkupCaptures  int
	StatusLogs      int
	SafetyAlerts    int
	UnhandledAlerts int
}

// DatabaseHealth captures diagnostic information about the store database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	TablesPresent    []string
	MissingTables    []string
	IntegrityCheck   bool
	Error            string
}
