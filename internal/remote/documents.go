package remote

import (
	"encoding/json"
	"time"

	"socialscope/internal/store"
)

// Remote documents carry RFC 3339 timestamps and camelCase keys. The
// record id is repeated inside the document so the collection can be
// queried without parsing paths.

type sessionDocBody struct {
	ID            string          `json:"id"`
	ParticipantID string          `json:"participantId"`
	StartedAt     string          `json:"startedAt"`
	EndedAt       *string         `json:"endedAt,omitempty"`
	DeviceInfo    json.RawMessage `json:"deviceInfo,omitempty"`
	EventCount    int64           `json:"eventCount"`
	UploadedAt    string          `json:"uploadedAt"`
}

type eventDocBody struct {
	ID            string          `json:"id"`
	SessionID     string          `json:"sessionId"`
	ParticipantID string          `json:"participantId"`
	EventType     string          `json:"eventType"`
	Platform      string          `json:"platform"`
	URL           string          `json:"url,omitempty"`
	OccurredAt    string          `json:"occurredAt"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	UploadedAt    string          `json:"uploadedAt"`
}

type statusLogDocBody struct {
	ID            string `json:"id"`
	EventID       string `json:"eventId,omitempty"`
	HTMLChanged   bool   `json:"htmlChanged"`
	HTMLCaptureID string `json:"htmlCaptureId,omitempty"`
	HTMLHash      string `json:"htmlHash,omitempty"`
	CapturedAt    string `json:"capturedAt"`
	UploadedAt    string `json:"uploadedAt"`
}

type alertDocBody struct {
	ID            string          `json:"id"`
	ParticipantID string          `json:"participantId"`
	TriggeredAt   string          `json:"triggeredAt"`
	Responses     json.RawMessage `json:"responses,omitempty"`
	Handled       bool            `json:"handled"`
	HandledAt     *string         `json:"handledAt,omitempty"`
	SMSSID        string          `json:"smsSid,omitempty"`
	SMSStatus     string          `json:"smsStatus,omitempty"`
	SMSError      string          `json:"smsError,omitempty"`
	UploadedAt    string          `json:"uploadedAt"`
}

func sessionDoc(session *store.Session) sessionDocBody {
	doc := sessionDocBody{
		ID:            session.ID,
		ParticipantID: session.ParticipantID,
		StartedAt:     rfc3339(session.StartedAt),
		DeviceInfo:    rawJSON(session.DeviceInfoJSON),
		EventCount:    session.EventCount,
		UploadedAt:    rfc3339(time.Now()),
	}
	if session.EndedAt != nil {
		ended := rfc3339(*session.EndedAt)
		doc.EndedAt = &ended
	}
	return doc
}

func eventDoc(event *store.Event) eventDocBody {
	return eventDocBody{
		ID:            event.ID,
		SessionID:     event.SessionID,
		ParticipantID: event.ParticipantID,
		EventType:     string(event.Type),
		Platform:      string(event.Platform),
		URL:           event.URL,
		OccurredAt:    rfc3339(event.OccurredAt),
		Payload:       rawJSON(event.PayloadJSON),
		UploadedAt:    rfc3339(time.Now()),
	}
}

func statusLogDoc(log *store.MarkupStatusLog) statusLogDocBody {
	return statusLogDocBody{
		ID:            log.ID,
		EventID:       log.EventID,
		HTMLChanged:   log.HTMLChanged,
		HTMLCaptureID: log.HTMLCaptureID,
		HTMLHash:      log.HTMLHash,
		CapturedAt:    rfc3339(log.CapturedAt),
		UploadedAt:    rfc3339(time.Now()),
	}
}

func alertDoc(alert *store.SafetyAlert) alertDocBody {
	doc := alertDocBody{
		ID:            alert.ID,
		ParticipantID: alert.ParticipantID,
		TriggeredAt:   rfc3339(alert.TriggeredAt),
		Responses:     rawJSON(alert.ResponsesJSON),
		Handled:       alert.Handled,
		SMSSID:        alert.SMSSID,
		SMSStatus:     alert.SMSStatus,
		SMSError:      alert.SMSError,
		UploadedAt:    rfc3339(time.Now()),
	}
	if alert.HandledAt != nil {
		handled := rfc3339(*alert.HandledAt)
		doc.HandledAt = &handled
	}
	return doc
}

// rawJSON passes stored JSON through untouched; invalid or empty text is
// dropped rather than corrupting the document.
func rawJSON(text string) json.RawMessage {
	if text == "" || !json.Valid([]byte(text)) {
		return nil
	}
	return json.RawMessage(text)
}

func rfc3339(at time.Time) string {
	return at.UTC().Format(time.RFC3339Nano)
}
