package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"socialscope/internal/store"
)

// HandshakeType is the reserved inbound type signalling that the page
// observer initialized. It is recognized and dropped without persistence.
const HandshakeType = "observer_ready"

// Payload is the inbound envelope posted by instrumented web content.
type Payload struct {
	Type      string          `json:"type"`
	Platform  string          `json:"platform"`
	URL       string          `json:"url,omitempty"`
	Timestamp int64           `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// PageViewData is the typed body for page_view events.
type PageViewData struct {
	Title    string `json:"title,omitempty"`
	Referrer string `json:"referrer,omitempty"`
}

// ScrollData is the typed body for scroll events.
type ScrollData struct {
	Depth    float64 `json:"depth"`
	MaxDepth float64 `json:"maxDepth,omitempty"`
}

// ContentExposureData is the typed body for content_exposure events.
type ContentExposureData struct {
	ContentID string  `json:"contentId,omitempty"`
	Author    string  `json:"author,omitempty"`
	Subreddit string  `json:"subreddit,omitempty"`
	Text      string  `json:"text,omitempty"`
	DwellMS   float64 `json:"dwellMs,omitempty"`
}

// InteractionData is the typed body for interaction events.
type InteractionData struct {
	Action string `json:"action,omitempty"`
	Target string `json:"target,omitempty"`
}

// Body is the tagged variant of an event payload body. Exactly one typed
// field is set for recognized event types; Opaque preserves the raw
// structure for everything else so schema drift from the instrumented
// page is tolerated rather than rejected.
type Body struct {
	PageView        *PageViewData
	Scroll          *ScrollData
	ContentExposure *ContentExposureData
	Interaction     *InteractionData
	Opaque          json.RawMessage
}

var errMissingType = errors.New("payload missing type")

// Decode parses an inbound payload envelope. It validates at the boundary:
// a missing type or unparsable envelope is an error, while an unknown body
// shape degrades to the opaque variant.
func Decode(raw []byte) (*Payload, *Body, error) {
	var payload Payload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, nil, fmt.Errorf("parse payload: %w", err)
	}
	payload.Type = strings.TrimSpace(payload.Type)
	if payload.Type == "" {
		return nil, nil, errMissingType
	}

	body := &Body{}
	if len(payload.Data) > 0 {
		switch store.ParseEventType(payload.Type) {
		case store.EventPageView:
			var data PageViewData
			if json.Unmarshal(payload.Data, &data) == nil {
				body.PageView = &data
			}
		case store.EventScroll:
			var data ScrollData
			if json.Unmarshal(payload.Data, &data) == nil {
				body.Scroll = &data
			}
		case store.EventContentExposure:
			var data ContentExposureData
			if json.Unmarshal(payload.Data, &data) == nil {
				body.ContentExposure = &data
			}
		case store.EventInteraction:
			var data InteractionData
			if json.Unmarshal(payload.Data, &data) == nil {
				body.Interaction = &data
			}
		}
		// The raw structure is kept as the fallback for unrecognized shapes.
		body.Opaque = payload.Data
	}

	return &payload, body, nil
}

// PayloadJSON returns the body as it is persisted: the normalized typed
// variant when the data matched its schema, the raw opaque structure
// otherwise. Normalizing strips unknown keys so downstream consumers see a
// stable shape per event type.
func (b *Body) PayloadJSON() string {
	if b == nil {
		return ""
	}
	var typed any
	switch {
	case b.PageView != nil:
		typed = b.PageView
	case b.Scroll != nil:
		typed = b.Scroll
	case b.ContentExposure != nil:
		typed = b.ContentExposure
	case b.Interaction != nil:
		typed = b.Interaction
	default:
		return string(b.Opaque)
	}
	encoded, err := json.Marshal(typed)
	if err != nil {
		return string(b.Opaque)
	}
	return string(encoded)
}

// OccurredAt normalizes the source-clock timestamp to UTC, falling back to
// the local receive time when the page sent none.
func (p *Payload) OccurredAt(now time.Time) time.Time {
	if p.Timestamp <= 0 {
		return now.UTC()
	}
	return time.UnixMilli(p.Timestamp).UTC()
}
