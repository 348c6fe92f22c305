package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"socialscope/internal/store"
)

const userAgent = "SocialScope-Agent/0.1.0"

// Uploader is the remote-store surface the sync engine depends on. Every
// operation is an idempotent upsert keyed by record id: re-sending an
// already-uploaded id is a harmless overwrite, never a duplicate.
type Uploader interface {
	UpsertSession(ctx context.Context, session *store.Session) error
	UpsertEvent(ctx context.Context, event *store.Event) error
	UpsertStatusLog(ctx context.Context, participantID string, log *store.MarkupStatusLog) error
	UpsertAlert(ctx context.Context, alert *store.SafetyAlert) error
	UploadBlob(ctx context.Context, blobPath string, contentType string, body io.Reader) error
	Ping(ctx context.Context) error
}

// Client talks to the remote study store over an already-authenticated
// channel. Documents live in per-participant collections addressable by
// id; artifacts go to a blob side channel with deterministic paths.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

var _ Uploader = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// New creates a remote store client.
func New(baseURL, token string, timeout time.Duration, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("remote base url required")
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	client := &Client{
		baseURL:    baseURL,
		token:      strings.TrimSpace(token),
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// UpsertSession writes a session document.
func (c *Client) UpsertSession(ctx context.Context, session *store.Session) error {
	if session == nil {
		return errors.New("session is nil")
	}
	path := fmt.Sprintf("/participants/%s/sessions/%s", url.PathEscape(session.ParticipantID), url.PathEscape(session.ID))
	return c.putJSON(ctx, path, sessionDoc(session))
}

// UpsertEvent writes an event document.
func (c *Client) UpsertEvent(ctx context.Context, event *store.Event) error {
	if event == nil {
		return errors.New("event is nil")
	}
	path := fmt.Sprintf("/participants/%s/events/%s", url.PathEscape(event.ParticipantID), url.PathEscape(event.ID))
	return c.putJSON(ctx, path, eventDoc(event))
}

// UpsertStatusLog writes a markup poll audit document.
func (c *Client) UpsertStatusLog(ctx context.Context, participantID string, log *store.MarkupStatusLog) error {
	if log == nil {
		return errors.New("status log is nil")
	}
	path := fmt.Sprintf("/participants/%s/markup_status_logs/%s", url.PathEscape(participantID), url.PathEscape(log.ID))
	return c.putJSON(ctx, path, statusLogDoc(log))
}

// UpsertAlert writes a safety alert document.
func (c *Client) UpsertAlert(ctx context.Context, alert *store.SafetyAlert) error {
	if alert == nil {
		return errors.New("alert is nil")
	}
	path := fmt.Sprintf("/participants/%s/safety_alerts/%s", url.PathEscape(alert.ParticipantID), url.PathEscape(alert.ID))
	return c.putJSON(ctx, path, alertDoc(alert))
}

// UploadBlob streams an artifact to the blob side channel. Re-uploading
// an already-present blob overwrites it in place.
func (c *Client) UploadBlob(ctx context.Context, blobPath string, contentType string, body io.Reader) error {
	blobPath = strings.TrimLeft(blobPath, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+"/blobs/"+blobPath, body)
	if err != nil {
		return fmt.Errorf("build blob request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return c.send(req)
}

// Ping verifies remote reachability.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return fmt.Errorf("build ping request: %w", err)
	}
	return c.send(req)
}

func (c *Client) putJSON(ctx context.Context, path string, doc any) error {
	encoded, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("build upsert request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.send(req)
}

func (c *Client) send(req *http.Request) error {
	req.Header.Set("User-Agent", userAgent)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("remote request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("remote returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
