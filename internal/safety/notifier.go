package safety

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Delivery is the gateway's receipt for an accepted page.
type Delivery struct {
	SID    string
	Status string
}

// Notifier pages the study team about a crisis-flagged submission.
type Notifier interface {
	Page(ctx context.Context, participantID string, triggeredAt time.Time, target string) (Delivery, error)
}

// GatewayNotifier delivers pages through an SMS gateway's HTTP API.
type GatewayNotifier struct {
	gatewayURL string
	token      string
	httpClient *http.Client
}

// NewGatewayNotifier creates an SMS gateway notifier.
func NewGatewayNotifier(gatewayURL, token string, timeout time.Duration) (*GatewayNotifier, error) {
	gatewayURL = strings.TrimSpace(gatewayURL)
	if gatewayURL == "" {
		return nil, errors.New("gateway url required")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &GatewayNotifier{
		gatewayURL: gatewayURL,
		token:      strings.TrimSpace(token),
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

type pageRequest struct {
	To   string `json:"to"`
	Body string `json:"body"`
}

type pageResponse struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
}

// Page sends one SMS through the gateway. The message body carries only
// the participant id and trigger time, never response content.
func (n *GatewayNotifier) Page(ctx context.Context, participantID string, triggeredAt time.Time, target string) (Delivery, error) {
	if strings.TrimSpace(target) == "" {
		return Delivery{}, errors.New("page target required")
	}

	body := fmt.Sprintf("SocialScope safety alert: participant %s at %s",
		participantID, triggeredAt.UTC().Format(time.RFC3339))
	encoded, err := json.Marshal(pageRequest{To: target, Body: body})
	if err != nil {
		return Delivery{}, fmt.Errorf("encode page request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.gatewayURL, bytes.NewReader(encoded))
	if err != nil {
		return Delivery{}, fmt.Errorf("build page request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if n.token != "" {
		req.Header.Set("Authorization", "Bearer "+n.token)
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return Delivery{}, fmt.Errorf("page gateway: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return Delivery{}, fmt.Errorf("gateway returned %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	var receipt pageResponse
	if err := json.NewDecoder(resp.Body).Decode(&receipt); err != nil {
		return Delivery{}, fmt.Errorf("decode gateway response: %w", err)
	}
	if receipt.Status == "" {
		receipt.Status = "sent"
	}
	return Delivery{SID: receipt.SID, Status: receipt.Status}, nil
}

// NoopNotifier accepts every page without delivering anything. Used when
// no gateway is configured so alert capture still works end to end.
type NoopNotifier struct{}

// Page implements Notifier.
func (NoopNotifier) Page(context.Context, string, time.Time, string) (Delivery, error) {
	return Delivery{Status: "skipped"}, nil
}
