package capture

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"socialscope/internal/store"
)

// sessionDir returns the artifact directory for a capture session,
// creating it if needed. Artifacts are keyed by participant and session
// so blob paths stay deterministic for sync.
func sessionDir(captureDir, participantID, sessionID string) (string, error) {
	dir := filepath.Join(captureDir, participantID, sessionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create capture directory: %w", err)
	}
	return dir, nil
}

func screenshotFilename(at time.Time) string {
	return fmt.Sprintf("screenshot_%d.jpg", at.UTC().UnixMilli())
}

func markupFilename(at time.Time) string {
	return fmt.Sprintf("markup_%d.html", at.UTC().UnixMilli())
}

// platformFromURL classifies the page URL onto the platform enum.
func platformFromURL(raw string) store.Platform {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return store.PlatformUnknown
	}
	host := strings.ToLower(parsed.Hostname())
	switch {
	case host == "reddit.com" || strings.HasSuffix(host, ".reddit.com"):
		return store.PlatformReddit
	case host == "twitter.com" || strings.HasSuffix(host, ".twitter.com"),
		host == "x.com" || strings.HasSuffix(host, ".x.com"):
		return store.PlatformTwitter
	default:
		return store.PlatformOther
	}
}
