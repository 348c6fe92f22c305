package testsupport

import (
	"path/filepath"
	"testing"

	"socialscope/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.CaptureDir = filepath.Join(base, "captures")
	cfgVal.Study.ParticipantID = "P-TEST"
	cfgVal.API.Bind = "127.0.0.1:0"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("create test directories: %v", err)
	}

	return builder.cfg
}

// WithParticipantID overrides the participant identifier on the test config.
func WithParticipantID(id string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Study.ParticipantID = id
	}
}

// WithRemote points the sync section at a test remote store.
func WithRemote(url, token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Sync.RemoteURL = url
		b.cfg.Sync.APIToken = token
	}
}

// WithPageTarget configures the safety paging destination.
func WithPageTarget(target string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Safety.PageTarget = target
	}
}
