package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir    string `toml:"data_dir"`
	LogDir     string `toml:"log_dir"`
	CaptureDir string `toml:"capture_dir"`
}

// Study identifies the enrolled participant and device.
type Study struct {
	ParticipantID string `toml:"participant_id" env:"SOCIALSCOPE_PARTICIPANT_ID"`
	DeviceLabel   string `toml:"device_label"`
}

// Capture contains the screenshot/markup capture cadence and change-detection
// tuning knobs.
type Capture struct {
	IntervalSeconds   int    `toml:"interval_seconds"`
	JPEGQuality       int    `toml:"jpeg_quality"`
	SampleStride      int    `toml:"sample_stride"`
	MismatchThreshold int    `toml:"mismatch_threshold"`
	MinFreeMiB        int    `toml:"min_free_mib"`
	OCREnabled        bool   `toml:"ocr_enabled"`
	OCRCommand        string `toml:"ocr_command"`
}

// Sync contains remote store connection and upload scheduling settings.
type Sync struct {
	RemoteURL         string `toml:"remote_url" env:"SOCIALSCOPE_REMOTE_URL"`
	APIToken          string `toml:"api_token" env:"SOCIALSCOPE_REMOTE_TOKEN"`
	IntervalSeconds   int    `toml:"interval_seconds"`
	ErrorRetrySeconds int    `toml:"error_retry_seconds"`
	BatchSize         int    `toml:"batch_size"`
	RequestTimeout    int    `toml:"request_timeout"`
}

// Safety contains the safety-alert notification gateway settings.
type Safety struct {
	GatewayURL     string `toml:"gateway_url" env:"SOCIALSCOPE_SMS_GATEWAY_URL"`
	GatewayToken   string `toml:"gateway_token" env:"SOCIALSCOPE_SMS_GATEWAY_TOKEN"`
	PageTarget     string `toml:"page_target" env:"SOCIALSCOPE_PAGE_TARGET"`
	RequestTimeout int    `toml:"request_timeout"`
	Resweep        bool   `toml:"resweep"`
}

// API contains the local event-bridge server settings.
type API struct {
	Bind  string `toml:"bind"`
	Token string `toml:"token" env:"SOCIALSCOPE_API_TOKEN"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for the capture agent.
//
// Configuration sections by subsystem:
//   - Paths: data, log, and capture artifact directories
//   - Study: participant identity and device label
//   - Capture: cadence and change-detection thresholds
//   - Sync: remote store endpoint and upload scheduling
//   - Safety: alert paging gateway
//   - API: local event bridge bind address and token
//   - Logging: log format and level
type Config struct {
	Paths   Paths   `toml:"paths"`
	Study   Study   `toml:"study"`
	Capture Capture `toml:"capture"`
	Sync    Sync    `toml:"sync"`
	Safety  Safety  `toml:"safety"`
	API     API     `toml:"api"`
	Logging Logging `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/socialscope/config.toml")
}

// Load locates, parses, and validates a configuration file. Environment
// variables override file values for deployment-sensitive fields. The
// returned config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, "", false, fmt.Errorf("apply env overrides: %w", err)
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	return defaultPath, false, nil
}

// WriteSample writes the embedded sample configuration to path, refusing to
// overwrite an existing file.
func WriteSample(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(expanded); err == nil {
		return fmt.Errorf("config file already exists at %s", expanded)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(expanded, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// EnsureDirectories creates the directories the agent writes into.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir, c.Paths.CaptureDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the location of the local durable store.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "socialscope.db")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}
