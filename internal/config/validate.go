package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateStudy(); err != nil {
		return err
	}
	if err := c.validateCapture(); err != nil {
		return err
	}
	if err := c.validateSync(); err != nil {
		return err
	}
	if err := c.validateSafety(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateStudy() error {
	if c.Study.ParticipantID == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/socialscope/config.toml"
		}
		return fmt.Errorf("study.participant_id is required. Set SOCIALSCOPE_PARTICIPANT_ID env var or edit %s (create with 'socialscope config init')", defaultPath)
	}
	return nil
}

func (c *Config) validateCapture() error {
	if c.Capture.OCREnabled && strings.TrimSpace(c.Capture.OCRCommand) == "" {
		return errors.New("capture.ocr_command must be set when capture.ocr_enabled is true")
	}
	return nil
}

func (c *Config) validateSync() error {
	if c.Sync.RemoteURL == "" {
		// Offline operation is allowed; the sync loop stays idle.
		return nil
	}
	parsed, err := url.Parse(c.Sync.RemoteURL)
	if err != nil || parsed.Host == "" {
		return fmt.Errorf("sync.remote_url is not a valid URL: %q", c.Sync.RemoteURL)
	}
	return nil
}

func (c *Config) validateSafety() error {
	if c.Safety.GatewayURL == "" {
		return nil
	}
	if c.Safety.PageTarget == "" {
		return errors.New("safety.page_target must be set when safety.gateway_url is configured")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	return nil
}
