package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeStudy()
	c.normalizeCapture()
	c.normalizeSync()
	c.normalizeSafety()
	c.normalizeAPI()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.CaptureDir) == "" {
		c.Paths.CaptureDir = filepath.Join(c.Paths.DataDir, "captures")
	} else if c.Paths.CaptureDir, err = expandPath(c.Paths.CaptureDir); err != nil {
		return fmt.Errorf("paths.capture_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeStudy() {
	c.Study.ParticipantID = strings.TrimSpace(c.Study.ParticipantID)
	c.Study.DeviceLabel = strings.TrimSpace(c.Study.DeviceLabel)
}

func (c *Config) normalizeCapture() {
	if c.Capture.IntervalSeconds <= 0 {
		c.Capture.IntervalSeconds = defaultCaptureInterval
	}
	if c.Capture.JPEGQuality <= 0 || c.Capture.JPEGQuality > 100 {
		c.Capture.JPEGQuality = defaultJPEGQuality
	}
	if c.Capture.SampleStride <= 0 {
		c.Capture.SampleStride = defaultSampleStride
	}
	if c.Capture.MismatchThreshold <= 0 {
		c.Capture.MismatchThreshold = defaultMismatchThreshold
	}
	if c.Capture.MinFreeMiB < 0 {
		c.Capture.MinFreeMiB = defaultMinFreeMiB
	}
}

func (c *Config) normalizeSync() {
	c.Sync.RemoteURL = strings.TrimRight(strings.TrimSpace(c.Sync.RemoteURL), "/")
	c.Sync.APIToken = strings.TrimSpace(c.Sync.APIToken)
	if c.Sync.IntervalSeconds <= 0 {
		c.Sync.IntervalSeconds = defaultSyncInterval
	}
	if c.Sync.ErrorRetrySeconds <= 0 {
		c.Sync.ErrorRetrySeconds = defaultSyncErrorRetry
	}
	if c.Sync.BatchSize <= 0 {
		c.Sync.BatchSize = defaultSyncBatchSize
	}
	if c.Sync.RequestTimeout <= 0 {
		c.Sync.RequestTimeout = defaultSyncTimeout
	}
}

func (c *Config) normalizeSafety() {
	c.Safety.GatewayURL = strings.TrimRight(strings.TrimSpace(c.Safety.GatewayURL), "/")
	c.Safety.GatewayToken = strings.TrimSpace(c.Safety.GatewayToken)
	c.Safety.PageTarget = strings.TrimSpace(c.Safety.PageTarget)
	if c.Safety.RequestTimeout <= 0 {
		c.Safety.RequestTimeout = defaultSafetyTimeout
	}
}

func (c *Config) normalizeAPI() {
	c.API.Bind = strings.TrimSpace(c.API.Bind)
	if c.API.Bind == "" {
		c.API.Bind = defaultAPIBind
	}
	c.API.Token = strings.TrimSpace(c.API.Token)
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
