package config

const (
	defaultDataDir           = "~/.local/share/socialscope"
	defaultLogDir            = "~/.local/share/socialscope/logs"
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
	defaultCaptureInterval   = 1
	defaultJPEGQuality       = 85
	defaultSampleStride      = 1000
	defaultMismatchThreshold = 100
	defaultMinFreeMiB        = 512
	defaultSyncInterval      = 60
	defaultSyncErrorRetry    = 30
	defaultSyncBatchSize     = 50
	defaultSyncTimeout       = 15
	defaultSafetyTimeout     = 10
	defaultAPIBind           = "127.0.0.1:8176"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Capture: Capture{
			IntervalSeconds:   defaultCaptureInterval,
			JPEGQuality:       defaultJPEGQuality,
			SampleStride:      defaultSampleStride,
			MismatchThreshold: defaultMismatchThreshold,
			MinFreeMiB:        defaultMinFreeMiB,
		},
		Sync: Sync{
			IntervalSeconds:   defaultSyncInterval,
			ErrorRetrySeconds: defaultSyncErrorRetry,
			BatchSize:         defaultSyncBatchSize,
			RequestTimeout:    defaultSyncTimeout,
		},
		Safety: Safety{
			RequestTimeout: defaultSafetyTimeout,
			Resweep:        true,
		},
		API: API{
			Bind: defaultAPIBind,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
