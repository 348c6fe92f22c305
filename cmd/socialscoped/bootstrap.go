package main

import (
	"fmt"
	"log/slog"

	"socialscope/internal/config"
	"socialscope/internal/logging"
)

// bootstrap loads configuration and builds the daemon logger. The
// configPath argument is empty in production; tests point it at a
// fixture file.
func bootstrap(configPath string) (*config.Config, *slog.Logger, error) {
	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, nil, fmt.Errorf("ensure directories: %w", err)
	}

	logger, err := logging.NewFromConfig(cfg.Paths.LogDir, cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, logger, nil
}
