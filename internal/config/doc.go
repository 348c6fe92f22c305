// Package config loads, normalizes, and validates the TOML configuration for
// the capture agent, applying environment overrides for deployment-sensitive
// values such as the participant id and remote tokens.
package config
