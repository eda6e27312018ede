// Package config provides configuration loading for batchkit.
//
// Processing knobs (batch sizes, retry counts, heartbeat and session
// timeouts, subscriber limits) live in Config with the usual
// ApplyDefaults/Validate convention. Load resolves a config.yml and .env
// file, binds environment variables through viper, and unmarshals into the
// target struct.
package config
