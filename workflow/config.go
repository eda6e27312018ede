package workflow

import (
	"github.com/kbukum/batchkit/batch"
	"github.com/kbukum/batchkit/config"
	"github.com/kbukum/batchkit/embedding"
	"github.com/kbukum/batchkit/logger"
	"github.com/kbukum/batchkit/progress"
	"github.com/kbukum/batchkit/resilience"
	"github.com/kbukum/batchkit/stream"
)

// NewRegistries builds the session registries from configuration. Both
// share the same session timeout so a session's stream and tracker are
// reclaimed together.
func NewRegistries(cfg *config.Config, log *logger.Logger) (*stream.Registry, *progress.Registry) {
	streams := stream.NewRegistry(stream.RegistryOptions{
		Stream: stream.Options{
			MaxSubscribers:    cfg.MaxSubscribers,
			HeartbeatInterval: cfg.HeartbeatInterval,
			Logger:            log,
		},
		SessionTimeout: cfg.SessionTimeout,
		Logger:         log,
	})
	trackers := progress.NewRegistry(progress.RegistryOptions{
		SessionTimeout: cfg.SessionTimeout,
		Logger:         log,
	})
	return streams, trackers
}

// BatchOptions derives per-item batch options from configuration.
func BatchOptions(cfg *config.Config) batch.Options {
	return batch.Options{
		BatchSize:      cfg.EmailBatchSize,
		MaxConcurrency: cfg.MaxConcurrency,
		Retry:          resilience.RetryConfig{MaxAttempts: cfg.MaxRetries},
	}
}

// EmbeddingOptions derives bulk embedding options from configuration.
func EmbeddingOptions(cfg *config.Config) embedding.Options {
	return embedding.Options{
		BatchSize:      cfg.EmbeddingBatchSize,
		MaxConcurrency: cfg.MaxConcurrency,
		Retry:          resilience.RetryConfig{MaxAttempts: cfg.MaxRetries},
	}
}
