package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// EmbeddingBatchCeiling is the provider-imposed maximum number of texts per
// bulk embedding call. Requested batch sizes above this are clamped, never
// rejected.
const EmbeddingBatchCeiling = 2048

// Config contains the processing knobs for batchkit.
type Config struct {
	// EmailBatchSize is the default chunk size for lightweight item batches.
	EmailBatchSize int `yaml:"email_batch_size" mapstructure:"email_batch_size" validate:"gte=1"`
	// EmbeddingBatchSize is the chunk size for bulk vector calls,
	// capped at EmbeddingBatchCeiling.
	EmbeddingBatchSize int `yaml:"embedding_batch_size" mapstructure:"embedding_batch_size" validate:"gte=1"`
	// MaxRetries is the bulk-call retry count before degrading to
	// per-item calls.
	MaxRetries int `yaml:"max_retries" mapstructure:"max_retries" validate:"gte=1"`
	// MaxConcurrency caps the number of chunks processed simultaneously.
	MaxConcurrency int `yaml:"max_concurrency" mapstructure:"max_concurrency" validate:"gte=1"`
	// HeartbeatInterval is the idle interval between heartbeat events.
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval" mapstructure:"heartbeat_interval" validate:"gt=0"`
	// SessionTimeout is the inactivity window after which a session's
	// stream and tracker are reclaimed.
	SessionTimeout time.Duration `yaml:"session_timeout" mapstructure:"session_timeout" validate:"gt=0"`
	// MaxSubscribers limits concurrently registered subscribers per stream.
	MaxSubscribers int `yaml:"max_subscribers" mapstructure:"max_subscribers" validate:"gte=1"`
}

// Default returns a Config populated with default values.
func Default() Config {
	var c Config
	c.ApplyDefaults()
	return c
}

// ApplyDefaults applies default values to unset fields.
func (c *Config) ApplyDefaults() {
	if c.EmailBatchSize == 0 {
		c.EmailBatchSize = 10
	}
	if c.EmbeddingBatchSize == 0 {
		c.EmbeddingBatchSize = EmbeddingBatchCeiling
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.MaxConcurrency == 0 {
		c.MaxConcurrency = 4
	}
	if c.HeartbeatInterval == 0 {
		c.HeartbeatInterval = 30 * time.Second
	}
	if c.SessionTimeout == 0 {
		c.SessionTimeout = time.Hour
	}
	if c.MaxSubscribers == 0 {
		c.MaxSubscribers = 10
	}
	if c.EmbeddingBatchSize > EmbeddingBatchCeiling {
		c.EmbeddingBatchSize = EmbeddingBatchCeiling
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate validates the configuration using struct tags.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			e := verrs[0]
			return fmt.Errorf("config: field %s failed %q validation", e.Field(), e.Tag())
		}
		return fmt.Errorf("config: %w", err)
	}
	if c.EmbeddingBatchSize > EmbeddingBatchCeiling {
		return fmt.Errorf("config: embedding_batch_size must not exceed %d", EmbeddingBatchCeiling)
	}
	return nil
}
