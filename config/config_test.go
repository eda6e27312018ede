package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfig_ApplyDefaults(t *testing.T) {
	var c Config
	c.ApplyDefaults()

	if c.EmailBatchSize != 10 {
		t.Errorf("expected email_batch_size 10, got %d", c.EmailBatchSize)
	}
	if c.EmbeddingBatchSize != 2048 {
		t.Errorf("expected embedding_batch_size 2048, got %d", c.EmbeddingBatchSize)
	}
	if c.MaxRetries != 3 {
		t.Errorf("expected max_retries 3, got %d", c.MaxRetries)
	}
	if c.HeartbeatInterval != 30*time.Second {
		t.Errorf("expected heartbeat_interval 30s, got %v", c.HeartbeatInterval)
	}
	if c.SessionTimeout != time.Hour {
		t.Errorf("expected session_timeout 1h, got %v", c.SessionTimeout)
	}
	if c.MaxSubscribers != 10 {
		t.Errorf("expected max_subscribers 10, got %d", c.MaxSubscribers)
	}
}

func TestConfig_ApplyDefaults_ClampsEmbeddingBatchSize(t *testing.T) {
	c := Config{EmbeddingBatchSize: 5000}
	c.ApplyDefaults()

	if c.EmbeddingBatchSize != EmbeddingBatchCeiling {
		t.Errorf("expected clamp to %d, got %d", EmbeddingBatchCeiling, c.EmbeddingBatchSize)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults are valid", func(c *Config) {}, false},
		{"zero batch size", func(c *Config) { c.EmailBatchSize = 0 }, true},
		{"negative retries", func(c *Config) { c.MaxRetries = -1 }, true},
		{"zero heartbeat", func(c *Config) { c.HeartbeatInterval = 0 }, true},
		{"zero subscribers", func(c *Config) { c.MaxSubscribers = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(&c)
			err := c.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_FromYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	yaml := "email_batch_size: 25\nmax_retries: 5\nheartbeat_interval: 10s\n"
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	var c Config
	if err := Load("batchkit-test", &c, WithConfigFile(path)); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	c.ApplyDefaults()

	if c.EmailBatchSize != 25 {
		t.Errorf("expected email_batch_size 25, got %d", c.EmailBatchSize)
	}
	if c.MaxRetries != 5 {
		t.Errorf("expected max_retries 5, got %d", c.MaxRetries)
	}
	if c.HeartbeatInterval != 10*time.Second {
		t.Errorf("expected heartbeat_interval 10s, got %v", c.HeartbeatInterval)
	}
	// Untouched knob falls back to its default
	if c.MaxSubscribers != 10 {
		t.Errorf("expected default max_subscribers, got %d", c.MaxSubscribers)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	if err := os.WriteFile(path, []byte("max_retries: 5\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("MAX_RETRIES", "7")

	var c Config
	if err := Load("batchkit-test", &c, WithConfigFile(path)); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if c.MaxRetries != 7 {
		t.Errorf("expected env override 7, got %d", c.MaxRetries)
	}
}

// fakeFS pretends no files exist so Load falls through to env binding only.
type fakeFS struct{}

func (fakeFS) Exists(string) bool   { return false }
func (fakeFS) LoadEnv(string) error { return nil }

func TestLoad_NoFiles(t *testing.T) {
	var c Config
	if err := Load("batchkit-test", &c, WithFileSystem(fakeFS{})); err != nil {
		t.Fatalf("Load without files should succeed, got %v", err)
	}
	c.ApplyDefaults()
	if err := c.Validate(); err != nil {
		t.Errorf("defaults should validate, got %v", err)
	}
}
