package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// FileSystem interface for file operations (useful for testing).
type FileSystem interface {
	Exists(path string) bool
	LoadEnv(path string) error
}

// RealFileSystem implements FileSystem using actual file operations.
type RealFileSystem struct{}

func (rfs *RealFileSystem) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (rfs *RealFileSystem) LoadEnv(path string) error {
	return godotenv.Load(path)
}

// LoaderConfig holds dependencies and optional file overrides.
type LoaderConfig struct {
	FileSystem FileSystem
	ConfigFile string // Direct config file path (optional)
	EnvFile    string // Direct .env file path (optional)
}

// LoaderOption is a functional option for Load.
type LoaderOption func(*LoaderConfig)

// WithFileSystem sets a custom filesystem for the loader.
func WithFileSystem(fs FileSystem) LoaderOption {
	return func(lc *LoaderConfig) { lc.FileSystem = fs }
}

// WithConfigFile sets an explicit config file path.
func WithConfigFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.ConfigFile = path }
}

// WithEnvFile sets an explicit .env file path.
func WithEnvFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.EnvFile = path }
}

// Load loads configuration for a service into the provided cfg struct.
// It searches for config.yml and .env files in standard locations, binds
// environment variables, and unmarshals the result into cfg.
func Load(serviceName string, cfg interface{}, opts ...LoaderOption) error {
	var lc LoaderConfig
	for _, opt := range opts {
		opt(&lc)
	}
	if lc.FileSystem == nil {
		lc.FileSystem = &RealFileSystem{}
	}

	configFile := lc.ConfigFile
	if configFile == "" {
		configFile = findFile(lc.FileSystem, configSearchPaths(serviceName))
	}
	envFile := lc.EnvFile
	if envFile == "" {
		envFile = findFile(lc.FileSystem, envSearchPaths(serviceName))
	}

	v := viper.New()

	// 1. YAML config first (base configuration)
	if configFile != "" && lc.FileSystem.Exists(configFile) {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("config: reading %s: %w", configFile, err)
		}
	}

	// 2. Environment variables override file values
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindKnownKeys(v)

	// 3. .env file may introduce new variables, re-bind after loading
	if envFile != "" && lc.FileSystem.Exists(envFile) {
		if err := lc.FileSystem.LoadEnv(envFile); err == nil {
			bindKnownKeys(v)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("config: unmarshal for service %s: %w", serviceName, err)
	}
	return nil
}

// bindKnownKeys binds the processing knobs so AutomaticEnv picks them up
// even when no config file declared them.
func bindKnownKeys(v *viper.Viper) {
	for _, key := range []string{
		"email_batch_size",
		"embedding_batch_size",
		"max_retries",
		"max_concurrency",
		"heartbeat_interval",
		"session_timeout",
		"max_subscribers",
	} {
		_ = v.BindEnv(key)
	}
}

func configSearchPaths(serviceName string) []string {
	return []string{
		fmt.Sprintf("./cmd/%s/config.yml", serviceName),
		fmt.Sprintf("../cmd/%s/config.yml", serviceName),
		"./config/config.yml",
		"../config/config.yml",
		"./config.yml",
	}
}

func envSearchPaths(serviceName string) []string {
	return []string{
		fmt.Sprintf(".env.%s", serviceName),
		".env",
		fmt.Sprintf("../.env.%s", serviceName),
		"../.env",
	}
}

func findFile(fs FileSystem, paths []string) string {
	for _, path := range paths {
		if fs.Exists(path) {
			return path
		}
	}
	return ""
}
