// Package config loads and validates the taskmirror configuration file.
package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"taskmirror/internal/utils"

	_ "embed"
)

var configOnce sync.Once

var globalConfig *Config

var customConfigPath string // set via --config flag

//go:embed config.sample.yaml
var sampleConfig []byte

const (
	configDirName  = "taskmirror"
	configFileName = "config.yaml"
	configDirPerm  = 0755
	configFilePerm = 0644
)

// AccountConfig describes one connected remote account
type AccountConfig struct {
	OwnerID       string `yaml:"owner_id" validate:"required"`
	RemoteBaseURL string `yaml:"remote_base_url"`
	ListTitle     string `yaml:"list_title"`
	Enabled       bool   `yaml:"enabled"`
}

// SyncConfig tunes the upsert executor and checkpointing
type SyncConfig struct {
	Concurrency        int `yaml:"concurrency" validate:"min=1,max=32"`
	MaxRetries         int `yaml:"max_retries" validate:"min=1,max=10"`
	BaseBackoffMs      int `yaml:"base_backoff_ms" validate:"min=1"`
	CheckpointInterval int `yaml:"checkpoint_interval" validate:"min=1"`
	DeadlineSeconds    int `yaml:"deadline_seconds" validate:"min=1"`
}

// ScheduleConfig holds cron specs for daemon mode
type ScheduleConfig struct {
	PullCompletions string `yaml:"pull_completions"`
}

// Config is the application configuration
type Config struct {
	DatabasePath string                   `yaml:"database_path"`
	Accounts     map[string]AccountConfig `yaml:"accounts" validate:"required,min=1"`
	Sync         SyncConfig               `yaml:"sync"`
	Schedule     ScheduleConfig           `yaml:"schedule"`
}

// Validate checks the configuration for structural problems
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return err
	}
	for name, account := range c.Accounts {
		if err := validate.Struct(account); err != nil {
			return fmt.Errorf("account %q validation failed: %w", name, err)
		}
	}
	return nil
}

// GetAccount returns the configuration for the named account
func (c *Config) GetAccount(name string) (*AccountConfig, error) {
	account, exists := c.Accounts[name]
	if !exists {
		return nil, fmt.Errorf("account %q not found in config", name)
	}
	return &account, nil
}

// BaseBackoff returns the configured backoff as a duration
func (c *Config) BaseBackoff() time.Duration {
	return time.Duration(c.Sync.BaseBackoffMs) * time.Millisecond
}

// SyncDeadline returns the configured per-run deadline as a duration
func (c *Config) SyncDeadline() time.Duration {
	return time.Duration(c.Sync.DeadlineSeconds) * time.Second
}

// GetDatabasePath returns the configured database path, defaulting to the
// user config directory
func (c *Config) GetDatabasePath() (string, error) {
	if c.DatabasePath != "" {
		return utils.ExpandPath(c.DatabasePath)
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config dir: %w", err)
	}
	return filepath.Join(dir, configDirName, "tasks.db"), nil
}

// SetCustomConfigPath overrides the default config location. Must be called
// before the first GetConfig.
func SetCustomConfigPath(path string) {
	if path == "" || path == "." {
		customConfigPath = filepath.Join(".", configDirName, configFileName)
		return
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		customConfigPath = filepath.Join(path, configFileName)
		return
	}
	customConfigPath = path
}

// GetConfig returns the global configuration, loading it on first use
func GetConfig() *Config {
	configOnce.Do(func() {
		cfg, err := loadUserOrSampleConfig()
		if err != nil {
			log.Fatal(err)
		}
		globalConfig = cfg
	})
	return globalConfig
}

// GetConfigPath returns the active configuration file path
func GetConfigPath() (string, error) {
	if customConfigPath != "" {
		return customConfigPath, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config dir: %w", err)
	}
	return filepath.Join(dir, configDirName, configFileName), nil
}

func loadUserOrSampleConfig() (*Config, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	if os.IsNotExist(err) {
		// No user config: seed the default location with the sample so
		// the user has something to edit, but keep running on defaults.
		if writeErr := writeSampleConfig(configPath); writeErr == nil {
			log.Printf("No config found, sample written to %s", configPath)
		}
		data = sampleConfig
	} else if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse decodes and validates configuration bytes
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid YAML in config: %w", err)
	}
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Sync.Concurrency == 0 {
		cfg.Sync.Concurrency = 4
	}
	if cfg.Sync.MaxRetries == 0 {
		cfg.Sync.MaxRetries = 3
	}
	if cfg.Sync.BaseBackoffMs == 0 {
		cfg.Sync.BaseBackoffMs = 500
	}
	if cfg.Sync.CheckpointInterval == 0 {
		cfg.Sync.CheckpointInterval = 25
	}
	if cfg.Sync.DeadlineSeconds == 0 {
		cfg.Sync.DeadlineSeconds = 240
	}
	if cfg.Accounts == nil {
		cfg.Accounts = map[string]AccountConfig{
			"default": {OwnerID: "default", ListTitle: "Tasks", Enabled: true},
		}
	}
}

func writeSampleConfig(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), configDirPerm); err != nil {
		return err
	}
	return os.WriteFile(configPath, sampleConfig, configFilePerm)
}
