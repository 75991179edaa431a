// Package config handles loading and hot-reloading configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"satchel/internal/indexer"
	"satchel/internal/vision"
)

// Config is the full satchel configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Vision   VisionConfig   `mapstructure:"vision"`
	Indexing IndexingConfig `mapstructure:"indexing"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
}

// VisionConfig holds settings for the vision inference gateway.
type VisionConfig struct {
	BaseURL        string  `mapstructure:"base_url"`
	APIKey         string  `mapstructure:"api_key"`
	Model          string  `mapstructure:"model"`
	RateLimit      float64 `mapstructure:"rate_limit"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
}

// IndexingConfig paces the orchestrator against the vision service.
type IndexingConfig struct {
	InterCallDelayMS    int `mapstructure:"inter_call_delay_ms"`
	RateLimitCooldownMS int `mapstructure:"rate_limit_cooldown_ms"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: "8080",
		},
		Vision: VisionConfig{
			APIKey:         "${SATCHEL_VISION_API_KEY}",
			Model:          "google/gemini-2.5-flash",
			RateLimit:      1.0,
			TimeoutSeconds: 120,
		},
		Indexing: IndexingConfig{
			InterCallDelayMS:    800,
			RateLimitCooldownMS: 5000,
		},
	}
}

// Manager handles loading and hot-reloading configuration.
type Manager struct {
	mu        sync.RWMutex
	config    *Config
	callbacks []func(*Config)
}

// NewManager creates a new config manager and loads the initial config.
func NewManager(cfgFile string) (*Manager, error) {
	cm := &Manager{
		callbacks: make([]func(*Config), 0),
	}

	if err := cm.initViper(cfgFile); err != nil {
		return nil, err
	}

	cfg, err := cm.load()
	if err != nil {
		return nil, err
	}
	cm.config = cfg

	return cm, nil
}

// initViper sets up viper with defaults and config file.
func (cm *Manager) initViper(cfgFile string) error {
	defaults := DefaultConfig()
	viper.SetDefault("server", defaults.Server)
	viper.SetDefault("vision", defaults.Vision)
	viper.SetDefault("indexing", defaults.Indexing)

	// Environment variables with SATCHEL_ prefix
	viper.SetEnvPrefix("SATCHEL")
	viper.AutomaticEnv()

	// Config file
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.satchel")
	}

	// Try to read config file (not required)
	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}

// load parses the current viper state into a Config struct.
func (cm *Manager) load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Get returns the current configuration (thread-safe).
func (cm *Manager) Get() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}

// OnChange registers a callback for config changes.
func (cm *Manager) OnChange(fn func(*Config)) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.callbacks = append(cm.callbacks, fn)
}

// WatchConfig enables hot-reloading of configuration.
func (cm *Manager) WatchConfig() {
	viper.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := cm.load()
		if err != nil {
			return
		}

		cm.mu.Lock()
		cm.config = cfg
		callbacks := make([]func(*Config), len(cm.callbacks))
		copy(callbacks, cm.callbacks)
		cm.mu.Unlock()

		for _, fn := range callbacks {
			fn(cfg)
		}
	})
	viper.WatchConfig()
}

// ResolveEnvVars expands ${ENV_VAR} references in a string.
func ResolveEnvVars(value string) string {
	if value == "" {
		return value
	}
	pattern := regexp.MustCompile(`\$\{([^}]+)\}`)
	return pattern.ReplaceAllStringFunc(value, func(match string) string {
		varName := match[2 : len(match)-1]
		return os.Getenv(varName)
	})
}

// ToGatewayConfig converts the vision section to a gateway client config,
// resolving ${ENV_VAR} references in the API key.
func (c *Config) ToGatewayConfig() vision.GatewayConfig {
	return vision.GatewayConfig{
		APIKey:    ResolveEnvVars(c.Vision.APIKey),
		BaseURL:   c.Vision.BaseURL,
		Model:     c.Vision.Model,
		RateLimit: c.Vision.RateLimit,
		Timeout:   time.Duration(c.Vision.TimeoutSeconds) * time.Second,
	}
}

// ToIndexerConfig converts the indexing section to orchestrator pacing.
func (c *Config) ToIndexerConfig() indexer.Config {
	return indexer.Config{
		InterCallDelay:    time.Duration(c.Indexing.InterCallDelayMS) * time.Millisecond,
		RateLimitCooldown: time.Duration(c.Indexing.RateLimitCooldownMS) * time.Millisecond,
	}
}
