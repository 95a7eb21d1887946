package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the gateway. Values are loaded from
// YAML and can be overridden by environment variables.
type Config struct {
	Controller ControllerConfig `yaml:"controller"`
	Storage    StorageConfig    `yaml:"storage"`
	Poll       PollConfig       `yaml:"poll"`
	Discovery  DiscoveryConfig  `yaml:"discovery"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ControllerConfig identifies the controller to bridge to.
type ControllerConfig struct {
	// IPAddress is the controller's address on the local network. Required
	// unless discovery is enabled.
	IPAddress string `yaml:"ip_address"`

	// SystemPassword is the controller's system password, needed only while
	// pairing. It is never persisted by the gateway.
	SystemPassword string `yaml:"system_password"`

	// ID is the controller identifier (derived from its MAC address). When
	// empty it is read from the controller's public information endpoint.
	ID string `yaml:"id"`
}

// StorageConfig locates the gateway's persistent state.
type StorageConfig struct {
	// DataDir is the directory holding credentials and pinned certificates.
	DataDir string `yaml:"data_dir"`
}

// PollConfig tunes the long-poll loop.
type PollConfig struct {
	// TimeoutSeconds is the server-side long-poll hold time.
	TimeoutSeconds int `yaml:"timeout_seconds"`

	// RetryDelaySeconds is the fixed delay before retrying after a
	// transport failure.
	RetryDelaySeconds int `yaml:"retry_delay_seconds"`

	// ResubscribeDelaySeconds is the fixed delay before retrying a failed
	// re-subscription after the controller invalidated the subscription.
	ResubscribeDelaySeconds int `yaml:"resubscribe_delay_seconds"`
}

// DiscoveryConfig tunes mDNS controller discovery.
type DiscoveryConfig struct {
	Enabled        bool `yaml:"enabled"`
	TimeoutSeconds int  `yaml:"timeout_seconds"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	// Level is the console log level: debug, info, warn or error.
	Level string `yaml:"level"`

	// CaptureFile is an optional path for the binary event capture log.
	// Empty disables capture.
	CaptureFile string `yaml:"capture_file"`
}

// Load reads configuration from a YAML file and applies environment
// variable overrides. Order: defaults, file values, environment. The
// result is validated before it is returned.
//
// Environment variables follow the pattern SHC_SECTION_KEY, for example
// SHC_CONTROLLER_IP_ADDRESS or SHC_STORAGE_DATA_DIR.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// FromEnv returns the defaults with environment variable overrides
// applied, for running without a config file. The caller validates after
// layering its own overrides on top.
func FromEnv() *Config {
	cfg := Default()
	applyEnvOverrides(cfg)
	return cfg
}

// Default returns a Config with the gateway's defaults.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			DataDir: "./data",
		},
		Poll: PollConfig{
			TimeoutSeconds:          20,
			RetryDelaySeconds:       5,
			ResubscribeDelaySeconds: 10,
		},
		Discovery: DiscoveryConfig{
			Enabled:        true,
			TimeoutSeconds: 10,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// applyEnvOverrides applies environment variable overrides.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SHC_CONTROLLER_IP_ADDRESS"); v != "" {
		cfg.Controller.IPAddress = v
	}
	if v := os.Getenv("SHC_CONTROLLER_SYSTEM_PASSWORD"); v != "" {
		cfg.Controller.SystemPassword = v
	}
	if v := os.Getenv("SHC_CONTROLLER_ID"); v != "" {
		cfg.Controller.ID = v
	}
	if v := os.Getenv("SHC_STORAGE_DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("SHC_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SHC_LOGGING_CAPTURE_FILE"); v != "" {
		cfg.Logging.CaptureFile = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Controller.IPAddress == "" && !c.Discovery.Enabled {
		errs = append(errs, "controller.ip_address is required when discovery is disabled")
	}
	if c.Storage.DataDir == "" {
		errs = append(errs, "storage.data_dir is required")
	}
	if c.Poll.TimeoutSeconds < 1 {
		errs = append(errs, "poll.timeout_seconds must be at least 1")
	}
	if c.Poll.RetryDelaySeconds < 1 {
		errs = append(errs, "poll.retry_delay_seconds must be at least 1")
	}
	if c.Poll.ResubscribeDelaySeconds < 1 {
		errs = append(errs, "poll.resubscribe_delay_seconds must be at least 1")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, "logging.level must be one of debug, info, warn, error")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// PollTimeout returns the long-poll hold time as a Duration.
func (c *Config) PollTimeout() time.Duration {
	return time.Duration(c.Poll.TimeoutSeconds) * time.Second
}

// RetryDelay returns the transport retry delay as a Duration.
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.Poll.RetryDelaySeconds) * time.Second
}

// ResubscribeDelay returns the re-subscription retry delay as a Duration.
func (c *Config) ResubscribeDelay() time.Duration {
	return time.Duration(c.Poll.ResubscribeDelaySeconds) * time.Second
}

// DiscoveryTimeout returns the mDNS browse timeout as a Duration.
func (c *Config) DiscoveryTimeout() time.Duration {
	return time.Duration(c.Discovery.TimeoutSeconds) * time.Second
}
