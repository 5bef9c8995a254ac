// Copyright (c) 2025 Mathchat Project
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/mathchat/mathchat-tui/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete mathchat configuration.
type Config struct {
	Server ServerConfig `toml:"server"`
	UI     UIConfig     `toml:"ui"`
	Export ExportConfig `toml:"export"`
	Debug  DebugConfig  `toml:"debug"`
}

// ServerConfig describes how to reach the mathchat backend.
type ServerConfig struct {
	// URL is the base URL of the backend.
	URL string `toml:"url"`
	// TimeoutSecs is the timeout for non-streaming requests in seconds.
	// Streams have no timeout; their lifetime is context-controlled.
	TimeoutSecs int `toml:"timeout_secs"`
	// MaxRetries is the retry budget for connection setup.
	MaxRetries int `toml:"max_retries"`
	// RequestsPerSecond throttles outgoing requests. 0 disables throttling.
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// UIConfig contains terminal UI configuration.
type UIConfig struct {
	// Theme is the UI theme: "dark", "light", "auto"
	Theme string `toml:"theme"`
	// GlamourStyle overrides the markdown rendering style. Empty follows
	// the theme.
	GlamourStyle string `toml:"glamour_style"`
	// CompactMode uses a more compact message layout.
	CompactMode bool `toml:"compact_mode"`
	// ShowStats displays generation timing under assistant replies.
	ShowStats bool `toml:"show_stats"`
}

// ExportConfig contains transcript export configuration.
type ExportConfig struct {
	// Dir is the directory transcripts are written to.
	Dir string `toml:"dir"`
}

// DebugConfig contains diagnostics configuration.
type DebugConfig struct {
	// LogFile enables debug logging to the given file. The TUI owns the
	// terminal, so diagnostics never go to stdout or stderr while running.
	LogFile string `toml:"log_file"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			URL:               "http://127.0.0.1:8000",
			TimeoutSecs:       30,
			MaxRetries:        3,
			RequestsPerSecond: 5,
		},
		UI: UIConfig{
			Theme:       "dark",
			CompactMode: false,
			ShowStats:   true,
		},
		Export: ExportConfig{
			Dir: "", // resolved to ~/.mathchat/exports on demand
		},
		Debug: DebugConfig{
			LogFile: "",
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the mathchat configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".mathchat"), nil
}

// ConfigPath returns the path to the TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ExportDir returns the configured export directory, resolving the default
// under the config directory.
func (c *Config) ExportDir() (string, error) {
	if c.Export.Dir != "" {
		return c.Export.Dir, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "exports"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads the configuration from the default config file, falling back
// to defaults when the file does not exist. Environment overrides are
// applied last, then the result is validated.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			return LoadFromPath(path)
		}
	}

	cfg := Default()
	cfg.ApplyEnvOverrides()
	fillDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadFromPath loads configuration from a specific TOML file with full
// validation.
func LoadFromPath(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	cfg.ApplyEnvOverrides()
	fillDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// fillDefaults fills in missing values and clamps numeric settings into
// their usable ranges.
func fillDefaults(cfg *Config) {
	defaults := Default()

	if cfg.Server.URL == "" {
		cfg.Server.URL = defaults.Server.URL
	}
	if cfg.Server.TimeoutSecs <= 0 {
		cfg.Server.TimeoutSecs = defaults.Server.TimeoutSecs
	}
	if cfg.Server.TimeoutSecs > 600 {
		cfg.Server.TimeoutSecs = 600
	}
	if cfg.Server.MaxRetries <= 0 {
		cfg.Server.MaxRetries = defaults.Server.MaxRetries
	}
	if cfg.Server.MaxRetries > 10 {
		cfg.Server.MaxRetries = 10
	}
	if cfg.Server.RequestsPerSecond < 0 {
		cfg.Server.RequestsPerSecond = defaults.Server.RequestsPerSecond
	}

	if cfg.UI.Theme == "" {
		cfg.UI.Theme = defaults.UI.Theme
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies MATHCHAT_* environment variables on top of the
// loaded configuration.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("MATHCHAT_SERVER_URL"); v != "" {
		c.Server.URL = v
	}
	if v := os.Getenv("MATHCHAT_TIMEOUT_SECS"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			c.Server.TimeoutSecs = secs
		}
	}
	if v := os.Getenv("MATHCHAT_THEME"); v != "" {
		c.UI.Theme = v
	}
	if v := os.Getenv("MATHCHAT_EXPORT_DIR"); v != "" {
		c.Export.Dir = v
	}
	if v := os.Getenv("MATHCHAT_DEBUG_LOG"); v != "" {
		c.Debug.LogFile = v
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	u, err := url.Parse(c.Server.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, ValidationError{
			Field:   "server.url",
			Message: fmt.Sprintf("invalid URL '%s'", c.Server.URL),
		})
	} else if u.Scheme != "http" && u.Scheme != "https" {
		errs = append(errs, ValidationError{
			Field:   "server.url",
			Message: fmt.Sprintf("unsupported scheme '%s', must be http or https", u.Scheme),
		})
	}

	validThemes := map[string]bool{"dark": true, "light": true, "auto": true}
	if !validThemes[strings.ToLower(c.UI.Theme)] {
		errs = append(errs, ValidationError{
			Field:   "ui.theme",
			Message: fmt.Sprintf("invalid theme '%s', must be one of: dark, light, auto", c.UI.Theme),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML saves the configuration to a TOML file.
// RELIABILITY: Atomic write with fsync prevents a half-written config.
// SECURITY: 0600 permissions, the file may carry private server addresses.
func SaveTOML(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("# mathchat configuration file\n")
	buf.WriteString("# Edit with care; invalid values fall back to defaults on load.\n\n")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := util.AtomicWriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
