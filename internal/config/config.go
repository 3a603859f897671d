// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/compllama/internal/model"
	"github.com/jeranaias/compllama/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete compllama configuration.
type Config struct {
	Chat      ChatConfig      `toml:"chat" json:"chat"`
	Compare   CompareConfig   `toml:"compare" json:"compare"`
	Stream    StreamConfig    `toml:"stream" json:"stream"`
	Log       LogConfig       `toml:"log" json:"log"`
	Telemetry TelemetryConfig `toml:"telemetry" json:"telemetry"`
}

// ChatConfig configures single-session mode.
type ChatConfig struct {
	// Endpoint receives single-chat submissions
	Endpoint string `toml:"endpoint" json:"endpoint"`
	// State and City are sent with each request when set
	State string `toml:"state" json:"state"`
	City  string `toml:"city" json:"city"`
}

// PanelConfig is the location context of one compare panel.
type PanelConfig struct {
	State string `toml:"state" json:"state"`
	City  string `toml:"city" json:"city"`
}

// CompareConfig configures compare mode. Endpoints and Locations pair up by
// index; a missing location falls back to the default location.
type CompareConfig struct {
	Endpoints []string      `toml:"endpoints" json:"endpoints"`
	Locations []PanelConfig `toml:"locations" json:"locations"`
}

// StreamConfig controls how response streams are read and surfaced.
type StreamConfig struct {
	// ReadBufferBytes is the raw read size per chunk
	ReadBufferBytes int `toml:"read_buffer_bytes" json:"read_buffer_bytes"`
	// HeaderTimeoutSecs bounds the wait for response headers
	HeaderTimeoutSecs int `toml:"header_timeout_secs" json:"header_timeout_secs"`
	// MalformedPolicy is "overwrite" or "append"
	MalformedPolicy string `toml:"malformed_policy" json:"malformed_policy"`
	// TransportErrorText replaces the reply when the stream fails
	TransportErrorText string `toml:"transport_error_text" json:"transport_error_text"`
	// ParseErrorText replaces the reply when a line is not JSON
	ParseErrorText string `toml:"parse_error_text" json:"parse_error_text"`
}

// LogConfig controls the rotated log file.
type LogConfig struct {
	Level      string `toml:"level" json:"level"`
	File       string `toml:"file" json:"file"`
	MaxSizeMB  int    `toml:"max_size_mb" json:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" json:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days" json:"max_age_days"`
	Compress   bool   `toml:"compress" json:"compress"`
}

// TelemetryConfig controls trace and metric export.
type TelemetryConfig struct {
	Enabled             bool   `toml:"enabled" json:"enabled"`
	TracesFile          string `toml:"traces_file" json:"traces_file"`
	MetricsFile         string `toml:"metrics_file" json:"metrics_file"`
	MetricsIntervalSecs int    `toml:"metrics_interval_secs" json:"metrics_interval_secs"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns a configuration with default values.
func Default() *Config {
	return &Config{
		Chat: ChatConfig{
			Endpoint: "http://localhost:8000/chat-stream",
		},
		Compare: CompareConfig{
			Endpoints: []string{"http://localhost:8000/chat", "http://localhost:8000/chat"},
			Locations: []PanelConfig{
				{State: "California", City: "Los Angeles"},
				{State: "Texas", City: "Houston"},
			},
		},
		Stream: StreamConfig{
			ReadBufferBytes:    4096,
			HeaderTimeoutSecs:  30,
			MalformedPolicy:    string(model.PolicyOverwrite),
			TransportErrorText: model.DefaultTransportErrorText,
			ParseErrorText:     model.DefaultParseErrorText,
		},
		Log: LogConfig{
			Level:      "info",
			File:       "compllama.log",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
			Compress:   true,
		},
		Telemetry: TelemetryConfig{
			Enabled:             true,
			TracesFile:          "traces.log",
			MetricsFile:         "metrics.log",
			MetricsIntervalSecs: 10,
		},
	}
}

// HeaderTimeout returns the header timeout as a duration.
func (c *Config) HeaderTimeout() time.Duration {
	return time.Duration(c.Stream.HeaderTimeoutSecs) * time.Second
}

// MetricsInterval returns the metric export interval as a duration.
func (c *Config) MetricsInterval() time.Duration {
	return time.Duration(c.Telemetry.MetricsIntervalSecs) * time.Second
}

// Policy returns the parsed malformed-line policy. Validate rejects
// unknown values, so this falls back to overwrite only for unvalidated
// configs.
func (c *Config) Policy() model.MalformedPolicy {
	p, err := model.ParseMalformedPolicy(c.Stream.MalformedPolicy)
	if err != nil {
		return model.PolicyOverwrite
	}
	return p
}

// =============================================================================
// PATHS
// =============================================================================

// ConfigDir returns the directory holding config, logs and telemetry.
// COMPLLAMA_HOME overrides the default of ~/.compllama.
func ConfigDir() (string, error) {
	if dir := os.Getenv("COMPLLAMA_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".compllama"), nil
}

// ConfigPathTOML returns the path of the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path of the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// ResolvePath makes a relative file setting absolute under ConfigDir.
func ResolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	dir, err := ConfigDir()
	if err != nil {
		return p
	}
	return filepath.Join(dir, p)
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from ~/.compllama/config.toml, falling back to
// config.json, then to defaults. Environment overrides apply in every case.
func Load() (*Config, error) {
	tomlPath, err := ConfigPathTOML()
	if err == nil {
		if _, statErr := os.Stat(tomlPath); statErr == nil {
			return LoadFromPath(tomlPath)
		}
	}

	jsonPath, err := ConfigPathJSON()
	if err == nil {
		if _, statErr := os.Stat(jsonPath); statErr == nil {
			return LoadFromPath(jsonPath)
		}
	}

	cfg := Default()
	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromPath loads configuration from a specific file path with full
// validation. Files ending in .json are read as JSON, anything else as TOML.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()
	// Default locations pair with default endpoints; SetDefaults restores
	// them when the file does not list its own.
	cfg.Compare.Locations = nil

	if strings.HasSuffix(strings.ToLower(path), ".json") {
		if err := LoadJSON(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load JSON config from %s: %w", path, err)
		}
	} else {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}

	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) finish() error {
	c.ApplyEnvOverrides()
	c.SetDefaults()
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// LoadTOML decodes a TOML file over cfg. Undecoded keys are reported as an
// error so that typos do not pass silently.
func LoadTOML(cfg *Config, path string) error {
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}
	return nil
}

// LoadJSON decodes a JSON file over cfg.
func LoadJSON(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return nil
}

// SetDefaults fills zero values that a partial file may leave behind.
func (c *Config) SetDefaults() {
	defaults := Default()

	if c.Chat.Endpoint == "" {
		c.Chat.Endpoint = defaults.Chat.Endpoint
	}
	if len(c.Compare.Endpoints) == 0 {
		c.Compare.Endpoints = defaults.Compare.Endpoints
	}
	if c.Compare.Locations == nil {
		locs := defaults.Compare.Locations
		if len(locs) > len(c.Compare.Endpoints) {
			locs = locs[:len(c.Compare.Endpoints)]
		}
		c.Compare.Locations = locs
	}
	if c.Stream.ReadBufferBytes <= 0 {
		c.Stream.ReadBufferBytes = defaults.Stream.ReadBufferBytes
	}
	if c.Stream.HeaderTimeoutSecs <= 0 {
		c.Stream.HeaderTimeoutSecs = defaults.Stream.HeaderTimeoutSecs
	}
	if c.Stream.MalformedPolicy == "" {
		c.Stream.MalformedPolicy = defaults.Stream.MalformedPolicy
	}
	if c.Stream.TransportErrorText == "" {
		c.Stream.TransportErrorText = defaults.Stream.TransportErrorText
	}
	if c.Stream.ParseErrorText == "" {
		c.Stream.ParseErrorText = defaults.Stream.ParseErrorText
	}
	if c.Log.Level == "" {
		c.Log.Level = defaults.Log.Level
	}
	if c.Log.MaxSizeMB <= 0 {
		c.Log.MaxSizeMB = defaults.Log.MaxSizeMB
	}
	if c.Log.MaxBackups <= 0 {
		c.Log.MaxBackups = defaults.Log.MaxBackups
	}
	if c.Log.MaxAgeDays <= 0 {
		c.Log.MaxAgeDays = defaults.Log.MaxAgeDays
	}
	if c.Telemetry.TracesFile == "" {
		c.Telemetry.TracesFile = defaults.Telemetry.TracesFile
	}
	if c.Telemetry.MetricsFile == "" {
		c.Telemetry.MetricsFile = defaults.Telemetry.MetricsFile
	}
	if c.Telemetry.MetricsIntervalSecs <= 0 {
		c.Telemetry.MetricsIntervalSecs = defaults.Telemetry.MetricsIntervalSecs
	}
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save writes the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes the configuration to a TOML file atomically.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	buf.WriteString("# compllama configuration file\n")
	buf.WriteString("# Generated by compllama - edit with care\n\n")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SaveJSON writes the configuration to a JSON file atomically.
func SaveJSON(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
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
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if err := validateEndpoint(c.Chat.Endpoint); err != nil {
		errs = append(errs, ValidationError{Field: "chat.endpoint", Message: err.Error()})
	}
	if len(c.Compare.Endpoints) == 0 {
		errs = append(errs, ValidationError{Field: "compare.endpoints", Message: "at least one endpoint is required"})
	}
	for i, ep := range c.Compare.Endpoints {
		if err := validateEndpoint(ep); err != nil {
			errs = append(errs, ValidationError{Field: fmt.Sprintf("compare.endpoints[%d]", i), Message: err.Error()})
		}
	}
	if len(c.Compare.Locations) > len(c.Compare.Endpoints) {
		errs = append(errs, ValidationError{
			Field:   "compare.locations",
			Message: fmt.Sprintf("%d locations for %d endpoints", len(c.Compare.Locations), len(c.Compare.Endpoints)),
		})
	}

	if c.Stream.ReadBufferBytes < 1 || c.Stream.ReadBufferBytes > 1<<20 {
		errs = append(errs, ValidationError{
			Field:   "stream.read_buffer_bytes",
			Message: fmt.Sprintf("%d out of range 1..%d", c.Stream.ReadBufferBytes, 1<<20),
		})
	}
	if c.Stream.HeaderTimeoutSecs < 1 {
		errs = append(errs, ValidationError{Field: "stream.header_timeout_secs", Message: "must be positive"})
	}
	if _, err := model.ParseMalformedPolicy(c.Stream.MalformedPolicy); err != nil {
		errs = append(errs, ValidationError{Field: "stream.malformed_policy", Message: err.Error()})
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, ValidationError{
			Field:   "log.level",
			Message: fmt.Sprintf("invalid level '%s', must be one of: debug, info, warn, error", c.Log.Level),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateEndpoint(raw string) error {
	if raw == "" {
		return errors.New("endpoint is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q, must be http or https", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("URL has no host")
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies COMPLLAMA_* environment variables.
//
//	COMPLLAMA_CHAT_ENDPOINT      chat.endpoint
//	COMPLLAMA_COMPARE_ENDPOINTS  compare.endpoints (comma separated)
//	COMPLLAMA_LOG_LEVEL          log.level
//	COMPLLAMA_MALFORMED_POLICY   stream.malformed_policy
//	COMPLLAMA_TELEMETRY          telemetry.enabled (1/true/0/false)
func (c *Config) ApplyEnvOverrides() {
	if ep := os.Getenv("COMPLLAMA_CHAT_ENDPOINT"); ep != "" {
		c.Chat.Endpoint = ep
	}

	if eps := os.Getenv("COMPLLAMA_COMPARE_ENDPOINTS"); eps != "" {
		var list []string
		for _, ep := range strings.Split(eps, ",") {
			if ep = strings.TrimSpace(ep); ep != "" {
				list = append(list, ep)
			}
		}
		if len(list) > 0 {
			c.Compare.Endpoints = list
			if len(c.Compare.Locations) > len(list) {
				c.Compare.Locations = c.Compare.Locations[:len(list)]
			}
		}
	}

	if lvl := os.Getenv("COMPLLAMA_LOG_LEVEL"); lvl != "" {
		c.Log.Level = lvl
	}

	if policy := os.Getenv("COMPLLAMA_MALFORMED_POLICY"); policy != "" {
		c.Stream.MalformedPolicy = policy
	}

	if tel := os.Getenv("COMPLLAMA_TELEMETRY"); tel != "" {
		if on, err := strconv.ParseBool(tel); err == nil {
			c.Telemetry.Enabled = on
		}
	}
}

// String returns the configuration as TOML.
func (c *Config) String() string {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return fmt.Sprintf("<config encode error: %v>", err)
	}
	return buf.String()
}
