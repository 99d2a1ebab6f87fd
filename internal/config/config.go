// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/jeranaias/odoo-agent/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete odoo-agent settings file.
type Config struct {
	Install  InstallConfig  `toml:"install" yaml:"install" json:"install"`
	Download DownloadConfig `toml:"download" yaml:"download" json:"download"`
	Detect   DetectConfig   `toml:"detect" yaml:"detect" json:"detect"`
	Server   ServerConfig   `toml:"server" yaml:"server" json:"server"`
	Gemini   GeminiConfig   `toml:"gemini" yaml:"gemini" json:"gemini"`
	Web      WebConfig      `toml:"web" yaml:"web" json:"web"`
	Log      LogConfig      `toml:"log" yaml:"log" json:"log"`
}

// InstallConfig holds the defaults for an installation request.
type InstallConfig struct {
	// Version is the Odoo branch to download (e.g., "16.0")
	Version string `toml:"version" yaml:"version" json:"version"`
	// TargetDir receives the archive and the extracted tree
	TargetDir string `toml:"target_dir" yaml:"target_dir" json:"target_dir"`
	// RealInstall runs pip and starts the server instead of simulating
	RealInstall bool `toml:"real_install" yaml:"real_install" json:"real_install"`
	// Python is the interpreter used for pip and odoo-bin
	Python string `toml:"python" yaml:"python" json:"python"`
}

// DownloadConfig describes where source archives are published.
type DownloadConfig struct {
	Host        string `toml:"host" yaml:"host" json:"host"`
	Org         string `toml:"org" yaml:"org" json:"org"`
	Project     string `toml:"project" yaml:"project" json:"project"`
	TimeoutSecs int    `toml:"timeout_secs" yaml:"timeout_secs" json:"timeout_secs"`
}

// DetectConfig extends the executable search.
type DetectConfig struct {
	ExtraPaths []string `toml:"extra_paths" yaml:"extra_paths" json:"extra_paths"`
}

// ServerConfig controls what happens after the Odoo server is launched.
type ServerConfig struct {
	// ReadyTimeoutSecs bounds the readiness poll. 0 disables it.
	ReadyTimeoutSecs int `toml:"ready_timeout_secs" yaml:"ready_timeout_secs" json:"ready_timeout_secs"`
}

// GeminiConfig holds the Gemini credential.
type GeminiConfig struct {
	APIKey string `toml:"api_key" yaml:"api_key" json:"api_key"`
}

// WebConfig configures the web front end.
type WebConfig struct {
	Addr          string `toml:"addr" yaml:"addr" json:"addr"`
	RatePerMinute int    `toml:"rate_per_minute" yaml:"rate_per_minute" json:"rate_per_minute"`
	// GeminiAPIKey is the server-side secret used when a form leaves the key blank
	GeminiAPIKey string `toml:"gemini_api_key" yaml:"gemini_api_key" json:"gemini_api_key"`
}

// LogConfig selects the structured log level and format.
type LogConfig struct {
	Level  string `toml:"level" yaml:"level" json:"level"`
	Format string `toml:"format" yaml:"format" json:"format"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a new Config with sensible defaults.
func Default() *Config {
	return &Config{
		Install: InstallConfig{
			Version:   "16.0",
			TargetDir: "odoo_installation",
			Python:    defaultPython(),
		},
		Download: DownloadConfig{
			Host:        "https://github.com",
			Org:         "odoo",
			Project:     "odoo",
			TimeoutSecs: 600,
		},
		Web: WebConfig{
			Addr:          "127.0.0.1:8501",
			RatePerMinute: 10,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

func defaultPython() string {
	if filepath.Separator == '\\' {
		return "python"
	}
	return "python3"
}

// DownloadTimeout returns how long a download may wait for headers or go
// without receiving data. It does not bound the whole transfer.
func (c *Config) DownloadTimeout() time.Duration {
	return time.Duration(c.Download.TimeoutSecs) * time.Second
}

// ReadyTimeout returns the server readiness poll timeout.
func (c *Config) ReadyTimeout() time.Duration {
	return time.Duration(c.Server.ReadyTimeoutSecs) * time.Second
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the odoo-agent configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".odoo-agent"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathYAML returns the path to the YAML config file.
func ConfigPathYAML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// ensureSecurePermissions checks and fixes permissions on config files.
// Config files may hold an API key and should be 0600.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	mode := info.Mode().Perm()
	if mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}

	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the config file(s).
// Tries TOML first, then YAML, and falls back to defaults.
// Environment overrides are applied last.
func Load() (*Config, error) {
	for _, pathFn := range []func() (string, error){ConfigPathTOML, ConfigPathYAML} {
		path, err := pathFn()
		if err != nil {
			continue
		}
		if _, statErr := os.Stat(path); statErr == nil {
			return LoadFromPath(path)
		}
	}

	cfg := Default()
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML loads configuration from a TOML file.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return fillDefaults(cfg)
}

// LoadYAML loads configuration from a YAML file.
func LoadYAML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read YAML file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode YAML file: %w", err)
	}
	return fillDefaults(cfg)
}

// LoadFromPath loads configuration from a specific file path with full validation.
func LoadFromPath(path string) (*Config, error) {
	cfg := &Config{}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := LoadYAML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load YAML config from %s: %w", path, err)
		}
	default:
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}

	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// fillDefaults fills in any missing values with defaults.
func fillDefaults(cfg *Config) error {
	defaults := Default()

	if cfg.Install.Version == "" {
		cfg.Install.Version = defaults.Install.Version
	}
	if cfg.Install.TargetDir == "" {
		cfg.Install.TargetDir = defaults.Install.TargetDir
	}
	if cfg.Install.Python == "" {
		cfg.Install.Python = defaults.Install.Python
	}

	if cfg.Download.Host == "" {
		cfg.Download.Host = defaults.Download.Host
	}
	if cfg.Download.Org == "" {
		cfg.Download.Org = defaults.Download.Org
	}
	if cfg.Download.Project == "" {
		cfg.Download.Project = defaults.Download.Project
	}
	if cfg.Download.TimeoutSecs == 0 {
		cfg.Download.TimeoutSecs = defaults.Download.TimeoutSecs
	}

	if cfg.Web.Addr == "" {
		cfg.Web.Addr = defaults.Web.Addr
	}
	if cfg.Web.RatePerMinute == 0 {
		cfg.Web.RatePerMinute = defaults.Web.RatePerMinute
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = defaults.Log.Level
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = defaults.Log.Format
	}

	return nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML saves the configuration to a TOML file with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	var buf strings.Builder
	buf.WriteString("# odoo-agent configuration file\n")
	buf.WriteString("# Generated by odoo-agent - edit with care\n")
	buf.WriteString("#\n")
	buf.WriteString("# Environment variables (ODOO_AGENT_*, GEMINI_API_KEY) override these values.\n")
	buf.WriteString("\n")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := util.AtomicWriteFileWithDir(path, []byte(buf.String()), 0600, 0700); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SaveYAML saves the configuration to a YAML file with 0600 permissions.
func SaveYAML(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := util.AtomicWriteFileWithDir(path, data, 0600, 0700); err != nil {
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
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if v := c.Install.Version; v == "" {
		errs = append(errs, ValidationError{"install.version", "must not be empty"})
	} else if strings.ContainsAny(v, "/\\ \t") {
		errs = append(errs, ValidationError{"install.version", fmt.Sprintf("invalid branch name %q", v)})
	}
	if c.Install.TargetDir == "" {
		errs = append(errs, ValidationError{"install.target_dir", "must not be empty"})
	}

	if u, err := url.Parse(c.Download.Host); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, ValidationError{"download.host", fmt.Sprintf("must be an http(s) URL, got %q", c.Download.Host)})
	}
	if c.Download.TimeoutSecs < 0 {
		errs = append(errs, ValidationError{"download.timeout_secs", "must not be negative"})
	}
	if c.Server.ReadyTimeoutSecs < 0 {
		errs = append(errs, ValidationError{"server.ready_timeout_secs", "must not be negative"})
	}
	if c.Web.RatePerMinute < 0 {
		errs = append(errs, ValidationError{"web.rate_per_minute", "must not be negative"})
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, ValidationError{"log.level", fmt.Sprintf("unknown level %q (debug, info, warn, error)", c.Log.Level)})
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		errs = append(errs, ValidationError{"log.format", fmt.Sprintf("unknown format %q (json, text)", c.Log.Format)})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - ODOO_AGENT_VERSION: overrides install.version
//   - ODOO_AGENT_TARGET_DIR: overrides install.target_dir
//   - ODOO_AGENT_REAL_INSTALL: "1" or "true" enables real installs
//   - ODOO_AGENT_PYTHON: overrides install.python
//   - ODOO_AGENT_DOWNLOAD_HOST: overrides download.host
//   - ODOO_AGENT_EXTRA_PATHS: list-separated paths appended to detect.extra_paths
//   - ODOO_AGENT_READY_TIMEOUT: overrides server.ready_timeout_secs
//   - ODOO_AGENT_WEB_ADDR: overrides web.addr
//   - ODOO_AGENT_LOG_LEVEL / ODOO_AGENT_LOG_FORMAT: override log settings
//   - GEMINI_API_KEY: used for gemini.api_key when the file sets none
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("ODOO_AGENT_VERSION"); v != "" {
		c.Install.Version = v
	}
	if v := os.Getenv("ODOO_AGENT_TARGET_DIR"); v != "" {
		c.Install.TargetDir = v
	}
	if v := os.Getenv("ODOO_AGENT_REAL_INSTALL"); v != "" {
		c.Install.RealInstall = v == "1" || strings.ToLower(v) == "true"
	}
	if v := os.Getenv("ODOO_AGENT_PYTHON"); v != "" {
		c.Install.Python = v
	}
	if v := os.Getenv("ODOO_AGENT_DOWNLOAD_HOST"); v != "" {
		c.Download.Host = v
	}
	if v := os.Getenv("ODOO_AGENT_EXTRA_PATHS"); v != "" {
		c.Detect.ExtraPaths = append(c.Detect.ExtraPaths, filepath.SplitList(v)...)
	}
	if v := os.Getenv("ODOO_AGENT_READY_TIMEOUT"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			c.Server.ReadyTimeoutSecs = secs
		}
	}
	if v := os.Getenv("ODOO_AGENT_WEB_ADDR"); v != "" {
		c.Web.Addr = v
	}
	if v := os.Getenv("ODOO_AGENT_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("ODOO_AGENT_LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}

	if c.Gemini.APIKey == "" {
		c.Gemini.APIKey = strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
	}
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using dot notation (e.g., "install.version").
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set sets a configuration value using dot notation (e.g., "install.real_install").
func (c *Config) Set(key string, value interface{}) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

func (c *Config) lookup(key string) (reflect.Value, error) {
	if key == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		fieldName := normalizeFieldName(part)

		field := v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, fieldName)
		})
		if !field.IsValid() {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}

		if i == len(parts)-1 {
			if field.Kind() == reflect.Struct {
				return reflect.Value{}, fmt.Errorf("field '%s' is a section, not a value", key)
			}
			return field, nil
		}

		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
		v = field
	}

	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

// normalizeFieldName converts a snake_case or kebab-case name to its Go field equivalent.
func normalizeFieldName(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-'
	})

	var result strings.Builder
	for _, part := range parts {
		if len(part) > 0 {
			result.WriteString(strings.ToUpper(string(part[0])))
			result.WriteString(strings.ToLower(part[1:]))
		}
	}

	return result.String()
}

// setFieldValue sets a reflect.Value from an interface{} value with type conversion.
func setFieldValue(field reflect.Value, value interface{}) error {
	if strVal, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strVal, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Bool:
			boolVal := strVal == "1" || strings.ToLower(strVal) == "true" || strings.ToLower(strVal) == "yes"
			field.SetBool(boolVal)
			return nil
		case reflect.Slice:
			if field.Type().Elem().Kind() == reflect.String {
				field.Set(reflect.ValueOf(filepath.SplitList(strVal)))
				return nil
			}
		}
	}

	val := reflect.ValueOf(value)
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) {
		field.Set(val.Convert(field.Type()))
		return nil
	}

	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// GetAllKeys returns all configuration keys in dot notation.
func GetAllKeys() []string {
	var keys []string
	t := reflect.TypeOf(Config{})
	for i := 0; i < t.NumField(); i++ {
		section := t.Field(i)
		prefix := strings.Split(section.Tag.Get("toml"), ",")[0]
		for j := 0; j < section.Type.NumField(); j++ {
			name := strings.Split(section.Type.Field(j).Tag.Get("toml"), ",")[0]
			keys = append(keys, prefix+"."+name)
		}
	}
	return keys
}

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	if c.Detect.ExtraPaths != nil {
		clone.Detect.ExtraPaths = append([]string(nil), c.Detect.ExtraPaths...)
	}
	return &clone
}

// String returns a JSON representation with secrets redacted.
func (c *Config) String() string {
	safe := c.Clone()
	if safe.Gemini.APIKey != "" {
		safe.Gemini.APIKey = "[REDACTED]"
	}
	if safe.Web.GeminiAPIKey != "" {
		safe.Web.GeminiAPIKey = "[REDACTED]"
	}

	data, _ := json.MarshalIndent(safe, "", "  ")
	return string(data)
}
