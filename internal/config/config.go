// Package config loads hid-macro settings from a TOML file with
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const (
	appName        = "hid-macro"
	configFileName = "config.toml"
	libraryName    = "library.db"
)

// Environment overrides, applied after the file.
const (
	EnvURL      = "HIDMACRO_URL"
	EnvUser     = "HIDMACRO_USER"
	EnvPassword = "HIDMACRO_PASSWORD"
	EnvLibrary  = "HIDMACRO_LIBRARY"
	EnvLogLevel = "HIDMACRO_LOG_LEVEL"
	EnvInsecure = "HIDMACRO_INSECURE"
)

// Config holds the settings shared by all commands.
type Config struct {
	URL      string   `toml:"url"`
	User     string   `toml:"user"`
	Password string   `toml:"password"`
	Timeout  Duration `toml:"timeout"`
	Insecure bool     `toml:"insecure"`
	Library  string   `toml:"library"`
	Loop     bool     `toml:"loop"`
	LogLevel string   `toml:"log_level"`
}

// Duration is a time.Duration written as a Go duration string ("10s").
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	if v <= 0 {
		return fmt.Errorf("duration must be positive, got %s", v)
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// ParseError is a malformed configuration file.
type ParseError struct {
	Path    string
	Line    int
	Column  int
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Line > 0 && e.Column > 0 {
		return fmt.Sprintf("parse error in %s at line %d, column %d: %s", e.Path, e.Line, e.Column, e.Message)
	}
	return fmt.Sprintf("parse error in %s: %s", e.Path, e.Message)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		URL:      "https://localhost",
		Timeout:  Duration{10 * time.Second},
		Library:  defaultLibraryPath(),
		LogLevel: "info",
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/hid-macro/config.toml or its
// platform equivalent.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("get config dir: %w", err)
	}
	return filepath.Join(dir, appName, configFileName), nil
}

// Load reads the file at path, or the default path when path is empty.
// A missing file yields the defaults. Environment overrides are applied
// last.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := parse(path, data, cfg); err != nil {
			return nil, err
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parse(path string, data []byte, cfg *Config) error {
	if err := toml.Unmarshal(data, cfg); err != nil {
		pErr := &ParseError{Path: path, Message: err.Error(), Err: err}
		var dErr *toml.DecodeError
		if errors.As(err, &dErr) {
			pErr.Line, pErr.Column = dErr.Position()
		}
		return pErr
	}
	return nil
}

func (c *Config) applyEnv() error {
	if v, ok := os.LookupEnv(EnvURL); ok && v != "" {
		c.URL = v
	}
	if v, ok := os.LookupEnv(EnvUser); ok && v != "" {
		c.User = v
	}
	if v, ok := os.LookupEnv(EnvPassword); ok && v != "" {
		c.Password = v
	}
	if v, ok := os.LookupEnv(EnvLibrary); ok && v != "" {
		c.Library = v
	}
	if v, ok := os.LookupEnv(EnvLogLevel); ok && v != "" {
		c.LogLevel = v
	}
	if v, ok := os.LookupEnv(EnvInsecure); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvInsecure, err)
		}
		c.Insecure = b
	}
	return nil
}

// Validate checks field values.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.URL) == "" {
		return errors.New("config: url cannot be empty")
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// Level returns the configured slog level.
func (c *Config) Level() slog.Level {
	l, err := ParseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return l
}

// ParseLevel maps debug, info, warn and error to slog levels.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("config: unknown log level %q (use debug, info, warn or error)", s)
	}
}

func defaultLibraryPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return libraryName
	}
	return filepath.Join(dir, appName, libraryName)
}
