// Package config resolves runtime settings for the passctl CLI. Values
// are layered: built-in defaults, then an optional config.yaml in the
// passctl home, then PASSCTL_* environment variables. A .env file in the
// working directory is loaded best-effort before the environment is read.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// FileName is the optional configuration file read from the passctl home.
const FileName = "config.yaml"

// Defaults applied before the file and environment are consulted.
const (
	DefaultHomeName       = ".passctl"
	DefaultDBName         = "vault.db"
	DefaultBackupDirName  = "backups"
	DefaultSessionTimeout = 5 * time.Minute
	DefaultLogLevel       = "info"
	DefaultHTTPTimeout    = 10 * time.Second
)

// Environment variables. Each overrides the corresponding file value.
const (
	EnvHome           = "PASSCTL_HOME"
	EnvBackupDir      = "PASSCTL_BACKUP_DIR"
	EnvSessionTimeout = "PASSCTL_SESSION_TIMEOUT"
	EnvLogLevel       = "PASSCTL_LOG_LEVEL"
)

// Config holds the resolved runtime settings.
type Config struct {
	// Home is the passctl state directory.
	Home string
	// DBPath is the vault database inside Home.
	DBPath string
	// BackupDir holds vault snapshots.
	BackupDir string
	// SessionTimeout is the idle window before a session expires.
	SessionTimeout time.Duration
	// LogLevel is one of debug, info, warn, error.
	LogLevel string
	// HTTPTimeout bounds outbound requests, currently the breach check.
	HTTPTimeout time.Duration
}

// fileConfig is the on-disk shape. Durations are strings in Go duration
// syntax ("5m", "90s"). The home itself cannot be set here: the file is
// found through the home, so it is resolved first from flag, environment,
// or default.
type fileConfig struct {
	BackupDir      string `yaml:"backup_dir"`
	SessionTimeout string `yaml:"session_timeout"`
	LogLevel       string `yaml:"log_level"`
	HTTPTimeout    string `yaml:"http_timeout"`
}

// Load resolves the configuration. homeOverride (the --home flag) wins
// over PASSCTL_HOME; both win over the default ~/.passctl. A relative
// backup directory resolves under the home.
func Load(homeOverride string) (*Config, error) {
	// .env values become process environment for the lookups below.
	// Nothing already set is touched, and a missing file is fine.
	_ = godotenv.Load()

	home := homeOverride
	if home == "" {
		home = os.Getenv(EnvHome)
	}
	if home == "" {
		userHome, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("config: failed to resolve home directory: %w", err)
		}
		home = filepath.Join(userHome, DefaultHomeName)
	}

	cfg := &Config{
		Home:           home,
		DBPath:         filepath.Join(home, DefaultDBName),
		BackupDir:      DefaultBackupDirName,
		SessionTimeout: DefaultSessionTimeout,
		LogLevel:       DefaultLogLevel,
		HTTPTimeout:    DefaultHTTPTimeout,
	}
	if err := cfg.applyFile(filepath.Join(home, FileName)); err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if !filepath.IsAbs(cfg.BackupDir) {
		cfg.BackupDir = filepath.Join(home, cfg.BackupDir)
	}
	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	content, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	var file fileConfig
	if err := yaml.Unmarshal(content, &file); err != nil {
		return fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	if file.BackupDir != "" {
		c.BackupDir = file.BackupDir
	}
	if file.LogLevel != "" {
		c.LogLevel = file.LogLevel
	}
	if file.SessionTimeout != "" {
		d, err := time.ParseDuration(file.SessionTimeout)
		if err != nil {
			return fmt.Errorf("config: invalid session_timeout %q: %w", file.SessionTimeout, err)
		}
		c.SessionTimeout = d
	}
	if file.HTTPTimeout != "" {
		d, err := time.ParseDuration(file.HTTPTimeout)
		if err != nil {
			return fmt.Errorf("config: invalid http_timeout %q: %w", file.HTTPTimeout, err)
		}
		c.HTTPTimeout = d
	}
	return nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvBackupDir); v != "" {
		c.BackupDir = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv(EnvSessionTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: invalid %s %q: %w", EnvSessionTimeout, v, err)
		}
		c.SessionTimeout = d
	}
	return nil
}

// Level maps the configured log level onto slog. Unknown values fall back
// to info rather than failing a command over a typo.
func (c *Config) Level() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
