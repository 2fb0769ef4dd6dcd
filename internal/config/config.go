// Package config handles remotectl configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tOgg1/remotectl/internal/models"
)

// Config is the root configuration structure for remotectl.
type Config struct {
	// Global settings
	Global GlobalConfig `yaml:"global" mapstructure:"global"`

	// Logging settings
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`

	// Session holds defaults for remote sessions.
	Session SessionConfig `yaml:"session" mapstructure:"session"`

	// Local holds defaults for local commands.
	Local LocalConfig `yaml:"local" mapstructure:"local"`

	// Transfer settings
	Transfer TransferConfig `yaml:"transfer" mapstructure:"transfer"`

	// Credentials settings
	Credentials CredentialsConfig `yaml:"credentials" mapstructure:"credentials"`

	// Mount settings
	Mount MountConfig `yaml:"mount" mapstructure:"mount"`

	// Audit settings
	Audit AuditConfig `yaml:"audit" mapstructure:"audit"`
}

// GlobalConfig contains global remotectl settings.
type GlobalConfig struct {
	// DataDir is where remotectl stores its data (default: ~/.local/share/remotectl).
	DataDir string `yaml:"data_dir" mapstructure:"data_dir"`

	// ConfigDir is where config files are stored (default: ~/.config/remotectl).
	ConfigDir string `yaml:"config_dir" mapstructure:"config_dir"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string `yaml:"level" mapstructure:"level"`

	// Format is the output format (json, console).
	Format string `yaml:"format" mapstructure:"format"`

	// EnableCaller adds caller information to logs.
	EnableCaller bool `yaml:"enable_caller" mapstructure:"enable_caller"`
}

// SessionConfig contains defaults for remote sessions.
type SessionConfig struct {
	Port           int           `yaml:"port" mapstructure:"port"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" mapstructure:"connect_timeout"`
	CommandTimeout time.Duration `yaml:"command_timeout" mapstructure:"command_timeout"`
	Retries        int           `yaml:"retries" mapstructure:"retries"`

	// KnownHosts persists accepted host keys; empty keeps them in memory only.
	KnownHosts string `yaml:"known_hosts" mapstructure:"known_hosts"`

	// KeyPath is an optional private key offered before the password.
	KeyPath string `yaml:"key_path" mapstructure:"key_path"`

	// UseAgent offers keys from SSH_AUTH_SOCK.
	UseAgent bool `yaml:"use_agent" mapstructure:"use_agent"`
}

// LocalConfig contains defaults for local commands.
type LocalConfig struct {
	CommandTimeout time.Duration `yaml:"command_timeout" mapstructure:"command_timeout"`
	Retries        int           `yaml:"retries" mapstructure:"retries"`
}

// TransferConfig contains secure-copy settings.
type TransferConfig struct {
	// Binary is the copy tool, pscp by default.
	Binary  string        `yaml:"binary" mapstructure:"binary"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`

	// Verify lists the destination after a copy.
	Verify bool `yaml:"verify" mapstructure:"verify"`
}

// CredentialsConfig contains credential table settings.
type CredentialsConfig struct {
	Binary string `yaml:"binary" mapstructure:"binary"`
}

// MountConfig contains network share settings.
type MountConfig struct {
	// Share is mounted when a command does not name one.
	Share string `yaml:"share" mapstructure:"share"`
}

// AuditConfig contains audit trail settings.
type AuditConfig struct {
	// Enabled persists audit events to the database at Path.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`

	// Path is the SQLite database file path.
	Path string `yaml:"path" mapstructure:"path"`

	// MaxAge prunes older events when the database is opened; zero keeps everything.
	MaxAge time.Duration `yaml:"max_age" mapstructure:"max_age"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()

	return &Config{
		Global: GlobalConfig{
			DataDir:   filepath.Join(homeDir, ".local", "share", "remotectl"),
			ConfigDir: filepath.Join(homeDir, ".config", "remotectl"),
		},
		Logging: LoggingConfig{
			Level:        "info",
			Format:       "console",
			EnableCaller: false,
		},
		Session: SessionConfig{
			Port:           models.DefaultSSHPort,
			ConnectTimeout: 10 * time.Second,
			CommandTimeout: 60 * time.Second,
			Retries:        3,
		},
		Local: LocalConfig{
			CommandTimeout: 600 * time.Second,
			Retries:        3,
		},
		Transfer: TransferConfig{
			Binary:  "pscp",
			Timeout: 600 * time.Second,
			Verify:  true,
		},
		Credentials: CredentialsConfig{
			Binary: "cmdkey",
		},
		Mount: MountConfig{
			Share: "Public",
		},
		Audit: AuditConfig{
			Enabled: false,
			Path:    "", // Will be set to DataDir/audit.db
		},
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	var verrs models.ValidationErrors

	verrs.Add("session.port", models.ValidatePort(c.Session.Port))
	if c.Session.ConnectTimeout <= 0 {
		verrs.AddMessage("session.connect_timeout", "must be positive")
	}
	if c.Session.CommandTimeout <= 0 {
		verrs.AddMessage("session.command_timeout", "must be positive")
	}
	if c.Session.Retries < 1 {
		verrs.AddMessage("session.retries", "must be at least 1")
	}
	if c.Local.CommandTimeout <= 0 {
		verrs.AddMessage("local.command_timeout", "must be positive")
	}
	if c.Local.Retries < 1 {
		verrs.AddMessage("local.retries", "must be at least 1")
	}
	if c.Transfer.Binary == "" {
		verrs.AddMessage("transfer.binary", "is required")
	}
	if c.Transfer.Timeout <= 0 {
		verrs.AddMessage("transfer.timeout", "must be positive")
	}
	if c.Credentials.Binary == "" {
		verrs.AddMessage("credentials.binary", "is required")
	}
	if c.Audit.MaxAge < 0 {
		verrs.AddMessage("audit.max_age", "must not be negative")
	}
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		verrs.AddMessage("logging.format", fmt.Sprintf("unknown format %q (json, console)", c.Logging.Format))
	}

	return verrs.Err()
}

// EnsureDirectories creates required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Global.DataDir,
		c.Global.ConfigDir,
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// AuditPath returns the full audit database path.
func (c *Config) AuditPath() string {
	if c.Audit.Path != "" {
		return c.Audit.Path
	}
	return filepath.Join(c.Global.DataDir, "audit.db")
}
