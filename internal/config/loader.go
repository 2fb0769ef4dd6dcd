package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. REMOTECTL_SESSION_PORT.
const EnvPrefix = "REMOTECTL"

// Loader handles configuration loading with Viper.
type Loader struct {
	v          *viper.Viper
	configFile string
	flags      map[string]*pflag.Flag
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{
		v:     viper.New(),
		flags: make(map[string]*pflag.Flag),
	}
}

// SetConfigFile sets an explicit config file path.
func (l *Loader) SetConfigFile(path string) {
	l.configFile = path
}

// BindFlag makes a command-line flag override key when the flag was set.
func (l *Loader) BindFlag(key string, flag *pflag.Flag) {
	if flag != nil {
		l.flags[key] = flag
	}
}

// Load loads configuration with proper precedence:
// defaults < config file < env vars < CLI flags
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	l.setupViper(cfg)

	if err := l.loadConfigFile(); err != nil {
		// Config file is optional, only error if explicitly specified
		if l.configFile != "" {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	for key, flag := range l.flags {
		if err := l.v.BindPFlag(key, flag); err != nil {
			return nil, fmt.Errorf("failed to bind flag %s: %w", flag.Name, err)
		}
	}

	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	expandPaths(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// expandTilde expands ~ to the user's home directory.
func expandTilde(path string) string {
	if path == "" {
		return path
	}
	if path == "~" {
		home, _ := os.UserHomeDir()
		return home
	}
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// expandPaths expands ~ in all path-related config fields.
func expandPaths(cfg *Config) {
	cfg.Global.DataDir = expandTilde(cfg.Global.DataDir)
	cfg.Global.ConfigDir = expandTilde(cfg.Global.ConfigDir)
	cfg.Session.KnownHosts = expandTilde(cfg.Session.KnownHosts)
	cfg.Session.KeyPath = expandTilde(cfg.Session.KeyPath)
	cfg.Audit.Path = expandTilde(cfg.Audit.Path)
}

// setupViper configures Viper with defaults and environment bindings.
func (l *Loader) setupViper(cfg *Config) {
	v := l.v

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		v.AddConfigPath(filepath.Join(xdgConfig, "remotectl"))
	}

	homeDir, _ := os.UserHomeDir()
	if homeDir != "" {
		v.AddConfigPath(filepath.Join(homeDir, ".config", "remotectl"))
	}

	v.AddConfigPath(".")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	l.setDefaults(cfg)

	// Viper's Unmarshal ignores env vars on nested keys unless they are bound.
	for _, key := range configKeys {
		_ = v.BindEnv(key, envVar(key))
	}

	v.AutomaticEnv()
}

// setDefaults sets all default values in Viper.
func (l *Loader) setDefaults(cfg *Config) {
	v := l.v

	v.SetDefault("global.data_dir", cfg.Global.DataDir)
	v.SetDefault("global.config_dir", cfg.Global.ConfigDir)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
	v.SetDefault("logging.enable_caller", cfg.Logging.EnableCaller)

	v.SetDefault("session.port", cfg.Session.Port)
	v.SetDefault("session.connect_timeout", cfg.Session.ConnectTimeout)
	v.SetDefault("session.command_timeout", cfg.Session.CommandTimeout)
	v.SetDefault("session.retries", cfg.Session.Retries)
	v.SetDefault("session.known_hosts", cfg.Session.KnownHosts)
	v.SetDefault("session.key_path", cfg.Session.KeyPath)
	v.SetDefault("session.use_agent", cfg.Session.UseAgent)

	v.SetDefault("local.command_timeout", cfg.Local.CommandTimeout)
	v.SetDefault("local.retries", cfg.Local.Retries)

	v.SetDefault("transfer.binary", cfg.Transfer.Binary)
	v.SetDefault("transfer.timeout", cfg.Transfer.Timeout)
	v.SetDefault("transfer.verify", cfg.Transfer.Verify)

	v.SetDefault("credentials.binary", cfg.Credentials.Binary)

	v.SetDefault("mount.share", cfg.Mount.Share)

	v.SetDefault("audit.enabled", cfg.Audit.Enabled)
	v.SetDefault("audit.path", cfg.Audit.Path)
	v.SetDefault("audit.max_age", cfg.Audit.MaxAge)
}

// loadConfigFile attempts to load the configuration file.
func (l *Loader) loadConfigFile() error {
	if l.configFile != "" {
		l.v.SetConfigFile(l.configFile)
	}

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			// Config file not found, use defaults
			return nil
		}
		return err
	}

	return nil
}

// ConfigFileUsed returns the config file that was loaded.
func (l *Loader) ConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// Get returns a Viper value by key.
func (l *Loader) Get(key string) interface{} {
	return l.v.Get(key)
}

// Set sets a Viper value by key.
func (l *Loader) Set(key string, value interface{}) {
	l.v.Set(key, value)
}

// LoadFromFile loads configuration from a specific file.
func LoadFromFile(path string) (*Config, error) {
	loader := NewLoader()
	loader.SetConfigFile(path)
	return loader.Load()
}

// LoadDefault loads configuration with default search paths.
func LoadDefault() (*Config, error) {
	loader := NewLoader()
	return loader.Load()
}

// configKeys lists every key that supports an environment override.
var configKeys = []string{
	// Global
	"global.data_dir",
	"global.config_dir",
	// Logging
	"logging.level",
	"logging.format",
	"logging.enable_caller",
	// Session
	"session.port",
	"session.connect_timeout",
	"session.command_timeout",
	"session.retries",
	"session.known_hosts",
	"session.key_path",
	"session.use_agent",
	// Local
	"local.command_timeout",
	"local.retries",
	// Transfer
	"transfer.binary",
	"transfer.timeout",
	"transfer.verify",
	// Credentials
	"credentials.binary",
	// Mount
	"mount.share",
	// Audit
	"audit.enabled",
	"audit.path",
	"audit.max_age",
}

// envVar converts a key to its environment variable: session.port -> REMOTECTL_SESSION_PORT.
func envVar(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}
