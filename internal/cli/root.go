// Package cli implements the remotectl command line.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tOgg1/remotectl/internal/config"
	"github.com/tOgg1/remotectl/internal/logging"
)

// Version information, set by Execute.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

var (
	flagConfigFile string
	flagLogLevel   string
	flagLogFormat  string
	flagOutput     string
	flagHost       string
	flagPort       int
	flagUser       string
	flagPassword   string

	appConfig    *config.Config
	configLoader *config.Loader
)

var rootCmd = &cobra.Command{
	Use:   "remotectl",
	Short: "Run commands and copy files on remote hosts",
	Long: `remotectl runs local and remote commands with per-attempt timeouts and
retries, and copies files to and from remote hosts through a registered
credential and a mounted network share.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig(cmd)
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&flagConfigFile, "config", "", "config file (default is $HOME/.config/remotectl/config.yaml)")
	flags.StringVar(&flagLogLevel, "log-level", "", "override logging level (debug, info, warn, error)")
	flags.StringVar(&flagLogFormat, "log-format", "", "override logging format (json, console)")
	flags.StringVarP(&flagOutput, "output", "o", "text", "output format (text, json, yaml)")
	flags.StringVar(&flagHost, "host", "", "remote host IPv4 address (default: current target)")
	flags.IntVar(&flagPort, "port", 0, "remote SSH port (default from config)")
	flags.StringVarP(&flagUser, "user", "u", "", "remote login name (default: current target)")
	flags.StringVar(&flagPassword, "password", "", "remote password (default: $REMOTECTL_PASSWORD or prompt)")

	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &UsageError{Err: err}
	})
}

// Execute runs the root command until ctx is cancelled.
func Execute(ctx context.Context, version, commit, date string) error {
	Version, Commit, Date = version, commit, date
	rootCmd.Version = version
	return rootCmd.ExecuteContext(ctx)
}

func initConfig(cmd *cobra.Command) error {
	if err := validateOutputFormat(flagOutput); err != nil {
		return err
	}

	loader := config.NewLoader()
	if flagConfigFile != "" {
		loader.SetConfigFile(flagConfigFile)
	}
	flags := cmd.Flags()
	loader.BindFlag("logging.level", flags.Lookup("log-level"))
	loader.BindFlag("logging.format", flags.Lookup("log-format"))
	loader.BindFlag("session.port", flags.Lookup("port"))

	cfg, err := loader.Load()
	if err != nil {
		return err
	}

	logging.Init(logging.Config{
		Level:        cfg.Logging.Level,
		Format:       cfg.Logging.Format,
		EnableCaller: cfg.Logging.EnableCaller,
	})

	if used := loader.ConfigFileUsed(); used != "" {
		logger := logging.Component("cli")
		logger.Debug().Str("config_file", used).Msg("loaded config file")
	}

	appConfig = cfg
	configLoader = loader
	return nil
}

// GetConfig returns the loaded configuration, or the defaults before a
// command has run.
func GetConfig() *config.Config {
	if appConfig == nil {
		return config.DefaultConfig()
	}
	return appConfig
}

func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return &UsageError{Err: fmt.Errorf("%s: %w", cmd.CommandPath(), err)}
		}
		return nil
	}
}

func maximumArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.MaximumNArgs(n)(cmd, args); err != nil {
			return &UsageError{Err: fmt.Errorf("%s: %w", cmd.CommandPath(), err)}
		}
		return nil
	}
}
