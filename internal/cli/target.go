package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/tOgg1/remotectl/internal/config"
	"github.com/tOgg1/remotectl/internal/models"
)

// PasswordEnv supplies the password when --password is omitted.
const PasswordEnv = "REMOTECTL_PASSWORD"

// passwordPrompt reads a password interactively; tests replace it.
var passwordPrompt = terminalPasswordPrompt

func init() {
	rootCmd.AddCommand(targetCmd)
	targetCmd.AddCommand(targetSetCmd)
	targetCmd.AddCommand(targetShowCmd)
	targetCmd.AddCommand(targetClearCmd)
}

var targetCmd = &cobra.Command{
	Use:   "target",
	Short: "Manage the remembered remote target",
	Long: `Remember a host, port and user so later commands can omit --host and --user.
The password is never stored.`,
}

var targetSetCmd = &cobra.Command{
	Use:   "set <host>",
	Short: "Remember a target host",
	Args:  exactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		host := strings.TrimSpace(args[0])
		if err := models.ValidateHost(host); err != nil {
			var verrs models.ValidationErrors
			verrs.Add("host", err)
			return verrs.Err()
		}

		store := contextStore()
		current, err := store.Load()
		if err != nil {
			return err
		}

		port := 0
		if cmd.Flags().Changed("port") {
			port = GetConfig().Session.Port
		}
		current.SetTarget(host, port, strings.TrimSpace(flagUser))
		if err := store.Save(current); err != nil {
			return err
		}
		return printTarget(cmd, current)
	},
}

var targetShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the remembered target",
	Args:  exactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		current, err := contextStore().Load()
		if err != nil {
			return err
		}
		return printTarget(cmd, current)
	},
}

var targetClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Forget the remembered target",
	Args:  exactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := contextStore().Clear(); err != nil {
			return err
		}
		return printTarget(cmd, &config.Context{})
	},
}

func printTarget(cmd *cobra.Command, current *config.Context) error {
	if IsStructuredOutput() {
		return WriteOutput(cmd.OutOrStdout(), current)
	}
	fmt.Fprintln(cmd.OutOrStdout(), current.String())
	return nil
}

func contextStore() *config.ContextStore {
	return config.NewContextStore(filepath.Join(GetConfig().Global.ConfigDir, "context.yaml"))
}

// resolveParams builds connection parameters from flags, the remembered
// target, the environment and finally an interactive prompt.
func resolveParams(cmd *cobra.Command) (models.ConnectionParameters, error) {
	cfg := GetConfig()

	remembered, err := contextStore().Load()
	if err != nil {
		return models.ConnectionParameters{}, err
	}

	host := strings.TrimSpace(flagHost)
	port := cfg.Session.Port
	user := strings.TrimSpace(flagUser)

	if host == "" {
		host = remembered.Host
	}
	if !cmd.Flags().Changed("port") && host == remembered.Host && remembered.Port != 0 {
		port = remembered.Port
	}
	if user == "" && host == remembered.Host {
		user = remembered.User
	}

	var verrs models.ValidationErrors
	if host == "" {
		verrs.AddMessage("host", "is required (use --host or 'remotectl target set')")
	}
	if user == "" {
		verrs.AddMessage("user", "is required (use --user or 'remotectl target set --user')")
	}
	if err := verrs.Err(); err != nil {
		return models.ConnectionParameters{}, err
	}

	password, err := resolvePassword(user, host)
	if err != nil {
		return models.ConnectionParameters{}, err
	}

	return models.NewConnectionParameters(host, port, user, password)
}

func resolvePassword(user, host string) (string, error) {
	if flagPassword != "" {
		return flagPassword, nil
	}
	if env := os.Getenv(PasswordEnv); env != "" {
		return env, nil
	}
	return passwordPrompt(fmt.Sprintf("%s@%s's password: ", user, host))
}

func terminalPasswordPrompt(prompt string) (string, error) {
	if !hasTTY() {
		var verrs models.ValidationErrors
		verrs.AddMessage("password", "is required (use --password or $"+PasswordEnv+")")
		return "", verrs.Err()
	}

	fmt.Fprint(os.Stderr, prompt)
	secret, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(secret), nil
}

func hasTTY() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stderr.Fd()))
}
