package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tOgg1/remotectl/internal/command"
	"github.com/tOgg1/remotectl/internal/models"
)

// newCommander runs local processes; tests replace it with a fake.
var newCommander = func() command.ResultCommander {
	return command.NewRunner()
}

var (
	execShell   bool
	execNoCheck bool
	execRetries int
	execTimeout time.Duration
)

func init() {
	rootCmd.AddCommand(execCmd)

	execCmd.Flags().BoolVar(&execShell, "shell", false, "run through the platform shell")
	execCmd.Flags().BoolVar(&execNoCheck, "no-check", false, "accept a non-zero exit status without retrying")
	execCmd.Flags().IntVar(&execRetries, "retries", 0, "total attempts (default from local.retries)")
	execCmd.Flags().DurationVar(&execTimeout, "timeout", 0, "per-attempt timeout (default from local.command_timeout)")
}

var execCmd = &cobra.Command{
	Use:   "exec <command>",
	Short: "Run a local command with retries",
	Long: `Run a local command. A non-zero exit status is retried with a one second
pause until the attempts are exhausted, unless --no-check is given.`,
	Example: `  remotectl exec "ipconfig /all"
  remotectl exec --shell --retries 1 "dir C:\\Users"`,
	Args: exactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		opts := command.Options{
			Timeout: cfg.Local.CommandTimeout,
			Shell:   execShell,
			Check:   !execNoCheck,
			Retries: cfg.Local.Retries,
		}
		if execRetries != 0 {
			opts.Retries = execRetries
		}
		if execTimeout != 0 {
			opts.Timeout = execTimeout
		}
		if err := validateAttempts(opts.Retries, opts.Timeout); err != nil {
			return err
		}

		result, err := newCommander().RunResult(cmd.Context(), args[0], opts)
		if err != nil {
			return err
		}
		return printResult(cmd, result, false)
	},
}

func validateAttempts(retries int, timeout time.Duration) error {
	var verrs models.ValidationErrors
	if retries < 1 {
		verrs.AddMessage("retries", "must be at least 1")
	}
	if timeout <= 0 {
		verrs.AddMessage("timeout", "must be positive")
	}
	return verrs.Err()
}

// printResult writes the selected stream, or the whole result for structured
// output. A non-zero exit becomes an already-printed ExitError.
func printResult(cmd *cobra.Command, result models.CommandResult, preferStderr bool) error {
	if IsStructuredOutput() {
		if err := WriteOutput(cmd.OutOrStdout(), result); err != nil {
			return err
		}
	} else if out := result.Output(preferStderr); out != "" {
		w := cmd.OutOrStdout()
		if !result.Succeeded() {
			w = cmd.ErrOrStderr()
		}
		fmt.Fprintln(w, out)
	}

	if !result.Succeeded() {
		return &ExitError{
			Code:    ExitFailure,
			Err:     fmt.Errorf("command exited with status %d", result.ExitCode()),
			Printed: true,
		}
	}
	return nil
}
