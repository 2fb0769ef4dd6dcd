package cli

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/tOgg1/remotectl/internal/command"
	"github.com/tOgg1/remotectl/internal/events"
	"github.com/tOgg1/remotectl/internal/models"
	"github.com/tOgg1/remotectl/internal/ssh"
)

// sessionDialer overrides the SSH transport; nil uses the native client.
var sessionDialer ssh.Dialer

var (
	runRetries int
	runTimeout time.Duration
	runStderr  bool
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().IntVar(&runRetries, "retries", 0, "total attempts (default from session.retries)")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "per-attempt timeout (default from session.command_timeout)")
	runCmd.Flags().BoolVar(&runStderr, "stderr", false, "print stderr even when the command succeeds")
}

var runCmd = &cobra.Command{
	Use:   "run <command>",
	Short: "Run a command on the remote host",
	Long: `Open an SSH session to the target and run one command. A non-zero exit
status or a timed out attempt is retried with a one second pause.`,
	Example: `  remotectl run --host 10.0.0.5 --user admin "uname -a"
  remotectl run --retries 1 --timeout 5m "systemctl restart app"`,
	Args: exactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg := GetConfig()

		opts := ssh.RunOptions{
			Timeout:      cfg.Session.CommandTimeout,
			Retries:      cfg.Session.Retries,
			PreferStderr: runStderr,
		}
		if runRetries != 0 {
			opts.Retries = runRetries
		}
		if runTimeout != 0 {
			opts.Timeout = runTimeout
		}
		if err := validateAttempts(opts.Retries, opts.Timeout); err != nil {
			return err
		}

		params, err := resolveParams(cmd)
		if err != nil {
			return err
		}

		pub, closeAudit := newPublisher(ctx)
		defer closeAudit(context.WithoutCancel(ctx))

		session := newSession(params, pub)
		release, err := session.Connect(ctx)
		if err != nil {
			return err
		}
		defer release(context.WithoutCancel(ctx))

		// A non-zero exit is reported through the printed result; anything
		// else means no attempt completed.
		if _, err := session.RunChecked(ctx, args[0], opts); err != nil && !errors.Is(err, command.ErrCommandFailed) {
			return err
		}
		result, _ := session.LastResult()
		return printResult(cmd, result, runStderr)
	},
}

func newSession(params models.ConnectionParameters, pub events.Publisher) *ssh.Session {
	cfg := GetConfig()
	return ssh.NewSession(params,
		ssh.WithDialer(sessionDialer),
		ssh.WithConnectTimeout(cfg.Session.ConnectTimeout),
		ssh.WithHostKeys(ssh.NewRememberingHostKeys(cfg.Session.KnownHosts)),
		ssh.WithKeyFile(cfg.Session.KeyPath),
		ssh.WithAgent(cfg.Session.UseAgent),
		ssh.WithPublisher(pub),
	)
}
