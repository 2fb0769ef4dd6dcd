// Package command runs local processes with a per-attempt timeout and bounded retry.
package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"time"

	"github.com/rs/zerolog"

	"github.com/tOgg1/remotectl/internal/logging"
	"github.com/tOgg1/remotectl/internal/models"
	"github.com/tOgg1/remotectl/internal/procutil"
	"github.com/tOgg1/remotectl/internal/retry"
)

const (
	// DefaultTimeout bounds a single local attempt.
	DefaultTimeout = 600 * time.Second

	// DefaultRetries is the default total number of attempts.
	DefaultRetries = 3

	// waitDelay bounds how long Wait blocks on inherited pipes after a kill.
	waitDelay = 2 * time.Second
)

// Options controls a single Run call.
type Options struct {
	// Timeout bounds each attempt; zero disables the limit.
	Timeout time.Duration

	// Shell passes the command verbatim to the platform shell instead of
	// tokenizing it with shell quoting rules.
	Shell bool

	// Check turns a non-zero final exit status into a *FailedError and enables
	// retrying on non-zero exit.
	Check bool

	// Retries is the total number of attempts.
	Retries int
}

// DefaultOptions returns checked, non-shell execution with default limits.
func DefaultOptions() Options {
	return Options{
		Timeout: DefaultTimeout,
		Check:   true,
		Retries: DefaultRetries,
	}
}

// Commander is implemented by anything that can run a command line.
type Commander interface {
	Run(ctx context.Context, command string, opts Options) (string, error)
}

// ResultCommander also exposes the exit status of the last attempt, which a
// caller running with Check=false needs to tell success from failure.
type ResultCommander interface {
	Commander
	RunResult(ctx context.Context, command string, opts Options) (models.CommandResult, error)
}

// Runner executes commands as local processes.
type Runner struct {
	shell     string
	shellArgs []string
	schedule  retry.Schedule
	timer     retry.Timer
	logger    zerolog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithShell sets the shell used when Options.Shell is true.
func WithShell(shell string, args ...string) Option {
	return func(r *Runner) {
		r.shell = shell
		r.shellArgs = args
	}
}

// WithSchedule replaces the delay schedule between attempts.
func WithSchedule(schedule retry.Schedule) Option {
	return func(r *Runner) {
		if schedule != nil {
			r.schedule = schedule
		}
	}
}

// WithTimer replaces the wall-clock timer used between attempts.
func WithTimer(timer retry.Timer) Option {
	return func(r *Runner) {
		r.timer = timer
	}
}

// WithLogger overrides the component logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// NewRunner creates a Runner using the platform shell.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		schedule: retry.Fixed(retry.DefaultDelay),
		logger:   logging.Component("command"),
	}

	switch runtime.GOOS {
	case "windows":
		r.shell = "cmd"
		r.shellArgs = []string{"/C"}
	default:
		r.shell = "/bin/sh"
		r.shellArgs = []string{"-c"}
	}

	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes command and returns stdout on a zero exit status, stderr otherwise.
func (r *Runner) Run(ctx context.Context, command string, opts Options) (string, error) {
	result, err := r.RunResult(ctx, command, opts)
	if err != nil {
		return "", err
	}
	if result.Succeeded() {
		return result.Stdout, nil
	}
	return result.Stderr, nil
}

// RunResult executes command and returns the streams and exit status of the
// last attempt.
func (r *Runner) RunResult(ctx context.Context, command string, opts Options) (models.CommandResult, error) {
	var result models.CommandResult

	argv, err := r.argv(command, opts.Shell)
	if err != nil {
		return result, err
	}

	safe := logging.Redact(command)
	policy := retry.Policy{MaxAttempts: opts.Retries, Schedule: r.schedule, Timer: r.timer}

	err = retry.Do(ctx, policy, func(attempt int) error {
		result.Attempts = attempt

		stdout, stderr, exitCode, err := r.runOnce(ctx, argv, opts.Timeout)
		if err != nil {
			var timeout *TimeoutError
			if errors.As(err, &timeout) {
				timeout.Command = safe
				timeout.Attempt = attempt
				r.logger.Debug().Str("command", safe).Int("attempt", attempt).Dur("timeout", opts.Timeout).Msg("command attempt timed out")
				return timeout
			}
			return retry.Permanent(err)
		}

		result.Stdout = stdout
		result.Stderr = stderr
		result.SetExit(exitCode)

		if exitCode == 0 || !opts.Check {
			return nil
		}

		r.logger.Debug().Str("command", safe).Int("attempt", attempt).Int("exit_code", exitCode).Msg("command attempt failed")
		return &FailedError{
			Command:  safe,
			ExitCode: exitCode,
			Stdout:   stdout,
			Stderr:   stderr,
			Attempts: attempt,
		}
	}, nil)

	if err != nil {
		r.logger.Error().Err(err).Str("command", safe).Int("attempts", result.Attempts).Msg("failed to run command")
		return result, err
	}
	return result, nil
}

func (r *Runner) argv(command string, shell bool) ([]string, error) {
	if shell {
		if command == "" {
			return nil, ErrEmptyCommand
		}
		args := make([]string, 0, len(r.shellArgs)+2)
		args = append(args, r.shell)
		args = append(args, r.shellArgs...)
		return append(args, command), nil
	}

	return Split(command)
}

func (r *Runner) runOnce(ctx context.Context, argv []string, timeout time.Duration) (string, string, int, error) {
	attemptCtx := ctx
	cancel := func() {}
	if timeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	cmd := exec.CommandContext(attemptCtx, argv[0], argv[1:]...)
	procutil.Isolate(cmd, waitDelay)

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	err := cmd.Run()
	stdout := stdoutBuf.String()
	stderr := stderrBuf.String()

	if ctxErr := ctx.Err(); ctxErr != nil {
		return stdout, stderr, -1, ctxErr
	}
	if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		return stdout, stderr, -1, &TimeoutError{Timeout: timeout, Stderr: stderr}
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return stdout, stderr, exitErr.ExitCode(), nil
		}
		return stdout, stderr, -1, fmt.Errorf("start %s: %w", argv[0], err)
	}
	return stdout, stderr, 0, nil
}

// Ensure Runner implements Commander.
var _ ResultCommander = (*Runner)(nil)
