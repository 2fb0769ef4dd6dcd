package ssh

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tOgg1/remotectl/internal/cleanup"
	"github.com/tOgg1/remotectl/internal/command"
	"github.com/tOgg1/remotectl/internal/events"
	"github.com/tOgg1/remotectl/internal/logging"
	"github.com/tOgg1/remotectl/internal/models"
	"github.com/tOgg1/remotectl/internal/retry"
)

const (
	// DefaultCommandTimeout bounds a single remote attempt.
	DefaultCommandTimeout = 60 * time.Second

	// DefaultRetries is the default total number of remote attempts.
	DefaultRetries = 3
)

// RunOptions controls a remote Run.
type RunOptions struct {
	Timeout      time.Duration
	Retries      int
	PreferStderr bool
}

// DefaultRunOptions returns a 60s per-attempt timeout and three attempts.
func DefaultRunOptions() RunOptions {
	return RunOptions{Timeout: DefaultCommandTimeout, Retries: DefaultRetries}
}

// Session is one remote command-execution connection. It is not safe to run
// commands concurrently on one Session.
type Session struct {
	mu sync.Mutex

	id             string
	params         models.ConnectionParameters
	dialer         Dialer
	connectTimeout time.Duration
	keyPath        string
	useAgent       bool
	hostKeys       *RememberingHostKeys
	schedule       retry.Schedule
	timer          retry.Timer
	publisher      events.Publisher
	logger         zerolog.Logger

	state models.SessionState
	exec  Executor
	last  *models.CommandResult
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithDialer replaces the transport dialer.
func WithDialer(dialer Dialer) SessionOption {
	return func(s *Session) {
		if dialer != nil {
			s.dialer = dialer
		}
	}
}

// WithConnectTimeout sets the per-attempt handshake timeout.
func WithConnectTimeout(timeout time.Duration) SessionOption {
	return func(s *Session) {
		if timeout > 0 {
			s.connectTimeout = timeout
		}
	}
}

// WithHostKeys sets the host key policy.
func WithHostKeys(hostKeys *RememberingHostKeys) SessionOption {
	return func(s *Session) {
		if hostKeys != nil {
			s.hostKeys = hostKeys
		}
	}
}

// WithKeyFile adds public key authentication from a private key file.
func WithKeyFile(path string) SessionOption {
	return func(s *Session) {
		s.keyPath = path
	}
}

// WithAgent enables ssh-agent authentication.
func WithAgent(enabled bool) SessionOption {
	return func(s *Session) {
		s.useAgent = enabled
	}
}

// WithRetrySchedule replaces the delay schedule between attempts.
func WithRetrySchedule(schedule retry.Schedule) SessionOption {
	return func(s *Session) {
		if schedule != nil {
			s.schedule = schedule
		}
	}
}

// WithRetryTimer replaces the timer used between attempts.
func WithRetryTimer(timer retry.Timer) SessionOption {
	return func(s *Session) {
		s.timer = timer
	}
}

// WithPublisher sends session audit events to pub.
func WithPublisher(pub events.Publisher) SessionOption {
	return func(s *Session) {
		s.publisher = pub
	}
}

// NewSession creates a disconnected session for params.
func NewSession(params models.ConnectionParameters, opts ...SessionOption) *Session {
	s := &Session{
		id:             uuid.New().String(),
		params:         params,
		dialer:         NativeDialer{PassphrasePrompt: TerminalPassphrasePrompt},
		connectTimeout: DefaultConnectTimeout,
		schedule:       retry.Fixed(retry.DefaultDelay),
		state:          models.SessionDisconnected,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.hostKeys == nil {
		s.hostKeys = NewRememberingHostKeys("")
	}
	s.logger = logging.WithSession(logging.WithHost(logging.Component("ssh"), params.Host()), s.id)
	return s
}

// ID returns the session identifier used in logs and audit events.
func (s *Session) ID() string { return s.id }

// State reports whether the session is connected.
func (s *Session) State() models.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Parameters returns the current connection parameters.
func (s *Session) Parameters() models.ConnectionParameters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params
}

// SetConnectionParameters replaces the parameters of a disconnected session.
func (s *Session) SetConnectionParameters(params models.ConnectionParameters) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == models.SessionConnected {
		return ErrSessionConnected
	}
	s.params = params
	s.logger = logging.WithSession(logging.WithHost(logging.Component("ssh"), params.Host()), s.id)
	return nil
}

// SetConnectionParametersRaw validates each field and then assigns them.
func (s *Session) SetConnectionParametersRaw(host string, port int, username, password string) error {
	params, err := models.NewConnectionParameters(host, port, username, password)
	if err != nil {
		return err
	}
	return s.SetConnectionParameters(params)
}

// Connect opens the transport. The returned Release closes the session and is
// safe to call more than once. Connecting a connected session is a no-op.
func (s *Session) Connect(ctx context.Context) (cleanup.Release, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	release := cleanup.Release(func(context.Context) error { return s.Close() })

	if s.state == models.SessionConnected {
		return release, nil
	}
	if s.params.IsZero() {
		return nil, &ConnectionError{Address: "", Err: ErrMissingHost}
	}

	options := ConnectionOptions{
		Host:            s.params.Host(),
		Port:            s.params.Port(),
		User:            s.params.Username(),
		Password:        s.params.Password(),
		KeyPath:         s.keyPath,
		UseAgent:        s.useAgent,
		HostKeyCallback: s.hostKeys.Callback(),
		Timeout:         s.connectTimeout,
	}

	start := time.Now()
	exec, err := s.dialer.Dial(ctx, options)
	if err != nil {
		s.logger.Debug().Err(err).Msg("ssh connect failed")
		return nil, &ConnectionError{Address: s.params.Address(), Err: err}
	}

	s.exec = exec
	s.state = models.SessionConnected
	s.last = nil
	s.logger.Info().Dur("elapsed", time.Since(start)).Msg("ssh session connected")

	events.Emit(ctx, s.publisher, models.EventTypeSessionConnected, models.EntityTypeSession, s.id, map[string]any{
		"host": s.params.Host(),
		"port": s.params.Port(),
		"user": s.params.Username(),
	})
	return release, nil
}

// ExitStatus returns the exit status of the last completed attempt.
func (s *Session) ExitStatus() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil || s.last.ExitStatus == nil {
		return 0, false
	}
	return *s.last.ExitStatus, true
}

// LastResult returns the result of the most recent Run.
func (s *Session) LastResult() (models.CommandResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return models.CommandResult{}, false
	}
	return *s.last, true
}

// Run executes cmd remotely and returns the trimmed stderr when the last
// exit status is non-zero or PreferStderr is set, the trimmed stdout otherwise.
func (s *Session) Run(ctx context.Context, cmd string, opts RunOptions) (string, error) {
	result, err := s.RunResult(ctx, cmd, opts)
	if err != nil {
		return "", err
	}
	return result.Output(opts.PreferStderr), nil
}

// RunChecked is Run, but a non-zero final exit status is returned as
// *command.FailedError.
func (s *Session) RunChecked(ctx context.Context, cmd string, opts RunOptions) (string, error) {
	result, err := s.RunResult(ctx, cmd, opts)
	if err != nil {
		return "", err
	}
	if !result.Succeeded() {
		return "", &command.FailedError{
			Command:  logging.Redact(cmd),
			ExitCode: result.ExitCode(),
			Stdout:   result.Stdout,
			Stderr:   result.Stderr,
			Attempts: result.Attempts,
		}
	}
	return result.Output(opts.PreferStderr), nil
}

// RunResult executes cmd up to opts.Retries times, stopping at the first
// zero exit status, and returns the streams of the last completed attempt.
// A timed-out attempt counts as failed. When no attempt completes, the last
// *command.TimeoutError is returned.
func (s *Session) RunResult(ctx context.Context, cmd string, opts RunOptions) (models.CommandResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result models.CommandResult
	if s.state != models.SessionConnected {
		return result, ErrNotConnected
	}

	safe := logging.Redact(cmd)
	policy := retry.Policy{MaxAttempts: opts.Retries, Schedule: s.schedule, Timer: s.timer}

	err := retry.Do(ctx, policy, func(attempt int) error {
		result.Attempts = attempt

		attemptCtx := ctx
		cancel := func() {}
		if opts.Timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		}
		defer cancel()

		stdout, stderr, err := s.exec.Exec(attemptCtx, cmd)

		var execErr *ExecError
		switch {
		case err == nil:
			result.Stdout, result.Stderr = string(stdout), string(stderr)
			result.SetExit(0)
			return nil
		case errors.As(err, &execErr):
			result.Stdout, result.Stderr = string(stdout), string(stderr)
			result.SetExit(execErr.ExitCode)
			s.logger.Debug().Str("command", safe).Int("attempt", attempt).Int("exit_code", execErr.ExitCode).Msg("remote attempt failed")
			return execErr
		case ctx.Err() != nil:
			return retry.Permanent(ctx.Err())
		case errors.Is(attemptCtx.Err(), context.DeadlineExceeded):
			s.logger.Debug().Str("command", safe).Int("attempt", attempt).Dur("timeout", opts.Timeout).Msg("remote attempt timed out")
			return &command.TimeoutError{Command: safe, Timeout: opts.Timeout, Attempt: attempt, Stderr: string(stderr)}
		default:
			return retry.Permanent(err)
		}
	}, nil)

	last := result
	s.last = &last

	var execErr *ExecError
	var timeoutErr *command.TimeoutError
	switch {
	case err == nil:
		return result, nil
	case errors.As(err, &execErr):
		s.logger.Warn().Str("command", safe).Int("attempts", result.Attempts).Int("exit_code", execErr.ExitCode).Msg("remote command failed")
		return result, nil
	case errors.As(err, &timeoutErr) && result.ExitStatus != nil:
		return result, nil
	default:
		s.logger.Error().Err(err).Str("command", safe).Int("attempts", result.Attempts).Msg("failed to run remote command")
		return result, err
	}
}

// Close releases the transport. It is idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != models.SessionConnected {
		return nil
	}

	err := s.exec.Close()
	s.exec = nil
	s.state = models.SessionDisconnected
	s.logger.Info().Msg("ssh session closed")

	events.Emit(context.Background(), s.publisher, models.EventTypeSessionClosed, models.EntityTypeSession, s.id, nil)
	return err
}
