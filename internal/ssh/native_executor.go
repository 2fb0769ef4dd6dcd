package ssh

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	xssh "golang.org/x/crypto/ssh"

	"github.com/tOgg1/remotectl/internal/logging"
	"github.com/tOgg1/remotectl/internal/models"
)

// DefaultConnectTimeout bounds a single connection attempt.
const DefaultConnectTimeout = 10 * time.Second

// NativeDialer opens connections with golang.org/x/crypto/ssh.
type NativeDialer struct {
	// PassphrasePrompt is used for encrypted private keys.
	PassphrasePrompt PassphrasePrompt
}

// Dial connects and authenticates.
func (d NativeDialer) Dial(ctx context.Context, options ConnectionOptions) (Executor, error) {
	return NewNativeExecutor(ctx, options, d.PassphrasePrompt)
}

// NativeExecutor runs commands over a golang.org/x/crypto/ssh client.
type NativeExecutor struct {
	client *xssh.Client
	auth   *authSet
	logger zerolog.Logger
}

// NewNativeExecutor dials options.Host and completes the SSH handshake within
// options.Timeout.
func NewNativeExecutor(ctx context.Context, options ConnectionOptions, prompt PassphrasePrompt) (*NativeExecutor, error) {
	if options.Host == "" {
		return nil, ErrMissingHost
	}

	auth, err := newAuthSet(options, prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to build SSH config: %w", err)
	}
	config := clientConfig(options, auth)

	addr := targetAddr(options)
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}

	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var dialer net.Dialer
	conn, err := dialer.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		_ = auth.Close()
		return nil, err
	}

	// The handshake honours the same deadline as the dial.
	deadline, _ := dialCtx.Deadline()
	_ = conn.SetDeadline(deadline)

	clientConn, chans, reqs, err := xssh.NewClientConn(conn, addr, config)
	if err != nil {
		_ = conn.Close()
		_ = auth.Close()
		return nil, err
	}
	_ = conn.SetDeadline(time.Time{})

	return &NativeExecutor{
		client: xssh.NewClient(clientConn, chans, reqs),
		auth:   auth,
		logger: logging.WithHost(logging.Component("ssh"), options.Host),
	}, nil
}

func clientConfig(options ConnectionOptions, auth *authSet) *xssh.ClientConfig {
	hostKeys := options.HostKeyCallback
	if hostKeys == nil {
		hostKeys = NewRememberingHostKeys("").Callback()
	}
	return &xssh.ClientConfig{
		User:            options.User,
		Auth:            auth.methods,
		HostKeyCallback: hostKeys,
		Timeout:         options.Timeout,
	}
}

func targetAddr(options ConnectionOptions) string {
	port := options.Port
	if port == 0 {
		port = models.DefaultSSHPort
	}
	return net.JoinHostPort(options.Host, strconv.Itoa(port))
}

// Exec runs cmd in a fresh SSH channel. Cancelling ctx signals and closes the
// channel.
func (e *NativeExecutor) Exec(ctx context.Context, cmd string) ([]byte, []byte, error) {
	session, err := e.client.NewSession()
	if err != nil {
		return nil, nil, fmt.Errorf("open ssh session: %w", err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	if err := session.Start(cmd); err != nil {
		return nil, nil, fmt.Errorf("start remote command: %w", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- session.Wait()
	}()

	select {
	case err = <-done:
	case <-ctx.Done():
		_ = session.Signal(xssh.SIGKILL)
		_ = session.Close()
		<-done
		return stdout.Bytes(), stderr.Bytes(), ctx.Err()
	}

	if err != nil {
		var exitErr *xssh.ExitError
		if errors.As(err, &exitErr) {
			return stdout.Bytes(), stderr.Bytes(), &ExecError{
				Command:  cmd,
				ExitCode: exitErr.ExitStatus(),
				Stdout:   stdout.Bytes(),
				Stderr:   stderr.Bytes(),
			}
		}
		return stdout.Bytes(), stderr.Bytes(), fmt.Errorf("remote command: %w", err)
	}
	return stdout.Bytes(), stderr.Bytes(), nil
}

// Close closes the client and any agent connection.
func (e *NativeExecutor) Close() error {
	err := e.client.Close()
	if agentErr := e.auth.Close(); agentErr != nil {
		e.logger.Debug().Err(agentErr).Msg("failed to close ssh agent connection")
	}
	return err
}

var _ Executor = (*NativeExecutor)(nil)
