// Package ssh provides remote command sessions over SSH.
package ssh

import (
	"context"
	"time"

	xssh "golang.org/x/crypto/ssh"
)

// Executor runs commands over one established SSH connection.
type Executor interface {
	// Exec runs a command and returns its stdout and stderr output. A command
	// that ran to completion with a non-zero status yields *ExecError.
	Exec(ctx context.Context, cmd string) (stdout, stderr []byte, err error)

	// Close releases the connection.
	Close() error
}

// Dialer opens Executors.
type Dialer interface {
	Dial(ctx context.Context, options ConnectionOptions) (Executor, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context, options ConnectionOptions) (Executor, error)

// Dial calls f.
func (f DialerFunc) Dial(ctx context.Context, options ConnectionOptions) (Executor, error) {
	return f(ctx, options)
}

// ConnectionOptions configures how an SSH connection is established.
type ConnectionOptions struct {
	// Host is the target IP.
	Host string

	// Port is the SSH port (defaults to 22 when unset).
	Port int

	// User is the SSH username.
	User string

	// Password authenticates with password and keyboard-interactive methods.
	Password string

	// KeyPath is an optional path to a private key.
	KeyPath string

	// UseAgent adds signers from the agent at SSH_AUTH_SOCK.
	UseAgent bool

	// HostKeyCallback decides whether the server key is accepted. Nil means
	// an in-memory RememberingHostKeys.
	HostKeyCallback xssh.HostKeyCallback

	// Timeout bounds the TCP connect and the SSH handshake.
	Timeout time.Duration
}
