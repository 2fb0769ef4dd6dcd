package ssh

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrPassphraseRequired  = errors.New("passphrase required for private key")
	ErrSSHAgentUnavailable = errors.New("ssh agent not available")
	ErrNoAuthMethods       = errors.New("no ssh authentication methods available")

	// ErrMissingHost indicates no host was provided in connection options.
	ErrMissingHost = errors.New("ssh host is required")

	// ErrConnection matches every *ConnectionError.
	ErrConnection = errors.New("ssh connection failed")

	// ErrNotConnected is returned by Run on a session that is not connected.
	ErrNotConnected = errors.New("session is not connected")

	// ErrSessionConnected is returned when parameters are reassigned while connected.
	ErrSessionConnected = errors.New("session is connected; close it before changing connection parameters")
)

// ConnectionError reports a failed transport handshake.
type ConnectionError struct {
	Address string
	Err     error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect to %s: %v", e.Address, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

func (e *ConnectionError) Is(target error) bool { return target == ErrConnection }

// ExecError wraps a remote command that exited with a non-zero status.
type ExecError struct {
	Command  string
	ExitCode int
	Stdout   []byte
	Stderr   []byte
}

func (e *ExecError) Error() string {
	msg := fmt.Sprintf("ssh command failed (exit=%d): %s", e.ExitCode, e.Command)
	if stderr := strings.TrimSpace(string(e.Stderr)); stderr != "" {
		msg += ": " + stderr
	}
	return msg
}

// HostKeyMismatchError reports a host presenting a key different from the one
// remembered for it.
type HostKeyMismatchError struct {
	Host        string
	Fingerprint string
}

func (e *HostKeyMismatchError) Error() string {
	return fmt.Sprintf("host key for %s changed (offered %s)", e.Host, e.Fingerprint)
}
