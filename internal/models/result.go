package models

import "strings"

// SessionState is the externally observable state of a remote session.
type SessionState string

const (
	SessionDisconnected SessionState = "disconnected"
	SessionConnected    SessionState = "connected"
)

// CommandResult holds the streams of the last attempt of a command.
type CommandResult struct {
	// Stdout is the standard output of the last attempt.
	Stdout string `json:"stdout" yaml:"stdout"`

	// Stderr is the error stream of the last attempt.
	Stderr string `json:"stderr" yaml:"stderr"`

	// ExitStatus is nil until an attempt has completed.
	ExitStatus *int `json:"exit_status,omitempty" yaml:"exit_status,omitempty"`

	// Attempts is the number of attempts that were started.
	Attempts int `json:"attempts" yaml:"attempts"`
}

// Succeeded reports whether the last attempt exited with status 0.
func (r CommandResult) Succeeded() bool {
	return r.ExitStatus != nil && *r.ExitStatus == 0
}

// Output selects the stream to hand back to a caller. A non-zero exit always
// yields stderr; a zero exit yields stderr only when preferStderr is set.
// Leading and trailing whitespace is removed.
func (r CommandResult) Output(preferStderr bool) string {
	if !r.Succeeded() || preferStderr {
		return strings.TrimSpace(r.Stderr)
	}
	return strings.TrimSpace(r.Stdout)
}

// ExitCode returns the last exit status, or -1 when none was recorded.
func (r CommandResult) ExitCode() int {
	if r.ExitStatus == nil {
		return -1
	}
	return *r.ExitStatus
}

// SetExit records status as the exit status of the latest attempt.
func (r *CommandResult) SetExit(status int) {
	r.ExitStatus = &status
}
