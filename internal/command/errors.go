package command

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrEmptyCommand indicates no command text was provided.
	ErrEmptyCommand = errors.New("command is empty")

	// ErrTimeout matches every *TimeoutError.
	ErrTimeout = errors.New("command timed out")

	// ErrCommandFailed matches every *FailedError.
	ErrCommandFailed = errors.New("command failed")
)

// TimeoutError reports an attempt that exceeded its allotted time.
type TimeoutError struct {
	Command string
	Timeout time.Duration
	Attempt int
	Stderr  string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("command timed out after %s (attempt %d): %s", e.Timeout, e.Attempt, e.Command)
}

// Is matches ErrTimeout.
func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// FailedError wraps a command whose final attempt exited non-zero.
type FailedError struct {
	Command  string
	ExitCode int
	Stdout   string
	Stderr   string
	Attempts int
}

func (e *FailedError) Error() string {
	msg := fmt.Sprintf("command failed (exit=%d, attempts=%d): %s", e.ExitCode, e.Attempts, e.Command)
	if diag := strings.TrimSpace(e.Stderr); diag != "" {
		msg += ": " + diag
	}
	return msg
}

// Is matches ErrCommandFailed.
func (e *FailedError) Is(target error) bool {
	return target == ErrCommandFailed
}
