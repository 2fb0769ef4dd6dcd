package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/tOgg1/remotectl/internal/models"
)

// Process exit codes.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitUsage   = 2
)

var errorStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))

// UsageError is a malformed invocation: bad flags, arguments or values.
type UsageError struct {
	Err error
}

func (e *UsageError) Error() string { return e.Err.Error() }

func (e *UsageError) Unwrap() error { return e.Err }

// ExitError carries a specific exit code. Printed is set when the command
// already wrote its diagnostics.
type ExitError struct {
	Code    int
	Err     error
	Printed bool
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// ExitCode maps an error returned by Execute to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	var usageErr *UsageError
	if errors.As(err, &usageErr) || errors.Is(err, models.ErrValidation) {
		return ExitUsage
	}
	if strings.HasPrefix(err.Error(), "unknown command") {
		return ExitUsage
	}
	return ExitFailure
}

// RenderError writes err to w as a single styled line, unless the command
// already printed it.
func RenderError(w io.Writer, err error) {
	if err == nil {
		return
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Printed {
		return
	}
	fmt.Fprintln(w, errorStyle.Render("Error: "+err.Error()))
}
