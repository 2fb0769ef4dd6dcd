package transfer

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTransfer matches every *TransferError.
	ErrTransfer = errors.New("transfer failed")

	// ErrNotMounted is returned by MountVerifier before the drive is mounted.
	ErrNotMounted = errors.New("drive is not mounted")
)

// TransferError reports a copy that failed after the trust-on-first-use
// retry, or failed without offering a fingerprint.
type TransferError struct {
	Direction   Direction
	Attempts    int
	Fingerprint HostKeyFingerprint
	Output      string
	Err         error
}

func (e *TransferError) Error() string {
	msg := fmt.Sprintf("transfer %s failed after %d attempt(s)", e.Direction, e.Attempts)
	if e.Fingerprint != "" {
		msg += fmt.Sprintf(" (host key %s)", e.Fingerprint)
	}
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += ": " + out
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TransferError) Unwrap() error { return e.Err }

func (e *TransferError) Is(target error) bool { return target == ErrTransfer }
