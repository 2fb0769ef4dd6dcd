// Package procutil makes a timed-out child process take its descendants down
// with it.
package procutil

import (
	"os/exec"
	"time"
)

// Isolate starts cmd in its own process group. Cancelling the command's
// context kills the whole tree, and Wait stops waiting on pipes inherited by
// stray grandchildren after waitDelay.
func Isolate(cmd *exec.Cmd, waitDelay time.Duration) {
	if cmd == nil {
		return
	}
	setGroup(cmd)
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return killTree(cmd.Process)
	}
	cmd.WaitDelay = waitDelay
}
