//go:build !windows

package procutil

import (
	"bytes"
	"context"
	"os/exec"
	"testing"
	"time"
)

func TestIsolateConfiguresCommand(t *testing.T) {
	cmd := exec.Command("/bin/sh", "-c", "true")
	Isolate(cmd, time.Second)
	if cmd.SysProcAttr == nil || !cmd.SysProcAttr.Setpgid {
		t.Fatalf("expected Setpgid")
	}
	if cmd.Cancel == nil {
		t.Fatalf("expected Cancel set")
	}
	if cmd.WaitDelay != time.Second {
		t.Fatalf("WaitDelay = %v, want 1s", cmd.WaitDelay)
	}
}

func TestIsolateCancelKillsGrandchildren(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The shell forks sleep and waits on it; killing only the shell would
	// leave sleep holding the output pipe.
	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", "sleep 30 & wait")
	Isolate(cmd, 2*time.Second)
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	start := time.Now()
	cancel()
	if err := cmd.Wait(); err == nil {
		t.Fatalf("expected an error from a killed command")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("wait took %v after cancel", elapsed)
	}
}
