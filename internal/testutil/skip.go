// Package testutil holds helpers shared by package tests.
package testutil

import (
	"os"
	"os/exec"
	"runtime"
	"testing"
)

// SkipIfNoNetwork skips the test if REMOTECTL_TEST_SKIP_NETWORK is set.
// Use this for tests that require TCP/network connectivity, including
// loopback listeners, which may not be available in sandboxed environments.
func SkipIfNoNetwork(t *testing.T) {
	t.Helper()
	if os.Getenv("REMOTECTL_TEST_SKIP_NETWORK") != "" {
		t.Skip("skipping network test: REMOTECTL_TEST_SKIP_NETWORK is set")
	}
}

// RequireBinary skips the test unless name is on PATH and returns its path.
func RequireBinary(t *testing.T, name string) string {
	t.Helper()
	path, err := exec.LookPath(name)
	if err != nil {
		t.Skipf("%s not installed", name)
	}
	return path
}

// SkipOnWindows skips tests that rely on POSIX utilities.
func SkipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("test uses POSIX utilities")
	}
}
