//go:build integration

package ssh

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/tOgg1/remotectl/internal/models"
	"github.com/tOgg1/remotectl/internal/testutil"
)

const (
	sshdImage    = "linuxserver/openssh-server:latest"
	sshdUser     = "remotectl"
	sshdPassword = "integration-pw"
)

func setupSSHContainer(t *testing.T, ctx context.Context) models.ConnectionParameters {
	t.Helper()

	req := testcontainers.ContainerRequest{
		Image:        sshdImage,
		ExposedPorts: []string{"2222/tcp"},
		Env: map[string]string{
			"PASSWORD_ACCESS": "true",
			"USER_NAME":       sshdUser,
			"USER_PASSWORD":   sshdPassword,
		},
		WaitingFor: wait.ForListeningPort("2222/tcp").WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "failed to start sshd container")

	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "2222/tcp")
	require.NoError(t, err)

	params, err := models.NewConnectionParameters(resolveIPv4(t, host), port.Int(), sshdUser, sshdPassword)
	require.NoError(t, err)
	return params
}

func resolveIPv4(t *testing.T, host string) string {
	t.Helper()
	if host == "localhost" {
		return "127.0.0.1"
	}
	ips, err := net.LookupIP(host)
	require.NoError(t, err)
	for _, ip := range ips {
		if v4 := ip.To4(); v4 != nil {
			return v4.String()
		}
	}
	t.Fatalf("no IPv4 address for %s", host)
	return ""
}

func TestIntegrationSessionAgainstSSHD(t *testing.T) {
	testutil.SkipIfNoNetwork(t)
	ctx := context.Background()
	params := setupSSHContainer(t, ctx)

	s := NewSession(params, WithConnectTimeout(20*time.Second))

	// sshd may accept TCP before it is ready for auth; retry the handshake briefly.
	var err error
	for i := 0; i < 10; i++ {
		var release func(context.Context) error
		release, err = s.Connect(ctx)
		if err == nil {
			t.Cleanup(func() { _ = release(ctx) })
			break
		}
		time.Sleep(time.Second)
	}
	require.NoError(t, err)

	out, err := s.Run(ctx, "echo hi", DefaultRunOptions())
	require.NoError(t, err)
	require.Equal(t, "hi", out)

	out, err = s.Run(ctx, "echo oops >&2; exit 3", RunOptions{Timeout: 10 * time.Second, Retries: 1})
	require.NoError(t, err)
	require.Equal(t, "oops", out)

	status, ok := s.ExitStatus()
	require.True(t, ok)
	require.Equal(t, 3, status)
}
