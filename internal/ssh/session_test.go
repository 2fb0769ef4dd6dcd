package ssh

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tOgg1/remotectl/internal/command"
	"github.com/tOgg1/remotectl/internal/events"
	"github.com/tOgg1/remotectl/internal/models"
	"github.com/tOgg1/remotectl/internal/retry"
)

const testPassword = "s3cret"

func scriptedServer(t *testing.T) *testServer {
	return startTestServer(t, testPassword, func(cmd string, attempt int) reply {
		switch cmd {
		case "echo hi":
			return reply{stdout: "hi\n"}
		case "exit 1":
			return reply{stderr: "boom\n", exit: 1}
		case "flaky":
			if attempt == 1 {
				return reply{stderr: "not yet\n", exit: 7}
			}
			return reply{stdout: "  ready  \n"}
		case "warn":
			return reply{stdout: "out\n", stderr: "  warning  \n"}
		case "slow":
			return reply{stdout: "late\n", delay: 400 * time.Millisecond}
		}
		return reply{stderr: "unknown command\n", exit: 127}
	})
}

func newTestSession(t *testing.T, srv *testServer, opts ...SessionOption) (*Session, *retry.RecordingTimer) {
	t.Helper()
	params, err := models.NewConnectionParameters("127.0.0.1", srv.Port(), "tester", testPassword)
	require.NoError(t, err)

	timer := retry.NewRecordingTimer()
	opts = append([]SessionOption{WithRetryTimer(timer), WithDialer(NativeDialer{})}, opts...)
	return NewSession(params, opts...), timer
}

func connect(t *testing.T, s *Session) {
	t.Helper()
	release, err := s.Connect(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = release(context.Background()) })
}

func TestSessionRunEchoSingleAttempt(t *testing.T) {
	srv := scriptedServer(t)
	s, timer := newTestSession(t, srv)
	connect(t, s)

	out, err := s.Run(context.Background(), "echo hi", DefaultRunOptions())
	require.NoError(t, err)
	assert.Equal(t, "hi", out)

	status, ok := s.ExitStatus()
	require.True(t, ok)
	assert.Equal(t, 0, status)

	last, ok := s.LastResult()
	require.True(t, ok)
	assert.Equal(t, 1, last.Attempts)
	assert.Empty(t, timer.Delays())
}

func TestSessionRunExhaustsRetriesAndReturnsStderr(t *testing.T) {
	srv := scriptedServer(t)
	s, timer := newTestSession(t, srv)
	connect(t, s)

	out, err := s.Run(context.Background(), "exit 1", DefaultRunOptions())
	require.NoError(t, err)
	assert.Equal(t, "boom", out)

	status, ok := s.ExitStatus()
	require.True(t, ok)
	assert.Equal(t, 1, status)
	assert.Len(t, srv.Commands(), 3)
	assert.Equal(t, []time.Duration{time.Second, time.Second}, timer.Delays())

	// stderr is returned for a failing command even when stdout is preferred.
	opts := DefaultRunOptions()
	opts.Retries = 1
	out, err = s.Run(context.Background(), "exit 1", opts)
	require.NoError(t, err)
	assert.Equal(t, "boom", out)
}

func TestSessionRunCheckedSurfacesCommandFailed(t *testing.T) {
	srv := scriptedServer(t)
	s, _ := newTestSession(t, srv)
	connect(t, s)

	_, err := s.RunChecked(context.Background(), "exit 1", DefaultRunOptions())
	require.Error(t, err)
	require.True(t, errors.Is(err, command.ErrCommandFailed))

	var failed *command.FailedError
	require.True(t, errors.As(err, &failed))
	assert.Equal(t, 3, failed.Attempts)
	assert.Equal(t, 1, failed.ExitCode)
	assert.Contains(t, err.Error(), "boom")
}

func TestSessionRunKeepsOnlyLastAttempt(t *testing.T) {
	srv := scriptedServer(t)
	s, timer := newTestSession(t, srv)
	connect(t, s)

	out, err := s.Run(context.Background(), "flaky", DefaultRunOptions())
	require.NoError(t, err)
	assert.Equal(t, "ready", out)

	last, _ := s.LastResult()
	assert.Equal(t, 2, last.Attempts)
	assert.Empty(t, last.Stderr)
	assert.Len(t, timer.Delays(), 1)
}

func TestSessionRunPreferStderr(t *testing.T) {
	srv := scriptedServer(t)
	s, _ := newTestSession(t, srv)
	connect(t, s)

	opts := DefaultRunOptions()
	opts.PreferStderr = true
	out, err := s.Run(context.Background(), "warn", opts)
	require.NoError(t, err)
	assert.Equal(t, "warning", out)

	out, err = s.Run(context.Background(), "warn", DefaultRunOptions())
	require.NoError(t, err)
	assert.Equal(t, "out", out)
}

func TestSessionRunTimeoutCountsAsAttempt(t *testing.T) {
	srv := scriptedServer(t)
	s, timer := newTestSession(t, srv)
	connect(t, s)

	opts := RunOptions{Timeout: 50 * time.Millisecond, Retries: 2}
	_, err := s.Run(context.Background(), "slow", opts)
	require.Error(t, err)
	require.True(t, errors.Is(err, command.ErrTimeout))

	var timeout *command.TimeoutError
	require.True(t, errors.As(err, &timeout))
	assert.Equal(t, 2, timeout.Attempt)
	assert.Len(t, timer.Delays(), 1)

	_, ok := s.ExitStatus()
	assert.False(t, ok)
}

func TestSessionRunRequiresConnection(t *testing.T) {
	srv := scriptedServer(t)
	s, _ := newTestSession(t, srv)

	_, err := s.Run(context.Background(), "echo hi", DefaultRunOptions())
	require.ErrorIs(t, err, ErrNotConnected)
	assert.Empty(t, srv.Commands())
}

func TestSessionParametersLockedWhileConnected(t *testing.T) {
	srv := scriptedServer(t)
	s, _ := newTestSession(t, srv)
	connect(t, s)

	other, err := models.NewConnectionParameters("10.0.0.9", 22, "other", "pw")
	require.NoError(t, err)
	require.ErrorIs(t, s.SetConnectionParameters(other), ErrSessionConnected)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.Equal(t, models.SessionDisconnected, s.State())

	require.NoError(t, s.SetConnectionParameters(other))
	assert.Equal(t, "10.0.0.9", s.Parameters().Host())
}

func TestSetConnectionParametersRawRejectsBeforeNetwork(t *testing.T) {
	dials := 0
	dialer := DialerFunc(func(context.Context, ConnectionOptions) (Executor, error) {
		dials++
		return nil, errors.New("unexpected dial")
	})
	s := NewSession(models.ConnectionParameters{}, WithDialer(dialer))

	err := s.SetConnectionParametersRaw("10.0.0.1", 70000, "admin", "pw")
	require.Error(t, err)
	require.ErrorIs(t, err, models.ErrValidation)

	var verrs *models.ValidationErrors
	require.True(t, errors.As(err, &verrs))
	assert.True(t, verrs.HasField("port"))
	assert.Zero(t, dials)
	assert.True(t, s.Parameters().IsZero())
}

func TestSessionConnectFailureLeavesDisconnected(t *testing.T) {
	srv := scriptedServer(t)
	params, err := models.NewConnectionParameters("127.0.0.1", srv.Port(), "tester", "wrong")
	require.NoError(t, err)

	s := NewSession(params, WithDialer(NativeDialer{}), WithConnectTimeout(2*time.Second))
	release, err := s.Connect(context.Background())
	require.Error(t, err)
	assert.Nil(t, release)
	assert.True(t, errors.Is(err, ErrConnection))

	var connErr *ConnectionError
	require.True(t, errors.As(err, &connErr))
	assert.Equal(t, params.Address(), connErr.Address)
	assert.Equal(t, models.SessionDisconnected, s.State())
}

func TestSessionPublishesLifecycleEvents(t *testing.T) {
	srv := scriptedServer(t)
	pub := events.NewInMemoryPublisher()

	var got []models.EventType
	require.NoError(t, pub.Subscribe("test", events.Filter{EntityTypes: []models.EntityType{models.EntityTypeSession}}, func(e *models.Event) {
		got = append(got, e.Type)
	}))

	s, _ := newTestSession(t, srv, WithPublisher(pub))
	release, err := s.Connect(context.Background())
	require.NoError(t, err)

	require.NoError(t, release(context.Background()))
	require.NoError(t, release(context.Background()))
	assert.Equal(t, []models.EventType{models.EventTypeSessionConnected, models.EventTypeSessionClosed}, got)
}

func TestRememberingHostKeysPersistsAndRejectsChangedKey(t *testing.T) {
	srv := scriptedServer(t)
	path := filepath.Join(t.TempDir(), "known_hosts")

	s, _ := newTestSession(t, srv, WithHostKeys(NewRememberingHostKeys(path)))
	connect(t, s)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "[127.0.0.1]:"))

	// A second server on a different port has its own entry; reuse the file
	// to check that a changed key for the same address is refused.
	hostKeys := NewRememberingHostKeys(path)
	imposter := startTestServer(t, testPassword, func(string, int) reply { return reply{} })
	err = hostKeys.Callback()(srv.addr.String(), srv.addr, imposter.hostKey.PublicKey())

	var mismatch *HostKeyMismatchError
	require.True(t, errors.As(err, &mismatch))

	require.NoError(t, hostKeys.Callback()(srv.addr.String(), srv.addr, srv.hostKey.PublicKey()))
	_, ok := hostKeys.Known(srv.addr.String())
	assert.True(t, ok)
}

func TestRememberingHostKeysInMemory(t *testing.T) {
	hostKeys := NewRememberingHostKeys("")
	first := startTestServer(t, testPassword, func(string, int) reply { return reply{} })
	second := startTestServer(t, testPassword, func(string, int) reply { return reply{} })

	cb := hostKeys.Callback()
	require.NoError(t, cb("10.0.0.1:22", first.addr, first.hostKey.PublicKey()))
	require.NoError(t, cb("10.0.0.1:22", first.addr, first.hostKey.PublicKey()))
	require.Error(t, cb("10.0.0.1:22", first.addr, second.hostKey.PublicKey()))
}

func TestNativeExecutorRequiresHost(t *testing.T) {
	_, err := NewNativeExecutor(context.Background(), ConnectionOptions{Password: "x"}, nil)
	require.ErrorIs(t, err, ErrMissingHost)
}

func TestTargetAddr(t *testing.T) {
	tests := []struct {
		options ConnectionOptions
		want    string
	}{
		{options: ConnectionOptions{Host: "10.0.0.1"}, want: "10.0.0.1:22"},
		{options: ConnectionOptions{Host: "10.0.0.1", Port: 2222}, want: "10.0.0.1:2222"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := targetAddr(tt.options); got != tt.want {
				t.Errorf("targetAddr() = %v, want %v", got, tt.want)
			}
		})
	}
}
