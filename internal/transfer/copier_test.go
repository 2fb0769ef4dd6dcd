package transfer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tOgg1/remotectl/internal/command"
	"github.com/tOgg1/remotectl/internal/events"
	"github.com/tOgg1/remotectl/internal/models"
	"github.com/tOgg1/remotectl/internal/mount"
)

const unknownHostOutput = `The server's host key is not cached in the registry. You have no
guarantee that the server is the computer you think it is.
The server's ssh-ed25519 key fingerprint is:
  ssh-ed25519 256 SHA256:abc123+/=
Connection abandoned.`

func testParams(t *testing.T, port int) models.ConnectionParameters {
	t.Helper()
	params, err := models.NewConnectionParameters("10.0.0.5", port, "admin", "s3cret")
	require.NoError(t, err)
	return params
}

func TestExtractFingerprint(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   HostKeyFingerprint
		found  bool
	}{
		{name: "ed25519 prompt", output: unknownHostOutput, want: "ssh-ed25519 256 SHA256:abc123+/=", found: true},
		{name: "rsa", output: "ssh-rsa 2048 SHA256:Zm9vYmFy", want: "ssh-rsa 2048 SHA256:Zm9vYmFy", found: true},
		{name: "first match wins", output: "ssh-rsa 2048 SHA256:AAA\nssh-ed25519 256 SHA256:BBB", want: "ssh-rsa 2048 SHA256:AAA", found: true},
		{name: "md5 only", output: "ssh-rsa 2048 aa:bb:cc", found: false},
		{name: "access denied", output: "Access denied", found: false},
		{name: "empty", output: "", found: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractFingerprint(tt.output)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCopyTrustsOfferedHostKeyOnce(t *testing.T) {
	fake := &command.FakeCommander{Responses: []command.FakeResponse{
		{Stderr: unknownHostOutput, ExitCode: 1},
		{Output: "file.txt | 1 kB | 1.0 kB/s | ETA: 00:00:00 | 100%"},
	}}
	copier := NewCopier(testParams(t, 22), fake, WithVerify(false))

	report, err := copier.Copy(context.Background(), `C:\data\file.txt`, "/upload/file.txt", ToRemote)
	require.NoError(t, err)

	require.Len(t, fake.Calls, 2)
	assert.Equal(t,
		`pscp -batch -ssh -pw "s3cret" "C:\\data\\file.txt" "admin@10.0.0.5:/upload/file.txt"`,
		fake.Calls[0].Command)
	assert.Equal(t,
		`pscp -batch -ssh -pw "s3cret" -hostkey "ssh-ed25519 256 SHA256:abc123+/=" "C:\\data\\file.txt" "admin@10.0.0.5:/upload/file.txt"`,
		fake.Calls[1].Command)

	assert.False(t, fake.Calls[0].Options.Check)
	assert.True(t, fake.Calls[1].Options.Check)
	assert.Equal(t, 1, fake.Calls[0].Options.Retries)
	assert.Equal(t, 1, fake.Calls[1].Options.Retries)

	assert.Equal(t, 2, report.Attempts)
	assert.Equal(t, HostKeyFingerprint("ssh-ed25519 256 SHA256:abc123+/="), report.Fingerprint)
}

func TestCopyFirstSuccessIsFinal(t *testing.T) {
	fake := &command.FakeCommander{}
	copier := NewCopier(testParams(t, 2222), fake, WithVerify(false), WithBinary("scp-tool"))

	report, err := copier.Copy(context.Background(), "/tmp/out", `C:\Users\Public\report.csv`, FromRemote)
	require.NoError(t, err)

	require.Len(t, fake.Calls, 1)
	assert.Equal(t,
		`scp-tool -batch -ssh -pw "s3cret" -P 2222 "admin@10.0.0.5:C:\\Users\\Public\\report.csv" "/tmp/out"`,
		fake.Calls[0].Command)
	assert.Equal(t, 1, report.Attempts)
	assert.Empty(t, report.Fingerprint)
}

func TestCopyWithoutFingerprintFails(t *testing.T) {
	fake := &command.FakeCommander{Responses: []command.FakeResponse{
		{Stderr: "Access denied", ExitCode: 1},
	}}
	copier := NewCopier(testParams(t, 22), fake, WithVerify(false))

	_, err := copier.Copy(context.Background(), "/tmp/a.txt", "/b.txt", ToRemote)
	require.ErrorIs(t, err, ErrTransfer)

	var terr *TransferError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, 1, terr.Attempts)
	assert.Empty(t, terr.Fingerprint)
	assert.Contains(t, terr.Output, "Access denied")
	assert.Len(t, fake.Calls, 1)
}

func TestCopyRetryFailureIsFatal(t *testing.T) {
	fake := &command.FakeCommander{Responses: []command.FakeResponse{
		{Stderr: unknownHostOutput, ExitCode: 1},
		{Stderr: "s3cret rejected: permission denied", ExitCode: 1},
		{Output: "never reached"},
	}}
	copier := NewCopier(testParams(t, 22), fake, WithVerify(false))

	_, err := copier.Copy(context.Background(), "/tmp/a.txt", "/b.txt", ToRemote)
	require.ErrorIs(t, err, ErrTransfer)

	var terr *TransferError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, 2, terr.Attempts)
	assert.Equal(t, HostKeyFingerprint("ssh-ed25519 256 SHA256:abc123+/="), terr.Fingerprint)
	assert.Contains(t, terr.Output, "permission denied")
	assert.NotContains(t, terr.Output, "s3cret")
	assert.Len(t, fake.Calls, 2)
}

func TestCopyRunnerErrorIsWrapped(t *testing.T) {
	timeout := &command.TimeoutError{Command: "pscp", Attempt: 1}
	fake := &command.FakeCommander{Responses: []command.FakeResponse{{Err: timeout}}}
	copier := NewCopier(testParams(t, 22), fake)

	_, err := copier.Copy(context.Background(), "/tmp/a.txt", "/b.txt", ToRemote)
	require.ErrorIs(t, err, ErrTransfer)
	require.ErrorIs(t, err, command.ErrTimeout)
}

func TestCopyRejectsInvalidRequest(t *testing.T) {
	fake := &command.FakeCommander{}
	copier := NewCopier(testParams(t, 22), fake)

	_, err := copier.Copy(context.Background(), "", " ", Direction(7))
	require.ErrorIs(t, err, models.ErrValidation)

	var verrs *models.ValidationErrors
	require.True(t, errors.As(err, &verrs))
	assert.Equal(t, []string{"local_path", "remote_path", "direction"}, verrs.Fields())
	assert.Empty(t, fake.Calls)
}

type verifyFunc func(ctx context.Context, req Request) error

func (f verifyFunc) Verify(ctx context.Context, req Request) error { return f(ctx, req) }

func TestCopyVerificationIsInformational(t *testing.T) {
	fake := &command.FakeCommander{}
	var verified []Request
	copier := NewCopier(testParams(t, 22), fake, WithVerifier(verifyFunc(func(_ context.Context, req Request) error {
		verified = append(verified, req)
		return errors.New("listing failed")
	})))

	report, err := copier.Copy(context.Background(), "/tmp/a.txt", "/b.txt", ToRemote)
	require.NoError(t, err)
	assert.False(t, report.Verified)
	require.Len(t, verified, 1)
	assert.Equal(t, "a.txt", verified[0].FileName())
}

func TestCopyFromRemoteVerifiesLocalDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "report.csv"), []byte("x"), 0o600))

	copier := NewCopier(testParams(t, 22), &command.FakeCommander{})
	report, err := copier.Copy(context.Background(), dir, `C:\Users\Public\report.csv`, FromRemote)
	require.NoError(t, err)
	assert.True(t, report.Verified)

	report, err = copier.Copy(context.Background(), dir, `C:\Users\Public\missing.csv`, FromRemote)
	require.NoError(t, err)
	assert.False(t, report.Verified)
}

func TestLocalVerifierFileDestination(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "renamed.csv")
	require.NoError(t, os.WriteFile(dest, []byte("x"), 0o600))

	err := LocalVerifier{}.Verify(context.Background(), Request{LocalPath: dest, RemotePath: "/r/orig.csv", Direction: FromRemote})
	require.NoError(t, err)
}

func TestMountVerifier(t *testing.T) {
	params := testParams(t, 22)
	drive := mount.NewDrive(params, mount.NewMemoryTable('A', 'B', 'C'))

	root := t.TempDir()
	verifier := MountVerifier{Drive: drive, Root: func(mount.DriveLetter) string { return root }}
	req := Request{LocalPath: `C:\data\upload.bin`, RemotePath: "upload.bin", Direction: ToRemote}

	require.ErrorIs(t, verifier.Verify(context.Background(), req), ErrNotMounted)

	_, err := drive.Mount(context.Background(), "")
	require.NoError(t, err)
	require.Error(t, verifier.Verify(context.Background(), req))

	require.NoError(t, os.WriteFile(filepath.Join(root, "upload.bin"), []byte("x"), 0o600))
	require.NoError(t, verifier.Verify(context.Background(), req))
}

func TestCopyPublishesEvents(t *testing.T) {
	pub := events.NewInMemoryPublisher()
	var got []models.EventType
	require.NoError(t, pub.Subscribe("test", events.Filter{}, func(e *models.Event) {
		got = append(got, e.Type)
		assert.Equal(t, models.EntityTypeTransfer, e.EntityType)
		assert.Equal(t, "10.0.0.5", e.EntityID)
		assert.False(t, strings.Contains(string(e.Payload), "s3cret"))
	}))

	fake := &command.FakeCommander{Responses: []command.FakeResponse{
		{Stderr: unknownHostOutput, ExitCode: 1},
		{},
		{Stderr: "Access denied", ExitCode: 1},
	}}
	copier := NewCopier(testParams(t, 22), fake, WithVerify(false), WithPublisher(pub))

	_, err := copier.Copy(context.Background(), "/tmp/a.txt", "/b.txt", ToRemote)
	require.NoError(t, err)
	_, err = copier.Copy(context.Background(), "/tmp/a.txt", "/b.txt", ToRemote)
	require.Error(t, err)

	assert.Equal(t, []models.EventType{
		models.EventTypeHostKeyTrusted,
		models.EventTypeTransferCompleted,
		models.EventTypeTransferFailed,
	}, got)
}

func TestBaseName(t *testing.T) {
	tests := map[string]string{
		`C:\data\file.txt`: "file.txt",
		"/tmp/file.txt":    "file.txt",
		"file.txt":         "file.txt",
		"/tmp/dir/":        "dir",
		`mixed/dir\x.bin`:  "x.bin",
	}
	for in, want := range tests {
		assert.Equal(t, want, baseName(in), in)
	}
}

func TestDirectionString(t *testing.T) {
	assert.Equal(t, "to-remote", ToRemote.String())
	assert.Equal(t, "from-remote", FromRemote.String())
	assert.Equal(t, "unknown", Direction(9).String())
}
