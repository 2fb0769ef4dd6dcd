package mount

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tOgg1/remotectl/internal/command"
	"github.com/tOgg1/remotectl/internal/models"
)

func testParams(t *testing.T) models.ConnectionParameters {
	t.Helper()
	params, err := models.NewConnectionParameters("10.0.0.5", 22, "admin", "pw")
	require.NoError(t, err)
	return params
}

func allLetters() []DriveLetter {
	var letters []DriveLetter
	for l := DriveLetter('A'); l <= 'Z'; l++ {
		letters = append(letters, l)
	}
	return letters
}

func TestAllocateFreeLetterPicksSmallestUnassigned(t *testing.T) {
	tests := []struct {
		name     string
		assigned []DriveLetter
		want     DriveLetter
	}{
		{name: "empty table", want: 'A'},
		{name: "system drives", assigned: []DriveLetter{'A', 'C', 'D'}, want: 'B'},
		{name: "unsorted listing", assigned: []DriveLetter{'Z', 'A', 'B'}, want: 'C'},
		{name: "only z free", assigned: allLetters()[:25], want: 'Z'},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			drive := NewDrive(testParams(t), NewMemoryTable(tt.assigned...))
			got, err := drive.AllocateFreeLetter(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.NotContains(t, tt.assigned, got)
		})
	}
}

func TestAllocateFreeLetterAllAssigned(t *testing.T) {
	drive := NewDrive(testParams(t), NewMemoryTable(allLetters()...))
	_, err := drive.AllocateFreeLetter(context.Background())
	require.ErrorIs(t, err, ErrNoFreeLetter)

	_, ok := drive.Letter()
	assert.False(t, ok)
}

func TestAllocateFreeLetterIsCached(t *testing.T) {
	fake := &command.FakeCommander{Responses: []command.FakeResponse{
		{Output: "Caption  \r\nC:       \r\nD:       \r\n"},
		{Output: "Caption\nA:\nB:\nC:\nD:\n"},
	}}
	drive := NewDrive(testParams(t), NewNetUseTable(fake))

	first, err := drive.AllocateFreeLetter(context.Background())
	require.NoError(t, err)
	second, err := drive.AllocateFreeLetter(context.Background())
	require.NoError(t, err)

	assert.Equal(t, DriveLetter('A'), first)
	assert.Equal(t, first, second)
	assert.Len(t, fake.Calls, 1)
}

func TestMountAndReleaseUseNetUse(t *testing.T) {
	fake := &command.FakeCommander{Handler: func(cmd string, _ command.Options) (string, error) {
		if cmd == "wmic logicaldisk get caption" {
			return "Caption\nA:\nB:\nC:\n", nil
		}
		return "", nil
	}}
	drive := NewDrive(testParams(t), NewNetUseTable(fake))

	release, err := drive.Mount(context.Background(), "")
	require.NoError(t, err)
	require.NoError(t, release(context.Background()))
	require.NoError(t, release(context.Background()))

	cmds := fake.Commands()
	require.Len(t, cmds, 3)
	assert.Equal(t, "wmic logicaldisk get caption", cmds[0])
	assert.Equal(t, "net use D: /delete /y", cmds[2])

	argv, err := command.Split(cmds[1])
	require.NoError(t, err)
	assert.Equal(t, []string{"net", "use", "D:", `\\10.0.0.5\Public`}, argv)
}

func TestMountUsesRequestedShare(t *testing.T) {
	table := NewMemoryTable('C')
	drive := NewDrive(testParams(t), table)

	_, err := drive.Mount(context.Background(), "backups")
	require.NoError(t, err)

	letter, ok := drive.Letter()
	require.True(t, ok)
	share, mounted := table.Share(letter)
	require.True(t, mounted)
	assert.Equal(t, `\\10.0.0.5\backups`, share)
}

func TestUnmountBeforeMountIsNoop(t *testing.T) {
	fake := &command.FakeCommander{}
	drive := NewDrive(testParams(t), NewNetUseTable(fake))
	require.NoError(t, drive.Unmount(context.Background()))
	assert.Empty(t, fake.Calls)
}

func TestReleaseSwallowsDetachFailure(t *testing.T) {
	errBusy := errors.New("device busy")
	fake := &command.FakeCommander{Handler: func(cmd string, _ command.Options) (string, error) {
		if cmd == "net use A: /delete /y" {
			return "", errBusy
		}
		return "", nil
	}}
	drive := NewDrive(testParams(t), NewNetUseTable(fake))

	release, err := drive.Mount(context.Background(), "Public")
	require.NoError(t, err)
	require.NoError(t, release(context.Background()))
	require.ErrorIs(t, drive.Unmount(context.Background()), errBusy)
}

func TestParseDriveLetter(t *testing.T) {
	tests := []struct {
		in      string
		want    DriveLetter
		wantErr bool
	}{
		{in: "E", want: 'E'},
		{in: "e:", want: 'E'},
		{in: " Z: ", want: 'Z'},
		{in: "", wantErr: true},
		{in: "EF", wantErr: true},
		{in: "1:", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDriveLetter(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.True(t, got.Valid())
		})
	}
	assert.Equal(t, "E:", DriveLetter('E').String())
}
