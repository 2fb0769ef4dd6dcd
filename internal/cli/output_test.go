package cli

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/tOgg1/remotectl/internal/command"
	"github.com/tOgg1/remotectl/internal/models"
)

func TestExitCode(t *testing.T) {
	var verrs models.ValidationErrors
	verrs.AddMessage("host", "is required")

	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: ExitOK},
		{name: "plain", err: errors.New("boom"), want: ExitFailure},
		{name: "usage", err: &UsageError{Err: errors.New("bad flag")}, want: ExitUsage},
		{name: "validation", err: fmt.Errorf("wrapped: %w", verrs.Err()), want: ExitUsage},
		{name: "unknown command", err: errors.New(`unknown command "frob" for "remotectl"`), want: ExitUsage},
		{name: "explicit", err: &ExitError{Code: 7}, want: 7},
		{name: "command failed", err: &command.FailedError{Command: "x", ExitCode: 3}, want: ExitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func TestRenderError(t *testing.T) {
	var buf bytes.Buffer
	RenderError(&buf, errors.New("connection refused"))
	assert.Contains(t, buf.String(), "Error: connection refused")

	buf.Reset()
	RenderError(&buf, &ExitError{Code: 1, Err: errors.New("already shown"), Printed: true})
	assert.Empty(t, buf.String())

	buf.Reset()
	RenderError(&buf, nil)
	assert.Empty(t, buf.String())
}

func TestWriteOutputFormats(t *testing.T) {
	value := map[string]string{"letter": "E:"}

	prev := flagOutput
	t.Cleanup(func() { flagOutput = prev })

	flagOutput = outputJSON
	var buf bytes.Buffer
	require.NoError(t, WriteOutput(&buf, value))
	assert.JSONEq(t, `{"letter":"E:"}`, buf.String())

	flagOutput = outputYAML
	buf.Reset()
	require.NoError(t, WriteOutput(&buf, value))
	var decoded map[string]string
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, value, decoded)
	assert.True(t, strings.HasPrefix(buf.String(), "letter: "))
}

func TestValidateOutputFormat(t *testing.T) {
	for _, format := range []string{"text", "json", "yaml"} {
		require.NoError(t, validateOutputFormat(format))
	}
	err := validateOutputFormat("xml")
	var usage *UsageError
	require.ErrorAs(t, err, &usage)
}

func TestWriteTableAlignsAndClips(t *testing.T) {
	var buf bytes.Buffer
	long := strings.Repeat("x", maxCellWidth+20)
	err := writeTable(&buf, []string{"TYPE", "ID"}, [][]string{
		{"session.connected", "abc"},
		{"mount.attached", "E:"},
		{"transfer.failed", long},
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "TYPE               ID", lines[0])
	assert.Equal(t, "session.connected  abc", lines[1])
	assert.Equal(t, "mount.attached     E:", lines[2])
	assert.True(t, strings.HasSuffix(lines[3], "..."))
	assert.LessOrEqual(t, len(lines[3]), len("transfer.failed    ")+maxCellWidth)
}

func TestClipCellFlattensNewlines(t *testing.T) {
	assert.Equal(t, "a b c", clipCell("a\nb\n  c"))
	assert.Equal(t, "yes", formatYesNo(true))
	assert.Equal(t, "no", formatYesNo(false))
}
