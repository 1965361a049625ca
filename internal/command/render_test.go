package command

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const renderInput = `{"type":"Control","data":"Start"}
{"type":"CompilerMessageE","data":"warning: x\n"}
{"type":"StdOut","data":"1"}
{"type":"StdOut","data":"2"}
{"type":"Signal","data":"Killed"}
{"type":"ExitCode","data":"137"}
{"type":"Control","data":"Finish"}
`

func TestRenderCommand_Stdin(t *testing.T) {
	cfg := testConfig(t)
	cmd := NewRenderCommand(cfg)
	cmd.stdin = strings.NewReader(renderInput)

	stdout, _, err := runCommand(t, cmd, "-color", "never")
	require.NoError(t, err)
	assert.Equal(t, "warning: x\n12\nSignal: Killed\nExit Code: 137\n", stdout)
}

func TestRenderCommand_FileWithColor(t *testing.T) {
	cfg := testConfig(t)
	path := writeFile(t, t.TempDir(), "out.ndjson", renderInput)

	stdout, _, err := runCommand(t, NewRenderCommand(cfg), "-color", "always", path)
	require.NoError(t, err)
	assert.Contains(t, stdout, "\x1b[")
	assert.Contains(t, stdout, "12")

	cfg.SetGlobalOption("color", "never")
	stdout, _, err = runCommand(t, NewRenderCommand(cfg), path)
	require.NoError(t, err)
	assert.NotContains(t, stdout, "\x1b[")
}

func TestRenderCommand_Errors(t *testing.T) {
	cfg := testConfig(t)

	_, _, err := runCommand(t, NewRenderCommand(cfg), "a", "b")
	assert.ErrorIs(t, err, ErrUsage)

	_, _, err = runCommand(t, NewRenderCommand(cfg), "-color", "sometimes")
	assert.ErrorIs(t, err, ErrUsage)

	_, _, err = runCommand(t, NewRenderCommand(cfg), "missing.ndjson")
	assert.Error(t, err)

	cmd := NewRenderCommand(cfg)
	cmd.stdin = strings.NewReader(`{"type":"Bogus","data":""}`)
	_, _, err = runCommand(t, cmd, "-color", "never")
	assert.Error(t, err)
}
