package output

import (
	"bytes"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderer_Plain(t *testing.T) {
	tests := []struct {
		name string
		in   []Fragment
		want string
	}{
		{
			name: "empty",
			want: "",
		},
		{
			name: "console only",
			in:   []Fragment{{Control, "Start"}, {StdOut, "a"}, {StdOut, "b\n"}, {StdErr, "oops\n"}, {Control, "Finish"}},
			want: "ab\noops\n",
		},
		{
			name: "summary after unterminated output",
			in:   []Fragment{{StdOut, "no newline"}, {ExitCode, "0"}},
			want: "no newline\nExit Code: 0\n",
		},
		{
			name: "summary keeps emission order",
			in:   []Fragment{{CompilerMessageE, "err\n"}, {Signal, "11"}, {StdOut, "x\n"}, {ExitCode, "139"}},
			want: "err\nx\nSignal: 11\nExit Code: 139\n",
		},
		{
			name: "tabs preserved",
			in:   []Fragment{{StdOut, "a\tb\n"}},
			want: "a\tb\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, NewRenderer(&buf).Render(tt.in))
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestRenderer_Color(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, WithColor(true))
	require.NoError(t, r.Render([]Fragment{
		{StdOut, "plain\n"},
		{StdErr, "line1\n\nline3\n"},
		{ExitCode, "1"},
	}))

	out := buf.String()
	assert.Contains(t, out, "plain\n")
	assert.Contains(t, out, "\x1b[")
	assert.Contains(t, out, "line1")
	assert.Contains(t, out, "line3")
	assert.Contains(t, out, "Exit Code:")
	// Blank lines inside a styled block stay blank.
	assert.Contains(t, out, "\n\n")
}

func TestRenderer_SummaryLabel(t *testing.T) {
	r := NewRenderer(io.Discard)
	assert.Equal(t, "Signal", r.SummaryLabel(Signal))
	assert.Equal(t, "Exit Code", r.SummaryLabel(ExitCode))
}

type failWriter struct{}

func (failWriter) Write([]byte) (int, error) { return 0, io.ErrClosedPipe }

func TestRenderer_WriteError(t *testing.T) {
	err := NewRenderer(failWriter{}).Render([]Fragment{{StdOut, "x"}})
	assert.ErrorIs(t, err, io.ErrClosedPipe)
}

func TestColorMode(t *testing.T) {
	prev := isTerminal
	t.Cleanup(func() { isTerminal = prev })
	isTerminal = func(io.Writer) bool { return true }

	m, err := ParseColorMode("")
	require.NoError(t, err)
	assert.Equal(t, ColorAuto, m)
	_, err = ParseColorMode("sometimes")
	assert.Error(t, err)

	assert.True(t, ColorAlways.Enabled(io.Discard))
	assert.False(t, ColorNever.Enabled(io.Discard))

	t.Setenv("NO_COLOR", "1")
	assert.False(t, ColorAuto.Enabled(io.Discard))
}

func TestColorMode_AutoFollowsTerminal(t *testing.T) {
	prev := isTerminal
	t.Cleanup(func() { isTerminal = prev })

	isTerminal = func(io.Writer) bool { return false }
	assert.False(t, ColorAuto.Enabled(io.Discard))
	isTerminal = func(io.Writer) bool { return true }
	t.Setenv("NO_COLOR", "")
	require.NoError(t, os.Unsetenv("NO_COLOR"))
	assert.True(t, ColorAuto.Enabled(io.Discard))
}
