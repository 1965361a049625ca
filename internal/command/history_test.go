package command

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeycumines/canine/internal/config"
	"github.com/joeycumines/canine/internal/history"
	"github.com/joeycumines/canine/internal/kvstore"
)

// seedHistory saves quicksave #0 (gcc, main.cpp), history #1 ("hello",
// clang, with results) and quicksave #2 (gcc, other.cpp).
func seedHistory(t *testing.T, cfg *config.Config) {
	t.Helper()
	dir := workdir(t)
	writeFile(t, dir, "main.cpp", "int main() {}\n")
	writeFile(t, dir, "other.cpp", "// other")
	writeFile(t, dir, "results.json",
		`[{"type":"StdOut","data":"hi"},{"type":"StdOut","data":"!\n"},{"type":"ExitCode","data":"0"}]`)

	_, _, err := runCommand(t, NewQuickSaveCommand(cfg), "-compiler", "gcc-head", "main.cpp")
	require.NoError(t, err)
	_, _, err = runCommand(t, NewSaveCommand(cfg), "-title", "hello", "-compiler", "clang-head",
		"-compiler-options", `-O2 "-DMSG=a b"`, "-results", "results.json", "main.cpp")
	require.NoError(t, err)
	_, _, err = runCommand(t, NewQuickSaveCommand(cfg), "-compiler", "gcc-head", "other.cpp")
	require.NoError(t, err)
}

func TestHistoryList(t *testing.T) {
	cfg := testConfig(t)
	seedHistory(t, cfg)

	stdout, _, err := runCommand(t, NewHistoryCommand(cfg), "list")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 4)
	assert.Regexp(t, `^ID\s+KIND\s+CREATED\s+COMPILER\s+TITLE$`, lines[0])
	assert.Regexp(t, `^0\s+quicksave\s+.*gcc-head\s+main\.cpp$`, lines[1])
	assert.Regexp(t, `^2\s+quicksave\s+.*gcc-head\s+other\.cpp$`, lines[2])
	assert.Regexp(t, `^1\s+history\s+.*clang-head\s+hello$`, lines[3])

	bare, _, err := runCommand(t, NewHistoryCommand(cfg))
	require.NoError(t, err)
	assert.Equal(t, stdout, bare)
}

func TestHistoryList_KindAndFilter(t *testing.T) {
	cfg := testConfig(t)
	seedHistory(t, cfg)

	ids := func(args ...string) []int {
		t.Helper()
		stdout, _, err := runCommand(t, NewHistoryCommand(cfg), append([]string{"list", "-format", "json"}, args...)...)
		require.NoError(t, err)
		var items []listItem
		require.NoError(t, json.Unmarshal([]byte(stdout), &items))
		out := []int{}
		for _, item := range items {
			out = append(out, item.ID)
		}
		return out
	}

	assert.Equal(t, []int{0, 2, 1}, ids())
	assert.Equal(t, []int{1}, ids("-kind", "history"))
	assert.Equal(t, []int{0, 2}, ids("-kind", "quicksave"))
	assert.Equal(t, []int{1}, ids("-filter", `compiler startsWith "clang"`))
	assert.Equal(t, []int{1}, ids("-filter", `hasResults && exitCode == "0"`))
	assert.Equal(t, []int{2}, ids("-filter", `"other.cpp" in files`))
	assert.Equal(t, []int{1}, ids("-filter", `"-O2" in options`))
	assert.Equal(t, []int{0, 2}, ids("-kind", "quicksave", "-filter", `id >= 0`))
	assert.Equal(t, []int{}, ids("-filter", `title == "nope"`))
}

func TestHistoryList_UsageErrors(t *testing.T) {
	cfg := testConfig(t)
	for _, args := range [][]string{
		{"list", "-kind", "everything"},
		{"list", "-filter", "id +"},
		{"list", "-filter", `title`},
		{"list", "-format", "xml"},
		{"list", "extra"},
		{"frobnicate"},
	} {
		_, _, err := runCommand(t, NewHistoryCommand(cfg), args...)
		assert.ErrorIs(t, err, ErrUsage, "%v", args)
	}
}

func TestHistoryList_Empty(t *testing.T) {
	cfg := testConfig(t)
	stdout, _, err := runCommand(t, NewHistoryCommand(cfg), "list")
	require.NoError(t, err)
	assert.Equal(t, "No saved sessions.\n", stdout)
}

func TestHistoryList_TitleWidth(t *testing.T) {
	cfg := testConfig(t)
	dir := workdir(t)
	writeFile(t, dir, "a.c", "a")
	_, _, err := runCommand(t, NewSaveCommand(cfg), "-title", "a rather long title for a session", "a.c")
	require.NoError(t, err)

	cfg.SetCommandOption("history", config.KeyHistoryTitleWidth, "10")
	stdout, _, err := runCommand(t, NewHistoryCommand(cfg), "list")
	require.NoError(t, err)
	assert.Contains(t, stdout, "a rather …\n")
	assert.NotContains(t, stdout, "long title")
}

func TestTruncate(t *testing.T) {
	t.Parallel()
	for _, tc := range []struct {
		in    string
		width int
		want  string
	}{
		{"short", 10, "short"},
		{"exactly", 7, "exactly"},
		{"hello world", 8, "hello w…"},
		{"日本語テキスト", 6, "日本…"},
		{"éééé", 3, "éé…"},
	} {
		assert.Equal(t, tc.want, truncate(tc.in, tc.width), "truncate(%q, %d)", tc.in, tc.width)
	}
}

func TestHistoryShow(t *testing.T) {
	cfg := testConfig(t)
	seedHistory(t, cfg)

	stdout, _, err := runCommand(t, NewHistoryCommand(cfg), "show", "-color", "never", "1")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stdout, "#1 (history) hello\n"), stdout)
	assert.Regexp(t, `Compiler:\s+clang-head\n`, stdout)
	assert.Regexp(t, `Compiler options:\s+-O2 '-DMSG=a b'\n`, stdout)
	assert.Regexp(t, `Digest:\s+[0-9a-f]{64}\n`, stdout)
	assert.Contains(t, stdout, "--- main.cpp ---\nint main() {}\n")
	assert.True(t, strings.HasSuffix(stdout, "--- output ---\nhi!\nExit Code: 0\n"), stdout)
	assert.NotContains(t, stdout, "\x1b[")

	stdout, _, err = runCommand(t, NewHistoryCommand(cfg), "show", "-no-sources", "#2")
	require.NoError(t, err)
	assert.NotContains(t, stdout, "--- other.cpp ---")
	assert.NotContains(t, stdout, "--- output ---")
}

func TestHistoryShow_Errors(t *testing.T) {
	cfg := testConfig(t)
	seedHistory(t, cfg)

	_, _, err := runCommand(t, NewHistoryCommand(cfg), "show", "7")
	assert.ErrorIs(t, err, history.ErrUnknownID)

	for _, args := range [][]string{{"show"}, {"show", "x"}, {"show", "1", "2"}, {"show", "-color", "rainbow", "1"}} {
		_, _, err := runCommand(t, NewHistoryCommand(cfg), args...)
		assert.ErrorIs(t, err, ErrUsage, "%v", args)
	}
}

func TestHistoryDelete(t *testing.T) {
	cfg := testConfig(t)
	seedHistory(t, cfg)

	stdout, _, err := runCommand(t, NewHistoryCommand(cfg), "delete", "0", "1")
	require.NoError(t, err)
	assert.Equal(t, "Deleted #0\nDeleted #1\n", stdout)

	data := loadData(t, cfg)
	assert.Equal(t, []int{2}, data.IDs().IDs())
	assert.Equal(t, 3, data.KeyCounter)

	_, _, err = runCommand(t, NewHistoryCommand(cfg), "delete", "0")
	assert.ErrorIs(t, err, history.ErrUnknownID)
	_, _, err = runCommand(t, NewHistoryCommand(cfg), "delete")
	assert.ErrorIs(t, err, ErrUsage)
}

func TestHistoryRename(t *testing.T) {
	cfg := testConfig(t)
	seedHistory(t, cfg)

	stdout, _, err := runCommand(t, NewHistoryCommand(cfg), "rename", "1", "new", "title")
	require.NoError(t, err)
	assert.Equal(t, "Renamed #1 to #3: new title\n", stdout)

	data := loadData(t, cfg)
	require.Len(t, data.Histories, 1)
	assert.Equal(t, 3, data.Histories[0].ID)
	assert.Contains(t, string(data.Histories[0].Payload), `"title":"new title"`)
	assert.Contains(t, string(data.Histories[0].Payload), `"compiler":"clang-head"`)

	_, _, err = runCommand(t, NewHistoryCommand(cfg), "rename", "1", "again")
	assert.ErrorIs(t, err, history.ErrUnknownID)
	_, _, err = runCommand(t, NewHistoryCommand(cfg), "rename", "3", " ")
	assert.ErrorIs(t, err, ErrUsage)
}

func TestHistoryExport_JSON(t *testing.T) {
	cfg := testConfig(t)
	seedHistory(t, cfg)

	stdout, _, err := runCommand(t, NewHistoryCommand(cfg), "export")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stdout, `{"histories":[{"compiler":"clang-head",`), stdout)
	assert.NotContains(t, strings.TrimSuffix(stdout, "\n"), "\n")

	var doc struct {
		KeyCounter int              `json:"keyCounter"`
		QuickSaves []map[string]any `json:"quicksaves"`
		Histories  []map[string]any `json:"histories"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &doc))
	assert.Equal(t, 3, doc.KeyCounter)
	require.Len(t, doc.QuickSaves, 2)
	require.Len(t, doc.Histories, 1)
	assert.EqualValues(t, 0, doc.QuickSaves[0]["id"])
	assert.EqualValues(t, 2, doc.QuickSaves[1]["id"])
	assert.Equal(t, "hello", doc.Histories[0]["title"])

	again, _, err := runCommand(t, NewHistoryCommand(cfg), "export")
	require.NoError(t, err)
	assert.Equal(t, stdout, again)

	stdout, _, err = runCommand(t, NewHistoryCommand(cfg), "export", "2")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(stdout), &doc))
	assert.Len(t, doc.QuickSaves, 1)
	assert.Empty(t, doc.Histories)

	_, _, err = runCommand(t, NewHistoryCommand(cfg), "export", "9")
	assert.ErrorIs(t, err, history.ErrUnknownID)
}

func TestHistoryExport_YAMLToFile(t *testing.T) {
	cfg := testConfig(t)
	seedHistory(t, cfg)
	cfg.SetCommandOption("history", config.KeyHistoryExportFormat, "yaml")
	out := filepath.Join(t.TempDir(), "export.yaml")

	stdout, stderr, err := runCommand(t, NewHistoryCommand(cfg), "export", "-o", out)
	require.NoError(t, err)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "Exported 3 session(s)")

	b, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(b), "keyCounter: 3")
	assert.Contains(t, string(b), "title: hello")

	_, _, err = runCommand(t, NewHistoryCommand(cfg), "export", "-format", "toml")
	assert.ErrorIs(t, err, ErrUsage)
}

func TestHistoryClear(t *testing.T) {
	cfg := testConfig(t)
	seedHistory(t, cfg)

	cmd := NewHistoryCommand(cfg)
	cmd.stdin = strings.NewReader("n\n")
	stdout, _, err := runCommand(t, cmd, "clear")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Aborted.")
	assert.Equal(t, 3, loadData(t, cfg).IDs().Len())

	cmd = NewHistoryCommand(cfg)
	cmd.stdin = strings.NewReader("yes\n")
	_, _, err = runCommand(t, cmd, "clear", "-kind", "quicksave")
	require.NoError(t, err)
	data := loadData(t, cfg)
	assert.Empty(t, data.QuickSaves)
	assert.Len(t, data.Histories, 1)

	stdout, _, err = runCommand(t, NewHistoryCommand(cfg), "clear", "-y")
	require.NoError(t, err)
	assert.Equal(t, "Cleared.\n", stdout)
	data = loadData(t, cfg)
	assert.Zero(t, data.IDs().Len())
	assert.Equal(t, 3, data.KeyCounter)
}

func TestHistoryGC(t *testing.T) {
	cfg := testConfig(t)
	seedHistory(t, cfg)

	path, _ := cfg.GetGlobalOption(config.KeyStorePath)
	store, err := kvstore.Open("fs", path)
	require.NoError(t, err)
	require.NoError(t, store.Set(history.RecordKey(99), `{"id":99}`))
	require.NoError(t, store.Close())

	stdout, _, err := runCommand(t, NewHistoryCommand(cfg), "gc", "-dry-run")
	require.NoError(t, err)
	assert.Equal(t, "Would remove 1 orphaned record(s): [99]\n", stdout)

	stdout, _, err = runCommand(t, NewHistoryCommand(cfg), "gc")
	require.NoError(t, err)
	assert.Equal(t, "Removed 1 orphaned record(s): [99]\n", stdout)

	stdout, _, err = runCommand(t, NewHistoryCommand(cfg), "gc")
	require.NoError(t, err)
	assert.Equal(t, "Removed 0 orphaned record(s)\n", stdout)
	assert.Equal(t, 3, loadData(t, cfg).IDs().Len())
}

func TestHistory_SQLiteBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.SetGlobalOption(config.KeyStoreBackend, "sqlite")
	cfg.SetGlobalOption(config.KeyStorePath, filepath.Join(t.TempDir(), "history.db"))
	seedHistory(t, cfg)

	stdout, _, err := runCommand(t, NewHistoryCommand(cfg), "list", "-format", "json")
	require.NoError(t, err)
	var items []listItem
	require.NoError(t, json.Unmarshal([]byte(stdout), &items))
	assert.Len(t, items, 3)
}
