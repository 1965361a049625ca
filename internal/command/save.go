package command

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/joeycumines/canine/internal/argv"
	"github.com/joeycumines/canine/internal/config"
	"github.com/joeycumines/canine/internal/history"
	"github.com/joeycumines/canine/internal/output"
	"github.com/joeycumines/canine/internal/snapshot"
)

// snapshotFlags are the flags shared by quicksave and save.
type snapshotFlags struct {
	title          string
	compiler       string
	compilerOption string
	runtimeOption  string
	stdinFile      string
	resultsFile    string
}

func (f *snapshotFlags) setup(fs *flag.FlagSet) {
	fs.StringVar(&f.title, "title", "", "Session title")
	fs.StringVar(&f.compiler, "compiler", "", "Compiler name, e.g. gcc-head")
	fs.StringVar(&f.compilerOption, "compiler-options", "", "Compiler options, shell-quoted, e.g. '-O2 -DMSG=\"a b\"'")
	fs.StringVar(&f.runtimeOption, "runtime-options", "", "Program arguments, shell-quoted")
	fs.StringVar(&f.stdinFile, "stdin", "", "File whose contents are the program's stdin")
	fs.StringVar(&f.resultsFile, "results", "", "File of output fragments (JSON array or one object per line) to store with the session")
}

// build reads the source files and optional inputs into a snapshot.
func (f *snapshotFlags) build(files []string) (snapshot.Snapshot, error) {
	sources, err := snapshot.ReadSources(files)
	if err != nil {
		return snapshot.Snapshot{}, err
	}
	opts := snapshot.Options{
		Title:    f.title,
		Compiler: f.compiler,
	}
	if opts.CompilerOptionRaw, err = argv.SplitRaw(f.compilerOption); err != nil {
		return snapshot.Snapshot{}, fmt.Errorf("compiler options: %w", err)
	}
	if opts.RuntimeOptionRaw, err = argv.SplitRaw(f.runtimeOption); err != nil {
		return snapshot.Snapshot{}, fmt.Errorf("runtime options: %w", err)
	}
	if f.stdinFile != "" {
		b, err := os.ReadFile(f.stdinFile)
		if err != nil {
			return snapshot.Snapshot{}, fmt.Errorf("read stdin file: %w", err)
		}
		opts.Stdin = string(b)
	}
	if f.resultsFile != "" {
		file, err := os.Open(f.resultsFile)
		if err != nil {
			return snapshot.Snapshot{}, fmt.Errorf("read results: %w", err)
		}
		defer file.Close()
		if opts.Results, err = output.Decode(file); err != nil {
			return snapshot.Snapshot{}, fmt.Errorf("read results: %w", err)
		}
	}
	return snapshot.New(sources, opts)
}

// saveCommand stores a snapshot of the given files in one collection.
type saveCommand struct {
	*BaseCommand
	cfg          *config.Config
	kind         history.Kind
	requireTitle bool
	flags        snapshotFlags
}

// NewQuickSaveCommand creates the quicksave command.
func NewQuickSaveCommand(cfg *config.Config) Command {
	return &saveCommand{
		BaseCommand: NewBaseCommand("quicksave", "Quick-save a session from source files", "quicksave [options] <file>..."),
		cfg:         cfg,
		kind:        history.KindQuickSave,
	}
}

// NewSaveCommand creates the save command, which stores a titled history
// entry.
func NewSaveCommand(cfg *config.Config) Command {
	return &saveCommand{
		BaseCommand:  NewBaseCommand("save", "Save a titled session to history", "save -title <title> [options] <file>..."),
		cfg:          cfg,
		kind:         history.KindHistory,
		requireTitle: true,
	}
}

func (c *saveCommand) SetupFlags(fs *flag.FlagSet) {
	c.flags = snapshotFlags{}
	c.flags.setup(fs)
}

func (c *saveCommand) Execute(args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		return usageErrorf(stderr, "Usage: canine %s", c.Usage())
	}
	if c.requireTitle && c.flags.title == "" {
		return usageErrorf(stderr, "%s requires -title", c.Name())
	}

	snap, err := c.flags.build(args)
	if err != nil {
		return err
	}
	payload, err := snap.Marshal()
	if err != nil {
		return err
	}

	return withHistory(c.cfg, func(m *history.Manager) error {
		add := m.AddQuickSave
		if c.kind == history.KindHistory {
			add = m.AddHistory
		}
		rec, err := add(payload)
		if err != nil {
			return fmt.Errorf("failed to save %s: %w", c.kind, err)
		}
		_, _ = fmt.Fprintf(stdout, "Saved %s #%d: %s\n", c.kind, rec.ID, snap.DisplayTitle())
		return nil
	})
}
