package command

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/goccy/go-yaml"
	"github.com/rivo/uniseg"

	"github.com/joeycumines/canine/internal/argv"
	"github.com/joeycumines/canine/internal/config"
	"github.com/joeycumines/canine/internal/history"
	"github.com/joeycumines/canine/internal/kvstore"
	"github.com/joeycumines/canine/internal/output"
	"github.com/joeycumines/canine/internal/snapshot"
)

// HistoryCommand browses and edits saved sessions.
type HistoryCommand struct {
	*BaseCommand
	cfg   *config.Config
	stdin io.Reader
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(cfg *config.Config) *HistoryCommand {
	return &HistoryCommand{
		BaseCommand: NewBaseCommand("history", "Browse and manage saved sessions",
			"history [list|show|delete|rename|export|clear|gc] [options] [args...]"),
		cfg:   cfg,
		stdin: os.Stdin,
	}
}

func (c *HistoryCommand) Execute(args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		return c.list(nil, stdout, stderr)
	}
	sub, rest := strings.ToLower(args[0]), args[1:]
	switch sub {
	case "list", "ls":
		return c.list(rest, stdout, stderr)
	case "show":
		return c.show(rest, stdout, stderr)
	case "delete", "rm":
		return c.delete(rest, stdout, stderr)
	case "rename":
		return c.rename(rest, stdout, stderr)
	case "export":
		return c.export(rest, stdout, stderr)
	case "clear":
		return c.clear(rest, stdout, stderr)
	case "gc":
		return c.gc(rest, stdout, stderr)
	default:
		return usageErrorf(stderr, "unknown history subcommand: %s", args[0])
	}
}

// entry is a record together with its decoded snapshot.
type entry struct {
	record history.Record
	kind   history.Kind
	snap   snapshot.Snapshot
	// err is set when the payload is not a readable snapshot.
	err error
}

func entries(data history.Data) []entry {
	out := make([]entry, 0, len(data.QuickSaves)+len(data.Histories))
	add := func(kind history.Kind, records []history.Record) {
		for _, r := range records {
			e := entry{record: r, kind: kind}
			e.snap, e.err = snapshot.Unmarshal(r.Payload)
			out = append(out, e)
		}
	}
	add(history.KindQuickSave, data.QuickSaves)
	add(history.KindHistory, data.Histories)
	return out
}

// filterEnv is what a list -filter expression can see.
type filterEnv struct {
	ID         int       `expr:"id"`
	Kind       string    `expr:"kind"`
	Title      string    `expr:"title"`
	Compiler   string    `expr:"compiler"`
	Created    time.Time `expr:"created"`
	Files      []string  `expr:"files"`
	Options    []string  `expr:"options"`
	Stdin      string    `expr:"stdin"`
	ExitCode   string    `expr:"exitCode"`
	HasResults bool      `expr:"hasResults"`
}

func (e entry) filterEnv() filterEnv {
	env := filterEnv{
		ID:         e.record.ID,
		Kind:       e.kind.String(),
		Title:      e.snap.DisplayTitle(),
		Compiler:   e.snap.Compiler,
		Created:    e.snap.CreatedAt,
		Stdin:      e.snap.Stdin,
		HasResults: len(e.snap.Results) > 0,
	}
	env.ExitCode, _ = e.snap.ExitCode()
	env.Options = argv.FromRaw(e.snap.CompilerOptionRaw)
	for _, s := range e.snap.Sources {
		env.Files = append(env.Files, s.Filename)
	}
	return env
}

func compileFilter(src string) (*vm.Program, error) {
	program, err := expr.Compile(src, expr.Env(filterEnv{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("invalid filter: %w", err)
	}
	return program, nil
}

func matchFilter(program *vm.Program, e entry) (bool, error) {
	if program == nil {
		return true, nil
	}
	result, err := expr.Run(program, e.filterEnv())
	if err != nil {
		return false, fmt.Errorf("filter failed on #%d: %w", e.record.ID, err)
	}
	ok, _ := result.(bool)
	return ok, nil
}

// parseKinds maps -kind values to the collections they select.
func parseKinds(s string) ([]history.Kind, error) {
	switch strings.ToLower(s) {
	case "", "all":
		return []history.Kind{history.KindQuickSave, history.KindHistory}, nil
	case "quicksave", "quicksaves":
		return []history.Kind{history.KindQuickSave}, nil
	case "history", "histories":
		return []history.Kind{history.KindHistory}, nil
	default:
		return nil, fmt.Errorf("invalid kind %q (want all, quicksave or history)", s)
	}
}

func hasKind(kinds []history.Kind, k history.Kind) bool {
	for _, x := range kinds {
		if x == k {
			return true
		}
	}
	return false
}

func (c *HistoryCommand) list(args []string, stdout, stderr io.Writer) error {
	fs := subcommandFlags(c.Name(), "list", "List saved sessions, quicksaves first, each in save order.", stderr)
	kindFlag := fs.String("kind", "all", "Collections to list: all|quicksave|history")
	filterFlag := fs.String("filter", "", "Boolean expression over id, kind, title, compiler, created, files, options, stdin, exitCode, hasResults")
	formatFlag := fs.String("format", "text", "Output format: text|json")
	if ok, err := parseSubcommand(fs, args); !ok {
		return err
	}
	if fs.NArg() > 0 {
		return usageErrorf(stderr, "history list takes no arguments")
	}

	kinds, err := parseKinds(*kindFlag)
	if err != nil {
		return usageErrorf(stderr, "%v", err)
	}
	var program *vm.Program
	if *filterFlag != "" {
		if program, err = compileFilter(*filterFlag); err != nil {
			return usageErrorf(stderr, "%v", err)
		}
	}
	if *formatFlag != "text" && *formatFlag != "json" {
		return usageErrorf(stderr, "invalid format %q (want text or json)", *formatFlag)
	}

	var data history.Data
	if err := withHistory(c.cfg, func(m *history.Manager) error {
		data = m.Data()
		return nil
	}); err != nil {
		return err
	}

	var selected []entry
	for _, e := range entries(data) {
		if !hasKind(kinds, e.kind) {
			continue
		}
		ok, err := matchFilter(program, e)
		if err != nil {
			return err
		}
		if ok {
			selected = append(selected, e)
		}
	}

	if *formatFlag == "json" {
		return writeListJSON(stdout, selected)
	}
	return c.writeListText(stdout, selected)
}

func (c *HistoryCommand) writeListText(w io.Writer, selected []entry) error {
	if len(selected) == 0 {
		_, _ = fmt.Fprintln(w, "No saved sessions.")
		return nil
	}
	width, err := strconv.Atoi(config.DefaultSchema().ResolveCommand(c.cfg, c.Name(), config.KeyHistoryTitleWidth))
	if err != nil || width < 4 {
		width = 40
	}

	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tKIND\tCREATED\tCOMPILER\tTITLE")
	for _, e := range selected {
		title, compiler, created := "(unreadable)", "-", "-"
		if e.err == nil {
			title = truncate(oneLine(e.snap.DisplayTitle()), width)
			if e.snap.Compiler != "" {
				compiler = e.snap.Compiler
			}
			if !e.snap.CreatedAt.IsZero() {
				created = e.snap.CreatedAt.Local().Format("2006-01-02 15:04")
			}
		}
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", e.record.ID, e.kind, created, compiler, title)
	}
	return tw.Flush()
}

type listItem struct {
	ID        int        `json:"id"`
	Kind      string     `json:"kind"`
	Title     string     `json:"title"`
	Compiler  string     `json:"compiler,omitempty"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
	Files     []string   `json:"files"`
	Error     string     `json:"error,omitempty"`
}

func writeListJSON(w io.Writer, selected []entry) error {
	items := make([]listItem, 0, len(selected))
	for _, e := range selected {
		env := e.filterEnv()
		item := listItem{ID: e.record.ID, Kind: env.Kind, Title: env.Title, Compiler: env.Compiler, Files: env.Files}
		if item.Files == nil {
			item.Files = []string{}
		}
		if !env.Created.IsZero() {
			item.CreatedAt = &env.Created
		}
		if e.err != nil {
			item.Error = e.err.Error()
		}
		items = append(items, item)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(items)
}

// truncate shortens s to at most width terminal cells, ending with an
// ellipsis when anything was cut. Grapheme clusters are never split.
func truncate(s string, width int) string {
	if uniseg.StringWidth(s) <= width {
		return s
	}
	const tail = "…"
	target := width - uniseg.StringWidth(tail)
	var (
		b       strings.Builder
		used    int
		cluster string
		w       int
		state   = -1
	)
	for rest := s; rest != ""; {
		cluster, rest, w, state = uniseg.FirstGraphemeClusterInString(rest, state)
		if used+w > target {
			break
		}
		used += w
		b.WriteString(cluster)
	}
	b.WriteString(tail)
	return b.String()
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func parseID(s string) (int, error) {
	id, err := strconv.Atoi(strings.TrimPrefix(s, "#"))
	if err != nil || id < 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func (c *HistoryCommand) show(args []string, stdout, stderr io.Writer) error {
	fs := subcommandFlags(c.Name(), "show <id>", "Show a saved session: its sources, inputs and stored output.", stderr)
	colorFlag := fs.String("color", "", "Color mode: auto|always|never (default from config)")
	noSources := fs.Bool("no-sources", false, "Do not print source files")
	if ok, err := parseSubcommand(fs, args); !ok {
		return err
	}
	if fs.NArg() != 1 {
		return usageErrorf(stderr, "history show takes exactly one id")
	}
	id, err := parseID(fs.Arg(0))
	if err != nil {
		return usageErrorf(stderr, "%v", err)
	}
	mode, err := resolveColorMode(c.cfg, c.Name(), *colorFlag)
	if err != nil {
		return usageErrorf(stderr, "%v", err)
	}

	var (
		rec  history.Record
		kind history.Kind
	)
	if err := withHistory(c.cfg, func(m *history.Manager) error {
		var ok bool
		if rec, kind, ok = m.Get(id); !ok {
			return fmt.Errorf("%w: %d", history.ErrUnknownID, id)
		}
		return nil
	}); err != nil {
		return err
	}

	snap, err := snapshot.Unmarshal(rec.Payload)
	if err != nil {
		return fmt.Errorf("session #%d: %w", id, err)
	}
	digest, err := snapshot.Digest(rec.Payload)
	if err != nil {
		return fmt.Errorf("session #%d: %w", id, err)
	}

	_, _ = fmt.Fprintf(stdout, "#%d (%s) %s\n", rec.ID, kind, snap.DisplayTitle())
	tw := tabwriter.NewWriter(stdout, 0, 8, 1, ' ', 0)
	field := func(name, value string) {
		if value != "" {
			_, _ = fmt.Fprintf(tw, "%s:\t%s\n", name, value)
		}
	}
	field("Compiler", snap.Compiler)
	if !snap.CreatedAt.IsZero() {
		field("Created", snap.CreatedAt.Local().Format(time.RFC3339))
	}
	field("Compiler options", argv.Join(argv.FromRaw(snap.CompilerOptionRaw)))
	field("Runtime options", argv.Join(argv.FromRaw(snap.RuntimeOptionRaw)))
	field("Digest", digest)
	_ = tw.Flush()

	if !*noSources {
		for _, s := range snap.Sources {
			writeSection(stdout, s.Filename, s.Text)
		}
	}
	if snap.Stdin != "" {
		writeSection(stdout, "stdin", snap.Stdin)
	}
	if len(snap.Results) > 0 {
		_, _ = fmt.Fprintln(stdout, "--- output ---")
		r := output.NewRenderer(stdout, output.WithColor(mode.Enabled(stdout)))
		if err := r.Render(snap.Results); err != nil {
			return err
		}
	}
	return nil
}

func writeSection(w io.Writer, name, text string) {
	_, _ = fmt.Fprintf(w, "--- %s ---\n", name)
	_, _ = io.WriteString(w, text)
	if text != "" && !strings.HasSuffix(text, "\n") {
		_, _ = fmt.Fprintln(w)
	}
}

func (c *HistoryCommand) delete(args []string, stdout, stderr io.Writer) error {
	fs := subcommandFlags(c.Name(), "delete <id>...", "Delete saved sessions by id.", stderr)
	if ok, err := parseSubcommand(fs, args); !ok {
		return err
	}
	if fs.NArg() == 0 {
		return usageErrorf(stderr, "history delete needs at least one id")
	}
	ids := make([]int, 0, fs.NArg())
	for _, a := range fs.Args() {
		id, err := parseID(a)
		if err != nil {
			return usageErrorf(stderr, "%v", err)
		}
		ids = append(ids, id)
	}

	return withHistory(c.cfg, func(m *history.Manager) error {
		for _, id := range ids {
			if err := m.Delete(id); err != nil {
				return fmt.Errorf("failed to delete #%d: %w", id, err)
			}
			_, _ = fmt.Fprintf(stdout, "Deleted #%d\n", id)
		}
		return nil
	})
}

func (c *HistoryCommand) rename(args []string, stdout, stderr io.Writer) error {
	fs := subcommandFlags(c.Name(), "rename <id> <title>", "Change a session's title. The session gets a new id.", stderr)
	if ok, err := parseSubcommand(fs, args); !ok {
		return err
	}
	if fs.NArg() < 2 {
		return usageErrorf(stderr, "history rename needs an id and a title")
	}
	id, err := parseID(fs.Arg(0))
	if err != nil {
		return usageErrorf(stderr, "%v", err)
	}
	title := strings.TrimSpace(strings.Join(fs.Args()[1:], " "))
	if title == "" {
		return usageErrorf(stderr, "history rename needs a non-empty title")
	}

	return withHistory(c.cfg, func(m *history.Manager) error {
		rec, _, ok := m.Get(id)
		if !ok {
			return fmt.Errorf("%w: %d", history.ErrUnknownID, id)
		}
		snap, err := snapshot.Unmarshal(rec.Payload)
		if err != nil {
			return fmt.Errorf("session #%d: %w", id, err)
		}
		snap.Title = title
		payload, err := snap.Marshal()
		if err != nil {
			return err
		}
		// Members this version does not know about are carried over.
		payload, err = mergePayload(rec.Payload, payload)
		if err != nil {
			return err
		}
		renamed, err := m.Replace(id, payload)
		if err != nil {
			return fmt.Errorf("failed to rename #%d: %w", id, err)
		}
		_, _ = fmt.Fprintf(stdout, "Renamed #%d to #%d: %s\n", id, renamed.ID, title)
		return nil
	})
}

// mergePayload overlays the members of update onto base.
func mergePayload(base, update json.RawMessage) (json.RawMessage, error) {
	var merged, over map[string]json.RawMessage
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(update, &over); err != nil {
		return nil, err
	}
	if merged == nil {
		merged = make(map[string]json.RawMessage, len(over))
	}
	for k, v := range over {
		merged[k] = v
	}
	return json.Marshal(merged)
}

// exportDocument is the export format: the store layout, with each record
// in its stored form.
type exportDocument struct {
	KeyCounter int               `json:"keyCounter"`
	QuickSaves []json.RawMessage `json:"quicksaves"`
	Histories  []json.RawMessage `json:"histories"`
}

func (c *HistoryCommand) export(args []string, stdout, stderr io.Writer) error {
	fs := subcommandFlags(c.Name(), "export [id...]", "Export saved sessions as canonical JSON (RFC 8785) or YAML.", stderr)
	formatFlag := fs.String("format", "", "Output format: json|yaml (default from config)")
	outFlag := fs.String("o", "", "Write to this file instead of stdout")
	if ok, err := parseSubcommand(fs, args); !ok {
		return err
	}
	format := *formatFlag
	if format == "" {
		format = config.DefaultSchema().ResolveCommand(c.cfg, c.Name(), config.KeyHistoryExportFormat)
	}
	if format != "json" && format != "yaml" {
		return usageErrorf(stderr, "invalid format %q (want json or yaml)", format)
	}
	var only history.Index
	if fs.NArg() > 0 {
		only = history.NewIndex()
		for _, a := range fs.Args() {
			id, err := parseID(a)
			if err != nil {
				return usageErrorf(stderr, "%v", err)
			}
			only.Add(id)
		}
	}

	var data history.Data
	if err := withHistory(c.cfg, func(m *history.Manager) error {
		data = m.Data()
		return nil
	}); err != nil {
		return err
	}
	if only != nil {
		if missing := only.Difference(data.IDs()); missing.Len() > 0 {
			return fmt.Errorf("%w: %v", history.ErrUnknownID, missing.IDs())
		}
	}

	b, err := exportBytes(data, only, format)
	if err != nil {
		return err
	}
	if *outFlag == "" {
		_, err := stdout.Write(b)
		return err
	}
	if err := kvstore.AtomicWriteFile(*outFlag, b, 0o644); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	_, _ = fmt.Fprintf(stderr, "Exported %d session(s) to %s\n", countSelected(data, only), *outFlag)
	return nil
}

func exportBytes(data history.Data, only history.Index, format string) ([]byte, error) {
	doc := exportDocument{KeyCounter: data.KeyCounter}
	encode := func(records []history.Record) ([]json.RawMessage, error) {
		out := make([]json.RawMessage, 0, len(records))
		for _, r := range records {
			if only != nil && !only.Has(r.ID) {
				continue
			}
			s, err := history.EncodeRecord(r)
			if err != nil {
				return nil, err
			}
			out = append(out, json.RawMessage(s))
		}
		return out, nil
	}
	var err error
	if doc.QuickSaves, err = encode(data.QuickSaves); err != nil {
		return nil, err
	}
	if doc.Histories, err = encode(data.Histories); err != nil {
		return nil, err
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	canonical, err := snapshot.Canonicalize(raw)
	if err != nil {
		return nil, fmt.Errorf("canonicalize export: %w", err)
	}
	if format == "yaml" {
		return yaml.JSONToYAML(canonical)
	}
	return append(canonical, '\n'), nil
}

func countSelected(data history.Data, only history.Index) int {
	if only == nil {
		return data.IDs().Len()
	}
	return only.Len()
}

func (c *HistoryCommand) clear(args []string, stdout, stderr io.Writer) error {
	fs := subcommandFlags(c.Name(), "clear", "Delete every session in the selected collections.", stderr)
	kindFlag := fs.String("kind", "all", "Collections to clear: all|quicksave|history")
	yes := fs.Bool("y", false, "Assume yes to the confirmation prompt")
	if ok, err := parseSubcommand(fs, args); !ok {
		return err
	}
	if fs.NArg() > 0 {
		return usageErrorf(stderr, "history clear takes no arguments")
	}
	kinds, err := parseKinds(*kindFlag)
	if err != nil {
		return usageErrorf(stderr, "%v", err)
	}

	if !*yes {
		_, _ = fmt.Fprintf(stdout, "This will permanently delete all saved sessions (%s). Proceed? (y/N): ", *kindFlag)
		line, err := bufio.NewReader(c.stdin).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("failed to read confirmation: %w", err)
		}
		if answer := strings.ToLower(strings.TrimSpace(line)); answer != "y" && answer != "yes" {
			_, _ = fmt.Fprintln(stdout, "Aborted.")
			return nil
		}
	}

	return withHistory(c.cfg, func(m *history.Manager) error {
		for _, k := range kinds {
			if err := m.Clear(k); err != nil {
				return fmt.Errorf("failed to clear %s: %w", k, err)
			}
		}
		_, _ = fmt.Fprintln(stdout, "Cleared.")
		return nil
	})
}

func (c *HistoryCommand) gc(args []string, stdout, stderr io.Writer) error {
	fs := subcommandFlags(c.Name(), "gc", "Remove stored records that no saved session refers to.", stderr)
	dryRun := fs.Bool("dry-run", false, "List orphaned records without removing them")
	if ok, err := parseSubcommand(fs, args); !ok {
		return err
	}

	return withHistory(c.cfg, func(m *history.Manager) error {
		var (
			ids []int
			err error
		)
		if *dryRun {
			ids, err = m.Orphans()
		} else {
			ids, err = m.RemoveOrphans()
		}
		if errors.Is(err, history.ErrNotListable) {
			_, _ = fmt.Fprintln(stdout, "This store backend cannot be scanned for orphaned records.")
			return nil
		}
		if err != nil {
			return err
		}
		verb := "Removed"
		if *dryRun {
			verb = "Would remove"
		}
		_, _ = fmt.Fprintf(stdout, "%s %d orphaned record(s)", verb, len(ids))
		if len(ids) > 0 {
			_, _ = fmt.Fprintf(stdout, ": %v", ids)
		}
		_, _ = fmt.Fprintln(stdout)
		return nil
	})
}

// resolveColorMode picks the color mode from a flag, then config.
func resolveColorMode(cfg *config.Config, command, flagValue string) (output.ColorMode, error) {
	if flagValue == "" {
		flagValue = config.DefaultSchema().ResolveCommand(cfg, command, config.KeyColor)
	}
	return output.ParseColorMode(flagValue)
}
