package command

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/joeycumines/canine/internal/config"
)

// HelpCommand lists commands, or describes one.
type HelpCommand struct {
	*BaseCommand
	registry *Registry
}

// NewHelpCommand creates the help command for registry.
func NewHelpCommand(registry *Registry) *HelpCommand {
	return &HelpCommand{
		BaseCommand: NewBaseCommand("help", "Display help information for commands", "help [command]"),
		registry:    registry,
	}
}

func (c *HelpCommand) Execute(args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		_, _ = fmt.Fprintln(stdout, "canine - save, browse and replay compiler sessions from your terminal")
		_, _ = fmt.Fprintln(stdout)
		_, _ = fmt.Fprintln(stdout, "Usage: canine [-log-file path] [-log-level level] <command> [options] [args...]")
		_, _ = fmt.Fprintln(stdout)
		_, _ = fmt.Fprintln(stdout, "Commands:")
		w := tabwriter.NewWriter(stdout, 0, 8, 2, ' ', 0)
		for _, name := range c.registry.List() {
			if cmd, err := c.registry.Get(name); err == nil {
				_, _ = fmt.Fprintf(w, "  %s\t%s\n", name, cmd.Description())
			}
		}
		_ = w.Flush()
		_, _ = fmt.Fprintln(stdout)
		_, _ = fmt.Fprintln(stdout, "Use 'canine help <command>' for more information about a command.")
		return nil
	}

	cmd, err := c.registry.Get(args[0])
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Unknown command: %s\n", args[0])
		return err
	}
	_, _ = fmt.Fprintf(stdout, "Command: %s\n", cmd.Name())
	_, _ = fmt.Fprintf(stdout, "Description: %s\n", cmd.Description())
	_, _ = fmt.Fprintf(stdout, "Usage: canine %s\n", cmd.Usage())

	fs := flag.NewFlagSet(cmd.Name(), flag.ContinueOnError)
	var buf bytes.Buffer
	fs.SetOutput(&buf)
	cmd.SetupFlags(fs)
	fs.PrintDefaults()
	if buf.Len() > 0 {
		_, _ = fmt.Fprintln(stdout)
		_, _ = fmt.Fprintln(stdout, "Flags:")
		_, _ = fmt.Fprint(stdout, buf.String())
	}
	return nil
}

// VersionCommand prints the build version.
type VersionCommand struct {
	*BaseCommand
	version string
}

// NewVersionCommand creates the version command.
func NewVersionCommand(version string) *VersionCommand {
	return &VersionCommand{
		BaseCommand: NewBaseCommand("version", "Display version information", "version"),
		version:     version,
	}
}

func (c *VersionCommand) Execute(args []string, stdout, stderr io.Writer) error {
	if len(args) > 0 {
		return usageErrorf(stderr, "unexpected arguments: %v", args)
	}
	_, _ = fmt.Fprintf(stdout, "canine version %s\n", c.version)
	return nil
}

// ConfigCommand shows, reads and writes configuration options.
type ConfigCommand struct {
	*BaseCommand
	config     *config.Config
	configPath string
	section    string
	showAll    bool
}

// NewConfigCommand creates the config command. Values set through it are
// written to configPath; an empty configPath resolves the default location
// at execution time.
func NewConfigCommand(cfg *config.Config, configPath string) *ConfigCommand {
	return &ConfigCommand{
		BaseCommand: NewBaseCommand("config", "Manage configuration settings", "config [options] [validate|schema|<key> [value]]"),
		config:      cfg,
		configPath:  configPath,
	}
}

func (c *ConfigCommand) SetupFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.section, "section", "", "Command section to get or set the key in (default: global)")
	fs.BoolVar(&c.showAll, "all", false, "Show the effective value of every known option")
}

func (c *ConfigCommand) Execute(args []string, stdout, stderr io.Writer) error {
	schema := config.DefaultSchema()

	if len(args) == 0 {
		if c.showAll {
			c.printEffective(stdout, schema)
			return nil
		}
		c.printFile(stdout)
		return nil
	}

	switch args[0] {
	case "validate":
		return c.executeValidate(stdout, schema)
	case "schema":
		_, _ = fmt.Fprint(stdout, schema.FormatHelp())
		return nil
	}

	key := args[0]
	switch len(args) {
	case 1:
		if c.section != "" {
			_, _ = fmt.Fprintf(stdout, "%s: %s\n", key, schema.ResolveCommand(c.config, c.section, key))
			return nil
		}
		if schema.Lookup("", key) == nil {
			if _, ok := c.config.GetGlobalOption(key); !ok {
				_, _ = fmt.Fprintf(stdout, "Configuration key '%s' not found\n", key)
				return nil
			}
		}
		_, _ = fmt.Fprintf(stdout, "%s: %s\n", key, schema.Resolve(c.config, key))
		return nil

	case 2:
		value := args[1]
		opt := schema.Lookup(c.section, key)
		if opt == nil && c.section != "" {
			opt = schema.Lookup("", key)
		}
		if opt == nil {
			return usageErrorf(stderr, "unknown option %q", key)
		}
		if err := opt.Validate(value); err != nil {
			return usageErrorf(stderr, "%s: %v", key, err)
		}

		if c.section == "" {
			c.config.SetGlobalOption(key, value)
		} else {
			c.config.SetCommandOption(c.section, key, value)
		}
		path := c.configPath
		if path == "" {
			var err error
			if path, err = config.GetConfigPath(); err != nil {
				return fmt.Errorf("failed to get config path: %w", err)
			}
		}
		if err := config.SetKeyInFile(path, c.section, key, value); err != nil {
			return fmt.Errorf("failed to persist config: %w", err)
		}
		_, _ = fmt.Fprintf(stdout, "Set configuration: %s = %s\n", qualifiedKey(c.section, key), value)
		return nil

	default:
		return usageErrorf(stderr, "too many arguments")
	}
}

func (c *ConfigCommand) printFile(w io.Writer) {
	_, _ = fmt.Fprintln(w, "Global configuration:")
	for _, key := range sortedKeys(c.config.Global) {
		_, _ = fmt.Fprintf(w, "  %s: %s\n", key, c.config.Global[key])
	}
	for _, section := range sortedKeys(c.config.Commands) {
		_, _ = fmt.Fprintf(w, "[%s]\n", section)
		for _, key := range sortedKeys(c.config.Commands[section]) {
			_, _ = fmt.Fprintf(w, "  %s: %s\n", key, c.config.Commands[section][key])
		}
	}
}

func (c *ConfigCommand) printEffective(w io.Writer, schema *config.ConfigSchema) {
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	for _, o := range schema.GlobalOptions() {
		_, _ = fmt.Fprintf(tw, "%s\t%s\n", o.Key, schema.Resolve(c.config, o.Key))
	}
	for _, section := range schema.Sections() {
		for _, o := range schema.SectionOptions(section) {
			_, _ = fmt.Fprintf(tw, "%s\t%s\n", qualifiedKey(section, o.Key), schema.ResolveCommand(c.config, section, o.Key))
		}
	}
	_ = tw.Flush()
}

func (c *ConfigCommand) executeValidate(w io.Writer, schema *config.ConfigSchema) error {
	issues := config.ValidateConfig(c.config, schema)
	if len(issues) == 0 {
		_, _ = fmt.Fprintln(w, "Configuration is valid.")
		return nil
	}
	_, _ = fmt.Fprintf(w, "Configuration has %d issue(s):\n", len(issues))
	for _, issue := range issues {
		_, _ = fmt.Fprintf(w, "  - %s\n", issue)
	}
	return nil
}

func qualifiedKey(section, key string) string {
	if section == "" {
		return key
	}
	return "[" + section + "] " + key
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// InitCommand writes a commented default configuration file.
type InitCommand struct {
	*BaseCommand
	force bool
}

// NewInitCommand creates the init command.
func NewInitCommand() *InitCommand {
	return &InitCommand{
		BaseCommand: NewBaseCommand("init", "Write a default configuration file", "init [options]"),
	}
}

func (c *InitCommand) SetupFlags(fs *flag.FlagSet) {
	fs.BoolVar(&c.force, "force", false, "Overwrite an existing configuration file")
}

func (c *InitCommand) Execute(args []string, stdout, stderr io.Writer) error {
	if len(args) > 0 {
		return usageErrorf(stderr, "unexpected arguments: %v", args)
	}
	path, err := config.GetConfigPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}
	if _, err := os.Stat(path); err == nil && !c.force {
		_, _ = fmt.Fprintf(stdout, "Configuration already exists at: %s\n", path)
		_, _ = fmt.Fprintln(stdout, "Use -force to overwrite existing configuration")
		return nil
	}
	if err := config.EnsureConfigDir(); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(defaultConfigFile()), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	cfg, err := config.LoadFromPath(path)
	if err != nil {
		return fmt.Errorf("failed to load created config: %w", err)
	}
	if cfg.HasWarnings() {
		_, _ = fmt.Fprintf(stderr, "Warning: created config has %d issue(s)\n", len(cfg.Warnings))
	}
	_, _ = fmt.Fprintf(stdout, "Initialized canine configuration at: %s\n", path)
	return nil
}

// defaultConfigFile renders every option with its default, commented out
// where the default is empty.
func defaultConfigFile() string {
	schema := config.DefaultSchema()
	var b strings.Builder
	b.WriteString("# canine configuration file\n")
	b.WriteString("# Format: optionName value\n")
	b.WriteString("# [command] sections hold command-specific options.\n\n")
	writeOptions := func(opts []config.ConfigOption) {
		for _, o := range opts {
			fmt.Fprintf(&b, "# %s\n", o.Description)
			if o.Default == "" {
				fmt.Fprintf(&b, "# %s\n", o.Key)
			} else {
				fmt.Fprintf(&b, "%s %s\n", o.Key, o.Default)
			}
		}
	}
	writeOptions(schema.GlobalOptions())
	for _, section := range schema.Sections() {
		fmt.Fprintf(&b, "\n[%s]\n", section)
		writeOptions(schema.SectionOptions(section))
	}
	return b.String()
}
