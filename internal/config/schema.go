package config

import (
	"fmt"
	"os"
	"slices"
	"sort"
	"strconv"
	"strings"
)

// OptionType is the expected type of an option value.
type OptionType string

const (
	TypeString OptionType = "string"
	// TypeBool accepts true/false/yes/no/1/0/on/off.
	TypeBool OptionType = "bool"
	TypeInt  OptionType = "int"
	// TypeEnum accepts one of ConfigOption.Choices.
	TypeEnum OptionType = "enum"
)

// ConfigOption declares one option.
type ConfigOption struct {
	// Key is the option name as written in the file.
	Key  string
	Type OptionType
	// Choices lists the accepted values of a TypeEnum option.
	Choices []string
	// Default is the value used when neither the environment nor the file
	// sets the option.
	Default     string
	Description string
	// Section is "" for global options, or a command name.
	Section string
	// EnvVar, when set, names an environment variable that overrides the
	// file.
	EnvVar string
}

// ConfigSchema is the set of known options. It drives validation, the
// config schema listing, and env → file → default resolution.
type ConfigSchema struct {
	options   []*ConfigOption
	byKey     map[string]*ConfigOption
	bySection map[string]map[string]*ConfigOption
}

// NewSchema creates an empty schema.
func NewSchema() *ConfigSchema {
	return &ConfigSchema{
		byKey:     make(map[string]*ConfigOption),
		bySection: make(map[string]map[string]*ConfigOption),
	}
}

// Register adds opt, replacing any option with the same section and key.
func (s *ConfigSchema) Register(opt ConfigOption) {
	ref := &opt
	s.options = slices.DeleteFunc(s.options, func(o *ConfigOption) bool {
		return o.Section == opt.Section && o.Key == opt.Key
	})
	s.options = append(s.options, ref)
	if opt.Section == "" {
		s.byKey[opt.Key] = ref
		return
	}
	if s.bySection[opt.Section] == nil {
		s.bySection[opt.Section] = make(map[string]*ConfigOption)
	}
	s.bySection[opt.Section][opt.Key] = ref
}

// RegisterAll registers each option in order.
func (s *ConfigSchema) RegisterAll(opts []ConfigOption) {
	for _, opt := range opts {
		s.Register(opt)
	}
}

// Lookup returns the option registered under section ("" for global) and
// key, or nil.
func (s *ConfigSchema) Lookup(section, key string) *ConfigOption {
	if section == "" {
		return s.byKey[key]
	}
	return s.bySection[section][key]
}

// IsKnown reports whether key may appear in section. Global options may
// appear in any section.
func (s *ConfigSchema) IsKnown(section, key string) bool {
	return s.Lookup(section, key) != nil || s.byKey[key] != nil
}

// GlobalOptions returns the global options in registration order.
func (s *ConfigSchema) GlobalOptions() []ConfigOption {
	return s.SectionOptions("")
}

// SectionOptions returns the options of section in registration order.
func (s *ConfigSchema) SectionOptions(section string) []ConfigOption {
	var out []ConfigOption
	for _, o := range s.options {
		if o.Section == section {
			out = append(out, *o)
		}
	}
	return out
}

// Sections returns the non-global section names, sorted.
func (s *ConfigSchema) Sections() []string {
	out := make([]string, 0, len(s.bySection))
	for sec := range s.bySection {
		out = append(out, sec)
	}
	sort.Strings(out)
	return out
}

// Resolve returns the effective value of a global option: its environment
// variable if set (even to ""), else the file value, else the default.
func (s *ConfigSchema) Resolve(c *Config, key string) string {
	opt := s.Lookup("", key)
	if opt != nil && opt.EnvVar != "" {
		if v, ok := os.LookupEnv(opt.EnvVar); ok {
			return v
		}
	}
	if c != nil {
		if v, ok := c.GetGlobalOption(key); ok {
			return v
		}
	}
	if opt != nil {
		return opt.Default
	}
	return ""
}

// ResolveCommand returns the effective value of key for command: the
// command section's value, then the global resolution, then the section
// default.
func (s *ConfigSchema) ResolveCommand(c *Config, command, key string) string {
	if c != nil {
		if v, ok := c.Commands[command][key]; ok {
			return v
		}
	}
	if s.Lookup("", key) != nil {
		return s.Resolve(c, key)
	}
	if opt := s.Lookup(command, key); opt != nil {
		return opt.Default
	}
	return ""
}

// ResolveInt is Resolve parsed as an int. Unparseable values fall back to
// the default, and then to 0.
func (s *ConfigSchema) ResolveInt(c *Config, key string) int {
	if i, err := strconv.Atoi(s.Resolve(c, key)); err == nil {
		return i
	}
	if opt := s.Lookup("", key); opt != nil {
		if i, err := strconv.Atoi(opt.Default); err == nil {
			return i
		}
	}
	return 0
}

// ValidateConfig returns human-readable problems with c: unknown options and
// values that do not match the declared type. The result is sorted.
func ValidateConfig(c *Config, s *ConfigSchema) []string {
	var issues []string

	for key, value := range c.Global {
		opt := s.Lookup("", key)
		if opt == nil {
			issues = append(issues, fmt.Sprintf("unknown global option: %q (value: %q)", key, value))
			continue
		}
		if err := opt.validate(value); err != nil {
			issues = append(issues, fmt.Sprintf("global option %q: %v", key, err))
		}
	}

	for section, opts := range c.Commands {
		for key, value := range opts {
			opt := s.Lookup(section, key)
			if opt == nil {
				opt = s.Lookup("", key)
			}
			if opt == nil {
				issues = append(issues, fmt.Sprintf("unknown option for command %q: %q (value: %q)", section, key, value))
				continue
			}
			if err := opt.validate(value); err != nil {
				issues = append(issues, fmt.Sprintf("option %q in [%s]: %v", key, section, err))
			}
		}
	}

	sort.Strings(issues)
	return issues
}

// Validate checks value against the option's type.
func (o ConfigOption) Validate(value string) error {
	return o.validate(value)
}

func (o ConfigOption) validate(value string) error {
	switch o.Type {
	case TypeString, "":
		return nil
	case TypeBool:
		if _, err := parseBool(value); err != nil {
			return fmt.Errorf("expected bool, got %q", value)
		}
	case TypeInt:
		if _, err := strconv.Atoi(value); err != nil {
			return fmt.Errorf("expected int, got %q", value)
		}
	case TypeEnum:
		if !slices.Contains(o.Choices, value) {
			return fmt.Errorf("expected one of %s, got %q", strings.Join(o.Choices, ", "), value)
		}
	default:
		return fmt.Errorf("unknown option type %q", o.Type)
	}
	return nil
}

// FormatHelp lists every option, globals first, then each section.
func (s *ConfigSchema) FormatHelp() string {
	var b strings.Builder

	if globals := s.GlobalOptions(); len(globals) > 0 {
		b.WriteString("Global Options:\n")
		for _, o := range globals {
			writeOptionHelp(&b, o)
		}
	}
	for _, sec := range s.Sections() {
		opts := s.SectionOptions(sec)
		if len(opts) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n[%s] Options:\n", sec)
		for _, o := range opts {
			writeOptionHelp(&b, o)
		}
	}
	return b.String()
}

func writeOptionHelp(b *strings.Builder, o ConfigOption) {
	fmt.Fprintf(b, "  %-28s %s", o.Key, o.Description)
	var parts []string
	switch {
	case o.Type == TypeEnum:
		parts = append(parts, "one of: "+strings.Join(o.Choices, "|"))
	case o.Type != "" && o.Type != TypeString:
		parts = append(parts, "type: "+string(o.Type))
	}
	if o.Default != "" {
		parts = append(parts, "default: "+o.Default)
	}
	if o.EnvVar != "" {
		parts = append(parts, "env: "+o.EnvVar)
	}
	if len(parts) > 0 {
		fmt.Fprintf(b, " (%s)", strings.Join(parts, ", "))
	}
	b.WriteString("\n")
}

// Option keys read by the CLI.
const (
	KeyStoreBackend    = "store.backend"
	KeyStorePath       = "store.path"
	KeyMalformedRecord = "history.malformed-record"
	KeyColor           = "color"
	KeyLogFile         = "log.file"
	KeyLogLevel        = "log.level"
	KeyLogMaxSizeMB    = "log.max-size-mb"
	KeyLogMaxFiles     = "log.max-files"

	KeyHistoryTitleWidth   = "title-width"
	KeyHistoryExportFormat = "export-format"
)

// DefaultSchema returns every option canine understands.
func DefaultSchema() *ConfigSchema {
	s := NewSchema()
	s.RegisterAll(defaultGlobalOptions())
	s.RegisterAll(defaultCommandOptions())
	return s
}

func defaultGlobalOptions() []ConfigOption {
	return []ConfigOption{
		{Key: KeyStoreBackend, Type: TypeEnum, Choices: []string{"fs", "sqlite", "memory"}, Default: "fs", Description: "History store backend", EnvVar: "CANINE_STORE_BACKEND"},
		{Key: KeyStorePath, Type: TypeString, Description: "Store directory (fs) or database file (sqlite); empty uses the user config dir", EnvVar: "CANINE_STORE_PATH"},
		{Key: KeyMalformedRecord, Type: TypeEnum, Choices: []string{"skip", "abort"}, Default: "skip", Description: "What loading does with an undecodable record"},
		{Key: KeyColor, Type: TypeEnum, Choices: []string{"auto", "always", "never"}, Default: "auto", Description: "Color mode for rendered output", EnvVar: "CANINE_COLOR"},

		{Key: KeyLogFile, Type: TypeString, Description: "Log file path (JSON lines, rotated)", EnvVar: "CANINE_LOG_FILE"},
		{Key: KeyLogLevel, Type: TypeEnum, Choices: []string{"debug", "info", "warn", "error"}, Default: "info", Description: "Log level", EnvVar: "CANINE_LOG_LEVEL"},
		{Key: KeyLogMaxSizeMB, Type: TypeInt, Default: "10", Description: "Log file size in MB before rotation"},
		{Key: KeyLogMaxFiles, Type: TypeInt, Default: "5", Description: "Rotated log files to keep"},
	}
}

func defaultCommandOptions() []ConfigOption {
	return []ConfigOption{
		{Key: KeyHistoryTitleWidth, Section: "history", Type: TypeInt, Default: "40", Description: "Title column width in history list"},
		{Key: KeyHistoryExportFormat, Section: "history", Type: TypeEnum, Choices: []string{"json", "yaml"}, Default: "json", Description: "Default history export format"},
	}
}
