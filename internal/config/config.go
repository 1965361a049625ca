package config

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config is the parsed configuration file.
type Config struct {
	// Global holds options outside any [section].
	Global map[string]string
	// Commands holds options from [command] sections, keyed by command name.
	Commands map[string]map[string]string
	// Warnings lists problems found while loading. They never make loading
	// fail.
	Warnings []string
}

// NewConfig creates an empty configuration.
func NewConfig() *Config {
	return &Config{
		Global:   make(map[string]string),
		Commands: make(map[string]map[string]string),
	}
}

// Load reads the file at GetConfigPath.
func Load() (*Config, error) {
	path, err := GetConfigPath()
	if err != nil {
		return nil, fmt.Errorf("failed to get config path: %w", err)
	}
	return LoadFromPath(path)
}

// LoadFromPath reads the file at path. A missing file is an empty
// configuration; a symlink is an error.
func LoadFromPath(path string) (*Config, error) {
	fi, err := os.Lstat(path)
	switch {
	case os.IsNotExist(err):
		return NewConfig(), nil
	case err != nil:
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	case fi.Mode()&os.ModeSymlink != 0:
		return nil, fmt.Errorf("symlink not allowed in config path: %s", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()
	return LoadFromReader(f)
}

// LoadFromReader parses the dnsmasq-style format: one "optionName value"
// per line, "#" comments, and "[command]" headers starting a section.
// Options are checked against DefaultSchema; problems become Warnings.
func LoadFromReader(r io.Reader) (*Config, error) {
	c := NewConfig()
	seen := make(map[string]int)
	var section string

	scanner := bufio.NewScanner(r)
	for lineNo := 1; scanner.Scan(); lineNo++ {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "" || line[0] == '#':
			continue

		case line[0] == '[' && line[len(line)-1] == ']':
			section = strings.TrimSpace(line[1 : len(line)-1])
			if section == "" {
				return nil, fmt.Errorf("line %d: empty section name", lineNo)
			}
			if c.Commands[section] == nil {
				c.Commands[section] = make(map[string]string)
			}

		default:
			name, value, _ := strings.Cut(line, " ")
			value = strings.TrimSpace(value)
			if first, dup := seen[section+"\x00"+name]; dup {
				c.addWarning("line %d: %s repeats line %d; the last value wins", lineNo, qualified(section, name), first)
			} else {
				seen[section+"\x00"+name] = lineNo
			}
			if section == "" {
				c.Global[name] = value
			} else {
				c.Commands[section][name] = value
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config: %w", err)
	}

	for _, issue := range ValidateConfig(c, DefaultSchema()) {
		c.addWarning("%s", issue)
	}
	return c, nil
}

func qualified(section, name string) string {
	if section == "" {
		return fmt.Sprintf("%q", name)
	}
	return fmt.Sprintf("%q in [%s]", name, section)
}

func (c *Config) addWarning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	c.Warnings = append(c.Warnings, msg)
	slog.Debug("[config] " + msg)
}

// parseBool accepts true/false, 1/0, yes/no and on/off, case-insensitively.
func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "true", "1", "yes", "on":
		return true, nil
	case "false", "0", "no", "off":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean value: %s", s)
}

// GetGlobalOption returns a global option.
func (c *Config) GetGlobalOption(name string) (string, bool) {
	v, ok := c.Global[name]
	return v, ok
}

// GetCommandOption returns an option from the command's section, falling
// back to the global option of the same name.
func (c *Config) GetCommandOption(command, name string) (string, bool) {
	if v, ok := c.Commands[command][name]; ok {
		return v, true
	}
	return c.GetGlobalOption(name)
}

// SetGlobalOption sets a global option in memory.
func (c *Config) SetGlobalOption(name, value string) {
	c.Global[name] = value
}

// SetCommandOption sets a command option in memory.
func (c *Config) SetCommandOption(command, name, value string) {
	if c.Commands[command] == nil {
		c.Commands[command] = make(map[string]string)
	}
	c.Commands[command][name] = value
}

// HasWarnings reports whether loading produced any warnings.
func (c *Config) HasWarnings() bool {
	return len(c.Warnings) > 0
}
