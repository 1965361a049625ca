package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/joeycumines/canine/internal/kvstore"
)

// SetKeyInFile sets key to value in the file at path, keeping every other
// line (comments included) as it is. section is "" for a global option.
//
// An existing line for the key in that section is replaced in place. A new
// global key goes before the first section header; a new section key goes at
// the end of its section, and a missing section is appended. The file is
// replaced atomically.
func SetKeyInFile(path, section, key, value string) error {
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reading config file: %w", err)
	}

	var lines []string
	if len(data) > 0 {
		lines = strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	}
	newLine := strings.TrimSpace(key + " " + value)

	var (
		current     string
		sectionSeen = section == ""
		insertAt    = -1
	)
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]") {
			if current == section && insertAt < 0 {
				insertAt = endOfSection(lines, i)
			}
			current = strings.TrimSpace(trimmed[1 : len(trimmed)-1])
			if current == section {
				sectionSeen = true
			}
			continue
		}
		if current != section || trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		if name, _, _ := strings.Cut(trimmed, " "); name == key {
			lines[i] = newLine
			return writeLines(path, lines)
		}
	}

	if !sectionSeen {
		if len(lines) > 0 {
			lines = append(lines, "")
		}
		return writeLines(path, append(lines, "["+section+"]", newLine))
	}
	if insertAt < 0 {
		// The section runs to the end of the file.
		insertAt = endOfSection(lines, len(lines))
	}
	return writeLines(path, slices.Insert(lines, insertAt, newLine))
}

// endOfSection returns the index just after the last non-blank line before
// header, so that new keys stay above any blank separator.
func endOfSection(lines []string, header int) int {
	i := header
	for i > 0 && strings.TrimSpace(lines[i-1]) == "" {
		i--
	}
	return i
}

func writeLines(path string, lines []string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	return kvstore.AtomicWriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644)
}
