// Package snapshot defines the session payload stored in each history
// record: the sources, compiler selection, options, stdin and results of one
// compile/run.
//
// The history package treats payloads as opaque JSON objects; this package
// is the only place that knows their shape. Unknown members are tolerated
// when decoding so that records written by other clients still load.
package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joeycumines/canine/internal/output"
)

// Source is one editor tab: a file name and its text.
type Source struct {
	Filename string `json:"filename"`
	Text     string `json:"text"`
}

// Snapshot is a saved session.
type Snapshot struct {
	Title             string            `json:"title,omitempty"`
	Compiler          string            `json:"compiler,omitempty"`
	Sources           []Source          `json:"sources"`
	CompilerOptionRaw string            `json:"compilerOptionRaw,omitempty"`
	RuntimeOptionRaw  string            `json:"runtimeOptionRaw,omitempty"`
	Stdin             string            `json:"stdin,omitempty"`
	Results           []output.Fragment `json:"results,omitempty"`
	CreatedAt         time.Time         `json:"createdAt"`
}

// ErrNoSources is returned when building a snapshot without any source file.
var ErrNoSources = errors.New("snapshot needs at least one source file")

// now is replaced in tests.
var now = time.Now

// Options holds everything besides the sources that goes into a snapshot.
type Options struct {
	Title             string
	Compiler          string
	CompilerOptionRaw string
	RuntimeOptionRaw  string
	Stdin             string
	Results           []output.Fragment
}

// New builds a snapshot from in-memory sources, stamped with the current
// time.
func New(sources []Source, opts Options) (Snapshot, error) {
	if len(sources) == 0 {
		return Snapshot{}, ErrNoSources
	}
	seen := make(map[string]struct{}, len(sources))
	for _, s := range sources {
		if _, dup := seen[s.Filename]; dup {
			return Snapshot{}, fmt.Errorf("duplicate source filename %q", s.Filename)
		}
		seen[s.Filename] = struct{}{}
	}
	return Snapshot{
		Title:             opts.Title,
		Compiler:          opts.Compiler,
		Sources:           append([]Source(nil), sources...),
		CompilerOptionRaw: opts.CompilerOptionRaw,
		RuntimeOptionRaw:  opts.RuntimeOptionRaw,
		Stdin:             opts.Stdin,
		Results:           append([]output.Fragment(nil), opts.Results...),
		CreatedAt:         now().UTC().Truncate(time.Second),
	}, nil
}

// ReadSources reads each path into a Source named by its slash-separated
// path as given.
func ReadSources(paths []string) ([]Source, error) {
	sources := make([]Source, 0, len(paths))
	for _, p := range paths {
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read source: %w", err)
		}
		sources = append(sources, Source{
			Filename: filepath.ToSlash(filepath.Clean(p)),
			Text:     string(b),
		})
	}
	return sources, nil
}

// Marshal encodes s as a history payload.
func (s Snapshot) Marshal() (json.RawMessage, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return b, nil
}

// Unmarshal decodes a history payload.
func Unmarshal(payload json.RawMessage) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(payload, &s); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return s, nil
}

// DisplayTitle is the title, falling back to the first source's filename.
func (s Snapshot) DisplayTitle() string {
	if t := strings.TrimSpace(s.Title); t != "" {
		return t
	}
	if len(s.Sources) > 0 && s.Sources[0].Filename != "" {
		return s.Sources[0].Filename
	}
	return "(untitled)"
}

// ExitCode returns the data of the last ExitCode result, if any.
func (s Snapshot) ExitCode() (string, bool) {
	for i := len(s.Results) - 1; i >= 0; i-- {
		if s.Results[i].Type == output.ExitCode {
			return s.Results[i].Data, true
		}
	}
	return "", false
}
