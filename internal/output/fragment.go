// Package output models the tagged fragments streamed back from a remote
// compile/run, coalesces them into display blocks, and renders those blocks
// to a terminal.
package output

import (
	"encoding/json"
	"fmt"
)

// Type tags a Fragment. The string values are the wire names used by the
// compile service.
type Type string

const (
	// CompilerMessageS is a compiler diagnostic written to the compiler's
	// standard output (informational).
	CompilerMessageS Type = "CompilerMessageS"
	// CompilerMessageE is a compiler diagnostic written to the compiler's
	// standard error.
	CompilerMessageE Type = "CompilerMessageE"
	StdOut           Type = "StdOut"
	StdErr           Type = "StdErr"
	// Control carries stream control markers such as "Start" and "Finish".
	// It is never displayed.
	Control Type = "Control"
	// Signal holds the name or number of the signal that ended the program.
	Signal Type = "Signal"
	// ExitCode holds the program's exit status as a decimal string.
	ExitCode Type = "ExitCode"
)

var types = []Type{CompilerMessageS, CompilerMessageE, StdOut, StdErr, Control, Signal, ExitCode}

// Types returns every known tag in wire order.
func Types() []Type {
	return append([]Type(nil), types...)
}

// ParseType returns the Type with wire name s.
func ParseType(s string) (Type, error) {
	for _, t := range types {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown output type %q", s)
}

// Mergeable reports whether consecutive fragments of this type are coalesced
// into one block. Only the diagnostic and standard stream types are.
func (t Type) Mergeable() bool {
	switch t {
	case CompilerMessageS, CompilerMessageE, StdOut, StdErr:
		return true
	default:
		return false
	}
}

// Console reports whether the type belongs in the console stream, as opposed
// to the summary area (Signal, ExitCode) or nowhere (Control).
func (t Type) Console() bool {
	return t.Mergeable()
}

func (t *Type) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("output type: %w", err)
	}
	parsed, err := ParseType(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Fragment is one tagged chunk of execution output.
type Fragment struct {
	Type Type   `json:"type"`
	Data string `json:"data"`
}

func (f Fragment) String() string {
	return fmt.Sprintf("%s:%q", f.Type, f.Data)
}
