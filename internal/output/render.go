package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Renderer writes merged fragments to a terminal: console blocks first, in
// order, then a summary of how the program ended.
type Renderer struct {
	w      io.Writer
	color  bool
	styles map[Type]lipgloss.Style
	label  lipgloss.Style
	title  cases.Caser
}

// RendererOption configures a Renderer.
type RendererOption func(*Renderer)

// WithColor enables or disables ANSI styling. It is off by default.
func WithColor(enabled bool) RendererOption {
	return func(r *Renderer) {
		r.color = enabled
	}
}

// NewRenderer creates a Renderer writing to w.
func NewRenderer(w io.Writer, opts ...RendererOption) *Renderer {
	r := &Renderer{
		w:     w,
		title: cases.Title(language.Und),
	}
	for _, opt := range opts {
		opt(r)
	}

	lr := lipgloss.NewRenderer(w)
	if r.color {
		lr.SetColorProfile(termenv.ANSI256)
	} else {
		lr.SetColorProfile(termenv.Ascii)
	}
	base := lr.NewStyle().TabWidth(lipgloss.NoTabConversion)
	r.styles = map[Type]lipgloss.Style{
		CompilerMessageS: base.Foreground(lipgloss.Color("245")),
		CompilerMessageE: base.Foreground(lipgloss.Color("203")).Bold(true),
		StdErr:           base.Foreground(lipgloss.Color("203")),
	}
	r.label = base.Bold(true)
	return r
}

// Render merges fragments and writes the result. Control fragments are
// dropped; Signal and ExitCode fragments are collected into the summary,
// which starts on a fresh line.
func (r *Renderer) Render(fragments []Fragment) error {
	var (
		summary []Fragment
		endsNL  = true
	)
	for _, block := range Merge(fragments) {
		switch {
		case block.Type.Console():
			if block.Data == "" {
				continue
			}
			if _, err := io.WriteString(r.w, r.style(block.Type, block.Data)); err != nil {
				return err
			}
			endsNL = strings.HasSuffix(block.Data, "\n")
		case block.Type == Signal, block.Type == ExitCode:
			summary = append(summary, block)
		}
	}

	if len(summary) == 0 {
		return nil
	}
	if !endsNL {
		if _, err := io.WriteString(r.w, "\n"); err != nil {
			return err
		}
	}
	for _, f := range summary {
		label := r.SummaryLabel(f.Type) + ":"
		if r.color {
			label = r.label.Render(label)
		}
		if _, err := fmt.Fprintf(r.w, "%s %s\n", label, f.Data); err != nil {
			return err
		}
	}
	return nil
}

// SummaryLabel is the human-readable name shown for a summary type, for
// example "Exit Code".
func (r *Renderer) SummaryLabel(t Type) string {
	words := string(t)
	if t == ExitCode {
		words = "exit code"
	}
	return r.title.String(strings.ToLower(words))
}

// style applies the type's style, if it has one, line by line, leaving line breaks and
// blank lines unstyled so blocks never gain padding.
func (r *Renderer) style(t Type, data string) string {
	if !r.color {
		return data
	}
	st, ok := r.styles[t]
	if !ok {
		return data
	}
	lines := strings.Split(data, "\n")
	for i, line := range lines {
		if line != "" {
			lines[i] = st.Render(line)
		}
	}
	return strings.Join(lines, "\n")
}
