package command

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/joeycumines/canine/internal/config"
	"github.com/joeycumines/canine/internal/output"
)

// RenderCommand renders a file of output fragments the way a run would
// display them.
type RenderCommand struct {
	*BaseCommand
	cfg   *config.Config
	color string
	stdin io.Reader
}

// NewRenderCommand creates the render command.
func NewRenderCommand(cfg *config.Config) *RenderCommand {
	return &RenderCommand{
		BaseCommand: NewBaseCommand("render", "Merge and display a stream of output fragments",
			"render [options] [file]"),
		cfg:   cfg,
		stdin: os.Stdin,
	}
}

func (c *RenderCommand) SetupFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.color, "color", "", "Color mode: auto|always|never (default from config)")
}

func (c *RenderCommand) Execute(args []string, stdout, stderr io.Writer) error {
	if len(args) > 1 {
		return usageErrorf(stderr, "render takes at most one file")
	}
	mode, err := resolveColorMode(c.cfg, c.Name(), c.color)
	if err != nil {
		return usageErrorf(stderr, "%v", err)
	}

	in := c.stdin
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open fragments: %w", err)
		}
		defer f.Close()
		in = f
	}

	fragments, err := output.Decode(in)
	if err != nil {
		return err
	}
	return output.NewRenderer(stdout, output.WithColor(mode.Enabled(stdout))).Render(fragments)
}
