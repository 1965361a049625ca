package command

import (
	"errors"
	"flag"
	"fmt"
	"io"
)

// Command is a canine subcommand.
type Command interface {
	// Name returns the command name.
	Name() string

	// Description returns a one-line summary.
	Description() string

	// Usage returns the usage line, without the program name.
	Usage() string

	// SetupFlags registers the command's flags on fs before parsing.
	SetupFlags(fs *flag.FlagSet)

	// Execute runs the command with the arguments left after flag parsing.
	Execute(args []string, stdout, stderr io.Writer) error
}

// ErrUsage reports wrong arguments. The message has already been written to
// stderr when it is returned.
var ErrUsage = errors.New("invalid usage")

// BaseCommand implements the descriptive parts of Command.
type BaseCommand struct {
	name        string
	description string
	usage       string
}

// NewBaseCommand creates a new BaseCommand.
func NewBaseCommand(name, description, usage string) *BaseCommand {
	return &BaseCommand{
		name:        name,
		description: description,
		usage:       usage,
	}
}

func (c *BaseCommand) Name() string        { return c.name }
func (c *BaseCommand) Description() string { return c.description }
func (c *BaseCommand) Usage() string       { return c.usage }

// SetupFlags registers no flags.
func (c *BaseCommand) SetupFlags(fs *flag.FlagSet) {}

// usageErrorf writes a usage problem to stderr and returns ErrUsage.
func usageErrorf(stderr io.Writer, format string, args ...any) error {
	_, _ = fmt.Fprintf(stderr, format+"\n", args...)
	return fmt.Errorf("%w: %s", ErrUsage, fmt.Sprintf(format, args...))
}

// subcommandFlags builds a FlagSet for "<parent> <sub>". Help output goes to
// stderr on request; parse errors are reported through the returned error
// only.
func subcommandFlags(parent, sub, summary string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(parent+"-"+sub, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.Usage = func() {
		_, _ = fmt.Fprintf(stderr, "Usage: %s %s\n\n%s\n", parent, sub, summary)
		var hasFlags bool
		fs.VisitAll(func(*flag.Flag) { hasFlags = true })
		if hasFlags {
			_, _ = fmt.Fprintln(stderr, "\nOptions:")
			fs.SetOutput(stderr)
			fs.PrintDefaults()
			fs.SetOutput(io.Discard)
		}
	}
	return fs
}

// parseSubcommand parses args with fs. ok is false when the caller should
// stop: either help was requested (err is nil) or parsing failed.
func parseSubcommand(fs *flag.FlagSet, args []string) (ok bool, err error) {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %w", ErrUsage, err)
	}
	return true, nil
}
