package command

import (
	"flag"
	"io"
)

// Command is one karol subcommand.
type Command interface {
	// Name returns the command name.
	Name() string

	// Description returns a short description of the command.
	Description() string

	// Usage returns the usage string for the command.
	Usage() string

	// SetupFlags registers the command's flags on fs before parsing.
	SetupFlags(fs *flag.FlagSet)

	// Execute runs the command with the arguments left after flag parsing.
	Execute(args []string, stdout, stderr io.Writer) error
}

// BaseCommand carries the name, description and usage every command has.
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

// Name returns the command name.
func (c *BaseCommand) Name() string { return c.name }

// Description returns the command description.
func (c *BaseCommand) Description() string { return c.description }

// Usage returns the command usage.
func (c *BaseCommand) Usage() string { return c.usage }

// SetupFlags registers no flags.
func (c *BaseCommand) SetupFlags(fs *flag.FlagSet) {}
