package command

import (
	"flag"
	"fmt"
	"io"
	"time"
)

// SweepCommand removes run workspaces left behind by crashed processes.
type SweepCommand struct {
	*BaseCommand
	env    *Env
	dryRun bool
	maxAge time.Duration
}

// NewSweepCommand creates a new sweep command.
func NewSweepCommand(env *Env) *SweepCommand {
	return &SweepCommand{
		BaseCommand: NewBaseCommand(
			"sweep",
			"Remove stale run workspaces",
			"sweep [options]",
		),
		env: env,
	}
}

// SetupFlags configures the flags for the sweep command.
func (c *SweepCommand) SetupFlags(fs *flag.FlagSet) {
	fs.BoolVar(&c.dryRun, "dry-run", false, "List what would be removed without removing it")
	fs.DurationVar(&c.maxAge, "max-age", 0, "Minimum workspace age (default from config)")
}

// Execute runs one sweep.
func (c *SweepCommand) Execute(args []string, stdout, stderr io.Writer) error {
	if len(args) > 0 {
		return fmt.Errorf("unexpected arguments: %v", args)
	}
	s, err := c.env.settings()
	if err != nil {
		return err
	}
	sw := newSweeper(s)
	sw.DryRun = c.dryRun
	if c.maxAge > 0 {
		sw.MaxAge = c.maxAge
	}

	report, err := sw.Sweep()
	if err != nil {
		return err
	}
	verb := "removed"
	if c.dryRun {
		verb = "would remove"
	}
	for _, name := range report.Removed {
		_, _ = fmt.Fprintf(stdout, "%s %s\n", verb, name)
	}
	_, _ = fmt.Fprintf(stdout, "%d %s, %d kept\n", len(report.Removed), verb, len(report.Skipped))
	return nil
}
