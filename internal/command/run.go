package command

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/joeycumines/karol/internal/program"
	"github.com/joeycumines/karol/internal/session"
	"github.com/joeycumines/karol/internal/storage"
)

// ErrNotSolved is returned by run when the program failed or missed the
// assignment's goal. The report has already been printed.
var ErrNotSolved = errors.New("assignment not solved")

// RunCommand runs a program against an assignment.
type RunCommand struct {
	*BaseCommand
	env *Env

	assignment string
	entry      string
	format     string
	save       bool
}

// NewRunCommand creates a new run command.
func NewRunCommand(env *Env) *RunCommand {
	return &RunCommand{
		BaseCommand: NewBaseCommand(
			"run",
			"Run a program against an assignment and report the result",
			"run [options] [file|-]",
		),
		env: env,
	}
}

// SetupFlags configures the flags for the run command.
func (c *RunCommand) SetupFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.assignment, "assignment", "", "Assignment name or file (default: an empty 10x10 world)")
	fs.StringVar(&c.entry, "entry", "", "Entry class name (default: derived from the source)")
	fs.StringVar(&c.format, "format", "", "Output format: text or json (default from config)")
	fs.BoolVar(&c.save, "save", false, "Save the program as the assignment's solution when it succeeds")
}

// Execute runs the program. With no file argument the saved solution for
// the assignment is run.
func (c *RunCommand) Execute(args []string, stdout, stderr io.Writer) error {
	if len(args) > 1 {
		return fmt.Errorf("expected at most one program file, got %d", len(args))
	}
	format := c.format
	if format == "" {
		format = c.env.option("run", "format")
	}
	if err := checkFormat(format); err != nil {
		return err
	}

	s, err := c.env.settings()
	if err != nil {
		return err
	}
	logger, _, closeLog, err := openLogger(s, stderr, true)
	if err != nil {
		return err
	}
	defer closeLog()

	a, err := findAssignment(s.AssignmentsDir, c.assignment)
	if err != nil {
		return err
	}

	var store *storage.SolutionStore
	if c.save || len(args) == 0 {
		if store, err = storage.NewSolutionStore(s.SolutionsDir); err != nil {
			return err
		}
	}

	var source string
	if len(args) == 1 {
		if source, err = c.env.readSource(args[0]); err != nil {
			return err
		}
	} else {
		if c.assignment == "" {
			return errors.New("a program file is required when no assignment is given")
		}
		saved, found, err := store.Load(a.Name)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("no saved solution for %q", a.Name)
		}
		source = saved
	}

	runner, err := newRunner(s, logger)
	if err != nil {
		return err
	}
	var runOpts []program.RunOption
	if c.entry != "" {
		runOpts = append(runOpts, program.WithEntry(c.entry))
	}
	out, err := session.Attempt(context.Background(), a, runner, newGrader(logger), source,
		session.WithLogger(logger),
		session.WithRunOptions(runOpts...))
	if err != nil {
		return err
	}

	if out.Succeeded() && c.save && len(args) == 1 {
		if err := store.Save(a.Name, source); err != nil {
			return err
		}
		logger.Info("solution saved", "assignment", a.Name)
	}

	if strings.EqualFold(format, "json") {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			return err
		}
	} else {
		printOutcome(stdout, out)
	}
	if !out.Succeeded() {
		return ErrNotSolved
	}
	return nil
}

func printOutcome(w io.Writer, o *session.Outcome) {
	_, _ = fmt.Fprintf(w, "assignment: %s\n", o.Assignment)
	if o.Report != nil && o.Report.Module != "" {
		_, _ = fmt.Fprintf(w, "module:     %s\n", o.Report.Module)
	}
	switch {
	case o.Error == "":
		_, _ = fmt.Fprintln(w, "run:        completed")
	case o.Fault != "":
		_, _ = fmt.Fprintf(w, "run:        %s fault at line %d\n", o.Fault, o.Line)
	default:
		_, _ = fmt.Fprintf(w, "run:        %s failed\n", o.Stage)
	}
	if o.Error != "" {
		_, _ = fmt.Fprintf(w, "error:      %s\n", o.Error)
	}
	for _, d := range o.Diagnostics {
		_, _ = fmt.Fprintf(w, "  %s: %s\n", d.Kind, d)
	}

	p := o.State.Robot
	_, _ = fmt.Fprintf(w, "robot:      (%d,%d) facing %s carrying %d\n", p.X, p.Y, p.Direction, p.Carried)
	_, _ = fmt.Fprintf(w, "beepers:    %d on the ground\n", groundBeepers(o))

	switch {
	case o.GoalError != "":
		_, _ = fmt.Fprintf(w, "goal:       error: %s\n", o.GoalError)
	case o.Goal != nil && o.Goal.Passed:
		_, _ = fmt.Fprintf(w, "goal:       met (%s)\n", o.Goal.Goal)
	case o.Goal != nil:
		_, _ = fmt.Fprintf(w, "goal:       not met (%s)\n", o.Goal.Goal)
	}

	if o.Report != nil && len(o.Report.Console) > 0 {
		_, _ = fmt.Fprintln(w, "console:")
		for _, line := range o.Report.Console {
			_, _ = fmt.Fprintf(w, "  [%s] %s\n", line.Level, line.Text)
		}
		if o.Report.DroppedConsole > 0 {
			_, _ = fmt.Fprintf(w, "  (%d more lines dropped)\n", o.Report.DroppedConsole)
		}
	}

	if o.Succeeded() {
		_, _ = fmt.Fprintln(w, "result:     solved")
	} else {
		_, _ = fmt.Fprintln(w, "result:     not solved")
	}
}

func groundBeepers(o *session.Outcome) int {
	n := 0
	for _, b := range o.State.World.Beepers {
		n += b.Count
	}
	return n
}

// ValidateCommand checks a program without running it.
type ValidateCommand struct {
	*BaseCommand
	env   *Env
	entry string
}

// NewValidateCommand creates a new validate command.
func NewValidateCommand(env *Env) *ValidateCommand {
	return &ValidateCommand{
		BaseCommand: NewBaseCommand(
			"validate",
			"Check a program's structure and syntax without running it",
			"validate [options] file|-",
		),
		env: env,
	}
}

// SetupFlags configures the flags for the validate command.
func (c *ValidateCommand) SetupFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.entry, "entry", "", "Entry class name (default: derived from the source)")
}

// Execute validates and compiles the program.
func (c *ValidateCommand) Execute(args []string, stdout, stderr io.Writer) error {
	if len(args) != 1 {
		return errors.New("expected exactly one program file")
	}
	source, err := c.env.readSource(args[0])
	if err != nil {
		return err
	}
	s, err := c.env.settings()
	if err != nil {
		return err
	}
	logger, _, closeLog, err := openLogger(s, stderr, true)
	if err != nil {
		return err
	}
	defer closeLog()

	runner, err := newRunner(s, logger)
	if err != nil {
		return err
	}
	var opts []program.RunOption
	if c.entry != "" {
		opts = append(opts, program.WithEntry(c.entry))
	}
	report, err := runner.Check(context.Background(), source, opts...)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(stdout, "ok: %s\n", report.Module)
	return nil
}
