package command

import (
	"context"
	"fmt"
	"io"

	"github.com/joeycumines/karol/internal/mcp"
	"github.com/joeycumines/karol/internal/storage"
)

// ServeCommand runs the MCP server on stdio.
type ServeCommand struct {
	*BaseCommand
	env *Env
}

// NewServeCommand creates a new serve command.
func NewServeCommand(env *Env) *ServeCommand {
	return &ServeCommand{
		BaseCommand: NewBaseCommand(
			"serve",
			"Run the MCP server over stdio",
			"serve",
		),
		env: env,
	}
}

// Execute serves until the client disconnects or the process is signalled.
// Stdout carries the protocol, so logs never go there.
func (c *ServeCommand) Execute(args []string, stdout, stderr io.Writer) error {
	if len(args) > 0 {
		return fmt.Errorf("unexpected arguments: %v", args)
	}
	s, err := c.env.settings()
	if err != nil {
		return err
	}
	logger, logs, closeLog, err := openLogger(s, stderr, false)
	if err != nil {
		return err
	}
	defer closeLog()

	runner, err := newRunner(s, logger)
	if err != nil {
		return err
	}
	solutions, err := storage.NewSolutionStore(s.SolutionsDir)
	if err != nil {
		return err
	}

	server, err := mcp.NewServer(&mcp.Config{
		Name:           "karol",
		Version:        c.env.Version,
		Runner:         runner,
		Grader:         newGrader(logger),
		AssignmentsDir: s.AssignmentsDir,
		Solutions:      solutions,
		Sweeper: &storage.SweepScheduler{
			Sweeper:  newSweeper(s),
			Interval: s.SweepInterval,
			Logger:   logger,
		},
		Logs:   logs,
		Logger: logger,
	})
	if err != nil {
		return err
	}
	return server.Run(context.Background())
}
