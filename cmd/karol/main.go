package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/joeycumines/karol/internal/command"
	"github.com/joeycumines/karol/internal/config"
)

const version = "0.1.0"

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	env := &command.Env{
		Schema:  config.DefaultSchema(),
		Stdin:   stdin,
		Version: version,
	}
	if path, err := config.Path(); err == nil {
		env.ConfigPath = path
		cfg, err := config.LoadFromPath(path)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "warning: %v\n", err)
			cfg = config.NewConfig()
		}
		env.Config = cfg
	} else {
		env.Config = config.NewConfig()
	}

	registry := command.NewRegistry()
	helpCmd := command.NewHelpCommand(registry)
	registry.Register(helpCmd)
	registry.Register(command.NewVersionCommand(version))
	registry.Register(command.NewRunCommand(env))
	registry.Register(command.NewValidateCommand(env))
	registry.Register(command.NewAssignmentsCommand(env))
	registry.Register(command.NewSolutionCommand(env))
	registry.Register(command.NewSweepCommand(env))
	registry.Register(command.NewServeCommand(env))
	registry.Register(command.NewConfigCommand(env))

	if len(args) == 0 {
		return helpCmd.Execute(nil, stdout, stderr)
	}

	cmdName := args[0]
	if cmdName == "-h" || cmdName == "--help" {
		return helpCmd.Execute(nil, stdout, stderr)
	}

	cmd, err := registry.Get(cmdName)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Unknown command: %s\n", cmdName)
		_, _ = fmt.Fprintln(stderr, "Use 'karol help' to see available commands.")
		return err
	}

	fs := flag.NewFlagSet(cmd.Name(), flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		_, _ = fmt.Fprintf(stderr, "Usage: karol %s\n", cmd.Usage())
		_, _ = fmt.Fprintf(stderr, "\n%s\n\n", cmd.Description())
		_, _ = fmt.Fprintln(stderr, "Options:")
		fs.PrintDefaults()
	}
	cmd.SetupFlags(fs)

	if err := fs.Parse(args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	return cmd.Execute(fs.Args(), stdout, stderr)
}
