package command

import (
	"errors"
	"fmt"
	"io"

	"github.com/joeycumines/karol/internal/storage"
)

// SolutionCommand manages saved solutions.
type SolutionCommand struct {
	*BaseCommand
	env *Env
}

// NewSolutionCommand creates a new solution command.
func NewSolutionCommand(env *Env) *SolutionCommand {
	return &SolutionCommand{
		BaseCommand: NewBaseCommand(
			"solution",
			"Get, save, delete or list saved solutions",
			"solution list | get <assignment> | save <assignment> file|- | delete <assignment>",
		),
		env: env,
	}
}

// Execute dispatches on the first argument.
func (c *SolutionCommand) Execute(args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: karol %s", c.Usage())
	}
	s, err := c.env.settings()
	if err != nil {
		return err
	}
	store, err := storage.NewSolutionStore(s.SolutionsDir)
	if err != nil {
		return err
	}

	action, rest := args[0], args[1:]
	switch action {
	case "list":
		if len(rest) != 0 {
			return errors.New("list takes no arguments")
		}
		keys, err := store.Keys()
		if err != nil {
			return err
		}
		for _, k := range keys {
			_, _ = fmt.Fprintln(stdout, k)
		}
		return nil

	case "get":
		if len(rest) != 1 {
			return errors.New("get takes one assignment name")
		}
		src, found, err := store.Load(rest[0])
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("no saved solution for %q", rest[0])
		}
		_, _ = io.WriteString(stdout, src)
		return nil

	case "save":
		if len(rest) != 2 {
			return errors.New("save takes an assignment name and a program file")
		}
		src, err := c.env.readSource(rest[1])
		if err != nil {
			return err
		}
		if err := store.Save(rest[0], src); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(stdout, "saved solution for %s\n", rest[0])
		return nil

	case "delete":
		if len(rest) != 1 {
			return errors.New("delete takes one assignment name")
		}
		if err := store.Delete(rest[0]); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(stdout, "deleted solution for %s\n", rest[0])
		return nil
	}
	return fmt.Errorf("unknown action %q: want list, get, save or delete", action)
}
