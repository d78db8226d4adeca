package command

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/joeycumines/karol/internal/config"
)

// ConfigCommand shows and edits configuration.
type ConfigCommand struct {
	*BaseCommand
	env *Env
}

// NewConfigCommand creates a new config command.
func NewConfigCommand(env *Env) *ConfigCommand {
	return &ConfigCommand{
		BaseCommand: NewBaseCommand(
			"config",
			"Show, check or change configuration settings",
			"config [show | schema | validate | get <key> | set <key> <value>]",
		),
		env: env,
	}
}

// Execute dispatches on the first argument; no argument is show.
func (c *ConfigCommand) Execute(args []string, stdout, stderr io.Writer) error {
	action := "show"
	if len(args) > 0 {
		action, args = args[0], args[1:]
	}
	schema := c.env.schema()

	switch action {
	case "show":
		if len(args) != 0 {
			return errors.New("show takes no arguments")
		}
		if c.env.ConfigPath != "" {
			_, _ = fmt.Fprintf(stdout, "# %s\n", c.env.ConfigPath)
		}
		w := tabwriter.NewWriter(stdout, 0, 8, 2, ' ', 0)
		for _, o := range schema.Options("") {
			_, _ = fmt.Fprintf(w, "%s\t%s\n", o.Key, schema.Resolve(c.env.Config, o.Key))
		}
		for _, sec := range schema.Sections() {
			_, _ = fmt.Fprintf(w, "\n[%s]\t\n", sec)
			for _, o := range schema.Options(sec) {
				_, _ = fmt.Fprintf(w, "%s\t%s\n", o.Key, c.env.option(sec, o.Key))
			}
		}
		if err := w.Flush(); err != nil {
			return err
		}
		if c.env.Config != nil {
			for _, warn := range c.env.Config.Warnings {
				_, _ = fmt.Fprintf(stderr, "warning: %s\n", warn)
			}
		}
		return nil

	case "schema":
		_, _ = fmt.Fprint(stdout, schema.FormatHelp())
		return nil

	case "validate":
		cfg := c.env.Config
		if cfg == nil {
			cfg = config.NewConfig()
		}
		issues := config.ValidateConfig(cfg, schema)
		if _, err := c.env.settings(); err != nil {
			issues = append(issues, err.Error())
		}
		if len(issues) == 0 {
			_, _ = fmt.Fprintln(stdout, "configuration is valid")
			return nil
		}
		for _, issue := range issues {
			_, _ = fmt.Fprintln(stdout, issue)
		}
		return fmt.Errorf("%d configuration issue(s)", len(issues))

	case "get":
		if len(args) != 1 {
			return errors.New("get takes one key")
		}
		if schema.Lookup("", args[0]) == nil {
			return fmt.Errorf("unknown global option %q", args[0])
		}
		_, _ = fmt.Fprintln(stdout, schema.Resolve(c.env.Config, args[0]))
		return nil

	case "set":
		if len(args) != 2 {
			return errors.New("set takes a key and a value")
		}
		if c.env.ConfigPath == "" {
			return errors.New("no config file path is known")
		}
		if err := config.SetKeyInFile(c.env.ConfigPath, args[0], args[1]); err != nil {
			return err
		}
		if c.env.Config != nil {
			c.env.Config.SetGlobalOption(args[0], args[1])
		}
		_, _ = fmt.Fprintf(stdout, "%s set to %s in %s\n", args[0], args[1], c.env.ConfigPath)
		return nil
	}
	return fmt.Errorf("unknown action %q: want show, schema, validate, get or set", action)
}
