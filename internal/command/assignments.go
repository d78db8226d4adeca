package command

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/joeycumines/karol/internal/assignment"
	"github.com/joeycumines/karol/internal/storage"
)

// AssignmentsCommand lists the assignments in the assignments directory.
type AssignmentsCommand struct {
	*BaseCommand
	env    *Env
	format string
}

// NewAssignmentsCommand creates a new assignments command.
func NewAssignmentsCommand(env *Env) *AssignmentsCommand {
	return &AssignmentsCommand{
		BaseCommand: NewBaseCommand(
			"assignments",
			"List available assignments",
			"assignments [options]",
		),
		env: env,
	}
}

// SetupFlags configures the flags for the assignments command.
func (c *AssignmentsCommand) SetupFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.format, "format", "", "Output format: text or json (default from config)")
}

type assignmentListing struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Goal        string `json:"goal,omitempty"`
	Solved      bool   `json:"hasSolution"`
	Path        string `json:"path"`
}

// Execute lists assignments. Files that fail to load are reported on stderr
// and do not stop the listing.
func (c *AssignmentsCommand) Execute(args []string, stdout, stderr io.Writer) error {
	if len(args) > 0 {
		return fmt.Errorf("unexpected arguments: %v", args)
	}
	format := c.format
	if format == "" {
		format = c.env.option("assignments", "format")
	}
	if err := checkFormat(format); err != nil {
		return err
	}
	s, err := c.env.settings()
	if err != nil {
		return err
	}

	all, loadErr := assignment.LoadAll(s.AssignmentsDir)
	if loadErr != nil {
		_, _ = fmt.Fprintf(stderr, "warning: %v\n", loadErr)
	}

	saved := make(map[string]bool)
	if store, err := storage.NewSolutionStore(s.SolutionsDir); err == nil {
		keys, err := store.Keys()
		if err != nil {
			return err
		}
		for _, k := range keys {
			saved[k] = true
		}
	}

	listing := make([]assignmentListing, 0, len(all))
	for _, a := range all {
		listing = append(listing, assignmentListing{
			Name:        a.Name,
			Description: a.Description,
			Width:       a.WorldWidth,
			Height:      a.WorldHeight,
			Goal:        a.Goal,
			Solved:      saved[a.Name],
			Path:        a.Path,
		})
	}

	if strings.EqualFold(format, "json") {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(listing)
	}

	if len(listing) == 0 {
		_, _ = fmt.Fprintf(stdout, "No assignments found in %s\n", s.AssignmentsDir)
		return nil
	}
	w := tabwriter.NewWriter(stdout, 0, 8, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tSIZE\tSOLVED\tDESCRIPTION")
	for _, a := range listing {
		solved := ""
		if a.Solved {
			solved = "yes"
		}
		_, _ = fmt.Fprintf(w, "%s\t%dx%d\t%s\t%s\n", a.Name, a.Width, a.Height, solved, a.Description)
	}
	return w.Flush()
}
