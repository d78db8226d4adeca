package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/joeycumines/karol/internal/assignment"
	"github.com/joeycumines/karol/internal/logging"
	"github.com/joeycumines/karol/internal/program"
	"github.com/joeycumines/karol/internal/session"
	"github.com/joeycumines/karol/internal/world"
)

const defaultLogLimit = 50

func (s *Server) registerTools() {
	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "karol_validate",
		Description: "Check a robot program: namespace directive, Program subclass, require('karol'), syntax and contract. Does not run it.",
	}, s.handleValidate)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "karol_run",
		Description: "Run a robot program against an assignment (or an empty 10x10 world) and report the final state, any fault, and whether the goal was met",
	}, s.handleRun)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "karol_assignments",
		Description: "List the available assignments",
	}, s.handleAssignments)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "karol_solution",
		Description: "Get, save, delete or list saved solutions, keyed by assignment name",
	}, s.handleSolution)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "karol_logs",
		Description: "Show recent server log records, optionally filtered by a search string",
	}, s.handleLogs)
}

// ValidateInput is the karol_validate argument.
type ValidateInput struct {
	Source string `json:"source" jsonschema:"the program source"`
	Entry  string `json:"entry,omitempty" jsonschema:"entry class name, derived from the source when empty"`
}

// ValidateOutput is the karol_validate result.
type ValidateOutput struct {
	Valid       bool         `json:"valid"`
	Module      string       `json:"module,omitempty"`
	Stage       string       `json:"stage,omitempty"`
	Error       string       `json:"error,omitempty"`
	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`
}

func (s *Server) handleValidate(ctx context.Context, req *sdk.CallToolRequest, args ValidateInput) (*sdk.CallToolResult, ValidateOutput, error) {
	report, err := s.cfg.Runner.Check(ctx, args.Source, entryOpts(args.Entry)...)
	out := ValidateOutput{Valid: err == nil, Module: report.Module}
	if err != nil {
		out.Stage = program.Stage(err)
		out.Error = err.Error()
		out.Diagnostics = diagnostics(program.DiagnosticsOf(err))
		if out.Stage == "" {
			return nil, ValidateOutput{}, err
		}
	}
	s.logger.Debug("validate", "valid", out.Valid, "stage", out.Stage)
	return nil, out, nil
}

// RunInput is the karol_run argument.
type RunInput struct {
	Source     string `json:"source,omitempty" jsonschema:"the program source; when empty the saved solution for the assignment is run"`
	Entry      string `json:"entry,omitempty" jsonschema:"entry class name, derived from the source when empty"`
	Assignment string `json:"assignment,omitempty" jsonschema:"assignment name; an empty 10x10 world when empty"`
	Save       bool   `json:"save,omitempty" jsonschema:"save the source as the assignment's solution when the run succeeds"`
}

// RunOutput is the karol_run result.
type RunOutput struct {
	Assignment     string                `json:"assignment"`
	Session        string                `json:"session"`
	Module         string                `json:"module,omitempty"`
	Succeeded      bool                  `json:"succeeded"`
	Saved          bool                  `json:"saved,omitempty"`
	Stage          string                `json:"stage,omitempty"`
	Error          string                `json:"error,omitempty"`
	Fault          string                `json:"fault,omitempty"`
	Line           int                   `json:"line,omitempty"`
	Diagnostics    []Diagnostic          `json:"diagnostics,omitempty"`
	Console        []program.ConsoleLine `json:"console,omitempty"`
	DroppedConsole int                   `json:"droppedConsole,omitempty"`
	Robot          Pose                  `json:"robot"`
	World          world.Snapshot        `json:"world"`
	Goal           string                `json:"goal,omitempty"`
	GoalPassed     *bool                 `json:"goalPassed,omitempty"`
	GoalError      string                `json:"goalError,omitempty"`
}

// Pose is the robot's final state.
type Pose struct {
	X         int    `json:"x"`
	Y         int    `json:"y"`
	Direction string `json:"direction"`
	Carried   int    `json:"carried"`
}

// Diagnostic is one validation or compilation problem.
type Diagnostic struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
}

func diagnostics(in []program.Diagnostic) []Diagnostic {
	if len(in) == 0 {
		return nil
	}
	out := make([]Diagnostic, len(in))
	for i, d := range in {
		out[i] = Diagnostic{Kind: d.Kind.String(), Message: d.Message, Line: d.Line, Column: d.Column}
	}
	return out
}

func runOutput(o *session.Outcome) RunOutput {
	p := o.State.Robot
	out := RunOutput{
		Assignment:  o.Assignment,
		Session:     o.Session,
		Succeeded:   o.Succeeded(),
		Stage:       o.Stage,
		Error:       o.Error,
		Fault:       o.Fault,
		Line:        o.Line,
		Diagnostics: diagnostics(o.Diagnostics),
		Robot:       Pose{X: p.X, Y: p.Y, Direction: p.Direction.String(), Carried: p.Carried},
		World:       o.State.World,
		GoalError:   o.GoalError,
	}
	if r := o.Report; r != nil {
		out.Module = r.Module
		out.Console = r.Console
		out.DroppedConsole = r.DroppedConsole
	}
	if o.Goal != nil {
		passed := o.Goal.Passed
		out.Goal, out.GoalPassed = o.Goal.Goal, &passed
	}
	return out
}

func (s *Server) handleRun(ctx context.Context, req *sdk.CallToolRequest, args RunInput) (*sdk.CallToolResult, RunOutput, error) {
	a := assignment.Default()
	if args.Assignment != "" {
		var err error
		if a, err = assignment.Find(s.cfg.AssignmentsDir, args.Assignment); err != nil {
			return nil, RunOutput{}, err
		}
	}

	source := args.Source
	if source == "" {
		if args.Assignment == "" || s.cfg.Solutions == nil {
			return nil, RunOutput{}, errors.New("source is required")
		}
		saved, found, err := s.cfg.Solutions.Load(args.Assignment)
		if err != nil {
			return nil, RunOutput{}, err
		}
		if !found {
			return nil, RunOutput{}, fmt.Errorf("no saved solution for %q", args.Assignment)
		}
		source = saved
	}

	out, err := session.Attempt(ctx, a, s.cfg.Runner, s.cfg.Grader, source,
		session.WithLogger(s.logger),
		session.WithRunOptions(entryOpts(args.Entry)...))
	if err != nil {
		return nil, RunOutput{}, err
	}
	res := runOutput(out)

	if args.Save && res.Succeeded && args.Assignment != "" && s.cfg.Solutions != nil {
		if err := s.cfg.Solutions.Save(args.Assignment, source); err != nil {
			return nil, RunOutput{}, err
		}
		res.Saved = true
	}
	s.logger.Info("run", "assignment", a.Name, "succeeded", res.Succeeded, "stage", res.Stage)
	return nil, res, nil
}

// AssignmentsInput is the karol_assignments argument.
type AssignmentsInput struct{}

// AssignmentSummary describes one assignment.
type AssignmentSummary struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Goal        string `json:"goal,omitempty"`
	Solved      bool   `json:"hasSolution"`
}

// AssignmentsOutput is the karol_assignments result.
type AssignmentsOutput struct {
	Assignments []AssignmentSummary `json:"assignments"`
	Errors      []string            `json:"errors,omitempty"`
}

func (s *Server) handleAssignments(ctx context.Context, req *sdk.CallToolRequest, args AssignmentsInput) (*sdk.CallToolResult, AssignmentsOutput, error) {
	all, loadErr := assignment.LoadAll(s.cfg.AssignmentsDir)
	saved := make(map[string]bool)
	if s.cfg.Solutions != nil {
		keys, err := s.cfg.Solutions.Keys()
		if err != nil {
			return nil, AssignmentsOutput{}, err
		}
		for _, k := range keys {
			saved[k] = true
		}
	}

	out := AssignmentsOutput{Assignments: make([]AssignmentSummary, 0, len(all))}
	for _, a := range all {
		out.Assignments = append(out.Assignments, AssignmentSummary{
			Name:        a.Name,
			Description: a.Description,
			Width:       a.WorldWidth,
			Height:      a.WorldHeight,
			Goal:        a.Goal,
			Solved:      saved[a.Name],
		})
	}
	if loadErr != nil {
		out.Errors = strings.Split(loadErr.Error(), "\n")
	}
	return nil, out, nil
}

// SolutionInput is the karol_solution argument.
type SolutionInput struct {
	Action     string `json:"action" jsonschema:"one of get, save, delete, list"`
	Assignment string `json:"assignment,omitempty" jsonschema:"assignment name; required except for list"`
	Source     string `json:"source,omitempty" jsonschema:"program source to save"`
}

// SolutionOutput is the karol_solution result.
type SolutionOutput struct {
	Assignment string   `json:"assignment,omitempty"`
	Source     string   `json:"source,omitempty"`
	Found      bool     `json:"found"`
	Keys       []string `json:"keys,omitempty"`
}

func (s *Server) handleSolution(ctx context.Context, req *sdk.CallToolRequest, args SolutionInput) (*sdk.CallToolResult, SolutionOutput, error) {
	store := s.cfg.Solutions
	if store == nil {
		return nil, SolutionOutput{}, errors.New("no solution store configured")
	}
	out := SolutionOutput{Assignment: args.Assignment}
	switch args.Action {
	case "list":
		keys, err := store.Keys()
		if err != nil {
			return nil, SolutionOutput{}, err
		}
		out.Keys = keys
		out.Found = len(keys) > 0
	case "get":
		src, found, err := store.Load(args.Assignment)
		if err != nil {
			return nil, SolutionOutput{}, err
		}
		out.Source, out.Found = src, found
	case "save":
		if err := store.Save(args.Assignment, args.Source); err != nil {
			return nil, SolutionOutput{}, err
		}
		out.Found = true
	case "delete":
		if err := store.Delete(args.Assignment); err != nil {
			return nil, SolutionOutput{}, err
		}
	default:
		return nil, SolutionOutput{}, fmt.Errorf("unknown action %q: want get, save, delete or list", args.Action)
	}
	return nil, out, nil
}

// LogsInput is the karol_logs argument.
type LogsInput struct {
	Query string `json:"query,omitempty" jsonschema:"case-insensitive text to search messages and attributes for"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of records, newest last"`
}

// LogsOutput is the karol_logs result.
type LogsOutput struct {
	Entries []LogEntry `json:"entries"`
}

// LogEntry is one retained log record.
type LogEntry struct {
	Time    string            `json:"time"`
	Level   string            `json:"level"`
	Message string            `json:"message"`
	Attrs   map[string]string `json:"attrs,omitempty"`
}

func (s *Server) handleLogs(ctx context.Context, req *sdk.CallToolRequest, args LogsInput) (*sdk.CallToolResult, LogsOutput, error) {
	if s.cfg.Logs == nil {
		return nil, LogsOutput{}, errors.New("log history is not enabled")
	}
	limit := args.Limit
	if limit <= 0 {
		limit = defaultLogLimit
	}
	var entries []logging.Entry
	if args.Query != "" {
		entries = s.cfg.Logs.Search(args.Query)
		if len(entries) > limit {
			entries = entries[len(entries)-limit:]
		}
	} else {
		entries = s.cfg.Logs.Recent(limit)
	}
	out := LogsOutput{Entries: make([]LogEntry, len(entries))}
	for i, e := range entries {
		out.Entries[i] = LogEntry{
			Time:    e.Time.Format(time.RFC3339Nano),
			Level:   e.Level.String(),
			Message: e.Message,
			Attrs:   e.Attrs,
		}
	}
	return nil, out, nil
}

func entryOpts(entry string) []program.RunOption {
	if entry == "" {
		return nil
	}
	return []program.RunOption{program.WithEntry(entry)}
}
