package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/joeycumines/karol/internal/assignment"
	"github.com/joeycumines/karol/internal/grading"
	"github.com/joeycumines/karol/internal/program"
)

// Outcome describes one attempt at an assignment in a form suitable for
// reporting to a user.
type Outcome struct {
	Assignment  string               `json:"assignment"`
	Session     string               `json:"session"`
	Stage       string               `json:"stage,omitempty"`
	Error       string               `json:"error,omitempty"`
	Fault       string               `json:"fault,omitempty"`
	Line        int                  `json:"line,omitempty"`
	Diagnostics []program.Diagnostic `json:"diagnostics,omitempty"`
	Report      *program.Report      `json:"report,omitempty"`
	State       State                `json:"state"`
	Goal        *grading.Verdict     `json:"goal,omitempty"`
	GoalError   string               `json:"goalError,omitempty"`
}

// Succeeded reports whether the program ran to completion and, when the
// assignment has a goal, the goal held.
func (o *Outcome) Succeeded() bool {
	if o.Error != "" || o.GoalError != "" {
		return false
	}
	return o.Goal == nil || o.Goal.Passed
}

// Attempt runs source against a fresh simulation of a and grades the final
// state against a's goal when it has one. Program failures are described in
// the Outcome; the returned error is only for failures to set up the
// attempt. grader may be nil when a has no goal.
func Attempt(ctx context.Context, a *assignment.Assignment, runner *program.Runner, grader *grading.Grader, source string, opts ...Option) (*Outcome, error) {
	w, r, err := a.Build()
	if err != nil {
		return nil, err
	}
	sim, err := New(w, r, runner, opts...)
	if err != nil {
		return nil, err
	}

	res, runErr := sim.Run(ctx, source)
	if errors.Is(runErr, ErrRunInProgress) {
		return nil, runErr
	}

	out := &Outcome{
		Assignment: a.Name,
		Session:    sim.ID(),
		Report:     res.Report,
		State:      res.State,
	}
	var fault string
	if runErr != nil {
		out.Stage = program.Stage(runErr)
		out.Error = runErr.Error()
		out.Diagnostics = program.DiagnosticsOf(runErr)
		var xerr *program.ExecutionError
		if errors.As(runErr, &xerr) {
			fault = xerr.Kind().String()
			out.Fault = fault
			out.Line = xerr.Line
		}
	}

	// Goals are graded only for runs that reached execution.
	if a.Goal != "" && (runErr == nil || out.Stage == "execution") {
		if grader == nil {
			return nil, fmt.Errorf("assignment %s has a goal but no grader was given", a.Name)
		}
		v, err := grader.Grade(a.Goal, grading.State{
			World: res.State.World,
			Robot: res.State.Robot,
			Fault: fault,
		})
		if err != nil {
			out.GoalError = err.Error()
		} else {
			out.Goal = &v
		}
	}
	return out, nil
}
