package program

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joeycumines/karol/internal/robot"
)

// Sentinel errors, one per pipeline stage. Every error returned by the
// pipeline matches exactly one of them under errors.Is.
var (
	ErrValidationFailed     = errors.New("validation failed")
	ErrCompilationFailed    = errors.New("compilation failed")
	ErrContractNotSatisfied = errors.New("contract not satisfied")
	ErrInstantiationFailed  = errors.New("instantiation failed")
	ErrExecutionFailed      = errors.New("execution failed")
)

// DiagnosticKind classifies a Diagnostic.
type DiagnosticKind int

const (
	DiagMissingNamespace DiagnosticKind = iota + 1
	DiagWrongNamespace
	DiagMissingContract
	DiagMissingReference
	DiagSyntax
)

// String implements fmt.Stringer.
func (k DiagnosticKind) String() string {
	switch k {
	case DiagMissingNamespace:
		return "missing-namespace"
	case DiagWrongNamespace:
		return "wrong-namespace"
	case DiagMissingContract:
		return "missing-contract"
	case DiagMissingReference:
		return "missing-reference"
	case DiagSyntax:
		return "syntax"
	default:
		return fmt.Sprintf("DiagnosticKind(%d)", int(k))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k DiagnosticKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Diagnostic describes one problem found in submitted source.
type Diagnostic struct {
	Kind    DiagnosticKind `json:"kind"`
	Message string         `json:"message"`
	// Line is 1-based. Zero means the line is unknown.
	Line   int `json:"line,omitempty"`
	Column int `json:"column,omitempty"`
}

// String implements fmt.Stringer.
func (d Diagnostic) String() string {
	if d.Line > 0 {
		if d.Column > 0 {
			return fmt.Sprintf("line %d:%d: %s", d.Line, d.Column, d.Message)
		}
		return fmt.Sprintf("line %d: %s", d.Line, d.Message)
	}
	return d.Message
}

func joinDiagnostics(prefix string, diags []Diagnostic) string {
	var b strings.Builder
	b.WriteString(prefix)
	for i, d := range diags {
		if i == 0 {
			b.WriteString(": ")
		} else {
			b.WriteString("; ")
		}
		b.WriteString(d.String())
	}
	return b.String()
}

// ValidationError reports a structural defect found before compilation.
type ValidationError struct {
	Diagnostics []Diagnostic
}

func (e *ValidationError) Error() string {
	return joinDiagnostics(ErrValidationFailed.Error(), e.Diagnostics)
}

// Is reports whether target is ErrValidationFailed.
func (e *ValidationError) Is(target error) bool { return target == ErrValidationFailed }

// Kind returns the kind of the first diagnostic.
func (e *ValidationError) Kind() DiagnosticKind {
	if len(e.Diagnostics) == 0 {
		return 0
	}
	return e.Diagnostics[0].Kind
}

// CompilationError carries every parser or compiler diagnostic.
type CompilationError struct {
	Diagnostics []Diagnostic
}

func (e *CompilationError) Error() string {
	return joinDiagnostics(ErrCompilationFailed.Error(), e.Diagnostics)
}

// Is reports whether target is ErrCompilationFailed.
func (e *CompilationError) Is(target error) bool { return target == ErrCompilationFailed }

// ContractError reports a loaded module whose entry does not extend the
// contract class or lacks a run method.
type ContractError struct {
	Entry  string
	Reason string
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrContractNotSatisfied, e.Entry, e.Reason)
}

// Is reports whether target is ErrContractNotSatisfied.
func (e *ContractError) Is(target error) bool { return target == ErrContractNotSatisfied }

// InstantiationError reports a fault while evaluating the module or
// constructing its entry class.
type InstantiationError struct {
	Entry string
	Err   error
}

func (e *InstantiationError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrInstantiationFailed, e.Entry, e.Err)
}

// Is reports whether target is ErrInstantiationFailed.
func (e *InstantiationError) Is(target error) bool { return target == ErrInstantiationFailed }

// Unwrap returns the underlying fault.
func (e *InstantiationError) Unwrap() error { return e.Err }

// FaultKind classifies the cause of an ExecutionError.
type FaultKind int

const (
	FaultOther FaultKind = iota
	FaultBlockedMove
	FaultNoBeeperHere
	FaultEmptyInventory
	FaultTimeout
)

// String implements fmt.Stringer.
func (k FaultKind) String() string {
	switch k {
	case FaultBlockedMove:
		return "blocked-move"
	case FaultNoBeeperHere:
		return "no-beeper-here"
	case FaultEmptyInventory:
		return "empty-inventory"
	case FaultTimeout:
		return "timeout"
	default:
		return "other"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k FaultKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// ErrTimeout is the cause of an ExecutionError for a run stopped by its
// deadline or cancellation.
var ErrTimeout = errors.New("run interrupted")

// ExecutionError reports a fault raised while the entry's run method was
// executing.
type ExecutionError struct {
	Cause error
	// Line is the 1-based source line the fault surfaced at, when known.
	Line int
}

func (e *ExecutionError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s (line %d): %v", ErrExecutionFailed, e.Line, e.Cause)
	}
	return fmt.Sprintf("%s: %v", ErrExecutionFailed, e.Cause)
}

// Is reports whether target is ErrExecutionFailed.
func (e *ExecutionError) Is(target error) bool { return target == ErrExecutionFailed }

// Unwrap returns the cause.
func (e *ExecutionError) Unwrap() error { return e.Cause }

// Kind classifies the cause.
func (e *ExecutionError) Kind() FaultKind {
	switch {
	case errors.Is(e.Cause, robot.ErrBlockedMove):
		return FaultBlockedMove
	case errors.Is(e.Cause, robot.ErrNoBeeperHere):
		return FaultNoBeeperHere
	case errors.Is(e.Cause, robot.ErrEmptyInventory):
		return FaultEmptyInventory
	case errors.Is(e.Cause, ErrTimeout):
		return FaultTimeout
	default:
		return FaultOther
	}
}

// Stage names the pipeline stage err was raised by: validation,
// compilation, contract, instantiation or execution. It returns "" for nil
// and for errors from outside the pipeline.
func Stage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidationFailed):
		return "validation"
	case errors.Is(err, ErrCompilationFailed):
		return "compilation"
	case errors.Is(err, ErrContractNotSatisfied):
		return "contract"
	case errors.Is(err, ErrInstantiationFailed):
		return "instantiation"
	case errors.Is(err, ErrExecutionFailed):
		return "execution"
	}
	return ""
}

// DiagnosticsOf returns the diagnostics carried by a validation or
// compilation error.
func DiagnosticsOf(err error) []Diagnostic {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Diagnostics
	}
	var cerr *CompilationError
	if errors.As(err, &cerr) {
		return cerr.Diagnostics
	}
	return nil
}
