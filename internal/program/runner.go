package program

import (
	"context"
	"log/slog"
	"time"

	"github.com/joeycumines/karol/internal/library"
	"github.com/joeycumines/karol/internal/logging"
)

// DefaultTimeout bounds a run when no timeout is configured.
const DefaultTimeout = 10 * time.Second

// Report describes one pass through the pipeline. It is returned alongside
// any error, filled in as far as the run got.
type Report struct {
	Module         string        `json:"module,omitempty"`
	Workspace      string        `json:"workspace,omitempty"`
	Duration       time.Duration `json:"duration"`
	Console        []ConsoleLine `json:"console,omitempty"`
	DroppedConsole int           `json:"droppedConsole,omitempty"`
}

// Runner chains validation, compilation, execution and cleanup.
type Runner struct {
	validator *Validator
	compiler  *Compiler
	executor  *Executor
	timeout   time.Duration
	logger    *slog.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithTimeout bounds each run. Zero disables the bound.
func WithTimeout(d time.Duration) RunnerOption {
	return func(r *Runner) { r.timeout = d }
}

// WithRunnerLogger sets the logger for stage records.
func WithRunnerLogger(l *slog.Logger) RunnerOption {
	return func(r *Runner) { r.logger = l }
}

// WithExecutor replaces the default Executor.
func WithExecutor(e *Executor) RunnerOption {
	return func(r *Runner) { r.executor = e }
}

// NewRunner returns a Runner using v and c. The executor shares the runner's
// logger unless replaced with WithExecutor.
func NewRunner(v *Validator, c *Compiler, opts ...RunnerOption) *Runner {
	r := &Runner{
		validator: v,
		compiler:  c,
		timeout:   DefaultTimeout,
		logger:    logging.Discard(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.executor == nil {
		r.executor = NewExecutor(WithExecutorLogger(r.logger))
	}
	return r
}

// Validator returns the runner's validator.
func (r *Runner) Validator() *Validator { return r.validator }

// RunOption configures a single run.
type RunOption func(*runOptions)

type runOptions struct {
	entry string
}

// WithEntry names the entry class instead of deriving it from the source.
func WithEntry(name string) RunOption {
	return func(o *runOptions) { o.entry = name }
}

// Run validates, compiles and executes source against agent, then disposes
// of the compiled module on every path. The returned Report is never nil.
func (r *Runner) Run(ctx context.Context, source string, agent library.Agent, opts ...RunOption) (*Report, error) {
	return r.run(ctx, source, agent, opts)
}

// Check validates and compiles source without executing it.
func (r *Runner) Check(ctx context.Context, source string, opts ...RunOption) (*Report, error) {
	return r.run(ctx, source, nil, opts)
}

func (r *Runner) run(ctx context.Context, source string, agent library.Agent, opts []RunOption) (*Report, error) {
	var o runOptions
	for _, opt := range opts {
		opt(&o)
	}
	start := time.Now()
	report := &Report{}
	defer func() { report.Duration = time.Since(start) }()

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	if err := r.validator.Validate(source); err != nil {
		r.logger.Debug("validation failed", "error", err)
		return report, err
	}
	r.logger.Debug("validated")

	mod, err := r.compiler.Compile(ctx, source, o.entry)
	if err != nil {
		r.logger.Debug("compile failed", "error", err)
		return report, err
	}
	report.Module = mod.Name()
	report.Workspace = mod.Workspace()
	defer func() {
		report.Console, report.DroppedConsole = mod.Console()
		_ = mod.Close()
	}()

	if agent == nil {
		return report, nil
	}
	if err := r.executor.Execute(ctx, mod, agent); err != nil {
		return report, err
	}
	return report, nil
}
