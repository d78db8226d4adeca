package program

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dop251/goja"

	"github.com/joeycumines/karol/internal/library"
	"github.com/joeycumines/karol/internal/logging"
)

// Executor instantiates a CompiledModule's entry class and calls its run
// method against a live agent.
type Executor struct {
	logger *slog.Logger
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithExecutorLogger sets the logger for stage records.
func WithExecutorLogger(l *slog.Logger) ExecutorOption {
	return func(e *Executor) { e.logger = l }
}

// NewExecutor returns an Executor.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{logger: logging.Discard()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute constructs the entry class and calls entry.run(karol), where karol
// exposes the capability surface bound to agent. The runtime is interrupted
// when ctx is done. Agent state reached before a fault is kept.
//
// A fault in the constructor yields *InstantiationError; any fault during run,
// including a recovered Go panic, yields *ExecutionError.
func (e *Executor) Execute(ctx context.Context, mod *CompiledModule, agent library.Agent) (err error) {
	sb, ctor, ok := mod.acquire()
	if !ok {
		return &ExecutionError{Cause: ErrModuleClosed}
	}
	logger := e.logger.With("module", mod.name)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic during execution", "panic", r)
			err = &ExecutionError{Cause: fmt.Errorf("panic: %v", r)}
		}
	}()

	if err := ctx.Err(); err != nil {
		return &ExecutionError{Cause: fmt.Errorf("%w: %w", ErrTimeout, err)}
	}
	sb.vm.ClearInterrupt()
	stop := sb.interruptOn(ctx)
	defer stop()

	instance, err := sb.vm.New(ctor)
	if err != nil {
		_, cause := sourceLine(sb.fault(err))
		logger.Debug("instantiation failed", "error", cause)
		return &InstantiationError{Entry: mod.entry, Err: cause}
	}
	logger.Debug("instantiated")

	run, ok := goja.AssertFunction(instance.Get("run"))
	if !ok {
		return &ContractError{Entry: mod.entry, Reason: "run is not a function"}
	}
	karol, err := bindAgent(sb, mod.file, agent)
	if err != nil {
		return &ExecutionError{Cause: err}
	}

	if _, err := run(instance, karol); err != nil {
		line, cause := sourceLine(sb.fault(err))
		logger.Debug("execution failed", "error", cause, "line", line)
		return &ExecutionError{Cause: cause, Line: line}
	}
	logger.Debug("executed")
	return nil
}

// sourceLine strips the line annotation added by the agent bindings.
func sourceLine(err error) (int, error) {
	var f *sourceFault
	if errors.As(err, &f) {
		return f.line, f.err
	}
	return 0, err
}
