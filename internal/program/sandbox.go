package program

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/console"
	"github.com/dop251/goja_nodejs/require"
)

// maxCallStackSize bounds JS recursion so runaway user code raises a
// RangeError instead of exhausting memory.
const maxCallStackSize = 4096

// sandbox is the isolated execution context for one run: a private goja
// runtime whose require resolves only the capability module, console, and
// files inside the run's workspace.
type sandbox struct {
	vm       *goja.Runtime
	req      *require.RequireModule
	contract *goja.Object
	console  *consoleCapture
	// freeze is Object.freeze captured before user code can replace it.
	freeze goja.Callable
}

func newSandbox(ws *workspace, contract, module string, logger *slog.Logger) *sandbox {
	vm := goja.New()
	vm.SetMaxCallStackSize(maxCallStackSize)

	sb := &sandbox{vm: vm, console: newConsoleCapture(logger)}

	// The contract class has no run method, so a subclass that forgets to
	// define one fails the contract check.
	cls, err := vm.RunString(fmt.Sprintf("(class %s {})", contract))
	if err != nil {
		// contract is checked to be an identifier, so this cannot fail.
		panic(fmt.Errorf("program: defining contract class: %w", err))
	}
	sb.contract = cls.ToObject(vm)
	sb.freeze, _ = goja.AssertFunction(vm.Get("Object").ToObject(vm).Get("freeze"))

	registry := require.NewRegistry(require.WithLoader(ws.load))
	registry.RegisterNativeModule(module, func(runtime *goja.Runtime, m *goja.Object) {
		exports := m.Get("exports").ToObject(runtime)
		_ = exports.Set(contract, sb.contract)
	})
	registry.RegisterNativeModule(console.ModuleName, console.RequireWithPrinter(sb.console))
	sb.req = registry.Enable(vm)
	console.Enable(vm)

	return sb
}

// interruptOn arranges for the runtime to be interrupted when ctx is done.
// The returned function disarms it.
func (sb *sandbox) interruptOn(ctx context.Context) (stop func() bool) {
	return context.AfterFunc(ctx, func() {
		sb.vm.Interrupt(ctx.Err())
	})
}

// load evaluates the workspace file and returns the constructor exported
// under entry, after checking it extends the contract class and defines run.
// Export getters and proxy traps run user code, so the interrupt stays armed
// until the checks are done.
func (sb *sandbox) load(ctx context.Context, file, entry string) (*goja.Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, &InstantiationError{Entry: entry, Err: fmt.Errorf("%w: %w", ErrTimeout, err)}
	}
	stop := sb.interruptOn(ctx)
	defer func() {
		if !stop() {
			sb.vm.ClearInterrupt()
		}
	}()

	exports, err := sb.require("./" + file)
	if err != nil {
		return nil, &InstantiationError{Entry: entry, Err: sb.fault(err)}
	}
	var ctor *goja.Object
	var contractErr *ContractError
	if err := sb.guard(func() { ctor, contractErr = sb.resolveEntry(exports, entry) }); err != nil {
		return nil, &InstantiationError{Entry: entry, Err: sb.fault(err)}
	}
	if contractErr != nil {
		return nil, contractErr
	}
	return ctor, nil
}

func (sb *sandbox) resolveEntry(exports goja.Value, entry string) (*goja.Object, *ContractError) {
	val := lookupExport(sb.vm, exports, entry)
	if val == nil {
		return nil, &ContractError{Entry: entry, Reason: fmt.Sprintf("%s is not exported by the module", entry)}
	}
	if _, ok := goja.AssertConstructor(val); !ok {
		return nil, &ContractError{Entry: entry, Reason: "export is not a class"}
	}
	ctor := val.ToObject(sb.vm)

	proto, ok := ctor.Get("prototype").(*goja.Object)
	if !ok {
		return nil, &ContractError{Entry: entry, Reason: "class has no prototype"}
	}
	if !sb.extendsContract(proto) {
		return nil, &ContractError{Entry: entry, Reason: fmt.Sprintf("class does not extend %s", sb.contractName())}
	}
	if _, ok := goja.AssertFunction(proto.Get("run")); !ok {
		return nil, &ContractError{Entry: entry, Reason: "class does not define run(karol)"}
	}
	return ctor, nil
}

// require loads a module, converting a panic escaping the runtime into an
// error.
func (sb *sandbox) require(p string) (goja.Value, error) {
	var v goja.Value
	var err error
	if perr := sb.guard(func() { v, err = sb.req.Require(p) }); perr != nil {
		return nil, perr
	}
	return v, err
}

// guard runs f, returning a JS exception or interrupt raised inside it as an
// error instead of a panic.
func (sb *sandbox) guard(f func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			switch e := r.(type) {
			case *goja.Exception:
				err = e
			case *goja.InterruptedError:
				err = e
			default:
				err = fmt.Errorf("panic while loading module: %v", r)
			}
		}
	}()
	f()
	return err
}

func lookupExport(vm *goja.Runtime, exports goja.Value, entry string) goja.Value {
	if exports == nil || goja.IsUndefined(exports) || goja.IsNull(exports) {
		return nil
	}
	obj := exports.ToObject(vm)
	if v := obj.Get(entry); v != nil && !goja.IsUndefined(v) {
		return v
	}
	// module.exports = TheClass
	if _, ok := goja.AssertConstructor(exports); ok {
		if name := obj.Get("name"); name != nil && name.String() == entry {
			return exports
		}
	}
	return nil
}

// extendsContract reports whether the contract's prototype is a strict
// ancestor of proto.
func (sb *sandbox) extendsContract(proto *goja.Object) bool {
	want, ok := sb.contract.Get("prototype").(*goja.Object)
	if !ok {
		return false
	}
	for p := proto.Prototype(); p != nil; p = p.Prototype() {
		if p == want {
			return true
		}
	}
	return false
}

func (sb *sandbox) contractName() string {
	return sb.contract.Get("name").String()
}

// fault converts an error returned by the runtime into the Go error that
// caused it. Errors raised by host bindings come back as the original value;
// interruptions become ErrTimeout.
func (sb *sandbox) fault(err error) error {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		if cause, ok := interrupted.Value().(error); ok {
			return fmt.Errorf("%w: %w", ErrTimeout, cause)
		}
		return ErrTimeout
	}
	var exc *goja.Exception
	if errors.As(err, &exc) {
		if obj, ok := exc.Value().(*goja.Object); ok {
			if v := obj.Get("value"); v != nil {
				if goErr, ok := v.Export().(error); ok {
					return goErr
				}
			}
		}
	}
	return err
}
