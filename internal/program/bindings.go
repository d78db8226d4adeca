package program

import (
	"errors"
	"fmt"
	"path"

	"github.com/dop251/goja"

	"github.com/joeycumines/karol/internal/library"
	"github.com/joeycumines/karol/internal/robot"
)

// sourceFault attaches the line of user code that triggered a host error.
type sourceFault struct {
	err  error
	line int
}

func (f *sourceFault) Error() string { return f.err.Error() }
func (f *sourceFault) Unwrap() error { return f.err }

// errMissingArgument is raised when a count argument is omitted.
var errMissingArgument = errors.New("missing argument")

// bindAgent builds the object passed to run(karol). It exposes exactly the
// robot capability surface, is frozen, and has no prototype.
func bindAgent(sb *sandbox, file string, a library.Agent) (*goja.Object, error) {
	vm := sb.vm

	// raise turns a Go error into a JS throw that fault recovers.
	raise := func(err error) {
		line := 0
		for _, frame := range vm.CaptureCallStack(0, nil) {
			if src := frame.SrcName(); src == file || path.Base(src) == file {
				line = frame.Position().Line
				break
			}
		}
		panic(vm.NewGoError(&sourceFault{err: err, line: line}))
	}
	count := func(call goja.FunctionCall) int {
		arg := call.Argument(0)
		if goja.IsUndefined(arg) || goja.IsNull(arg) {
			raise(errMissingArgument)
		}
		return int(arg.ToInteger())
	}
	check := func(err error) {
		if err != nil {
			raise(err)
		}
	}

	methods := []struct {
		name string
		fn   func(goja.FunctionCall) goja.Value
	}{
		{"move", func(goja.FunctionCall) goja.Value {
			check(a.Move())
			return goja.Undefined()
		}},
		{"turnLeft", func(goja.FunctionCall) goja.Value {
			a.TurnLeft()
			return goja.Undefined()
		}},
		{"turnRight", func(goja.FunctionCall) goja.Value {
			a.TurnRight()
			return goja.Undefined()
		}},
		{"pickBeeper", func(goja.FunctionCall) goja.Value {
			check(a.PickBeeper())
			return goja.Undefined()
		}},
		{"putBeeper", func(goja.FunctionCall) goja.Value {
			check(a.PutBeeper())
			return goja.Undefined()
		}},
		{"frontIsClear", func(goja.FunctionCall) goja.Value {
			return vm.ToValue(a.FrontIsClear())
		}},
		{"beeperPresent", func(goja.FunctionCall) goja.Value {
			return vm.ToValue(a.BeeperPresent())
		}},
		{"carriedCount", func(goja.FunctionCall) goja.Value {
			return vm.ToValue(a.CarriedCount())
		}},
		{"moveSteps", func(call goja.FunctionCall) goja.Value {
			check(library.MoveSteps(a, count(call)))
			return goja.Undefined()
		}},
		{"moveUntilBlocked", func(goja.FunctionCall) goja.Value {
			return vm.ToValue(library.MoveUntilBlocked(a))
		}},
		{"turnAround", func(goja.FunctionCall) goja.Value {
			library.TurnAround(a)
			return goja.Undefined()
		}},
		{"putBeepers", func(call goja.FunctionCall) goja.Value {
			check(library.PutBeepers(a, count(call)))
			return goja.Undefined()
		}},
		{"pickAllPresent", func(goja.FunctionCall) goja.Value {
			n, err := library.PickAllPresent(a)
			check(err)
			return vm.ToValue(n)
		}},
		{"faceNorth", face(a, robot.North)},
		{"faceEast", face(a, robot.East)},
		{"faceSouth", face(a, robot.South)},
		{"faceWest", face(a, robot.West)},
	}

	obj := vm.NewObject()
	for _, m := range methods {
		if err := obj.DefineDataProperty(m.name, vm.ToValue(m.fn), goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_TRUE); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", m.name, err)
		}
	}
	if err := obj.SetPrototype(nil); err != nil {
		return nil, fmt.Errorf("failed to detach prototype: %w", err)
	}
	if _, err := sb.freeze(goja.Undefined(), obj); err != nil {
		return nil, fmt.Errorf("failed to freeze agent: %w", err)
	}
	return obj, nil
}

func face(a library.Agent, dir robot.Direction) func(goja.FunctionCall) goja.Value {
	return func(goja.FunctionCall) goja.Value {
		library.FaceCardinal(a, dir)
		return goja.Undefined()
	}
}
