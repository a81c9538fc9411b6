package gfx

import (
	"kestrel/internal/logging"
	"kestrel/internal/object"
	"kestrel/internal/vm"
)

// RunScript installs the gfx builtins on m, opens the window and drives the
// script. The top level runs first; afterwards the globals setup(),
// update(dt) and draw() are called when defined.
func RunScript(m *vm.VM) error {
	m.DefineBuiltins(Builtins())
	return Run(scriptLoop(m))
}

func scriptLoop(m *vm.VM) LoopFuncs {
	log := logging.Gfx()
	hook := func(name string) object.Object {
		v, ok := m.Global(name)
		if !ok {
			return nil
		}
		switch v.(type) {
		case *object.Closure, *object.Builtin, *object.BoundMethod:
			return v
		}
		log.Warningf("global %s is not a function; ignoring", name)
		return nil
	}

	var update, draw object.Object
	return LoopFuncs{
		Setup: func() error {
			if err := m.Run(); err != nil {
				return err
			}
			update, draw = hook("update"), hook("draw")
			if setup := hook("setup"); setup != nil {
				if _, err := m.Call(setup); err != nil {
					return err
				}
			}
			return nil
		},
		Update: func(dt float64) error {
			if update == nil {
				return nil
			}
			_, err := m.Call(update, &object.Float{Value: dt})
			return err
		},
		Draw: func() error {
			if draw == nil {
				return nil
			}
			_, err := m.Call(draw)
			return err
		},
	}
}
