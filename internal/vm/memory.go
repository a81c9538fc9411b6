package vm

import (
	"errors"

	"kestrel/internal/limits"
	"kestrel/internal/object"
)

func costOfObject(obj object.Object) int64 {
	switch v := obj.(type) {
	case *object.String:
		return limits.CostString(len(v.Value))
	case *object.List:
		return limits.CostList(len(v.Elements))
	case *object.Dict:
		return limits.CostDict(v.Len())
	case *object.Instance:
		return limits.CostInstance()
	case *object.Closure:
		return limits.CostClosure(len(v.Upvalues))
	default:
		return 0
	}
}

// charge bills a newly created heap value against the memory budget.
func (m *VM) charge(obj object.Object) error {
	if m.budget == nil || obj == nil {
		return nil
	}
	err := m.budget.Charge(costOfObject(obj))
	if err == nil {
		return nil
	}
	var memErr limits.MaxMemoryError
	if errors.As(err, &memErr) {
		return m.fault(ErrMemoryLimit, "%s", memErr.Error())
	}
	return m.faultFrom(err)
}

// MemoryUsed reports the bytes charged so far, or 0 without a budget.
func (m *VM) MemoryUsed() int64 { return m.budget.Used() }
