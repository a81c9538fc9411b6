package limits

import "fmt"

const (
	DefaultStackSize = 16384
	DefaultMaxFrames = 1024
)

// Limits bounds one VM. Zero MaxSteps or MaxMemory means unlimited.
type Limits struct {
	MaxFrames int
	StackSize int
	MaxSteps  int64
	MaxMemory int64
}

func Default() Limits {
	return Limits{MaxFrames: DefaultMaxFrames, StackSize: DefaultStackSize}
}

// Budget tracks the approximate bytes of heap values a VM has created.
type Budget struct {
	limit int64
	used  int64
}

func NewBudget(limit int64) *Budget {
	if limit < 0 {
		limit = 0
	}
	return &Budget{limit: limit}
}

func (b *Budget) Limit() int64 {
	if b == nil {
		return 0
	}
	return b.limit
}

func (b *Budget) Used() int64 {
	if b == nil {
		return 0
	}
	return b.used
}

type MaxMemoryError struct {
	Limit int64
}

func (e MaxMemoryError) Error() string {
	return fmt.Sprintf("memory limit exceeded (%d bytes)", e.Limit)
}

func (b *Budget) Charge(n int64) error {
	if b == nil || b.limit == 0 || n <= 0 {
		return nil
	}
	if b.used+n > b.limit {
		return MaxMemoryError{Limit: b.limit}
	}
	b.used += n
	return nil
}

const (
	headerCost = 16
	slotCost   = 16
)

func CostString(n int) int64 { return headerCost + int64(n) }

func CostList(n int) int64 { return headerCost + slotCost*int64(n) }

func CostDict(n int) int64 { return headerCost + 3*slotCost*int64(n) }

func CostInstance() int64 { return 4 * headerCost }

func CostClosure(upvalues int) int64 { return headerCost + slotCost*int64(upvalues) }
