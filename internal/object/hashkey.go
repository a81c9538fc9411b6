package object

import (
	"fmt"
	"math"
)

type HashKey struct {
	Type  Type
	Value uint64
}

type Hashable interface {
	HashKey() HashKey
}

func (s *String) HashKey() HashKey {
	const (
		offset64 = 14695981039346656037
		prime64  = 1099511628211
	)
	var h uint64 = offset64
	for i := 0; i < len(s.Value); i++ {
		h ^= uint64(s.Value[i])
		h *= prime64
	}
	return HashKey{Type: STRING_OBJ, Value: h}
}

func (i *Integer) HashKey() HashKey {
	return HashKey{Type: INTEGER_OBJ, Value: uint64(i.Value)}
}

// HashKey of an integral float matches the equal Integer, so 1 and 1.0 are
// the same dict key.
func (f *Float) HashKey() HashKey {
	if f.Value == math.Trunc(f.Value) && f.Value >= math.MinInt64 && f.Value <= math.MaxInt64 {
		return HashKey{Type: INTEGER_OBJ, Value: uint64(int64(f.Value))}
	}
	return HashKey{Type: FLOAT_OBJ, Value: math.Float64bits(f.Value)}
}

func (b *Boolean) HashKey() HashKey {
	if b.Value {
		return HashKey{Type: BOOLEAN_OBJ, Value: 1}
	}
	return HashKey{Type: BOOLEAN_OBJ, Value: 0}
}

func (*Nil) HashKey() HashKey {
	return HashKey{Type: NIL_OBJ}
}

func HashKeyOf(o Object) (HashKey, bool) {
	h, ok := o.(Hashable)
	if !ok {
		return HashKey{}, false
	}
	return h.HashKey(), true
}

func HashKeyString(k HashKey) string {
	return fmt.Sprintf("%s:%d", k.Type, k.Value)
}
