package object

import "bytes"

type DictPair struct {
	Key   Object
	Value Object
}

// Dict maps hashable keys to values and iterates in insertion order. Keys
// that share a HashKey are told apart by equality.
type Dict struct {
	buckets map[HashKey][]*DictPair
	order   []*DictPair
}

func NewDict() *Dict {
	return &Dict{buckets: map[HashKey][]*DictPair{}}
}

// sameKey compares two keys with equal HashKeys. Only strings can collide;
// every other hashable kind encodes its value exactly.
func sameKey(a, b Object) bool {
	as, ok := a.(*String)
	if !ok {
		return true
	}
	bs, ok := b.(*String)
	return ok && as.Value == bs.Value
}

func (d *Dict) lookup(hk HashKey, key Object) *DictPair {
	for _, p := range d.buckets[hk] {
		if sameKey(p.Key, key) {
			return p
		}
	}
	return nil
}

func (*Dict) Type() Type { return DICT_OBJ }
func (d *Dict) Inspect() string {
	var out bytes.Buffer
	out.WriteString("{")
	for i, p := range d.Ordered() {
		if i > 0 {
			out.WriteString(", ")
		}
		out.WriteString(Repr(p.Key))
		out.WriteString(": ")
		out.WriteString(Repr(p.Value))
	}
	out.WriteString("}")
	return out.String()
}

// Set stores value under key. It reports false when key is not hashable.
func (d *Dict) Set(key, value Object) bool {
	hk, ok := HashKeyOf(key)
	if !ok {
		return false
	}
	d.insert(hk, key, value)
	return true
}

func (d *Dict) insert(hk HashKey, key, value Object) {
	if p := d.lookup(hk, key); p != nil {
		p.Value = value
		return
	}
	p := &DictPair{Key: key, Value: value}
	d.buckets[hk] = append(d.buckets[hk], p)
	d.order = append(d.order, p)
}

func (d *Dict) Get(key Object) (Object, bool) {
	hk, ok := HashKeyOf(key)
	if !ok {
		return nil, false
	}
	p := d.lookup(hk, key)
	if p == nil {
		return nil, false
	}
	return p.Value, true
}

// GetString looks up a string key.
func (d *Dict) GetString(key string) (Object, bool) {
	return d.Get(&String{Value: key})
}

func (d *Dict) Delete(key Object) (Object, bool) {
	hk, ok := HashKeyOf(key)
	if !ok {
		return nil, false
	}
	p := d.lookup(hk, key)
	if p == nil {
		return nil, false
	}
	bucket := d.buckets[hk]
	for i, q := range bucket {
		if q == p {
			bucket = append(bucket[:i], bucket[i+1:]...)
			break
		}
	}
	if len(bucket) == 0 {
		delete(d.buckets, hk)
	} else {
		d.buckets[hk] = bucket
	}
	for i, q := range d.order {
		if q == p {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
	return p.Value, true
}

func (d *Dict) Len() int { return len(d.order) }

// Ordered returns the pairs in insertion order.
func (d *Dict) Ordered() []DictPair {
	out := make([]DictPair, 0, len(d.order))
	for _, p := range d.order {
		out = append(out, *p)
	}
	return out
}
