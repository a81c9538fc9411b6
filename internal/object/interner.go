package object

// Interner hands out one *String per distinct content. The driver owns it and
// passes the same instance to the compiler and the VM, so names compare by
// pointer.
type Interner struct {
	strings map[string]*String
}

func NewInterner() *Interner {
	return &Interner{strings: map[string]*String{}}
}

func (in *Interner) Intern(s string) *String {
	if v, ok := in.strings[s]; ok {
		return v
	}
	v := &String{Value: s}
	in.strings[s] = v
	return v
}

// Len is the number of distinct interned strings.
func (in *Interner) Len() int { return len(in.strings) }
