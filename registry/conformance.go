package registry

// Conforming returns the symbols that are complete candidates for contract T,
// in symbol order. A symbol qualifies when it is a Candidate[T] or a non-nil
// *Candidate[T] with a name, a readiness probe and a constructor. Helpers,
// candidates for other contracts and abstract descriptors are ignored.
//
// Whether the constructor really yields a T is checked by the compiler, so
// nothing here inspects method sets at runtime.
func Conforming[T Provider](symbols []any) []Candidate[T] {
	var out []Candidate[T]
	for _, symbol := range symbols {
		var c Candidate[T]
		switch v := symbol.(type) {
		case Candidate[T]:
			c = v
		case *Candidate[T]:
			if v == nil {
				continue
			}
			c = *v
		default:
			continue
		}
		if !c.concrete() {
			continue
		}
		out = append(out, c)
	}
	return out
}

func (c Candidate[T]) concrete() bool {
	return c.Name != "" && c.IsConfigured != nil && c.New != nil
}
