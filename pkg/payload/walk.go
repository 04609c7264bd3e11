package payload

// Visitor is called for every string leaf with the key of the enclosing object
// member ("" inside arrays or at the root).
type Visitor func(key, s string)

// Walk visits every string leaf of the tree at any depth.
func (v Value) Walk(fn Visitor) {
	v.walk("", fn)
}

func (v Value) walk(key string, fn Visitor) {
	switch v.kind {
	case String:
		fn(key, v.str)
	case Array:
		for _, item := range v.arr {
			item.walk(key, fn)
		}
	case Object:
		for k, item := range v.obj {
			item.walk(k, fn)
		}
	}
}

// MapStrings returns a copy of the tree with every string leaf passed through fn.
// The receiver is left untouched.
func (v Value) MapStrings(fn func(key, s string) string) Value {
	return v.mapStrings("", fn)
}

func (v Value) mapStrings(key string, fn func(key, s string) string) Value {
	switch v.kind {
	case String:
		return NewString(fn(key, v.str))
	case Array:
		out := make([]Value, len(v.arr))
		for i, item := range v.arr {
			out[i] = item.mapStrings(key, fn)
		}
		return Value{kind: Array, arr: out}
	case Object:
		out := make(map[string]Value, len(v.obj))
		for k, item := range v.obj {
			out[k] = item.mapStrings(k, fn)
		}
		return Value{kind: Object, obj: out}
	default:
		return v
	}
}

// Any reports whether some string leaf satisfies pred.
func (v Value) Any(pred func(s string) bool) bool {
	found := false
	v.Walk(func(_, s string) {
		if !found && pred(s) {
			found = true
		}
	})
	return found
}
