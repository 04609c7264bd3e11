// Package payload models loosely shaped JSON from remote services as a typed tree.
package payload

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Kind tags the variant held by a Value.
type Kind int

const (
	Null Kind = iota
	Bool
	Number
	String
	Array
	Object
)

func (k Kind) String() string {
	switch k {
	case Null:
		return "null"
	case Bool:
		return "bool"
	case Number:
		return "number"
	case String:
		return "string"
	case Array:
		return "array"
	case Object:
		return "object"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Value is a JSON value: exactly one of the variant fields is meaningful,
// selected by Kind. The zero Value is null.
type Value struct {
	kind Kind
	b    bool
	num  json.Number
	str  string
	arr  []Value
	obj  map[string]Value
}

func NewNull() Value { return Value{} }
func NewBool(b bool) Value { return Value{kind: Bool, b: b} }
func NewNumber(n json.Number) Value { return Value{kind: Number, num: n} }
func NewString(s string) Value { return Value{kind: String, str: s} }
func NewArray(items ...Value) Value { return Value{kind: Array, arr: items} }
func NewObject(m map[string]Value) Value {
	if m == nil {
		m = map[string]Value{}
	}
	return Value{kind: Object, obj: m}
}

func (v Value) Kind() Kind { return v.kind }
func (v Value) IsNull() bool { return v.kind == Null }

// Str returns the string variant, or "" for any other kind.
func (v Value) Str() string {
	if v.kind == String {
		return v.str
	}
	return ""
}

// Text renders scalars as text: strings verbatim, numbers in their JSON form.
func (v Value) Text() string {
	switch v.kind {
	case String:
		return v.str
	case Number:
		return v.num.String()
	case Bool:
		return strconv.FormatBool(v.b)
	default:
		return ""
	}
}

// Int64 reads a number or a numeric string.
func (v Value) Int64() (int64, bool) {
	switch v.kind {
	case Number:
		n, err := v.num.Int64()
		if err != nil {
			f, ferr := v.num.Float64()
			if ferr != nil {
				return 0, false
			}
			return int64(f), true
		}
		return n, true
	case String:
		n, err := strconv.ParseInt(strings.TrimSpace(v.str), 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

// Float64 reads a number or a numeric string.
func (v Value) Float64() (float64, bool) {
	switch v.kind {
	case Number:
		f, err := v.num.Float64()
		return f, err == nil
	case String:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.str), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func (v Value) Len() int {
	switch v.kind {
	case Array:
		return len(v.arr)
	case Object:
		return len(v.obj)
	default:
		return 0
	}
}

// Items returns the elements of an array value.
func (v Value) Items() []Value {
	if v.kind != Array {
		return nil
	}
	return v.arr
}

// Keys returns object keys in sorted order.
func (v Value) Keys() []string {
	if v.kind != Object {
		return nil
	}
	keys := make([]string, 0, len(v.obj))
	for k := range v.obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get returns the member key of an object, or null.
func (v Value) Get(key string) Value {
	if v.kind != Object {
		return Value{}
	}
	return v.obj[key]
}

// Index returns element i of an array, or null.
func (v Value) Index(i int) Value {
	if v.kind != Array || i < 0 || i >= len(v.arr) {
		return Value{}
	}
	return v.arr[i]
}

// Path follows a dotted path such as "details.currencyOut.amount" or
// "steps.0.toAmount". Missing segments yield null.
func (v Value) Path(path string) Value {
	cur := v
	for _, seg := range strings.Split(path, ".") {
		if seg == "" {
			continue
		}
		switch cur.kind {
		case Object:
			cur = cur.obj[seg]
		case Array:
			i, err := strconv.Atoi(seg)
			if err != nil {
				return Value{}
			}
			cur = cur.Index(i)
		default:
			return Value{}
		}
	}
	return cur
}

// FirstText returns the first non-empty scalar text found at any of paths.
func (v Value) FirstText(paths ...string) string {
	for _, p := range paths {
		if s := v.Path(p).Text(); s != "" {
			return s
		}
	}
	return ""
}

// Clone returns a deep copy.
func (v Value) Clone() Value {
	switch v.kind {
	case Array:
		out := make([]Value, len(v.arr))
		for i, item := range v.arr {
			out[i] = item.Clone()
		}
		return Value{kind: Array, arr: out}
	case Object:
		out := make(map[string]Value, len(v.obj))
		for k, item := range v.obj {
			out[k] = item.Clone()
		}
		return Value{kind: Object, obj: out}
	default:
		return v
	}
}

// Parse decodes JSON bytes into a Value, keeping numbers exact.
func Parse(data []byte) (Value, error) {
	var v Value
	if err := json.Unmarshal(data, &v); err != nil {
		return Value{}, err
	}
	return v, nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("failed to decode payload: %w", err)
	}
	*v = fromInterface(raw)
	return nil
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// Interface converts the tree back to plain Go values.
func (v Value) Interface() interface{} {
	switch v.kind {
	case Bool:
		return v.b
	case Number:
		return v.num
	case String:
		return v.str
	case Array:
		out := make([]interface{}, len(v.arr))
		for i, item := range v.arr {
			out[i] = item.Interface()
		}
		return out
	case Object:
		out := make(map[string]interface{}, len(v.obj))
		for k, item := range v.obj {
			out[k] = item.Interface()
		}
		return out
	default:
		return nil
	}
}

func fromInterface(raw interface{}) Value {
	switch t := raw.(type) {
	case nil:
		return Value{}
	case bool:
		return NewBool(t)
	case json.Number:
		return NewNumber(t)
	case float64:
		return NewNumber(json.Number(strconv.FormatFloat(t, 'f', -1, 64)))
	case string:
		return NewString(t)
	case []interface{}:
		items := make([]Value, len(t))
		for i, item := range t {
			items[i] = fromInterface(item)
		}
		return NewArray(items...)
	case map[string]interface{}:
		m := make(map[string]Value, len(t))
		for k, item := range t {
			m[k] = fromInterface(item)
		}
		return NewObject(m)
	default:
		return NewString(fmt.Sprint(t))
	}
}
