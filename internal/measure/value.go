package measure

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// Kind identifies which member of the Value union is set.
type Kind uint8

const (
	KindEmpty Kind = iota
	KindInt
	KindFloat
	KindBool
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindText:
		return "text"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Value is a single measurement cell: an integer, float, boolean or text.
// The zero Value is Empty and renders as an empty string.
type Value struct {
	kind Kind
	i    int64
	f    float64
	s    string
}

// Empty is the value of a declared field that has not been measured yet.
var Empty = Value{}

func Int(v int64) Value { return Value{kind: KindInt, i: v} }
func Float(v float64) Value { return Value{kind: KindFloat, f: v} }
func Text(v string) Value { return Value{kind: KindText, s: v} }

func Bool(v bool) Value {
	if v {
		return Value{kind: KindBool, i: 1}
	}
	return Value{kind: KindBool}
}

// Duration stores d as an integer nanosecond count.
func Duration(d time.Duration) Value { return Int(int64(d)) }

// Of converts a workload result into a Value. Strings, booleans, integers,
// floats, durations and fmt.Stringers map to their natural kind; anything else
// is captured as text using %v. A nil result is Empty.
func Of(v any) Value {
	switch x := v.(type) {
	case nil:
		return Empty
	case Value:
		return x
	case string:
		return Text(x)
	case bool:
		return Bool(x)
	case int:
		return Int(int64(x))
	case int8:
		return Int(int64(x))
	case int16:
		return Int(int64(x))
	case int32:
		return Int(int64(x))
	case int64:
		return Int(x)
	case uint:
		return unsigned(uint64(x))
	case uint8:
		return Int(int64(x))
	case uint16:
		return Int(int64(x))
	case uint32:
		return Int(int64(x))
	case uint64:
		return unsigned(x)
	case float32:
		return Float(float64(x))
	case float64:
		return Float(x)
	case time.Duration:
		return Duration(x)
	case fmt.Stringer:
		return Text(x.String())
	default:
		return Text(fmt.Sprintf("%v", v))
	}
}

// unsigned keeps values above math.MaxInt64 exact by rendering them as text.
func unsigned(u uint64) Value {
	if u > math.MaxInt64 {
		return Text(strconv.FormatUint(u, 10))
	}
	return Int(int64(u))
}

func (v Value) Kind() Kind { return v.kind }
func (v Value) IsEmpty() bool { return v.kind == KindEmpty }
func (v Value) Int() int64 { return v.i }
func (v Value) Float() float64 { return v.f }
func (v Value) Bool() bool { return v.kind == KindBool && v.i != 0 }
func (v Value) TextValue() string { return v.s }

// RightAligned reports whether tables align this value to the right.
// Numbers and booleans do; text and empty cells do not.
func (v Value) RightAligned() bool {
	switch v.kind {
	case KindInt, KindFloat, KindBool:
		return true
	default:
		return false
	}
}

// String renders the value with Format.
func (v Value) String() string { return Format(v) }

// Format renders floats with three decimals and everything else in its
// natural form. The CSV sink and the summary table both use it.
func Format(v Value) string {
	switch v.kind {
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'f', 3, 64)
	case KindBool:
		return strconv.FormatBool(v.i != 0)
	case KindText:
		return v.s
	default:
		return ""
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindInt:
		return json.Marshal(v.i)
	case KindFloat:
		return json.Marshal(v.f)
	case KindBool:
		return json.Marshal(v.i != 0)
	case KindText:
		return json.Marshal(v.s)
	default:
		return []byte("null"), nil
	}
}
