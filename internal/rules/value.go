package rules

import (
	"encoding/json"
	"math"
	"time"
)

type ValueKind int

const (
	ValueMissing ValueKind = iota
	ValueNumber
	ValueString
	ValueBool
	ValueDate
	// ValueOther holds objects and arrays reached by path traversal.
	ValueOther
)

func (k ValueKind) String() string {
	switch k {
	case ValueNumber:
		return "number"
	case ValueString:
		return "string"
	case ValueBool:
		return "boolean"
	case ValueDate:
		return "date"
	case ValueOther:
		return "other"
	default:
		return "missing"
	}
}

// Value is a field resolved out of a session. The zero Value is Missing.
type Value struct {
	kind ValueKind
	num  float64
	str  string
	b    bool
	t    time.Time
	raw  any
}

var Missing = Value{}

func NumberValue(f float64) Value {
	return Value{kind: ValueNumber, num: f}
}

func StringValue(s string) Value {
	return Value{kind: ValueString, str: s}
}

func BoolValue(b bool) Value {
	return Value{kind: ValueBool, b: b}
}

func DateValue(t time.Time) Value {
	return Value{kind: ValueDate, t: t}
}

// ValueOf classifies a raw decoded JSON/YAML value.
func ValueOf(v any) Value {
	switch x := v.(type) {
	case nil:
		return Missing
	case Value:
		return x
	case float64:
		return NumberValue(x)
	case float32:
		return NumberValue(float64(x))
	case int:
		return NumberValue(float64(x))
	case int8:
		return NumberValue(float64(x))
	case int16:
		return NumberValue(float64(x))
	case int32:
		return NumberValue(float64(x))
	case int64:
		return NumberValue(float64(x))
	case uint:
		return NumberValue(float64(x))
	case uint8:
		return NumberValue(float64(x))
	case uint16:
		return NumberValue(float64(x))
	case uint32:
		return NumberValue(float64(x))
	case uint64:
		return NumberValue(float64(x))
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return StringValue(x.String())
		}

		return NumberValue(f)
	case string:
		return StringValue(x)
	case bool:
		return BoolValue(x)
	case time.Time:
		return DateValue(x)
	case *time.Time:
		if x == nil {
			return Missing
		}

		return DateValue(*x)
	default:
		return Value{kind: ValueOther, raw: v}
	}
}

func (v Value) Kind() ValueKind {
	return v.kind
}

func (v Value) IsMissing() bool {
	return v.kind == ValueMissing
}

// Interface returns the value in a form suitable for JSON output. Missing
// becomes nil.
func (v Value) Interface() any {
	switch v.kind {
	case ValueNumber:
		if math.IsNaN(v.num) || math.IsInf(v.num, 0) {
			return nil
		}

		return v.num
	case ValueString:
		return v.str
	case ValueBool:
		return v.b
	case ValueDate:
		return v.t
	case ValueOther:
		return v.raw
	default:
		return nil
	}
}

// String renders scalar values as text; anything else is empty.
func (v Value) String() string {
	if v.kind == ValueString {
		return v.str
	}

	if v.kind == ValueMissing || v.kind == ValueOther {
		return ""
	}

	return toString(v)
}
