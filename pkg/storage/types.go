package storage

import (
	"fmt"
	"time"
)

// ValueKind tags the dynamic type of one cell.
type ValueKind string

const (
	KindString ValueKind = "string"
	KindNumber ValueKind = "number"
	KindBool   ValueKind = "bool"
	KindNull   ValueKind = "null"
)

// Value is a tagged cell value. Query results cross the sandbox/cache
// boundary as these instead of bare interface{} so every consumer sees the
// same shape.
type Value struct {
	Kind ValueKind `json:"kind"`
	Str  string    `json:"str,omitempty"`
	Num  float64   `json:"num,omitempty"`
	Bool bool      `json:"bool,omitempty"`
}

func StringValue(s string) Value  { return Value{Kind: KindString, Str: s} }
func NumberValue(n float64) Value { return Value{Kind: KindNumber, Num: n} }
func BoolValue(b bool) Value      { return Value{Kind: KindBool, Bool: b} }
func NullValue() Value            { return Value{Kind: KindNull} }

// FromAny converts a scanned database value into a tagged Value.
func FromAny(v any) Value {
	switch x := v.(type) {
	case nil:
		return NullValue()
	case string:
		return StringValue(x)
	case bool:
		return BoolValue(x)
	case float64:
		return NumberValue(x)
	case float32:
		return NumberValue(float64(x))
	case int:
		return NumberValue(float64(x))
	case int32:
		return NumberValue(float64(x))
	case int64:
		return NumberValue(float64(x))
	case uint8:
		return NumberValue(float64(x))
	case uint32:
		return NumberValue(float64(x))
	case uint64:
		return NumberValue(float64(x))
	case time.Time:
		return StringValue(x.UTC().Format(time.RFC3339Nano))
	case []string:
		return StringValue(fmt.Sprintf("%v", x))
	default:
		return StringValue(fmt.Sprintf("%v", x))
	}
}

// String renders the value for display and size accounting.
func (v Value) String() string {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindNumber:
		return fmt.Sprintf("%g", v.Num)
	case KindBool:
		return fmt.Sprintf("%t", v.Bool)
	default:
		return "null"
	}
}

// Row is one result row: column name to tagged value.
type Row map[string]Value

// SizeBytes approximates the serialized size of a result set. Used for the
// query audit log, not for billing, so a rough count is fine.
func SizeBytes(rows []Row) int64 {
	var n int64
	for _, r := range rows {
		for k, v := range r {
			n += int64(len(k) + len(v.String()) + 8)
		}
	}
	return n
}
