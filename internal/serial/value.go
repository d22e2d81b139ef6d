package serial

import (
	"bytes"
	"fmt"
	"math"
)

// Kind identifies the scalar type carried by a Value.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindInt
	KindFloat
	KindString
	KindBool
	KindBlob
)

// String returns the lowercase kind name used by the XML mirror.
func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	case KindBlob:
		return "blob"
	default:
		return "invalid"
	}
}

func parseKind(s string) (Kind, error) {
	switch s {
	case "int":
		return KindInt, nil
	case "float":
		return KindFloat, nil
	case "string":
		return KindString, nil
	case "bool":
		return KindBool, nil
	case "blob":
		return KindBlob, nil
	}
	return KindInvalid, fmt.Errorf("unknown value kind %q", s)
}

// Value is a property value: one of int, float, string, bool or blob.
type Value struct {
	kind Kind
	i    int64
	f    float64
	s    string
	b    []byte
}

func IntValue(v int64) Value { return Value{kind: KindInt, i: v} }
func FloatValue(v float64) Value { return Value{kind: KindFloat, f: v} }
func StringValue(v string) Value { return Value{kind: KindString, s: v} }
func BoolValue(v bool) Value {
	if v {
		return Value{kind: KindBool, i: 1}
	}
	return Value{kind: KindBool}
}

// BlobValue copies data so later mutation of the caller's slice is not observed.
func BlobValue(data []byte) Value {
	cp := make([]byte, len(data))
	copy(cp, data)
	return Value{kind: KindBlob, b: cp}
}

// Kind returns the kind of the value.
func (v Value) Kind() Kind { return v.kind }

// AsInt returns the integer content. Floats are truncated, bools map to 0/1.
func (v Value) AsInt() (int64, bool) {
	switch v.kind {
	case KindInt, KindBool:
		return v.i, true
	case KindFloat:
		return int64(v.f), true
	}
	return 0, false
}

// AsFloat returns the numeric content as float64.
func (v Value) AsFloat() (float64, bool) {
	switch v.kind {
	case KindFloat:
		return v.f, true
	case KindInt:
		return float64(v.i), true
	}
	return 0, false
}

func (v Value) AsString() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.s, true
}

func (v Value) AsBool() (bool, bool) {
	switch v.kind {
	case KindBool, KindInt:
		return v.i != 0, true
	}
	return false, false
}

// AsBlob returns a copy of the blob content.
func (v Value) AsBlob() ([]byte, bool) {
	if v.kind != KindBlob {
		return nil, false
	}
	cp := make([]byte, len(v.b))
	copy(cp, v.b)
	return cp, true
}

// Equal reports whether both values have the same kind and content.
// Floats compare bitwise so NaN round-trips count as equal.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindInt, KindBool:
		return v.i == o.i
	case KindFloat:
		return math.Float64bits(v.f) == math.Float64bits(o.f)
	case KindString:
		return v.s == o.s
	case KindBlob:
		return bytes.Equal(v.b, o.b)
	}
	return true
}

// String renders the value for logs and the XML mirror.
func (v Value) String() string {
	switch v.kind {
	case KindInt:
		return fmt.Sprintf("%d", v.i)
	case KindFloat:
		return formatFloat(v.f)
	case KindString:
		return v.s
	case KindBool:
		if v.i != 0 {
			return "true"
		}
		return "false"
	case KindBlob:
		return fmt.Sprintf("<%d bytes>", len(v.b))
	}
	return ""
}
