package models

import (
	"encoding/json"
	"fmt"
)

// ValueKind identifies the concrete type held by a MetadataValue.
type ValueKind int

const (
	// KindString is a string value.
	KindString ValueKind = iota
	// KindNumber is a float64 value (all JSON numbers).
	KindNumber
	// KindBool is a boolean value.
	KindBool
	// KindNested is a nested string-keyed map of values.
	KindNested
)

// MetadataValue is a tagged union over the value types metadata entries may
// hold (string, number, bool, or a nested map). It replaces loosely-typed
// interface{} maps with typed accessors so readers never need reflection.
type MetadataValue struct {
	kind   ValueKind
	str    string
	num    float64
	b      bool
	nested Metadata
}

// Metadata is an open string-keyed map of heterogeneous values attached to a record.
type Metadata map[string]MetadataValue

// String returns a string-kinded value.
func String(s string) MetadataValue { return MetadataValue{kind: KindString, str: s} }

// Number returns a number-kinded value.
func Number(f float64) MetadataValue { return MetadataValue{kind: KindNumber, num: f} }

// Bool returns a bool-kinded value.
func Bool(b bool) MetadataValue { return MetadataValue{kind: KindBool, b: b} }

// Nested returns a nested-map value.
func Nested(m Metadata) MetadataValue { return MetadataValue{kind: KindNested, nested: m} }

// Kind returns the value's kind tag.
func (v MetadataValue) Kind() ValueKind { return v.kind }

// String returns the string value and whether the kind is KindString.
func (v MetadataValue) String() (string, bool) { return v.str, v.kind == KindString }

// Number returns the numeric value and whether the kind is KindNumber.
func (v MetadataValue) Number() (float64, bool) { return v.num, v.kind == KindNumber }

// Bool returns the bool value and whether the kind is KindBool.
func (v MetadataValue) Bool() (bool, bool) { return v.b, v.kind == KindBool }

// Nested returns the nested map and whether the kind is KindNested.
func (v MetadataValue) Nested() (Metadata, bool) { return v.nested, v.kind == KindNested }

// MarshalJSON encodes the value as its plain JSON representation (no type tag on the wire).
func (v MetadataValue) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.str)
	case KindNumber:
		return json.Marshal(v.num)
	case KindBool:
		return json.Marshal(v.b)
	case KindNested:
		return json.Marshal(v.nested)
	}
	return nil, fmt.Errorf("metadata value has unknown kind %d", v.kind)
}

// UnmarshalJSON decodes a plain JSON value into the matching kind.
// JSON null, arrays, and other unsupported shapes decode as an empty string value.
func (v *MetadataValue) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*v = fromInterface(raw)
	return nil
}

func fromInterface(raw interface{}) MetadataValue {
	switch t := raw.(type) {
	case string:
		return String(t)
	case float64:
		return Number(t)
	case bool:
		return Bool(t)
	case map[string]interface{}:
		nested := make(Metadata, len(t))
		for k, val := range t {
			nested[k] = fromInterface(val)
		}
		return Nested(nested)
	}
	return String("")
}

// Clone returns a deep copy of the metadata map.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		if v.kind == KindNested {
			v.nested = v.nested.Clone()
		}
		out[k] = v
	}
	return out
}
