package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

var ErrNotScalar = errors.New("config value must be a bool, string or number")

type Kind uint8

const (
	KindText Kind = iota
	KindBool
	KindNumber
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	default:
		return "text"
	}
}

// Value is a tagged config scalar. The kind is fixed when the value is
// decoded from a dump, so callers branch on Kind instead of inspecting JSON.
type Value struct {
	kind Kind
	b    bool
	s    string
	n    float64
}

func Bool(b bool) Value { return Value{kind: KindBool, b: b} }
func Text(s string) Value { return Value{kind: KindText, s: s} }
func Number(n float64) Value { return Value{kind: KindNumber, n: n} }
func (v Value) Kind() Kind { return v.kind }
func (v Value) IsBool() bool { return v.kind == KindBool }
func (v Value) BoolVal() bool { return v.b }

// Float reports the numeric value for number kinds.
func (v Value) Float() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	return v.n, true
}

// String is the textual form a form control would hold for this value.
func (v Value) String() string {
	switch v.kind {
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindNumber:
		return strconv.FormatFloat(v.n, 'f', -1, 64)
	default:
		return v.s
	}
}

// ParseAs reads s as a value of the given kind.
func ParseAs(kind Kind, s string) (Value, error) {
	switch kind {
	case KindBool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return Value{}, fmt.Errorf("parse bool %q: %w", s, err)
		}
		return Bool(b), nil
	case KindNumber:
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Value{}, fmt.Errorf("parse number %q: %w", s, err)
		}
		return Number(n), nil
	default:
		return Text(s), nil
	}
}

// Coerce converts v to kind when it arrives with a different one, e.g. a
// server patch sending "true" for a checkbox key. v is returned unchanged
// when no conversion applies.
func Coerce(kind Kind, v Value) Value {
	if v.kind == kind {
		return v
	}
	if c, err := ParseAs(kind, v.String()); err == nil {
		return c
	}
	return v
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindBool:
		return json.Marshal(v.b)
	case KindNumber:
		return json.Marshal(v.n)
	default:
		return json.Marshal(v.s)
	}
}

func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return ErrNotScalar
	}
	switch data[0] {
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*v = Bool(b)
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = Text(s)
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		var n float64
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		*v = Number(n)
	default:
		return ErrNotScalar
	}
	return nil
}
