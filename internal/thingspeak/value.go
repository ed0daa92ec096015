package thingspeak

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Value is one untyped field slot. The feed returns fields as JSON strings,
// but numbers and null also occur, and a field may be absent.
type Value struct {
	raw   string
	valid bool
}

// NewValue wraps a raw field string
func NewValue(s string) *Value {
	return &Value{raw: s, valid: true}
}

func (v *Value) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*v = Value{}
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*v = Value{raw: s, valid: true}
	case bytes.Equal(b, []byte("true")):
		*v = Value{raw: "1", valid: true}
	case bytes.Equal(b, []byte("false")):
		*v = Value{raw: "0", valid: true}
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("field value %s is neither string, number nor null", b)
		}
		*v = Value{raw: n.String(), valid: true}
	}
	return nil
}

func (v *Value) MarshalJSON() ([]byte, error) {
	if v == nil || !v.valid {
		return []byte("null"), nil
	}
	return json.Marshal(v.raw)
}

// IsEmpty reports an absent, null or blank field
func (v *Value) IsEmpty() bool {
	return v == nil || !v.valid || strings.TrimSpace(v.raw) == ""
}

func (v *Value) String() string {
	if v == nil {
		return ""
	}
	return v.raw
}

// Float coerces the field; empty fields are 0
func (v *Value) Float() (float64, error) {
	if v.IsEmpty() {
		return 0, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v.raw), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%q is not a number", v.raw)
	}
	return f, nil
}

// Int coerces the field; empty fields are 0. Integral decimals such as "3.0"
// are accepted, fractional ones are not.
func (v *Value) Int() (int, error) {
	if v.IsEmpty() {
		return 0, nil
	}
	s := strings.TrimSpace(v.raw)
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, fmt.Errorf("%q is not an integer", v.raw)
	}
	return int(f), nil
}
