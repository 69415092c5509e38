package dataset

import (
	"encoding/json"
	"math"
	"strconv"
)

// Kind tags the representation held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindInt
	KindReal
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindReal:
		return "real"
	case KindText:
		return "text"
	default:
		return "null"
	}
}

// Value is a single cell. Only the field selected by Kind is meaningful.
type Value struct {
	Kind Kind
	I    int64
	F    float64
	S    string
}

func Null() Value { return Value{Kind: KindNull} }
func Int(v int64) Value { return Value{Kind: KindInt, I: v} }
func Real(v float64) Value { return Value{Kind: KindReal, F: v} }
func Text(v string) Value { return Value{Kind: KindText, S: v} }
func (v Value) IsNull() bool { return v.Kind == KindNull }
func (v Value) IsNumber() bool { return v.Kind == KindInt || v.Kind == KindReal }

// Float returns the numeric value of Int and Real cells.
func (v Value) Float() (float64, bool) {
	switch v.Kind {
	case KindInt:
		return float64(v.I), true
	case KindReal:
		return v.F, true
	}
	return 0, false
}

// Finite is Float restricted to finite numbers. NaN and the infinities
// report false.
func (v Value) Finite() (float64, bool) {
	f, ok := v.Float()
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Any returns the Go value used for SQL arguments and JSON output.
func (v Value) Any() any {
	switch v.Kind {
	case KindInt:
		return v.I
	case KindReal:
		return v.F
	case KindText:
		return v.S
	}
	return nil
}

// String renders the cell for text output; nulls render empty.
func (v Value) String() string {
	switch v.Kind {
	case KindInt:
		return strconv.FormatInt(v.I, 10)
	case KindReal:
		return strconv.FormatFloat(v.F, 'g', -1, 64)
	case KindText:
		return v.S
	}
	return ""
}

// MarshalJSON encodes nulls and non-finite reals as JSON null.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.Kind == KindReal && (math.IsNaN(v.F) || math.IsInf(v.F, 0)) {
		return []byte("null"), nil
	}
	return json.Marshal(v.Any())
}
