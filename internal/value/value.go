// Package value is the tagged-union cell model. The kind of a column is decided once
// from its declared type; cells are then converted according to that kind only.
package value

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"
)

type Kind int

const (
	KindNull Kind = iota
	KindInteger
	KindFloat
	KindText
	KindTimestamp
)

func (k Kind) String() string {
	switch k {
	case KindInteger:
		return "integer"
	case KindFloat:
		return "float"
	case KindText:
		return "text"
	case KindTimestamp:
		return "timestamp"
	default:
		return "null"
	}
}

// KindOf maps a declared column type (source or warehouse dialect) to a Kind.
// Unknown types are treated as text.
func KindOf(declared string) Kind {
	t := strings.ToLower(strings.TrimSpace(declared))
	t = unwrap(t, "nullable(")
	t = unwrap(t, "lowcardinality(")
	if i := strings.IndexAny(t, "( "); i > 0 {
		t = t[:i]
	}

	switch {
	case t == "" || t == "interval" || strings.Contains(t, "point"):
		return KindText
	case strings.Contains(t, "int") || t == "serial" || t == "bigserial" || t == "bit" || t == "bool" || t == "boolean":
		return KindInteger
	case strings.HasPrefix(t, "decimal") || strings.HasPrefix(t, "numeric") || strings.HasPrefix(t, "float") ||
		strings.HasPrefix(t, "double") || t == "real" || t == "money" || t == "number":
		return KindFloat
	case strings.Contains(t, "date") || strings.Contains(t, "time") || t == "year":
		return KindTimestamp
	default:
		return KindText
	}
}

func unwrap(t, prefix string) string {
	if strings.HasPrefix(t, prefix) && strings.HasSuffix(t, ")") {
		return t[len(prefix) : len(t)-1]
	}
	return t
}

// Value is one cell.
type Value struct {
	kind Kind
	i    int64
	f    float64
	s    string
	t    time.Time
}

func Null() Value { return Value{kind: KindNull} }
func Integer(i int64) Value { return Value{kind: KindInteger, i: i} }
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }
func Text(s string) Value { return Value{kind: KindText, s: s} }
func Timestamp(t time.Time) Value { return Value{kind: KindTimestamp, t: t} }

func (v Value) Kind() Kind { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) Int() (int64, bool) { return v.i, v.kind == KindInteger }
func (v Value) Float() (float64, bool) { return v.f, v.kind == KindFloat }
func (v Value) Text() (string, bool) { return v.s, v.kind == KindText }
func (v Value) Time() (time.Time, bool) { return v.t, v.kind == KindTimestamp }

// String renders the value the way reports and previews show it.
func (v Value) String() string {
	switch v.kind {
	case KindInteger:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'f', -1, 64)
	case KindText:
		return v.s
	case KindTimestamp:
		if v.t.Hour() == 0 && v.t.Minute() == 0 && v.t.Second() == 0 && v.t.Nanosecond() == 0 {
			return v.t.Format(time.DateOnly)
		}
		return v.t.Format(time.DateTime)
	default:
		return "NULL"
	}
}

// Convert turns a scanned driver value into a Value of the given kind. A nil input is
// always Null; anything that cannot be represented in kind is an error.
func Convert(kind Kind, raw any) (Value, error) {
	if raw == nil {
		return Null(), nil
	}
	// Nullable warehouse columns scan into pointers.
	if rv := reflect.ValueOf(raw); rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return Null(), nil
		}
		return Convert(kind, rv.Elem().Interface())
	}

	switch kind {
	case KindNull:
		return Null(), nil
	case KindInteger:
		switch n := raw.(type) {
		case int64:
			return Integer(n), nil
		case int:
			return Integer(int64(n)), nil
		case int32:
			return Integer(int64(n)), nil
		case int16:
			return Integer(int64(n)), nil
		case int8:
			return Integer(int64(n)), nil
		case uint64:
			if n > math.MaxInt64 {
				return Value{}, fmt.Errorf("integer cell %d overflows int64", n)
			}
			return Integer(int64(n)), nil
		case uint:
			if uint64(n) > math.MaxInt64 {
				return Value{}, fmt.Errorf("integer cell %d overflows int64", n)
			}
			return Integer(int64(n)), nil
		case uint32:
			return Integer(int64(n)), nil
		case uint16:
			return Integer(int64(n)), nil
		case uint8:
			return Integer(int64(n)), nil
		case bool:
			if n {
				return Integer(1), nil
			}
			return Integer(0), nil
		case []byte:
			i, err := strconv.ParseInt(string(n), 10, 64)
			if err != nil {
				return Value{}, fmt.Errorf("integer cell %q: %w", n, err)
			}
			return Integer(i), nil
		}
	case KindFloat:
		switch n := raw.(type) {
		case float64:
			return Float(n), nil
		case float32:
			return Float(float64(n)), nil
		case int64:
			return Float(float64(n)), nil
		case int32:
			return Float(float64(n)), nil
		case []byte:
			f, err := strconv.ParseFloat(string(n), 64)
			if err != nil {
				return Value{}, fmt.Errorf("float cell %q: %w", n, err)
			}
			return Float(f), nil
		case string:
			f, err := strconv.ParseFloat(n, 64)
			if err != nil {
				return Value{}, fmt.Errorf("float cell %q: %w", n, err)
			}
			return Float(f), nil
		case fmt.Stringer:
			// Decimal columns.
			f, err := strconv.ParseFloat(n.String(), 64)
			if err != nil {
				return Value{}, fmt.Errorf("float cell %q: %w", n.String(), err)
			}
			return Float(f), nil
		}
	case KindText:
		switch s := raw.(type) {
		case string:
			return Text(s), nil
		case []byte:
			return Text(string(s)), nil
		case fmt.Stringer:
			return Text(s.String()), nil
		}
	case KindTimestamp:
		switch t := raw.(type) {
		case time.Time:
			return Timestamp(t), nil
		}
	}
	return Value{}, fmt.Errorf("cannot convert %T to %s", raw, kind)
}
