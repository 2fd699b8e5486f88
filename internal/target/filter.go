package target

import (
	"math"
	"reflect"
	"strconv"
)

// Attributes is what a filter can inspect. *event.Event implements it.
type Attributes interface {
	Lookup(name string) (any, bool)
}

// Match reports whether ev passes every filter in f.
// An empty filter set matches nothing, and a key the event does not expose
// is a non-match.
func (f Filters) Match(ev Attributes) bool {
	if len(f) == 0 {
		return false
	}
	for key, allowed := range f {
		val, ok := ev.Lookup(key)
		if !ok {
			return false
		}
		if !containsValue(allowed, val) {
			return false
		}
	}
	return true
}

func containsValue(allowed []any, v any) bool {
	for _, a := range allowed {
		if equal(a, v) {
			return true
		}
	}
	return false
}

// equal compares values of the same kind directly. Numbers compare by value
// across int and float kinds, and a number matches a string only when the
// string is its canonical decimal form, so a YAML filter of 42 matches an
// entity_id of "42" but not "042".
func equal(left, right any) bool {
	if left == nil || right == nil {
		return left == nil && right == nil
	}
	lv, rv := reflect.ValueOf(left), reflect.ValueOf(right)
	lf, lnum := number(lv)
	rf, rnum := number(rv)
	switch {
	case lnum && rnum:
		return lf == rf
	case lnum && rv.Kind() == reflect.String:
		return canonical(lf) == rv.String()
	case rnum && lv.Kind() == reflect.String:
		return canonical(rf) == lv.String()
	}
	switch lv.Kind() {
	case reflect.String:
		return rv.Kind() == reflect.String && lv.String() == rv.String()
	case reflect.Bool:
		return rv.Kind() == reflect.Bool && lv.Bool() == rv.Bool()
	}
	return false
}

func number(v reflect.Value) (float64, bool) {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(v.Uint()), true
	case reflect.Float32, reflect.Float64:
		f := v.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

func canonical(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
