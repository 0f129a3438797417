package reference

import (
	"reflect"
	"strings"
)

// Resolve walks path into value and returns the addressed sub-value.
// Missing keys, out-of-range indexes and shape mismatches all yield
// (nil, false); resolution never panics on absent data. Any key segment
// beginning with an underscore is denied, keeping private members of
// builder artifacts out of reach of parameter expressions.
func Resolve(value interface{}, path []Segment) (interface{}, bool) {
	cur := value
	for _, seg := range path {
		var ok bool
		switch seg.Kind {
		case SegmentKey:
			if strings.HasPrefix(seg.Key, "_") {
				return nil, false
			}
			cur, ok = lookupKey(cur, seg.Key)
		case SegmentIndex:
			cur, ok = lookupIndex(cur, seg.Index)
		}
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func lookupKey(value interface{}, key string) (interface{}, bool) {
	if value == nil {
		return nil, false
	}
	if m, ok := value.(map[string]interface{}); ok {
		v, ok := m[key]
		return v, ok
	}

	rv := reflect.ValueOf(value)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, false
		}
		v := rv.MapIndex(reflect.ValueOf(key))
		if !v.IsValid() {
			return nil, false
		}
		return v.Interface(), true
	case reflect.Struct:
		// Attribute fallback: an exported field matching the segment, either
		// verbatim or with the first letter upcased.
		f := rv.FieldByName(key)
		if !f.IsValid() {
			f = rv.FieldByName(strings.ToUpper(key[:1]) + key[1:])
		}
		if !f.IsValid() || !f.CanInterface() {
			return nil, false
		}
		return f.Interface(), true
	default:
		return nil, false
	}
}

func lookupIndex(value interface{}, idx int) (interface{}, bool) {
	if value == nil || idx < 0 {
		return nil, false
	}
	if s, ok := value.([]interface{}); ok {
		if idx >= len(s) {
			return nil, false
		}
		return s[idx], true
	}

	rv := reflect.ValueOf(value)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	if idx >= rv.Len() {
		return nil, false
	}
	return rv.Index(idx).Interface(), true
}
