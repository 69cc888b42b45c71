package tangle

import "reflect"

// defaultEquals decides whether a write changed a value: primitives
// compare by value, compound values by reference identity. Custom
// semantics go through WithEquals.
func defaultEquals[T any](a, b T) bool {
	switch av := any(a).(type) {
	case int:
		return av == any(b).(int)
	case int8:
		return av == any(b).(int8)
	case int16:
		return av == any(b).(int16)
	case int32:
		return av == any(b).(int32)
	case int64:
		return av == any(b).(int64)
	case uint:
		return av == any(b).(uint)
	case uint8:
		return av == any(b).(uint8)
	case uint16:
		return av == any(b).(uint16)
	case uint32:
		return av == any(b).(uint32)
	case uint64:
		return av == any(b).(uint64)
	case float32:
		return av == any(b).(float32)
	case float64:
		return av == any(b).(float64)
	case string:
		return av == any(b).(string)
	case bool:
		return av == any(b).(bool)
	default:
		return referenceEquals(any(a), any(b))
	}
}

// referenceEquals compares compound values by identity: pointers, maps,
// slices, channels and funcs are equal only when they are the same
// reference. Comparable non-reference types fall back to ==; everything
// else is treated as changed.
func referenceEquals(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	av := reflect.ValueOf(a)
	bv := reflect.ValueOf(b)
	if av.Type() != bv.Type() {
		return false
	}
	switch av.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return av.Pointer() == bv.Pointer()
	case reflect.Slice:
		return av.Len() == bv.Len() && av.Pointer() == bv.Pointer()
	default:
		if av.Type().Comparable() {
			return a == b
		}
		return false
	}
}
