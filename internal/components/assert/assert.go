// Package assert guards constructor wiring. A failed assertion is a
// programming error, so it panics.
package assert

import (
	"fmt"
	"reflect"
)

func isNil(value any) bool {
	if value == nil {
		return true
	}
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return v.IsNil()
	}
	return false
}

// NotNil panics if value is nil, including a nil pointer stored in an
// interface.
func NotNil(value any) {
	if isNil(value) {
		panic(fmt.Sprintf("expected value of type %T to be not nil", value))
	}
}

func NotEmptyStr(str string) {
	if str == "" {
		panic("expected string to be non-empty")
	}
}
