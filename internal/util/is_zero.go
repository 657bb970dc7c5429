package util

import "reflect"

func IsZero(i interface{}) bool {
	return IsZeroVal(reflect.ValueOf(i))
}

// IsZeroVal works for not comparable types too, unlike == on reflect.Zero.
func IsZeroVal(v reflect.Value) bool {
	return !v.IsValid() || v.IsZero()
}
