package common

import "unsafe"

// ToBytes reinterprets a slice of fixed-size values as its backing bytes in native byte order.
// The result aliases s; callers must not retain it past the lifetime of s.
func ToBytes[E any](s []E) []byte {
	if len(s) == 0 {
		return nil
	}
	var zero E
	return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*int(unsafe.Sizeof(zero)))
}

// FromBytes reinterprets b as a slice of fixed-size values. Trailing bytes that do not form a
// whole element are ignored. The result aliases b.
func FromBytes[E any](b []byte) []E {
	var zero E
	size := int(unsafe.Sizeof(zero))
	if size == 0 || len(b) < size {
		return nil
	}
	return unsafe.Slice((*E)(unsafe.Pointer(&b[0])), len(b)/size)
}

// SizeOf returns the size in bytes of one value of E.
func SizeOf[E any]() int {
	var zero E
	return int(unsafe.Sizeof(zero))
}
