// Package safeconv converts the unsigned offsets and positions reported by
// the C++ parser into Go ints.
package safeconv

// MaxInt is the largest int on this platform.
const MaxInt = int(^uint(0) >> 1)

// MustUintToInt converts v to int and panics when it does not fit. Parser
// offsets are bounded by the size of a header held in memory, so an
// overflow means a corrupt tree.
func MustUintToInt(v uint) int {
	if v > uint(MaxInt) {
		panic("safeconv: uint to int overflow")
	}

	return int(v)
}
