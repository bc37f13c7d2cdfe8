package util

import "log"

// Debug is the highest DPrintf level that is logged.
var Debug uint64 = 0

func DPrintf(level uint64, format string, a ...interface{}) {
	if level <= Debug {
		log.Printf(format, a...)
	}
}

func RoundUp(n uint64, sz uint64) uint64 {
	return (n + sz - 1) / sz
}

func Min(n uint64, m uint64) uint64 {
	if n < m {
		return n
	} else {
		return m
	}
}

// SumOverflows reports whether a+b wraps around.
func SumOverflows(a uint64, b uint64) bool {
	sum := a + b
	return sum < a
}

// MulOverflows reports whether a*b wraps around.
func MulOverflows(a uint64, b uint64) bool {
	if a == 0 || b == 0 {
		return false
	}
	return (a*b)/b != a
}
