package snum

import "golang.org/x/exp/constraints"

// Min returns the smaller of a and b. A generic ordered-value helper,
// grounded on the teacher's generic ring/ordered-value helpers
// (go-catrate/ring.go's constraints.Ordered usage).
func Min[T constraints.Ordered](a, b T) T {
	if a < b {
		return a
	}
	return b
}

// Max returns the larger of a and b.
func Max[T constraints.Ordered](a, b T) T {
	if a > b {
		return a
	}
	return b
}
