// Package snum implements modular sequence-number arithmetic and
// window-membership predicates shared by the RLC-AM and PDCP state
// machines (spec.md §3 SequenceNumber, §4.D).
//
// Every SN-space comparison in this module routes through Less/Add/
// InWindow: ad-hoc modular subtraction scattered through callers is exactly
// the bug class spec.md §4.D calls out.
package snum

// Width is a configured sequence-number bit width. Valid widths are 5, 7,
// 10, 12 and 18 (spec.md §3).
type Width uint8

// Valid widths per spec.md §3.
const (
	Width5  Width = 5
	Width7  Width = 7
	Width10 Width = 10
	Width12 Width = 12
	Width18 Width = 18
)

// IsValid reports whether w is one of the configured widths.
func (w Width) IsValid() bool {
	switch w {
	case Width5, Width7, Width10, Width12, Width18:
		return true
	}
	return false
}

// Mod returns 2^w, the size of the SN space.
func (w Width) Mod() uint32 { return uint32(1) << uint(w) }

// WindowSize returns M = 2^(w-1), the standard ARQ window size for width w.
func (w Width) WindowSize() uint32 { return uint32(1) << uint(w-1) }

// Mask returns the bitmask that keeps a value within the SN space.
func (w Width) Mask() uint32 { return w.Mod() - 1 }

// Normalize reduces sn into [0, 2^w).
func (w Width) Normalize(sn uint32) uint32 { return sn & w.Mask() }

// Add returns (sn + k) mod 2^w.
func Add(sn, k uint32, w Width) uint32 {
	return (sn + k) & w.Mask()
}

// Sub returns (a - b) mod 2^w.
func Sub(a, b uint32, w Width) uint32 {
	return (a - b) & w.Mask()
}

// Less reports whether a is modularly "less than" b under width w: a SN a
// is less-than b when (b - a) mod 2^w is in (0, M), per spec.md §3.
// Equal values are not less-than each other.
func Less(a, b uint32, w Width) bool {
	if a == b {
		return false
	}
	diff := Sub(b, a, w)
	return diff > 0 && diff < w.WindowSize()
}

// LessOrEqual reports a == b || Less(a, b, w).
func LessOrEqual(a, b uint32, w Width) bool {
	return a == b || Less(a, b, w)
}

// InWindow reports whether sn lies in the half-open modular interval
// [base, base+size) under width w.
func InWindow(sn, base, size uint32, w Width) bool {
	return Sub(sn, base, w) < size
}
