package rlcam

import "github.com/ranl2/l2core/errs"

// Framing info values (spec.md §6): FI ∈ {00: first+last, 01: first only,
// 10: last only, 11: middle}.
const (
	FIWhole  uint8 = 0b00
	FIFirst  uint8 = 0b01
	FILast   uint8 = 0b10
	FIMiddle uint8 = 0b11
)

// lteDataHeader is the decoded form of an LTE AMD PDU header (TS 36.322
// §6.2.1), with or without resegmentation and length indicators.
type lteDataHeader struct {
	RF  bool
	P   bool
	FI  uint8
	SN  uint32
	LSF bool // only meaningful when RF
	SO  uint32
	LIs []uint16 // SDU-segment lengths carried by LI fields, in order
}

// encodeLTEDataHeader packs h into its wire bytes.
func encodeLTEDataHeader(h lteDataHeader) []byte {
	var w bitWriter
	w.writeBits(1, 1) // D/C = 1 (data)
	rf := uint32(0)
	if h.RF {
		rf = 1
	}
	w.writeBits(rf, 1)
	p := uint32(0)
	if h.P {
		p = 1
	}
	w.writeBits(p, 1)
	w.writeBits(uint32(h.FI), 2)
	e := uint32(0)
	if len(h.LIs) > 0 {
		e = 1
	}
	w.writeBits(e, 1)
	w.writeBits(h.SN, 10)

	if h.RF {
		lsf := uint32(0)
		if h.LSF {
			lsf = 1
		}
		w.writeBits(lsf, 1)
		w.writeBits(h.SO, 15)
	}

	for i, li := range h.LIs {
		w.writeBits(uint32(li), 11)
		more := uint32(0)
		if i != len(h.LIs)-1 {
			more = 1
		}
		w.writeBits(more, 1)
	}
	w.align()
	return w.bytes()
}

// decodeLTEDataHeader parses an LTE AMD PDU header, returning the header
// and the number of bytes it occupied.
func decodeLTEDataHeader(buf []byte) (lteDataHeader, int, error) {
	if len(buf) < 2 {
		return lteDataHeader{}, 0, errs.ErrParseError
	}
	r := newBitReader(buf)
	dc := r.readBits(1)
	if dc != 1 {
		return lteDataHeader{}, 0, errs.ErrParseError
	}
	var h lteDataHeader
	h.RF = r.readBits(1) == 1
	h.P = r.readBits(1) == 1
	h.FI = uint8(r.readBits(2))
	e := r.readBits(1) == 1
	h.SN = r.readBits(10)

	if h.RF {
		if r.remaining() < 16 {
			return lteDataHeader{}, 0, errs.ErrParseError
		}
		h.LSF = r.readBits(1) == 1
		h.SO = r.readBits(15)
	}

	for e {
		if r.remaining() < 12 {
			return lteDataHeader{}, 0, errs.ErrParseError
		}
		li := uint16(r.readBits(11))
		e = r.readBits(1) == 1
		h.LIs = append(h.LIs, li)
	}
	r.align()
	return h, r.bytePos(), nil
}
