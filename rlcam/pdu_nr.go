package rlcam

import (
	"github.com/ranl2/l2core/errs"
	"github.com/ranl2/l2core/snum"
)

// Segmentation-indicator values (spec.md §6, TS 38.322 §6.2.2.4).
const (
	SIWhole  uint8 = 0b00
	SIFirst  uint8 = 0b01
	SILast   uint8 = 0b10
	SIMiddle uint8 = 0b11
)

// nrDataHeader is the decoded form of an NR AMD PDU header. It carries at
// most one SDU or SDU segment, per spec.md §4.E "Segmentation (NR
// flavor)".
type nrDataHeader struct {
	P  bool
	SI uint8
	SN uint32
	SO uint32 // present (wire) when SI is SILast or SIMiddle
}

// encodeNRDataHeader packs h for the given SN width (12 or 18).
func encodeNRDataHeader(h nrDataHeader, w snum.Width) []byte {
	var bw bitWriter
	bw.writeBits(1, 1) // D/C = 1 (data)
	p := uint32(0)
	if h.P {
		p = 1
	}
	bw.writeBits(p, 1)
	bw.writeBits(uint32(h.SI), 2)
	if w == snum.Width18 {
		bw.writeBits(0, 2) // reserved
	}
	bw.writeBits(h.SN, int(w))
	if h.SI == SILast || h.SI == SIMiddle {
		bw.writeBits(h.SO, 16)
	}
	bw.align()
	return bw.bytes()
}

// decodeNRDataHeader parses an NR AMD PDU header for the given SN width.
func decodeNRDataHeader(buf []byte, w snum.Width) (nrDataHeader, int, error) {
	minBits := 4 + int(w)
	if w == snum.Width18 {
		minBits += 2
	}
	if len(buf)*8 < minBits {
		return nrDataHeader{}, 0, errs.ErrParseError
	}
	r := newBitReader(buf)
	dc := r.readBits(1)
	if dc != 1 {
		return nrDataHeader{}, 0, errs.ErrParseError
	}
	var h nrDataHeader
	h.P = r.readBits(1) == 1
	h.SI = uint8(r.readBits(2))
	if w == snum.Width18 {
		r.readBits(2) // reserved
	}
	h.SN = r.readBits(int(w))
	if h.SI == SILast || h.SI == SIMiddle {
		if r.remaining() < 16 {
			return nrDataHeader{}, 0, errs.ErrParseError
		}
		h.SO = r.readBits(16)
	}
	r.align()
	return h, r.bytePos(), nil
}
