package rlcam

import (
	"github.com/ranl2/l2core/errs"
	"github.com/ranl2/l2core/snum"
)

// nrNack is one NACK record in an NR status PDU. Range lets a single
// record compress up to 255 contiguous missing SNs (spec.md §6).
type nrNack struct {
	SN             uint32
	HasSO          bool
	SOStart, SOEnd uint32
	HasRange       bool
	Range          uint8
}

// nrStatus is the decoded form of an NR RLC-AM status PDU (TS 38.322
// §6.2.2.7).
type nrStatus struct {
	ACKSN uint32
	Nacks []nrNack
}

// encodeNRStatus packs s for the given SN width (12 or 18).
func encodeNRStatus(s nrStatus, w snum.Width) []byte {
	var bw bitWriter
	bw.writeBits(0, 1) // D/C = 0
	bw.writeBits(0, 3) // CPT = 000
	bw.writeBits(s.ACKSN, int(w))
	e1 := uint32(0)
	if len(s.Nacks) > 0 {
		e1 = 1
	}
	bw.writeBits(e1, 1)

	for i, n := range s.Nacks {
		bw.writeBits(n.SN, int(w))
		more := uint32(0)
		if i != len(s.Nacks)-1 {
			more = 1
		}
		bw.writeBits(more, 1)
		e2 := uint32(0)
		if n.HasSO {
			e2 = 1
		}
		bw.writeBits(e2, 1)
		e3 := uint32(0)
		if n.HasRange {
			e3 = 1
		}
		bw.writeBits(e3, 1)
		if n.HasSO {
			bw.writeBits(n.SOStart, 16)
			bw.writeBits(n.SOEnd, 16)
		}
		if n.HasRange {
			bw.writeBits(uint32(n.Range), 8)
		}
	}
	bw.align()
	return bw.bytes()
}

// decodeNRStatus parses an NR status PDU for the given SN width.
func decodeNRStatus(buf []byte, w snum.Width) (nrStatus, error) {
	minBits := 4 + int(w)
	if len(buf)*8 < minBits {
		return nrStatus{}, errs.ErrParseError
	}
	r := newBitReader(buf)
	dc := r.readBits(1)
	cpt := r.readBits(3)
	if dc != 0 || cpt != 0 {
		return nrStatus{}, errs.ErrParseError
	}
	var s nrStatus
	s.ACKSN = r.readBits(int(w))
	e1 := r.readBits(1) == 1

	var prev uint32
	havePrev := false
	for e1 {
		if r.remaining() < int(w)+3 {
			return nrStatus{}, errs.ErrParseError
		}
		var n nrNack
		n.SN = r.readBits(int(w))
		e1 = r.readBits(1) == 1
		e2 := r.readBits(1) == 1
		e3 := r.readBits(1) == 1
		if e2 {
			if r.remaining() < 32 {
				return nrStatus{}, errs.ErrParseError
			}
			n.HasSO = true
			n.SOStart = r.readBits(16)
			n.SOEnd = r.readBits(16)
		}
		if e3 {
			if r.remaining() < 8 {
				return nrStatus{}, errs.ErrParseError
			}
			n.HasRange = true
			n.Range = uint8(r.readBits(8))
		}
		if havePrev && !snum.Less(prev, n.SN, w) {
			return nrStatus{}, errs.ErrProtocolFailure
		}
		prev = n.SN
		havePrev = true
		s.Nacks = append(s.Nacks, n)
	}
	return s, nil
}
