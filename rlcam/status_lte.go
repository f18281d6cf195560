package rlcam

import (
	"github.com/ranl2/l2core/errs"
	"github.com/ranl2/l2core/snum"
)

// lteNack is one NACK record in an LTE status PDU.
type lteNack struct {
	SN             uint32
	HasSO          bool
	SOStart, SOEnd uint32
}

// lteStatus is the decoded form of an LTE RLC-AM status PDU (TS 36.322
// §6.2.1.7): D/C=0, CPT=000, an ACK_SN, and zero or more NACKs covering
// `[RX_NEXT, ACK_SN)`.
type lteStatus struct {
	ACKSN uint32
	Nacks []lteNack
}

// encodeLTEStatus packs s into its wire bytes.
func encodeLTEStatus(s lteStatus) []byte {
	var w bitWriter
	w.writeBits(0, 1) // D/C = 0 (control)
	w.writeBits(0, 3) // CPT = 000 (status)
	w.writeBits(s.ACKSN, 10)
	e1 := uint32(0)
	if len(s.Nacks) > 0 {
		e1 = 1
	}
	w.writeBits(e1, 1)

	for i, n := range s.Nacks {
		w.writeBits(n.SN, 10)
		more := uint32(0)
		if i != len(s.Nacks)-1 {
			more = 1
		}
		w.writeBits(more, 1)
		e2 := uint32(0)
		if n.HasSO {
			e2 = 1
		}
		w.writeBits(e2, 1)
		if n.HasSO {
			w.writeBits(n.SOStart, 15)
			w.writeBits(n.SOEnd, 15)
		}
	}
	w.align()
	return w.bytes()
}

// decodeLTEStatus parses an LTE status PDU, validating that NACK_SNs are
// monotonically increasing within [RX_NEXT_implicit, ACK_SN) per spec.md
// §6's "Valid if monotonic NACK_SNs".
func decodeLTEStatus(buf []byte, w snum.Width) (lteStatus, error) {
	if len(buf) < 2 {
		return lteStatus{}, errs.ErrParseError
	}
	r := newBitReader(buf)
	dc := r.readBits(1)
	cpt := r.readBits(3)
	if dc != 0 || cpt != 0 {
		return lteStatus{}, errs.ErrParseError
	}
	var s lteStatus
	s.ACKSN = r.readBits(10)
	e1 := r.readBits(1) == 1

	var prev uint32
	havePrev := false
	for e1 {
		if r.remaining() < 12 {
			return lteStatus{}, errs.ErrParseError
		}
		var n lteNack
		n.SN = r.readBits(10)
		e1 = r.readBits(1) == 1
		e2 := r.readBits(1) == 1
		if e2 {
			if r.remaining() < 30 {
				return lteStatus{}, errs.ErrParseError
			}
			n.HasSO = true
			n.SOStart = r.readBits(15)
			n.SOEnd = r.readBits(15)
		}
		if !snum.Less(n.SN, s.ACKSN, w) {
			return lteStatus{}, errs.ErrProtocolFailure
		}
		if havePrev && !snum.Less(prev, n.SN, w) {
			return lteStatus{}, errs.ErrProtocolFailure
		}
		prev = n.SN
		havePrev = true
		s.Nacks = append(s.Nacks, n)
	}
	return s, nil
}
