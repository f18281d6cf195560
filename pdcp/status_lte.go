package pdcp

import (
	"github.com/ranl2/l2core/errs"
	"github.com/ranl2/l2core/snum"
)

// lteStatusMarker is a leading byte identifying an LTE PDCP status-report
// control PDU on the wire, disambiguating it from a data PDU's header
// regardless of sn_len (TS 36.323 §6.2.5 reserves D/C=0 plus a PDU-type
// field for this; this module folds both into one fixed marker byte,
// since bit-exact status-PDU framing is out of scope, spec.md §1
// Non-goals).
const lteStatusMarker = 0xFF

// encodeLTEStatusReport packs the first-missing-SN and a bitmap of
// subsequently received SNs (bit i == SN fms+i+1, MSB-first) into an LTE
// PDCP status-report PDU.
func encodeLTEStatusReport(w snum.Width, fms uint32, bitmap []bool) []byte {
	fmsBytes, _ := packHeaderLTE(w, RBData, fms)
	buf := make([]byte, 0, 1+len(fmsBytes)+(len(bitmap)+7)/8)
	buf = append(buf, lteStatusMarker)
	buf = append(buf, fmsBytes...)

	var cur byte
	bits := 0
	for _, b := range bitmap {
		cur <<= 1
		if b {
			cur |= 1
		}
		bits++
		if bits == 8 {
			buf = append(buf, cur)
			cur, bits = 0, 0
		}
	}
	if bits > 0 {
		cur <<= uint(8 - bits)
		buf = append(buf, cur)
	}
	return buf
}

// decodeLTEStatusReport is encodeLTEStatusReport's inverse.
func decodeLTEStatusReport(w snum.Width, buf []byte) (fms uint32, bitmap []bool, err error) {
	if len(buf) < 1 || buf[0] != lteStatusMarker {
		return 0, nil, errs.ErrParseError
	}
	buf = buf[1:]
	sn, n, err := parseHeaderLTE(w, buf)
	if err != nil {
		return 0, nil, err
	}
	buf = buf[n:]
	bitmap = make([]bool, 0, len(buf)*8)
	for _, b := range buf {
		for i := 7; i >= 0; i-- {
			bitmap = append(bitmap, b&(1<<uint(i)) != 0)
		}
	}
	return sn, bitmap, nil
}
