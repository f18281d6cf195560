package pdcp

import (
	"github.com/ranl2/l2core/errs"
	"github.com/ranl2/l2core/snum"
)

// headerLen returns the byte length of a PDCP data-PDU header for w, per
// spec.md §4.G's header table. Every supported width is byte-aligned, so
// no bit-level packer is needed here (unlike rlcam's RLC headers).
func headerLen(w snum.Width) int {
	switch w {
	case snum.Width5, snum.Width7:
		return 1
	case snum.Width12:
		return 2
	case snum.Width18:
		return 3
	default:
		return 0
	}
}

// packHeaderLTE packs an LTE PDCP data-PDU header (TS 36.323 §6.2.2/6.2.3):
// 5-bit (SRB, D/C=0 fixed), 7-bit (DRB, D=1 fixed), or 12-bit (either, with
// the D/C discriminator at bit 15 of the 2-byte header).
func packHeaderLTE(w snum.Width, rb RBType, sn uint32) ([]byte, error) {
	switch w {
	case snum.Width5:
		return []byte{byte(sn & 0x1F)}, nil
	case snum.Width7:
		return []byte{0x80 | byte(sn&0x7F)}, nil
	case snum.Width12:
		var d byte
		if rb == RBData {
			d = 0x80
		}
		return []byte{d | byte((sn>>8)&0x0F), byte(sn & 0xFF)}, nil
	default:
		return nil, errs.ErrConfigError
	}
}

// parseHeaderLTE parses an LTE PDCP data-PDU header, returning the SN and
// the header's byte length.
func parseHeaderLTE(w snum.Width, buf []byte) (sn uint32, n int, err error) {
	n = headerLen(w)
	if n == 0 || len(buf) < n {
		return 0, 0, errs.ErrParseError
	}
	switch w {
	case snum.Width5:
		sn = uint32(buf[0] & 0x1F)
	case snum.Width7:
		if buf[0]&0x80 == 0 {
			return 0, 0, errs.ErrParseError
		}
		sn = uint32(buf[0] & 0x7F)
	case snum.Width12:
		sn = uint32(buf[0]&0x0F)<<8 | uint32(buf[1])
	default:
		return 0, 0, errs.ErrParseError
	}
	return sn, n, nil
}

// packHeaderNR packs an NR PDCP data-PDU header (TS 38.323 §6.2.2): 12-bit
// or 18-bit SN, with the D/C discriminator folded into the reserved high
// bits (always 0 for data PDUs; control PDUs, used only for NR PDCP
// status reports, are not modeled here since spec.md's NR scope is
// data-plane SDU delivery).
func packHeaderNR(w snum.Width, sn uint32) ([]byte, error) {
	switch w {
	case snum.Width12:
		return []byte{byte((sn >> 8) & 0x0F), byte(sn & 0xFF)}, nil
	case snum.Width18:
		return []byte{byte((sn >> 16) & 0x03), byte((sn >> 8) & 0xFF), byte(sn & 0xFF)}, nil
	default:
		return nil, errs.ErrConfigError
	}
}

// parseHeaderNR parses an NR PDCP data-PDU header.
func parseHeaderNR(w snum.Width, buf []byte) (sn uint32, n int, err error) {
	n = headerLen(w)
	if n == 0 || len(buf) < n {
		return 0, 0, errs.ErrParseError
	}
	switch w {
	case snum.Width12:
		sn = uint32(buf[0]&0x0F)<<8 | uint32(buf[1])
	case snum.Width18:
		sn = uint32(buf[0]&0x03)<<16 | uint32(buf[1])<<8 | uint32(buf[2])
	default:
		return 0, 0, errs.ErrParseError
	}
	return sn, n, nil
}

// maxHFN returns the largest representable HFN for a COUNT built from an
// SN of width w (COUNT is 32 bits total).
func maxHFN(w snum.Width) uint32 {
	shift := uint(32) - uint(w)
	if shift >= 32 {
		return 0
	}
	return (uint32(1) << shift) - 1
}
