package snum

// Count is the 32-bit `(HFN << W) | SN` value used as both the PDCP crypto
// nonce and in-order delivery key (spec.md §3 Count, GLOSSARY).
type Count uint32

// MakeCount composes a Count from an HFN and SN under width w.
func MakeCount(hfn, sn uint32, w Width) Count {
	return Count((hfn << uint(w)) | w.Normalize(sn))
}

// HFN extracts the hyper-frame-number portion of a Count.
func (c Count) HFN(w Width) uint32 { return uint32(c) >> uint(w) }

// SN extracts the sequence-number portion of a Count.
func (c Count) SN(w Width) uint32 { return w.Normalize(uint32(c)) }

// EstimateHFN reconstructs the HFN of a received SN so that the resulting
// Count lies within the modular window [refCount - M, refCount + M), per
// spec.md §4.G "Count reconstruction on receive". This is the receive-side
// analog of srsRAN's pdcp_entity_lte::is_sn_larger / NR HFN estimation.
func EstimateHFN(rxSN uint32, refCount Count, w Width) uint32 {
	refHFN := refCount.HFN(w)
	refSN := refCount.SN(w)
	m := w.WindowSize()

	switch {
	case int64(rxSN)-int64(refSN) > int64(m):
		// rxSN wrapped below the window: attribute to the previous HFN.
		if refHFN == 0 {
			return 0
		}
		return refHFN - 1
	case int64(refSN)-int64(rxSN) > int64(m):
		return refHFN + 1
	default:
		return refHFN
	}
}
