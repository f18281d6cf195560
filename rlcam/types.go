package rlcam

import "github.com/ranl2/l2core/buffer"

// Flavor selects which 3GPP RLC-AM wire format an entity speaks.
type Flavor uint8

const (
	// FlavorLTE speaks the TS 36.322 v10 format: LI-based concatenation,
	// framing-info (FI) based segmentation, 10-bit SN.
	FlavorLTE Flavor = iota
	// FlavorNR speaks the TS 38.322 v15 format: one SDU/segment per PDU,
	// segmentation-indicator (SI) plus explicit SO offsets, 12- or
	// 18-bit SN.
	FlavorNR
)

// byteRange is an inclusive-exclusive byte span [Start, End) within an
// SDU's payload.
type byteRange struct {
	Start, End uint32
}

func (r byteRange) len() uint32 { return r.End - r.Start }

// sduItem is one SDU sitting in the transmitter's SDU queue or already
// assigned a transmitter SN.
type sduItem struct {
	pdcpSN   uint32
	hasSN    bool
	payload  *buffer.Buffer
	sent     uint32 // bytes of payload already placed into some PDU
	refs     uint32 // live window entries (SNs) still covering some range of payload
	released bool   // payload already returned to the pool
}

func (s *sduItem) remaining() uint32 { return uint32(s.payload.Len()) - s.sent }

// txWindowPart is one SDU's byte range folded into a single transmitted
// AMD PDU via LTE's LI-based concatenation (TS 36.322 §6.2.1.2). An NR
// entry's parts always has length 1: TS 38.322 never concatenates.
type txWindowPart struct {
	item       *sduItem
	start, end uint32 // byte range of item.payload carried by this SN
}

// txWindowEntry tracks one transmitted, not-yet-acked AMD PDU: the ordered
// SDU byte ranges concatenated into it, and the LI list that was actually
// sent with it (nil for single-SDU PDUs), so the retransmission queue can
// resegment the combined payload with a fresh SO range.
type txWindowEntry struct {
	sn        uint32
	parts     []txWindowPart
	lis       []uint16
	retxCount uint32
}

// totalLen reports the combined byte length of every part folded into this
// PDU, the byte space status-report SO ranges are relative to.
func (e *txWindowEntry) totalLen() uint32 {
	var n uint32
	for _, p := range e.parts {
		n += p.end - p.start
	}
	return n
}

// combinedBytes returns the exact payload bytes this SN was transmitted
// with, concatenated in order.
func (e *txWindowEntry) combinedBytes() []byte {
	if len(e.parts) == 1 {
		p := e.parts[0]
		return p.item.payload.Bytes()[p.start:p.end]
	}
	out := make([]byte, 0, e.totalLen())
	for _, p := range e.parts {
		out = append(out, p.item.payload.Bytes()[p.start:p.end]...)
	}
	return out
}

// retxQueueEntry is one outstanding byte range awaiting retransmission,
// keyed by the SN it was originally assigned under.
type retxQueueEntry struct {
	sn uint32
	r  byteRange
}

// rxSegment is one received byte range of a not-yet-complete rx SDU.
type rxSegment struct {
	r    byteRange
	data []byte
}

// rxWindowEntry tracks the byte ranges received so far for one rx SN.
type rxWindowEntry struct {
	sn            uint32
	segments      []rxSegment
	sduLen        uint32 // total SDU length, known once the "last" segment arrives
	haveLast      bool
	complete      bool
	reassembled   *buffer.Buffer
	firstSeenTick uint64   // wheel tick of the first segment, for reassembly-latency metrics
	lis           []uint16 // LI list carried by whichever segment's header reported concatenation
}
