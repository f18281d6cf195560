package rlcam

import (
	"sort"

	"github.com/ranl2/l2core/buffer"
	"github.com/ranl2/l2core/l2iface"
	"github.com/ranl2/l2core/metrics"
	"github.com/ranl2/l2core/rlog"
	"github.com/ranl2/l2core/snum"
	"github.com/ranl2/l2core/ticker"
)

// RxConfig bundles the receiver's tunable knobs, the rx-facing subset of
// the bearer configuration tuple (spec.md §3).
type RxConfig struct {
	Flavor               Flavor
	SNLen                snum.Width
	TReassemblyTicks     uint64
	TStatusProhibitTicks uint64
}

// nackItem is a flavor-neutral NACK record: one or more (via run, NR
// range-compression) fully missing SNs, or a single SN with a partial
// byte-range gap.
type nackItem struct {
	sn         uint32
	hasSO      bool
	start, end uint32 // end exclusive; valid only when hasSO
	run        uint32 // contiguous fully-missing SNs starting at sn
}

// Rx is the RLC-AM receiver half of one bearer (spec.md §4.F).
//
// An LTE PDU's Length Indicators describe how its reassembled byte range
// splits into multiple SDUs; they're recorded against the rx window entry
// as they arrive and applied at delivery time, after reassembly (which
// still proceeds over the combined byte range exactly as a single-SDU PDU
// would). A resegmented retransmission of a concatenated PDU may arrive
// without its LIs (Tx only ever re-sends them attached to a whole-payload
// retransmission); the resulting delivery falls back to handing up the
// full combined range as one SDU rather than guessing at sub-boundaries.
//
// A partially-received SN with more than one missing sub-range is NACKed
// with only its first gap's so_start/so_end, rather than one NACK per
// gap: the wire formats' NACK chains require strictly increasing SNs, so
// representing every gap of one SN would need a wire extension this
// module's target specs don't define. Bit-exact fidelity to every
// optional field is out of scope.
type Rx struct {
	cfg RxConfig

	pool  *buffer.Pool
	wheel *ticker.Wheel
	upper l2iface.UpperLayer
	lcid  l2iface.LCID
	log   *rlog.Logger
	met   *metrics.BearerMetrics

	rxNext              uint32
	rxHighestStatus     uint32
	rxNextHighest       uint32
	rxNextStatusTrigger uint32
	window              map[uint32]*rxWindowEntry

	reassemblyHandle ticker.Handle
	reassemblyArmed  bool

	statusPending        bool
	statusProhibited     bool
	statusProhibitHandle ticker.Handle

	lastLatencyTicks uint64
}

// NewRx constructs an idle Rx bound to lcid.
func NewRx(cfg RxConfig, pool *buffer.Pool, wheel *ticker.Wheel, upper l2iface.UpperLayer, lcid l2iface.LCID, log *rlog.Logger, met *metrics.BearerMetrics) *Rx {
	return &Rx{
		cfg:    cfg,
		pool:   pool,
		wheel:  wheel,
		upper:  upper,
		lcid:   lcid,
		log:    log,
		met:    met,
		window: make(map[uint32]*rxWindowEntry),
	}
}

// WritePDU parses one received AMD PDU, deposits its bytes into the rx
// window, and delivers any SDUs that become in-order complete.
func (r *Rx) WritePDU(raw []byte) error {
	switch r.cfg.Flavor {
	case FlavorLTE:
		h, n, err := decodeLTEDataHeader(raw)
		if err != nil {
			return err
		}
		start := uint32(0)
		if h.RF {
			start = h.SO
		}
		isLast := h.FI == FIWhole || h.FI == FILast
		return r.handleSegment(h.SN, start, raw[n:], isLast, h.P, h.LIs)
	default:
		h, n, err := decodeNRDataHeader(raw, r.cfg.SNLen)
		if err != nil {
			return err
		}
		start := uint32(0)
		if h.SI == SILast || h.SI == SIMiddle {
			start = h.SO
		}
		isLast := h.SI == SIWhole || h.SI == SILast
		return r.handleSegment(h.SN, start, raw[n:], isLast, h.P, nil)
	}
}

func (r *Rx) handleSegment(sn, start uint32, payload []byte, isLast, polled bool, lis []uint16) error {
	w := r.cfg.SNLen
	if polled {
		defer r.onPollReceived()
	}
	if !snum.InWindow(sn, r.rxNext, w.WindowSize(), w) {
		return nil
	}

	entry := r.window[sn]
	if entry != nil && entry.complete {
		return nil // duplicate of an already-reassembled, not-yet-delivered SN
	}
	if entry == nil {
		entry = &rxWindowEntry{sn: sn, firstSeenTick: r.wheel.Now()}
		r.window[sn] = entry
	}
	if len(lis) > 0 {
		entry.lis = lis
	}

	end := start + uint32(len(payload))
	if segmentAlreadyCovered(entry.segments, byteRange{Start: start, End: end}) {
		return nil
	}
	if isLast {
		entry.haveLast = true
		entry.sduLen = end
	}
	entry.segments = append(entry.segments, rxSegment{r: byteRange{Start: start, End: end}, data: append([]byte(nil), payload...)})

	if entry.haveLast && coversWhole(entry.segments, entry.sduLen) {
		buf, err := r.pool.Get()
		if err != nil {
			r.log.Err().Err(err).Uint64("lcid", uint64(r.lcid)).Log("rlcam rx: buffer pool exhausted")
			r.met.LostSDU()
			return err
		}
		dst := buf.Append(int(entry.sduLen))
		for _, seg := range entry.segments {
			copy(dst[seg.r.Start:seg.r.End], seg.data)
		}
		entry.reassembled = buf
		entry.complete = true
		r.lastLatencyTicks = r.wheel.Now() - entry.firstSeenTick
		r.met.ObserveReassemblyLatency(r.lastLatencyTicks)
	}

	r.met.RxPDU(len(payload))
	r.updateHighest(sn)
	r.deliverInOrder()
	r.checkReassemblyTimer()
	r.updateBufferedBytesMetric()
	return nil
}

// onPollReceived implements the peer's obligation to report status upon
// receiving a polled PDU (spec.md §4.F "poll handling"): everything
// confirmed so far (up to RX_NEXT_HIGHEST, which updateHighest has already
// folded this PDU's SN into) becomes reportable, regardless of whether
// t_reassembly has fired.
func (r *Rx) onPollReceived() {
	if snum.Sub(r.rxNextHighest, r.rxHighestStatus, r.cfg.SNLen) > 0 {
		r.rxHighestStatus = r.rxNextHighest
	}
	r.statusPending = true
}

func segmentAlreadyCovered(segments []rxSegment, rng byteRange) bool {
	for _, s := range segments {
		if rng.Start >= s.r.Start && rng.End <= s.r.End {
			return true
		}
	}
	return false
}

// coversWhole reports whether segments' union covers [0, total) exactly,
// with no gaps.
func coversWhole(segments []rxSegment, total uint32) bool {
	_, _, hasGap := firstGap(segments, total, true)
	return !hasGap
}

// firstGap returns the first uncovered sub-range of [0, total), or
// ok=false if segments fully cover it (or haveLast is false, meaning the
// total length itself is unknown).
func firstGap(segments []rxSegment, total uint32, haveLast bool) (start, end uint32, ok bool) {
	if !haveLast {
		return 0, 0, false
	}
	sorted := append([]rxSegment(nil), segments...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].r.Start < sorted[j].r.Start })
	var covered uint32
	for _, s := range sorted {
		if s.r.Start > covered {
			return covered, s.r.Start, true
		}
		if s.r.End > covered {
			covered = s.r.End
		}
	}
	if covered < total {
		return covered, total, true
	}
	return 0, 0, false
}

func (r *Rx) deliverInOrder() {
	for {
		e, ok := r.window[r.rxNext]
		if !ok || !e.complete {
			break
		}
		r.deliverEntry(e)
		delete(r.window, r.rxNext)
		r.rxNext = snum.Add(r.rxNext, 1, r.cfg.SNLen)
	}
}

// deliverEntry hands e's reassembled byte range up to the upper layer,
// splitting it into its constituent SDUs first if its LIs (TS 36.322
// §6.2.1.2) are known.
func (r *Rx) deliverEntry(e *rxWindowEntry) {
	if len(e.lis) == 0 {
		r.upper.WritePDU(r.lcid, e.reassembled)
		return
	}
	raw := e.reassembled.Bytes()
	var offset int
	for _, li := range e.lis {
		end := offset + int(li)
		if end > len(raw) {
			break
		}
		r.deliverSlice(raw[offset:end])
		offset = end
	}
	r.deliverSlice(raw[offset:])
	r.pool.Put(e.reassembled)
}

func (r *Rx) deliverSlice(data []byte) {
	buf, err := r.pool.Get()
	if err != nil {
		r.log.Err().Err(err).Uint64("lcid", uint64(r.lcid)).Log("rlcam rx: buffer pool exhausted splitting concatenated PDU")
		r.met.LostSDU()
		return
	}
	copy(buf.Append(len(data)), data)
	r.upper.WritePDU(r.lcid, buf)
}

func (r *Rx) updateHighest(sn uint32) {
	w := r.cfg.SNLen
	candidate := snum.Add(sn, 1, w)
	if snum.Sub(candidate, r.rxNext, w) > snum.Sub(r.rxNextHighest, r.rxNext, w) {
		r.rxNextHighest = candidate
	}
}

func (r *Rx) checkReassemblyTimer() {
	if r.reassemblyArmed {
		return
	}
	if snum.Sub(r.rxNextHighest, r.rxNext, r.cfg.SNLen) == 0 {
		return
	}
	limit := snum.Sub(r.rxNextHighest, 1, r.cfg.SNLen)
	if r.hasHoleInRange(r.rxNext, limit) {
		r.armReassembly()
		r.rxNextStatusTrigger = r.rxNextHighest
	}
}

// hasHoleInRange reports whether any SN in [from, to] (inclusive,
// modular) is not a complete rx-window entry.
func (r *Rx) hasHoleInRange(from, to uint32) bool {
	w := r.cfg.SNLen
	span := snum.Sub(to, from, w)
	sn := from
	for i := uint32(0); i <= span; i++ {
		if e, ok := r.window[sn]; !ok || !e.complete {
			return true
		}
		sn = snum.Add(sn, 1, w)
	}
	return false
}

func (r *Rx) armReassembly() {
	r.reassemblyHandle = r.wheel.Create(r.cfg.TReassemblyTicks, r.onReassemblyExpiry)
	r.reassemblyArmed = true
}

func (r *Rx) onReassemblyExpiry() {
	r.reassemblyArmed = false
	w := r.cfg.SNLen

	sn := r.rxNextStatusTrigger
	r.rxHighestStatus = r.rxNextStatusTrigger
	for i := uint32(0); i <= w.WindowSize(); i++ {
		if e, ok := r.window[sn]; !ok || !e.complete {
			r.rxHighestStatus = sn
			break
		}
		sn = snum.Add(sn, 1, w)
	}

	if snum.Sub(r.rxNextHighest, r.rxHighestStatus, w) > 1 {
		r.armReassembly()
		r.rxNextStatusTrigger = r.rxNextHighest
	}
	r.statusPending = true
}

// buildNackList enumerates NACK-worthy SNs in [RX_NEXT, RX_HIGHEST_STATUS)
// (spec.md §4.F "Status report generation").
func (r *Rx) buildNackList() []nackItem {
	w := r.cfg.SNLen
	var out []nackItem
	sn := r.rxNext
	for sn != r.rxHighestStatus {
		e, ok := r.window[sn]
		switch {
		case !ok:
			if r.cfg.Flavor == FlavorNR && len(out) > 0 {
				last := &out[len(out)-1]
				if !last.hasSO && last.run < 255 && snum.Add(last.sn, last.run, w) == sn {
					last.run++
					sn = snum.Add(sn, 1, w)
					continue
				}
			}
			out = append(out, nackItem{sn: sn, run: 1})
		case !e.complete:
			if gs, ge, hasGap := firstGap(e.segments, e.sduLen, e.haveLast); hasGap {
				out = append(out, nackItem{sn: sn, hasSO: true, start: gs, end: ge, run: 1})
			} else {
				out = append(out, nackItem{sn: sn, run: 1})
			}
		}
		sn = snum.Add(sn, 1, w)
	}
	return out
}

func (r *Rx) encodeStatus(ackSN uint32, items []nackItem) []byte {
	switch r.cfg.Flavor {
	case FlavorLTE:
		var s lteStatus
		s.ACKSN = ackSN
		for _, it := range items {
			for k := uint32(0); k < it.run; k++ {
				n := lteNack{SN: snum.Add(it.sn, k, r.cfg.SNLen)}
				if it.hasSO && k == 0 {
					n.HasSO = true
					n.SOStart = it.start
					n.SOEnd = it.end - 1
				}
				s.Nacks = append(s.Nacks, n)
			}
		}
		return encodeLTEStatus(s)
	default:
		var s nrStatus
		s.ACKSN = ackSN
		for _, it := range items {
			n := nrNack{SN: it.sn}
			switch {
			case it.hasSO:
				n.HasSO = true
				n.SOStart = it.start
				n.SOEnd = it.end - 1
			case it.run > 1:
				n.HasRange = true
				n.Range = uint8(it.run)
			}
			s.Nacks = append(s.Nacks, n)
		}
		return encodeNRStatus(s, r.cfg.SNLen)
	}
}

// PendingStatus reports a pending status report's wire bytes, trimming
// NACKs from the tail (and lowering ACK_SN to match) until it fits grant
// (spec.md §4.F). ok is false if nothing is pending, a status prohibit
// timer is running, or even an empty status report cannot fit grant.
func (r *Rx) PendingStatus(grant uint32) ([]byte, bool) {
	if !r.statusPending || r.statusProhibited {
		return nil, false
	}
	items := r.buildNackList()
	ack := r.rxHighestStatus
	for {
		wire := r.encodeStatus(ack, items)
		if uint32(len(wire)) <= grant {
			return wire, true
		}
		if len(items) == 0 {
			return nil, false
		}
		items = items[:len(items)-1]
		if len(items) == 0 {
			ack = r.rxNext
		} else {
			last := items[len(items)-1]
			ack = snum.Add(last.sn, last.run, r.cfg.SNLen)
		}
	}
}

// StatusSent acknowledges that a status report built from PendingStatus
// was actually transmitted, clearing the pending flag and arming
// t_status_prohibit.
func (r *Rx) StatusSent() {
	r.statusPending = false
	if r.cfg.TStatusProhibitTicks == 0 {
		return
	}
	r.statusProhibited = true
	r.statusProhibitHandle = r.wheel.Create(r.cfg.TStatusProhibitTicks, func() {
		r.statusProhibited = false
	})
}

// GetRxBufferedBytes reports bytes currently held in the reassembly
// buffer across all incomplete SNs.
func (r *Rx) GetRxBufferedBytes() int {
	var n int
	for _, e := range r.window {
		if e.complete {
			continue
		}
		for _, seg := range e.segments {
			n += len(seg.data)
		}
	}
	return n
}

// GetSDURxLatencyTicks reports the tick span between first-segment
// arrival and reassembly completion for the most recently completed SDU.
func (r *Rx) GetSDURxLatencyTicks() uint64 { return r.lastLatencyTicks }

func (r *Rx) updateBufferedBytesMetric() {
	r.met.SetRxBufferedBytes(r.GetRxBufferedBytes())
}

// Reestablish resets all receiver state for a fresh RRC configuration.
func (r *Rx) Reestablish() {
	r.rxNext = 0
	r.rxHighestStatus = 0
	r.rxNextHighest = 0
	r.rxNextStatusTrigger = 0
	r.window = make(map[uint32]*rxWindowEntry)
	if r.reassemblyArmed {
		r.wheel.Cancel(r.reassemblyHandle)
		r.reassemblyArmed = false
	}
	if r.statusProhibited {
		r.wheel.Cancel(r.statusProhibitHandle)
		r.statusProhibited = false
	}
	r.statusPending = false
}

// Close tears down the receiver permanently.
func (r *Rx) Close() {
	if r.reassemblyArmed {
		r.wheel.Cancel(r.reassemblyHandle)
		r.reassemblyArmed = false
	}
	if r.statusProhibited {
		r.wheel.Cancel(r.statusProhibitHandle)
		r.statusProhibited = false
	}
}
