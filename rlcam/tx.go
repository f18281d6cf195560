package rlcam

import (
	"sync"

	"github.com/ranl2/l2core/buffer"
	"github.com/ranl2/l2core/errs"
	"github.com/ranl2/l2core/l2iface"
	"github.com/ranl2/l2core/metrics"
	"github.com/ranl2/l2core/rlog"
	"github.com/ranl2/l2core/snum"
	"github.com/ranl2/l2core/ticker"
)

// BufferState answers get_buffer_state (spec.md §4.E): the byte budget a
// MAC scheduler should grant to fully drain the transmitter.
type BufferState struct {
	NewTxBytes uint32
	PrioBytes  uint32
}

// TxConfig bundles the transmitter's tunable knobs, the tx-facing subset
// of the bearer configuration tuple (spec.md §3).
type TxConfig struct {
	Flavor           Flavor
	SNLen            snum.Width
	PollPDU          uint32
	PollByte         uint32
	MaxRetxThreshold uint32
	TPollRetxTicks   uint64
	QueueCapacity    uint32
}

// StatusSource lets a Tx ask its paired Rx for a pending status report
// and tell it one was actually sent, so t_status_prohibit can restart
// (spec.md §4.F "Pacing"). The paired *Rx implements this.
type StatusSource interface {
	PendingStatus(grant uint32) ([]byte, bool)
	StatusSent()
}

// Tx is the RLC-AM transmitter half of one bearer (spec.md §4.E).
//
// A sequence number is assigned once, at first transmission of a
// contiguous byte range of an SDU; retransmission always reuses that same
// SN and may re-split the range further via SO, but never consumes a new
// one. SO is carried relative to the SDU's absolute byte offset rather
// than the 3GPP-defined "offset within the originally transmitted PDU":
// bit-exact fidelity to that nuance is out of scope (spec.md §1
// Non-goals), and an SDU-relative offset is simpler to reason about while
// producing an equally well-formed, decodable PDU stream.
type Tx struct {
	cfg TxConfig

	pool   *buffer.Pool
	wheel  *ticker.Wheel
	status StatusSource
	upper  l2iface.UpperLayer
	lcid   l2iface.LCID
	log    *rlog.Logger
	met    *metrics.BearerMetrics

	sduMu    sync.Mutex
	sduQueue []*sduItem
	sduBytes uint32

	txNext    uint32
	txNextAck uint32
	window    map[uint32]*txWindowEntry

	retxQueue []retxQueueEntry

	pduWithoutPoll  uint32
	byteWithoutPoll uint32
	pollSN          uint32
	pollSNValid     bool
	pollRetxHandle  ticker.Handle
	pollRetxArmed   bool

	quiescent bool

	deliveryCallback func(pdcpSN uint32, delivered bool)
}

// SetDeliveryCallback registers a callback invoked as an SN leaves the tx
// window, once for each SDU (or SDU segment) that SN carries:
// delivered=true when the peer ACKed the SN, false when
// max_retx_threshold was exceeded for it. PDCP's LTEEntity uses this to
// cancel discard timers and advance FMS (spec.md §4.G "RLC -> PDCP
// notifications"); callers that don't layer PDCP over this bearer (e.g.
// the rlcam-only test harness) simply never set one.
func (t *Tx) SetDeliveryCallback(cb func(pdcpSN uint32, delivered bool)) {
	t.deliveryCallback = cb
}

// NewTx constructs an idle Tx bound to lcid.
func NewTx(cfg TxConfig, pool *buffer.Pool, wheel *ticker.Wheel, status StatusSource, upper l2iface.UpperLayer, lcid l2iface.LCID, log *rlog.Logger, met *metrics.BearerMetrics) *Tx {
	if cfg.QueueCapacity == 0 {
		cfg.QueueCapacity = 256
	}
	return &Tx{
		cfg:    cfg,
		pool:   pool,
		wheel:  wheel,
		status: status,
		upper:  upper,
		lcid:   lcid,
		log:    log,
		met:    met,
		window: make(map[uint32]*txWindowEntry),
	}
}

// WriteSDU enqueues payload for transmission, associated with pdcpSN for
// later DiscardSDU lookups.
func (t *Tx) WriteSDU(payload *buffer.Buffer, pdcpSN uint32) error {
	t.sduMu.Lock()
	defer t.sduMu.Unlock()
	if uint32(len(t.sduQueue)) >= t.cfg.QueueCapacity {
		t.met.TxError()
		return errs.ErrQueueFull
	}
	t.sduQueue = append(t.sduQueue, &sduItem{pdcpSN: pdcpSN, hasSN: true, payload: payload})
	t.sduBytes += uint32(payload.Len())
	return nil
}

// DiscardSDU removes a queued SDU matching pdcpSN, if and only if it has
// not yet begun transmission. It reports whether anything was removed.
func (t *Tx) DiscardSDU(pdcpSN uint32) bool {
	t.sduMu.Lock()
	defer t.sduMu.Unlock()
	for i, item := range t.sduQueue {
		if item.hasSN && item.pdcpSN == pdcpSN && item.sent == 0 {
			t.sduBytes -= uint32(item.payload.Len())
			t.sduQueue = append(t.sduQueue[:i], t.sduQueue[i+1:]...)
			t.releaseItem(item)
			return true
		}
	}
	return false
}

// releaseItem returns item's payload buffer to the pool exactly once, once
// nothing (queue or window) still needs it.
func (t *Tx) releaseItem(item *sduItem) {
	if item.released {
		return
	}
	item.released = true
	t.pool.Put(item.payload)
}

// derefItem drops one window entry's reference to item, releasing its
// payload once every assigned SN has been acked and no unsent remainder is
// still queued.
func (t *Tx) derefItem(item *sduItem) {
	if item.refs > 0 {
		item.refs--
	}
	if item.refs == 0 && item.sent == uint32(item.payload.Len()) {
		t.releaseItem(item)
	}
}

func (t *Tx) sduQueueEmpty() bool {
	t.sduMu.Lock()
	defer t.sduMu.Unlock()
	return len(t.sduQueue) == 0
}

// HasData reports whether anything is queued to send.
func (t *Tx) HasData() bool {
	bs := t.GetBufferState()
	return bs.NewTxBytes > 0 || bs.PrioBytes > 0
}

// GetBufferState reports the byte budget needed to drain the transmitter.
func (t *Tx) GetBufferState() BufferState {
	t.sduMu.Lock()
	newtx := t.sduBytes
	t.sduMu.Unlock()

	var prio uint32
	if raw, ok := t.status.PendingStatus(^uint32(0)); ok {
		prio += uint32(len(raw))
	}
	for _, e := range t.retxQueue {
		prio += e.r.len()
	}
	if len(t.retxQueue) == 0 && t.windowFull() {
		if e, ok := t.window[t.txNextAck]; ok && len(e.parts) > 0 {
			prio += e.totalLen()
		}
	}
	return BufferState{NewTxBytes: newtx, PrioBytes: prio}
}

func (t *Tx) windowFull() bool {
	return snum.Sub(t.txNext, t.txNextAck, t.cfg.SNLen) == t.cfg.SNLen.WindowSize()
}

// ReadPDU builds one PDU no larger than grant bytes, or returns nil if
// there is nothing to send (or nothing fits). Precedence: pending status,
// then the retx queue head, then new transmission (spec.md §4.E).
func (t *Tx) ReadPDU(grant uint32) *buffer.Buffer {
	if t.quiescent || grant == 0 {
		return nil
	}

	if raw, ok := t.status.PendingStatus(grant); ok {
		t.status.StatusSent()
		return t.assemble(raw, nil)
	}

	if len(t.retxQueue) == 0 && t.windowFull() {
		if e, ok := t.window[t.txNextAck]; ok && len(e.parts) > 0 {
			t.retxQueue = append(t.retxQueue, retxQueueEntry{sn: e.sn, r: byteRange{Start: 0, End: e.totalLen()}})
		}
	}

	if len(t.retxQueue) > 0 {
		return t.buildRetxPDU(grant)
	}
	return t.buildNewTxPDU(grant)
}

func (t *Tx) buildRetxPDU(grant uint32) *buffer.Buffer {
	rq := t.retxQueue[0]
	entry, ok := t.window[rq.sn]
	if !ok {
		// Acked since being queued; drop and try whatever's next.
		t.retxQueue = t.retxQueue[1:]
		if len(t.retxQueue) > 0 {
			return t.buildRetxPDU(grant)
		}
		return t.buildNewTxPDU(grant)
	}

	total := entry.totalLen()
	class, usedEnd, _, ok2 := t.fitSegment(rq.r.Start, rq.r.End, total, grant)
	if !ok2 {
		return nil
	}

	t.retxQueue = t.retxQueue[1:]
	if usedEnd < rq.r.End {
		remainder := retxQueueEntry{sn: rq.sn, r: byteRange{Start: usedEnd, End: rq.r.End}}
		t.retxQueue = append([]retxQueueEntry{remainder}, t.retxQueue...)
	}

	// A concatenated PDU's Length Indicators are only reusable when the
	// whole combined payload is resent in one go: a resegmented subrange no
	// longer lines up with the original SDU boundaries (existing SO-only
	// fidelity tradeoff, spec.md §1 Non-goals).
	var lis []uint16
	if rq.r.Start == 0 && usedEnd == total {
		lis = entry.lis
	}

	payload := entry.combinedBytes()[rq.r.Start:usedEnd]
	poll := t.decidePoll()
	header := t.encodeDataHeader(class, rq.sn, rq.r.Start, poll, lis)
	buf := t.assemble(header, payload)
	t.afterSend(rq.sn, uint32(len(payload)), poll)
	return buf
}

// buildNewTxPDU assigns a fresh SN to as much of the head of the SDU queue
// as fits under grant. On LTE it keeps folding subsequent queued SDUs into
// the same PDU via Length Indicators (TS 36.322 §6.2.1.2) for as long as
// each one is fully consumed and bytes remain; NR never concatenates and
// always stops after the first item (TS 38.322 §6.2.1).
func (t *Tx) buildNewTxPDU(grant uint32) *buffer.Buffer {
	if t.windowFull() {
		return nil
	}

	t.sduMu.Lock()
	if len(t.sduQueue) == 0 {
		t.sduMu.Unlock()
		return nil
	}
	queue := append([]*sduItem(nil), t.sduQueue...)
	t.sduMu.Unlock()

	hasSO := queue[0].sent > 0

	var (
		parts       []txWindowPart
		lis         []uint16
		payload     []byte
		pendingLI   uint16
		havePending bool
	)

	for _, item := range queue {
		total := uint32(item.payload.Len())
		start := item.sent

		numLIs := len(lis)
		if havePending {
			numLIs++
		}
		hlen := t.headerCost(hasSO, numLIs)
		used := uint32(len(payload))
		if used+hlen >= grant {
			break
		}
		room := grant - hlen - used
		usedEnd := total
		full := true
		if total-start > room {
			usedEnd = start + room
			full = false
		}
		if usedEnd <= start {
			break
		}

		// item fits: any LI reserved for the previous item is now real,
		// since that item is no longer the PDU's last part.
		if havePending {
			lis = append(lis, pendingLI)
			havePending = false
		}
		payload = append(payload, item.payload.Bytes()[start:usedEnd]...)
		parts = append(parts, txWindowPart{item: item, start: start, end: usedEnd})

		if !full || t.cfg.Flavor != FlavorLTE || len(parts) == len(queue) {
			break
		}
		pendingLI, havePending = uint16(usedEnd-start), true
	}
	if len(parts) == 0 {
		return nil
	}

	// FI/SI classification is a property of the PDU as a whole: whether its
	// first byte opens an SDU and whether its last byte closes one, not of
	// any individual folded-in part.
	firstPart, lastPart := parts[0], parts[len(parts)-1]
	isFirst := firstPart.start == 0
	isLast := lastPart.end == uint32(lastPart.item.payload.Len())
	var class uint8
	switch {
	case isFirst && isLast:
		class = FIWhole
	case isFirst && !isLast:
		class = FIFirst
	case !isFirst && isLast:
		class = FILast
	default:
		class = FIMiddle
	}

	sn := t.txNext
	t.txNext = snum.Add(t.txNext, 1, t.cfg.SNLen)
	t.window[sn] = &txWindowEntry{sn: sn, parts: parts, lis: lis}

	t.sduMu.Lock()
	consumed := 0
	for _, p := range parts {
		p.item.refs++
		p.item.sent = p.end
		t.sduBytes -= p.end - p.start
		if p.item.sent == uint32(p.item.payload.Len()) {
			consumed++
		} else {
			break
		}
	}
	t.sduQueue = t.sduQueue[consumed:]
	t.sduMu.Unlock()

	poll := t.decidePoll()
	header := t.encodeDataHeader(class, sn, parts[0].start, poll, lis)
	buf := t.assemble(header, payload)
	t.afterSend(sn, uint32(len(payload)), poll)
	return buf
}

// headerCost reports the encoded header size, in bytes, for a new data PDU
// carrying numLIs Length Indicators (always 0 on NR, which never
// concatenates).
func (t *Tx) headerCost(hasSO bool, numLIs int) uint32 {
	if t.cfg.Flavor == FlavorLTE {
		return uint32(headerBytesLTE(hasSO, numLIs))
	}
	return uint32(headerLen(t.cfg.Flavor, t.cfg.SNLen, hasSO))
}

// headerBytesLTE computes an LTE AMD PDU header's encoded length: the
// 16-bit fixed header (D/C, RF, P, FI, E, SN), plus 16 more bits if
// resegmented (LSF+SO), plus 12 bits per Length Indicator, rounded up to a
// whole byte.
func headerBytesLTE(hasSO bool, numLIs int) int {
	bits := 16
	if hasSO {
		bits += 16
	}
	bits += 12 * numLIs
	return (bits + 7) / 8
}

// fitSegment decides how much of [start,end) (out of total) fits under
// grant, returning the FI/SI classification and the end actually used.
// ok is false if not even one payload byte fits under grant.
func (t *Tx) fitSegment(start, end, total, grant uint32) (class uint8, usedEnd uint32, hlen int, ok bool) {
	isFirst := start == 0
	hlen = headerLen(t.cfg.Flavor, t.cfg.SNLen, !isFirst)
	if grant <= uint32(hlen) {
		return 0, 0, hlen, false
	}
	avail := grant - uint32(hlen)
	usedEnd = end
	if end-start > avail {
		usedEnd = start + avail
	}
	isLast := usedEnd == total
	switch {
	case isFirst && isLast:
		class = FIWhole
	case isFirst && !isLast:
		class = FIFirst
	case !isFirst && isLast:
		class = FILast
	default:
		class = FIMiddle
	}
	return class, usedEnd, hlen, true
}

func (t *Tx) encodeDataHeader(class uint8, sn, start uint32, poll bool, lis []uint16) []byte {
	switch t.cfg.Flavor {
	case FlavorLTE:
		h := lteDataHeader{P: poll, FI: class, SN: sn, LIs: lis}
		if class == FILast || class == FIMiddle {
			h.RF = true
			h.LSF = class == FILast
			h.SO = start
		}
		return encodeLTEDataHeader(h)
	default:
		h := nrDataHeader{P: poll, SI: class, SN: sn}
		if class == SILast || class == SIMiddle {
			h.SO = start
		}
		return encodeNRDataHeader(h, t.cfg.SNLen)
	}
}

// headerLen reports the encoded header size for a data PDU with or
// without an SO field, for the given flavor/width.
func headerLen(flavor Flavor, w snum.Width, hasSO bool) int {
	if flavor == FlavorLTE {
		if hasSO {
			return 4
		}
		return 2
	}
	base := 2
	if w == snum.Width18 {
		base = 3
	}
	if hasSO {
		base += 2
	}
	return base
}

func (t *Tx) assemble(header, payload []byte) *buffer.Buffer {
	buf, err := t.pool.Get()
	if err != nil {
		t.log.Err().Err(err).Uint64("lcid", uint64(t.lcid)).Log("rlcam tx: buffer pool exhausted")
		t.met.TxError()
		return nil
	}
	if len(header) > 0 {
		dst := buf.Append(len(header))
		copy(dst, header)
	}
	if len(payload) > 0 {
		dst := buf.Append(len(payload))
		copy(dst, payload)
	}
	t.met.TxPDU(buf.Len())
	return buf
}

// decidePoll implements spec.md §4.E's P-bit trigger conditions, assuming
// the in-flight PDU (not yet counted) is about to be sent.
func (t *Tx) decidePoll() bool {
	pduCount := t.pduWithoutPoll + 1
	if t.cfg.PollPDU > 0 && pduCount >= t.cfg.PollPDU {
		return true
	}
	if t.cfg.PollByte > 0 && t.byteWithoutPoll >= t.cfg.PollByte {
		return true
	}
	if t.sduQueueEmpty() {
		return true
	}
	if len(t.retxQueue) == 0 {
		return true
	}
	if t.windowFull() {
		return true
	}
	return false
}

// afterSend records bookkeeping for any transmitted data PDU: poll
// counters, POLL_SN, and t_poll_retx (re)arming.
func (t *Tx) afterSend(sn, sentBytes uint32, polled bool) {
	t.pduWithoutPoll++
	t.byteWithoutPoll += sentBytes
	if !polled {
		return
	}
	t.pduWithoutPoll = 0
	t.byteWithoutPoll = 0
	t.pollSN = sn
	t.pollSNValid = true
	t.restartPollRetxTimer()
}

func (t *Tx) restartPollRetxTimer() {
	if t.pollRetxArmed {
		t.wheel.Cancel(t.pollRetxHandle)
	}
	t.pollRetxHandle = t.wheel.Create(t.cfg.TPollRetxTicks, t.onPollRetxExpiry)
	t.pollRetxArmed = true
}

// onPollRetxExpiry is the t_poll_retx callback: if POLL_SN is still
// outstanding (or, failing that, anything is), schedule it for
// retransmission.
func (t *Tx) onPollRetxExpiry() {
	t.pollRetxArmed = false
	if t.quiescent {
		return
	}
	if t.pollSNValid {
		if e, ok := t.window[t.pollSN]; ok && len(e.parts) > 0 {
			t.retxQueue = append(t.retxQueue, retxQueueEntry{sn: e.sn, r: byteRange{Start: 0, End: e.totalLen()}})
			return
		}
	}
	sn := t.oldestOutstanding()
	if e, ok := t.window[sn]; ok && len(e.parts) > 0 {
		t.retxQueue = append(t.retxQueue, retxQueueEntry{sn: e.sn, r: byteRange{Start: 0, End: e.totalLen()}})
	}
}

func (t *Tx) oldestOutstanding() uint32 {
	sn := t.txNextAck
	for i := uint32(0); i <= t.cfg.SNLen.WindowSize(); i++ {
		if _, ok := t.window[sn]; ok {
			return sn
		}
		sn = snum.Add(sn, 1, t.cfg.SNLen)
	}
	return t.txNextAck
}

func (t *Tx) advanceTxNextAck() {
	if len(t.window) == 0 {
		t.txNextAck = t.txNext
		return
	}
	t.txNextAck = t.oldestOutstanding()
}

// HandleControlPDU parses a peer status PDU and acks/nacks the tx window
// and retx queue accordingly (spec.md §4.E).
func (t *Tx) HandleControlPDU(raw []byte) error {
	var ackSN uint32
	type nack struct {
		sn         uint32
		hasSO      bool
		start, end uint32
	}
	var nacks []nack

	switch t.cfg.Flavor {
	case FlavorLTE:
		s, err := decodeLTEStatus(raw, t.cfg.SNLen)
		if err != nil {
			return err
		}
		ackSN = s.ACKSN
		for _, n := range s.Nacks {
			nacks = append(nacks, nack{sn: n.SN, hasSO: n.HasSO, start: n.SOStart, end: n.SOEnd + 1})
		}
	default:
		s, err := decodeNRStatus(raw, t.cfg.SNLen)
		if err != nil {
			return err
		}
		ackSN = s.ACKSN
		for _, n := range s.Nacks {
			count := uint32(1)
			if n.HasRange {
				count = uint32(n.Range)
			}
			for k := uint32(0); k < count; k++ {
				sn := snum.Add(n.SN, k, t.cfg.SNLen)
				nacks = append(nacks, nack{sn: sn, hasSO: n.HasSO && k == 0, start: n.SOStart, end: n.SOEnd + 1})
			}
		}
	}

	nacked := make(map[uint32]bool, len(nacks))
	for _, n := range nacks {
		nacked[n.sn] = true
	}

	sn := t.txNextAck
	for sn != ackSN {
		if e, tracked := t.window[sn]; tracked && !nacked[sn] {
			delete(t.window, sn)
			for _, p := range e.parts {
				t.derefItem(p.item)
				if t.deliveryCallback != nil && p.item.hasSN {
					t.deliveryCallback(p.item.pdcpSN, true)
				}
			}
		}
		sn = snum.Add(sn, 1, t.cfg.SNLen)
	}

	for _, n := range nacks {
		entry, ok := t.window[n.sn]
		if !ok {
			continue
		}
		r := byteRange{Start: 0, End: entry.totalLen()}
		if n.hasSO {
			if n.start > r.Start {
				r.Start = n.start
			}
			if n.end < r.End {
				r.End = n.end
			}
		}
		if r.Start >= r.End {
			continue
		}
		entry.retxCount++
		if entry.retxCount > t.cfg.MaxRetxThreshold {
			t.quiescent = true
			t.upper.MaxRetxAttempted(t.lcid)
			t.log.Err().Uint64("lcid", uint64(t.lcid)).Uint64("sn", uint64(n.sn)).Log("rlcam tx: max retx attempted, going quiescent")
			t.met.LostSDU()
			if t.deliveryCallback != nil {
				for _, p := range entry.parts {
					if p.item.hasSN {
						t.deliveryCallback(p.item.pdcpSN, false)
					}
				}
			}
			return nil
		}
		t.retxQueue = append(t.retxQueue, retxQueueEntry{sn: n.sn, r: r})
	}

	t.advanceTxNextAck()

	if t.pollSNValid {
		if _, stillOutstanding := t.window[t.pollSN]; !stillOutstanding {
			t.pollSNValid = false
			if t.pollRetxArmed {
				t.wheel.Cancel(t.pollRetxHandle)
				t.pollRetxArmed = false
			}
		}
	}
	return nil
}

// Reestablish resets all transmitter state for a fresh RRC configuration,
// releasing every payload buffer still held by the queue or the tx window.
func (t *Tx) Reestablish() {
	t.sduMu.Lock()
	for _, item := range t.sduQueue {
		t.releaseItem(item)
	}
	t.sduQueue = nil
	t.sduBytes = 0
	t.sduMu.Unlock()

	for _, e := range t.window {
		for _, p := range e.parts {
			t.releaseItem(p.item)
		}
	}

	t.txNext = 0
	t.txNextAck = 0
	t.window = make(map[uint32]*txWindowEntry)
	t.retxQueue = nil
	t.pduWithoutPoll = 0
	t.byteWithoutPoll = 0
	t.pollSNValid = false
	if t.pollRetxArmed {
		t.wheel.Cancel(t.pollRetxHandle)
		t.pollRetxArmed = false
	}
	t.quiescent = false
}

// Close tears down the transmitter permanently.
func (t *Tx) Close() {
	if t.pollRetxArmed {
		t.wheel.Cancel(t.pollRetxHandle)
		t.pollRetxArmed = false
	}
	t.quiescent = true
}
