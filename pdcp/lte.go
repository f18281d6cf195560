package pdcp

import (
	"github.com/pkg/errors"

	"github.com/ranl2/l2core/buffer"
	"github.com/ranl2/l2core/errs"
	"github.com/ranl2/l2core/l2iface"
	"github.com/ranl2/l2core/metrics"
	"github.com/ranl2/l2core/rlog"
	"github.com/ranl2/l2core/security"
	"github.com/ranl2/l2core/snum"
	"github.com/ranl2/l2core/ticker"
)

// lteSlot is one entry in the LTE undelivered-SDU queue: a retained copy
// of the plaintext SDU (for handover forwarding via GetBufferedPDUs) plus
// its discard-timer handle.
type lteSlot struct {
	occupied bool
	sdu      *buffer.Buffer
	discard  ticker.Handle
	armed    bool
}

// LTEBearerState is the handover state exchanged via GetBearerState/
// SetBearerState (spec.md §4.G "Handover state").
type LTEBearerState struct {
	TxHFN                  uint32
	NextPDCPTxSN           uint32
	RxHFN                  uint32
	NextPDCPRxSN           uint32
	LastSubmittedPDCPRxSN  uint32
}

// LTEEntity implements TS 36.323 PDCP: in-order submission to/from an
// underlying RLC-AM bearer (no rx reordering, since RLC-AM already
// guarantees in-order, reliable delivery in steady state), a discard-timer-
// backed undelivered-SDU queue with FMS tracking, and an LTE-style status
// report for handover forwarding decisions.
//
// Grounded on original_source/lib/include/srslte/upper/pdcp_entity_lte.h.
type LTEEntity struct {
	cfg Config
	sec security.Provider
	rlc RLCTx

	pool  *buffer.Pool
	wheel *ticker.Wheel
	upper l2iface.UpperLayer
	lcid  l2iface.LCID
	log   *rlog.Logger
	met   *metrics.BearerMetrics

	txHFN      uint32
	txNext     uint32
	overflowed bool

	rxHFN             uint32
	rxNext            uint32
	lastSubmittedRxSN uint32
	hasSubmitted      bool

	fms           uint32
	pending       uint32
	discardTimers uint32
	queue         *snum.Circular[lteSlot]
}

// NewLTEEntity constructs an LTE PDCP entity bound to lcid. sec may be nil
// (no integrity/ciphering), matching security.Provider's nil-Provider
// convention carried over from rlcam's nil-safe *metrics.BearerMetrics.
func NewLTEEntity(cfg Config, sec security.Provider, rlc RLCTx, pool *buffer.Pool, wheel *ticker.Wheel, upper l2iface.UpperLayer, lcid l2iface.LCID, log *rlog.Logger, met *metrics.BearerMetrics) *LTEEntity {
	return &LTEEntity{
		cfg:   cfg,
		sec:   sec,
		rlc:   rlc,
		pool:  pool,
		wheel: wheel,
		upper: upper,
		lcid:  lcid,
		log:   log,
		met:   met,
		queue: snum.NewCircular[lteSlot](cfg.queueCapacity()),
	}
}

// WriteSDU encodes, secures and hands off one SDU to the RLC-AM bearer,
// assigning it the next PDCP SN and arming its discard timer.
func (e *LTEEntity) WriteSDU(sdu *buffer.Buffer) error {
	if e.overflowed {
		e.pool.Put(sdu)
		return errors.Wrap(errs.ErrProtocolFailure, "pdcp lte: tx COUNT space exhausted, bearer needs reestablishment")
	}

	sn := e.txNext
	count := snum.MakeCount(e.txHFN, sn, e.cfg.SNLen)
	header, err := packHeaderLTE(e.cfg.SNLen, e.cfg.RBType, sn)
	if err != nil {
		e.pool.Put(sdu)
		return err
	}

	plaintext := append([]byte(nil), sdu.Bytes()...)
	secured, err := secureTx(e.sec, e.cfg, count, header, plaintext)
	if err != nil {
		e.pool.Put(sdu)
		return err
	}

	out, err := e.pool.Get()
	if err != nil {
		e.pool.Put(sdu)
		e.log.Err().Err(err).Uint64("lcid", uint64(e.lcid)).Log("pdcp lte: buffer pool exhausted on tx")
		e.met.TxError()
		return err
	}
	copy(out.Append(len(header)), header)
	copy(out.Append(len(secured)), secured)
	e.met.TxPDU(out.Len())

	retained, err := e.pool.Get()
	if err != nil {
		e.pool.Put(sdu)
		e.pool.Put(out)
		return err
	}
	copy(retained.Append(len(plaintext)), plaintext)
	e.pool.Put(sdu)

	slot := lteSlot{occupied: true, sdu: retained}
	if e.cfg.TDiscardTicks > 0 {
		slot.armed = true
		slot.discard = e.wheel.Create(e.cfg.TDiscardTicks, func() { e.onDiscardExpiry(sn) })
		e.discardTimers++
	}
	*e.queue.At(sn) = slot
	if e.pending == 0 {
		e.fms = sn
	}
	e.pending++

	if err := e.rlc.WriteSDU(out, sn); err != nil {
		e.clearSlot(sn)
		return err
	}

	e.txNext++
	if e.txNext >= e.cfg.SNLen.Mod() {
		e.txNext = 0
		if e.txHFN >= maxHFN(e.cfg.SNLen) {
			e.overflowed = true
		} else {
			e.txHFN++
		}
	}
	return nil
}

// onDiscardExpiry is t_discard's callback: the SDU was never delivered in
// time, so it's dropped from the queue and RLC is asked to discard it if
// it hasn't already been sent.
func (e *LTEEntity) onDiscardExpiry(sn uint32) {
	slot := e.queue.At(sn)
	if !slot.occupied {
		return
	}
	e.rlc.DiscardSDU(sn)
	e.met.LostSDU()
	e.clearSlot(sn)
}

// clearSlot releases one queue slot: cancels its discard timer (if still
// armed) and returns its retained plaintext buffer to the pool.
func (e *LTEEntity) clearSlot(sn uint32) {
	slot := e.queue.At(sn)
	if !slot.occupied {
		return
	}
	if slot.armed {
		e.wheel.Cancel(slot.discard)
		e.discardTimers--
	}
	e.pool.Put(slot.sdu)
	*slot = lteSlot{}
	if e.pending > 0 {
		e.pending--
	}
	e.recomputeFMS()
}

// NofDiscardTimers reports the number of discard timers currently armed,
// for tests to assert it always equals the number of undelivered SDUs that
// have one (pdcp_entity_lte::nof_discard_timers).
func (e *LTEEntity) NofDiscardTimers() uint32 { return e.discardTimers }

// GetMetrics returns the BearerMetrics bound to this entity, or nil if none
// was supplied at construction.
func (e *LTEEntity) GetMetrics() *metrics.BearerMetrics { return e.met }

// ResetMetrics rebinds the entity to met, for use after bearer.Registry's
// ChangeLCID relabels the underlying bearer and its metrics must follow.
func (e *LTEEntity) ResetMetrics(met *metrics.BearerMetrics) { e.met = met }

// recomputeFMS advances FMS to the oldest still-occupied slot, or to
// txNext (nothing outstanding) if the queue is empty.
func (e *LTEEntity) recomputeFMS() {
	if e.pending == 0 {
		e.fms = e.txNext
		return
	}
	sn := e.fms
	for i := uint32(0); i < e.cfg.SNLen.Mod(); i++ {
		if e.queue.At(sn).occupied {
			e.fms = sn
			return
		}
		sn = snum.Add(sn, 1, e.cfg.SNLen)
	}
}

// NotifyDelivery is RLC's callback for "peer ACKed pdcpSN" (spec.md §4.G
// "RLC -> PDCP notifications"), wired via the paired rlcam.Entity's
// SetDeliveryCallback.
func (e *LTEEntity) NotifyDelivery(pdcpSN uint32) { e.clearSlot(pdcpSN) }

// NotifyFailure is RLC's callback for "max_retx_threshold exceeded for
// pdcpSN": the SDU is abandoned the same way a discard-timer expiry would
// abandon it.
func (e *LTEEntity) NotifyFailure(pdcpSN uint32) { e.clearSlot(pdcpSN) }

// DiscardSDU lets RRC ask PDCP to drop a not-yet-delivered SDU (e.g. a GTP
// tunnel closing), propagating to RLC if it hasn't already been sent.
func (e *LTEEntity) DiscardSDU(pdcpSN uint32) {
	e.rlc.DiscardSDU(pdcpSN)
	e.clearSlot(pdcpSN)
}

// WritePDU decodes, unsecures and delivers one received PDCP data PDU.
func (e *LTEEntity) WritePDU(raw []byte) error {
	sn, n, err := parseHeaderLTE(e.cfg.SNLen, raw)
	if err != nil {
		return err
	}
	header := raw[:n]
	wire := raw[n:]

	refCount := snum.MakeCount(e.rxHFN, e.lastSubmittedRxSN, e.cfg.SNLen)
	if !e.hasSubmitted {
		refCount = snum.MakeCount(e.rxHFN, e.rxNext, e.cfg.SNLen)
	}
	hfn := snum.EstimateHFN(sn, refCount, e.cfg.SNLen)
	count := snum.MakeCount(hfn, sn, e.cfg.SNLen)

	if e.hasSubmitted && count <= refCount {
		e.log.Debug().Uint64("lcid", uint64(e.lcid)).Uint64("sn", uint64(sn)).Log("pdcp lte: dropping duplicate/stale PDU")
		return nil
	}

	payload, err := unsecureRx(e.sec, e.cfg, count, header, wire)
	if err != nil {
		if errors.Is(err, security.ErrIntegrityFailure) {
			e.upper.NotifyIntegrityError(e.lcid)
			return nil
		}
		return err
	}

	out, err := e.pool.Get()
	if err != nil {
		e.log.Err().Err(err).Uint64("lcid", uint64(e.lcid)).Log("pdcp lte: buffer pool exhausted on rx")
		e.met.LostSDU()
		return err
	}
	copy(out.Append(len(payload)), payload)
	e.met.RxPDU(out.Len())
	e.upper.WritePDU(e.lcid, out)

	e.rxHFN = hfn
	e.rxNext = snum.Add(sn, 1, e.cfg.SNLen)
	e.lastSubmittedRxSN = sn
	e.hasSubmitted = true
	return nil
}

// SendStatusReport builds a status report describing everything received
// up to (but not including) the current rx sequence number, for handover
// forwarding decisions at the peer.
func (e *LTEEntity) SendStatusReport() []byte {
	return encodeLTEStatusReport(e.cfg.SNLen, e.rxNext, nil)
}

// HandleStatusReportPDU processes a peer's status report: every SN the
// peer confirms receiving is removed from the undelivered-SDU queue and
// its discard timer canceled.
func (e *LTEEntity) HandleStatusReportPDU(raw []byte) error {
	fms, bitmap, err := decodeLTEStatusReport(e.cfg.SNLen, raw)
	if err != nil {
		return err
	}
	sn := e.fms
	for sn != fms {
		e.clearSlot(sn)
		sn = snum.Add(sn, 1, e.cfg.SNLen)
	}
	for i, received := range bitmap {
		if received {
			e.clearSlot(snum.Add(fms, uint32(i)+1, e.cfg.SNLen))
		}
	}
	return nil
}

// GetBearerState reads out the handover-relevant HFN/SN state.
func (e *LTEEntity) GetBearerState() LTEBearerState {
	return LTEBearerState{
		TxHFN:                 e.txHFN,
		NextPDCPTxSN:          e.txNext,
		RxHFN:                 e.rxHFN,
		NextPDCPRxSN:          e.rxNext,
		LastSubmittedPDCPRxSN: e.lastSubmittedRxSN,
	}
}

// SetBearerState installs handover state. setFMC ("set first message
// count") reports that the target has no prior lastSubmittedPDCPRxSN
// baseline: the first PDU received after the switch is judged solely
// against (RxHFN, NextPDCPRxSN) rather than the usual
// lastSubmittedPDCPRxSN+1 baseline.
func (e *LTEEntity) SetBearerState(s LTEBearerState, setFMC bool) {
	e.txHFN = s.TxHFN
	e.txNext = s.NextPDCPTxSN
	e.overflowed = false
	e.rxHFN = s.RxHFN
	e.rxNext = s.NextPDCPRxSN
	e.lastSubmittedRxSN = s.LastSubmittedPDCPRxSN
	e.hasSubmitted = !setFMC
}

// GetBufferedPDUs returns every still-undelivered SDU's retained
// plaintext, in SN order from FMS, for handover forwarding to the target.
func (e *LTEEntity) GetBufferedPDUs() []*buffer.Buffer {
	if e.pending == 0 {
		return nil
	}
	out := make([]*buffer.Buffer, 0, e.pending)
	sn := e.fms
	for i := uint32(0); i < e.cfg.SNLen.Mod(); i++ {
		if slot := e.queue.At(sn); slot.occupied {
			out = append(out, slot.sdu)
		}
		sn = snum.Add(sn, 1, e.cfg.SNLen)
	}
	return out
}

// Reestablish resets all entity state for a fresh RRC configuration,
// releasing every retained SDU buffer still held in the queue.
func (e *LTEEntity) Reestablish() {
	sn := e.fms
	for i := uint32(0); i < e.cfg.SNLen.Mod() && e.pending > 0; i++ {
		e.clearSlot(sn)
		sn = snum.Add(sn, 1, e.cfg.SNLen)
	}
	e.queue.Reset()
	e.txHFN, e.txNext, e.overflowed = 0, 0, false
	e.rxHFN, e.rxNext, e.lastSubmittedRxSN, e.hasSubmitted = 0, 0, 0, false
	e.fms, e.pending = 0, 0
}

// Close tears down the entity permanently.
func (e *LTEEntity) Close() {
	e.Reestablish()
}
