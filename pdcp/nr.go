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

// NREntity implements TS 38.323 PDCP: a COUNT-ordered reorder queue with
// RX_NEXT/RX_DELIV/RX_REORD and t_reordering, matching 3GPP's
// out-of-order-tolerant delivery discipline (unlike LTEEntity, which
// relies on RLC-AM for ordering).
//
// Grounded on original_source/lib/include/srslte/upper/pdcp_entity_nr.h
// and the RX_* bookkeeping rlc_am_base_rx already establishes the idiom
// for (rlcam/rx.go's rxNext/rxNextHighest pair).
type NREntity struct {
	cfg Config
	sec security.Provider
	rlc RLCTx

	pool  *buffer.Pool
	wheel *ticker.Wheel
	upper l2iface.UpperLayer
	lcid  l2iface.LCID
	log   *rlog.Logger
	met   *metrics.BearerMetrics

	txNext     uint32
	overflowed bool

	rxOverflowed bool

	rxNext  snum.Count // COUNT expected of the next *newly arriving* SDU
	rxDeliv snum.Count // COUNT of the next SDU due for in-order delivery
	rxReord snum.Count // RX_NEXT latched when t_reordering was last armed

	reorderBuf    map[snum.Count]*buffer.Buffer
	reorderHandle ticker.Handle
	reorderArmed  bool

	discardTimers map[uint32]ticker.Handle // tx SN -> t_discard handle
}

// NewNREntity constructs an NR PDCP entity bound to lcid.
func NewNREntity(cfg Config, sec security.Provider, rlc RLCTx, pool *buffer.Pool, wheel *ticker.Wheel, upper l2iface.UpperLayer, lcid l2iface.LCID, log *rlog.Logger, met *metrics.BearerMetrics) *NREntity {
	return &NREntity{
		cfg:        cfg,
		sec:        sec,
		rlc:        rlc,
		pool:       pool,
		wheel:      wheel,
		upper:      upper,
		lcid:       lcid,
		log:        log,
		met:        met,
		reorderBuf:    make(map[snum.Count]*buffer.Buffer),
		discardTimers: make(map[uint32]ticker.Handle),
	}
}

// WriteSDU encodes, secures and hands off one SDU to the RLC bearer,
// assigning it the next PDCP SN/COUNT.
func (e *NREntity) WriteSDU(sdu *buffer.Buffer) error {
	if e.overflowed {
		e.pool.Put(sdu)
		return errors.Wrap(errs.ErrProtocolFailure, "pdcp nr: tx COUNT space exhausted, bearer needs reestablishment")
	}

	sn := e.cfg.SNLen.Normalize(e.txNext)
	txHFN := e.txNext >> uint(e.cfg.SNLen)
	count := snum.MakeCount(txHFN, sn, e.cfg.SNLen)

	header, err := packHeaderNR(e.cfg.SNLen, sn)
	if err != nil {
		e.pool.Put(sdu)
		return err
	}

	plaintext := append([]byte(nil), sdu.Bytes()...)
	secured, err := secureTx(e.sec, e.cfg, count, header, plaintext)
	e.pool.Put(sdu)
	if err != nil {
		return err
	}

	out, err := e.pool.Get()
	if err != nil {
		e.log.Err().Err(err).Uint64("lcid", uint64(e.lcid)).Log("pdcp nr: buffer pool exhausted on tx")
		e.met.TxError()
		return err
	}
	copy(out.Append(len(header)), header)
	copy(out.Append(len(secured)), secured)
	e.met.TxPDU(out.Len())

	if err := e.rlc.WriteSDU(out, sn); err != nil {
		return err
	}

	if e.cfg.TDiscardTicks > 0 {
		e.discardTimers[sn] = e.wheel.Create(e.cfg.TDiscardTicks, func() { e.onDiscardExpiry(sn) })
	}

	if e.txNext == maxCountForWidth(e.cfg.SNLen) {
		e.overflowed = true
	} else {
		e.txNext++
	}
	return nil
}

// maxCountForWidth returns the largest representable 32-bit COUNT value.
func maxCountForWidth(_ snum.Width) uint32 { return ^uint32(0) }

// onDiscardExpiry is t_discard's callback for an SN RLC never confirmed
// delivering in time.
func (e *NREntity) onDiscardExpiry(sn uint32) {
	if _, armed := e.discardTimers[sn]; !armed {
		return
	}
	delete(e.discardTimers, sn)
	e.rlc.DiscardSDU(sn)
	e.met.LostSDU()
}

// cancelDiscardTimer cancels and clears sn's discard timer, if any.
func (e *NREntity) cancelDiscardTimer(sn uint32) {
	h, armed := e.discardTimers[sn]
	if !armed {
		return
	}
	e.wheel.Cancel(h)
	delete(e.discardTimers, sn)
}

// NotifyDelivery is RLC's callback for "peer ACKed pdcpSN", canceling that
// SN's discard timer.
func (e *NREntity) NotifyDelivery(pdcpSN uint32) { e.cancelDiscardTimer(pdcpSN) }

// NotifyFailure is RLC's callback for "max_retx_threshold exceeded for
// pdcpSN": the discard timer is moot either way, so it's simply canceled.
func (e *NREntity) NotifyFailure(pdcpSN uint32) { e.cancelDiscardTimer(pdcpSN) }

// NofDiscardTimers reports the number of discard timers currently armed.
func (e *NREntity) NofDiscardTimers() uint32 { return uint32(len(e.discardTimers)) }

// GetMetrics returns the BearerMetrics bound to this entity, or nil if none
// was supplied at construction.
func (e *NREntity) GetMetrics() *metrics.BearerMetrics { return e.met }

// ResetMetrics rebinds the entity to met, for use after bearer.Registry's
// ChangeLCID relabels the underlying bearer and its metrics must follow.
func (e *NREntity) ResetMetrics(met *metrics.BearerMetrics) { e.met = met }

// WritePDU decodes, reorders and delivers received PDCP data PDUs per TS
// 38.323's reordering procedure: duplicates and already-delivered COUNTs
// are dropped, everything else is buffered by COUNT and delivered as soon
// as a contiguous run starting at RX_DELIV is available; a gap arms
// t_reordering, whose expiry forces delivery of everything below the
// latched RX_REORD and restarts if a gap still remains.
func (e *NREntity) WritePDU(raw []byte) error {
	if e.rxOverflowed {
		return errors.Wrap(errs.ErrProtocolFailure, "pdcp nr: rx COUNT space exhausted, bearer needs reestablishment")
	}

	sn, n, err := parseHeaderNR(e.cfg.SNLen, raw)
	if err != nil {
		return err
	}
	header := raw[:n]
	wire := raw[n:]

	hfn := snum.EstimateHFN(sn, e.rxDeliv, e.cfg.SNLen)
	count := snum.MakeCount(hfn, sn, e.cfg.SNLen)

	if count < e.rxDeliv {
		e.log.Debug().Uint64("lcid", uint64(e.lcid)).Uint64("count", uint64(count)).Log("pdcp nr: dropping already-delivered COUNT")
		return nil
	}
	if _, dup := e.reorderBuf[count]; dup {
		e.log.Debug().Uint64("lcid", uint64(e.lcid)).Uint64("count", uint64(count)).Log("pdcp nr: dropping duplicate COUNT")
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
		e.log.Err().Err(err).Uint64("lcid", uint64(e.lcid)).Log("pdcp nr: buffer pool exhausted on rx")
		e.met.LostSDU()
		return err
	}
	copy(out.Append(len(payload)), payload)
	e.met.RxPDU(out.Len())
	e.reorderBuf[count] = out

	if count == maxCountForWidth(e.cfg.SNLen) {
		e.rxOverflowed = true
	}
	if count >= e.rxNext {
		e.rxNext = count + 1
	}

	e.deliverContiguous()

	if e.reorderArmed && e.rxDeliv >= e.rxReord {
		e.wheel.Cancel(e.reorderHandle)
		e.reorderArmed = false
	}
	if !e.reorderArmed && e.rxDeliv < e.rxNext {
		e.rxReord = e.rxNext
		e.reorderHandle = e.wheel.Create(e.cfg.TReorderingTicks, e.onReorderingExpiry)
		e.reorderArmed = true
	}
	return nil
}

// deliverContiguous delivers every buffered SDU starting at RX_DELIV for
// as long as the run stays unbroken, advancing RX_DELIV past each one.
func (e *NREntity) deliverContiguous() {
	for {
		sdu, ok := e.reorderBuf[e.rxDeliv]
		if !ok {
			return
		}
		e.upper.WritePDU(e.lcid, sdu)
		delete(e.reorderBuf, e.rxDeliv)
		e.rxDeliv++
	}
}

// onReorderingExpiry is t_reordering's callback: everything buffered
// below the latched RX_REORD is delivered (skipping any still-missing
// COUNTs, which are given up on), RX_DELIV jumps to RX_REORD, the
// now-possibly-unblocked contiguous run is delivered, and the timer
// restarts if a gap still remains below the current RX_NEXT.
func (e *NREntity) onReorderingExpiry() {
	e.reorderArmed = false
	for c := e.rxDeliv; c < e.rxReord; c++ {
		if sdu, ok := e.reorderBuf[c]; ok {
			e.upper.WritePDU(e.lcid, sdu)
			delete(e.reorderBuf, c)
		}
	}
	e.rxDeliv = e.rxReord
	e.deliverContiguous()
	if e.rxDeliv < e.rxNext {
		e.rxReord = e.rxNext
		e.reorderHandle = e.wheel.Create(e.cfg.TReorderingTicks, e.onReorderingExpiry)
		e.reorderArmed = true
	}
}

// DiscardSDU forwards a not-yet-transmitted discard request to RLC and
// cancels that SN's discard timer.
func (e *NREntity) DiscardSDU(pdcpSN uint32) bool {
	e.cancelDiscardTimer(pdcpSN)
	return e.rlc.DiscardSDU(pdcpSN)
}

// Reestablish resets all entity state, releasing every buffered SDU still
// held in the reorder queue and canceling every outstanding discard timer.
func (e *NREntity) Reestablish() {
	if e.reorderArmed {
		e.wheel.Cancel(e.reorderHandle)
		e.reorderArmed = false
	}
	for k, sdu := range e.reorderBuf {
		e.pool.Put(sdu)
		delete(e.reorderBuf, k)
	}
	for sn, h := range e.discardTimers {
		e.wheel.Cancel(h)
		delete(e.discardTimers, sn)
	}
	e.txNext, e.overflowed = 0, false
	e.rxNext, e.rxDeliv, e.rxReord = 0, 0, 0
	e.rxOverflowed = false
}

// Close tears down the entity permanently.
func (e *NREntity) Close() {
	e.Reestablish()
}
