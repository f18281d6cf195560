package rlcam

import (
	"github.com/ranl2/l2core/buffer"
	"github.com/ranl2/l2core/l2iface"
	"github.com/ranl2/l2core/metrics"
	"github.com/ranl2/l2core/rlog"
	"github.com/ranl2/l2core/snum"
	"github.com/ranl2/l2core/ticker"
)

// Config bundles both halves of one RLC-AM bearer's tunables, the full
// bearer configuration tuple's rlcam-facing subset (spec.md §3).
type Config struct {
	Flavor               Flavor
	SNLen                snum.Width
	PollPDU              uint32
	PollByte             uint32
	MaxRetxThreshold     uint32
	TPollRetxTicks       uint64
	TReassemblyTicks     uint64
	TStatusProhibitTicks uint64
	QueueCapacity        uint32
}

// Entity is one RLC-AM bearer: a Tx and Rx pair sharing a logical
// channel, a buffer pool, and a timer wheel. It implements
// bearer.Entity.
type Entity struct {
	Tx *Tx
	Rx *Rx

	bsrCallback func(lcid l2iface.LCID, bufferedBytes uint32)
}

// NewEntity wires up a complete RLC-AM bearer.
func NewEntity(cfg Config, pool *buffer.Pool, wheel *ticker.Wheel, upper l2iface.UpperLayer, lcid l2iface.LCID, log *rlog.Logger, met *metrics.BearerMetrics) *Entity {
	rx := NewRx(RxConfig{
		Flavor:               cfg.Flavor,
		SNLen:                cfg.SNLen,
		TReassemblyTicks:     cfg.TReassemblyTicks,
		TStatusProhibitTicks: cfg.TStatusProhibitTicks,
	}, pool, wheel, upper, lcid, log, met)

	tx := NewTx(TxConfig{
		Flavor:           cfg.Flavor,
		SNLen:            cfg.SNLen,
		PollPDU:          cfg.PollPDU,
		PollByte:         cfg.PollByte,
		MaxRetxThreshold: cfg.MaxRetxThreshold,
		TPollRetxTicks:   cfg.TPollRetxTicks,
		QueueCapacity:    cfg.QueueCapacity,
	}, pool, wheel, rx, upper, lcid, log, met)

	return &Entity{Tx: tx, Rx: rx}
}

// SetBSRCallback registers a callback invoked with the transmitter's
// buffered byte count after each Entity.WriteSDU and Entity.DiscardSDU;
// PDU reads, status handling and timer expiries do not invoke it. It
// stands in for the MAC
// buffer-status-report trigger a real scheduler would hook (a supplemented
// feature beyond spec.md's RLC-AM contract, grounded in
// original_source/lib/include/srsran/rlc/rlc.h's bsr callback hook).
func (e *Entity) SetBSRCallback(cb func(lcid l2iface.LCID, bufferedBytes uint32)) {
	e.bsrCallback = cb
}

// SetDeliveryCallback forwards to the transmitter's delivery callback
// (see Tx.SetDeliveryCallback); PDCP's LTEEntity hooks this to cancel
// discard timers and advance FMS.
func (e *Entity) SetDeliveryCallback(cb func(pdcpSN uint32, delivered bool)) {
	e.Tx.SetDeliveryCallback(cb)
}

// GetMetrics returns the BearerMetrics bound to this entity's Tx/Rx pair,
// or nil if none was supplied at construction.
func (e *Entity) GetMetrics() *metrics.BearerMetrics { return e.Tx.met }

// ResetMetrics rebinds both halves to met, for use after bearer.Registry's
// ChangeLCID relabels the underlying bearer and its metrics must follow.
func (e *Entity) ResetMetrics(met *metrics.BearerMetrics) {
	e.Tx.met = met
	e.Rx.met = met
}

func (e *Entity) reportBSR() {
	if e.bsrCallback == nil {
		return
	}
	bs := e.Tx.GetBufferState()
	e.bsrCallback(e.Tx.lcid, bs.NewTxBytes+bs.PrioBytes)
}

// WriteSDU enqueues an SDU for transmission and reports the updated
// buffer state via the BSR callback, if any.
func (e *Entity) WriteSDU(payload *buffer.Buffer, pdcpSN uint32) error {
	err := e.Tx.WriteSDU(payload, pdcpSN)
	e.reportBSR()
	return err
}

// DiscardSDU discards a queued, not-yet-transmitted SDU by pdcpSN, for
// PDCP's t_discard to call into (spec.md §4.G "Discard timers").
func (e *Entity) DiscardSDU(pdcpSN uint32) bool {
	ok := e.Tx.DiscardSDU(pdcpSN)
	e.reportBSR()
	return ok
}

// Reestablish resets both halves for a fresh RRC configuration
// (spec.md §4.E/§4.F "reestablish → tx_enabled/rx reset windows").
func (e *Entity) Reestablish() {
	e.Tx.Reestablish()
	e.Rx.Reestablish()
}

// Close tears down both halves permanently.
func (e *Entity) Close() {
	e.Tx.Close()
	e.Rx.Close()
}
