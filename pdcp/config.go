// Package pdcp implements the PDCP entity pair described in spec.md §4.G:
// LTEEntity (TS 36.323) and NREntity (TS 38.323), sitting above an RLC-AM
// bearer and below RRC/the GW tunnel. Both entities pack/unpack the PDCP
// header, derive COUNT from a locally tracked HFN plus the wire SN,
// integrity-protect and cipher payloads via security.Provider, and apply
// their respective delivery disciplines: LTEEntity tracks an undelivered-
// SDU queue with per-SDU discard timers and answers RLC's delivery/failure
// notifications, NREntity runs the COUNT-ordered reorder queue with
// t_reordering.
//
// Grounded on original_source/lib/include/srslte/upper/pdcp_entity_base.h
// and pdcp_entity_{lte,nr}.h for the state-machine shape, and on rlcam's
// Tx/Rx pair (rlcam/tx.go, rlcam/rx.go) for the teacher's idiom: a small
// Config struct, a *ticker.Wheel for timers, a *rlog.Logger/*metrics.
// BearerMetrics pair threaded through every constructor, and bearer.Entity
// satisfied via Reestablish/Close.
package pdcp

import (
	"github.com/ranl2/l2core/security"
	"github.com/ranl2/l2core/snum"
)

// RBType distinguishes a signalling bearer from a data bearer, which
// constrains both the legal SN widths (5-bit is SRB-only, 18-bit is
// DRB-only) and whether ciphering also covers the integrity MAC
// (spec.md §4.G header table).
type RBType uint8

const (
	RBSignalling RBType = iota
	RBData
)

// Config bundles one PDCP entity's tunables: the PDCP-facing subset of
// the bearer configuration tuple (spec.md §3), plus the security
// parameters pdcp_entity_base derives its crypto context from.
type Config struct {
	RBType RBType
	SNLen  snum.Width

	IntegrityAlgo security.IntegrityAlgorithm
	CipherAlgo    security.CipherAlgorithm
	Direction     security.Direction
	BearerID      uint8 // 1-based radio bearer identity; security.Context wants BearerID-1

	TDiscardTicks    uint64 // LTE and NR; 0 disables the discard timer
	TReorderingTicks uint64 // NR only

	// QueueCapacity bounds the LTE undelivered-SDU queue; the NR reorder
	// queue is not bounded by it. 0 selects spec.md §3's default of 4096.
	QueueCapacity uint32
}

func (c Config) queueCapacity() uint32 {
	if c.QueueCapacity == 0 {
		return 4096
	}
	return c.QueueCapacity
}

// securityContext builds the security.Context for one COUNT value, per
// pdcp_entity_base::{integrity_generate,cipher_encrypt}'s convention of
// passing bearer_id - 1.
func (c Config) securityContext(count snum.Count) security.Context {
	bearer := uint8(0)
	if c.BearerID > 0 {
		bearer = c.BearerID - 1
	}
	return security.Context{
		Count:     uint32(count),
		Bearer:    bearer,
		Direction: c.Direction,
	}
}
