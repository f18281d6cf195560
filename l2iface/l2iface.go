// Package l2iface defines the collaborator contracts the RLC-AM and PDCP
// entities call out to, but never implement themselves: the upper layer
// (RRC/GW), the lower layer (MAC), and the USIM/crypto provider. These are
// pure interfaces (spec.md §4.H) — implementations live in whatever
// package owns the real RRC/MAC/USIM, outside this module's scope.
package l2iface

import "github.com/ranl2/l2core/buffer"

// LCID identifies a logical channel.
type LCID uint16

// UpperLayer receives reassembled SDUs and terminal-failure notifications
// from the PDCP/RLC-AM stack, standing in for RRC and the GW tunnel.
type UpperLayer interface {
	// WritePDU delivers one fully reassembled, in-order SDU to the upper
	// layer.
	WritePDU(lcid LCID, sdu *buffer.Buffer)
	// NotifyIntegrityError reports that a PDU on lcid failed integrity
	// verification and was dropped.
	NotifyIntegrityError(lcid LCID)
	// MaxRetxAttempted reports that an RLC-AM bearer exceeded its
	// configured retransmission threshold and has gone quiescent.
	MaxRetxAttempted(lcid LCID)
	// ProtocolFailure reports a status PDU or control inconsistency that
	// RRC should consider for reestablishment.
	ProtocolFailure(lcid LCID)
}

// LowerLayer is the MAC-facing surface an RLC-AM entity exposes: the MAC
// pulls PDUs on a grant and pushes received PDUs back in.
type LowerLayer interface {
	// HasData reports whether lcid has anything to send.
	HasData(lcid LCID) bool
	// GetBufferState reports how many bytes lcid would send given an
	// unbounded grant, for MAC scheduling.
	GetBufferState(lcid LCID) uint32
}

// The third §4.H collaborator, USIM/crypto, is represented concretely by
// security.Provider rather than a second interface here: PDCP entities
// depend on security directly, so redeclaring its contract in this
// package would just be an unused indirection.
