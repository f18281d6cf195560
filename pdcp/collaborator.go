package pdcp

import "github.com/ranl2/l2core/buffer"

// RLCTx is the narrow contract a PDCP entity needs from its paired RLC-AM
// transmitter (spec.md's data-flow: PDCP.encode -> RLC-AM.write_sdu).
// *rlcam.Entity satisfies this directly; PDCP never imports the rlcam
// package itself, mirroring the bearer.Entity boundary that keeps rlcam
// and pdcp decoupled.
type RLCTx interface {
	WriteSDU(payload *buffer.Buffer, pdcpSN uint32) error
	DiscardSDU(pdcpSN uint32) bool
}
