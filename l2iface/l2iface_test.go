package l2iface

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ranl2/l2core/buffer"
)

type recordingUpperLayer struct {
	delivered       []LCID
	integrityErrors []LCID
	maxRetx         []LCID
	protocolFails   []LCID
}

func (r *recordingUpperLayer) WritePDU(lcid LCID, sdu *buffer.Buffer) {
	r.delivered = append(r.delivered, lcid)
}
func (r *recordingUpperLayer) NotifyIntegrityError(lcid LCID) {
	r.integrityErrors = append(r.integrityErrors, lcid)
}
func (r *recordingUpperLayer) MaxRetxAttempted(lcid LCID) { r.maxRetx = append(r.maxRetx, lcid) }
func (r *recordingUpperLayer) ProtocolFailure(lcid LCID)  { r.protocolFails = append(r.protocolFails, lcid) }

func TestUpperLayerInterfaceSatisfaction(t *testing.T) {
	var ul UpperLayer = &recordingUpperLayer{}
	ul.WritePDU(5, &buffer.Buffer{})
	ul.NotifyIntegrityError(5)
	ul.MaxRetxAttempted(5)
	ul.ProtocolFailure(5)

	rec := ul.(*recordingUpperLayer)
	assert.Equal(t, []LCID{5}, rec.delivered)
	assert.Equal(t, []LCID{5}, rec.integrityErrors)
	assert.Equal(t, []LCID{5}, rec.maxRetx)
	assert.Equal(t, []LCID{5}, rec.protocolFails)
}

type fakeLowerLayer struct {
	hasData      bool
	bufferedByte uint32
}

func (f *fakeLowerLayer) HasData(LCID) bool              { return f.hasData }
func (f *fakeLowerLayer) GetBufferState(LCID) uint32 { return f.bufferedByte }

func TestLowerLayerInterfaceSatisfaction(t *testing.T) {
	var ll LowerLayer = &fakeLowerLayer{hasData: true, bufferedByte: 128}
	assert.True(t, ll.HasData(1))
	assert.Equal(t, uint32(128), ll.GetBufferState(1))
}
