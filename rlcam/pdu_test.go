package rlcam

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ranl2/l2core/snum"
)

func TestLTEDataHeaderRoundTripNoLI(t *testing.T) {
	h := lteDataHeader{P: true, FI: FIWhole, SN: 513}
	wire := encodeLTEDataHeader(h)
	assert.Len(t, wire, 2)

	got, n, err := decodeLTEDataHeader(wire)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, h.P, got.P)
	assert.Equal(t, h.FI, got.FI)
	assert.Equal(t, h.SN, got.SN)
	assert.False(t, got.RF)
}

func TestLTEDataHeaderRoundTripWithLIs(t *testing.T) {
	h := lteDataHeader{FI: FIMiddle, SN: 7, LIs: []uint16{100, 250, 30}}
	wire := encodeLTEDataHeader(h)

	got, n, err := decodeLTEDataHeader(wire)
	require.NoError(t, err)
	assert.Equal(t, len(wire), n)
	assert.Equal(t, h.LIs, got.LIs)
}

func TestLTEDataHeaderResegmented(t *testing.T) {
	h := lteDataHeader{RF: true, LSF: true, SN: 42, SO: 1000, FI: FILast}
	wire := encodeLTEDataHeader(h)
	got, _, err := decodeLTEDataHeader(wire)
	require.NoError(t, err)
	assert.True(t, got.RF)
	assert.True(t, got.LSF)
	assert.EqualValues(t, 1000, got.SO)
}

func TestLTEDataHeaderRejectsControlPDU(t *testing.T) {
	_, _, err := decodeLTEDataHeader([]byte{0x00, 0x00})
	assert.Error(t, err)
}

func TestLTEStatusRoundTrip(t *testing.T) {
	s := lteStatus{ACKSN: 20, Nacks: []lteNack{
		{SN: 5},
		{SN: 10, HasSO: true, SOStart: 0, SOEnd: 99},
	}}
	wire := encodeLTEStatus(s)
	got, err := decodeLTEStatus(wire, snum.Width10)
	require.NoError(t, err)
	assert.Equal(t, s.ACKSN, got.ACKSN)
	require.Len(t, got.Nacks, 2)
	assert.EqualValues(t, 5, got.Nacks[0].SN)
	assert.EqualValues(t, 10, got.Nacks[1].SN)
	assert.True(t, got.Nacks[1].HasSO)
	assert.EqualValues(t, 99, got.Nacks[1].SOEnd)
}

func TestLTEStatusRejectsNonMonotonicNacks(t *testing.T) {
	wire := encodeLTEStatus(lteStatus{ACKSN: 20, Nacks: []lteNack{{SN: 10}, {SN: 5}}})
	_, err := decodeLTEStatus(wire, snum.Width10)
	assert.Error(t, err)
}

func TestNRDataHeaderRoundTrip12Bit(t *testing.T) {
	h := nrDataHeader{P: true, SI: SIMiddle, SN: 1000, SO: 2048}
	wire := encodeNRDataHeader(h, snum.Width12)
	got, n, err := decodeNRDataHeader(wire, snum.Width12)
	require.NoError(t, err)
	assert.Equal(t, len(wire), n)
	assert.Equal(t, h.SI, got.SI)
	assert.Equal(t, h.SN, got.SN)
	assert.Equal(t, h.SO, got.SO)
}

func TestNRDataHeaderRoundTrip18Bit(t *testing.T) {
	h := nrDataHeader{SI: SIWhole, SN: 131071}
	wire := encodeNRDataHeader(h, snum.Width18)
	got, _, err := decodeNRDataHeader(wire, snum.Width18)
	require.NoError(t, err)
	assert.Equal(t, h.SN, got.SN)
	assert.EqualValues(t, 0, got.SO) // whole SDU carries no SO
}

func TestNRStatusRoundTripWithRange(t *testing.T) {
	s := nrStatus{ACKSN: 500, Nacks: []nrNack{
		{SN: 10, HasRange: true, Range: 5},
		{SN: 20, HasSO: true, SOStart: 0, SOEnd: 10},
	}}
	wire := encodeNRStatus(s, snum.Width12)
	got, err := decodeNRStatus(wire, snum.Width12)
	require.NoError(t, err)
	require.Len(t, got.Nacks, 2)
	assert.True(t, got.Nacks[0].HasRange)
	assert.EqualValues(t, 5, got.Nacks[0].Range)
	assert.True(t, got.Nacks[1].HasSO)
}
