package rlcam

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBitWriterReaderRoundTrip(t *testing.T) {
	var w bitWriter
	w.writeBits(1, 1)  // D/C
	w.writeBits(0, 1)  // RF
	w.writeBits(1, 1)  // P
	w.writeBits(2, 2)  // FI
	w.writeBits(1, 1)  // E
	w.writeBits(521, 10) // SN

	r := newBitReader(w.bytes())
	assert.EqualValues(t, 1, r.readBits(1))
	assert.EqualValues(t, 0, r.readBits(1))
	assert.EqualValues(t, 1, r.readBits(1))
	assert.EqualValues(t, 2, r.readBits(2))
	assert.EqualValues(t, 1, r.readBits(1))
	assert.EqualValues(t, 521, r.readBits(10))
}

func TestBitWriterByteAlignedFields(t *testing.T) {
	var w bitWriter
	w.writeBits(0xAB, 8)
	w.writeBits(0xCD, 8)
	assert.Equal(t, []byte{0xAB, 0xCD}, w.bytes())
}

func TestBitWriterOddWidthFields(t *testing.T) {
	var w bitWriter
	w.writeBits(0x7FF, 11) // 11-bit LI value
	w.writeBits(1, 1)      // E bit
	r := newBitReader(w.bytes())
	assert.EqualValues(t, 0x7FF, r.readBits(11))
	assert.EqualValues(t, 1, r.readBits(1))
}

func TestBitReaderRemainingAndAlign(t *testing.T) {
	var w bitWriter
	w.writeBits(3, 3)
	r := newBitReader(w.bytes())
	r.readBits(3)
	assert.Equal(t, 5, r.remaining())
	r.align()
	assert.Equal(t, 1, r.bytePos())
}
