package buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrependAppendConsume(t *testing.T) {
	p := NewPool(0)
	b, err := p.Get()
	require.NoError(t, err)

	payload := b.Append(4)
	copy(payload, []byte{1, 2, 3, 4})
	require.Equal(t, 4, b.Len())

	hdr := b.Prepend(2)
	require.NotNil(t, hdr)
	copy(hdr, []byte{0xAA, 0xBB})
	require.Equal(t, []byte{0xAA, 0xBB, 1, 2, 3, 4}, b.Bytes())

	b.ConsumeFront(2)
	assert.Equal(t, []byte{1, 2, 3, 4}, b.Bytes())

	b.Truncate(2)
	assert.Equal(t, []byte{1, 2}, b.Bytes())
}

func TestPoolExhaustion(t *testing.T) {
	p := NewPool(1)
	b1, err := p.Get()
	require.NoError(t, err)

	_, err = p.Get()
	assert.ErrorIs(t, err, ErrOutOfMemory)

	p.Put(b1)
	b2, err := p.Get()
	require.NoError(t, err)
	assert.Equal(t, 0, b2.Len())
}

func TestWriteOverflowIsOutOfMemory(t *testing.T) {
	p := NewPool(0)
	b := p.MustGet()
	big := make([]byte, Capacity+1)
	_, err := b.Write(big)
	assert.ErrorIs(t, err, ErrOutOfMemory)
}

func TestHeadroomTailroomAccounting(t *testing.T) {
	p := NewPool(0)
	b := p.MustGet()
	require.Equal(t, Capacity/2, b.Headroom())
	require.Equal(t, Capacity-Capacity/2, b.Tailroom())

	b.Append(10)
	require.Equal(t, Capacity-Capacity/2-10, b.Tailroom())
	require.Equal(t, Capacity/2, b.Headroom())

	b.Prepend(5)
	require.Equal(t, Capacity/2-5, b.Headroom())
}
