// Package buffer implements a fixed-capacity byte-buffer arena, the shared
// primitive underlying every PDU/SDU in the RLC-AM and PDCP entities.
//
// Buffers are drawn from a pool sized for the largest PDCP SDU (9000 octets,
// see TS 38.323 §4.3.1) plus headroom for every header the stack may prepend
// (RLC segmentation header, PDCP header, MAC-I). Rather than slicing a
// shared backing array (which would alias across SDUs), each Buffer owns its
// storage and exposes a movable window into it via Prepend/ConsumeFront/
// Append, so headers can be added without copying the payload.
package buffer

import "time"

// Capacity is the storage size of every pooled Buffer. It must exceed the
// maximum PDCP SDU size (9000 octets) by enough headroom for all headers the
// stack may prepend.
const Capacity = 9000 + 64

// Metadata is the sidecar carried alongside a Buffer's payload.
type Metadata struct {
	PDCPSN    uint32
	Timestamp time.Time
}

// Buffer is a contiguous, fixed-capacity byte buffer with independent
// headroom and tailroom.
//
// The zero value is not usable; obtain a Buffer from a Pool's Get and
// return it via Put once nothing still references its payload.
type Buffer struct {
	storage [Capacity]byte
	off     int // start of the live window within storage
	n       int // length of the live window
	Meta    Metadata
}

// reset clears the buffer back to an empty window in the middle of its
// storage (Capacity/2 bytes of headroom), ready for reuse.
func (b *Buffer) reset() {
	b.off = Capacity / 2
	b.n = 0
	b.Meta = Metadata{}
}

// Len returns the number of live payload bytes.
func (b *Buffer) Len() int { return b.n }

// Headroom returns the number of bytes available to Prepend without
// reallocating.
func (b *Buffer) Headroom() int { return b.off }

// Tailroom returns the number of bytes available to Append.
func (b *Buffer) Tailroom() int { return Capacity - b.off - b.n }

// Bytes returns the live payload window. The slice aliases the Buffer's
// storage and is invalidated by any subsequent mutation or Release.
func (b *Buffer) Bytes() []byte { return b.storage[b.off : b.off+b.n] }

// Prepend grows the window backwards by n bytes, for writing a header in
// front of the existing payload without copying it. It returns the newly
// exposed prefix, or nil if there isn't enough headroom.
func (b *Buffer) Prepend(n int) []byte {
	if n < 0 || n > b.off {
		return nil
	}
	b.off -= n
	b.n += n
	return b.storage[b.off : b.off+n]
}

// ConsumeFront shrinks the window forwards by n bytes, discarding a parsed
// header. It is a no-op clamp if n exceeds the live length.
func (b *Buffer) ConsumeFront(n int) {
	if n < 0 {
		return
	}
	if n > b.n {
		n = b.n
	}
	b.off += n
	b.n -= n
}

// Append grows the window forwards by n bytes, returning the newly exposed
// suffix, or nil if there isn't enough tailroom.
func (b *Buffer) Append(n int) []byte {
	if n < 0 || n > b.Tailroom() {
		return nil
	}
	start := b.off + b.n
	b.n += n
	return b.storage[start : start+n]
}

// Truncate shrinks the window forwards from the tail to length n.
func (b *Buffer) Truncate(n int) {
	if n < 0 {
		n = 0
	}
	if n < b.n {
		b.n = n
	}
}

// Write appends p to the buffer's tail via Append, implementing io.Writer.
func (b *Buffer) Write(p []byte) (int, error) {
	dst := b.Append(len(p))
	if dst == nil {
		return 0, ErrOutOfMemory
	}
	copy(dst, p)
	return len(p), nil
}
