package buffer

import (
	"errors"
	"sync"
)

// ErrOutOfMemory is returned by Pool.Get when the pool is exhausted and by
// Buffer.Write when a write would overflow tailroom. Per spec.md §7, callers
// must treat this as a recoverable soft error: drop the operation, log it,
// and continue.
var ErrOutOfMemory = errors.New("buffer: out of memory")

// Pool is a bounded arena of Buffers. Unlike sync.Pool, Pool has a hard
// capacity: once Limit buffers are checked out, Get fails with
// ErrOutOfMemory instead of allocating more, so a runaway producer cannot
// grow the process's memory footprint without bound.
type Pool struct {
	mu    sync.Mutex
	free  []*Buffer
	limit int
	out   int
}

// NewPool constructs a Pool that allows at most limit Buffers to be
// checked out concurrently. A limit <= 0 means unbounded.
func NewPool(limit int) *Pool {
	return &Pool{limit: limit}
}

// Get returns an empty Buffer, or ErrOutOfMemory if the pool is exhausted.
func (p *Pool) Get() (*Buffer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if n := len(p.free); n > 0 {
		b := p.free[n-1]
		p.free = p.free[:n-1]
		p.out++
		return b, nil
	}
	if p.limit > 0 && p.out >= p.limit {
		return nil, ErrOutOfMemory
	}
	b := new(Buffer)
	b.reset()
	p.out++
	return b, nil
}

// MustGet is like Get but panics on failure; intended for test code where
// exhaustion is not expected.
func (p *Pool) MustGet() *Buffer {
	b, err := p.Get()
	if err != nil {
		panic(err)
	}
	return b
}

// Put returns a Buffer to the pool, clearing its contents. Put(nil) is a
// no-op. Putting a Buffer not obtained from this Pool is undefined.
func (p *Pool) Put(b *Buffer) {
	if b == nil {
		return
	}
	b.reset()
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.out > 0 {
		p.out--
	}
	p.free = append(p.free, b)
}

// InUse reports the number of Buffers currently checked out.
func (p *Pool) InUse() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.out
}
