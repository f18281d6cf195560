// Package ticker implements a single-threaded, tick-driven timer facility.
//
// Unlike time.Timer, timers here fire relative to a logical tick counter
// advanced explicitly by the host via Step, not the OS clock. This matches
// the host/TTI-driven scheduling model the RLC-AM and PDCP entities run
// under (spec.md §4.B, §5): every entity call, including timer expiry,
// happens synchronously inside a single logical thread's Step call.
package ticker

import "container/heap"

// Callback is invoked synchronously from Step when a timer expires. Its
// handle is removed from the wheel before the callback runs, so Cancel or
// Exists called on that same handle from within the callback itself is a
// harmless no-op rather than a re-entrant mutation of live timer state.
type Callback func()

// Handle identifies a scheduled timer.
type Handle uint64

type entry struct {
	handle   Handle
	deadline uint64
	cb       Callback
	index    int // heap index, maintained by container/heap
	canceled bool
}

type timerHeap []*entry

func (h timerHeap) Len() int { return len(h) }
func (h timerHeap) Less(i, j int) bool {
	if h[i].deadline != h[j].deadline {
		return h[i].deadline < h[j].deadline
	}
	return h[i].handle < h[j].handle
}
func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *timerHeap) Push(x any) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// Wheel is a tick-driven timer facility. It is not safe for concurrent use;
// every method must be called from the single logical thread that also
// calls Step.
type Wheel struct {
	now     uint64
	next    Handle
	heap    timerHeap
	byID    map[Handle]*entry
	running bool
}

// NewWheel constructs an idle Wheel. Call Run to start accepting expiries.
func NewWheel() *Wheel {
	return &Wheel{
		byID: make(map[Handle]*entry),
	}
}

// Run transitions the wheel to running; Step is a no-op while not running.
func (w *Wheel) Run() { w.running = true }

// Stop halts the wheel and cancels every outstanding timer.
func (w *Wheel) Stop() {
	w.running = false
	w.heap = nil
	w.byID = make(map[Handle]*entry)
}

// IsRunning reports whether the wheel currently accepts Step calls.
func (w *Wheel) IsRunning() bool { return w.running }

// Now returns the current logical tick.
func (w *Wheel) Now() uint64 { return w.now }

// Create schedules cb to fire after durationTicks more ticks elapse via
// Step. durationTicks == 0 fires on the very next Step call.
func (w *Wheel) Create(durationTicks uint64, cb Callback) Handle {
	w.next++
	h := w.next
	e := &entry{
		handle:   h,
		deadline: w.now + durationTicks,
		cb:       cb,
	}
	w.byID[h] = e
	heap.Push(&w.heap, e)
	return h
}

// Cancel stops a pending timer. Canceling an already-fired or unknown
// handle is a no-op.
func (w *Wheel) Cancel(h Handle) {
	e, ok := w.byID[h]
	if !ok {
		return
	}
	e.canceled = true
	delete(w.byID, h)
	if e.index >= 0 {
		heap.Remove(&w.heap, e.index)
	}
}

// Exists reports whether h is still pending.
func (w *Wheel) Exists(h Handle) bool {
	_, ok := w.byID[h]
	return ok
}

// Step advances the logical clock by n ticks and synchronously fires every
// timer whose deadline is now due, in deadline order.
func (w *Wheel) Step(n uint64) {
	if !w.running {
		return
	}
	w.now += n
	for len(w.heap) > 0 && w.heap[0].deadline <= w.now {
		e := heap.Pop(&w.heap).(*entry)
		if e.canceled {
			continue
		}
		delete(w.byID, e.handle)
		e.cb()
	}
}
