package procs

// Result carries the outcome of a completed procedure run: a Value when it
// succeeded, or nothing when it errored or hasn't completed yet.
//
// Grounded on srsRAN's proc_result_t<T>.
type Result[R any] struct {
	state resultState
	value R
}

type resultState uint8

const (
	resultNone resultState = iota
	resultValue
	resultError
)

// IsSuccess reports whether the run completed with a value.
func (r Result[R]) IsSuccess() bool { return r.state == resultValue }

// IsError reports whether the run completed with an error.
func (r Result[R]) IsError() bool { return r.state == resultError }

// IsComplete reports whether the run has finished, successfully or not.
func (r Result[R]) IsComplete() bool { return r.state != resultNone }

// Value returns the run's value and whether one is present.
func (r Result[R]) Value() (R, bool) {
	if r.state != resultValue {
		var zero R
		return zero, false
	}
	return r.value, true
}

// Future is a handle onto a procedure run's eventual Result, obtained via
// Manager.Future. It is safe to read repeatedly; the zero Future is empty
// and never completes.
//
// Grounded on srsRAN's proc_future_t<ResultType>.
type Future[R any] struct {
	slot *Result[R]
}

// IsEmpty reports whether this Future is unattached to any run.
func (f Future[R]) IsEmpty() bool { return f.slot == nil }

// IsComplete reports whether the attached run has finished.
func (f Future[R]) IsComplete() bool { return f.slot != nil && f.slot.IsComplete() }

// Result returns the attached run's Result. Before the run completes this
// returns the zero (incomplete) Result.
func (f Future[R]) Result() Result[R] {
	if f.slot == nil {
		return Result[R]{}
	}
	return *f.slot
}
