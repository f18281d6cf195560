package procs

// Stepper performs one unit of work for a procedure already launched.
type Stepper interface {
	Step() Outcome
}

// Initer launches a procedure given its arguments.
type Initer[Args any] interface {
	Init(Args) Outcome
}

// Reactor lets a procedure react to an externally triggered event while it
// is running, e.g. a status PDU arriving while a poll retransmission timer
// is pending.
type Reactor[Event any] interface {
	React(Event) Outcome
}

// ResultGetter is implemented by procedures that produce a value on
// success; Manager.Future and Manager.Then deliver it wrapped in a Result.
type ResultGetter[R any] interface {
	Result() R
}

// ThenHook is implemented by procedures that want a direct, synchronous
// notification of their own completion, without going through the
// Manager's continuation callbacks.
type ThenHook[R any] interface {
	Then(Result[R])
}

// Clearer is implemented by procedures that hold state which must be
// released or reset once a run completes.
type Clearer interface {
	Clear()
}

// Procedure is the minimal capability set a type must implement to be run
// under a Manager: accept init arguments and be steppable.
type Procedure[Args any] interface {
	Stepper
	Initer[Args]
}

// status mirrors srsRAN's proc_base_t::proc_status_t.
type status uint8

const (
	idle status = iota
	onGoing
)

// Manager drives a single resumable procedure of concrete type T, which
// must implement Procedure[Args]. R is the type of value the procedure
// produces on success, or struct{} if it produces none.
//
// A Manager is not safe for concurrent use; Run/Trigger/Launch must all be
// called from the same logical thread.
//
// Grounded on srsRAN's proc_t<T, ResultType>.
type Manager[T Procedure[Args], Args any, R any] struct {
	proc   T
	state  status
	future *Result[R]
	then   CallbackGroup[Result[R]]
}

// NewManager constructs a Manager around an already-constructed procedure
// value. The procedure starts idle; call Launch to run it.
func NewManager[T Procedure[Args], Args any, R any](proc T) *Manager[T, Args, R] {
	return &Manager[T, Args, R]{proc: proc}
}

// Proc returns the underlying procedure value.
func (m *Manager[T, Args, R]) Proc() T { return m.proc }

// IsBusy reports whether a run is in progress.
func (m *Manager[T, Args, R]) IsBusy() bool { return m.state == onGoing }

// IsIdle reports the complement of IsBusy.
func (m *Manager[T, Args, R]) IsIdle() bool { return m.state == idle }

// Launch starts the procedure with the given arguments. It returns false if
// a run is already in progress (the procedure is busy) or if Init itself
// reports Error.
func (m *Manager[T, Args, R]) Launch(args Args) bool {
	if m.IsBusy() {
		return false
	}
	m.state = onGoing
	outcome := m.proc.Init(args)
	m.handleOutcome(outcome)
	return outcome != Error
}

// Future returns a handle that will observe this run's Result once it
// completes. Calling Future while idle returns an empty Future.
func (m *Manager[T, Args, R]) Future() Future[R] {
	if m.IsIdle() {
		return Future[R]{}
	}
	if m.future == nil {
		m.future = &Result[R]{}
	}
	return Future[R]{slot: m.future}
}

// Then registers a one-shot continuation invoked when the current (or
// next) run completes.
func (m *Manager[T, Args, R]) Then(cb func(Result[R])) CallbackID {
	return m.then.OnNextCall(cb)
}

// ThenAlways registers a persistent continuation invoked on every
// completion of this Manager's procedure.
func (m *Manager[T, Args, R]) ThenAlways(cb func(Result[R])) CallbackID {
	return m.then.OnEveryCall(cb)
}

// Run executes one Step of the procedure if it is busy, and reports
// whether it is still busy afterward.
func (m *Manager[T, Args, R]) Run() bool {
	if m.IsBusy() {
		outcome := m.proc.Step()
		m.handleOutcome(outcome)
	}
	return m.IsBusy()
}

// Trigger delivers an externally sourced event to the procedure, if it
// implements Reactor[Event] and is currently busy. It reports whether the
// procedure is still busy afterward.
func Trigger[T Procedure[Args], Args any, R any, Event any](m *Manager[T, Args, R], ev Event) bool {
	if !m.IsBusy() {
		return false
	}
	reactor, ok := any(m.proc).(Reactor[Event])
	if !ok {
		return m.IsBusy()
	}
	outcome := reactor.React(ev)
	m.handleOutcome(outcome)
	return m.IsBusy()
}

func (m *Manager[T, Args, R]) handleOutcome(outcome Outcome) {
	if !outcome.IsComplete() {
		return
	}
	m.state = idle
	var result Result[R]
	if outcome == Success {
		if rg, ok := any(m.proc).(ResultGetter[R]); ok {
			result = Result[R]{state: resultValue, value: rg.Result()}
		} else {
			result = Result[R]{state: resultValue}
		}
	} else {
		result = Result[R]{state: resultError}
	}
	if m.future != nil {
		*m.future = result
		m.future = nil
	}
	if hook, ok := any(m.proc).(ThenHook[R]); ok {
		hook.Then(result)
	}
	m.then.Call(result)
	if clearer, ok := any(m.proc).(Clearer); ok {
		clearer.Clear()
	}
}
