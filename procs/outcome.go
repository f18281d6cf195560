// Package procs implements a cooperative, resumable procedure scheduler.
//
// A procedure is any value whose Step (and, optionally, React) method is
// invoked synchronously by the host's single logical thread until it
// reports completion. Nothing here spawns goroutines or blocks: a
// Manager's Run/Trigger must be driven explicitly by the caller, matching
// the single-threaded state-machine model the RLC-AM and PDCP entities run
// under (spec.md §4.C, §5).
//
// Grounded on srsRAN's stack_procedure.h (proc_outcome_t, proc_base_t,
// proc_t<T>, callback_group_t, event_handler_t).
package procs

// Outcome reports what happened during one Step or React invocation.
type Outcome int

const (
	// Yield means the procedure performed work but has not completed.
	Yield Outcome = iota
	// Success means the procedure completed successfully.
	Success
	// Error means the procedure completed unsuccessfully.
	Error
)

func (o Outcome) String() string {
	switch o {
	case Yield:
		return "yield"
	case Success:
		return "success"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// IsComplete reports whether the outcome ends the procedure's run.
func (o Outcome) IsComplete() bool { return o == Success || o == Error }
