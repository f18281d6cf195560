// Package errs defines the sentinel error kinds shared across the RLC-AM
// and PDCP entities (spec.md §7). Every entity wraps these with
// github.com/pkg/errors so callers can both errors.Is against the kind and
// recover the call-site context from the message.
package errs

import "errors"

var (
	// ErrParseError marks a malformed or truncated header/PDU. The PDU is
	// dropped silently; a metric is incremented.
	ErrParseError = errors.New("l2core: parse error")

	// ErrIntegrityFailure marks a PDU whose integrity MAC did not verify.
	// The PDU is dropped and RRC is notified via notify_integrity_error.
	ErrIntegrityFailure = errors.New("l2core: integrity check failed")

	// ErrOutOfMemory marks a failed buffer-pool allocation. The operation
	// is dropped best-effort; the protocol continues.
	ErrOutOfMemory = errors.New("l2core: out of memory")

	// ErrQueueFull marks a full SDU or retransmission queue. It is
	// signaled synchronously to the caller of write_sdu.
	ErrQueueFull = errors.New("l2core: queue full")

	// ErrMaxRetxExceeded is terminal for an RLC-AM bearer; RRC is
	// notified via max_retx_attempted.
	ErrMaxRetxExceeded = errors.New("l2core: max retransmissions exceeded")

	// ErrProtocolFailure marks a status PDU inconsistent with local
	// state. RRC is notified via protocol_failure; the bearer continues.
	ErrProtocolFailure = errors.New("l2core: protocol failure")

	// ErrConfigError is returned synchronously from configure()-style
	// entry points when configuration is invalid.
	ErrConfigError = errors.New("l2core: configuration error")
)
