package kernel

import "errors"

// Sentinel errors for the host-visible failure modes named in spec.md §7.
// Faults are never surfaced this way — they are contained at the faulting
// descriptor (spec.md §7 "Propagation policy").
var (
	// ErrCapacityExhausted is returned by RegisterThread when the user
	// pool has no free descriptor (spec.md §4.A, §7).
	ErrCapacityExhausted = errors.New("picos: thread table capacity exhausted")

	// ErrNotInitialized is returned by RegisterThread and Start when invoked
	// before Initialize (spec.md §6). ThreadInfo and Metrics return zero
	// values instead; EnterCritical and LeaveCritical do not check.
	ErrNotInitialized = errors.New("picos: kernel not initialized")

	// ErrAlreadyStarted is returned when Start is called more than once.
	ErrAlreadyStarted = errors.New("picos: kernel already started")

	// ErrInvalidStack is returned when a caller supplies a stack region too
	// small to hold the synthetic exception-return frame (spec.md §3).
	ErrInvalidStack = errors.New("picos: stack region smaller than the reserved exception frame")
)
