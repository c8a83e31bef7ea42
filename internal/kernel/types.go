// Package kernel implements the CORE of picos: the thread table, the
// cross-core spinlock discipline, the round-robin-with-affinity selection
// policy, the hard-fault quarantine path, and the thread lifecycle
// (spec.md §3–§4, SPEC_FULL.md §1 and §5).
//
// The context-switch trampoline itself (spec.md §4.D) is, on real
// hardware, a PendSV handler that does its register save/restore in
// assembly (hal/rp2040/handlers.go); this package implements its
// behavioral contract — state save bookkeeping and the selection call —
// as ThreadTable.ContextSwitch, which that handler (or, on the host,
// hal/simulated's dispatcher) invokes.
package kernel

import "fmt"

// State is a thread descriptor's lifecycle state (spec.md §3).
type State uint8

const (
	// StateFree marks a descriptor that has never been used, or whose
	// StateDone post-mortem record was discarded by ThreadTable.Reclaim
	// (SPEC_FULL.md §4: the PICOS_UNKNOWN case).
	StateFree State = iota

	// StateRunnable marks a descriptor eligible for dispatch.
	StateRunnable

	// StateFaulted marks a descriptor quarantined by the hard-fault path
	// (spec.md §4.G). Ineligible for dispatch, forever.
	StateFaulted

	// StateDone marks a descriptor whose thread returned from its entry
	// function and ran the termination trampoline to completion
	// (SPEC_FULL.md §4: the PICOS_DONE case). Ineligible for dispatch,
	// functionally identical to StateFree for selection purposes
	// (spec.md §9(b)), but distinguishable for post-mortem inspection.
	StateDone
)

func (s State) String() string {
	switch s {
	case StateFree:
		return "free"
	case StateRunnable:
		return "runnable"
	case StateFaulted:
		return "faulted"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// eligible reports whether a descriptor in this state may ever be selected.
func (s State) eligible() bool {
	return s == StateRunnable
}

// AssignedCPU is a descriptor's core affinity (spec.md §3).
type AssignedCPU int8

const (
	// Unpinned marks a user thread that has never been dispatched.
	Unpinned AssignedCPU = -1
	// CPU0 and CPU1 mirror hal.Core0/hal.Core1. Affinity is tracked as its
	// own small integer type, with Unpinned as an extra value hal.Core does
	// not have, and converted to and from hal.Core where the two meet.
	CPU0 AssignedCPU = 0
	CPU1 AssignedCPU = 1
)

func (c AssignedCPU) String() string {
	switch c {
	case Unpinned:
		return "unpinned"
	case CPU0:
		return "cpu0"
	case CPU1:
		return "cpu1"
	default:
		return fmt.Sprintf("cpu(%d)", int8(c))
	}
}

// InvalidPID is returned by RegisterThread when the table has no free
// descriptor (spec.md §4.A, §6).
const InvalidPID = -1

// Descriptor is one thread-table entry (spec.md §3). SavedSP is placed
// first because the (hardware) context-switch trampoline accesses it via a
// fixed offset of zero. This repository preserves that field ordering,
// although nothing in it depends on the struct layout: hal/rp2040's
// trampoline exchanges only stack-pointer values with ContextSwitch.
type Descriptor struct {
	// SavedSP is the thread's saved process-stack-pointer value: where it
	// was last preempted, or the initial synthetic frame for a never-run
	// thread (spec.md §3 invariant 1, §4.A, §6). Zeroed on termination
	// (spec.md §8 property 5).
	SavedSP uintptr

	// CPU is this descriptor's affinity (spec.md §3, §4.F.3).
	CPU AssignedCPU

	// Pid is the descriptor's stable index in the thread table
	// (spec.md §3, §8 property 2).
	Pid int

	// State is this descriptor's lifecycle state (spec.md §3).
	State State

	// Name is a diagnostics-only label (SPEC_FULL.md §4); it never affects
	// scheduling.
	Name string

	// stack is the caller-owned stack region backing SavedSP, retained
	// only so host tests can assert invariant 1 ("SavedSP lies strictly
	// within its owning stack region"); it is never read by the selection
	// policy. Idle descriptors hold their idle stack here; never-used user
	// descriptors leave this nil, and Terminate does not clear it.
	stack []uint32
}

// withinStack reports whether SavedSP currently points inside the
// descriptor's own stack region — spec.md §3 invariant 1, exposed for
// property tests (internal/kernel/table_test.go).
func (d *Descriptor) withinStack() bool {
	if len(d.stack) == 0 {
		return d.SavedSP == 0
	}
	lo := stackAddr(d.stack, 0)
	hi := stackAddr(d.stack, len(d.stack))
	return d.SavedSP >= lo && d.SavedSP < hi
}
