// Package hal defines the boundary between the scheduler core and the
// platform facilities spec.md §6 assumes are available: a hardware
// spinlock block, a "which core am I" register, a SysTick peripheral, and
// the handler-priority registers. internal/kernel depends only on this
// interface; hal/simulated backs it for host tests and hal/rp2040 backs it
// for the real target.
package hal

// Core identifies one of the two ARMv6-M execution units.
type Core int

const (
	Core0 Core = 0
	Core1 Core = 1

	// NumCores is fixed by the target: two Cortex-M0+ cores sharing one
	// address space. spec.md §6 lists core count as compile-time config,
	// but RP2040 has exactly two, and nothing in this repo varies it.
	NumCores = 2
)

// Spinlock is the single hardware lock mediating every read-modify-write of
// the thread table (spec.md §4.B). Lock busy-waits; Unlock is a plain
// store. It must never be held across WaitForInterrupt.
type Spinlock interface {
	Lock()
	Unlock()
}

// Platform is every facility spec.md §6 assumes the board-support layer
// provides, reduced to the surface internal/kernel actually calls.
type Platform interface {
	// CurrentCore returns which core is executing, via the "which core am
	// I" register.
	CurrentCore() Core

	// Spinlock returns the single cross-core lock backing the thread table.
	// Implementations must return the same instance on every call.
	Spinlock() Spinlock

	// ConfigurePreemption programs this core's SysTick for a reload value
	// derived from intervalUS (spec.md §4.E) and sets the SysTick/PendSV
	// priority pair described in spec.md §4.D (SysTick highest, PendSV
	// lowest among configurable handlers). Called once per core during
	// Start.
	ConfigurePreemption(core Core, intervalUS uint32)

	// PendContextSwitch sets the PendSV pending bit in the interrupt
	// control register (spec.md §4.E). Called from the SysTick handler and
	// from the hard-fault handler (spec.md §4.G).
	PendContextSwitch(core Core)

	// DisableLocalPreemption and EnableLocalPreemption implement
	// enter_critical/leave_critical (spec.md §4.H): they clear/set this
	// core's SysTick enable bit, not global interrupts.
	DisableLocalPreemption(core Core)
	EnableLocalPreemption(core Core)

	// AwaitTick blocks the calling thread until the next SysTick occurs on
	// core, per the termination trampoline's busy-loop contract
	// (spec.md §4.H). On real hardware this is a literal busy-loop; see
	// hal/simulated for the host backend.
	AwaitTick(core Core)

	// WaitForInterrupt executes the idle thread's wait-for-interrupt
	// instruction (spec.md §4.C).
	WaitForInterrupt(core Core)

	// LaunchCore1 starts entry running on the second core (spec.md §1: the
	// multicore-launch primitive is an external collaborator, assumed
	// available).
	LaunchCore1(entry func())

	// ActivityLED and IdleLED are optional status-LED hooks recovered from
	// original_source/ (SPEC_FULL.md §4); both may be no-ops.
	ActivityLED(core Core)
	IdleLED(core Core)

	// ResolveEntry returns an opaque, platform-specific token for fn,
	// suitable for embedding in a synthetic stack frame at the PC offset
	// (spec.md §4.A). On hal/rp2040 this is genuinely fn's code address;
	// on hal/simulated it is a lookup key into a host-side dispatch table,
	// since the simulated backend never performs a real exception return.
	ResolveEntry(fn func()) uintptr

	// TerminationTrampolineAddr returns the sentinel address stored in the
	// LR slot of every fresh frame (spec.md §4.A, §6).
	TerminationTrampolineAddr() uintptr

	// IdleEntryAddr returns the address of core's idle-loop body, used to
	// prepare that core's idle descriptor (spec.md §4.C).
	IdleEntryAddr(core Core) uintptr
}

// Dispatchable is implemented by platforms whose context-switch and
// hard-fault exception handlers are installed at runtime rather than
// fixed in a linked vector table. hal/rp2040's linked handlers call
// whatever its SetContextSwitchFunc/SetFaultFunc installed and have no use
// for this; hal/simulated has no vector table, so it exposes the same
// seam as an ordinary method call. Kernel initialization type-asserts for
// this interface and wires it when present.
type Dispatchable interface {
	InstallContextSwitchHandler(fn func(core Core))
	InstallFaultHandler(fn func(core Core))
}
