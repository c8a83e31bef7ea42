package kernel

import (
	"sync"
	"sync/atomic"

	"github.com/picos-project/picos/hal"
)

// Kernel is the user-facing surface named in spec.md §6: initialize,
// register thread, start, enter_critical/leave_critical. It owns the
// ThreadTable and the platform it was constructed against.
type Kernel struct {
	platform hal.Platform
	cfg      Config

	initOnce    sync.Once
	initialized atomic.Bool
	startOnce   sync.Once
	started     atomic.Bool

	table *ThreadTable
}

// New constructs a Kernel bound to platform. Initialize must still be
// called exactly once before any other operation (spec.md §6).
func New(platform hal.Platform, cfg Config) *Kernel {
	return &Kernel{platform: platform, cfg: cfg}
}

// Initialize prepares the idle descriptors and readies the thread table
// (spec.md §6, operation 1). It must be called exactly once before any
// registration or Start.
func (k *Kernel) Initialize() error {
	k.initOnce.Do(func() {
		term := k.platform.TerminationTrampolineAddr()
		k.table = NewThreadTable(k.platform, k.cfg, term)

		// On backends without a linked vector table (hal/simulated), the
		// context-switch and hard-fault exception handlers must be wired
		// at runtime instead; hal/rp2040 does not implement this, since its
		// linked handlers call functions installed with its own
		// SetContextSwitchFunc/SetFaultFunc.
		if d, ok := k.platform.(hal.Dispatchable); ok {
			d.InstallContextSwitchHandler(func(core hal.Core) {
				k.table.ContextSwitch(core, k.table.Current(core).SavedSP)
			})
			d.InstallFaultHandler(func(core hal.Core) {
				k.table.Fault(core)
			})
		}

		k.initialized.Store(true)
	})
	return nil
}

// RegisterThread claims a free descriptor, writes its synthetic frame, and
// marks it runnable (spec.md §6, operation 2; §4.A). It may be called from
// any thread, from the bootstrap before Start, or from a running thread to
// spawn a child (SPEC_FULL.md §4: the spawning-thread scenario, S4). name
// is optional and affects diagnostics only.
//
// Returns ErrCapacityExhausted, without mutating the table, if no
// descriptor is free (spec.md §8 property 1). Returns ErrInvalidStack if
// stack is too small to hold the exception frame.
func (k *Kernel) RegisterThread(entry func(), stack []uint32, name string) (pid int, err error) {
	if !k.initialized.Load() {
		return InvalidPID, ErrNotInitialized
	}
	if len(stack) < frameWords {
		return InvalidPID, ErrInvalidStack
	}

	entryAddr := k.platform.ResolveEntry(entry)
	term := k.platform.TerminationTrampolineAddr()

	id := k.table.RegisterThread(entryAddr, term, stack, name)
	if id == InvalidPID {
		return InvalidPID, ErrCapacityExhausted
	}
	return id, nil
}

// Start launches the scheduler on both cores and never returns
// (spec.md §6, operation 3). Core 1 is launched via the platform's
// multicore-launch primitive; core 0 runs in the calling goroutine/thread.
//
// Each core configures its SysTick (spec.md §4.E) and cold-switches into
// its idle stack (spec.md §2) — Start itself never calls ContextSwitch;
// every subsequent dispatch flows from the SysTick/PendSV path the
// platform drives.
func (k *Kernel) Start() error {
	if !k.initialized.Load() {
		return ErrNotInitialized
	}
	if k.started.Swap(true) {
		return ErrAlreadyStarted
	}

	k.platform.ConfigurePreemption(hal.Core1, k.intervalUS())
	k.platform.LaunchCore1(func() { k.runCore(hal.Core1) })

	k.platform.ConfigurePreemption(hal.Core0, k.intervalUS())
	k.runCore(hal.Core0)
	return nil
}

func (k *Kernel) intervalUS() uint32 {
	if k.cfg.IntervalUS == 0 {
		return DefaultIntervalUS
	}
	return k.cfg.IntervalUS
}

// runCore is the per-core scheduler loop: a cold switch into the idle
// stack, followed by forever yielding to the platform's interrupt-driven
// dispatch (spec.md §2, §4.C). On real hardware this never executes past
// WaitForInterrupt in any meaningful sense — SysTick/PendSV asynchronously
// preempt it — but the call is what the idle descriptor's own frame
// ultimately resumes into, on both the rp2040 and simulated backends.
func (k *Kernel) runCore(core hal.Core) {
	for {
		k.platform.IdleLED(core)
		k.platform.WaitForInterrupt(core)
	}
}

// EnterCritical and LeaveCritical implement the critical-section gates
// (spec.md §6, operation 4; §4.E, §4.H): they disable/enable only this
// core's SysTick, not global interrupts, so other exceptions continue to
// service hardware while the gate is held. Nestable-unsafe, as specified.
func (k *Kernel) EnterCritical() {
	k.platform.DisableLocalPreemption(k.platform.CurrentCore())
}

func (k *Kernel) LeaveCritical() {
	k.platform.EnableLocalPreemption(k.platform.CurrentCore())
}

// ThreadInfo exposes a descriptor snapshot for post-mortem inspection
// (SPEC_FULL.md §4).
func (k *Kernel) ThreadInfo(pid int) (Descriptor, bool) {
	if !k.initialized.Load() {
		return Descriptor{}, false
	}
	return k.table.ThreadInfo(pid)
}

// Metrics returns the kernel's dispatch/fault/pin counters (SPEC_FULL.md §2.B/§3).
func (k *Kernel) Metrics() Snapshot {
	if !k.initialized.Load() {
		return Snapshot{}
	}
	return k.table.Metrics.Load()
}

// Table returns the underlying thread table, for the context-switch and
// hard-fault handlers to call ContextSwitch/Fault directly. Exposed rather
// than duplicated on Kernel because those handlers run at interrupt
// context and should not pay for Kernel's initialization checks.
func (k *Kernel) Table() *ThreadTable {
	return k.table
}
