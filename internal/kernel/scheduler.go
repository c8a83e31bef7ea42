package kernel

import "github.com/picos-project/picos/hal"

// ContextSwitch implements the behavioral contract of the PendSV trampoline
// (spec.md §4.D, steps 2–4):
//
//  1. (step 1, CPU hardware: already done before this is called)
//  2. record the preempted thread's saved stack pointer;
//  3. select the next thread to run, under the lock;
//  4. return the new current thread's saved stack pointer, for the
//     trampoline to reload into PSP.
//
// The lock is held only across step 3; it is released before this function
// returns, so it is never held across the trampoline's register restore
// (spec.md §4.B).
//
// preemptedSP is always stored into the current descriptor. There is no
// cold-start case here: Start enters each core's idle loop without ever
// calling ContextSwitch, per spec.md §2 ("jumps into its idle stack via a
// cold stack switch").
func (t *ThreadTable) ContextSwitch(core hal.Core, preemptedSP uintptr) (resumedSP uintptr) {
	cur := t.current[core].Load()
	cur.SavedSP = preemptedSP

	lock := t.platform.Spinlock()
	lock.Lock()
	next := t.selectLocked(core, cur)
	t.current[core].Store(next)
	lock.Unlock()

	t.Metrics.Dispatched(core, next.Pid < hal.NumCores)

	return next.SavedSP
}

// selectLocked implements the round-robin-with-affinity policy
// (spec.md §4.F). Callers must hold the lock.
func (t *ThreadTable) selectLocked(core hal.Core, cur *Descriptor) *Descriptor {
	users := t.users()
	U := len(users)
	if U == 0 {
		return &t.descs[core]
	}

	// Rotation starts immediately after cur within the user pool, wrapping.
	// When cur is a (pinned) idle descriptor, cur.Pid < hal.NumCores, and
	// the arithmetic below naturally begins at index 0 of the user pool —
	// the "ties and edges" case spec.md §4.F calls out explicitly.
	start := 0
	if cur.Pid >= hal.NumCores {
		start = ((cur.Pid - hal.NumCores) + 1) % U
	}

	for i := 0; i < U; i++ {
		idx := (start + i) % U
		d := &users[idx]
		if !d.State.eligible() {
			continue
		}
		if d.CPU != Unpinned && int(d.CPU) != int(core) {
			continue
		}
		if d.CPU == Unpinned {
			// Pinning (spec.md §4.F.3): once pinned, a user thread is
			// never re-pinned. The lock serializes concurrent selection
			// on both cores, so the second core to reach here always
			// observes the first core's pinning decision.
			d.CPU = AssignedCPU(core)
			t.Metrics.Pinned()
		}
		return d
	}

	return &t.descs[core]
}
