package kernel

import "github.com/picos-project/picos/hal"

// Terminate implements the termination trampoline (spec.md §4.H): reached
// when a user thread returns from its entry function, because the initial
// stack frame named this trampoline as the return address. Under the lock
// it frees the current descriptor — clearing its saved stack pointer and
// affinity — then busy-waits for the next SysTick, which pends the
// context switch and dispatches a different thread.
//
// Terminate never returns (spec.md §4.H, §8 property 5): the calling core
// never executes past this function as the terminated thread again.
func (t *ThreadTable) Terminate(core hal.Core) {
	lock := t.platform.Spinlock()
	lock.Lock()
	cur := t.current[core].Load()
	cur.State = StateDone
	cur.SavedSP = 0
	cur.CPU = Unpinned
	lock.Unlock()

	t.platform.AwaitTick(core)
	t.platform.PendContextSwitch(core)

	// The descriptor this goroutine/handler represented is gone; nothing
	// ever resumes this call frame as that thread again.
	select {}
}

// Reclaim moves a StateDone descriptor back to StateFree, discarding its
// post-mortem record. spec.md §9(b) treats StateFree and StateDone as
// functionally identical for selection; Reclaim exists only so long-running
// simulator/host processes can bound the memory a post-mortem trail
// consumes (the reference C implementation has no analogue, since it never
// retains a name field).
func (t *ThreadTable) Reclaim(pid int) {
	if pid < hal.NumCores || pid >= len(t.descs) {
		return
	}
	lock := t.platform.Spinlock()
	lock.Lock()
	defer lock.Unlock()
	d := &t.descs[pid]
	if d.State == StateDone {
		d.State = StateFree
		d.Name = ""
	}
}
