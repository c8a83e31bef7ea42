package kernel

import (
	"sync/atomic"

	"github.com/picos-project/picos/hal"
)

// Config carries the compile-time configuration spec.md §6 lists: core
// count (fixed by hal.NumCores), user-thread capacity, and the scheduler
// interval.
type Config struct {
	// UserCapacity is U, the number of user-thread slots (spec.md §3).
	// Defaults to DefaultUserCapacity if zero.
	UserCapacity int

	// IntervalUS is the SysTick reload interval in microseconds
	// (spec.md §4.E). Defaults to DefaultIntervalUS if zero.
	IntervalUS uint32

	// IdleStacks supplies the per-core idle-thread stack regions
	// (spec.md §4.C). Each must be at least frameWords long; a nil entry
	// gets an internally-allocated stack of IdleStackWords words (the
	// reference size: 100 words).
	IdleStacks [hal.NumCores][]uint32
}

const (
	// DefaultUserCapacity is the reference configuration's U (spec.md §3).
	DefaultUserCapacity = 8
	// DefaultIntervalUS is the reference scheduler interval (spec.md §4.E).
	DefaultIntervalUS uint32 = 10_000
	// IdleStackWords is the reference idle-stack size (spec.md §4.C).
	IdleStackWords = 100
)

// ThreadTable is the fixed-size sequence of N = NumCores + U descriptors
// (spec.md §3). Indices [0, NumCores) are the per-core idle descriptors;
// indices [NumCores, N) are the user-thread pool.
type ThreadTable struct {
	platform hal.Platform
	descs    []Descriptor

	// current holds, per core, a pointer to the descriptor currently
	// executing there. Written by ContextSwitch while it holds the lock,
	// and read without the lock by Current (spec.md §9 design notes): each
	// core writes only its own slot.
	current [hal.NumCores]atomic.Pointer[Descriptor]

	// Metrics exposes low-overhead dispatch/fault/pin counters to callers
	// (internal/diag, cmd/picos-sim, scenario tests). Never consulted by
	// the scheduler itself.
	Metrics Metrics
}

// NewThreadTable constructs the table and the per-core idle descriptors
// (spec.md §4.C), pre-pinned and permanently runnable. terminationTrampoline
// is the sentinel address stored in every fresh frame's LR slot
// (spec.md §4.A) — idle descriptors also get it, though they never return.
// Each core's idle entry address is obtained from platform.IdleEntryAddr,
// since the two cores' idle loops may legitimately be distinct code on some
// backends.
func NewThreadTable(platform hal.Platform, cfg Config, terminationTrampoline uintptr) *ThreadTable {
	userCap := cfg.UserCapacity
	if userCap <= 0 {
		userCap = DefaultUserCapacity
	}

	t := &ThreadTable{
		platform: platform,
		descs:    make([]Descriptor, hal.NumCores+userCap),
	}

	for c := 0; c < hal.NumCores; c++ {
		stack := cfg.IdleStacks[c]
		if len(stack) == 0 {
			stack = make([]uint32, IdleStackWords)
		}
		d := &t.descs[c]
		d.Pid = c
		d.Name = idleName(c)
		d.CPU = AssignedCPU(c)
		d.State = StateRunnable
		d.stack = stack
		d.SavedSP = prepareStack(stack, platform.IdleEntryAddr(hal.Core(c)), terminationTrampoline)
		t.current[c].Store(d)
	}

	for i := hal.NumCores; i < len(t.descs); i++ {
		t.descs[i].Pid = i
		t.descs[i].State = StateFree
		t.descs[i].CPU = Unpinned
	}

	return t
}

func idleName(core int) string {
	switch core {
	case 0:
		return "idle0"
	case 1:
		return "idle1"
	default:
		return "idle"
	}
}

// users returns the user-pool slice, indices [NumCores, N).
func (t *ThreadTable) users() []Descriptor {
	return t.descs[hal.NumCores:]
}

// RegisterThread claims the first free user descriptor under the lock,
// writes its synthetic exception-return frame, and marks it runnable
// (spec.md §4.A). Returns InvalidPID, without mutating the table, if no
// descriptor is free (spec.md §8 property 1).
func (t *ThreadTable) RegisterThread(entry uintptr, terminationTrampoline uintptr, stack []uint32, name string) int {
	lock := t.platform.Spinlock()
	lock.Lock()
	defer lock.Unlock()

	users := t.users()
	for i := range users {
		d := &users[i]
		if d.State != StateFree && d.State != StateDone {
			continue
		}

		d.SavedSP = prepareStack(stack, entry, terminationTrampoline)
		d.CPU = Unpinned
		d.State = StateRunnable
		d.stack = stack
		if name == "" {
			name = defaultThreadName(d.Pid)
		}
		d.Name = name
		return d.Pid
	}

	return InvalidPID
}

func defaultThreadName(pid int) string {
	return "thread-" + itoa(pid)
}

// itoa avoids pulling in strconv for a single-digit-heavy, allocation-free
// conversion; U is small (single digits in the reference configuration),
// but this still handles arbitrarily large pids correctly.
func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// ThreadInfo returns a snapshot of descriptor pid's fields, for host-side
// post-mortem inspection (SPEC_FULL.md §4). It acquires the lock, since
// these fields are only safe to read while held (spec.md §3 invariant 4).
func (t *ThreadTable) ThreadInfo(pid int) (Descriptor, bool) {
	if pid < 0 || pid >= len(t.descs) {
		return Descriptor{}, false
	}
	lock := t.platform.Spinlock()
	lock.Lock()
	defer lock.Unlock()
	d := t.descs[pid]
	d.stack = nil
	return d, true
}

// Current returns the descriptor currently assigned to core, without the
// lock — matching the trampoline's own unsynchronized read of its core's
// current-thread entry (spec.md §9 design notes).
func (t *ThreadTable) Current(core hal.Core) *Descriptor {
	return t.current[core].Load()
}
