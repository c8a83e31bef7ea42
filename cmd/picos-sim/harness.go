package main

import (
	"sync"

	"github.com/picos-project/picos/hal"
	"github.com/picos-project/picos/hal/simulated"
	"github.com/picos-project/picos/internal/kernel"
)

// harness bridges the thread table's logical dispatch decisions to actual
// Go execution: picos's scheduler never preempts arbitrary host code mid-
// instruction (there is no hardware to do that on), so each user
// descriptor's "body" runs as an ordinary goroutine, started the first
// time ContextSwitch ever selects that descriptor, and left running
// until it returns (-> Terminate) or explicitly faults (-> Fault,
// followed by blocking forever, matching spec.md §4.G's "never returns to
// faulting code").
//
// This is strictly a demo/test-harness concern: internal/kernel itself
// has no notion of "thread bodies" at all, only stack pointers and
// selection, which is exactly what internal/kernel/scheduler_test.go
// exercises directly, without needing a harness.
type harness struct {
	platform *simulated.Platform
	kernel   *kernel.Kernel

	mu      sync.Mutex
	bodies  map[int]func(core hal.Core)
	started map[int]bool
}

func newHarness(cfg kernel.Config) *harness {
	p := simulated.New(nil)
	k := kernel.New(p, cfg)
	if err := k.Initialize(); err != nil {
		panic(err) // Initialize never errors; a panic here means a real bug
	}

	h := &harness{
		platform: p,
		kernel:   k,
		bodies:   map[int]func(core hal.Core){},
		started:  map[int]bool{},
	}

	table := k.Table()
	p.InstallContextSwitchHandler(func(core hal.Core) {
		cur := table.Current(core)
		newSP := table.ContextSwitch(core, cur.SavedSP)
		_ = newSP
		h.maybeLaunch(core)
	})
	p.InstallFaultHandler(func(core hal.Core) {
		table.Fault(core)
	})

	return h
}

// register wraps Kernel.RegisterThread, additionally recording the body
// the harness should run once this pid is first dispatched. body receives
// the core it was dispatched to, for BindCore/EnterCritical correctness.
func (h *harness) register(body func(core hal.Core), stackWords int, name string) (int, error) {
	entry := func() {} // the real frame only needs a resolvable, never-called token; actual execution is driven by maybeLaunch
	stack := make([]uint32, stackWords)
	pid, err := h.kernel.RegisterThread(entry, stack, name)
	if err != nil {
		return pid, err
	}
	h.mu.Lock()
	h.bodies[pid] = body
	h.mu.Unlock()
	return pid, nil
}

func (h *harness) maybeLaunch(core hal.Core) {
	d := h.kernel.Table().Current(core)
	if d.Pid < hal.NumCores {
		return // idle descriptor: nothing to run
	}

	h.mu.Lock()
	if h.started[d.Pid] {
		h.mu.Unlock()
		return
	}
	h.started[d.Pid] = true
	body := h.bodies[d.Pid]
	h.mu.Unlock()

	if body == nil {
		return
	}
	go func() {
		h.platform.BindCore(core)
		body(core)
		h.kernel.Table().Terminate(core)
	}()
}

func (h *harness) start() {
	go func() {
		h.platform.BindCore(hal.Core0)
		_ = h.kernel.Start()
	}()
}
