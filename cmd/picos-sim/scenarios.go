package main

import (
	"fmt"
	"time"

	"github.com/picos-project/picos/hal"
	"github.com/picos-project/picos/internal/diag"
	"github.com/picos-project/picos/internal/kernel"
)

const tickWait = 50 * time.Millisecond // several simulated ticks at the default 10ms interval

// scenarioS1 registers two never-returning entry functions and checks
// both cores keep dispatching (never settle permanently on idle).
func scenarioS1(log *diag.Log) error {
	h := newHarness(kernel.Config{UserCapacity: 4})
	for i := 0; i < 2; i++ {
		if _, err := h.register(func(core hal.Core) { select {} }, 128, fmt.Sprintf("s1-%d", i)); err != nil {
			return err
		}
	}
	h.start()
	time.Sleep(tickWait)

	snap := h.kernel.Metrics()
	for c := 0; c < hal.NumCores; c++ {
		if snap.Dispatches[c]-snap.IdleDispatches[c] == 0 {
			return fmt.Errorf("core %d never dispatched a user thread", c)
		}
	}
	return nil
}

// scenarioS2 registers one thread that returns immediately and checks its
// descriptor is in StateDone after tickWait (a few scheduler intervals).
func scenarioS2(log *diag.Log) error {
	h := newHarness(kernel.Config{UserCapacity: 2})
	pid, err := h.register(func(core hal.Core) {}, 128, "s2")
	if err != nil {
		return err
	}
	h.start()
	time.Sleep(tickWait)

	info, ok := h.kernel.ThreadInfo(pid)
	if !ok {
		return fmt.Errorf("pid %d vanished from the table", pid)
	}
	if info.State != kernel.StateDone {
		return fmt.Errorf("pid %d state = %v, want done", pid, info.State)
	}
	return nil
}

// scenarioS3 registers three threads where the middle one simulates an
// illegal store by invoking the fault path directly (host Go cannot
// safely dereference an arbitrary address the way the reference body
// does), and checks only that descriptor becomes faulted while its
// siblings keep running.
func scenarioS3(log *diag.Log) error {
	h := newHarness(kernel.Config{UserCapacity: 4})
	var pids [3]int
	for i := range pids {
		i := i
		var err error
		if i == 1 {
			pids[i], err = h.register(func(core hal.Core) {
				h.kernel.Table().Fault(core)
				select {} // a faulted thread never returns to its own body
			}, 128, "s3-faulter")
		} else {
			pids[i], err = h.register(func(core hal.Core) { select {} }, 128, "s3-ok")
		}
		if err != nil {
			return err
		}
	}
	h.start()
	time.Sleep(tickWait)

	info, ok := h.kernel.ThreadInfo(pids[1])
	if !ok || info.State != kernel.StateFaulted {
		return fmt.Errorf("middle thread state = %+v, want faulted", info)
	}
	for _, pid := range []int{pids[0], pids[2]} {
		info, ok := h.kernel.ThreadInfo(pid)
		if !ok || info.State != kernel.StateRunnable {
			return fmt.Errorf("sibling pid %d state = %+v, want runnable", pid, info)
		}
	}
	return nil
}

// scenarioS4 registers a spawning thread A that registers thread B once
// running, then returns; checks that B actually runs within a second. The
// final states of A's and B's descriptors are not checked.
func scenarioS4(log *diag.Log) error {
	h := newHarness(kernel.Config{UserCapacity: 4})
	bRan := make(chan struct{})

	_, err := h.register(func(core hal.Core) {
		_, err := h.register(func(core hal.Core) {
			close(bRan)
		}, 128, "s4-b")
		if err != nil {
			panic(err)
		}
	}, 128, "s4-a")
	if err != nil {
		return err
	}

	h.start()

	select {
	case <-bRan:
	case <-time.After(time.Second):
		return fmt.Errorf("thread B never ran")
	}
	return nil
}

// scenarioS5 registers U+1 threads back-to-back and checks the first U
// succeed while the last is rejected for capacity.
func scenarioS5(log *diag.Log) error {
	const U = kernel.DefaultUserCapacity
	h := newHarness(kernel.Config{UserCapacity: U})

	for i := 0; i < U; i++ {
		if _, err := h.register(func(core hal.Core) { select {} }, 128, fmt.Sprintf("s5-%d", i)); err != nil {
			return fmt.Errorf("registration %d: %w", i, err)
		}
	}

	_, err := h.register(func(core hal.Core) { select {} }, 128, "s5-overflow")
	if err == nil {
		return fmt.Errorf("U+1th registration unexpectedly succeeded")
	}
	return nil
}

// scenarioS6 has a thread enter the critical section, hold it across
// several ticks, then leave, checking no dispatch lands on its own core
// during the gated window while the other core keeps scheduling.
func scenarioS6(log *diag.Log) error {
	h := newHarness(kernel.Config{UserCapacity: 4})

	left := make(chan struct{})
	_, err := h.register(func(core hal.Core) {
		h.kernel.EnterCritical()
		before := h.kernel.Metrics().Dispatches[core]
		time.Sleep(5 * tickWait)
		after := h.kernel.Metrics().Dispatches[core]
		h.kernel.LeaveCritical()
		if after != before {
			panic(fmt.Sprintf("dispatch count changed during critical section: %d -> %d", before, after))
		}
		close(left)
	}, 128, "s6")
	if err != nil {
		return err
	}

	// A sibling thread on whichever core ends up the other one, to confirm
	// its scheduling is unaffected by the first thread's local gate.
	_, err = h.register(func(core hal.Core) { select {} }, 128, "s6-sibling")
	if err != nil {
		return err
	}

	h.start()

	select {
	case <-left:
	case <-time.After(time.Second):
		return fmt.Errorf("critical section thread never completed")
	}
	return nil
}
