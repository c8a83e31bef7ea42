package kernel

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/picos-project/picos/hal"
)

// TestRace_ConcurrentRegisterAndContextSwitch exercises the thread table
// under the same kind of concurrent access the real dual-core target
// subjects it to: RegisterThread from one goroutine (a spawning thread,
// SPEC_FULL.md §4 scenario S4) racing against ContextSwitch on both
// cores. Run with -race; nothing here should ever trip the detector or
// violate spec.md §3 invariant 1 (SavedSP stays within its stack).
func TestRace_ConcurrentRegisterAndContextSwitch(t *testing.T) {
	tbl, p := newTestTable(t, 8)
	entry := p.ResolveEntry(func() {})
	term := p.TerminationTrampolineAddr()

	var wg sync.WaitGroup

	const registrants = 4
	wg.Add(registrants)
	for i := 0; i < registrants; i++ {
		go func() {
			defer wg.Done()
			stack := make([]uint32, IdleStackWords)
			tbl.RegisterThread(entry, term, stack, "")
		}()
	}

	const switches = 200
	for _, core := range []hal.Core{hal.Core0, hal.Core1} {
		wg.Add(1)
		go func(core hal.Core) {
			defer wg.Done()
			for i := 0; i < switches; i++ {
				cur := tbl.Current(core)
				tbl.ContextSwitch(core, cur.SavedSP)
			}
		}(core)
	}

	wg.Wait()

	for c := 0; c < hal.NumCores; c++ {
		d := tbl.Current(hal.Core(c))
		require.NotNil(t, d)
	}
	for _, d := range tbl.descs {
		require.True(t, d.withinStack(), "descriptor %d SavedSP escaped its stack", d.Pid)
	}
}

// TestRace_ConcurrentFaultAndTerminate exercises Fault and Terminate
// running concurrently on distinct cores against distinct descriptors,
// each under the single shared lock.
func TestRace_ConcurrentFaultAndTerminate(t *testing.T) {
	tbl, p := newTestTable(t, 4)
	pids := registerN(t, tbl, p, 2)

	for i, core := range []hal.Core{hal.Core0, hal.Core1} {
		cur := tbl.Current(core)
		tbl.ContextSwitch(core, cur.SavedSP)
		require.Equal(t, pids[i], tbl.Current(core).Pid)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		tbl.Fault(hal.Core0)
	}()
	go func() {
		defer wg.Done()
		done := make(chan struct{})
		go func() {
			tbl.Terminate(hal.Core1)
			close(done)
		}()
		p.FireTick(hal.Core1)
	}()
	wg.Wait()

	d0, _ := tbl.ThreadInfo(pids[0])
	require.Equal(t, StateFaulted, d0.State)
	d1, _ := tbl.ThreadInfo(pids[1])
	require.Equal(t, StateDone, d1.State)
}
