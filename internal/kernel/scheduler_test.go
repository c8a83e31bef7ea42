package kernel

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/picos-project/picos/hal"
	"github.com/picos-project/picos/hal/simulated"
)

func registerN(t *testing.T, tbl *ThreadTable, p *simulated.Platform, n int) []int {
	t.Helper()
	entry := p.ResolveEntry(func() {})
	term := p.TerminationTrampolineAddr()
	pids := make([]int, n)
	for i := 0; i < n; i++ {
		stack := make([]uint32, IdleStackWords)
		pid := tbl.RegisterThread(entry, term, stack, "")
		require.NotEqual(t, InvalidPID, pid)
		pids[i] = pid
	}
	return pids
}

func TestContextSwitch_IdleToUserWhenOneRunnable(t *testing.T) {
	tbl, p := newTestTable(t, 4)
	pids := registerN(t, tbl, p, 1)

	idle := tbl.Current(hal.Core0)
	sp := tbl.ContextSwitch(hal.Core0, idle.SavedSP)

	cur := tbl.Current(hal.Core0)
	require.Equal(t, pids[0], cur.Pid)
	require.Equal(t, sp, cur.SavedSP)
	require.Equal(t, AssignedCPU(hal.Core0), cur.CPU)
}

func TestContextSwitch_RoundRobinAcrossUserThreads(t *testing.T) {
	tbl, p := newTestTable(t, 4)
	pids := registerN(t, tbl, p, 3)

	seen := map[int]bool{}
	core := hal.Core0
	cur := tbl.Current(core)
	for i := 0; i < len(pids); i++ {
		tbl.ContextSwitch(core, cur.SavedSP)
		cur = tbl.Current(core)
		seen[cur.Pid] = true
	}
	for _, pid := range pids {
		require.True(t, seen[pid], "pid %d never dispatched", pid)
	}
}

func TestContextSwitch_FallsBackToIdleWhenNothingEligible(t *testing.T) {
	tbl, _ := newTestTable(t, 4) // no user threads registered at all
	idle := tbl.Current(hal.Core0)
	sp := tbl.ContextSwitch(hal.Core0, idle.SavedSP)
	cur := tbl.Current(hal.Core0)
	require.Equal(t, int(hal.Core0), cur.Pid)
	require.Equal(t, sp, cur.SavedSP)
}

func TestContextSwitch_FirstDispatchPinsPermanently(t *testing.T) {
	tbl, p := newTestTable(t, 4)
	pids := registerN(t, tbl, p, 2)

	cur := tbl.Current(hal.Core0)
	tbl.ContextSwitch(hal.Core0, cur.SavedSP)
	first := tbl.Current(hal.Core0)
	require.Contains(t, pids, first.Pid)
	require.Equal(t, AssignedCPU(hal.Core0), first.CPU)

	// Core1 selecting should skip the thread now pinned to core0.
	curC1 := tbl.Current(hal.Core1)
	tbl.ContextSwitch(hal.Core1, curC1.SavedSP)
	second := tbl.Current(hal.Core1)
	require.NotEqual(t, first.Pid, second.Pid)
	require.Equal(t, AssignedCPU(hal.Core1), second.CPU)
}

func TestContextSwitch_PinnedThreadOnlyDispatchedOnOwnCore(t *testing.T) {
	tbl, p := newTestTable(t, 2)
	pids := registerN(t, tbl, p, 1)

	cur := tbl.Current(hal.Core0)
	tbl.ContextSwitch(hal.Core0, cur.SavedSP)
	first := tbl.Current(hal.Core0)
	require.Equal(t, pids[0], first.Pid)

	// The only user thread is now pinned to core0; core1 must fall back
	// to its own idle descriptor, never dispatching the pinned thread.
	curC1 := tbl.Current(hal.Core1)
	tbl.ContextSwitch(hal.Core1, curC1.SavedSP)
	second := tbl.Current(hal.Core1)
	require.Equal(t, int(hal.Core1), second.Pid)
}

func TestContextSwitch_FaultedAndDoneAreIneligible(t *testing.T) {
	tbl, p := newTestTable(t, 2)
	pids := registerN(t, tbl, p, 2)
	tbl.descs[pids[0]].State = StateFaulted
	tbl.descs[pids[1]].State = StateDone

	idle := tbl.Current(hal.Core0)
	tbl.ContextSwitch(hal.Core0, idle.SavedSP)
	cur := tbl.Current(hal.Core0)
	require.Equal(t, int(hal.Core0), cur.Pid)
}
