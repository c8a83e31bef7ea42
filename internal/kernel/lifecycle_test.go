package kernel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/picos-project/picos/hal"
)

func TestFault_QuarantinesCurrentThread(t *testing.T) {
	tbl, p := newTestTable(t, 2)
	pids := registerN(t, tbl, p, 1)

	idle := tbl.Current(hal.Core0)
	tbl.ContextSwitch(hal.Core0, idle.SavedSP)
	require.Equal(t, pids[0], tbl.Current(hal.Core0).Pid)

	tbl.Fault(hal.Core0)

	d, ok := tbl.ThreadInfo(pids[0])
	require.True(t, ok)
	require.Equal(t, StateFaulted, d.State)
	require.False(t, d.State.eligible())

	require.Equal(t, uint64(1), tbl.Metrics.Load().Faults)
}

func TestFault_PendsContextSwitch(t *testing.T) {
	tbl, p := newTestTable(t, 2)
	registerN(t, tbl, p, 1)
	idle := tbl.Current(hal.Core0)
	tbl.ContextSwitch(hal.Core0, idle.SavedSP)

	tbl.Fault(hal.Core0)

	require.True(t, p.DrainPendSV(hal.Core0), "Fault did not pend a context switch")
}

func TestTerminate_FreesDescriptorAndNeverReturns(t *testing.T) {
	tbl, p := newTestTable(t, 2)
	pids := registerN(t, tbl, p, 1)
	idle := tbl.Current(hal.Core0)
	tbl.ContextSwitch(hal.Core0, idle.SavedSP)
	require.Equal(t, pids[0], tbl.Current(hal.Core0).Pid)

	done := make(chan struct{})
	go func() {
		tbl.Terminate(hal.Core0)
		close(done) // unreachable; Terminate blocks forever past AwaitTick
	}()

	// Give Terminate a chance to run up to its AwaitTick block.
	time.Sleep(10 * time.Millisecond)

	d, ok := tbl.ThreadInfo(pids[0])
	require.True(t, ok)
	require.Equal(t, StateDone, d.State)
	require.Zero(t, d.SavedSP)
	require.Equal(t, Unpinned, d.CPU)

	select {
	case <-done:
		t.Fatal("Terminate returned, but spec.md §4.H requires it never does")
	default:
	}

	p.FireTick(hal.Core0)
	// Terminate proceeds past AwaitTick, pends a context switch, then
	// blocks forever on select{}; done is still never closed.
	time.Sleep(10 * time.Millisecond)
	select {
	case <-done:
		t.Fatal("Terminate returned")
	default:
	}
}

func TestReclaim_MovesDoneBackToFree(t *testing.T) {
	tbl, p := newTestTable(t, 1)
	pids := registerN(t, tbl, p, 1)
	tbl.descs[pids[0]].State = StateDone
	tbl.descs[pids[0]].Name = "finished"

	tbl.Reclaim(pids[0])

	d, ok := tbl.ThreadInfo(pids[0])
	require.True(t, ok)
	require.Equal(t, StateFree, d.State)
	require.Equal(t, "", d.Name)
}

func TestReclaim_IgnoresNonDoneAndOutOfRange(t *testing.T) {
	tbl, p := newTestTable(t, 1)
	pids := registerN(t, tbl, p, 1)

	tbl.Reclaim(pids[0]) // still Runnable, not Done: no-op
	d, _ := tbl.ThreadInfo(pids[0])
	require.Equal(t, StateRunnable, d.State)

	tbl.Reclaim(-1)
	tbl.Reclaim(len(tbl.descs) + 5) // must not panic
}
