package simulated

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/picos-project/picos/hal"
)

func TestSpinlock_MutualExclusion(t *testing.T) {
	var lock Spinlock
	var counter int
	var wg sync.WaitGroup

	const goroutines = 20
	const iterations = 500
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < iterations; j++ {
				lock.Lock()
				counter++
				lock.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, goroutines*iterations, counter)
}

func TestPlatform_ResolveEntryTokensAreReservedAware(t *testing.T) {
	p := New(nil)
	fn := func() {}
	tok := p.ResolveEntry(fn)
	require.Greater(t, tok, p.TerminationTrampolineAddr())
	require.Greater(t, tok, p.IdleEntryAddr(hal.Core0))
	require.Greater(t, tok, p.IdleEntryAddr(hal.Core1))

	got, ok := p.Entry(tok)
	require.True(t, ok)
	require.NotNil(t, got)

	_, ok = p.Entry(p.TerminationTrampolineAddr())
	require.False(t, ok, "reserved token must never resolve to a registered entry")
}

func TestPlatform_CurrentCore_DefaultsToCore0WhenUnbound(t *testing.T) {
	p := New(nil)
	done := make(chan hal.Core, 1)
	go func() {
		done <- p.CurrentCore()
	}()
	require.Equal(t, hal.Core0, <-done)
}

func TestPlatform_BindCore_IsPerGoroutine(t *testing.T) {
	p := New(nil)
	var wg sync.WaitGroup
	wg.Add(2)
	results := make(chan hal.Core, 2)
	go func() {
		defer wg.Done()
		p.BindCore(hal.Core1)
		results <- p.CurrentCore()
	}()
	go func() {
		defer wg.Done()
		// Unbound: must read back Core0 regardless of the other
		// goroutine's binding.
		results <- p.CurrentCore()
	}()
	wg.Wait()
	close(results)
	seen := map[hal.Core]int{}
	for c := range results {
		seen[c]++
	}
	require.Equal(t, 1, seen[hal.Core0])
	require.Equal(t, 1, seen[hal.Core1])
}

func TestPlatform_PendContextSwitch_DedupesWhilePending(t *testing.T) {
	p := New(nil)
	p.PendContextSwitch(hal.Core0)
	p.PendContextSwitch(hal.Core0) // must not block despite a full channel
	require.True(t, p.DrainPendSV(hal.Core0))
	require.False(t, p.DrainPendSV(hal.Core0))
}

func TestPlatform_WaitForInterrupt_UnblocksOnTick(t *testing.T) {
	p := New(nil)
	done := make(chan struct{})
	go func() {
		p.WaitForInterrupt(hal.Core0)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("WaitForInterrupt returned before any tick")
	case <-time.After(20 * time.Millisecond):
	}

	p.FireTick(hal.Core0)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("WaitForInterrupt never unblocked after FireTick")
	}
}

func TestPlatform_AwaitTick_DoesNotStealDispatcherPendSV(t *testing.T) {
	p := New(nil)
	var gotCore hal.Core
	var wg sync.WaitGroup
	var once sync.Once
	wg.Add(1)
	// The handler runs on every tick; only the first call is recorded.
	p.InstallContextSwitchHandler(func(core hal.Core) {
		once.Do(func() {
			gotCore = core
			wg.Done()
		})
	})
	p.ConfigurePreemption(hal.Core0, 1)

	awaitDone := make(chan struct{})
	go func() {
		p.AwaitTick(hal.Core0)
		close(awaitDone)
	}()

	<-awaitDone
	wg.Wait()
	require.Equal(t, hal.Core0, gotCore)
}

func TestPlatform_DisableEnableLocalPreemption_GatesTicks(t *testing.T) {
	p := New(nil)
	var count int
	var mu sync.Mutex
	p.InstallContextSwitchHandler(func(core hal.Core) {
		mu.Lock()
		count++
		mu.Unlock()
	})
	p.ConfigurePreemption(hal.Core0, 1)

	p.DisableLocalPreemption(hal.Core0)
	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	gated := count
	mu.Unlock()
	require.Zero(t, gated)

	p.EnableLocalPreemption(hal.Core0)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return count > 0
	}, time.Second, time.Millisecond)
}

func TestPlatform_LaunchCore1_InvokesEntry(t *testing.T) {
	p := New(nil)
	done := make(chan struct{})
	p.LaunchCore1(func() { close(done) })
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("LaunchCore1 never invoked entry")
	}
}

func TestPlatform_LEDCounters(t *testing.T) {
	p := New(nil)
	p.ActivityLED(hal.Core0)
	p.ActivityLED(hal.Core0)
	p.IdleLED(hal.Core1)
	require.Equal(t, uint64(2), p.ActivityLEDCount(hal.Core0))
	require.Equal(t, uint64(1), p.IdleCount(hal.Core1))
}
