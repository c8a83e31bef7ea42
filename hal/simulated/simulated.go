// Package simulated is the host backend for hal.Platform: it models the
// RP2040 spinlock as an atomic compare-and-swap cell, SysTick as a
// time.Ticker per core, and the PendSV pending bit as a single-slot
// channel, following the spin/delay-loop style the donor pack's
// other_examples reference spinlocks use (busy-wait CAS, no suspension)
// rather than a sync.Mutex, so the behavior under test matches the real
// hardware's discipline: Lock never suspends the calling goroutine.
//
// It never touches memory-mapped registers — there are none on a host —
// and never allocates inside a locked section.
package simulated

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/picos-project/picos/hal"
)

// Spinlock is a busy-wait mutual-exclusion cell, the host stand-in for the
// RP2040's hardware spinlock block (spec.md §4.B). Lock never suspends the
// calling goroutine; it spins, yielding the processor with runtime.Gosched
// so the lock holder (running on the other simulated core) can make
// progress — the same discipline a bare spin with no Gosched would give on
// real silicon, adapted for Go's cooperative scheduler.
type Spinlock struct {
	held atomic.Bool
}

func (s *Spinlock) Lock() {
	for !s.held.CompareAndSwap(false, true) {
		runtime.Gosched()
	}
}

func (s *Spinlock) Unlock() {
	s.held.Store(false)
}

// Platform implements hal.Platform entirely in terms of goroutines,
// channels, and atomics. Construct with New.
//
// Two distinct signals exist per core, mirroring the two separate
// hardware events spec.md §4.D-E describe: wake, fired directly by the
// ticker, is what WaitForInterrupt and AwaitTick block on (the "an
// interrupt occurred" condition a WFI instruction reacts to); pendsv,
// posted by PendContextSwitch, is what the installed context-switch
// handler consumes (the pending-bit condition PendSV itself reacts to).
// Conflating the two would let WaitForInterrupt silently steal the token
// PendSV's handler goroutine is waiting for.
type Platform struct {
	lock hal.Spinlock

	wake      [hal.NumCores]chan struct{}
	pendsv    [hal.NumCores]chan struct{}
	tickers   [hal.NumCores]*Ticker
	localGate [hal.NumCores]atomic.Bool // true while this core's SysTick is disabled

	coreOf    sync.Map // goroutine id (uint64) -> hal.Core
	entries   sync.Map // uintptr token -> func()
	nextToken atomic.Uint64

	ledCounter [hal.NumCores]atomic.Uint64
	idleCount  [hal.NumCores]atomic.Uint64

	switchHandler atomic.Pointer[func(core hal.Core)]
	faultHandler  atomic.Pointer[func(core hal.Core)]
	dispatchOnce  [hal.NumCores]sync.Once

	launch func(func())
}

// New constructs a simulated Platform. launch, if nil, defaults to `go`
// (a plain goroutine) for LaunchCore1 — tests that need a real OS thread
// per core (to exercise true parallel dispatch) may supply one that calls
// runtime.LockOSThread first.
func New(launch func(func())) *Platform {
	if launch == nil {
		launch = func(f func()) { go f() }
	}
	p := &Platform{launch: launch}
	for c := 0; c < hal.NumCores; c++ {
		p.wake[c] = make(chan struct{}, 1)
		p.pendsv[c] = make(chan struct{}, 1)
	}
	p.lock = &Spinlock{}
	// Tokens 0-9 are reserved for TerminationTrampolineAddr/IdleEntryAddr.
	p.nextToken.Store(9)
	return p
}

// InstallContextSwitchHandler registers the function the simulated PendSV
// dispatcher invokes on every pending context switch — the host analogue
// of hal/rp2040's PendSV vector-table entry, installed the way the donor
// pack's other_examples register an exclusive IRQ handler rather than the
// kernel calling into hal directly. internal/kernel's bootstrap installs
// ThreadTable.ContextSwitch here, wrapped to thread the current SP.
func (p *Platform) InstallContextSwitchHandler(fn func(core hal.Core)) {
	p.switchHandler.Store(&fn)
}

// InstallFaultHandler registers the hard-fault handler (spec.md §4.G),
// analogous to InstallContextSwitchHandler.
func (p *Platform) InstallFaultHandler(fn func(core hal.Core)) {
	p.faultHandler.Store(&fn)
}

// runDispatcher lazily starts, once per core, the goroutine standing in
// for that core's PendSV exception: it blocks on pendsv and invokes
// whatever handler is currently installed. Started on first
// ConfigurePreemption rather than in New or PendContextSwitch, so a Platform
// built without a kernel attached (e.g. a bare hal test) never spins up a
// goroutine nobody drains.
func (p *Platform) runDispatcher(core hal.Core) {
	p.dispatchOnce[core].Do(func() {
		go func() {
			for range p.pendsv[core] {
				if h := p.switchHandler.Load(); h != nil {
					(*h)(core)
				}
			}
		}()
	})
}

func (p *Platform) CurrentCore() hal.Core {
	if v, ok := p.coreOf.Load(goroutineID()); ok {
		return v.(hal.Core)
	}
	// Unbound goroutine (e.g. a registered thread body running on its own
	// goroutine, independent of either core-runner loop): default to
	// Core0. Callers that care about which core a spawned thread logically
	// runs on should bind it explicitly with BindCore.
	return hal.Core0
}

// BindCore associates the calling goroutine with core, for CurrentCore.
// Used by cmd/picos-sim and tests when spawning a goroutine that should be
// treated, for EnterCritical/LeaveCritical purposes, as running on a given
// simulated core.
func (p *Platform) BindCore(core hal.Core) {
	p.coreOf.Store(goroutineID(), core)
}

func (p *Platform) Spinlock() hal.Spinlock {
	return p.lock
}

func (p *Platform) ConfigurePreemption(core hal.Core, intervalUS uint32) {
	p.runDispatcher(core)
	p.tickers[core] = NewTicker(intervalUS, func() {
		p.wakeCore(core)
		p.PendContextSwitch(core)
	})
}

// wakeCore posts the "an interrupt occurred" signal WaitForInterrupt and
// AwaitTick block on. Non-blocking: a wake already pending is sufficient,
// matching a real WFI's indifference to how many interrupts arrived while
// it waited — only that at least one did.
func (p *Platform) wakeCore(core hal.Core) {
	select {
	case p.wake[core] <- struct{}{}:
	default:
	}
}

func (p *Platform) PendContextSwitch(core hal.Core) {
	select {
	case p.pendsv[core] <- struct{}{}:
	default:
		// already pending — the donor eventloop package's wakeup
		// deduplication (wakeUpSignalPending) follows the same pattern:
		// a full channel/flag means a wake is already on its way.
	}
}

func (p *Platform) DisableLocalPreemption(core hal.Core) {
	p.localGate[core].Store(true)
	if t := p.tickers[core]; t != nil {
		t.Disable()
	}
}

func (p *Platform) EnableLocalPreemption(core hal.Core) {
	p.localGate[core].Store(false)
	if t := p.tickers[core]; t != nil {
		t.Enable()
	}
}

// AwaitTick blocks until the next tick occurs on core, the way
// longpoll.Channel blocks until a channel yields a value (donor:
// longpoll/channel.go) — here specialized to "exactly one signal, no
// batching", since the termination trampoline only ever needs to know
// that a tick happened, not to consume the tick that will actually drive
// its own final context switch (that one is still the dispatcher's).
func (p *Platform) AwaitTick(core hal.Core) {
	<-p.wake[core]
}

func (p *Platform) WaitForInterrupt(core hal.Core) {
	p.idleCount[core].Add(1)
	<-p.wake[core]
}

func (p *Platform) LaunchCore1(entry func()) {
	p.launch(entry)
}

func (p *Platform) ActivityLED(core hal.Core) {
	p.ledCounter[core].Add(1)
}

func (p *Platform) IdleLED(core hal.Core) {
	p.idleCount[core].Add(1)
}

// ActivityLEDCount and IdleCount expose the LED counters recovered from
// original_source/ (SPEC_FULL.md §4) for scenario assertions. IdleCount
// counts both IdleLED calls and WaitForInterrupt calls on that core.
func (p *Platform) ActivityLEDCount(core hal.Core) uint64 { return p.ledCounter[core].Load() }
func (p *Platform) IdleCount(core hal.Core) uint64        { return p.idleCount[core].Load() }

func (p *Platform) ResolveEntry(fn func()) uintptr {
	tok := uintptr(p.nextToken.Add(1))
	p.entries.Store(tok, fn)
	return tok
}

// Entry resolves a token previously returned by ResolveEntry back to its
// function. Not part of hal.Platform: only
// the simulated backend needs to run the body a token refers to in Go.
func (p *Platform) Entry(token uintptr) (func(), bool) {
	v, ok := p.entries.Load(token)
	if !ok {
		return nil, false
	}
	return v.(func()), true
}

func (p *Platform) TerminationTrampolineAddr() uintptr {
	return 1 // reserved token; 0 means "no entry" in prepareStack's callers.
}

func (p *Platform) IdleEntryAddr(core hal.Core) uintptr {
	return 2 + uintptr(core)
}

// FireTick manually fires core's tick signal and pends a context switch,
// without waiting for the real Ticker's interval — the test seam kernel
// tests use to drive AwaitTick/WaitForInterrupt/the dispatcher on demand.
func (p *Platform) FireTick(core hal.Core) {
	p.wakeCore(core)
	p.PendContextSwitch(core)
}

// DrainPendSV reports whether a context-switch was pending for core,
// consuming it if so. It exists for tests that want to assert
// PendContextSwitch fired without a context-switch handler installed to
// observe it indirectly.
func (p *Platform) DrainPendSV(core hal.Core) bool {
	select {
	case <-p.pendsv[core]:
		return true
	default:
		return false
	}
}
