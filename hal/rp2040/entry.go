//go:build tinygo && rp2040

package rp2040

import (
	"reflect"
	"sync/atomic"

	"github.com/picos-project/picos/hal"
)

// contextSwitchFunc and faultFunc are the Go functions the PendSV and
// HardFault handlers in handlers.go ultimately call into, and
// terminateFunc is the one terminationTrampoline calls; firmware bootstrap
// installs them with the Set* functions below once the kernel's thread
// table exists.
// Storing them as package vars rather than threading them through
// hal.Platform keeps the asm trampolines' Go-callable surface fixed at
// link time; only the closures behind it vary per kernel instance (there
// is, in practice, exactly one).
var (
	contextSwitchFunc atomic.Pointer[func(core hal.Core, preemptedSP uintptr) uintptr]
	faultFunc         atomic.Pointer[func(core hal.Core)]
	terminateFunc     atomic.Pointer[func(core hal.Core)]
)

// SetContextSwitchFunc installs the function PendSV's asm trampoline calls
// after saving the preempted thread's callee-saved registers and reading
// its stack pointer. Matches ThreadTable.ContextSwitch's signature exactly,
// so firmware bootstrap wires it with rp2040.SetContextSwitchFunc(table.ContextSwitch).
func SetContextSwitchFunc(fn func(core hal.Core, preemptedSP uintptr) uintptr) {
	contextSwitchFunc.Store(&fn)
}

// SetFaultFunc installs the hard-fault handler's Go-side logic
// (spec.md §4.G). Firmware bootstrap wires it with table.Fault.
func SetFaultFunc(fn func(core hal.Core)) {
	faultFunc.Store(&fn)
}

// SetTerminateFunc installs the termination trampoline's Go-side logic
// (spec.md §4.H). Firmware bootstrap wires it with table.Terminate.
func SetTerminateFunc(fn func(core hal.Core)) {
	terminateFunc.Store(&fn)
}

//go:export picos_pendsv_dispatch
func picosPendSVDispatch(core uint32, preemptedSP uintptr) uintptr {
	if h := contextSwitchFunc.Load(); h != nil {
		return (*h)(hal.Core(core), preemptedSP)
	}
	return preemptedSP
}

//go:export picos_hardfault_dispatch
func picosHardFaultDispatch(core uint32) {
	if h := faultFunc.Load(); h != nil {
		(*h)(hal.Core(core))
	}
}

// terminationTrampoline is the Go function whose address is embedded in
// every fresh thread's initial frame (spec.md §4.A): reached only when a
// user entry function returns normally. It never returns.
func terminationTrampoline() {
	for {
		if h := terminateFunc.Load(); h != nil {
			(*h)(New().CurrentCore())
			return
		}
	}
}

func terminationTrampolineAddr() uintptr {
	return reflect.ValueOf(terminationTrampoline).Pointer()
}

// idleLoop is the board-support idle hook: the body every core's
// synthetic idle frame resumes into, the first time that core is ever
// preempted while idling (spec.md §4.C). It mirrors
// internal/kernel.Kernel.runCore's logical behavior locally rather than
// importing internal/kernel.
func idleLoop() {
	p := New()
	core := p.CurrentCore()
	for {
		p.IdleLED(core)
		p.WaitForInterrupt(core)
	}
}

func idleEntryAddr(core hal.Core) uintptr {
	return reflect.ValueOf(idleLoop).Pointer()
}
