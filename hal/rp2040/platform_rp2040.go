//go:build tinygo && rp2040

// Package rp2040 is the real-hardware backend for hal.Platform: the
// RP2040's SIO block (spinlocks, "which core am I", inter-core FIFO), the
// ARMv6-M system control block (exception pending/priority), and the
// SysTick peripheral, addressed exactly the way other_examples'
// soypat-tinygo RP2040 sync primitives do — raw volatile.Register32
// reads/writes at fixed offsets from SIO_BASE and PPB_BASE, no runtime
// register abstraction layer.
//
// The PendSV, SysTick and HardFault exception handlers are exported Go
// functions with inline assembly, in handlers.go, entered directly off the
// vector table the linker script places at the start of flash. This file
// configures the peripherals those handlers react to and implements
// everything else spec.md §6 names.
package rp2040

import (
	"device/arm"
	"reflect"
	"unsafe"

	"runtime/volatile"

	"github.com/picos-project/picos/hal"
)

const (
	sioBase           uintptr = 0xd0000000
	sioCPUIDOffset    uintptr = 0x000
	sioSpinlockOffset uintptr = 0x100 // SIO_SPINLOCK0_OFFSET; 4 bytes per lock, 32 locks
	picosSpinlockID   uint32  = 31    // one dedicated lock id per subsystem, as _PICO_SPINLOCK_ID_IRQ reserves id 9 for IRQ registration

	ppbBase     uintptr = 0xe0000000
	scbOffset   uintptr = 0x0000ed00
	icsrOffset  uintptr = 0x04
	shpr3Offset uintptr = 0x20

	icsrPendSVSet uint32 = 1 << 28 // PENDSVSET

	systickBase    uintptr = 0xe000e010 // CTRL; LOAD at +4, VAL at +8
	systickEnable  uint32  = 1 << 0
	systickTickint uint32  = 1 << 1
	systickClksrc  uint32  = 1 << 2 // processor clock, not the reference clock
)

func scbICSR() *volatile.Register32 {
	return (*volatile.Register32)(unsafe.Pointer(ppbBase + scbOffset + icsrOffset))
}

func scbSHPR3() *volatile.Register32 {
	return (*volatile.Register32)(unsafe.Pointer(ppbBase + scbOffset + shpr3Offset))
}

func sioCPUID() *volatile.Register32 {
	return (*volatile.Register32)(unsafe.Pointer(sioBase + sioCPUIDOffset))
}

func spinlockReg(id uint32) *volatile.Register32 {
	return (*volatile.Register32)(unsafe.Pointer(sioBase + sioSpinlockOffset + uintptr(id)*4))
}

func systickCTRL() *volatile.Register32 {
	return (*volatile.Register32)(unsafe.Pointer(systickBase))
}

func systickLOAD() *volatile.Register32 {
	return (*volatile.Register32)(unsafe.Pointer(systickBase + 4))
}

func systickVAL() *volatile.Register32 {
	return (*volatile.Register32)(unsafe.Pointer(systickBase + 8))
}

// Spinlock wraps a single RP2040 hardware spinlock cell (spec.md §4.B): a
// read that returns nonzero simultaneously claims the lock; a read that
// returns zero means another holder has it and the caller does not hold it
// yet. Any write releases it. Grounded on other_examples' spinLock.lock/unlock, minus the
// interrupt.Disable/Restore pairing: spec.md's lock guards ordinary
// thread-table code, not a section that must additionally run with IRQs
// masked, and masking here would extend mask time past what spec.md's
// "never held across WaitForInterrupt" invariant intends.
type Spinlock struct {
	reg *volatile.Register32
}

func newSpinlock() *Spinlock {
	return &Spinlock{reg: spinlockReg(picosSpinlockID)}
}

func (s *Spinlock) Lock() {
	for s.reg.Get() == 0 {
		// Reading zero means the lock is currently held by someone
		// else and this read did not claim it (RP2040 spinlock
		// semantics: a nonzero read claims). Re-poll.
	}
	arm.AsmFull("dmb", nil)
}

func (s *Spinlock) Unlock() {
	arm.AsmFull("dmb", nil)
	s.reg.Set(0)
}

// Platform implements hal.Platform against real RP2040 registers. Both
// cores run identical code; CurrentCore distinguishes them via SIO's
// per-core CPUID alias, which always reads 0 on core 0 and 1 on core 1
// regardless of which core's bus performed the read.
type Platform struct {
	lock *Spinlock
}

var shared = &Platform{lock: newSpinlock()}

// New returns the rp2040 Platform singleton. There is exactly one per
// program; both cores share it, since registers, not goroutine state,
// back every method.
func New() *Platform {
	return shared
}

func (p *Platform) CurrentCore() hal.Core {
	return hal.Core(sioCPUID().Get())
}

func (p *Platform) Spinlock() hal.Spinlock {
	return p.lock
}

// ConfigurePreemption programs this core's SysTick reload value from
// intervalUS and sets the SysTick/PendSV priority pair spec.md §4.D
// requires: SysTick at the highest configurable priority, PendSV at the
// lowest, so a SysTick that fires while PendSV is already running for a
// previous tick is never starved, and PendSV never preempts anything
// except by explicit request.
//
// intervalUS is converted assuming SysTick runs from the processor clock
// at 125 MHz, the RP2040's default core clock; a board running at a
// different clock must scale intervalUS accordingly before calling this.
func (p *Platform) ConfigurePreemption(core hal.Core, intervalUS uint32) {
	const clockHz = 125_000_000
	reload := uint32((uint64(intervalUS) * clockHz) / 1_000_000)
	if reload == 0 {
		reload = 1
	}

	systickCTRL().Set(0)
	systickLOAD().Set(reload - 1)
	systickVAL().Set(0)

	shpr3 := scbSHPR3()
	v := shpr3.Get()
	v &^= 0xff << 24 // SysTick priority byte
	v |= 0x00 << 24  // highest configurable priority
	v &^= 0xff << 16 // PendSV priority byte
	v |= 0xff << 16  // lowest priority
	shpr3.Set(v)

	systickCTRL().Set(systickEnable | systickTickint | systickClksrc)
}

func (p *Platform) PendContextSwitch(core hal.Core) {
	scbICSR().Set(icsrPendSVSet)
}

func (p *Platform) DisableLocalPreemption(core hal.Core) {
	ctrl := systickCTRL()
	ctrl.Set(ctrl.Get() &^ systickEnable)
}

func (p *Platform) EnableLocalPreemption(core hal.Core) {
	ctrl := systickCTRL()
	ctrl.Set(ctrl.Get() | systickEnable)
}

// AwaitTick busy-loops on the SysTick COUNTFLAG bit (CTRL bit 16), which
// the hardware sets on every reload and clears on read — the literal
// busy-loop spec.md §4.H's termination trampoline contract describes.
func (p *Platform) AwaitTick(core hal.Core) {
	const countFlag = 1 << 16
	for systickCTRL().Get()&countFlag == 0 {
	}
}

func (p *Platform) WaitForInterrupt(core hal.Core) {
	arm.Asm("wfi")
}

// LaunchCore1 starts entry on core 1 via the SIO mailbox bring-up sequence
// the RP2040 boot ROM expects (the multicore-launch primitive spec.md §1
// assumes exists). launchCore1 (multicore.go) performs the VTOR, stack
// pointer, and entry handshake over SIO_FIFO itself; core 1 then boots into
// core1Trampoline, which calls entry.
func (p *Platform) LaunchCore1(entry func()) {
	launchCore1(entry)
}

func (p *Platform) ActivityLED(core hal.Core) {}

func (p *Platform) IdleLED(core hal.Core) {}

// ResolveEntry returns fn's code address via reflect.ValueOf(fn).Pointer,
// the standard technique for recovering a non-closure function's entry
// point in Go; thread bodies registered with the kernel are ordinary
// top-level functions or method values, never closures, for exactly this
// reason (spec.md §4.A requires a real, stable code address here, unlike
// hal/simulated's opaque token).
func (p *Platform) ResolveEntry(fn func()) uintptr {
	return reflect.ValueOf(fn).Pointer()
}

func (p *Platform) TerminationTrampolineAddr() uintptr {
	return terminationTrampolineAddr()
}

func (p *Platform) IdleEntryAddr(core hal.Core) uintptr {
	return idleEntryAddr(core)
}
