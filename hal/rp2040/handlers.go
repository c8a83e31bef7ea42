//go:build tinygo && rp2040

package rp2040

import "device/arm"

// PendSV_Handler implements the four-step trampoline spec.md §4.D
// specifies. TinyGo's startup code links this in place of the weak
// default handler because of its exact name; the vector table entry it
// occupies is fixed by the linker script, not by anything in this package.
//
// Steps 1–2 (push callee-saved r4-r11 onto the current PSP stack, read the
// resulting PSP into a register) must happen before any Go code runs,
// since the Go compiler is free to use r4-r11 as scratch registers and
// would clobber them before this function's body executes; step 4
// (restore r4-r11, reload PSP, return from exception) must happen after
// the Go call and cannot be expressed as ordinary Go statements either,
// since returning to the caller as a normal Go function would hit the
// epilogue's own BX LR instead of the architectural exception return
// sequence (BX with EXC_RETURN in LR). AsmFull's register constraints
// carry the live values across the inline block as spec.md's steps 2–4
// are threaded through the picosPendSVDispatch Go call in between.
//
//go:export PendSV_Handler
func PendSV_Handler() {
	arm.AsmFull(`
		mrs {psp}, psp
		subs {psp}, {psp}, #32
		stm {psp}!, {{r4-r7}}
		mov r4, r8
		mov r5, r9
		mov r6, r10
		mov r7, r11
		subs {psp}, {psp}, #16
		stm {psp}!, {{r4-r7}}
		subs {psp}, {psp}, #32
	`, map[string]interface{}{
		"psp": "r0",
	})

	core := uint32(New().CurrentCore())
	psp := currentPSP()
	newPSP := picosPendSVDispatch(core, psp)
	setPSP(newPSP)

	arm.AsmFull(`
		mrs {psp}, psp
		ldm {psp}!, {{r4-r7}}
		mov r8, r4
		mov r9, r5
		mov r10, r6
		mov r11, r7
		ldm {psp}!, {{r4-r7}}
		msr psp, {psp}
		bx lr
	`, map[string]interface{}{
		"psp": "r0",
	})
}

// SysTick_Handler's sole action, per spec.md §4.D, is to set the
// context-switch pending bit; it never calls picosPendSVDispatch itself.
//
//go:export SysTick_Handler
func SysTick_Handler() {
	scbICSR().Set(icsrPendSVSet)
}

// HardFault_Handler implements spec.md §4.G's entry point: it never
// attempts recovery, only quarantines the faulting thread and requests an
// immediate context switch away from it.
//
//go:export HardFault_Handler
func HardFault_Handler() {
	core := uint32(New().CurrentCore())
	picosHardFaultDispatch(core)
	scbICSR().Set(icsrPendSVSet)
}

func currentPSP() uintptr {
	var psp uintptr
	arm.AsmFull("mrs {0}, psp", map[string]interface{}{"0": &psp})
	return psp
}

func setPSP(v uintptr) {
	arm.AsmFull("msr psp, {0}", map[string]interface{}{"0": v})
}
