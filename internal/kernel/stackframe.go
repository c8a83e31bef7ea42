package kernel

import "unsafe"

// frameWords is the number of words reserved at the top of every stack
// region for the exception-return frame (spec.md §3, §6).
const frameWords = 16

// xPSRThumb is the xPSR value required at offset −1 of a fresh frame: only
// the T-bit is set, because ARMv6-M supports only Thumb mode. Omitting it
// causes an immediate usage-fault on resume (spec.md §4.A).
const xPSRThumb uint32 = 0x01000000

// stackAddr returns the address of stack[index] as a uintptr, treating
// index == len(stack) as one-past-the-end (the region's exclusive top).
// entry and stack words are machine words (uint32) regardless of host
// pointer width, matching the Cortex-M0+'s 32-bit registers.
func stackAddr(stack []uint32, index int) uintptr {
	if len(stack) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&stack[0])) + uintptr(index)*unsafe.Sizeof(stack[0])
}

// prepareStack writes the synthetic exception-return frame described in
// spec.md §4.A and §6 onto the top of stack, and returns the saved stack
// pointer a fresh descriptor should start with: region_top − 16 words.
//
//	offset −1 (top-1): xPSR, T-bit set
//	offset −2 (top-2): entry point address (becomes PC on exception return)
//	offset −3 (top-3): termination trampoline address (becomes LR)
//	offset −4..−16:    left uninitialized (r0–r12 placeholders)
//
// entry and terminationTrampoline are addresses, represented as uintptr
// since the entry function and trampoline live in code memory, not as Go
// values the frame can reference directly — on the rp2040 backend these
// are real function addresses; on the simulated backend they are opaque
// tokens used only to assert this routine wrote the right words at the
// right offsets.
func prepareStack(stack []uint32, entry, terminationTrampoline uintptr) (savedSP uintptr) {
	top := len(stack)
	stack[top-1] = uint32(xPSRThumb)
	stack[top-2] = uint32(entry)
	stack[top-3] = uint32(terminationTrampoline)
	return stackAddr(stack, top-frameWords)
}
