//go:build tinygo && rp2040

package rp2040

import (
	"reflect"
	"runtime/volatile"
	"unsafe"
)

const (
	sioFIFOSTOffset uintptr = 0x50
	sioFIFOWROffset uintptr = 0x54
	sioFIFORDOffset uintptr = 0x58
	fifoRDYMask     uint32  = 1 << 0
	fifoVLDMask     uint32  = 1 << 0
)

func sioFIFOST() *volatile.Register32 {
	return (*volatile.Register32)(unsafe.Pointer(sioBase + sioFIFOSTOffset))
}

func sioFIFOWR() *volatile.Register32 {
	return (*volatile.Register32)(unsafe.Pointer(sioBase + sioFIFOWROffset))
}

func sioFIFORD() *volatile.Register32 {
	return (*volatile.Register32)(unsafe.Pointer(sioBase + sioFIFORDOffset))
}

var core1Entry func()

// core1Trampoline is what core 1 actually boots into: a fixed Go function
// the startup stub jumps to after the ROM bring-up handshake, which then
// calls whatever entry LaunchCore1 most recently installed.
func core1Trampoline() {
	if core1Entry != nil {
		core1Entry()
	}
	for {
	}
}

// launchCore1 performs the RP2040 boot ROM's documented core-1 bring-up
// handshake over the SIO mailbox: the ROM on core 1 waits for a sequence
// of values (0, 0, 1, vector table, stack pointer, entry point) sent one
// at a time, re-sent from the top if core 1 ever echoes back a mismatch.
// This is the "multicore-launch primitive" spec.md §1 assumes is
// available as an external collaborator; picos itself only needs to hand
// it a Go function, which is why core1Entry is a package var rather than
// a parameter threaded through the handshake.
func launchCore1(entry func()) {
	core1Entry = entry
	targetPC := reflect.ValueOf(core1Trampoline).Pointer()

	// 0, 0, 1 resync the ROM's mailbox state machine; the remaining three
	// words are VTOR (0: inherit core 0's), stack pointer (0: the linker
	// script's core1 stack top, resolved by the startup stub, not here),
	// and the entry point.
	cmd := [6]uint32{0, 0, 1, 0, 0, uint32(targetPC)}
	for i := 0; i < len(cmd); {
		fifoDrainRead()
		fifoWrite(cmd[i])
		if fifoReadBlocking() != cmd[i] {
			i = 0
			continue
		}
		i++
	}
}

func fifoWrite(v uint32) {
	for sioFIFOST().Get()&fifoRDYMask == 0 {
	}
	sioFIFOWR().Set(v)
}

func fifoReadBlocking() uint32 {
	for sioFIFOST().Get()&fifoVLDMask == 0 {
	}
	return sioFIFORD().Get()
}

func fifoDrainRead() {
	for sioFIFOST().Get()&fifoVLDMask != 0 {
		sioFIFORD().Get()
	}
}
