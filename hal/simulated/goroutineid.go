package simulated

import (
	"bytes"
	"runtime"
	"strconv"
)

// goroutineID recovers the calling goroutine's id by parsing the header
// line of runtime.Stack, the well-known technique the donor pack's own
// (empty) goroutineid submodule exists to provide. Used only by
// CurrentCore/BindCore to let a simulated Platform tell which logical core
// a piece of host code is running as, since Go has no public API for this.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	b := buf[:n]

	const prefix = "goroutine "
	if !bytes.HasPrefix(b, []byte(prefix)) {
		return 0
	}
	b = b[len(prefix):]

	i := bytes.IndexByte(b, ' ')
	if i < 0 {
		return 0
	}
	id, err := strconv.ParseUint(string(b[:i]), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
