//go:build rp2040

package main

import (
	"runtime/volatile"
	"unsafe"
)

// RP2040 timer peripheral
const (
	timerBase     = 0x40054000
	timerTIMERAWL = timerBase + 0x0C // raw timer low word
)

var timerRAWL = (*volatile.Register32)(unsafe.Pointer(uintptr(timerTIMERAWL)))

// hardwareClock reads the low 32 bits of the 1 MHz microsecond timer,
// which matches the protocol clock without scaling.
func hardwareClock() uint32 {
	return timerRAWL.Get()
}
