//go:build tinygo

package core

import "sync/atomic"

var clockTicks uint32

// The clock is published from the main loop and read from interrupt
// handlers, so access is atomic.
func loadClock() uint32 {
	return atomic.LoadUint32(&clockTicks)
}

func storeClock(ticks uint32) {
	atomic.StoreUint32(&clockTicks, ticks)
}
