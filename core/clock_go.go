//go:build !tinygo

package core

var clockTicks uint32

func loadClock() uint32 {
	return clockTicks
}

func storeClock(ticks uint32) {
	clockTicks = ticks
}
