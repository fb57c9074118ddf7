package core

// ClockFreq is the frequency of the system clock reported to the host. It
// is independent of the burst timer's own 1 MHz tick.
const ClockFreq = 1000000

// GetTime returns the current system clock in ClockFreq ticks.
func GetTime() uint32 {
	return loadClock()
}

// SetTime is called by the target main loop to publish the hardware clock.
func SetTime(ticks uint32) {
	storeClock(ticks)
}

// ClockFromUS converts microseconds to clock ticks.
func ClockFromUS(us uint32) uint32 {
	return uint32(uint64(us) * ClockFreq / 1000000)
}

// ClockToUS converts clock ticks to microseconds.
func ClockToUS(ticks uint32) uint32 {
	return uint32(uint64(ticks) * 1000000 / ClockFreq)
}

// clockBefore reports whether a is before b, tolerating wraparound.
func clockBefore(a, b uint32) bool {
	return int32(a-b) < 0
}
