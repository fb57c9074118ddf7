package core

// TimerTickHz is the counting frequency the burst timer is prescaled to.
const TimerTickHz = 1000000

// TimerRegisters holds the register values that make the timer emit one
// burst autonomously.
type TimerRegisters struct {
	Reload uint16 // half-period in timer ticks, minus one
	Repeat uint8  // update events to skip before the completion interrupt
}

// ComputeRegisters maps a burst to its timer register values.
// The output-compare channel toggles once per reload period, so the reload
// is half the requested period.
func ComputeRegisters(b Burst) TimerRegisters {
	freq := uint32(ClampFrequency(b.Freq))
	return TimerRegisters{
		Reload: uint16(TimerTickHz/(2*freq) - 1),
		Repeat: b.Pulses - 1,
	}
}

// ProgramBurst loads b into the timer and arms the completion interrupt.
// Safe to call from interrupt context.
func ProgramBurst(t BurstTimer, b Burst) TimerRegisters {
	regs := ComputeRegisters(b)

	t.SetReload(regs.Reload)
	t.SetRepetition(regs.Repeat)

	// Latch the shadow registers now instead of at the next overflow
	t.ForceUpdate()

	t.StartCompareIT()
	return regs
}
