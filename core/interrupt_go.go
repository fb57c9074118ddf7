//go:build !tinygo

package core

// irqState stands in for interrupt.State when running under regular Go.
type irqState uintptr

// criticalDepth tracks nesting so host tests can assert that sections are
// balanced. Host tests are single-threaded, so no masking is needed.
var criticalDepth int

func disableInterrupts() irqState {
	criticalDepth++
	return irqState(criticalDepth)
}

func restoreInterrupts(state irqState) {
	if int(state) == criticalDepth {
		criticalDepth--
	}
}
