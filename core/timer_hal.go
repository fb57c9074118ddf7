package core

// BurstTimer is the abstract timer peripheral the burst generator drives.
// Platform-specific implementations own one timer and one output-compare
// channel that toggles the output pin on every compare match.
//
// Every method must be safe to call from interrupt context: no allocation,
// no blocking, bounded execution time.
type BurstTimer interface {
	// SetReload writes the auto-reload (period) register.
	SetReload(reload uint16)

	// SetRepetition writes the repetition counter. The update interrupt
	// fires after count+1 counter overflows.
	SetRepetition(count uint8)

	// ForceUpdate generates a software update event so that the reload and
	// repetition values take effect before the next compare match.
	ForceUpdate()

	// StartCompareIT enables the output-compare channel in toggle mode
	// together with the update interrupt.
	StartCompareIT()

	// StopCompareIT disables the output-compare channel and its interrupt.
	StopCompareIT()

	// UpdatePending reports whether the update interrupt is both enabled
	// and flagged.
	UpdatePending() bool

	// ClearUpdate acknowledges the update interrupt flag.
	ClearUpdate()
}
