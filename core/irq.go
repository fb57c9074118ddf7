package core

import "sync/atomic"

// IRQBridge connects a timer's update interrupt vector to a registered
// completion handler. Targets call Handle from their interrupt vector.
type IRQBridge struct {
	timer   BurstTimer
	handler func()

	forwarded uint32 // atomic
	spurious  uint32 // atomic
}

// NewIRQBridge creates a bridge that filters interrupts for timer.
func NewIRQBridge(timer BurstTimer) *IRQBridge {
	return &IRQBridge{timer: timer}
}

// Register installs the completion handler. Call before enabling the
// interrupt vector; the handler is not swapped while interrupts are live.
func (b *IRQBridge) Register(handler func()) {
	state := disableInterrupts()
	b.handler = handler
	restoreInterrupts(state)
}

// Handle services one hardware interrupt. It forwards exactly one
// completion notification when the timer's update event is pending and
// enabled, and ignores every other source sharing the vector.
func (b *IRQBridge) Handle() {
	if !b.timer.UpdatePending() {
		atomic.AddUint32(&b.spurious, 1)
		RecordTiming(EvtSpuriousIRQ, GetTime(), 0, 0)
		return
	}
	b.timer.ClearUpdate()

	atomic.AddUint32(&b.forwarded, 1)
	if b.handler != nil {
		b.handler()
	}
}

// Forwarded returns the number of completion notifications delivered.
func (b *IRQBridge) Forwarded() uint32 {
	return atomic.LoadUint32(&b.forwarded)
}

// Spurious returns the number of interrupts that were not forwarded.
func (b *IRQBridge) Spurious() uint32 {
	return atomic.LoadUint32(&b.spurious)
}
