package core

// DebugWriter writes one line of debug output.
type DebugWriter func(string)

// TimingEvent captures one generator event for post-mortem analysis.
type TimingEvent struct {
	EventType uint8
	Clock     uint32
	Value1    uint32
	Value2    uint32
}

// Event type codes
const (
	EvtBurstLoad    = 1 // v1=size
	EvtBurstStart   = 2 // v1=reload v2=repeat
	EvtBurstAdvance = 3 // v1=cursor v2=reload
	EvtBurstDone    = 4 // v1=size
	EvtBurstStop    = 5 // v1=cursor v2=size
	EvtSpuriousIRQ  = 6
	EvtLateIRQ      = 7 // v1=cursor v2=size
)

// TimingRingSize is the number of events kept in the ring.
const TimingRingSize = 32

var (
	debugPrintln DebugWriter = func(string) {}
	debugEnabled bool

	timingRing     [TimingRingSize]TimingEvent
	timingRingHead uint8
)

// SetDebugWriter redirects debug output to UART, USB, etc.
func SetDebugWriter(writer DebugWriter) {
	if writer == nil {
		writer = func(string) {}
	}
	debugPrintln = writer
}

// SetDebugEnabled turns debug output on or off. Off by default.
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

// DebugPrintln writes msg when debug output is enabled.
func DebugPrintln(msg string) {
	if debugEnabled {
		debugPrintln(msg)
	}
}

// RecordTiming stores an event in the ring. It never blocks or allocates
// and is safe from interrupt context.
func RecordTiming(eventType uint8, clock, value1, value2 uint32) {
	idx := timingRingHead
	timingRing[idx] = TimingEvent{
		EventType: eventType,
		Clock:     clock,
		Value1:    value1,
		Value2:    value2,
	}
	timingRingHead = (idx + 1) % TimingRingSize
}

// TimingEvents returns the recorded events, oldest first.
func TimingEvents() []TimingEvent {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	out := make([]TimingEvent, 0, TimingRingSize)
	for i := uint8(0); i < TimingRingSize; i++ {
		evt := timingRing[(timingRingHead+i)%TimingRingSize]
		if evt.EventType != 0 {
			out = append(out, evt)
		}
	}
	return out
}

func eventName(eventType uint8) string {
	switch eventType {
	case EvtBurstLoad:
		return "LOAD"
	case EvtBurstStart:
		return "START"
	case EvtBurstAdvance:
		return "ADVANCE"
	case EvtBurstDone:
		return "DONE"
	case EvtBurstStop:
		return "STOP"
	case EvtSpuriousIRQ:
		return "SPURIOUS"
	case EvtLateIRQ:
		return "LATE_IRQ!"
	default:
		return "UNKNOWN"
	}
}

// DumpTimingRing writes the ring through the debug writer regardless of
// the enabled flag. Call it from the foreground, e.g. on shutdown.
func DumpTimingRing() {
	debugPrintln("[TIMING] === Timing Ring Dump ===")
	for _, evt := range TimingEvents() {
		debugPrintln("[TIMING] " + eventName(evt.EventType) +
			" clock=" + utoa(evt.Clock) +
			" v1=" + utoa(evt.Value1) +
			" v2=" + utoa(evt.Value2))
	}
	debugPrintln("[TIMING] === End Dump ===")
}

// ClearTimingRing empties the ring.
func ClearTimingRing() {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	timingRing = [TimingRingSize]TimingEvent{}
	timingRingHead = 0
}
