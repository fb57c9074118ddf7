package core

import (
	"sync/atomic"

	"burstgen/protocol"
)

// burstRecordSize is the encoded size of one burst in burst_load data:
// pulses, then frequency low and high bytes.
const burstRecordSize = 3

func (f *Firmware) registerBurstCommands() {
	f.reg.Register("burst_load", "data=%*s", f.handleBurstLoad)
	f.reg.Register("burst_start", "", f.handleBurstStart)
	f.reg.Register("queue_burst_start", "clock=%u", f.handleQueueBurstStart)
	f.reg.Register("burst_stop", "", f.handleBurstStop)
	f.reg.Register("burst_query", "", f.handleBurstQuery)
	f.reg.Register("burst_get_events", "", f.handleBurstGetEvents)

	f.reg.RegisterResponse("burst_state", "running=%c cursor=%c size=%c max=%c queued=%c")
	f.reg.RegisterResponse("burst_error", "code=%c")
	f.reg.RegisterResponse("burst_event", "type=%c clock=%u v1=%u v2=%u")
}

// EncodeBursts packs seq into the burst_load data format.
func EncodeBursts(seq []Burst) []byte {
	out := make([]byte, 0, len(seq)*burstRecordSize)
	for _, b := range seq {
		out = append(out, b.Pulses, byte(b.Freq), byte(b.Freq>>8))
	}
	return out
}

// DecodeBursts unpacks burst_load data into dst and returns the filled
// prefix. dst must hold MaxBursts entries.
func DecodeBursts(data []byte, dst []Burst) ([]Burst, error) {
	if len(data)%burstRecordSize != 0 {
		return nil, ErrBadBurstData
	}
	n := len(data) / burstRecordSize
	if n > len(dst) {
		return nil, ErrSequenceTooLong
	}
	for i := 0; i < n; i++ {
		rec := data[i*burstRecordSize:]
		dst[i] = Burst{
			Pulses: rec[0],
			Freq:   uint16(rec[1]) | uint16(rec[2])<<8,
		}
	}
	return dst[:n], nil
}

// reportError sends burst_error and returns err so the transport records it.
func (f *Firmware) reportError(err error) error {
	code := ErrorCode(err)
	f.send("burst_error", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, uint32(code))
	})
	DebugPrintln("[BURST] error: " + err.Error())
	return err
}

func (f *Firmware) sendState() {
	st := f.gen.State()
	queued := atomic.LoadUint32(&f.queued) != 0
	f.send("burst_state", func(output protocol.OutputBuffer) {
		encodeBool(output, st.Running)
		protocol.EncodeVLQUint(output, uint32(st.Cursor))
		protocol.EncodeVLQUint(output, uint32(st.Size))
		protocol.EncodeVLQUint(output, uint32(f.gen.MaxCapacity()))
		encodeBool(output, queued)
	})
}

// handleBurstLoad answers with burst_state on success and burst_error
// otherwise.
func (f *Firmware) handleBurstLoad(data *[]byte) error {
	raw, err := protocol.DecodeVLQBytes(data)
	if err != nil {
		return err
	}
	if f.IsShutdown() {
		return f.reportError(ErrShutdown)
	}

	var scratch [MaxBursts]Burst
	seq, err := DecodeBursts(raw, scratch[:])
	if err != nil {
		return f.reportError(err)
	}
	if err := f.gen.Load(seq); err != nil {
		return f.reportError(err)
	}

	f.sendState()
	return nil
}

func (f *Firmware) handleBurstStart(data *[]byte) error {
	if f.IsShutdown() {
		return f.reportError(ErrShutdown)
	}
	f.gen.Start()
	return nil
}

// handleQueueBurstStart starts playback when the system clock reaches the
// given value. A second request replaces the first.
func (f *Firmware) handleQueueBurstStart(data *[]byte) error {
	clock, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	if f.IsShutdown() {
		return f.reportError(ErrShutdown)
	}

	f.startTimer.WakeTime = clock
	atomic.StoreUint32(&f.queued, 1)
	f.sched.Schedule(&f.startTimer)
	return nil
}

func (f *Firmware) startFromTimer(t *Timer) uint8 {
	atomic.StoreUint32(&f.queued, 0)
	if !f.IsShutdown() {
		f.gen.Start()
	}
	return SF_DONE
}

// handleBurstStop also drops a queued start.
func (f *Firmware) handleBurstStop(data *[]byte) error {
	f.sched.Cancel(&f.startTimer)
	atomic.StoreUint32(&f.queued, 0)
	f.gen.Stop()
	return nil
}

func (f *Firmware) handleBurstQuery(data *[]byte) error {
	f.sendState()
	return nil
}

// handleBurstGetEvents sends the timing ring, oldest first, then the
// current state as a terminator.
func (f *Firmware) handleBurstGetEvents(data *[]byte) error {
	for _, evt := range TimingEvents() {
		evt := evt
		f.send("burst_event", func(output protocol.OutputBuffer) {
			protocol.EncodeVLQUint(output, uint32(evt.EventType))
			protocol.EncodeVLQUint(output, evt.Clock)
			protocol.EncodeVLQUint(output, evt.Value1)
			protocol.EncodeVLQUint(output, evt.Value2)
		})
	}
	f.sendState()
	return nil
}
