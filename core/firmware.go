package core

import (
	"sync/atomic"

	"burstgen/protocol"
)

// Responder sends a framed message to the host.
type Responder interface {
	SendCommand(cmdID uint16, args func(output protocol.OutputBuffer))
}

// Firmware binds the generator to the command protocol. The target's main
// creates exactly one and feeds it received commands and clock ticks.
type Firmware struct {
	gen   *Generator
	reg   *CommandRegistry
	dict  *Dictionary
	sched Scheduler

	out Responder

	startTimer Timer
	queued     uint32 // atomic bool

	isShutdown   uint32 // atomic bool
	resetPending uint32 // atomic bool
	resetHandler func()
}

// NewFirmware registers every command for gen and publishes the limits
// in the data dictionary. mcu names the target chip.
func NewFirmware(gen *Generator, mcu string) *Firmware {
	f := &Firmware{
		gen: gen,
		reg: NewCommandRegistry(),
	}
	f.dict = NewDictionary(f.reg)
	f.startTimer.Handler = f.startFromTimer

	f.registerCoreCommands()
	f.registerBurstCommands()

	f.dict.AddConstant("CLOCK_FREQ", ClockFreq)
	f.dict.AddConstant("BURST_MAX", uint32(gen.MaxCapacity()))
	f.dict.AddConstant("BURST_MIN_FREQ", MinFrequency)
	f.dict.AddConstant("BURST_MAX_FREQ", MaxFrequency)
	f.dict.AddConstant("TIMER_FREQ", TimerTickHz)
	f.dict.AddEnumeration("burst_error", []string{
		CodeOK:              "ok",
		CodeSequenceTooLong: "sequence_too_long",
		CodeZeroPulses:      "zero_pulses",
		CodeGeneratorBusy:   "busy",
		CodeShutdown:        "shutdown",
		CodeBadBurstData:    "bad_data",
	})
	f.dict.AddStringConstant("MCU", mcu)
	f.dict.SetBuildVersions("burstgen " + mcu)

	return f
}

// SetResponder sets where responses are written, normally the transport.
func (f *Firmware) SetResponder(out Responder) {
	f.out = out
}

// SetResetHandler sets the platform reset routine run by the reset command.
func (f *Firmware) SetResetHandler(handler func()) {
	f.resetHandler = handler
}

// Registry exposes the command table.
func (f *Firmware) Registry() *CommandRegistry {
	return f.reg
}

// Dictionary exposes the data dictionary.
func (f *Firmware) Dictionary() *Dictionary {
	return f.dict
}

// HandleCommand is the transport's command handler.
func (f *Firmware) HandleCommand(cmdID uint16, data *[]byte) error {
	return f.reg.Dispatch(cmdID, data)
}

// Poll advances the system clock to now, runs due timers and performs a
// requested reset. Call it from the main loop after output is flushed.
func (f *Firmware) Poll(now uint32) {
	SetTime(now)
	f.sched.Dispatch(now)

	if atomic.LoadUint32(&f.resetPending) != 0 && f.resetHandler != nil {
		f.resetHandler()
	}
}

// Shutdown stops playback and refuses further burst commands until the
// host reconnects.
func (f *Firmware) Shutdown(reason string) {
	f.gen.Stop()
	f.sched.Cancel(&f.startTimer)
	atomic.StoreUint32(&f.queued, 0)

	if atomic.SwapUint32(&f.isShutdown, 1) == 0 {
		DebugPrintln("[FW] shutdown: " + reason)
		DumpTimingRing()
		f.send("shutdown", func(output protocol.OutputBuffer) {
			protocol.EncodeVLQUint(output, GetTime())
		})
	}
}

// IsShutdown reports whether the firmware is latched in shutdown.
func (f *Firmware) IsShutdown() bool {
	return atomic.LoadUint32(&f.isShutdown) != 0
}

// ResetState clears the shutdown latch and any queued start. The
// transport calls it when the host restarts its sequence numbering.
func (f *Firmware) ResetState() {
	f.gen.Stop()
	f.sched.Cancel(&f.startTimer)
	atomic.StoreUint32(&f.queued, 0)
	atomic.StoreUint32(&f.isShutdown, 0)
}

// send writes a registered response. Unknown names are a programming
// error and are dropped with a debug line.
func (f *Firmware) send(name string, args func(output protocol.OutputBuffer)) {
	if f.out == nil {
		return
	}
	cmd, ok := f.reg.Lookup(name)
	if !ok {
		DebugPrintln("[FW] response not registered: " + name)
		return
	}
	f.out.SendCommand(cmd.ID, args)
}

func encodeBool(output protocol.OutputBuffer, v bool) {
	if v {
		protocol.EncodeVLQUint(output, 1)
	} else {
		protocol.EncodeVLQUint(output, 0)
	}
}
