package core

import (
	"sync/atomic"

	"burstgen/protocol"
)

// registerCoreCommands registers the link-level commands. identify_response
// and identify must keep IDs 0 and 1 because the host bootstraps with them
// before it has the dictionary.
func (f *Firmware) registerCoreCommands() {
	f.reg.RegisterResponse("identify_response", "offset=%u data=%*s") // ID 0
	f.reg.Register("identify", "offset=%u count=%c", f.handleIdentify) // ID 1

	f.reg.Register("get_clock", "", f.handleGetClock)
	f.reg.Register("get_config", "", f.handleGetConfig)
	f.reg.Register("emergency_stop", "", f.handleEmergencyStop)
	f.reg.Register("reset", "", f.handleReset)

	f.reg.RegisterResponse("clock", "clock=%u")
	f.reg.RegisterResponse("config", "is_shutdown=%c burst_max=%c")
	f.reg.RegisterResponse("shutdown", "clock=%u")
}

func (f *Firmware) handleIdentify(data *[]byte) error {
	offset, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	count, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	chunk := f.dict.Chunk(offset, uint8(count))
	f.send("identify_response", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, offset)
		protocol.EncodeVLQBytes(output, chunk)
	})
	return nil
}

func (f *Firmware) handleGetClock(data *[]byte) error {
	clock := GetTime()
	f.send("clock", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, clock)
	})
	return nil
}

func (f *Firmware) handleGetConfig(data *[]byte) error {
	shutdown := f.IsShutdown()
	f.send("config", func(output protocol.OutputBuffer) {
		encodeBool(output, shutdown)
		protocol.EncodeVLQUint(output, uint32(f.gen.MaxCapacity()))
	})
	return nil
}

func (f *Firmware) handleEmergencyStop(data *[]byte) error {
	f.Shutdown("emergency stop")
	return nil
}

// handleReset defers the reset to Poll so the ACK for this frame goes out
// first.
func (f *Firmware) handleReset(data *[]byte) error {
	atomic.StoreUint32(&f.resetPending, 1)
	return nil
}
