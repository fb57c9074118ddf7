//go:build rp2040

package main

import (
	"device/rp"
	"machine"
	"time"

	rp2pio "github.com/tinygo-org/pio/rp2-pio"
)

// buildBurstProgram creates the burst PIO program.
//
// Each word pulled from the TX FIFO is a half-period count minus one. The
// program drives the pin high and low for that many half periods, every
// half period lasting burstHalfCycles PIO clocks, then pushes a token into
// the RX FIFO. The RX-not-empty interrupt is the completion event.
func buildBurstProgram() []uint16 {
	asm := rp2pio.AssemblerV0{SidesetBits: 0}
	return []uint16{
		// .wrap_target
		asm.Pull(false, true).Encode(),        // 0: pull block
		asm.Out(rp2pio.OutDestX, 32).Encode(), // 1: out x, 32
		// high:
		asm.Set(rp2pio.SetDestPins, 1).Delay(31).Encode(), // 2: set pins, 1 [31]
		asm.Jmp(5, rp2pio.JmpXNZeroDec).Encode(),           // 3: jmp x--, low
		asm.Jmp(8, rp2pio.JmpAlways).Encode(),              // 4: jmp done
		// low:
		asm.Set(rp2pio.SetDestPins, 0).Delay(31).Encode(), // 5: set pins, 0 [31]
		asm.Jmp(2, rp2pio.JmpXNZeroDec).Encode(),           // 6: jmp x--, high
		asm.Jmp(8, rp2pio.JmpAlways).Encode(),              // 7: jmp done
		// done:
		asm.Push(false, false).Encode(), // 8: push noblock
		// .wrap
	}
}

const (
	burstPIOOrigin = 0 // jump targets are absolute

	// PIO clocks per half period: set [31] plus one jmp
	burstHalfCycles = 33
)

// PIOTimer drives one state machine as a core.BurstTimer. A half period
// of the PIO program stands in for one timer update period, so reload and
// repetition keep their 1 MHz timer meaning.
type PIOTimer struct {
	pio    *rp2pio.PIO
	sm     rp2pio.StateMachine
	pin    machine.Pin
	offset uint8
	smNum  uint8

	reload uint16
	repeat uint8
}

// NewPIOTimer returns a timer on state machine smNum of PIO0.
func NewPIOTimer(smNum uint8, pin machine.Pin) *PIOTimer {
	return &PIOTimer{
		pio:   rp2pio.PIO0,
		sm:    rp2pio.PIO0.StateMachine(smNum),
		pin:   pin,
		smNum: smNum,
	}
}

// Init loads the program and parks the state machine with the pin low.
func (t *PIOTimer) Init() error {
	t.sm.TryClaim()

	program := buildBurstProgram()
	offset, err := t.pio.AddProgram(program, burstPIOOrigin)
	if err != nil {
		return err
	}
	t.offset = offset

	t.pin.Configure(machine.PinConfig{Mode: t.pio.PinMode()})

	cfg := rp2pio.DefaultStateMachineConfig()
	cfg.SetSetPins(t.pin, 1)
	// Explicit pull, full 32-bit count
	cfg.SetOutShift(true, false, 32)
	cfg.SetWrap(offset+uint8(len(program))-1, offset)

	t.sm.Init(offset, cfg)
	t.sm.SetPindirsConsecutive(t.pin, 1, true)
	t.sm.SetPinsConsecutive(t.pin, 1, false)
	return nil
}

func (t *PIOTimer) SetReload(reload uint16) {
	t.reload = reload
}

func (t *PIOTimer) SetRepetition(count uint8) {
	t.repeat = count
}

// ForceUpdate applies the reload value as the state machine clock divider.
func (t *PIOTimer) ForceUpdate() {
	halfPeriod := time.Duration(t.reload+1) * time.Microsecond
	whole, frac, err := rp2pio.ClkDivFromPeriod(uint32(halfPeriod/burstHalfCycles), uint32(machine.CPUFrequency()))
	if err != nil {
		// Clamped frequencies always yield a valid divider
		return
	}
	t.sm.SetClkDiv(whole, frac)
}

// StartCompareIT queues the half-period count and unmasks the RX-not-empty
// interrupt for this state machine.
func (t *PIOTimer) StartCompareIT() {
	t.sm.TxPut(uint32(t.repeat))
	rp.PIO0.IRQ0_INTE.SetBits(t.rxMask())
	t.sm.SetEnabled(true)
}

// StopCompareIT halts the state machine, rewinds it to the pull and drives
// the pin low.
func (t *PIOTimer) StopCompareIT() {
	rp.PIO0.IRQ0_INTE.ClearBits(t.rxMask())
	t.sm.SetEnabled(false)
	t.sm.ClearFIFOs()
	t.sm.Restart()
	t.sm.ClkDivRestart()
	t.sm.Exec(rp2pio.EncodeJmp(t.offset, rp2pio.JmpAlways))
	t.sm.SetPinsConsecutive(t.pin, 1, false)
}

func (t *PIOTimer) UpdatePending() bool {
	return rp.PIO0.IRQ0_INTE.HasBits(t.rxMask()) && !t.sm.IsRxFIFOEmpty()
}

func (t *PIOTimer) ClearUpdate() {
	for !t.sm.IsRxFIFOEmpty() {
		t.sm.RxGet()
	}
}

// rxMask selects SMn_RXNEMPTY in the PIO interrupt registers.
func (t *PIOTimer) rxMask() uint32 {
	return 1 << t.smNum
}
