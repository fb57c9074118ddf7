//go:build tinygo

// Package link runs the firmware side of the host link: it moves bytes
// between the USB serial port and the protocol transport and drives the
// firmware's poll loop.
package link

import (
	"machine"
	"time"

	"burstgen/core"
	"burstgen/protocol"
)

// Board supplies the per-target pieces of the main loop.
type Board struct {
	// Clock returns the free running 1 MHz system clock.
	Clock func() uint32
	// Reset reboots the MCU. It must not return.
	Reset func()
}

// Link owns the transport and the byte buffers around it.
type Link struct {
	fw    *core.Firmware
	board Board

	input     *protocol.FifoBuffer
	output    *protocol.ScratchOutput
	transport *protocol.Transport

	// Debug counters
	received uint32
	sent     uint32
	errors   uint32

	disconnected  bool
	writeFailures uint32
}

// New wires fw to the USB serial port.
func New(fw *core.Firmware, board Board) *Link {
	l := &Link{
		fw:     fw,
		board:  board,
		input:  protocol.NewFifoBuffer(256),
		output: protocol.NewScratchOutput(),
	}

	l.transport = protocol.NewTransport(l.output, fw.HandleCommand)
	l.transport.SetResetCallback(func() {
		// Host reset: drop partial frames and clear the shutdown latch
		l.input.Reset()
		l.output.Reset()
		fw.ResetState()
	})
	// ACKs and responses go out as soon as they are encoded
	l.transport.SetFlushCallback(l.flush)

	fw.SetResponder(l.transport)
	fw.SetResetHandler(board.Reset)
	return l
}

// Run starts the USB reader and never returns.
func (l *Link) Run() {
	err := machine.Serial.Configure(machine.UARTConfig{})
	if err != nil {
		return
	}

	go l.readLoop()

	for {
		l.step()
		// Yield to the reader goroutine
		time.Sleep(10 * time.Microsecond)
	}
}

func (l *Link) step() {
	defer func() {
		if r := recover(); r != nil {
			l.errors++
			l.input.Reset()
			l.output.Reset()
		}
	}()

	now := l.board.Clock()
	core.SetTime(now)

	if l.input.Available() > 0 {
		l.transport.Receive(l.input)
		l.received++
	}

	if len(l.output.Result()) > 0 {
		l.flush()
		l.sent++
	}

	// Timers and the deferred reset run after pending output is written
	l.fw.Poll(now)
}

func (l *Link) readLoop() {
	defer func() {
		if r := recover(); r != nil {
			l.errors++
			time.Sleep(100 * time.Millisecond)
			go l.readLoop()
		}
	}()

	for {
		if machine.Serial.Buffered() > 0 {
			b, err := machine.Serial.ReadByte()
			if err != nil {
				l.errors++
				time.Sleep(time.Millisecond)
				continue
			}

			if l.disconnected {
				// First byte after a disconnect starts a fresh session;
				// the reset callback clears the buffers and firmware state
				l.disconnected = false
				l.transport.Reset()
				l.writeFailures = 0
			}

			if l.input.Write([]byte{b}) == 0 {
				l.errors++
				time.Sleep(10 * time.Millisecond)
			}
		}
		time.Sleep(100 * time.Microsecond)
	}
}

func (l *Link) flush() {
	result := l.output.Result()
	written := 0
	for written < len(result) {
		n, err := machine.Serial.Write(result[written:])
		if err != nil || n == 0 {
			l.writeFailed()
			return
		}
		written += n
	}
	l.writeFailures = 0
	l.output.Reset()
}

func (l *Link) writeFailed() {
	l.writeFailures++
	if l.writeFailures > 10 {
		// Host is gone; stale output is dropped
		l.disconnected = true
		l.writeFailures = 0
		l.output.Reset()
		l.input.Reset()
	}
}

// Stats returns the received, sent and error counters.
func (l *Link) Stats() (received, sent, errors uint32) {
	return l.received, l.sent, l.errors
}
