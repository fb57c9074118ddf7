package mcu

import (
	"errors"
	"io"
	"sync"

	"burstgen/core"
	"burstgen/protocol"
)

// simTimer is a BurstTimer whose bursts complete when the simulator says so.
type simTimer struct {
	enabled bool
	pending bool
}

func (t *simTimer) SetReload(uint16)    {}
func (t *simTimer) SetRepetition(uint8) {}
func (t *simTimer) ForceUpdate()        {}
func (t *simTimer) StartCompareIT()     { t.enabled = true }
func (t *simTimer) StopCompareIT()      { t.enabled = false }
func (t *simTimer) UpdatePending() bool { return t.enabled && t.pending }
func (t *simTimer) ClearUpdate()        { t.pending = false }

// simPort runs the real firmware command layer behind an in-memory port.
// Every write advances the MCU clock by clockStep ticks.
type simPort struct {
	mu           sync.Mutex
	fw           *core.Firmware
	gen          *core.Generator
	timer        *simTimer
	bridge       *core.IRQBridge
	transport    *protocol.Transport
	in           *protocol.FifoBuffer
	out          *protocol.ScratchOutput
	frames       [][]byte
	clock        uint32
	autoComplete bool

	// Writes carrying command failCmd fail when failOn is set
	failOn  bool
	failCmd int

	rx     chan []byte
	closed chan struct{}
	once   sync.Once
}

const clockStep = 1000

var errSimWrite = errors.New("sim: write failed")

func newSimPort(autoComplete bool) *simPort {
	p := &simPort{
		timer:        &simTimer{},
		in:           protocol.NewFifoBuffer(512),
		out:          protocol.NewScratchOutput(),
		autoComplete: autoComplete,
		rx:           make(chan []byte, 1024),
		closed:       make(chan struct{}),
	}
	p.gen = core.NewGenerator(p.timer)
	p.bridge = core.NewIRQBridge(p.timer)
	p.bridge.Register(p.gen.OnBurstComplete)

	p.fw = core.NewFirmware(p.gen, "sim")
	p.transport = protocol.NewTransport(p.out, p.fw.HandleCommand)
	p.transport.SetResetCallback(p.fw.ResetState)
	p.transport.SetFlushCallback(func() {
		p.frames = append(p.frames, append([]byte(nil), p.out.Result()...))
		p.out.Reset()
	})
	p.fw.SetResponder(p.transport)
	p.fw.Poll(0)
	return p
}

// failCommand makes every later write of command id fail.
func (p *simPort) failCommand(id int) {
	p.mu.Lock()
	p.failOn, p.failCmd = true, id
	p.mu.Unlock()
}

func (p *simPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	if p.failOn && len(b) > protocol.MessageHeaderSize {
		data := b[protocol.MessageHeaderSize:]
		if id, err := protocol.DecodeVLQUint(&data); err == nil && int(id) == p.failCmd {
			p.mu.Unlock()
			return 0, errSimWrite
		}
	}
	p.in.Write(b)
	p.transport.Receive(p.in)

	p.clock += clockStep
	p.fw.Poll(p.clock)
	if p.autoComplete {
		for i := 0; p.gen.IsRunning() && i < 1000; i++ {
			p.timer.pending = true
			p.bridge.Handle()
		}
	}

	frames := p.frames
	p.frames = nil
	p.mu.Unlock()

	for _, f := range frames {
		p.rx <- f
	}
	return len(b), nil
}

func (p *simPort) Read(b []byte) (int, error) {
	select {
	case f := <-p.rx:
		return copy(b, f), nil
	case <-p.closed:
		return 0, io.EOF
	}
}

func (p *simPort) Close() error {
	p.once.Do(func() { close(p.closed) })
	return nil
}

func (p *simPort) stats() core.Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.gen.Stats()
}

func (p *simPort) running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.gen.IsRunning()
}
