package core

import "sync/atomic"

// Stats counts generator activity since construction.
type Stats struct {
	Bursts    uint32 // bursts that ran to completion
	Sequences uint32 // sequences that ran to completion
	Stops     uint32 // explicit Stop calls that interrupted playback
	Late      uint32 // completion events delivered after playback ended
}

// GeneratorState is a consistent snapshot of the playback state.
type GeneratorState struct {
	Running bool
	Cursor  uint8
	Size    uint8
}

// Generator plays a buffered sequence of bursts on a BurstTimer.
//
// Load, Start and Stop run in the foreground. OnBurstComplete runs in
// interrupt context and is the only place playback advances. The buffer is
// only written while the generator is idle.
type Generator struct {
	timer BurstTimer

	buf     [MaxBursts]Burst
	size    uint8
	cursor  uint8
	running uint32 // atomic bool

	stats Stats
}

// NewGenerator creates an idle generator that owns timer.
func NewGenerator(timer BurstTimer) *Generator {
	return &Generator{timer: timer}
}

// Load replaces the buffered sequence. The whole sequence becomes visible
// or none of it does. Loading while running is refused.
func (g *Generator) Load(seq []Burst) error {
	if err := validateSequence(seq); err != nil {
		return err
	}

	state := disableInterrupts()
	defer restoreInterrupts(state)

	if g.IsRunning() {
		return ErrGeneratorBusy
	}

	copy(g.buf[:], seq)
	g.size = uint8(len(seq))
	g.cursor = 0

	RecordTiming(EvtBurstLoad, GetTime(), uint32(g.size), 0)
	return nil
}

// Start plays the buffered sequence from the first burst. It does nothing
// when the buffer is empty or playback is already running.
func (g *Generator) Start() {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	if g.size == 0 || g.IsRunning() {
		return
	}

	g.cursor = 0
	atomic.StoreUint32(&g.running, 1)
	regs := ProgramBurst(g.timer, g.buf[0])

	RecordTiming(EvtBurstStart, GetTime(), uint32(regs.Reload), uint32(regs.Repeat))
}

// Stop halts playback and disables the completion interrupt source. It is
// safe to call at any time, including before the first Start. A completion
// interrupt already pending when Stop runs is discarded.
func (g *Generator) Stop() {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	if g.IsRunning() {
		g.stats.Stops++
		RecordTiming(EvtBurstStop, GetTime(), uint32(g.cursor), uint32(g.size))
	}
	g.halt()
}

// halt must be called with interrupts disabled or from the completion handler.
func (g *Generator) halt() {
	atomic.StoreUint32(&g.running, 0)
	g.timer.StopCompareIT()
	g.timer.ClearUpdate()
}

// IsRunning reports whether a sequence is playing.
func (g *Generator) IsRunning() bool {
	return atomic.LoadUint32(&g.running) != 0
}

// MaxCapacity returns the buffer capacity in bursts.
func (g *Generator) MaxCapacity() int {
	return MaxBursts
}

// OnBurstComplete advances playback after the hardware finished a burst.
// It must only be called from the interrupt bridge.
func (g *Generator) OnBurstComplete() {
	if !g.IsRunning() {
		g.stats.Late++
		RecordTiming(EvtLateIRQ, GetTime(), uint32(g.cursor), uint32(g.size))
		return
	}

	g.stats.Bursts++
	g.cursor++
	if g.cursor >= g.size {
		g.halt()
		g.stats.Sequences++
		RecordTiming(EvtBurstDone, GetTime(), uint32(g.size), 0)
		return
	}

	regs := ProgramBurst(g.timer, g.buf[g.cursor])
	RecordTiming(EvtBurstAdvance, GetTime(), uint32(g.cursor), uint32(regs.Reload))
}

// State returns a snapshot of running, cursor and size.
func (g *Generator) State() GeneratorState {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	return GeneratorState{
		Running: g.IsRunning(),
		Cursor:  g.cursor,
		Size:    g.size,
	}
}

// Bursts returns a copy of the buffered sequence.
func (g *Generator) Bursts() []Burst {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	out := make([]Burst, g.size)
	copy(out, g.buf[:g.size])
	return out
}

// Stats returns the activity counters.
func (g *Generator) Stats() Stats {
	state := disableInterrupts()
	defer restoreInterrupts(state)
	return g.stats
}
