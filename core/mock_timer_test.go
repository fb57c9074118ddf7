package core

// timerOp is one recorded call on mockTimer.
type timerOp struct {
	name  string
	value uint32
}

// mockTimer records register writes and models the update flag and its
// interrupt enable.
type mockTimer struct {
	ops []timerOp

	reload  uint16
	repeat  uint8
	enabled bool
	pending bool
}

func (m *mockTimer) SetReload(reload uint16) {
	m.reload = reload
	m.ops = append(m.ops, timerOp{"reload", uint32(reload)})
}

func (m *mockTimer) SetRepetition(count uint8) {
	m.repeat = count
	m.ops = append(m.ops, timerOp{"repeat", uint32(count)})
}

func (m *mockTimer) ForceUpdate() {
	m.ops = append(m.ops, timerOp{name: "update"})
}

func (m *mockTimer) StartCompareIT() {
	m.enabled = true
	m.ops = append(m.ops, timerOp{name: "start"})
}

func (m *mockTimer) StopCompareIT() {
	m.enabled = false
	m.ops = append(m.ops, timerOp{name: "stop"})
}

func (m *mockTimer) UpdatePending() bool {
	return m.enabled && m.pending
}

func (m *mockTimer) ClearUpdate() {
	m.pending = false
}

// complete simulates the hardware finishing the programmed burst.
func (m *mockTimer) complete() {
	m.pending = true
}

// programmed returns the (reload, repeat) pairs written so far.
func (m *mockTimer) programmed() []TimerRegisters {
	var out []TimerRegisters
	var cur TimerRegisters
	for _, op := range m.ops {
		switch op.name {
		case "reload":
			cur.Reload = uint16(op.value)
		case "repeat":
			cur.Repeat = uint8(op.value)
		case "start":
			out = append(out, cur)
		}
	}
	return out
}

func (m *mockTimer) count(name string) int {
	n := 0
	for _, op := range m.ops {
		if op.name == name {
			n++
		}
	}
	return n
}

func (m *mockTimer) reset() {
	m.ops = nil
}
