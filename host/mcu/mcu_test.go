package mcu

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"burstgen/core"
)

func newTestClient(t *testing.T, autoComplete bool) (*Client, *simPort) {
	t.Helper()
	return newTestClientWithLog(t, autoComplete, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func newTestClientWithLog(t *testing.T, autoComplete bool, log *slog.Logger) (*Client, *simPort) {
	t.Helper()
	port := newSimPort(autoComplete)
	c := New(port, log)
	t.Cleanup(func() { c.Close() })

	if err := c.RetrieveDictionary(); err != nil {
		t.Fatalf("RetrieveDictionary failed: %v", err)
	}
	return c, port
}

func TestClientDictionary(t *testing.T) {
	c, _ := newTestClient(t, false)

	dict := c.Dictionary()
	if dict == nil {
		t.Fatal("Expected dictionary")
	}
	if dict.Config["MCU"] != "sim" {
		t.Errorf("Expected MCU sim, got %q", dict.Config["MCU"])
	}
	if v, err := c.Constant("BURST_MAX"); err != nil || v != core.MaxBursts {
		t.Errorf("Expected BURST_MAX %d, got %d (%v)", core.MaxBursts, v, err)
	}
	if _, err := c.Constant("NOPE"); !errors.Is(err, ErrUnknownName) {
		t.Errorf("Expected ErrUnknownName, got %v", err)
	}
	if len(c.DictionaryRaw()) == 0 {
		t.Error("Expected raw dictionary bytes")
	}
}

func TestClientRequiresDictionary(t *testing.T) {
	port := newSimPort(false)
	c := New(port, slog.New(slog.NewTextHandler(io.Discard, nil)))
	defer c.Close()

	if err := c.Send("burst_query"); !errors.Is(err, ErrNotIdentified) {
		t.Errorf("Expected ErrNotIdentified, got %v", err)
	}
}

func TestClientLoadStartStop(t *testing.T) {
	c, port := newTestClient(t, false)

	st, err := c.Load([]core.Burst{{Pulses: 1, Freq: 1000}, {Pulses: 2, Freq: 2000}, {Pulses: 1, Freq: 500}})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if st.Size != 3 || st.Running || st.Max != core.MaxBursts {
		t.Errorf("Unexpected state after load: %v", st)
	}

	st, err = c.Start()
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !st.Running || st.Cursor != 0 {
		t.Errorf("Expected running at cursor 0, got %v", st)
	}

	if err := c.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if port.running() {
		t.Error("Expected firmware stopped")
	}
	st, err = c.Query()
	if err != nil || st.Running {
		t.Errorf("Expected idle state, got %v (%v)", st, err)
	}
}

func TestClientLoadErrors(t *testing.T) {
	c, _ := newTestClient(t, false)

	tooLong := make([]core.Burst, core.MaxBursts+1)
	for i := range tooLong {
		tooLong[i] = core.Burst{Pulses: 1, Freq: 1000}
	}
	if _, err := c.Load(tooLong); !errors.Is(err, core.ErrSequenceTooLong) {
		t.Errorf("Expected ErrSequenceTooLong, got %v", err)
	}

	if _, err := c.Load([]core.Burst{{Pulses: 0, Freq: 1000}}); !errors.Is(err, core.ErrZeroPulses) {
		t.Errorf("Expected ErrZeroPulses, got %v", err)
	}

	if _, err := c.Load([]core.Burst{{Pulses: 1, Freq: 1000}}); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if _, err := c.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if _, err := c.Load([]core.Burst{{Pulses: 1, Freq: 2000}}); !errors.Is(err, core.ErrGeneratorBusy) {
		t.Errorf("Expected ErrGeneratorBusy, got %v", err)
	}
}

func TestClientPlayPages(t *testing.T) {
	c, port := newTestClient(t, true)

	seq := make([]core.Burst, 23)
	for i := range seq {
		seq[i] = core.Burst{Pulses: 1, Freq: 1000}
	}

	var pages []int
	err := c.Play(context.Background(), seq, PlayOptions{
		Poll: time.Millisecond,
		Progress: func(page, total int, s []core.Burst) {
			pages = append(pages, len(s))
		},
	})
	if err != nil {
		t.Fatalf("Play failed: %v", err)
	}

	if len(pages) != 3 || pages[0] != 10 || pages[2] != 3 {
		t.Errorf("Unexpected pages: %v", pages)
	}
	stats := port.stats()
	if stats.Sequences != 3 || stats.Bursts != 23 {
		t.Errorf("Expected 3 sequences of 23 bursts, got %+v", stats)
	}
}

func TestClientPlayStalls(t *testing.T) {
	c, port := newTestClient(t, false)

	err := c.Play(context.Background(), []core.Burst{{Pulses: 1, Freq: 1000}, {Pulses: 1, Freq: 1000}}, PlayOptions{
		Poll:         time.Millisecond,
		StallTimeout: 20 * time.Millisecond,
	})
	if !errors.Is(err, ErrStalled) {
		t.Fatalf("Expected ErrStalled, got %v", err)
	}
	if port.running() {
		t.Error("Expected stalled playback to be stopped")
	}
}

func TestClientPlayStallLogsStopFailure(t *testing.T) {
	var logs bytes.Buffer
	c, port := newTestClientWithLog(t, false, slog.New(slog.NewTextHandler(&logs, nil)))
	stop, err := c.command("burst_stop")
	if err != nil {
		t.Fatalf("burst_stop lookup failed: %v", err)
	}
	port.failCommand(int(stop.id))

	err = c.Play(context.Background(), []core.Burst{{Pulses: 1, Freq: 1000}}, PlayOptions{
		Poll:         time.Millisecond,
		StallTimeout: 20 * time.Millisecond,
	})
	if !errors.Is(err, ErrStalled) {
		t.Fatalf("Expected ErrStalled, got %v", err)
	}
	if !strings.Contains(logs.String(), "stop after stall failed") {
		t.Errorf("Expected the failed stop to be logged, got %q", logs.String())
	}
}

func TestClientPlayCancel(t *testing.T) {
	c, port := newTestClient(t, false)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := c.Play(ctx, []core.Burst{{Pulses: 1, Freq: 1000}}, PlayOptions{
		Poll:         time.Millisecond,
		StallTimeout: time.Hour,
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Expected context deadline, got %v", err)
	}
	if port.running() {
		t.Error("Expected cancelled playback to be stopped")
	}
}

func TestClientEmergencyStop(t *testing.T) {
	c, port := newTestClient(t, false)

	if _, err := c.Load([]core.Burst{{Pulses: 1, Freq: 1000}}); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if _, err := c.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := c.EmergencyStop(); err != nil {
		t.Fatalf("EmergencyStop failed: %v", err)
	}
	if !c.IsShutdown() {
		t.Error("Expected client to see the shutdown")
	}
	if port.running() {
		t.Error("Expected playback stopped")
	}

	if _, err := c.Start(); !errors.Is(err, core.ErrShutdown) {
		t.Errorf("Expected ErrShutdown, got %v", err)
	}
	shutdown, capacity, err := c.Config()
	if err != nil || !shutdown || capacity != core.MaxBursts {
		t.Errorf("Expected shutdown config, got %v %d %v", shutdown, capacity, err)
	}
}

func TestClientQueueStart(t *testing.T) {
	c, port := newTestClient(t, false)

	if _, err := c.Load([]core.Burst{{Pulses: 1, Freq: 1000}}); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	now, err := c.Clock()
	if err != nil {
		t.Fatalf("Clock failed: %v", err)
	}

	st, err := c.QueueStart(now + 5*clockStep/2)
	if err != nil {
		t.Fatalf("QueueStart failed: %v", err)
	}
	if st.Running || !st.Queued {
		t.Errorf("Expected queued but idle, got %v", st)
	}

	st, err = c.Query()
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if !st.Running || st.Queued {
		t.Errorf("Expected started from the queue, got %v", st)
	}
	if !port.running() {
		t.Error("Expected firmware running")
	}
}

func TestClientEvents(t *testing.T) {
	core.ClearTimingRing()
	c, _ := newTestClient(t, true)

	if _, err := c.Load([]core.Burst{{Pulses: 1, Freq: 1000}, {Pulses: 1, Freq: 2000}}); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if _, err := c.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	events, st, err := c.Events()
	if err != nil {
		t.Fatalf("Events failed: %v", err)
	}
	if st.Running {
		t.Errorf("Expected idle after auto-completion, got %v", st)
	}

	want := []uint8{core.EvtBurstLoad, core.EvtBurstStart, core.EvtBurstAdvance, core.EvtBurstDone}
	if len(events) != len(want) {
		t.Fatalf("Expected %d events, got %+v", len(want), events)
	}
	for i := range want {
		if events[i].EventType != want[i] {
			t.Errorf("Event %d: expected type %d, got %d", i, want[i], events[i].EventType)
		}
	}
}

func TestClientEventsFullRing(t *testing.T) {
	core.ClearTimingRing()
	c, _ := newTestClient(t, true)

	seq := make([]core.Burst, core.MaxBursts)
	for i := range seq {
		seq[i] = core.Burst{Pulses: 2, Freq: uint16(1000 + 100*i)}
	}

	// Each play records LOAD, START, one ADVANCE per later burst and DONE
	var want []core.TimingEvent
	for play := 0; play < 3; play++ {
		if _, err := c.Load(seq); err != nil {
			t.Fatalf("Load %d failed: %v", play, err)
		}
		if _, err := c.Start(); err != nil {
			t.Fatalf("Start %d failed: %v", play, err)
		}
		want = append(want,
			core.TimingEvent{EventType: core.EvtBurstLoad, Value1: uint32(len(seq))},
			core.TimingEvent{EventType: core.EvtBurstStart, Value1: uint32(core.ComputeRegisters(seq[0]).Reload)})
		for i := 1; i < len(seq); i++ {
			want = append(want, core.TimingEvent{EventType: core.EvtBurstAdvance, Value1: uint32(i)})
		}
		want = append(want, core.TimingEvent{EventType: core.EvtBurstDone, Value1: uint32(len(seq))})
	}
	want = want[len(want)-core.TimingRingSize:]

	events, _, err := c.Events()
	if err != nil {
		t.Fatalf("Events failed: %v", err)
	}
	if len(events) != core.TimingRingSize {
		t.Fatalf("Expected %d events, got %d", core.TimingRingSize, len(events))
	}
	for i := range want {
		if events[i].EventType != want[i].EventType || events[i].Value1 != want[i].Value1 {
			t.Errorf("Event %d: expected type %d v1=%d, got type %d v1=%d",
				i, want[i].EventType, want[i].Value1, events[i].EventType, events[i].Value1)
		}
	}
}
