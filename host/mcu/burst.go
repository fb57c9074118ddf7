package mcu

import (
	"context"
	"errors"
	"fmt"
	"time"

	"burstgen/core"
	"burstgen/host/sequence"
)

// ErrStalled is returned by Play when playback stops advancing, which is
// how a lost completion interrupt shows up on the host.
var ErrStalled = errors.New("playback stalled")

// State mirrors the firmware's burst_state response.
type State struct {
	Running bool
	Cursor  int
	Size    int
	Max     int
	Queued  bool
}

func (s State) String() string {
	return fmt.Sprintf("running=%v cursor=%d size=%d max=%d queued=%v",
		s.Running, s.Cursor, s.Size, s.Max, s.Queued)
}

// burstResult converts burst_state or burst_error into a State or error.
func burstResult(resp *Response) (State, error) {
	if resp.Name == "burst_error" {
		code := uint8(resp.Uint("code"))
		return State{}, fmt.Errorf("firmware rejected command: %w", core.ErrorFromCode(code))
	}
	return State{
		Running: resp.Bool("running"),
		Cursor:  int(resp.Uint("cursor")),
		Size:    int(resp.Uint("size")),
		Max:     int(resp.Uint("max")),
		Queued:  resp.Bool("queued"),
	}, nil
}

var stateOrError = []string{"burst_state", "burst_error"}

// Load replaces the firmware's burst buffer.
func (c *Client) Load(seq []core.Burst) (State, error) {
	resp, err := c.exchange(stateOrError, call{"burst_load", []any{core.EncodeBursts(seq)}})
	if err != nil {
		return State{}, err
	}
	return burstResult(resp)
}

// Start begins playback and returns the state right after it.
func (c *Client) Start() (State, error) {
	resp, err := c.exchange(stateOrError,
		call{name: "burst_start"},
		call{name: "burst_query"})
	if err != nil {
		return State{}, err
	}
	return burstResult(resp)
}

// QueueStart starts playback when the MCU clock reaches clock.
func (c *Client) QueueStart(clock uint32) (State, error) {
	resp, err := c.exchange(stateOrError,
		call{"queue_burst_start", []any{clock}},
		call{name: "burst_query"})
	if err != nil {
		return State{}, err
	}
	return burstResult(resp)
}

// StartAfter queues playback d from now on the MCU clock.
func (c *Client) StartAfter(d time.Duration) (State, error) {
	now, err := c.Clock()
	if err != nil {
		return State{}, err
	}
	return c.QueueStart(now + core.ClockFromUS(uint32(d.Microseconds())))
}

// Stop halts playback and drops a queued start.
func (c *Client) Stop() error {
	return c.Send("burst_stop")
}

// Query returns the current playback state.
func (c *Client) Query() (State, error) {
	resp, err := c.exchange(stateOrError, call{name: "burst_query"})
	if err != nil {
		return State{}, err
	}
	return burstResult(resp)
}

// Clock returns the MCU system clock.
func (c *Client) Clock() (uint32, error) {
	resp, err := c.exchange([]string{"clock"}, call{name: "get_clock"})
	if err != nil {
		return 0, err
	}
	return resp.Uint("clock"), nil
}

// Config reports the shutdown latch and buffer capacity.
func (c *Client) Config() (shutdown bool, capacity int, err error) {
	resp, err := c.exchange([]string{"config"}, call{name: "get_config"})
	if err != nil {
		return false, 0, err
	}
	return resp.Bool("is_shutdown"), int(resp.Uint("burst_max")), nil
}

// EmergencyStop stops playback and latches the firmware in shutdown.
func (c *Client) EmergencyStop() error {
	return c.Send("emergency_stop")
}

// Events downloads the firmware's timing ring, oldest first.
func (c *Client) Events() ([]core.TimingEvent, State, error) {
	c.transport.DrainResponses()
	if err := c.Send("burst_get_events"); err != nil {
		return nil, State{}, err
	}

	var events []core.TimingEvent
	for {
		resp, err := c.Await("burst_event", "burst_state")
		if err != nil {
			return events, State{}, err
		}
		if resp.Name == "burst_state" {
			st, err := burstResult(resp)
			return events, st, err
		}
		events = append(events, core.TimingEvent{
			EventType: uint8(resp.Uint("type")),
			Clock:     resp.Uint("clock"),
			Value1:    resp.Uint("v1"),
			Value2:    resp.Uint("v2"),
		})
	}
}

// PlayOptions controls Play.
type PlayOptions struct {
	// Poll is the interval between burst_query polls.
	Poll time.Duration
	// StallTimeout bounds how long the cursor may stay put. Zero derives
	// it from the page's nominal duration.
	StallTimeout time.Duration
	// Progress, if set, is called before each page starts.
	Progress func(page, pages int, seq []core.Burst)
}

// Play plays seq, splitting it into pages that fit the firmware buffer
// and loading each page once the previous one finished. Cancelling ctx
// stops playback.
func (c *Client) Play(ctx context.Context, seq []core.Burst, opts PlayOptions) error {
	if len(seq) == 0 {
		return sequence.ErrEmpty
	}
	if opts.Poll <= 0 {
		opts.Poll = 20 * time.Millisecond
	}

	capacity := core.MaxBursts
	if v, err := c.Constant("BURST_MAX"); err == nil && v > 0 {
		capacity = int(v)
	}

	pages := sequence.Pages(seq, capacity)
	for i, page := range pages {
		if opts.Progress != nil {
			opts.Progress(i, len(pages), page)
		}
		if _, err := c.Load(page); err != nil {
			return fmt.Errorf("page %d: %w", i+1, err)
		}
		if _, err := c.Start(); err != nil {
			return fmt.Errorf("page %d: %w", i+1, err)
		}
		if err := c.waitIdle(ctx, page, opts); err != nil {
			return fmt.Errorf("page %d: %w", i+1, err)
		}
	}
	return nil
}

func (c *Client) waitIdle(ctx context.Context, page []core.Burst, opts PlayOptions) error {
	stall := opts.StallTimeout
	if stall <= 0 {
		nominal := time.Duration(sequence.Duration(page) * float64(time.Second))
		stall = 2*nominal + time.Second
	}

	ticker := time.NewTicker(opts.Poll)
	defer ticker.Stop()

	lastCursor := -1
	lastMove := time.Now()
	for {
		st, err := c.Query()
		if err != nil {
			return err
		}
		if !st.Running {
			if c.IsShutdown() {
				return ErrShutdown
			}
			return nil
		}
		if st.Cursor != lastCursor {
			lastCursor = st.Cursor
			lastMove = time.Now()
		} else if time.Since(lastMove) > stall {
			if err := c.Stop(); err != nil {
				c.log.Warn("stop after stall failed", "err", err)
			}
			return fmt.Errorf("%w at burst %d of %d", ErrStalled, st.Cursor+1, st.Size)
		}

		select {
		case <-ctx.Done():
			if err := c.Stop(); err != nil {
				c.log.Warn("stop after cancel failed", "err", err)
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
