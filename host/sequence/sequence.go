// Package sequence builds burst sequences on the host, from a compact text
// notation or from a Standard MIDI File.
package sequence

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"burstgen/core"
)

// ErrEmpty is returned when input contains no bursts.
var ErrEmpty = errors.New("empty burst sequence")

// Parse reads bursts written as PULSESxFREQ separated by spaces or commas,
// for example "1x1000 2x2000 1x500". A bare FREQ means one pulse.
// Frequencies outside the firmware's range are accepted; the firmware
// clamps them.
func Parse(s string) ([]core.Burst, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == ',' || r == '\t' || r == '\n'
	})
	if len(fields) == 0 {
		return nil, ErrEmpty
	}

	seq := make([]core.Burst, 0, len(fields))
	for i, f := range fields {
		b, err := parseBurst(f)
		if err != nil {
			return nil, fmt.Errorf("burst %d %q: %w", i+1, f, err)
		}
		seq = append(seq, b)
	}
	return seq, nil
}

func parseBurst(f string) (core.Burst, error) {
	pulses := uint64(1)
	freqText := f

	if p, rest, ok := strings.Cut(strings.ToLower(f), "x"); ok {
		n, err := strconv.ParseUint(p, 10, 8)
		if err != nil {
			return core.Burst{}, fmt.Errorf("pulse count: %w", err)
		}
		pulses = n
		freqText = rest
	}
	freqText = strings.TrimSuffix(strings.ToLower(freqText), "hz")

	if pulses == 0 {
		return core.Burst{}, core.ErrZeroPulses
	}
	freq, err := strconv.ParseUint(freqText, 10, 16)
	if err != nil {
		return core.Burst{}, fmt.Errorf("frequency: %w", err)
	}
	return core.Burst{Pulses: uint8(pulses), Freq: uint16(freq)}, nil
}

// Format writes seq in the notation Parse accepts.
func Format(seq []core.Burst) string {
	parts := make([]string, len(seq))
	for i, b := range seq {
		parts[i] = fmt.Sprintf("%dx%d", b.Pulses, b.Freq)
	}
	return strings.Join(parts, " ")
}

// Pages splits seq into consecutive chunks that fit the firmware buffer.
func Pages(seq []core.Burst, size int) [][]core.Burst {
	if size <= 0 {
		size = core.MaxBursts
	}
	var pages [][]core.Burst
	for len(seq) > 0 {
		n := min(size, len(seq))
		pages = append(pages, seq[:n:n])
		seq = seq[n:]
	}
	return pages
}

// Duration returns the nominal play time of seq in seconds. Every pulse
// is one output toggle lasting reload+1 timer ticks, so it reflects the
// clamped and truncated periods the firmware actually programs.
func Duration(seq []core.Burst) float64 {
	var ticks uint64
	for _, b := range seq {
		regs := core.ComputeRegisters(b)
		ticks += uint64(b.Pulses) * (uint64(regs.Reload) + 1)
	}
	return float64(ticks) / core.TimerTickHz
}
