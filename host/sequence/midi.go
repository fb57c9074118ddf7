package sequence

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"time"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"burstgen/core"
)

// ErrNoNotes is returned when a MIDI file has no playable notes.
var ErrNoNotes = errors.New("no notes found")

// Note is one sounded MIDI note.
type Note struct {
	Key      uint8
	Start    time.Duration
	Duration time.Duration
}

// Freq returns the equal-temperament frequency of the note, A4 = 440 Hz.
func (n Note) Freq() float64 {
	return 440 * math.Pow(2, (float64(n.Key)-69)/12)
}

// MIDIOptions controls how notes become bursts.
type MIDIOptions struct {
	// Track restricts import to one track; -1 takes every track.
	Track int
	// Channel restricts import to one channel; -1 takes every channel.
	Channel int
	// Transpose shifts every key by this many semitones.
	Transpose int
}

// DefaultMIDIOptions imports every track and channel unchanged.
func DefaultMIDIOptions() MIDIOptions {
	return MIDIOptions{Track: -1, Channel: -1}
}

// FromMIDIFile reads a Standard MIDI File and converts it with FromMIDI.
func FromMIDIFile(path string, opts MIDIOptions) ([]core.Burst, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return FromMIDI(f, opts)
}

// FromMIDI converts a monophonic melody to bursts: each note plays its
// pitch for as many pulses as fit in its length. Notes longer than 255
// pulses become several bursts. Overlapping notes are cut at the start of
// the next one and rests are dropped, since the generator cannot idle.
func FromMIDI(r io.Reader, opts MIDIOptions) ([]core.Burst, error) {
	notes, err := ReadNotes(r, opts)
	if err != nil {
		return nil, err
	}
	return NotesToBursts(notes), nil
}

// ReadNotes extracts notes in start order, applying the tempo map.
func ReadNotes(r io.Reader, opts MIDIOptions) ([]Note, error) {
	s, err := smf.ReadFrom(r)
	if err != nil {
		return nil, fmt.Errorf("read MIDI: %w", err)
	}

	ticks, ok := s.TimeFormat.(smf.MetricTicks)
	if !ok {
		return nil, fmt.Errorf("unsupported MIDI time format %v", s.TimeFormat)
	}

	tempo := tempoMap(s)

	var notes []Note
	for ti, track := range s.Tracks {
		if opts.Track >= 0 && ti != opts.Track {
			continue
		}

		var abs uint64
		open := map[uint8]uint64{}
		for _, ev := range track {
			abs += uint64(ev.Delta)
			msg := midi.Message(ev.Message)

			var ch, key, vel uint8
			switch {
			case msg.GetNoteStart(&ch, &key, &vel):
				if opts.Channel >= 0 && int(ch) != opts.Channel {
					continue
				}
				open[key] = abs
			case msg.GetNoteEnd(&ch, &key):
				if opts.Channel >= 0 && int(ch) != opts.Channel {
					continue
				}
				start, ok := open[key]
				if !ok {
					continue
				}
				delete(open, key)
				begin := tempo.at(ticks, start)
				notes = append(notes, Note{
					Key:      transpose(key, opts.Transpose),
					Start:    begin,
					Duration: tempo.at(ticks, abs) - begin,
				})
			}
		}
	}

	if len(notes) == 0 {
		return nil, ErrNoNotes
	}

	sort.SliceStable(notes, func(i, j int) bool { return notes[i].Start < notes[j].Start })
	for i := 0; i+1 < len(notes); i++ {
		if end := notes[i].Start + notes[i].Duration; end > notes[i+1].Start {
			notes[i].Duration = notes[i+1].Start - notes[i].Start
		}
	}
	return notes, nil
}

// NotesToBursts converts each note to one or more bursts at its pitch.
// Notes too short for a single pulse still get one.
func NotesToBursts(notes []Note) []core.Burst {
	var seq []core.Burst
	for _, n := range notes {
		if n.Duration <= 0 {
			continue
		}
		freq := n.Freq()
		hz := core.ClampFrequency(uint16(math.Min(math.Round(freq), math.MaxUint16)))
		// Two toggles per cycle
		pulses := int(math.Round(2 * n.Duration.Seconds() * float64(hz)))
		if pulses < 1 {
			pulses = 1
		}
		for pulses > 0 {
			chunk := min(pulses, math.MaxUint8)
			seq = append(seq, core.Burst{Pulses: uint8(chunk), Freq: hz})
			pulses -= chunk
		}
	}
	return seq
}

func transpose(key uint8, semitones int) uint8 {
	k := int(key) + semitones
	if k < 0 {
		return 0
	}
	if k > 127 {
		return 127
	}
	return uint8(k)
}

type tempoChange struct {
	tick uint64
	bpm  float64
}

// tempoSchedule converts absolute ticks to wall time across tempo changes.
type tempoSchedule []tempoChange

func tempoMap(s *smf.SMF) tempoSchedule {
	changes := tempoSchedule{{tick: 0, bpm: 120}}
	for _, track := range s.Tracks {
		var abs uint64
		for _, ev := range track {
			abs += uint64(ev.Delta)
			var bpm float64
			if ev.Message.GetMetaTempo(&bpm) {
				changes = append(changes, tempoChange{tick: abs, bpm: bpm})
			}
		}
	}
	sort.SliceStable(changes, func(i, j int) bool { return changes[i].tick < changes[j].tick })
	return changes
}

func (ts tempoSchedule) at(ticks smf.MetricTicks, tick uint64) time.Duration {
	var d time.Duration
	for i, c := range ts {
		if c.tick >= tick {
			break
		}
		end := tick
		if i+1 < len(ts) && ts[i+1].tick < tick {
			end = ts[i+1].tick
		}
		d += ticks.Duration(c.bpm, uint32(end-c.tick))
	}
	return d
}
