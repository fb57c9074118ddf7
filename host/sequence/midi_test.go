package sequence

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"burstgen/core"
)

// writeSMF builds a single-track file at 480 ticks per quarter note.
func writeSMF(t *testing.T, build func(tr *smf.Track)) *bytes.Buffer {
	t.Helper()

	var tr smf.Track
	build(&tr)
	tr.Close(0)

	s := smf.New()
	s.TimeFormat = smf.MetricTicks(480)
	if err := s.Add(tr); err != nil {
		t.Fatalf("Add track: %v", err)
	}

	var buf bytes.Buffer
	if _, err := s.WriteTo(&buf); err != nil {
		t.Fatalf("Write SMF: %v", err)
	}
	return &buf
}

func TestReadNotes(t *testing.T) {
	buf := writeSMF(t, func(tr *smf.Track) {
		tr.Add(0, smf.MetaTempo(120))
		tr.Add(0, midi.NoteOn(0, 69, 100))
		tr.Add(480, midi.NoteOff(0, 69))
		tr.Add(480, midi.NoteOn(0, 81, 100))
		tr.Add(960, midi.NoteOff(0, 81))
	})

	notes, err := ReadNotes(buf, DefaultMIDIOptions())
	if err != nil {
		t.Fatalf("ReadNotes failed: %v", err)
	}
	if len(notes) != 2 {
		t.Fatalf("Expected 2 notes, got %d", len(notes))
	}

	want := []Note{
		{Key: 69, Start: 0, Duration: 500 * time.Millisecond},
		{Key: 81, Start: time.Second, Duration: time.Second},
	}
	for i := range want {
		if notes[i] != want[i] {
			t.Errorf("Note %d: expected %+v, got %+v", i, want[i], notes[i])
		}
	}
}

func TestFromMIDISplitsLongNotes(t *testing.T) {
	buf := writeSMF(t, func(tr *smf.Track) {
		tr.Add(0, midi.NoteOn(0, 69, 100))
		tr.Add(480, midi.NoteOff(0, 69))
		tr.Add(0, midi.NoteOn(0, 81, 100))
		tr.Add(960, midi.NoteOff(0, 81))
	})

	seq, err := FromMIDI(buf, DefaultMIDIOptions())
	if err != nil {
		t.Fatalf("FromMIDI failed: %v", err)
	}

	// 0.5 s of 440 Hz is 440 toggles, 1 s of 880 Hz is 1760, split at 255
	want := []core.Burst{
		{Pulses: 255, Freq: 440}, {Pulses: 185, Freq: 440},
		{Pulses: 255, Freq: 880}, {Pulses: 255, Freq: 880}, {Pulses: 255, Freq: 880}, {Pulses: 255, Freq: 880}, {Pulses: 255, Freq: 880}, {Pulses: 255, Freq: 880}, {Pulses: 230, Freq: 880},
	}
	if len(seq) != len(want) {
		t.Fatalf("Expected %v, got %v", want, seq)
	}
	for i := range want {
		if seq[i] != want[i] {
			t.Errorf("Burst %d: expected %+v, got %+v", i, want[i], seq[i])
		}
	}
}

func TestReadNotesTempoChange(t *testing.T) {
	buf := writeSMF(t, func(tr *smf.Track) {
		tr.Add(0, smf.MetaTempo(120))
		tr.Add(0, midi.NoteOn(0, 60, 100))
		tr.Add(480, midi.NoteOff(0, 60))
		tr.Add(0, smf.MetaTempo(60))
		tr.Add(0, midi.NoteOn(0, 62, 100))
		tr.Add(480, midi.NoteOff(0, 62))
	})

	notes, err := ReadNotes(buf, DefaultMIDIOptions())
	if err != nil {
		t.Fatalf("ReadNotes failed: %v", err)
	}
	if len(notes) != 2 {
		t.Fatalf("Expected 2 notes, got %d", len(notes))
	}
	if notes[0].Duration != 500*time.Millisecond {
		t.Errorf("Expected first note 500ms, got %v", notes[0].Duration)
	}
	if notes[1].Start != 500*time.Millisecond || notes[1].Duration != time.Second {
		t.Errorf("Expected second note at 500ms for 1s, got %+v", notes[1])
	}
}

func TestReadNotesChannelFilterAndOverlap(t *testing.T) {
	buf := writeSMF(t, func(tr *smf.Track) {
		tr.Add(0, midi.NoteOn(0, 60, 100))
		tr.Add(0, midi.NoteOn(1, 72, 100))
		tr.Add(240, midi.NoteOn(0, 64, 100))
		tr.Add(240, midi.NoteOff(0, 60))
		tr.Add(0, midi.NoteOff(1, 72))
		tr.Add(240, midi.NoteOff(0, 64))
	})

	opts := DefaultMIDIOptions()
	opts.Channel = 0
	opts.Transpose = 12
	notes, err := ReadNotes(buf, opts)
	if err != nil {
		t.Fatalf("ReadNotes failed: %v", err)
	}
	if len(notes) != 2 {
		t.Fatalf("Expected 2 channel 0 notes, got %+v", notes)
	}
	if notes[0].Key != 72 || notes[1].Key != 76 {
		t.Errorf("Expected transposed keys 72 and 76, got %d and %d", notes[0].Key, notes[1].Key)
	}
	if notes[0].Duration != 250*time.Millisecond {
		t.Errorf("Expected overlapping note cut to 250ms, got %v", notes[0].Duration)
	}
}

func TestReadNotesEmpty(t *testing.T) {
	buf := writeSMF(t, func(tr *smf.Track) {
		tr.Add(0, smf.MetaTempo(100))
	})
	if _, err := ReadNotes(buf, DefaultMIDIOptions()); !errors.Is(err, ErrNoNotes) {
		t.Errorf("Expected ErrNoNotes, got %v", err)
	}
}

func TestNoteFreq(t *testing.T) {
	if f := (Note{Key: 69}).Freq(); f != 440 {
		t.Errorf("Expected 440 Hz for A4, got %f", f)
	}
	if f := (Note{Key: 57}).Freq(); f < 219.99 || f > 220.01 {
		t.Errorf("Expected 220 Hz for A3, got %f", f)
	}
}
