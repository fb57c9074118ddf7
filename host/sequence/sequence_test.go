package sequence

import (
	"errors"
	"testing"

	"burstgen/core"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want []core.Burst
	}{
		{"1x1000 2x2000 1x500", []core.Burst{{Pulses: 1, Freq: 1000}, {Pulses: 2, Freq: 2000}, {Pulses: 1, Freq: 500}}},
		{"3x440hz,1X880", []core.Burst{{Pulses: 3, Freq: 440}, {Pulses: 1, Freq: 880}}},
		{"  750  ", []core.Burst{{Pulses: 1, Freq: 750}}},
		{"255x20000\n1x50", []core.Burst{{Pulses: 255, Freq: 20000}, {Pulses: 1, Freq: 50}}},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Expected %v, got %v", tt.want, got)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("Burst %d: expected %+v, got %+v", i, tt.want[i], got[i])
				}
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		in  string
		err error
	}{
		{"", ErrEmpty},
		{"0x1000", core.ErrZeroPulses},
		{"256x1000", nil},
		{"1x", nil},
		{"ax100", nil},
		{"1x70000", nil},
	}

	for _, tt := range tests {
		_, err := Parse(tt.in)
		if err == nil {
			t.Errorf("Parse(%q): expected error", tt.in)
			continue
		}
		if tt.err != nil && !errors.Is(err, tt.err) {
			t.Errorf("Parse(%q): expected %v, got %v", tt.in, tt.err, err)
		}
	}
}

func TestFormatRoundTrip(t *testing.T) {
	seq := []core.Burst{{Pulses: 1, Freq: 1000}, {Pulses: 2, Freq: 2000}, {Pulses: 1, Freq: 500}}
	text := Format(seq)
	if text != "1x1000 2x2000 1x500" {
		t.Errorf("Unexpected format: %q", text)
	}
	back, err := Parse(text)
	if err != nil || len(back) != len(seq) {
		t.Fatalf("Round trip failed: %v %v", back, err)
	}
}

func TestPages(t *testing.T) {
	seq := make([]core.Burst, 23)
	pages := Pages(seq, 0)
	if len(pages) != 3 {
		t.Fatalf("Expected 3 pages, got %d", len(pages))
	}
	if len(pages[0]) != core.MaxBursts || len(pages[2]) != 3 {
		t.Errorf("Unexpected page sizes: %d %d %d", len(pages[0]), len(pages[1]), len(pages[2]))
	}
	if Pages(nil, 5) != nil {
		t.Error("Expected no pages for an empty sequence")
	}
}

func TestDuration(t *testing.T) {
	// One toggle per half period: 500us + 2*250us + 1000us
	got := Duration([]core.Burst{{Pulses: 1, Freq: 1000}, {Pulses: 2, Freq: 2000}, {Pulses: 1, Freq: 500}})
	if got < 0.00199 || got > 0.00201 {
		t.Errorf("Expected 0.002 s, got %f", got)
	}
	// clamped to 100 Hz
	if got := Duration([]core.Burst{{Pulses: 1, Freq: 10}}); got < 0.00499 || got > 0.00501 {
		t.Errorf("Expected 0.005 s for clamped burst, got %f", got)
	}
	// a full cycle at 440 Hz takes two toggles
	if got := Duration([]core.Burst{{Pulses: 2, Freq: 440}}); got < 0.00227 || got > 0.00228 {
		t.Errorf("Expected one 440 Hz cycle, got %f", got)
	}
}
