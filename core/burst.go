package core

// MaxBursts is the fixed capacity of the playback buffer.
const MaxBursts = 10

// Frequency limits in Hz. Requested frequencies outside this range are clamped.
const (
	MinFrequency = 100
	MaxFrequency = 20000
)

// Burst is one played unit at Freq Hz. Each pulse is one timer period and
// one toggle of the output, so a full square-wave cycle takes two pulses.
type Burst struct {
	Pulses uint8
	Freq   uint16
}

// ClampedFreq returns the frequency actually programmed into the timer.
func (b Burst) ClampedFreq() uint16 {
	return ClampFrequency(b.Freq)
}

// ClampFrequency limits f to [MinFrequency, MaxFrequency].
func ClampFrequency(f uint16) uint16 {
	if f < MinFrequency {
		return MinFrequency
	}
	if f > MaxFrequency {
		return MaxFrequency
	}
	return f
}

// validateSequence checks a sequence before it is copied into the buffer.
func validateSequence(seq []Burst) error {
	if len(seq) > MaxBursts {
		return ErrSequenceTooLong
	}
	for i := range seq {
		if seq[i].Pulses == 0 {
			return ErrZeroPulses
		}
	}
	return nil
}
