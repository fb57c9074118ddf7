package protocol

// framer extracts validated frames from a byte stream, dropping bytes up to
// the next sync marker whenever a frame fails validation.
type framer struct {
	lost     bool
	resynced bool
	errors   uint32
}

// next looks for the first complete frame in data. It returns the frame
// (nil if none is complete yet) and how many bytes of data were consumed.
func (f *framer) next(data []byte) (frame []byte, consumed int) {
	i := 0
	for i < len(data) {
		if f.lost {
			j := i
			for j < len(data) && data[j] != MessageValueSync {
				j++
			}
			if j == len(data) {
				return nil, len(data)
			}
			i = j + 1
			f.lost = false
			f.resynced = true
			continue
		}

		if data[i] == MessageValueSync {
			i++
			continue
		}

		rest := data[i:]
		if len(rest) < MessageLengthMin {
			return nil, i
		}

		n := int(rest[MessagePositionLen])
		if n < MessageLengthMin || n > MessageLengthMax || rest[MessagePositionSeq]&^MessageSeqMask != MessageDest {
			f.desync()
			continue
		}
		if len(rest) < n {
			return nil, i
		}
		if rest[n-MessageTrailerSync] != MessageValueSync {
			f.desync()
			continue
		}

		crc := uint16(rest[n-MessageTrailerCRC])<<8 | uint16(rest[n-MessageTrailerCRC+1])
		if crc != CRC16(rest[:n-MessageTrailerSize]) {
			f.desync()
			continue
		}
		return rest[:n], i + n
	}
	return nil, i
}

func (f *framer) desync() {
	f.lost = true
	f.errors++
}

// takeResync reports and clears a completed resynchronisation.
func (f *framer) takeResync() bool {
	r := f.resynced
	f.resynced = false
	return r
}

// appendFrame writes one frame with the given sequence byte into output.
func appendFrame(output OutputBuffer, seq uint8, payload func(OutputBuffer)) {
	start := output.CurPosition()
	output.Output([]byte{0, seq})
	if payload != nil {
		payload(output)
	}
	output.Update(start, uint8(len(output.DataSince(start))+MessageTrailerSize))

	crc := CRC16(output.DataSince(start))
	output.Output([]byte{uint8(crc >> 8), uint8(crc), MessageValueSync})
}
