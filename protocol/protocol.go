// Package protocol implements the framed serial protocol spoken between the
// burst generator firmware and its host tools.
//
// Each frame is
//
//	[len][seq][payload...][crc16 hi][crc16 lo][0x7E]
//
// where len counts the whole frame, seq carries MessageDest in its high
// nibble and a 4-bit sequence number in its low nibble, and the payload is
// a series of VLQ-encoded command IDs and arguments.
package protocol

// Version is the firmware protocol version reported in the dictionary.
const Version = "burstgen-0.2.0"

// Framing constants
const (
	MessageHeaderSize  = 2
	MessageTrailerSize = 3
	MessageLengthMin   = MessageHeaderSize + MessageTrailerSize
	MessageLengthMax   = 64
	MessagePayloadMax  = MessageLengthMax - MessageLengthMin

	MessagePositionLen = 0
	MessagePositionSeq = 1
	MessageTrailerCRC  = 3
	MessageTrailerSync = 1

	MessageValueSync = 0x7E
	MessageDest      = 0x10
	MessageSeqMask   = 0x0F
)

// Message is a decoded frame.
type Message struct {
	Sequence uint8
	Payload  []byte
}

// IsAck reports whether m is an empty ACK/NAK frame.
func (m *Message) IsAck() bool {
	return len(m.Payload) == 0
}

// NextSequence returns the sequence byte that follows seq.
func NextSequence(seq uint8) uint8 {
	return ((seq + 1) & MessageSeqMask) | MessageDest
}

type protocolError string

func (e protocolError) Error() string { return string(e) }

const errHandlerPanic = protocolError("command handler panicked")
