package protocol

// CommandHandler decodes and executes one command. It must consume its
// arguments from the front of *data.
type CommandHandler func(cmdID uint16, data *[]byte) error

// Transport is the firmware side of the link: it validates frames from the
// host, dispatches their commands in order, and acknowledges every frame.
type Transport struct {
	framer  framer
	nextSeq uint8

	output  OutputBuffer
	handler CommandHandler

	resetCallback func()
	flushCallback func()

	lastErr error
}

// NewTransport creates a transport writing ACKs and responses to output.
func NewTransport(output OutputBuffer, handler CommandHandler) *Transport {
	return &Transport{
		nextSeq: MessageDest,
		output:  output,
		handler: handler,
	}
}

// Receive consumes every complete frame available in input.
func (t *Transport) Receive(input InputBuffer) {
	data := input.Data()
	total := 0

	for {
		frame, n := t.framer.next(data)
		data = data[n:]
		total += n

		if t.framer.takeResync() {
			t.encodeAck()
		}
		if frame == nil {
			break
		}
		t.handleFrame(frame)
	}

	input.Pop(total)
}

func (t *Transport) handleFrame(frame []byte) {
	seq := frame[MessagePositionSeq]

	// A sequence restart means the host reconnected
	if seq == MessageDest && t.nextSeq != MessageDest {
		t.nextSeq = MessageDest
		if t.resetCallback != nil {
			t.resetCallback()
		}
	}

	if seq == t.nextSeq {
		t.nextSeq = NextSequence(seq)
		t.lastErr = t.dispatch(frame[MessageHeaderSize : len(frame)-MessageTrailerSize])
	}

	// A mismatched sequence still gets an ACK, which tells the host
	// which sequence was expected.
	t.encodeAck()
}

func (t *Transport) dispatch(payload []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			t.framer.desync()
			err = errHandlerPanic
		}
	}()

	for len(payload) > 0 {
		cmdID, err := DecodeVLQUint(&payload)
		if err != nil {
			t.framer.desync()
			return err
		}
		if t.handler == nil {
			continue
		}
		if err := t.handler(uint16(cmdID), &payload); err != nil {
			return err
		}
	}
	return nil
}

func (t *Transport) encodeAck() {
	appendFrame(t.output, t.nextSeq, nil)
	if t.flushCallback != nil {
		t.flushCallback()
	}
}

// SendCommand frames one message (a response, from the firmware side).
func (t *Transport) SendCommand(cmdID uint16, args func(output OutputBuffer)) {
	appendFrame(t.output, t.nextSeq, func(output OutputBuffer) {
		EncodeVLQUint(output, uint32(cmdID))
		if args != nil {
			args(output)
		}
	})
	if t.flushCallback != nil {
		t.flushCallback()
	}
}

// LastError returns the error from the most recently dispatched frame.
func (t *Transport) LastError() error {
	return t.lastErr
}

// FrameErrors returns the number of frames dropped by validation.
func (t *Transport) FrameErrors() uint32 {
	return t.framer.errors
}

// Reset returns the transport to its power-on state.
func (t *Transport) Reset() {
	t.framer = framer{}
	t.nextSeq = MessageDest
	if t.resetCallback != nil {
		t.resetCallback()
	}
}

// SetResetCallback sets the function called when the host restarts its
// sequence numbering.
func (t *Transport) SetResetCallback(callback func()) {
	t.resetCallback = callback
}

// SetFlushCallback sets the function called right after each ACK or
// response is queued so the output buffer never holds more than one frame.
func (t *Transport) SetFlushCallback(callback func()) {
	t.flushCallback = callback
}
