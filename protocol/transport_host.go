package protocol

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

var (
	ErrAckTimeout      = errors.New("ACK timeout")
	ErrResponseTimeout = errors.New("response timeout")
	ErrClosed          = errors.New("transport closed")
	ErrMessageTooLong  = errors.New("message too long")
)

// ResponseQueueLen bounds the responses buffered between ACKs. A single
// command may answer with a full timing ring dump plus a trailing state.
const ResponseQueueLen = 64

// ResponseHandler is called from the reader goroutine for every response.
type ResponseHandler func(cmdID uint16, data *[]byte)

// HostTransport is the host side of the link. It sends one command frame
// at a time, waits for its ACK, and delivers responses on a channel.
type HostTransport struct {
	port io.ReadWriteCloser
	log  *slog.Logger

	writeMu sync.Mutex
	seq     uint8

	framer    framer
	input     *FifoBuffer
	ackCh     chan uint8
	respCh    chan *Message
	handlerMu sync.Mutex
	handler   ResponseHandler

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewHostTransport starts a reader goroutine on port.
func NewHostTransport(port io.ReadWriteCloser, log *slog.Logger) *HostTransport {
	if log == nil {
		log = slog.Default()
	}
	t := &HostTransport{
		port:   port,
		log:    log,
		seq:    MessageDest,
		input:  NewFifoBuffer(1024),
		ackCh:  make(chan uint8, 4),
		respCh: make(chan *Message, ResponseQueueLen),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go t.readLoop()
	return t
}

// SendCommand frames cmdID and its arguments, writes it, and waits up to
// timeout for the firmware's ACK.
func (t *HostTransport) SendCommand(cmdID uint16, args func(output OutputBuffer), timeout time.Duration) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	out := NewScratchOutput()
	appendFrame(out, t.seq, func(output OutputBuffer) {
		EncodeVLQUint(output, uint32(cmdID))
		if args != nil {
			args(output)
		}
	})
	msg := out.Result()
	if len(msg) > MessageLengthMax {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrMessageTooLong, len(msg), MessageLengthMax)
	}

	t.drainAcks()
	if _, err := t.port.Write(msg); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	t.log.Debug("frame sent", "cmd", cmdID, "seq", t.seq, "bytes", len(msg))

	want := NextSequence(t.seq)
	deadline := time.After(timeout)
	for {
		select {
		case got := <-t.ackCh:
			if got != want {
				t.log.Debug("unexpected ack", "want", want, "got", got)
				continue
			}
			t.seq = want
			return nil
		case <-deadline:
			return fmt.Errorf("%w after %v (seq 0x%02x)", ErrAckTimeout, timeout, t.seq)
		case <-t.stop:
			return ErrClosed
		}
	}
}

func (t *HostTransport) drainAcks() {
	for {
		select {
		case <-t.ackCh:
		default:
			return
		}
	}
}

// ReceiveResponse waits up to timeout for the next response frame.
func (t *HostTransport) ReceiveResponse(timeout time.Duration) (*Message, error) {
	select {
	case m := <-t.respCh:
		return m, nil
	case <-time.After(timeout):
		return nil, fmt.Errorf("%w after %v", ErrResponseTimeout, timeout)
	case <-t.stop:
		return nil, ErrClosed
	}
}

// DrainResponses discards every queued response.
func (t *HostTransport) DrainResponses() {
	for {
		select {
		case <-t.respCh:
		default:
			return
		}
	}
}

// SetResponseHandler installs a callback invoked for each response before
// it is queued for ReceiveResponse.
func (t *HostTransport) SetResponseHandler(handler ResponseHandler) {
	t.handlerMu.Lock()
	t.handler = handler
	t.handlerMu.Unlock()
}

func (t *HostTransport) readLoop() {
	defer close(t.done)

	buf := make([]byte, 256)
	for {
		select {
		case <-t.stop:
			return
		default:
		}

		n, err := t.port.Read(buf)
		if n > 0 {
			t.input.Write(buf[:n])
			t.process()
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			t.log.Debug("serial read failed", "err", err)
			time.Sleep(10 * time.Millisecond)
		}
	}
}

func (t *HostTransport) process() {
	data := t.input.Data()
	total := 0
	for {
		frame, n := t.framer.next(data)
		data = data[n:]
		total += n
		if frame == nil {
			break
		}
		t.dispatch(frame)
	}
	t.input.Pop(total)
}

func (t *HostTransport) dispatch(frame []byte) {
	payload := make([]byte, len(frame)-MessageLengthMin)
	copy(payload, frame[MessageHeaderSize:len(frame)-MessageTrailerSize])
	msg := &Message{Sequence: frame[MessagePositionSeq], Payload: payload}

	if msg.IsAck() {
		select {
		case t.ackCh <- msg.Sequence:
		default:
		}
		return
	}

	t.handlerMu.Lock()
	handler := t.handler
	t.handlerMu.Unlock()
	if handler != nil {
		data := msg.Payload
		if cmdID, err := DecodeVLQUint(&data); err == nil {
			handler(uint16(cmdID), &data)
		}
	}

	select {
	case t.respCh <- msg:
	default:
		// Drop the oldest response to make room
		select {
		case <-t.respCh:
		default:
		}
		t.respCh <- msg
	}
}

// Close stops the reader and closes the port.
func (t *HostTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.stop)
		err = t.port.Close()
		<-t.done
	})
	return err
}
