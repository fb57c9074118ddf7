package serial

import (
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/tarm/serial"
)

// tarmConn is the part of *serial.Port that TarmPort uses.
type tarmConn interface {
	io.ReadWriteCloser
	Flush() error
}

// TarmPort is a github.com/tarm/serial port. tarm reports an expired read
// timeout as io.EOF on POSIX systems; TarmPort turns that into an empty
// read so callers only see EOF once the port is closed.
type TarmPort struct {
	conn   tarmConn
	device string
	closed atomic.Bool
}

func openTarm(cfg *Config) (Port, error) {
	port, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: time.Duration(cfg.ReadTimeout) * time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", cfg.Device, err)
	}
	return &TarmPort{conn: port, device: cfg.Device}, nil
}

func (p *TarmPort) Read(b []byte) (int, error) {
	n, err := p.conn.Read(b)
	return timeoutAsEmpty(n, err, p.closed.Load())
}

func (p *TarmPort) Write(b []byte) (int, error) {
	return p.conn.Write(b)
}

func (p *TarmPort) Flush() error {
	return p.conn.Flush()
}

// Close may run while another goroutine is blocked in Read.
func (p *TarmPort) Close() error {
	p.closed.Store(true)
	return p.conn.Close()
}

// Device returns the opened device path.
func (p *TarmPort) Device() string {
	return p.device
}

func timeoutAsEmpty(n int, err error, closed bool) (int, error) {
	if n == 0 && errors.Is(err, io.EOF) && !closed {
		return 0, nil
	}
	return n, err
}
