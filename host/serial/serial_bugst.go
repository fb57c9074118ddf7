package serial

import (
	"fmt"
	"time"

	bugst "go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// BugstPort wraps a go.bug.st/serial port.
type BugstPort struct {
	port bugst.Port
	cfg  *Config
}

func openBugst(cfg *Config) (Port, error) {
	mode := &bugst.Mode{BaudRate: cfg.Baud}
	port, err := bugst.Open(cfg.Device, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", cfg.Device, err)
	}

	timeout := bugst.NoTimeout
	if cfg.ReadTimeout > 0 {
		timeout = time.Duration(cfg.ReadTimeout) * time.Millisecond
	}
	if err := port.SetReadTimeout(timeout); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("set read timeout on %s: %w", cfg.Device, err)
	}

	return &BugstPort{port: port, cfg: cfg}, nil
}

func (p *BugstPort) Read(b []byte) (int, error) {
	return p.port.Read(b)
}

func (p *BugstPort) Write(b []byte) (int, error) {
	return p.port.Write(b)
}

func (p *BugstPort) Close() error {
	return p.port.Close()
}

func (p *BugstPort) Flush() error {
	if err := p.port.ResetInputBuffer(); err != nil {
		return err
	}
	return p.port.ResetOutputBuffer()
}

// Device returns the opened device path.
func (p *BugstPort) Device() string {
	return p.cfg.Device
}

// ListPorts enumerates serial ports with USB details where the platform
// provides them.
func ListPorts() ([]PortInfo, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err == nil {
		ports := make([]PortInfo, 0, len(details))
		for _, d := range details {
			ports = append(ports, PortInfo{
				Name:    d.Name,
				IsUSB:   d.IsUSB,
				VID:     d.VID,
				PID:     d.PID,
				Serial:  d.SerialNumber,
				Product: d.Product,
			})
		}
		return ports, nil
	}

	names, err := bugst.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("list serial ports: %w", err)
	}
	ports := make([]PortInfo, 0, len(names))
	for _, name := range names {
		ports = append(ports, PortInfo{Name: name})
	}
	return ports, nil
}
