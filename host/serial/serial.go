// Package serial opens the firmware's USB CDC or UART link on the host.
package serial

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// Port is an open serial link to the firmware.
type Port interface {
	io.ReadWriteCloser

	// Flush discards buffered data
	Flush() error
}

// Backend selects the serial library used to open the device.
type Backend string

const (
	BackendTarm  Backend = "tarm"
	BackendBugst Backend = "bugst"
)

// Config holds serial port configuration
type Config struct {
	// Device path (e.g., "/dev/ttyACM0", "COM3"), or "auto"
	Device string

	// Baud rate (USB CDC ignores this)
	Baud int

	// Read timeout in milliseconds (0 = blocking)
	ReadTimeout int

	Backend Backend
}

// DefaultConfig returns the configuration used by burstctl.
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        250000,
		ReadTimeout: 100,
		Backend:     BackendTarm,
	}
}

// ErrNoPort is returned by AutoDetect when no candidate port exists.
var ErrNoPort = errors.New("no serial port found")

// PortInfo describes an enumerated serial port.
type PortInfo struct {
	Name    string
	IsUSB   bool
	VID     string
	PID     string
	Serial  string
	Product string
}

func (p PortInfo) String() string {
	if !p.IsUSB {
		return p.Name
	}
	s := fmt.Sprintf("%s [%s:%s]", p.Name, p.VID, p.PID)
	if p.Product != "" {
		s += " " + p.Product
	}
	return s
}

// Known USB vendor IDs of the supported boards, upper case.
var knownVendors = []string{
	"0483", // STMicroelectronics
	"2E8A", // Raspberry Pi
}

// pickPort chooses the most likely firmware port: a known vendor first,
// then any USB port, then the only port present.
func pickPort(ports []PortInfo) (PortInfo, bool) {
	for _, vid := range knownVendors {
		for _, p := range ports {
			if p.IsUSB && strings.EqualFold(p.VID, vid) {
				return p, true
			}
		}
	}
	for _, p := range ports {
		if p.IsUSB {
			return p, true
		}
	}
	if len(ports) == 1 {
		return ports[0], true
	}
	return PortInfo{}, false
}

// AutoDetect returns the device name of the most likely firmware port.
func AutoDetect() (string, error) {
	ports, err := ListPorts()
	if err != nil {
		return "", err
	}
	p, ok := pickPort(ports)
	if !ok {
		return "", ErrNoPort
	}
	return p.Name, nil
}

// Open opens cfg.Device with the configured backend. A device of "auto"
// is resolved with AutoDetect first.
func Open(cfg *Config) (Port, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	resolved := *cfg
	if resolved.Device == "" || resolved.Device == "auto" {
		name, err := AutoDetect()
		if err != nil {
			return nil, fmt.Errorf("auto-detect serial port: %w", err)
		}
		resolved.Device = name
	}

	switch resolved.Backend {
	case BackendBugst:
		return openBugst(&resolved)
	case BackendTarm, "":
		return openTarm(&resolved)
	default:
		return nil, fmt.Errorf("unknown serial backend %q", resolved.Backend)
	}
}
