// Package mcu is the host-side client for the burst generator firmware.
package mcu

import (
	"bytes"
	"compress/zlib"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"burstgen/host/serial"
	"burstgen/protocol"
)

// Bootstrap IDs used before the dictionary is known.
const (
	identifyResponseID = 0
	identifyID         = 1
)

var (
	ErrNotIdentified = errors.New("dictionary not loaded")
	ErrUnknownName   = errors.New("unknown message")
	ErrShutdown      = errors.New("firmware is shut down")
)

// Dictionary represents the parsed MCU dictionary
type Dictionary struct {
	Version       string                    `json:"version"`
	BuildVersions string                    `json:"build_versions"`
	Config        map[string]string         `json:"config"`
	Commands      map[string]int            `json:"commands"`
	Responses     map[string]int            `json:"responses"`
	Enumerations  map[string]map[string]int `json:"enumerations,omitempty"`
}

// Client talks to one firmware instance.
type Client struct {
	transport *protocol.HostTransport
	log       *slog.Logger
	timeout   time.Duration

	mu        sync.RWMutex
	dict      *Dictionary
	dictRaw   []byte
	commands  map[string]*messageFormat
	responses map[uint16]*messageFormat

	shutdown atomic.Bool
}

// New wraps an already open port. Call RetrieveDictionary before sending
// named commands.
func New(port io.ReadWriteCloser, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	c := &Client{
		transport: protocol.NewHostTransport(port, log),
		log:       log,
		timeout:   time.Second,
	}
	c.transport.SetResponseHandler(c.watch)
	return c
}

// Connect opens the serial port described by cfg and retrieves the
// dictionary.
func Connect(cfg *serial.Config, log *slog.Logger) (*Client, error) {
	port, err := serial.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port: %w", err)
	}

	c := New(port, log)

	// Give the MCU time to initialize if it just enumerated
	time.Sleep(100 * time.Millisecond)

	if err := c.RetrieveDictionary(); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

// SetTimeout sets how long each command waits for its ACK and reply.
func (c *Client) SetTimeout(d time.Duration) {
	c.timeout = d
}

// Close closes the connection to the MCU
func (c *Client) Close() error {
	return c.transport.Close()
}

// RetrieveDictionary downloads the dictionary in identify chunks and
// indexes its commands and responses.
func (c *Client) RetrieveDictionary() error {
	c.log.Debug("retrieving dictionary")

	var buf bytes.Buffer
	const chunkSize = 40
	for offset := uint32(0); ; {
		chunk, err := c.identify(offset, chunkSize)
		if err != nil {
			return fmt.Errorf("failed to retrieve dictionary chunk at offset %d: %w", offset, err)
		}
		buf.Write(chunk)
		offset += uint32(len(chunk))
		if len(chunk) < chunkSize {
			break
		}
	}

	zr, err := zlib.NewReader(&buf)
	if err != nil {
		return fmt.Errorf("failed to open dictionary: %w", err)
	}
	raw, err := io.ReadAll(zr)
	if err != nil {
		return fmt.Errorf("failed to inflate dictionary: %w", err)
	}

	dict := &Dictionary{}
	if err := json.Unmarshal(raw, dict); err != nil {
		return fmt.Errorf("failed to parse dictionary: %w", err)
	}

	commands := make(map[string]*messageFormat, len(dict.Commands))
	for sig, id := range dict.Commands {
		mf, err := parseSignature(sig, id)
		if err != nil {
			return fmt.Errorf("dictionary command: %w", err)
		}
		commands[mf.name] = mf
	}
	responses := make(map[uint16]*messageFormat, len(dict.Responses))
	for sig, id := range dict.Responses {
		mf, err := parseSignature(sig, id)
		if err != nil {
			return fmt.Errorf("dictionary response: %w", err)
		}
		responses[mf.id] = mf
	}

	c.mu.Lock()
	c.dict = dict
	c.dictRaw = raw
	c.commands = commands
	c.responses = responses
	c.mu.Unlock()

	c.log.Info("dictionary loaded",
		"version", dict.Version,
		"build", dict.BuildVersions,
		"bytes", len(raw),
		"commands", len(commands),
		"responses", len(responses))
	return nil
}

func (c *Client) identify(offset uint32, count uint8) ([]byte, error) {
	c.transport.DrainResponses()
	err := c.transport.SendCommand(identifyID, func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, offset)
		protocol.EncodeVLQUint(output, uint32(count))
	}, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to send identify command: %w", err)
	}

	deadline := time.Now().Add(c.timeout)
	for {
		msg, err := c.transport.ReceiveResponse(time.Until(deadline))
		if err != nil {
			return nil, fmt.Errorf("failed to receive identify response: %w", err)
		}

		payload := msg.Payload
		cmdID, err := protocol.DecodeVLQUint(&payload)
		if err != nil || cmdID != identifyResponseID {
			continue
		}
		respOffset, err := protocol.DecodeVLQUint(&payload)
		if err != nil {
			return nil, fmt.Errorf("failed to decode response offset: %w", err)
		}
		if respOffset != offset {
			return nil, fmt.Errorf("offset mismatch: expected %d, got %d", offset, respOffset)
		}
		return protocol.DecodeVLQBytes(&payload)
	}
}

// Dictionary returns the parsed dictionary, or nil before retrieval.
func (c *Client) Dictionary() *Dictionary {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dict
}

// DictionaryRaw returns the dictionary JSON as received.
func (c *Client) DictionaryRaw() []byte {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dictRaw
}

// Constant returns a numeric config constant from the dictionary.
func (c *Client) Constant(name string) (uint32, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.dict == nil {
		return 0, ErrNotIdentified
	}
	v, ok := c.dict.Config[name]
	if !ok {
		return 0, fmt.Errorf("%w: constant %s", ErrUnknownName, name)
	}
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("constant %s=%q: %w", name, v, err)
	}
	return uint32(n), nil
}

// IsShutdown reports whether the firmware announced a shutdown.
func (c *Client) IsShutdown() bool {
	return c.shutdown.Load()
}

func (c *Client) command(name string) (*messageFormat, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.commands == nil {
		return nil, ErrNotIdentified
	}
	mf, ok := c.commands[name]
	if !ok {
		return nil, fmt.Errorf("%w: command %s", ErrUnknownName, name)
	}
	return mf, nil
}

// Send encodes and sends one named command and waits for its ACK.
func (c *Client) Send(name string, args ...any) error {
	mf, err := c.command(name)
	if err != nil {
		return err
	}
	enc, err := mf.encode(args)
	if err != nil {
		return err
	}
	if err := c.transport.SendCommand(mf.id, enc, c.timeout); err != nil {
		return fmt.Errorf("send %s: %w", name, err)
	}
	c.log.Debug("command sent", "name", name)
	return nil
}

// decodeMessage turns a response frame into a Response.
func (c *Client) decodeMessage(msg *protocol.Message) (*Response, error) {
	payload := msg.Payload
	cmdID, err := protocol.DecodeVLQUint(&payload)
	if err != nil {
		return nil, err
	}

	c.mu.RLock()
	mf, ok := c.responses[uint16(cmdID)]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: response ID %d", ErrUnknownName, cmdID)
	}
	return mf.decode(&payload)
}

// Await waits for the next response named in names, discarding others.
func (c *Client) Await(names ...string) (*Response, error) {
	deadline := time.Now().Add(c.timeout)
	for {
		msg, err := c.transport.ReceiveResponse(time.Until(deadline))
		if err != nil {
			return nil, fmt.Errorf("waiting for %v: %w", names, err)
		}
		resp, err := c.decodeMessage(msg)
		if err != nil {
			c.log.Debug("undecodable response", "err", err)
			continue
		}
		for _, n := range names {
			if resp.Name == n {
				return resp, nil
			}
		}
		c.log.Debug("response skipped", "name", resp.Name)
	}
}

// call is one command in an exchange.
type call struct {
	name string
	args []any
}

// exchange discards stale responses, sends every call in order, then
// waits for one of want.
func (c *Client) exchange(want []string, calls ...call) (*Response, error) {
	c.transport.DrainResponses()
	for _, cl := range calls {
		if err := c.Send(cl.name, cl.args...); err != nil {
			return nil, err
		}
	}
	return c.Await(want...)
}

// watch runs on the reader goroutine for every response.
func (c *Client) watch(cmdID uint16, data *[]byte) {
	c.mu.RLock()
	mf, ok := c.responses[cmdID]
	c.mu.RUnlock()
	if !ok || mf.name != "shutdown" {
		return
	}

	d := *data
	resp, err := mf.decode(&d)
	if err != nil {
		return
	}
	c.shutdown.Store(true)
	c.log.Warn("firmware shutdown", "clock", resp.Uint("clock"))
}
