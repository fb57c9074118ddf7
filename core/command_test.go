package core

import (
	"bytes"
	"compress/zlib"
	"encoding/json"
	"io"
	"testing"
)

func TestCommandRegistry(t *testing.T) {
	registry := NewCommandRegistry()

	var called bool
	id := registry.Register("test_command", "arg=%u", func(data *[]byte) error {
		called = true
		return nil
	})
	if id != 0 {
		t.Errorf("Expected first command to have ID 0, got %d", id)
	}

	if again := registry.Register("test_command", "arg=%u", nil); again != id {
		t.Errorf("Expected duplicate registration to return ID %d, got %d", id, again)
	}

	cmd, ok := registry.Lookup("test_command")
	if !ok || cmd.Signature() != "test_command arg=%u" {
		t.Errorf("Unexpected lookup result: %v %v", cmd, ok)
	}

	var data []byte
	if err := registry.Dispatch(id, &data); err != nil {
		t.Errorf("Dispatch failed: %v", err)
	}
	if !called {
		t.Error("Command handler was not called")
	}

	if err := registry.Dispatch(999, &data); err == nil {
		t.Error("Expected error for unknown command ID")
	}

	resp := registry.RegisterResponse("test_response", "")
	if err := registry.Dispatch(resp, &data); err == nil {
		t.Error("Expected error dispatching a response")
	}
	if registry.Count() != 2 {
		t.Errorf("Expected 2 entries, got %d", registry.Count())
	}
}

func TestDictionaryChunks(t *testing.T) {
	registry := NewCommandRegistry()
	registry.RegisterResponse("pong", "value=%u")
	registry.Register("ping", "value=%u", func(*[]byte) error { return nil })

	dict := NewDictionary(registry)
	dict.AddConstant("ZETA", 1)
	dict.AddConstant("ALPHA", 2)

	var parsed map[string]any
	if err := json.Unmarshal(dict.JSON(), &parsed); err != nil {
		t.Fatalf("Invalid JSON: %v\n%s", err, dict.JSON())
	}

	full := dict.Bytes()
	if got := inflate(t, full); !bytes.Equal(got, dict.JSON()) {
		t.Errorf("Served dictionary does not inflate to the JSON document")
	}

	var joined []byte
	for offset := uint32(0); ; {
		chunk := dict.Chunk(offset, 7)
		if len(chunk) == 0 {
			break
		}
		joined = append(joined, chunk...)
		offset += uint32(len(chunk))
	}
	if string(joined) != string(full) {
		t.Errorf("Chunks do not reassemble the dictionary")
	}

	dict.AddConstant("BETA", 3)
	if string(dict.Bytes()) == string(full) {
		t.Error("Expected AddConstant to rebuild the dictionary")
	}
	if got := sortedKeys(map[string]int{"b": 1, "c": 2, "a": 3}); got[0] != "a" || got[2] != "c" {
		t.Errorf("Expected sorted keys, got %v", got)
	}
}

func inflate(t *testing.T, data []byte) []byte {
	t.Helper()
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Dictionary is not a zlib stream: %v", err)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("Inflate failed: %v", err)
	}
	return out
}
