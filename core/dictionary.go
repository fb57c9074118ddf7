package core

import (
	"burstgen/protocol"
	"burstgen/tinycompress"
)

// Dictionary describes the firmware's commands, responses and constants to
// the host as a zlib-wrapped JSON document served in chunks by the
// identify command.
type Dictionary struct {
	reg           *CommandRegistry
	constants     map[string]string
	enumerations  map[string][]string
	version       string
	buildVersions string
	json          []byte
	cached        []byte
}

// NewDictionary creates a dictionary over reg.
func NewDictionary(reg *CommandRegistry) *Dictionary {
	return &Dictionary{
		reg:           reg,
		constants:     make(map[string]string),
		enumerations:  make(map[string][]string),
		version:       protocol.Version,
		buildVersions: "go-tinygo",
	}
}

// AddConstant publishes a numeric constant. Invalidates the cached JSON.
func (d *Dictionary) AddConstant(name string, value uint32) {
	d.constants[name] = utoa(value)
	d.invalidate()
}

// AddStringConstant publishes a string constant such as the MCU name.
func (d *Dictionary) AddStringConstant(name, value string) {
	d.constants[name] = value
	d.invalidate()
}

// AddEnumeration publishes a name to index mapping.
func (d *Dictionary) AddEnumeration(name string, values []string) {
	d.enumerations[name] = append([]string(nil), values...)
	d.invalidate()
}

// SetBuildVersions sets the build description string.
func (d *Dictionary) SetBuildVersions(v string) {
	d.buildVersions = v
	d.invalidate()
}

func (d *Dictionary) invalidate() {
	d.json = nil
	d.cached = nil
}

// JSON returns the uncompressed document, building it on first use.
func (d *Dictionary) JSON() []byte {
	if d.json == nil {
		d.json = d.build()
	}
	return d.json
}

// Bytes returns the document as served to the host: JSON in a zlib stream.
func (d *Dictionary) Bytes() []byte {
	if d.cached == nil {
		doc := d.JSON()
		d.cached = tinycompress.Wrap(make([]byte, 0, tinycompress.WrappedLen(len(doc))), doc)
	}
	return d.cached
}

// Chunk returns up to count bytes of the document starting at offset.
// An offset past the end yields an empty chunk, which ends retrieval.
func (d *Dictionary) Chunk(offset uint32, count uint8) []byte {
	data := d.Bytes()
	if offset >= uint32(len(data)) {
		return nil
	}
	end := offset + uint32(count)
	if end > uint32(len(data)) {
		end = uint32(len(data))
	}
	return data[offset:end]
}

// build writes the JSON by hand so encoding/json stays out of the image.
// Names are plain identifiers and format strings, so no escaping is done.
func (d *Dictionary) build() []byte {
	out := make([]byte, 0, 1024)
	out = append(out, `{"version":"`...)
	out = append(out, d.version...)
	out = append(out, `","build_versions":"`...)
	out = append(out, d.buildVersions...)
	out = append(out, `","config":{`...)

	for i, name := range sortedKeys(d.constants) {
		if i > 0 {
			out = append(out, ',')
		}
		out = append(out, '"')
		out = append(out, name...)
		out = append(out, `":"`...)
		out = append(out, d.constants[name]...)
		out = append(out, '"')
	}

	var commands, responses []byte
	d.reg.each(func(cmd *Command) {
		entry := make([]byte, 0, 48)
		entry = append(entry, '"')
		entry = append(entry, cmd.Signature()...)
		entry = append(entry, `":`...)
		entry = append(entry, utoa(uint32(cmd.ID))...)
		if cmd.Handler != nil {
			commands = appendMember(commands, entry)
		} else {
			responses = appendMember(responses, entry)
		}
	})

	out = append(out, `},"commands":{`...)
	out = append(out, commands...)
	out = append(out, `},"responses":{`...)
	out = append(out, responses...)
	out = append(out, '}')

	if len(d.enumerations) > 0 {
		out = append(out, `,"enumerations":{`...)
		for i, name := range sortedKeys(d.enumerations) {
			if i > 0 {
				out = append(out, ',')
			}
			out = append(out, '"')
			out = append(out, name...)
			out = append(out, `":{`...)
			var members []byte
			for idx, value := range d.enumerations[name] {
				if value == "" {
					continue
				}
				entry := []byte(`"` + value + `":` + itoa(idx))
				members = appendMember(members, entry)
			}
			out = append(out, members...)
			out = append(out, '}')
		}
		out = append(out, '}')
	}

	return append(out, '}')
}

func appendMember(list, entry []byte) []byte {
	if len(list) > 0 {
		list = append(list, ',')
	}
	return append(list, entry...)
}

// sortedKeys returns map keys in ascending order. Insertion sort keeps the
// sort package out of the firmware; the maps hold a handful of entries.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j] < keys[j-1]; j-- {
			keys[j], keys[j-1] = keys[j-1], keys[j]
		}
	}
	return keys
}
