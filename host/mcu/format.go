package mcu

import (
	"fmt"
	"strings"

	"burstgen/protocol"
)

type paramKind int

const (
	paramUint paramKind = iota
	paramInt
	paramBytes
)

type param struct {
	name string
	kind paramKind
}

// messageFormat is one dictionary entry: "name key=%u key=%*s ...".
type messageFormat struct {
	id     uint16
	name   string
	params []param
}

// parseSignature splits a dictionary key into name and typed parameters.
func parseSignature(sig string, id int) (*messageFormat, error) {
	fields := strings.Fields(sig)
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty message signature")
	}

	mf := &messageFormat{id: uint16(id), name: fields[0]}
	for _, f := range fields[1:] {
		name, verb, ok := strings.Cut(f, "=")
		if !ok {
			return nil, fmt.Errorf("%s: malformed parameter %q", mf.name, f)
		}
		var kind paramKind
		switch verb {
		case "%u", "%c", "%hu":
			kind = paramUint
		case "%i", "%hi":
			kind = paramInt
		case "%*s", "%.*s", "%s":
			kind = paramBytes
		default:
			return nil, fmt.Errorf("%s: unsupported format %q", mf.name, verb)
		}
		mf.params = append(mf.params, param{name: name, kind: kind})
	}
	return mf, nil
}

// encode writes args in parameter order. Integers may be any Go integer
// type; byte parameters take []byte or string.
func (mf *messageFormat) encode(args []any) (func(protocol.OutputBuffer), error) {
	if len(args) != len(mf.params) {
		return nil, fmt.Errorf("%s: expected %d arguments, got %d", mf.name, len(mf.params), len(args))
	}

	type encoded struct {
		kind paramKind
		u    uint32
		i    int32
		b    []byte
	}
	vals := make([]encoded, len(args))
	for idx, p := range mf.params {
		v := encoded{kind: p.kind}
		switch p.kind {
		case paramBytes:
			switch a := args[idx].(type) {
			case []byte:
				v.b = a
			case string:
				v.b = []byte(a)
			default:
				return nil, fmt.Errorf("%s: %s wants bytes, got %T", mf.name, p.name, args[idx])
			}
		default:
			n, ok := toInt64(args[idx])
			if !ok {
				return nil, fmt.Errorf("%s: %s wants an integer, got %T", mf.name, p.name, args[idx])
			}
			v.u = uint32(n)
			v.i = int32(n)
		}
		vals[idx] = v
	}

	return func(output protocol.OutputBuffer) {
		for _, v := range vals {
			switch v.kind {
			case paramUint:
				protocol.EncodeVLQUint(output, v.u)
			case paramInt:
				protocol.EncodeVLQInt(output, v.i)
			case paramBytes:
				protocol.EncodeVLQBytes(output, v.b)
			}
		}
	}, nil
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// Response is a decoded message from the firmware.
type Response struct {
	Name   string
	Params map[string]int64
	Data   map[string][]byte
}

// Uint returns an integer parameter, or 0 if absent.
func (r *Response) Uint(name string) uint32 {
	return uint32(r.Params[name])
}

// Bool returns an integer parameter as a flag.
func (r *Response) Bool(name string) bool {
	return r.Params[name] != 0
}

// Bytes returns a byte parameter.
func (r *Response) Bytes(name string) []byte {
	return r.Data[name]
}

func (r *Response) String() string {
	var sb strings.Builder
	sb.WriteString(r.Name)
	for k, v := range r.Params {
		fmt.Fprintf(&sb, " %s=%d", k, v)
	}
	for k, v := range r.Data {
		fmt.Fprintf(&sb, " %s=%q", k, v)
	}
	return sb.String()
}

// decode reads the parameters of mf from data.
func (mf *messageFormat) decode(data *[]byte) (*Response, error) {
	resp := &Response{
		Name:   mf.name,
		Params: make(map[string]int64, len(mf.params)),
	}
	for _, p := range mf.params {
		switch p.kind {
		case paramUint:
			v, err := protocol.DecodeVLQUint(data)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", mf.name, p.name, err)
			}
			resp.Params[p.name] = int64(v)
		case paramInt:
			v, err := protocol.DecodeVLQInt(data)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", mf.name, p.name, err)
			}
			resp.Params[p.name] = int64(v)
		case paramBytes:
			v, err := protocol.DecodeVLQBytes(data)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", mf.name, p.name, err)
			}
			if resp.Data == nil {
				resp.Data = make(map[string][]byte)
			}
			resp.Data[p.name] = append([]byte(nil), v...)
		}
	}
	return resp, nil
}
