package codec

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnrecognizedShape is wrapped in a DecodeError when a payload matches none
// of the accepted byte shapes.
var ErrUnrecognizedShape = errors.New("unrecognized byte payload shape")

// DecodeError reports an inbound payload that could not be turned into bytes.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("could not decode payload: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// SourceKind tags the wire shape a ByteSource was parsed from.
type SourceKind int

const (
	// SourceContiguous is a base64 string.
	SourceContiguous SourceKind = iota + 1
	// SourceNumeric is a JSON array of byte values.
	SourceNumeric
	// SourceWrapped is an object holding the byte values under "data".
	SourceWrapped
)

func (k SourceKind) String() string {
	switch k {
	case SourceContiguous:
		return "contiguous"
	case SourceNumeric:
		return "numeric"
	case SourceWrapped:
		return "wrapped"
	default:
		return "unknown"
	}
}

// ByteSource is a parsed inbound byte payload.
type ByteSource struct {
	Kind       SourceKind
	Contiguous []byte
	Values     []int
}

// Bytes returns the canonical byte sequence. Values are range-checked by
// ParseByteSource, so the conversion cannot fail.
func (s ByteSource) Bytes() []byte {
	if s.Kind == SourceContiguous {
		return s.Contiguous
	}
	out := make([]byte, len(s.Values))
	for i, v := range s.Values {
		out[i] = byte(v)
	}
	return out
}

// ParseByteSource recognizes one of the accepted wire shapes.
func ParseByteSource(raw json.RawMessage) (ByteSource, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ByteSource{}, &DecodeError{Err: ErrUnrecognizedShape}
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ByteSource{}, &DecodeError{Err: err}
		}
		data, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			if data, err = base64.RawStdEncoding.DecodeString(s); err != nil {
				return ByteSource{}, &DecodeError{Err: fmt.Errorf("base64: %w", err)}
			}
		}
		return ByteSource{Kind: SourceContiguous, Contiguous: data}, nil

	case '[':
		values, err := parseValues(raw)
		if err != nil {
			return ByteSource{}, err
		}
		return ByteSource{Kind: SourceNumeric, Values: values}, nil

	case '{':
		var wrapped struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(raw, &wrapped); err != nil {
			return ByteSource{}, &DecodeError{Err: err}
		}
		inner := bytes.TrimSpace(wrapped.Data)
		if len(inner) == 0 || inner[0] != '[' {
			return ByteSource{}, &DecodeError{Err: ErrUnrecognizedShape}
		}
		values, err := parseValues(inner)
		if err != nil {
			return ByteSource{}, err
		}
		return ByteSource{Kind: SourceWrapped, Values: values}, nil
	}

	return ByteSource{}, &DecodeError{Err: ErrUnrecognizedShape}
}

func parseValues(raw json.RawMessage) ([]int, error) {
	var values []int
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, &DecodeError{Err: err}
	}
	for i, v := range values {
		if v < 0 || v > 255 {
			return nil, &DecodeError{Err: fmt.Errorf("value %d at index %d is not a byte", v, i)}
		}
	}
	return values, nil
}

// Decode normalizes raw into canonical bytes and wraps them as a Resource.
func Decode(raw json.RawMessage, mimeType string) (*Resource, error) {
	src, err := ParseByteSource(raw)
	if err != nil {
		return nil, err
	}
	return NewResource(src.Bytes(), mimeType), nil
}
