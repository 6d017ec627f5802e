package channel

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
)

var ErrNotInteger = errors.New("channel: argument is not an integer")

// MethodCall is a named invocation with keyed arguments.
type MethodCall struct {
	Method    string         `json:"method"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// Argument returns the argument stored under key. Absent keys and JSON null
// both report false.
func (c MethodCall) Argument(key string) (any, bool) {
	v, ok := c.Arguments[key]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// StringArgument returns the argument under key if it is a string.
func (c MethodCall) StringArgument(key string) (string, bool) {
	v, ok := c.Argument(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// IntArgument returns the argument under key as an int. present is false
// when the argument is absent or null. A present argument that is not an
// integral number yields ErrNotInteger.
func (c MethodCall) IntArgument(key string) (n int, present bool, err error) {
	v, ok := c.Argument(key)
	if !ok {
		return 0, false, nil
	}

	switch x := v.(type) {
	case int:
		return x, true, nil
	case int64:
		return int(x), true, nil
	case json.Number:
		i, err := x.Int64()
		if err != nil {
			return 0, true, fmt.Errorf("%w: %q", ErrNotInteger, key)
		}
		return int(i), true, nil
	case float64:
		if x != math.Trunc(x) {
			return 0, true, fmt.Errorf("%w: %q", ErrNotInteger, key)
		}
		return int(x), true, nil
	default:
		return 0, true, fmt.Errorf("%w: %q", ErrNotInteger, key)
	}
}

// DecodeMethodCall reads one JSON method call from r. Numbers are kept as
// json.Number so integer arguments survive without float rounding.
func DecodeMethodCall(r io.Reader) (MethodCall, error) {
	var call MethodCall
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if err := dec.Decode(&call); err != nil {
		return MethodCall{}, fmt.Errorf("decode method call: %w", err)
	}
	if call.Method == "" {
		return MethodCall{}, errors.New("decode method call: method is required")
	}
	return call, nil
}

func decodeBytes(b []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	return dec.Decode(v)
}
