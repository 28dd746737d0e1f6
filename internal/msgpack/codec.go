// Package msgpack encodes Flight tickets as MessagePack.
package msgpack

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// ErrEmpty is returned when decoding empty input.
var ErrEmpty = errors.New("empty MessagePack data")

// Encode serializes v using its msgpack struct tags. Empty fields tagged
// omitempty are skipped and integers use their smallest encoding.
//
// Example:
//
//	type ticket struct {
//	    Symbol  string   `msgpack:"symbol"`
//	    Columns []string `msgpack:"columns,omitempty"`
//	}
//	data, err := msgpack.Encode(ticket{Symbol: "prices"})
func Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.UseCompactInts(true)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("failed to encode MessagePack: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode deserializes data into v, which must be a pointer. Keys with no
// matching struct field are rejected so that a malformed ticket fails
// instead of silently reading more data than was asked for.
func Decode(data []byte, v any) error {
	if len(data) == 0 {
		return ErrEmpty
	}

	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields(true)
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("failed to decode MessagePack: %w", err)
	}
	return nil
}
