// Package frame decodes the 2-byte wire encoding of a single ADC sample.
package frame

import (
	"encoding/binary"

	"drgex/internal/adc"
)

// Size is the number of bytes in one frame.
const Size = 2

// Status classifies the outcome of decoding a frame.
type Status int

const (
	StatusOK         Status = iota // Decoded and in range
	StatusOutOfRange               // Decoded but outside the 12-bit range
	StatusIncomplete               // Fewer than Size bytes were available
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusOutOfRange:
		return "out of range"
	case StatusIncomplete:
		return "incomplete"
	default:
		return "unknown"
	}
}

// Result is a decoded frame. Value is meaningful for StatusOK and
// StatusOutOfRange.
type Result struct {
	Status Status
	Value  int
}

// Decode interprets b as a little-endian int16 sample.
func Decode(b []byte) Result {
	if len(b) < Size {
		return Result{Status: StatusIncomplete}
	}
	v := int(int16(binary.LittleEndian.Uint16(b[:Size])))
	if !adc.Valid(v) {
		return Result{Status: StatusOutOfRange, Value: v}
	}
	return Result{Status: StatusOK, Value: v}
}

// Encode writes v as a little-endian int16 frame, the inverse of Decode.
func Encode(v int) []byte {
	b := make([]byte, Size)
	binary.LittleEndian.PutUint16(b, uint16(int16(v)))
	return b
}
