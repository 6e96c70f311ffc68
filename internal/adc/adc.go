// Package adc holds the numeric conventions shared by the capture and
// analysis stages: the 12-bit sample range, voltage scaling and sample rate
// derivation.
package adc

import (
	"errors"
	"fmt"
	"math"
	"time"
)

const (
	MinValue = 0    // Lowest valid 12-bit reading
	MaxValue = 4095 // Highest valid 12-bit reading

	// Resolution is the number of ADC codes used for voltage scaling.
	Resolution = 4096

	// ReferenceVoltage is the ADC full-scale reference in volts.
	ReferenceVoltage = 3.3
)

var (
	// ErrInvalidDuration is returned when a capture duration is not positive.
	ErrInvalidDuration = errors.New("duration must be positive")

	// ErrInvalidSampleRate is returned when a sample rate is not a positive finite number.
	ErrInvalidSampleRate = errors.New("sample rate must be positive")

	// ErrEmptyBuffer is returned when a rate is derived from a buffer with no samples.
	ErrEmptyBuffer = errors.New("sample buffer is empty")
)

// Valid reports whether v is a legal ADC reading.
func Valid(v int) bool {
	return v >= MinValue && v <= MaxValue
}

// ToVoltage converts a raw ADC code to volts.
func ToVoltage(v float64) float64 {
	return v / Resolution * ReferenceVoltage
}

// SampleRate derives the effective rate of a buffer of count samples captured
// over d.
func SampleRate(count int, d time.Duration) (float64, error) {
	if d <= 0 {
		return 0, fmt.Errorf("%w: %v", ErrInvalidDuration, d)
	}
	if count == 0 {
		return 0, ErrEmptyBuffer
	}
	return float64(count) / d.Seconds(), nil
}

// DisplayRate truncates a rate to the integer form used for display and
// persistence.
func DisplayRate(rate float64) int {
	return int(rate)
}

// CheckRate validates a caller supplied sample rate.
func CheckRate(rate float64) error {
	if math.IsNaN(rate) || math.IsInf(rate, 0) || rate <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidSampleRate, rate)
	}
	return nil
}

// Floats widens integer samples for the floating point stages.
func Floats(samples []int) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = float64(s)
	}
	return out
}

// Truncate narrows floating point samples back to integers, dropping the
// fractional part.
func Truncate(samples []float64) []int {
	out := make([]int, len(samples))
	for i, s := range samples {
		out[i] = int(s)
	}
	return out
}
