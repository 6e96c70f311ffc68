// Package filter implements the zero-phase notch used to strip a single
// interference tone (typically mains hum) from a captured buffer.
package filter

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"
)

// ErrInvalidParameters is matched by every parameter validation failure.
var ErrInvalidParameters = errors.New("invalid filter parameters")

// Params selects the rejected frequency and the notch sharpness.
type Params struct {
	CenterHz float64 // Frequency to remove
	Quality  float64 // Quality factor, center / -3 dB bandwidth
}

// ParamError reports which parameter was rejected.
type ParamError struct {
	Field  string
	Value  float64
	Reason string
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("invalid filter parameters: %s=%v %s", e.Field, e.Value, e.Reason)
}

func (e *ParamError) Is(target error) bool {
	return target == ErrInvalidParameters
}

// Validate checks p against the sample rate it will be applied at.
func (p Params) Validate(rate float64) error {
	if math.IsNaN(rate) || math.IsInf(rate, 0) || rate <= 0 {
		return &ParamError{Field: "sample_rate", Value: rate, Reason: "must be positive"}
	}
	if math.IsNaN(p.CenterHz) || p.CenterHz <= 0 {
		return &ParamError{Field: "center_hz", Value: p.CenterHz, Reason: "must be positive"}
	}
	if math.IsNaN(p.Quality) || math.IsInf(p.Quality, 0) || p.Quality <= 0 {
		return &ParamError{Field: "quality", Value: p.Quality, Reason: "must be positive"}
	}
	if p.CenterHz >= rate/2 {
		return &ParamError{Field: "center_hz", Value: p.CenterHz,
			Reason: fmt.Sprintf("must be below the Nyquist frequency %.2f Hz", rate/2)}
	}
	return nil
}

// Biquad holds normalized second-order coefficients with A[0] == 1.
type Biquad struct {
	B [3]float64
	A [3]float64
}

// Design computes the standard second-order IIR notch for p at rate.
func Design(p Params, rate float64) (Biquad, error) {
	if err := p.Validate(rate); err != nil {
		return Biquad{}, err
	}

	// Normalized to Nyquist, then to radians per sample
	w0 := p.CenterHz / (rate / 2)
	bw := w0 / p.Quality
	w0 *= math.Pi
	bw *= math.Pi

	// -3 dB attenuation bandwidth, so the gain term reduces to tan(bw/2)
	beta := math.Tan(bw / 2)
	gain := 1 / (1 + beta)
	c := math.Cos(w0)

	return Biquad{
		B: [3]float64{gain, -2 * gain * c, gain},
		A: [3]float64{1, -2 * gain * c, 2*gain - 1},
	}, nil
}

// Response returns |H(f)| for a single forward pass at the given rate.
func (q Biquad) Response(f, rate float64) float64 {
	z1 := cmplx.Exp(complex(0, -2*math.Pi*f/rate))
	z2 := z1 * z1
	num := complex(q.B[0], 0) + complex(q.B[1], 0)*z1 + complex(q.B[2], 0)*z2
	den := complex(q.A[0], 0) + complex(q.A[1], 0)*z1 + complex(q.A[2], 0)*z2
	return cmplx.Abs(num / den)
}

// steadyState returns the initial delay-line state for a unit step input,
// so a filter started at x[0] sees no transient from an abrupt start.
func (q Biquad) steadyState() [2]float64 {
	b0, b1, b2 := q.B[0], q.B[1], q.B[2]
	a1, a2 := q.A[1], q.A[2]
	r0 := b1 - a1*b0
	r1 := b2 - a2*b0
	z0 := (r0 + r1) / (1 + a1 + a2)
	return [2]float64{z0, r1 - a2*z0}
}

// run filters x in place using the transposed direct form II structure,
// seeding the delay line with zi scaled by x[0].
func (q Biquad) run(x []float64, zi [2]float64) {
	if len(x) == 0 {
		return
	}
	z0, z1 := zi[0]*x[0], zi[1]*x[0]
	for i, in := range x {
		out := q.B[0]*in + z0
		z0 = q.B[1]*in - q.A[1]*out + z1
		z1 = q.B[2]*in - q.A[2]*out
		x[i] = out
	}
}

// FiltFilt applies q forward then backward over samples. The result has zero
// phase shift and the same length as the input, which is left untouched.
func (q Biquad) FiltFilt(samples []float64) []float64 {
	n := len(samples)
	if n == 0 {
		return []float64{}
	}

	pad := min(3*len(q.A), n-1)
	ext := make([]float64, n+2*pad)
	first, last := samples[0], samples[n-1]
	for i := 0; i < pad; i++ {
		ext[i] = 2*first - samples[pad-i]
		ext[pad+n+i] = 2*last - samples[n-2-i]
	}
	copy(ext[pad:], samples)

	zi := q.steadyState()
	q.run(ext, zi)
	reverse(ext)
	q.run(ext, zi)
	reverse(ext)

	out := make([]float64, n)
	copy(out, ext[pad:pad+n])
	return out
}

// ApplyNotch removes p.CenterHz from samples captured at rate.
func ApplyNotch(samples []float64, rate float64, p Params) ([]float64, error) {
	q, err := Design(p, rate)
	if err != nil {
		return nil, err
	}
	return q.FiltFilt(samples), nil
}

func reverse(x []float64) {
	for i, j := 0, len(x)-1; i < j; i, j = i+1, j-1 {
		x[i], x[j] = x[j], x[i]
	}
}
