// Package spectrum computes the magnitude spectrum of a captured ADC buffer.
package spectrum

import (
	"fmt"
	"math"
	"math/cmplx"
	"sort"
	"time"

	"drgex/internal/adc"

	dspfft "github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Backend names an FFT implementation.
type Backend string

const (
	BackendGonum Backend = "gonum" // gonum.org/v1/gonum/dsp/fourier
	BackendGoDSP Backend = "godsp" // github.com/mjibson/go-dsp/fft
)

// Result is the non-negative half of the transform, index aligned.
type Result struct {
	Frequencies []float64 // Bin centers in Hz, 0 up to Nyquist
	Magnitudes  []float64 // |X[k]| of the de-meaned voltage signal
	SampleRate  float64   // Rate the axis was derived from
	BinWidth    float64   // SampleRate / input length
}

// Peak is a single spectral bin.
type Peak struct {
	Bin       int
	Frequency float64
	Magnitude float64
}

// Analyzer transforms sample buffers with the selected backend.
type Analyzer struct {
	backend Backend
}

// NewAnalyzer returns an analyzer for the named backend. An empty name
// selects gonum.
func NewAnalyzer(backend string) (*Analyzer, error) {
	switch Backend(backend) {
	case "", BackendGonum:
		return &Analyzer{backend: BackendGonum}, nil
	case BackendGoDSP:
		return &Analyzer{backend: BackendGoDSP}, nil
	default:
		return nil, fmt.Errorf("unknown FFT backend %q (must be %q or %q)", backend, BackendGonum, BackendGoDSP)
	}
}

// Backend returns the backend in use.
func (a *Analyzer) Backend() Backend {
	return a.backend
}

// Analyze scales samples to volts, removes the mean and returns the
// magnitude spectrum up to and including the Nyquist bin. An empty buffer
// yields an empty result.
func (a *Analyzer) Analyze(samples []float64, rate float64) (*Result, error) {
	if len(samples) == 0 {
		return &Result{Frequencies: []float64{}, Magnitudes: []float64{}, SampleRate: rate}, nil
	}
	if err := adc.CheckRate(rate); err != nil {
		return nil, err
	}

	n := len(samples)
	x := make([]float64, n)
	copy(x, samples)
	floats.Scale(adc.ReferenceVoltage/adc.Resolution, x)
	floats.AddConst(-stat.Mean(x, nil), x)

	coeffs := a.transform(x)

	bins := n/2 + 1
	res := &Result{
		Frequencies: make([]float64, bins),
		Magnitudes:  make([]float64, bins),
		SampleRate:  rate,
		BinWidth:    rate / float64(n),
	}
	for k := 0; k < bins; k++ {
		res.Frequencies[k] = float64(k) * res.BinWidth
		res.Magnitudes[k] = cmplx.Abs(coeffs[k])
	}
	return res, nil
}

// AnalyzeDuration derives the rate from the buffer length and the capture
// duration before analyzing. An empty buffer cannot yield a rate and fails
// with adc.ErrEmptyBuffer.
func (a *Analyzer) AnalyzeDuration(samples []float64, d time.Duration) (*Result, error) {
	rate, err := adc.SampleRate(len(samples), d)
	if err != nil {
		return nil, err
	}
	return a.Analyze(samples, rate)
}

func (a *Analyzer) transform(x []float64) []complex128 {
	switch a.backend {
	case BackendGoDSP:
		return dspfft.FFTReal(x)
	default:
		return fourier.NewFFT(len(x)).Coefficients(nil, x)
	}
}

// Len returns the number of retained bins.
func (r *Result) Len() int {
	return len(r.Magnitudes)
}

// NearestBin returns the bin index closest to freq, clamped to the result.
func (r *Result) NearestBin(freq float64) int {
	if r.Len() == 0 || r.BinWidth == 0 {
		return 0
	}
	k := int(math.Round(freq / r.BinWidth))
	return max(0, min(k, r.Len()-1))
}

// MagnitudeAt returns the magnitude of the bin nearest freq.
func (r *Result) MagnitudeAt(freq float64) float64 {
	if r.Len() == 0 {
		return 0
	}
	return r.Magnitudes[r.NearestBin(freq)]
}

// Peak returns the strongest non-DC bin.
func (r *Result) Peak() (Peak, bool) {
	if r.Len() < 2 {
		return Peak{}, false
	}
	k := floats.MaxIdx(r.Magnitudes[1:]) + 1
	return Peak{Bin: k, Frequency: r.Frequencies[k], Magnitude: r.Magnitudes[k]}, true
}

// TopPeaks returns up to n local maxima ordered by magnitude.
func (r *Result) TopPeaks(n int) []Peak {
	var peaks []Peak
	for k := 1; k < r.Len(); k++ {
		m := r.Magnitudes[k]
		if m <= r.Magnitudes[k-1] {
			continue
		}
		if k+1 < r.Len() && m < r.Magnitudes[k+1] {
			continue
		}
		peaks = append(peaks, Peak{Bin: k, Frequency: r.Frequencies[k], Magnitude: m})
	}
	sort.SliceStable(peaks, func(i, j int) bool {
		return peaks[i].Magnitude > peaks[j].Magnitude
	})
	if len(peaks) > n {
		peaks = peaks[:n]
	}
	return peaks
}
