package spectrum

import (
	"errors"
	"math"
	"testing"
	"time"

	"drgex/internal/adc"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func adcSine(freq, rate float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Round(2048 + 1000*math.Sin(2*math.Pi*freq*float64(i)/rate))
	}
	return out
}

func TestAnalyzePeakAtToneFrequency(t *testing.T) {
	a, err := NewAnalyzer("")
	require.NoError(t, err)

	tests := []struct {
		freq, rate float64
		n          int
	}{
		{37, 1000, 1000},
		{37.3, 1000, 1000},
		{50, 1500, 3000},
		{123.4, 800, 999},
	}

	for _, tt := range tests {
		res, err := a.Analyze(adcSine(tt.freq, tt.rate, tt.n), tt.rate)
		require.NoError(t, err)

		peak, ok := res.Peak()
		require.True(t, ok)
		assert.InDelta(t, tt.freq, peak.Frequency, tt.rate/float64(tt.n),
			"tone %.1f Hz at %.0f Hz", tt.freq, tt.rate)
	}
}

func TestAnalyzeShapeAndScale(t *testing.T) {
	a, err := NewAnalyzer(string(BackendGonum))
	require.NoError(t, err)

	res, err := a.Analyze(adcSine(100, 1000, 1000), 1000)
	require.NoError(t, err)

	assert.Equal(t, 501, res.Len())
	assert.Len(t, res.Frequencies, res.Len())
	assert.Equal(t, 0.0, res.Frequencies[0])
	assert.InDelta(t, 500.0, res.Frequencies[res.Len()-1], 1e-9)
	assert.InDelta(t, 1.0, res.BinWidth, 1e-12)

	// De-meaned, so DC carries nothing
	assert.Less(t, res.Magnitudes[0], 1e-6)

	// Unnormalized transform: amplitude in volts times N/2
	want := 1000.0 / adc.Resolution * adc.ReferenceVoltage * 500
	assert.InDelta(t, want, res.MagnitudeAt(100), want*0.01)

	for _, m := range res.Magnitudes {
		assert.GreaterOrEqual(t, m, 0.0)
	}
}

func TestBackendsAgree(t *testing.T) {
	g, err := NewAnalyzer(string(BackendGonum))
	require.NoError(t, err)
	d, err := NewAnalyzer(string(BackendGoDSP))
	require.NoError(t, err)

	samples := adcSine(61, 977, 777)
	rg, err := g.Analyze(samples, 977)
	require.NoError(t, err)
	rd, err := d.Analyze(samples, 977)
	require.NoError(t, err)

	require.Equal(t, rg.Len(), rd.Len())
	for k := range rg.Magnitudes {
		assert.InDelta(t, rg.Magnitudes[k], rd.Magnitudes[k], 1e-6, "bin %d", k)
	}
}

func TestAnalyzeEmpty(t *testing.T) {
	a, _ := NewAnalyzer("")
	res, err := a.Analyze(nil, 1000)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Len())

	_, ok := res.Peak()
	assert.False(t, ok)
}

func TestAnalyzeRejectsBadRate(t *testing.T) {
	a, _ := NewAnalyzer("")
	for _, rate := range []float64{0, -1, math.NaN()} {
		_, err := a.Analyze([]float64{1, 2, 3}, rate)
		assert.True(t, errors.Is(err, adc.ErrInvalidSampleRate))
	}
}

func TestAnalyzeDurationEmptyBuffer(t *testing.T) {
	a, _ := NewAnalyzer("")
	_, err := a.AnalyzeDuration(nil, time.Second)
	assert.True(t, errors.Is(err, adc.ErrEmptyBuffer))

	_, err = a.AnalyzeDuration([]float64{1}, 0)
	assert.True(t, errors.Is(err, adc.ErrInvalidDuration))

	res, err := a.AnalyzeDuration(adcSine(10, 100, 200), 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 100.0, res.SampleRate)
}

func TestUnknownBackend(t *testing.T) {
	_, err := NewAnalyzer("fftw")
	assert.Error(t, err)
}

func TestTopPeaks(t *testing.T) {
	samples := adcSine(40, 1000, 1000)
	second := adcSine(150, 1000, 1000)
	for i := range samples {
		samples[i] += (second[i] - 2048) / 4
	}

	a, _ := NewAnalyzer("")
	res, err := a.Analyze(samples, 1000)
	require.NoError(t, err)

	peaks := res.TopPeaks(2)
	require.Len(t, peaks, 2)
	assert.Equal(t, 40, peaks[0].Bin)
	assert.Equal(t, 150, peaks[1].Bin)
	assert.Greater(t, peaks[0].Magnitude, peaks[1].Magnitude)
}

func TestTimeSeries(t *testing.T) {
	s, err := TimeSeries([]float64{5, 6, 7, 8}, 4)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0.25, 0.5, 0.75}, s.Time)
	assert.Equal(t, []float64{5, 6, 7, 8}, s.Values)

	_, err = TimeSeries([]float64{1}, 0)
	assert.Error(t, err)
}
