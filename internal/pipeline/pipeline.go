// Package pipeline runs a finished sample buffer through the optional notch
// and the spectral analysis, producing everything the commands display.
package pipeline

import (
	"fmt"

	"drgex/internal/adc"
	"drgex/internal/collector"
	"drgex/internal/filter"
	"drgex/internal/spectrum"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Options selects the optional stages
type Options struct {
	Notch    *filter.Params     // Nil skips filtering
	Analyzer *spectrum.Analyzer // Nil uses the gonum backend
	Peaks    int                // Number of spectral peaks to report
}

// Stats summarizes the analyzed buffer
type Stats struct {
	Count       int
	Rate        float64
	DisplayRate int
	Mean        float64
	StdDev      float64
	Min         float64
	Max         float64
}

// Report is the output of Process
type Report struct {
	Stats    Stats
	Time     *spectrum.Series // Raw samples against time
	Spectrum *spectrum.Result
	Peaks    []spectrum.Peak
	Filtered bool
}

// Process analyzes samples captured at rate. With a notch configured the
// filtered signal is truncated back to integer codes before the transform.
func Process(samples []int, rate float64, opts Options) (*Report, error) {
	analyzer := opts.Analyzer
	if analyzer == nil {
		var err error
		if analyzer, err = spectrum.NewAnalyzer(""); err != nil {
			return nil, err
		}
	}

	raw := adc.Floats(samples)
	series, err := spectrum.TimeSeries(raw, rate)
	if err != nil {
		return nil, err
	}

	data := raw
	if opts.Notch != nil && len(raw) > 0 {
		filtered, err := filter.ApplyNotch(raw, rate, *opts.Notch)
		if err != nil {
			return nil, err
		}
		data = adc.Floats(adc.Truncate(filtered))
	}

	result, err := analyzer.Analyze(data, rate)
	if err != nil {
		return nil, fmt.Errorf("spectral analysis failed: %w", err)
	}

	report := &Report{
		Stats:    summarize(data, rate),
		Time:     series,
		Spectrum: result,
		Filtered: opts.Notch != nil,
	}
	if opts.Peaks > 0 {
		report.Peaks = result.TopPeaks(opts.Peaks)
	}
	return report, nil
}

// ProcessCapture analyzes a finished capture at its effective rate. An
// empty capture has no rate and fails with adc.ErrEmptyBuffer.
func ProcessCapture(c *collector.Capture, opts Options) (*Report, error) {
	rate, err := c.SampleRate()
	if err != nil {
		return nil, err
	}
	return Process(c.Samples, rate, opts)
}

func summarize(data []float64, rate float64) Stats {
	s := Stats{Count: len(data), Rate: rate, DisplayRate: adc.DisplayRate(rate)}
	if len(data) == 0 {
		return s
	}
	s.Mean, s.StdDev = stat.MeanStdDev(data, nil)
	s.Min = floats.Min(data)
	s.Max = floats.Max(data)
	return s
}
