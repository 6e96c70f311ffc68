package spectrum

import "drgex/internal/adc"

// Series is the time-domain view of a buffer, ready for plotting.
type Series struct {
	Time   []float64 // Seconds since capture start
	Values []float64 // Raw ADC codes
}

// TimeSeries pairs each sample with its capture time at rate.
func TimeSeries(samples []float64, rate float64) (*Series, error) {
	s := &Series{Time: make([]float64, len(samples)), Values: make([]float64, len(samples))}
	if len(samples) == 0 {
		return s, nil
	}
	if err := adc.CheckRate(rate); err != nil {
		return nil, err
	}
	copy(s.Values, samples)
	for i := range s.Time {
		s.Time[i] = float64(i) / rate
	}
	return s, nil
}
