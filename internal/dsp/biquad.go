// Package dsp implements the sample-level building blocks of the render
// pipeline. Every function mutates the buffers it is given in place.
package dsp

import "math"

// FilterType selects the biquad response
type FilterType string

const (
	Lowpass  FilterType = "lowpass"
	Highpass FilterType = "highpass"
)

// Cutoff and Q fallbacks for filter parameters that are missing or out of range
const (
	DefaultCutoff = 1000.0
	DefaultQ      = 0.707
	minCutoff     = 10.0
)

// Biquad holds normalized second-order coefficients (already divided by a0)
type Biquad struct {
	B0, B1, B2 float64
	A1, A2     float64
}

// NewBiquad derives RBJ cookbook coefficients for a lowpass or highpass filter.
// Unknown filter types fall back to lowpass. The cutoff is kept between 10 Hz
// and just under Nyquist.
func NewBiquad(filterType FilterType, cutoff, q float64, sampleRate int) Biquad {
	if sampleRate <= 0 {
		return Biquad{B0: 1}
	}
	if cutoff <= 0 {
		cutoff = DefaultCutoff
	}
	cutoff = math.Max(minCutoff, math.Min(cutoff, 0.49*float64(sampleRate)))
	if q <= 0 {
		q = DefaultQ
	}

	w := 2.0 * math.Pi * cutoff / float64(sampleRate)
	cosw := math.Cos(w)
	alpha := math.Sin(w) / (2.0 * q)

	var b0, b1, b2 float64
	switch filterType {
	case Highpass:
		b0 = (1.0 + cosw) / 2.0
		b1 = -(1.0 + cosw)
		b2 = (1.0 + cosw) / 2.0
	default:
		b0 = (1.0 - cosw) / 2.0
		b1 = 1.0 - cosw
		b2 = (1.0 - cosw) / 2.0
	}
	a0 := 1.0 + alpha
	a1 := -2.0 * cosw
	a2 := 1.0 - alpha

	return Biquad{
		B0: b0 / a0,
		B1: b1 / a0,
		B2: b2 / a0,
		A1: a1 / a0,
		A2: a2 / a0,
	}
}

// Process filters buf[start:start+length] in place. The x1/x2/y1/y2 state
// starts at zero on every call.
func (b Biquad) Process(buf []float32, start, length int) {
	lo, hi := window(len(buf), start, length)

	var x1, x2, y1, y2 float64
	for i := lo; i < hi; i++ {
		x0 := float64(buf[i])
		y0 := b.B0*x0 + b.B1*x1 + b.B2*x2 - b.A1*y1 - b.A2*y2

		x2, x1 = x1, x0
		y2, y1 = y1, y0
		buf[i] = float32(y0)
	}
}

// ProcessChannels runs the same filter independently over every channel
func (b Biquad) ProcessChannels(channels [][]float32, start, length int) {
	for _, ch := range channels {
		b.Process(ch, start, length)
	}
}

// window clips [start, start+length) to a buffer of n samples
func window(n, start, length int) (int, int) {
	lo := start
	if lo < 0 {
		lo = 0
	}
	hi := start + length
	if hi > n {
		hi = n
	}
	if hi < lo {
		hi = lo
	}
	return lo, hi
}
