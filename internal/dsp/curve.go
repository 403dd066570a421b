package dsp

import "math"

// Curve names a crossfade shape
type Curve string

const (
	CurveLinear      Curve = "linear"
	CurveExponential Curve = "exponential"
	CurveLogarithmic Curve = "logarithmic"
	CurveSCurve      Curve = "s-curve"
)

// Warp maps linear progress p in [0, 1] through the named curve.
// p is clamped first; unknown curves behave as linear.
func Warp(p float64, curve Curve) float64 {
	if p < 0 {
		p = 0
	} else if p > 1 {
		p = 1
	}

	switch curve {
	case CurveExponential:
		return p * p
	case CurveLogarithmic:
		return math.Sqrt(p)
	case CurveSCurve:
		return (math.Sin((p-0.5)*math.Pi) + 1) / 2
	default:
		return p
	}
}
