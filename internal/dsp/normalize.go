package dsp

import "math"

// TargetPeak is the ceiling Normalize scales quiet material up to
const TargetPeak float32 = 0.95

// Peak returns the largest absolute sample across all channels
func Peak(channels [][]float32) float32 {
	var peak float32
	for _, ch := range channels {
		for _, s := range ch {
			if a := float32(math.Abs(float64(s))); a > peak {
				peak = a
			}
		}
	}
	return peak
}

// Normalize scales every sample by TargetPeak/peak when 0 < peak < 1 and
// returns the factor used. Silent or clipping material is left alone and the
// returned factor is 1.
func Normalize(channels [][]float32) float32 {
	peak := Peak(channels)
	if peak <= 0 || peak >= 1 || peak == TargetPeak {
		return 1
	}

	scale := TargetPeak / peak
	for _, ch := range channels {
		for i := range ch {
			ch[i] *= scale
		}
	}
	return scale
}
