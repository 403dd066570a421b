package dsp

// Echo defaults applied when a transition leaves the parameter out
const (
	DefaultEchoDelay    = 0.25 // seconds
	DefaultEchoFeedback = 0.5
	DefaultEchoMix      = 0.5
)

// Echo applies a single-tap feedback delay over buf[start:start+length].
// The delayed tap is read from buf itself, so samples already processed in
// this window feed back into later ones. A non-positive delay is a no-op.
func Echo(buf []float32, start, length, delaySamples int, feedback, mix float32) {
	if delaySamples <= 0 {
		return
	}
	lo, hi := window(len(buf), start, length)

	dry := 1 - mix
	for i := lo; i < hi; i++ {
		j := i - delaySamples
		if j < 0 {
			continue
		}
		buf[i] = buf[i]*dry + buf[j]*feedback*mix
	}
}

// EchoChannels applies the same echo to every channel
func EchoChannels(channels [][]float32, start, length, delaySamples int, feedback, mix float32) {
	for _, ch := range channels {
		Echo(ch, start, length, delaySamples, feedback, mix)
	}
}
