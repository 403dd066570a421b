package dsp

// Fade applies a linear fade-in over the first fadeIn samples and a linear
// fade-out over the last fadeOut samples of every channel. Zero lengths leave
// the audio untouched.
func Fade(channels [][]float32, fadeIn, fadeOut int) {
	for _, ch := range channels {
		n := len(ch)

		fi := min(fadeIn, n)
		for i := 0; i < fi; i++ {
			ch[i] *= float32(i) / float32(fi)
		}

		fo := min(fadeOut, n)
		for i := 0; i < fo; i++ {
			ch[n-1-i] *= float32(i) / float32(fo)
		}
	}
}

// SecondsToSamples converts a duration to a whole sample count
func SecondsToSamples(seconds float64, sampleRate int) int {
	if seconds <= 0 || sampleRate <= 0 {
		return 0
	}
	return int(seconds * float64(sampleRate))
}
