package audio

// Resample converts each channel from inputRate to outputRate using linear interpolation.
// The input is returned unchanged when the rates already match.
func Resample(channels [][]float32, inputRate, outputRate int) [][]float32 {
	if inputRate <= 0 || outputRate <= 0 || inputRate == outputRate {
		return channels
	}

	ratio := float64(inputRate) / float64(outputRate)
	out := make([][]float32, len(channels))

	for ch, input := range channels {
		if len(input) == 0 {
			out[ch] = []float32{}
			continue
		}

		outputFrames := int(float64(len(input)) / ratio)
		output := make([]float32, outputFrames)

		for i := range output {
			pos := float64(i) * ratio
			idx := int(pos)
			if idx >= len(input)-1 {
				output[i] = input[len(input)-1]
				continue
			}
			frac := float32(pos - float64(idx))
			output[i] = input[idx]*(1-frac) + input[idx+1]*frac
		}
		out[ch] = output
	}

	return out
}

// ToRate returns the PCM converted to the given sample rate
func (p *PCM) ToRate(sampleRate int) *PCM {
	if p.SampleRate == sampleRate || p.SampleRate <= 0 {
		return p
	}
	return &PCM{
		SampleRate: sampleRate,
		Channels:   Resample(p.Channels, p.SampleRate, sampleRate),
	}
}
