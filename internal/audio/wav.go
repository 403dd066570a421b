package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// HeaderSize is the size of the canonical RIFF/WAVE header
const HeaderSize = 44

const (
	max16Bit = 32767
	max24Bit = 8388607 // 2^23 - 1
)

var (
	// ErrMalformedAudio is returned when a container cannot be decoded at all
	ErrMalformedAudio = errors.New("malformed audio")

	// ErrUnsupportedFormat is returned for containers or bit depths the codec does not handle
	ErrUnsupportedFormat = errors.New("unsupported audio format")
)

// PCM holds decoded audio as one float32 slice per channel, normalized to [-1, 1]
type PCM struct {
	SampleRate int
	Channels   [][]float32
}

// Frames returns the number of samples per channel
func (p *PCM) Frames() int {
	if p == nil || len(p.Channels) == 0 {
		return 0
	}
	return len(p.Channels[0])
}

// Duration returns the length of the audio in seconds
func (p *PCM) Duration() float64 {
	if p == nil || p.SampleRate <= 0 {
		return 0
	}
	return float64(p.Frames()) / float64(p.SampleRate)
}

// DecodeWAV decodes a 44-byte-header PCM WAV container.
// Channel count, sample rate and bit depth come from the fmt fields; a zero
// channel count means stereo and a zero bit depth means 16-bit. A payload that
// ends mid-frame is decoded up to the last complete frame.
func DecodeWAV(data []byte) (*PCM, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("%w: %d bytes is smaller than the %d-byte header", ErrMalformedAudio, len(data), HeaderSize)
	}

	numChannels := int(binary.LittleEndian.Uint16(data[22:24]))
	sampleRate := int(binary.LittleEndian.Uint32(data[24:28]))
	bitDepth := int(binary.LittleEndian.Uint16(data[34:36]))

	if numChannels == 0 {
		numChannels = 2
	}
	if bitDepth == 0 {
		bitDepth = 16
	}
	if bitDepth != 16 && bitDepth != 24 {
		return nil, fmt.Errorf("%w: unsupported bit depth: %d (supported: 16, 24)", ErrUnsupportedFormat, bitDepth)
	}

	bytesPerSample := bitDepth / 8
	frameSize := numChannels * bytesPerSample
	payload := data[HeaderSize:]
	frames := len(payload) / frameSize

	channels := make([][]float32, numChannels)
	for ch := range channels {
		channels[ch] = make([]float32, frames)
	}

	for i := 0; i < frames; i++ {
		base := i * frameSize
		for ch := 0; ch < numChannels; ch++ {
			offset := base + ch*bytesPerSample
			if bitDepth == 24 {
				channels[ch][i] = float32(SampleFrom24Bit(payload[offset:offset+3])) / 8388608
			} else {
				channels[ch][i] = float32(int16(binary.LittleEndian.Uint16(payload[offset:]))) / 32768
			}
		}
	}

	return &PCM{SampleRate: sampleRate, Channels: channels}, nil
}

// EncodeWAV encodes channel arrays into a 44-byte-header PCM WAV container.
// Samples are clamped to [-1, 1] before quantization. Channels shorter than
// the first are padded with silence.
func EncodeWAV(channels [][]float32, sampleRate, bitDepth int) ([]byte, error) {
	if bitDepth != 16 && bitDepth != 24 {
		return nil, fmt.Errorf("%w: unsupported bit depth: %d (supported: 16, 24)", ErrUnsupportedFormat, bitDepth)
	}
	if len(channels) == 0 {
		return nil, fmt.Errorf("no channels to encode")
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate: %d", sampleRate)
	}

	numChannels := len(channels)
	frames := len(channels[0])
	bytesPerSample := bitDepth / 8
	blockAlign := numChannels * bytesPerSample
	dataSize := frames * blockAlign

	out := make([]byte, HeaderSize+dataSize)
	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], uint32(36+dataSize))
	copy(out[8:12], "WAVE")
	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], 16) // fmt chunk size
	binary.LittleEndian.PutUint16(out[20:22], 1)  // PCM
	binary.LittleEndian.PutUint16(out[22:24], uint16(numChannels))
	binary.LittleEndian.PutUint32(out[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:32], uint32(sampleRate*blockAlign))
	binary.LittleEndian.PutUint16(out[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:36], uint16(bitDepth))
	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], uint32(dataSize))

	payload := out[HeaderSize:]
	for i := 0; i < frames; i++ {
		base := i * blockAlign
		for ch := 0; ch < numChannels; ch++ {
			var sample float32
			if i < len(channels[ch]) {
				sample = clampUnit(channels[ch][i])
			}
			offset := base + ch*bytesPerSample
			if bitDepth == 24 {
				b := SampleTo24Bit(int32(math.Round(float64(sample) * max24Bit)))
				copy(payload[offset:offset+3], b[:])
			} else {
				v := int16(math.Round(float64(sample) * max16Bit))
				binary.LittleEndian.PutUint16(payload[offset:], uint16(v))
			}
		}
	}

	return out, nil
}

// SampleFrom24Bit reconstructs a signed 24-bit little-endian sample
func SampleFrom24Bit(b []byte) int32 {
	val := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
	if val&0x800000 != 0 {
		val |= ^0xFFFFFF
	}
	return val
}

// SampleTo24Bit packs the low 24 bits of a sample little-endian
func SampleTo24Bit(sample int32) [3]byte {
	return [3]byte{
		byte(sample),
		byte(sample >> 8),
		byte(sample >> 16),
	}
}

func clampUnit(s float32) float32 {
	if s > 1 {
		return 1
	}
	if s < -1 {
		return -1
	}
	return s
}
