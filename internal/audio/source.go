package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/hajimehoshi/go-mp3"
	"github.com/mewkiz/flac"
)

// Container identifies the encoding of a track source
type Container string

const (
	ContainerWAV     Container = "wav"
	ContainerFLAC    Container = "flac"
	ContainerMP3     Container = "mp3"
	ContainerUnknown Container = "unknown"
)

// Sniff inspects the leading bytes of a source to identify its container
func Sniff(data []byte) Container {
	switch {
	case len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE":
		return ContainerWAV
	case len(data) >= 4 && string(data[0:4]) == "fLaC":
		return ContainerFLAC
	case len(data) >= 3 && string(data[0:3]) == "ID3":
		return ContainerMP3
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		return ContainerMP3
	}
	return ContainerUnknown
}

// DecodeSource decodes a track source of any supported container into PCM
func DecodeSource(data []byte) (*PCM, error) {
	switch Sniff(data) {
	case ContainerWAV:
		return DecodeWAV(data)
	case ContainerFLAC:
		return decodeFLAC(data)
	case ContainerMP3:
		return decodeMP3(data)
	}
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("%w: %d bytes is smaller than the %d-byte header", ErrMalformedAudio, len(data), HeaderSize)
	}
	return nil, fmt.Errorf("%w: unrecognized container", ErrUnsupportedFormat)
}

// decodeMP3 decodes MP3 data; go-mp3 always yields interleaved 16-bit stereo
func decodeMP3(data []byte) (*PCM, error) {
	decoder, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode MP3: %v", ErrMalformedAudio, err)
	}

	raw, err := io.ReadAll(decoder)
	if err != nil && len(raw) == 0 {
		return nil, fmt.Errorf("%w: mp3 decode error: %v", ErrMalformedAudio, err)
	}

	frames := len(raw) / 4
	left := make([]float32, frames)
	right := make([]float32, frames)
	for i := 0; i < frames; i++ {
		left[i] = float32(int16(binary.LittleEndian.Uint16(raw[i*4:]))) / 32768
		right[i] = float32(int16(binary.LittleEndian.Uint16(raw[i*4+2:]))) / 32768
	}

	return &PCM{SampleRate: decoder.SampleRate(), Channels: [][]float32{left, right}}, nil
}

// decodeFLAC decodes FLAC data frame by frame; a corrupt tail ends decoding
// at the last complete frame
func decodeFLAC(data []byte) (*PCM, error) {
	stream, err := flac.New(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode FLAC: %v", ErrMalformedAudio, err)
	}
	defer stream.Close()

	numChannels := int(stream.Info.NChannels)
	bitDepth := int(stream.Info.BitsPerSample)
	if numChannels == 0 || bitDepth == 0 {
		return nil, fmt.Errorf("%w: invalid FLAC stream info", ErrMalformedAudio)
	}
	scale := float32(int64(1) << (bitDepth - 1))

	channels := make([][]float32, numChannels)
	for {
		frame, err := stream.ParseNext()
		if err != nil {
			if errors.Is(err, io.EOF) || len(channels[0]) > 0 {
				break
			}
			return nil, fmt.Errorf("%w: flac frame error: %v", ErrMalformedAudio, err)
		}
		for ch := 0; ch < numChannels && ch < len(frame.Subframes); ch++ {
			for _, s := range frame.Subframes[ch].Samples {
				channels[ch] = append(channels[ch], float32(s)/scale)
			}
		}
	}

	return &PCM{SampleRate: int(stream.Info.SampleRate), Channels: channels}, nil
}
