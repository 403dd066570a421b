package render

import (
	"errors"
	"fmt"

	"github.com/RefurbishedContent/mysounds-sub002/internal/model"
)

// DefaultTrackDuration is assumed for tracks without analysis, in seconds
const DefaultTrackDuration = 240.0

// ErrUnknownQuality is returned for qualities outside the preset table
var ErrUnknownQuality = errors.New("unknown quality")

type preset struct {
	sampleRate int
	bitDepth   int
	bitrate    int // 0 = no lossy wrapper
	normalize  bool
	credits    int
}

var presets = map[model.Quality]preset{
	model.QualityDraft:    {sampleRate: 44100, bitDepth: 16, bitrate: 128, normalize: false, credits: 1},
	model.QualityStandard: {sampleRate: 44100, bitDepth: 16, bitrate: 320, normalize: true, credits: 2},
	model.QualityHigh:     {sampleRate: 48000, bitDepth: 24, bitrate: 320, normalize: true, credits: 3},
	model.QualityLossless: {sampleRate: 48000, bitDepth: 24, normalize: true, credits: 3},
}

// ConfigFor derives the render configuration for a quality preset.
// Fades default to zero.
func ConfigFor(quality model.Quality) (model.RenderConfig, error) {
	p, ok := presets[quality]
	if !ok {
		return model.RenderConfig{}, fmt.Errorf("%w: %q", ErrUnknownQuality, quality)
	}

	cfg := model.RenderConfig{
		SampleRate: p.sampleRate,
		BitDepth:   p.bitDepth,
		Normalize:  p.normalize,
	}
	if p.bitrate > 0 {
		bitrate := p.bitrate
		cfg.Bitrate = &bitrate
	}
	return cfg, nil
}

// CreditCost returns how many credits a render at this quality reserves
func CreditCost(quality model.Quality) (int, error) {
	p, ok := presets[quality]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownQuality, quality)
	}
	return p.credits, nil
}

// WantsWrapper reports whether a lossy artifact is produced next to the WAV.
// WAV requests always get the PCM container alone.
func WantsWrapper(format model.Format, cfg model.RenderConfig) bool {
	return cfg.Bitrate != nil && format != model.FormatWAV
}

// TotalDuration is the longest track duration, counting unanalyzed tracks
// as defaultDuration seconds
func TotalDuration(tracks []model.Track, defaultDuration float64) float64 {
	if defaultDuration <= 0 {
		defaultDuration = DefaultTrackDuration
	}

	var total float64
	for _, t := range tracks {
		d := t.Duration()
		if d <= 0 {
			d = defaultDuration
		}
		if d > total {
			total = d
		}
	}
	return total
}

// PresetRow describes one quality preset for display
type PresetRow struct {
	Quality model.Quality      `json:"quality"`
	Config  model.RenderConfig `json:"config"`
	Credits int                `json:"credits"`
}

// Presets lists the quality table in ascending order
func Presets() []PresetRow {
	rows := make([]PresetRow, 0, len(model.ValidQualities))
	for _, q := range model.ValidQualities {
		cfg, _ := ConfigFor(q)
		rows = append(rows, PresetRow{Quality: q, Config: cfg, Credits: presets[q].credits})
	}
	return rows
}
