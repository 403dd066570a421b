package render

import (
	"errors"
	"testing"

	"github.com/RefurbishedContent/mysounds-sub002/internal/model"
)

func TestConfigFor(t *testing.T) {
	tests := []struct {
		quality    model.Quality
		sampleRate int
		bitDepth   int
		bitrate    int // 0 = none
		normalize  bool
	}{
		{model.QualityDraft, 44100, 16, 128, false},
		{model.QualityStandard, 44100, 16, 320, true},
		{model.QualityHigh, 48000, 24, 320, true},
		{model.QualityLossless, 48000, 24, 0, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.quality), func(t *testing.T) {
			cfg, err := ConfigFor(tt.quality)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cfg.SampleRate != tt.sampleRate || cfg.BitDepth != tt.bitDepth || cfg.Normalize != tt.normalize {
				t.Errorf("unexpected config %+v", cfg)
			}
			if tt.bitrate == 0 && cfg.Bitrate != nil {
				t.Errorf("expected no bitrate, got %d", *cfg.Bitrate)
			}
			if tt.bitrate != 0 && (cfg.Bitrate == nil || *cfg.Bitrate != tt.bitrate) {
				t.Errorf("expected bitrate %d, got %v", tt.bitrate, cfg.Bitrate)
			}
			if cfg.FadeIn != 0 || cfg.FadeOut != 0 {
				t.Errorf("expected zero fades, got %f/%f", cfg.FadeIn, cfg.FadeOut)
			}
		})
	}
}

func TestConfigFor_Unknown(t *testing.T) {
	if _, err := ConfigFor("ultra"); !errors.Is(err, ErrUnknownQuality) {
		t.Fatalf("expected ErrUnknownQuality, got %v", err)
	}
	if _, err := CreditCost("ultra"); !errors.Is(err, ErrUnknownQuality) {
		t.Fatalf("expected ErrUnknownQuality, got %v", err)
	}
}

func TestConfigFor_BitrateNotShared(t *testing.T) {
	a, _ := ConfigFor(model.QualityHigh)
	*a.Bitrate = 1
	b, _ := ConfigFor(model.QualityHigh)
	if *b.Bitrate != 320 {
		t.Errorf("expected preset table to be immutable, got %d", *b.Bitrate)
	}
}

func TestWantsWrapper(t *testing.T) {
	standard, _ := ConfigFor(model.QualityStandard)
	lossless, _ := ConfigFor(model.QualityLossless)

	if !WantsWrapper(model.FormatMP3, standard) {
		t.Error("expected mp3/standard to want a wrapper")
	}
	if WantsWrapper(model.FormatWAV, standard) {
		t.Error("expected wav to never want a wrapper")
	}
	if WantsWrapper(model.FormatMP3, lossless) {
		t.Error("expected lossless to never want a wrapper")
	}
}

func TestTotalDuration(t *testing.T) {
	tracks := []model.Track{
		{ID: "a", Analysis: &model.TrackAnalysis{Duration: 30}},
		{ID: "b", Analysis: &model.TrackAnalysis{Duration: 95.5}},
	}
	if got := TotalDuration(tracks, 240); got != 95.5 {
		t.Errorf("expected 95.5, got %f", got)
	}

	tracks = append(tracks, model.Track{ID: "c"})
	if got := TotalDuration(tracks, 0); got != DefaultTrackDuration {
		t.Errorf("expected default %f for unanalyzed track, got %f", DefaultTrackDuration, got)
	}

	if got := TotalDuration(nil, 240); got != 0 {
		t.Errorf("expected 0 for no tracks, got %f", got)
	}
}

func TestPresets(t *testing.T) {
	rows := Presets()
	if len(rows) != 4 {
		t.Fatalf("expected 4 presets, got %d", len(rows))
	}
	if rows[0].Quality != model.QualityDraft || rows[0].Credits != 1 {
		t.Errorf("unexpected first row %+v", rows[0])
	}
	if rows[3].Quality != model.QualityLossless || rows[3].Credits != 3 {
		t.Errorf("unexpected last row %+v", rows[3])
	}
}
