package model

import "time"

// TrackAnalysis is produced by an external analysis step and only read here
type TrackAnalysis struct {
	Duration float64   `json:"duration" yaml:"duration"`
	Tempo    float64   `json:"tempo,omitempty" yaml:"tempo,omitempty"`
	Key      string    `json:"key,omitempty" yaml:"key,omitempty"`
	BeatGrid []float64 `json:"beatGrid,omitempty" yaml:"beatGrid,omitempty"`
}

// Track is one audio source placed on the master timeline
type Track struct {
	ID          string         `json:"id" yaml:"id" validate:"required,max=64"`
	URL         string         `json:"url" yaml:"url" validate:"required"`
	StartOffset float64        `json:"startOffset" yaml:"startOffset" validate:"gte=0"`
	Volume      float64        `json:"volume" yaml:"volume" validate:"gte=0,lte=1"`
	Analysis    *TrackAnalysis `json:"analysis,omitempty" yaml:"analysis,omitempty"`
}

// Duration returns the analyzed duration, or 0 when unknown
func (t Track) Duration() float64 {
	if t.Analysis == nil {
		return 0
	}
	return t.Analysis.Duration
}

// Project is the read-only snapshot a render works from
type Project struct {
	ID         string      `json:"id" yaml:"id"`
	UserID     string      `json:"userId,omitempty" yaml:"userId,omitempty"`
	Name       string      `json:"name,omitempty" yaml:"name,omitempty" validate:"max=200"`
	Tracks     []Track     `json:"tracks" yaml:"tracks" validate:"required,min=1,dive"`
	Placements []Placement `json:"placements" yaml:"placements" validate:"dive"`
}

// TrackUploadResponse describes a stored track source
type TrackUploadResponse struct {
	ID         string        `json:"id"`
	URL        string        `json:"url"`
	Format     string        `json:"format"`
	SampleRate int           `json:"sampleRate"`
	Channels   int           `json:"channels"`
	Analysis   TrackAnalysis `json:"analysis"`
	CreatedAt  time.Time     `json:"createdAt"`
}
