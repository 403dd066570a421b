package model

import "time"

// RenderConfig is derived from (format, quality) and never mutated afterwards.
// A non-nil Bitrate means a lossy wrapper is wanted next to the PCM artifact.
type RenderConfig struct {
	SampleRate int     `json:"sampleRate"`
	BitDepth   int     `json:"bitDepth"`
	Bitrate    *int    `json:"bitrate,omitempty"`
	Normalize  bool    `json:"normalize"`
	FadeIn     float64 `json:"fadeIn"`
	FadeOut    float64 `json:"fadeOut"`
}

// RenderRequest is the unit of work handed to the render controller
type RenderRequest struct {
	JobID     string  `json:"jobId"`
	ProjectID string  `json:"projectId"`
	UserID    string  `json:"userId"`
	Format    Format  `json:"format"`
	Quality   Quality `json:"quality"`

	// Optional fade overrides in seconds; zero keeps the preset
	FadeIn  float64 `json:"fadeIn,omitempty"`
	FadeOut float64 `json:"fadeOut,omitempty"`
}

// RenderStartRequest represents the request to start a render job
type RenderStartRequest struct {
	ProjectID string  `json:"projectId" validate:"required,uuid"`
	Format    Format  `json:"format" validate:"required,oneof=mp3 wav flac"`
	Quality   Quality `json:"quality" validate:"required,oneof=draft standard high lossless"`
}

// RenderStartResponse represents the response when starting a render
type RenderStartResponse struct {
	JobID     string    `json:"jobId"`
	Status    JobStatus `json:"status"`
	Credits   int       `json:"credits"`
	CreatedAt time.Time `json:"createdAt"`
}

// RenderStatusResponse represents the status of a render job
type RenderStatusResponse struct {
	JobID       string      `json:"jobId"`
	Status      JobStatus   `json:"status"`
	Progress    int         `json:"progress"`
	CurrentStep string      `json:"currentStep,omitempty"`
	Error       *string     `json:"error"`
	OutputURLs  *OutputURLs `json:"outputUrls,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
	StartedAt   *time.Time  `json:"startedAt"`
	CompletedAt *time.Time  `json:"completedAt"`
}

// RenderResultResponse represents the result of a completed render
type RenderResultResponse struct {
	JobID       string     `json:"jobId"`
	ProjectID   string     `json:"projectId"`
	Format      Format     `json:"format"`
	Quality     Quality    `json:"quality"`
	OutputURLs  OutputURLs `json:"outputUrls"`
	CompletedAt time.Time  `json:"completedAt"`
}

// RenderLogResponse lists every status change of a job in order
type RenderLogResponse struct {
	JobID   string        `json:"jobId"`
	Entries []StatusEntry `json:"entries"`
}
