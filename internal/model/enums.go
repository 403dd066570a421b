package model

// Output formats
type Format string

const (
	FormatMP3  Format = "mp3"
	FormatWAV  Format = "wav"
	FormatFLAC Format = "flac"
)

var ValidFormats = []Format{FormatMP3, FormatWAV, FormatFLAC}

// Quality presets
type Quality string

const (
	QualityDraft    Quality = "draft"
	QualityStandard Quality = "standard"
	QualityHigh     Quality = "high"
	QualityLossless Quality = "lossless"
)

var ValidQualities = []Quality{QualityDraft, QualityStandard, QualityHigh, QualityLossless}

// Job status
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// IsTerminal reports whether no further transitions are allowed
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Transition types
type TransitionType string

const (
	TransitionCrossfade TransitionType = "crossfade"
	TransitionFilter    TransitionType = "filter"
	TransitionEcho      TransitionType = "echo"
)

// Track roles recognized by crossfade automation
const (
	RoleTrackA = "trackA"
	RoleTrackB = "trackB"
)
