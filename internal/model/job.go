package model

import "time"

// OutputURLs holds the published artifacts of a completed render.
// Secondary is the lossless WAV when Primary is a lossy wrapper.
type OutputURLs struct {
	Primary   string `json:"primary"`
	Secondary string `json:"secondary,omitempty"`
}

// Job represents a render job row
type Job struct {
	ID          string      `json:"id"`
	UserID      string      `json:"userId"`
	ProjectID   string      `json:"projectId"`
	Format      Format      `json:"format"`
	Quality     Quality     `json:"quality"`
	Status      JobStatus   `json:"status"`
	Progress    int         `json:"progress"`
	CurrentStep string      `json:"currentStep,omitempty"`
	Error       *string     `json:"error,omitempty"`
	OutputURLs  *OutputURLs `json:"outputUrls,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
	StartedAt   *time.Time  `json:"startedAt,omitempty"`
	CompletedAt *time.Time  `json:"completedAt,omitempty"`
}

// Request returns the render request this job describes
func (j *Job) Request() RenderRequest {
	return RenderRequest{
		JobID:     j.ID,
		ProjectID: j.ProjectID,
		UserID:    j.UserID,
		Format:    j.Format,
		Quality:   j.Quality,
	}
}

// JobUpdate is one forward step of a job. Error is set only for failed and
// OutputURLs only for completed.
type JobUpdate struct {
	Status     JobStatus
	Progress   int
	Message    string
	Error      string
	OutputURLs *OutputURLs
}

// StatusEntry is one line of a job's append-only status log
type StatusEntry struct {
	Status   JobStatus `json:"status"`
	Progress int       `json:"progress"`
	Message  string    `json:"message"`
	At       time.Time `json:"at"`
}

// RenderJobPayload is the task payload enqueued for a render job
type RenderJobPayload struct {
	ProjectID string  `json:"projectId"`
	UserID    string  `json:"userId"`
	Format    Format  `json:"format"`
	Quality   Quality `json:"quality"`
}
