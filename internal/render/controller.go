// Package render drives one render job from credit reservation to a
// terminal job state.
package render

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/RefurbishedContent/mysounds-sub002/internal/audio"
	"github.com/RefurbishedContent/mysounds-sub002/internal/dsp"
	"github.com/RefurbishedContent/mysounds-sub002/internal/mixer"
	"github.com/RefurbishedContent/mysounds-sub002/internal/model"
)

// ErrInsufficientCredits is returned when the ledger refuses the reservation
var ErrInsufficientCredits = errors.New("insufficient credits")

// Activity event types
const (
	EventRenderStarted   = "render_started"
	EventRenderCompleted = "render_completed"
	EventRenderFailed    = "render_failed"
)

// ProjectReader loads the project snapshot a render works from
type ProjectReader interface {
	ReadProject(ctx context.Context, projectID, userID string) (*model.Project, error)
}

// CreditLedger reserves and refunds credits. Both calls are idempotent per job.
type CreditLedger interface {
	ReserveCredits(ctx context.Context, userID, jobID string, amount int) (bool, error)
	RefundCredits(ctx context.Context, userID, jobID string) error
}

// JobUpdater moves a job row forward and appends to its status log
type JobUpdater interface {
	UpdateJobStatus(ctx context.Context, jobID string, update model.JobUpdate) error
}

// ArtifactStore publishes an encoded artifact and returns its public URL
type ArtifactStore interface {
	UploadArtifact(ctx context.Context, data []byte, fileName, contentType string) (string, error)
}

// ActivityLogger records telemetry. Errors are logged and otherwise ignored.
type ActivityLogger interface {
	LogActivity(ctx context.Context, userID, eventType string, eventData map[string]any) error
}

// Transcoder derives a lossy artifact from a published lossless one and
// returns the lossy artifact's URL
type Transcoder interface {
	Transcode(ctx context.Context, sourceURL string, format model.Format, bitrate int, outputKey string) (string, error)
}

// Dependencies wires a Controller to its collaborators. Transcoder and
// Activity are optional.
type Dependencies struct {
	Projects   ProjectReader
	Credits    CreditLedger
	Jobs       JobUpdater
	Artifacts  ArtifactStore
	Activity   ActivityLogger
	Transcoder Transcoder
	Mixer      *mixer.Mixer

	// DefaultDuration is used for tracks without analysis; 0 means 240s
	DefaultDuration float64
}

// Controller runs render jobs. It is safe for concurrent use; every Run owns
// its own buffers.
type Controller struct {
	deps Dependencies
}

// NewController creates a render controller
func NewController(deps Dependencies) *Controller {
	if deps.DefaultDuration <= 0 {
		deps.DefaultDuration = DefaultTrackDuration
	}
	return &Controller{deps: deps}
}

// run tracks the per-job progress so it never moves backwards
type run struct {
	c        *Controller
	req      model.RenderRequest
	observer Observer
	progress int
	reserved bool
}

// Run executes a render job to a terminal state and returns the published
// URLs. Accounting and terminal status writes are not cancelled with ctx, so
// a cancelled or timed-out render still ends failed with its credits refunded.
func (c *Controller) Run(ctx context.Context, req model.RenderRequest, observer Observer) (*model.OutputURLs, error) {
	if observer == nil {
		observer = nopObserver{}
	}
	r := &run{c: c, req: req, observer: observer}
	detached := context.WithoutCancel(ctx)

	cost, err := CreditCost(req.Quality)
	if err != nil {
		r.markFailed(detached, err)
		return nil, err
	}

	ok, err := c.deps.Credits.ReserveCredits(detached, req.UserID, req.JobID, cost)
	if err != nil {
		err = fmt.Errorf("failed to reserve credits: %w", err)
		r.markFailed(detached, err)
		return nil, err
	}
	if !ok {
		r.markFailed(detached, ErrInsufficientCredits)
		return nil, ErrInsufficientCredits
	}
	r.reserved = true

	log.Printf("Starting render job: %s", req.JobID)
	r.step(ctx, StageCredits, 0, fmt.Sprintf("Reserved %d credits", cost))
	c.logActivity(detached, req.UserID, EventRenderStarted, map[string]any{
		"jobId":     req.JobID,
		"projectId": req.ProjectID,
		"format":    req.Format,
		"quality":   req.Quality,
		"credits":   cost,
	})

	urls, err := r.execute(ctx)
	if err != nil {
		r.fail(detached, err)
		return nil, err
	}

	if err := c.deps.Jobs.UpdateJobStatus(detached, req.JobID, model.JobUpdate{
		Status:     model.JobStatusCompleted,
		Progress:   100,
		Message:    "Render completed",
		OutputURLs: urls,
	}); err != nil {
		err = fmt.Errorf("failed to record completion: %w", err)
		r.fail(detached, err)
		return nil, err
	}

	r.progress = 100
	observer.OnProgress(Progress{Stage: StageCompleted, Percent: 100, Message: "Render completed"})
	c.logActivity(detached, req.UserID, EventRenderCompleted, map[string]any{
		"jobId":      req.JobID,
		"projectId":  req.ProjectID,
		"outputUrls": urls,
	})
	log.Printf("Render job %s completed", req.JobID)

	return urls, nil
}

func (r *run) execute(ctx context.Context) (*model.OutputURLs, error) {
	c := r.c
	req := r.req

	r.step(ctx, StageProject, 10, "Fetching project")
	project, err := c.deps.Projects.ReadProject(ctx, req.ProjectID, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to read project: %w", err)
	}

	r.step(ctx, StageTracks, 20, fmt.Sprintf("Loaded %d tracks and %d placements", len(project.Tracks), len(project.Placements)))

	cfg, err := ConfigFor(req.Quality)
	if err != nil {
		return nil, err
	}
	if req.FadeIn > 0 {
		cfg.FadeIn = req.FadeIn
	}
	if req.FadeOut > 0 {
		cfg.FadeOut = req.FadeOut
	}
	total := TotalDuration(project.Tracks, c.deps.DefaultDuration)
	r.step(ctx, StageConfig, 20, fmt.Sprintf("Rendering %.1fs at %d Hz / %d-bit", total, cfg.SampleRate, cfg.BitDepth))

	r.step(ctx, StageMix, 30, "Mixing tracks")
	mixed, err := c.deps.Mixer.Mix(ctx, project.Tracks, project.Placements, total, cfg.SampleRate, func(percent float64, message string) {
		r.step(ctx, StageMix, 30+int(percent*50/80), message)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to mix tracks: %w", err)
	}
	if len(mixed.Skipped) > 0 {
		log.Printf("Render job %s: skipped tracks %v", req.JobID, mixed.Skipped)
	}

	r.step(ctx, StagePostprocess, 80, "Post-processing")
	if cfg.Normalize {
		dsp.Normalize(mixed.Channels)
	}
	dsp.Fade(mixed.Channels,
		dsp.SecondsToSamples(cfg.FadeIn, cfg.SampleRate),
		dsp.SecondsToSamples(cfg.FadeOut, cfg.SampleRate),
	)

	r.step(ctx, StageEncode, 90, "Encoding")
	wav, err := audio.EncodeWAV(mixed.Channels, cfg.SampleRate, cfg.BitDepth)
	if err != nil {
		return nil, fmt.Errorf("failed to encode output: %w", err)
	}

	r.step(ctx, StageUpload, 95, "Uploading")
	key := fmt.Sprintf("renders/%s/%s", req.ProjectID, req.JobID)
	wavURL, err := c.deps.Artifacts.UploadArtifact(ctx, wav, key+".wav", "audio/wav")
	if err != nil {
		return nil, fmt.Errorf("failed to upload artifact: %w", err)
	}

	if !WantsWrapper(req.Format, cfg) {
		return &model.OutputURLs{Primary: wavURL}, nil
	}

	if c.deps.Transcoder == nil {
		r.step(ctx, StageUpload, 98, fmt.Sprintf("No transcoder configured, delivering WAV instead of %s", req.Format))
		return &model.OutputURLs{Primary: wavURL}, nil
	}

	r.step(ctx, StageUpload, 97, fmt.Sprintf("Encoding %s at %d kbps", req.Format, *cfg.Bitrate))
	lossyURL, err := c.deps.Transcoder.Transcode(ctx, wavURL, req.Format, *cfg.Bitrate, key+"."+string(req.Format))
	if err != nil {
		return nil, fmt.Errorf("failed to transcode output: %w", err)
	}

	return &model.OutputURLs{Primary: lossyURL, Secondary: wavURL}, nil
}

// step records a checkpoint. Progress is clamped so it never decreases, and a
// failed status write is logged rather than aborting the render.
func (r *run) step(ctx context.Context, stage Stage, percent int, message string) {
	if percent < r.progress {
		percent = r.progress
	}
	if percent > 100 {
		percent = 100
	}
	r.progress = percent

	if err := r.c.deps.Jobs.UpdateJobStatus(ctx, r.req.JobID, model.JobUpdate{
		Status:   model.JobStatusProcessing,
		Progress: percent,
		Message:  message,
	}); err != nil {
		log.Printf("Failed to update progress: %v", err)
	}
	r.observer.OnProgress(Progress{Stage: stage, Percent: percent, Message: message})
}

// fail refunds the reservation and marks the job failed
func (r *run) fail(ctx context.Context, cause error) {
	if r.reserved {
		if err := r.c.deps.Credits.RefundCredits(ctx, r.req.UserID, r.req.JobID); err != nil {
			log.Printf("Failed to refund credits for job %s: %v", r.req.JobID, err)
		}
	}
	r.markFailed(ctx, cause)
}

// markFailed records the failed terminal state. A job rejected before its
// reservation goes straight from queued to failed.
func (r *run) markFailed(ctx context.Context, cause error) {
	msg := cause.Error()
	log.Printf("Render job %s failed: %s", r.req.JobID, msg)

	if err := r.c.deps.Jobs.UpdateJobStatus(ctx, r.req.JobID, model.JobUpdate{
		Status:   model.JobStatusFailed,
		Progress: r.progress,
		Message:  "Render failed",
		Error:    msg,
	}); err != nil {
		log.Printf("Failed to mark job as failed: %v", err)
	}

	r.observer.OnProgress(Progress{Stage: StageFailed, Percent: r.progress, Message: msg})
	r.c.logActivity(ctx, r.req.UserID, EventRenderFailed, map[string]any{
		"jobId":     r.req.JobID,
		"projectId": r.req.ProjectID,
		"error":     msg,
		"refunded":  r.reserved,
	})
}

func (c *Controller) logActivity(ctx context.Context, userID, eventType string, data map[string]any) {
	if c.deps.Activity == nil {
		return
	}
	if err := c.deps.Activity.LogActivity(ctx, userID, eventType, data); err != nil {
		log.Printf("Failed to log activity %s: %v", eventType, err)
	}
}
