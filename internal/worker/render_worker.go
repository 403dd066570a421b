package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/hibiken/asynq"

	"github.com/RefurbishedContent/mysounds-sub002/internal/model"
	"github.com/RefurbishedContent/mysounds-sub002/internal/render"
	"github.com/RefurbishedContent/mysounds-sub002/internal/service"
	"github.com/RefurbishedContent/mysounds-sub002/internal/websocket"
)

// JobStore reads and advances render job rows
type JobStore interface {
	GetJob(ctx context.Context, jobID string) (*model.Job, error)
	UpdateJobStatus(ctx context.Context, jobID string, update model.JobUpdate) error
}

// RenderWorker processes render:process tasks
type RenderWorker struct {
	jobs       JobStore
	controller *render.Controller
	hub        *websocket.Hub
	timeout    time.Duration
}

// NewRenderWorker creates a new render worker. hub may be nil; a zero
// timeout leaves the deadline to asynq.
func NewRenderWorker(jobs JobStore, controller *render.Controller, hub *websocket.Hub, timeout time.Duration) *RenderWorker {
	return &RenderWorker{
		jobs:       jobs,
		controller: controller,
		hub:        hub,
		timeout:    timeout,
	}
}

// ProcessTask runs one render job to a terminal state. Every error is wrapped
// in asynq.SkipRetry: a failed render is final and a retry is a new job.
func (w *RenderWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var taskPayload service.RenderTaskPayload
	if err := json.Unmarshal(t.Payload(), &taskPayload); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %v: %w", err, asynq.SkipRetry)
	}

	jobID := taskPayload.JobID

	var payload model.RenderJobPayload
	if err := json.Unmarshal(taskPayload.Payload, &payload); err != nil {
		w.failJob(ctx, jobID, "Invalid payload")
		return fmt.Errorf("failed to unmarshal render payload: %v: %w", err, asynq.SkipRetry)
	}

	job, err := w.jobs.GetJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to load job %s: %v: %w", jobID, err, asynq.SkipRetry)
	}
	if job.Status.IsTerminal() {
		log.Printf("Render job %s already %s, skipping", jobID, job.Status)
		return nil
	}

	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	req := model.RenderRequest{
		JobID:     jobID,
		ProjectID: payload.ProjectID,
		UserID:    payload.UserID,
		Format:    payload.Format,
		Quality:   payload.Quality,
	}

	var observer render.Observer
	if w.hub != nil {
		observer = w.hub.Observer(jobID)
	}

	urls, err := w.controller.Run(ctx, req, observer)
	if err != nil {
		return fmt.Errorf("render job %s failed: %v: %w", jobID, err, asynq.SkipRetry)
	}

	if w.hub != nil {
		w.hub.BroadcastComplete(jobID, *urls)
	}
	return nil
}

// failJob marks a job failed that never reached the controller
func (w *RenderWorker) failJob(ctx context.Context, jobID, errMsg string) {
	if jobID == "" {
		return
	}
	if err := w.jobs.UpdateJobStatus(context.WithoutCancel(ctx), jobID, model.JobUpdate{
		Status:  model.JobStatusFailed,
		Message: "Render failed",
		Error:   errMsg,
	}); err != nil {
		log.Printf("Failed to mark job as failed: %v", err)
	}
	if w.hub != nil {
		w.hub.BroadcastError(jobID, websocket.ErrorCodeRenderFailed, errMsg)
	}
}
