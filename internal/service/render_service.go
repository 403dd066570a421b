package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/RefurbishedContent/mysounds-sub002/internal/model"
	"github.com/RefurbishedContent/mysounds-sub002/internal/render"
)

const TaskTypeRender = "render:process"

// QueueRender is the asynq queue render tasks are enqueued on
const QueueRender = "render"

const jobTTL = 24 * time.Hour

var (
	ErrJobNotFound     = errors.New("job not found")
	ErrJobNotCompleted = errors.New("job not completed")
	// ErrJobFinished is returned when an update targets a job already in a
	// terminal state
	ErrJobFinished = errors.New("job already finished")
	// ErrInvalidTransition is returned for a status change that would move a
	// job backwards
	ErrInvalidTransition = errors.New("invalid job status transition")
)

// RenderService owns render job rows in Redis and enqueues render tasks.
// A job row lives at job:<id>; its status log is the list job:<id>:log.
type RenderService struct {
	redis       *redis.Client
	asynqClient *asynq.Client
	taskTimeout time.Duration
}

func NewRenderService(redisClient *redis.Client, asynqClient *asynq.Client, taskTimeout time.Duration) *RenderService {
	return &RenderService{
		redis:       redisClient,
		asynqClient: asynqClient,
		taskTimeout: taskTimeout,
	}
}

// StartRender queues a new render job for userID
func (s *RenderService) StartRender(ctx context.Context, userID string, req *model.RenderStartRequest) (*model.RenderStartResponse, error) {
	credits, err := render.CreditCost(req.Quality)
	if err != nil {
		return nil, err
	}

	jobID := uuid.New().String()
	now := time.Now().UTC()

	job := &model.Job{
		ID:        jobID,
		UserID:    userID,
		ProjectID: req.ProjectID,
		Format:    req.Format,
		Quality:   req.Quality,
		Status:    model.JobStatusQueued,
		Progress:  0,
		CreatedAt: now,
	}

	payload, err := json.Marshal(&model.RenderJobPayload{
		ProjectID: req.ProjectID,
		UserID:    userID,
		Format:    req.Format,
		Quality:   req.Quality,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	if err := s.createJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to save job: %w", err)
	}

	task, err := newRenderTask(jobID, payload)
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	opts := []asynq.Option{
		asynq.Queue(QueueRender),
		asynq.MaxRetry(0),
		asynq.Retention(jobTTL),
	}
	if s.taskTimeout > 0 {
		// leave the worker room to record the failure after its own deadline
		opts = append(opts, asynq.Timeout(s.taskTimeout+time.Minute))
	}
	if _, err := s.asynqClient.Enqueue(task, opts...); err != nil {
		if ferr := s.UpdateJobStatus(context.WithoutCancel(ctx), jobID, model.JobUpdate{
			Status:  model.JobStatusFailed,
			Message: "Render failed",
			Error:   "failed to enqueue render",
		}); ferr != nil {
			return nil, fmt.Errorf("failed to enqueue task: %w (and failed to mark job: %v)", err, ferr)
		}
		return nil, fmt.Errorf("failed to enqueue task: %w", err)
	}

	return &model.RenderStartResponse{
		JobID:     jobID,
		Status:    model.JobStatusQueued,
		Credits:   credits,
		CreatedAt: now,
	}, nil
}

// GetJob returns the job row regardless of owner
func (s *RenderService) GetJob(ctx context.Context, jobID string) (*model.Job, error) {
	return s.getJob(ctx, jobID)
}

// GetStatus returns the current status of a render job owned by userID
func (s *RenderService) GetStatus(ctx context.Context, jobID, userID string) (*model.RenderStatusResponse, error) {
	job, err := s.ownedJob(ctx, jobID, userID)
	if err != nil {
		return nil, err
	}

	return &model.RenderStatusResponse{
		JobID:       job.ID,
		Status:      job.Status,
		Progress:    job.Progress,
		CurrentStep: job.CurrentStep,
		Error:       job.Error,
		OutputURLs:  job.OutputURLs,
		CreatedAt:   job.CreatedAt,
		StartedAt:   job.StartedAt,
		CompletedAt: job.CompletedAt,
	}, nil
}

// GetLog returns every status change of a job in the order it happened
func (s *RenderService) GetLog(ctx context.Context, jobID, userID string) (*model.RenderLogResponse, error) {
	if _, err := s.ownedJob(ctx, jobID, userID); err != nil {
		return nil, err
	}

	raw, err := s.redis.LRange(ctx, logKey(jobID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read job log: %w", err)
	}

	entries := make([]model.StatusEntry, 0, len(raw))
	for _, r := range raw {
		var entry model.StatusEntry
		if err := json.Unmarshal([]byte(r), &entry); err != nil {
			return nil, fmt.Errorf("failed to unmarshal log entry: %w", err)
		}
		entries = append(entries, entry)
	}

	return &model.RenderLogResponse{JobID: jobID, Entries: entries}, nil
}

// GetResult returns the output of a completed render job
func (s *RenderService) GetResult(ctx context.Context, jobID, userID string) (*model.RenderResultResponse, error) {
	job, err := s.ownedJob(ctx, jobID, userID)
	if err != nil {
		return nil, err
	}

	if job.Status != model.JobStatusCompleted || job.OutputURLs == nil {
		return nil, ErrJobNotCompleted
	}

	result := &model.RenderResultResponse{
		JobID:      job.ID,
		ProjectID:  job.ProjectID,
		Format:     job.Format,
		Quality:    job.Quality,
		OutputURLs: *job.OutputURLs,
	}
	if job.CompletedAt != nil {
		result.CompletedAt = *job.CompletedAt
	}
	return result, nil
}

// UpdateJobStatus moves a job forward and appends the change to its log.
// Progress never decreases and terminal states are final. The row is
// updated optimistically under WATCH so concurrent writers cannot interleave.
func (s *RenderService) UpdateJobStatus(ctx context.Context, jobID string, update model.JobUpdate) error {
	key := jobKey(jobID)

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return ErrJobNotFound
			}
			return err
		}

		var job model.Job
		if err := json.Unmarshal(data, &job); err != nil {
			return fmt.Errorf("failed to unmarshal job: %w", err)
		}

		now := time.Now().UTC()
		if err := applyUpdate(&job, update, now); err != nil {
			return err
		}

		row, err := json.Marshal(&job)
		if err != nil {
			return fmt.Errorf("failed to marshal job: %w", err)
		}
		entry, err := json.Marshal(model.StatusEntry{
			Status:   job.Status,
			Progress: job.Progress,
			Message:  update.Message,
			At:       now,
		})
		if err != nil {
			return fmt.Errorf("failed to marshal log entry: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, row, jobTTL)
			pipe.RPush(ctx, logKey(jobID), entry)
			pipe.Expire(ctx, logKey(jobID), jobTTL)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < 5; attempt++ {
		err := s.redis.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("failed to update job %s: too much contention", jobID)
}

// applyUpdate folds one update into the job row
func applyUpdate(job *model.Job, update model.JobUpdate, now time.Time) error {
	if job.Status.IsTerminal() {
		return ErrJobFinished
	}
	if job.Status == model.JobStatusProcessing && update.Status == model.JobStatusQueued {
		return ErrInvalidTransition
	}

	job.Status = update.Status
	if update.Progress > job.Progress {
		job.Progress = update.Progress
	}
	if job.Progress > 100 {
		job.Progress = 100
	}
	if update.Message != "" {
		job.CurrentStep = update.Message
	}

	switch update.Status {
	case model.JobStatusProcessing:
		if job.StartedAt == nil {
			job.StartedAt = &now
		}
	case model.JobStatusCompleted:
		if update.OutputURLs == nil || update.OutputURLs.Primary == "" {
			return fmt.Errorf("%w: completed job needs an output url", ErrInvalidTransition)
		}
		job.Progress = 100
		job.OutputURLs = update.OutputURLs
		job.CompletedAt = &now
	case model.JobStatusFailed:
		msg := update.Error
		if msg == "" {
			msg = "render failed"
		}
		job.Error = &msg
		job.CompletedAt = &now
	}
	return nil
}

func (s *RenderService) createJob(ctx context.Context, job *model.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	entry, err := json.Marshal(model.StatusEntry{
		Status:  job.Status,
		Message: "Job queued",
		At:      job.CreatedAt,
	})
	if err != nil {
		return err
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, jobKey(job.ID), data, jobTTL)
		pipe.RPush(ctx, logKey(job.ID), entry)
		pipe.Expire(ctx, logKey(job.ID), jobTTL)
		return nil
	})
	return err
}

func (s *RenderService) getJob(ctx context.Context, jobID string) (*model.Job, error) {
	data, err := s.redis.Get(ctx, jobKey(jobID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}

	var job model.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, err
	}

	return &job, nil
}

// ownedJob hides other users' jobs behind ErrJobNotFound
func (s *RenderService) ownedJob(ctx context.Context, jobID, userID string) (*model.Job, error) {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.UserID != userID {
		return nil, ErrJobNotFound
	}
	return job, nil
}

func jobKey(jobID string) string { return fmt.Sprintf("job:%s", jobID) }

func logKey(jobID string) string { return fmt.Sprintf("job:%s:log", jobID) }

// RenderTaskPayload is the JSON body of a render:process task
type RenderTaskPayload struct {
	JobID   string          `json:"jobId"`
	Payload json.RawMessage `json:"payload"`
}

func newRenderTask(jobID string, payload []byte) (*asynq.Task, error) {
	data, err := json.Marshal(RenderTaskPayload{
		JobID:   jobID,
		Payload: payload,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeRender, data), nil
}
