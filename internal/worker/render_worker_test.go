package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hibiken/asynq"

	"github.com/RefurbishedContent/mysounds-sub002/internal/audio"
	"github.com/RefurbishedContent/mysounds-sub002/internal/mixer"
	"github.com/RefurbishedContent/mysounds-sub002/internal/model"
	"github.com/RefurbishedContent/mysounds-sub002/internal/render"
	"github.com/RefurbishedContent/mysounds-sub002/internal/service"
	"github.com/RefurbishedContent/mysounds-sub002/internal/websocket"
)

type memJobs struct {
	mu   sync.Mutex
	jobs map[string]*model.Job
}

func (m *memJobs) GetJob(_ context.Context, jobID string) (*model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return nil, service.ErrJobNotFound
	}
	copied := *job
	return &copied, nil
}

func (m *memJobs) UpdateJobStatus(_ context.Context, jobID string, update model.JobUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return service.ErrJobNotFound
	}
	if job.Status.IsTerminal() {
		return service.ErrJobFinished
	}
	job.Status = update.Status
	if update.Progress > job.Progress {
		job.Progress = update.Progress
	}
	if update.Error != "" {
		msg := update.Error
		job.Error = &msg
	}
	job.OutputURLs = update.OutputURLs
	return nil
}

type memProjects struct{ project *model.Project }

func (m memProjects) ReadProject(context.Context, string, string) (*model.Project, error) {
	return m.project, nil
}

type memLedger struct {
	balance  int
	reserved int
}

func (m *memLedger) ReserveCredits(_ context.Context, _, _ string, amount int) (bool, error) {
	if m.balance < amount {
		return false, nil
	}
	m.balance -= amount
	m.reserved += amount
	return true, nil
}

func (m *memLedger) RefundCredits(context.Context, string, string) error {
	m.balance += m.reserved
	m.reserved = 0
	return nil
}

type memArtifacts struct{}

func (memArtifacts) UploadArtifact(_ context.Context, _ []byte, fileName, _ string) (string, error) {
	return "https://cdn.test/" + fileName, nil
}

type wavFetcher struct{ data []byte }

func (f wavFetcher) Fetch(context.Context, string) ([]byte, error) { return f.data, nil }

type fixture struct {
	jobs   *memJobs
	ledger *memLedger
	worker *RenderWorker
}

func newFixture(t *testing.T, balance int, hub *websocket.Hub) *fixture {
	t.Helper()

	tone := make([]float32, 4410)
	for i := range tone {
		tone[i] = 0.25
	}
	wav, err := audio.EncodeWAV([][]float32{tone, tone}, 44100, 16)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	project := &model.Project{
		ID: "project-1",
		Tracks: []model.Track{
			{ID: model.RoleTrackA, URL: "a.wav", Volume: 1, Analysis: &model.TrackAnalysis{Duration: 0.1}},
		},
	}

	f := &fixture{
		jobs:   &memJobs{jobs: make(map[string]*model.Job)},
		ledger: &memLedger{balance: balance},
	}
	controller := render.NewController(render.Dependencies{
		Projects:  memProjects{project: project},
		Credits:   f.ledger,
		Jobs:      f.jobs,
		Artifacts: memArtifacts{},
		Mixer:     mixer.New(wavFetcher{data: wav}, 2),
	})
	f.worker = NewRenderWorker(f.jobs, controller, hub, time.Minute)
	return f
}

func (f *fixture) queue(t *testing.T, jobID string, quality model.Quality) *asynq.Task {
	t.Helper()
	f.jobs.jobs[jobID] = &model.Job{ID: jobID, UserID: "user-1", ProjectID: "project-1", Status: model.JobStatusQueued}

	payload, _ := json.Marshal(model.RenderJobPayload{
		ProjectID: "project-1",
		UserID:    "user-1",
		Format:    model.FormatWAV,
		Quality:   quality,
	})
	data, _ := json.Marshal(service.RenderTaskPayload{JobID: jobID, Payload: payload})
	return asynq.NewTask(service.TaskTypeRender, data)
}

func TestProcessTask_Completes(t *testing.T) {
	f := newFixture(t, 10, nil)

	if err := f.worker.ProcessTask(context.Background(), f.queue(t, "job-1", model.QualityDraft)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	job, _ := f.jobs.GetJob(context.Background(), "job-1")
	if job.Status != model.JobStatusCompleted {
		t.Fatalf("expected completed, got %s", job.Status)
	}
	if job.OutputURLs == nil || job.OutputURLs.Primary != "https://cdn.test/renders/project-1/job-1.wav" {
		t.Errorf("unexpected output urls %+v", job.OutputURLs)
	}
	if f.ledger.balance != 9 {
		t.Errorf("expected one credit consumed, balance %d", f.ledger.balance)
	}
}

func TestProcessTask_InsufficientCreditsSkipsRetry(t *testing.T) {
	f := newFixture(t, 0, nil)

	err := f.worker.ProcessTask(context.Background(), f.queue(t, "job-2", model.QualityHigh))
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry, got %v", err)
	}

	job, _ := f.jobs.GetJob(context.Background(), "job-2")
	if job.Status != model.JobStatusFailed || job.Error == nil {
		t.Errorf("expected failed job with error, got %+v", job)
	}
}

func TestProcessTask_InvalidPayload(t *testing.T) {
	f := newFixture(t, 10, nil)
	f.jobs.jobs["job-3"] = &model.Job{ID: "job-3", Status: model.JobStatusQueued}

	data, _ := json.Marshal(map[string]any{"jobId": "job-3", "payload": "not an object"})
	err := f.worker.ProcessTask(context.Background(), asynq.NewTask(service.TaskTypeRender, data))
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry, got %v", err)
	}

	job, _ := f.jobs.GetJob(context.Background(), "job-3")
	if job.Status != model.JobStatusFailed {
		t.Errorf("expected failed job, got %s", job.Status)
	}

	if err := f.worker.ProcessTask(context.Background(), asynq.NewTask(service.TaskTypeRender, []byte("{"))); !errors.Is(err, asynq.SkipRetry) {
		t.Errorf("expected SkipRetry for broken task, got %v", err)
	}
}

func TestProcessTask_SkipsFinishedJob(t *testing.T) {
	f := newFixture(t, 10, nil)
	task := f.queue(t, "job-4", model.QualityDraft)
	f.jobs.jobs["job-4"].Status = model.JobStatusCompleted

	if err := f.worker.ProcessTask(context.Background(), task); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.ledger.balance != 10 {
		t.Errorf("expected no credits consumed, balance %d", f.ledger.balance)
	}
}

func TestProcessTask_BroadcastsToSubscribers(t *testing.T) {
	hub := websocket.NewHub()
	go hub.Run()

	sub := &websocket.Subscriber{JobID: "job-5", Send: make(chan []byte, 64)}
	hub.Register(sub)

	f := newFixture(t, 10, hub)
	if err := f.worker.ProcessTask(context.Background(), f.queue(t, "job-5", model.QualityDraft)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case data := <-sub.Send:
			var msg model.WSMessage
			json.Unmarshal(data, &msg)
			if msg.Type == model.WSMessageTypeComplete {
				return
			}
		case <-deadline:
			t.Fatal("no completion message received")
		}
	}
}
