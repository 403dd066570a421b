package render

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/RefurbishedContent/mysounds-sub002/internal/audio"
	"github.com/RefurbishedContent/mysounds-sub002/internal/mixer"
	"github.com/RefurbishedContent/mysounds-sub002/internal/model"
)

type fakeProjects struct {
	project *model.Project
	err     error
}

func (f *fakeProjects) ReadProject(ctx context.Context, projectID, userID string) (*model.Project, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.project, nil
}

type fakeLedger struct {
	mu       sync.Mutex
	balance  int
	reserved map[string]int
	refunds  int
}

func newFakeLedger(balance int) *fakeLedger {
	return &fakeLedger{balance: balance, reserved: make(map[string]int)}
}

func (f *fakeLedger) ReserveCredits(_ context.Context, userID, jobID string, amount int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.reserved[jobID]; ok {
		return true, nil
	}
	if f.balance < amount {
		return false, nil
	}
	f.balance -= amount
	f.reserved[jobID] = amount
	return true, nil
}

func (f *fakeLedger) RefundCredits(_ context.Context, userID, jobID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refunds++
	if amount, ok := f.reserved[jobID]; ok {
		f.balance += amount
		delete(f.reserved, jobID)
	}
	return nil
}

// fakeJobs rejects writes on a cancelled context, like a real store would
type fakeJobs struct {
	mu      sync.Mutex
	updates []model.JobUpdate
}

func (f *fakeJobs) UpdateJobStatus(ctx context.Context, jobID string, update model.JobUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, update)
	return nil
}

func (f *fakeJobs) last() model.JobUpdate {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.updates[len(f.updates)-1]
}

func (f *fakeJobs) count(status model.JobStatus) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, u := range f.updates {
		if u.Status == status {
			n++
		}
	}
	return n
}

type fakeArtifacts struct {
	mu      sync.Mutex
	objects map[string][]byte
	err     error
}

func (f *fakeArtifacts) UploadArtifact(_ context.Context, data []byte, fileName, contentType string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.objects == nil {
		f.objects = make(map[string][]byte)
	}
	f.objects[fileName] = data
	return "https://cdn.test/" + fileName, nil
}

type fakeActivity struct {
	mu     sync.Mutex
	events []string
	err    error
}

func (f *fakeActivity) LogActivity(_ context.Context, userID, eventType string, eventData map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, eventType)
	return f.err
}

type fakeTranscoder struct {
	calls   int
	bitrate int
	err     error
}

func (f *fakeTranscoder) Transcode(_ context.Context, sourceURL string, format model.Format, bitrate int, outputKey string) (string, error) {
	f.calls++
	f.bitrate = bitrate
	if f.err != nil {
		return "", f.err
	}
	return "https://cdn.test/" + outputKey, nil
}

type fakeFetcher struct {
	sources map[string][]byte
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	data, ok := f.sources[url]
	if !ok {
		return nil, fmt.Errorf("fetch %s: %w", url, errors.New("404 not found"))
	}
	return data, nil
}

type harness struct {
	projects   *fakeProjects
	ledger     *fakeLedger
	jobs       *fakeJobs
	artifacts  *fakeArtifacts
	activity   *fakeActivity
	transcoder *fakeTranscoder
	fetcher    *fakeFetcher
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	tone := make([]float32, 4410)
	for i := range tone {
		tone[i] = 0.25
	}
	src, err := audio.EncodeWAV([][]float32{tone, tone}, 44100, 16)
	if err != nil {
		t.Fatalf("failed to encode fixture: %v", err)
	}

	return &harness{
		projects: &fakeProjects{project: &model.Project{
			ID: "project-1",
			Tracks: []model.Track{
				{ID: model.RoleTrackA, URL: "a.wav", Volume: 1, Analysis: &model.TrackAnalysis{Duration: 0.1}},
				{ID: model.RoleTrackB, URL: "b.wav", Volume: 0.5, Analysis: &model.TrackAnalysis{Duration: 0.1}},
			},
			Placements: []model.Placement{{
				ID:       "p1",
				Duration: 0.1,
				Transitions: []model.Transition{
					{Type: model.TransitionCrossfade, Duration: 0.1},
					{Type: model.TransitionFilter, Duration: 0.05, Params: model.Params{"frequency": 2000.0}},
				},
			}},
		}},
		ledger:     newFakeLedger(10),
		jobs:       &fakeJobs{},
		artifacts:  &fakeArtifacts{},
		activity:   &fakeActivity{},
		transcoder: &fakeTranscoder{},
		fetcher:    &fakeFetcher{sources: map[string][]byte{"a.wav": src, "b.wav": src}},
	}
}

func (h *harness) controller(withTranscoder bool) *Controller {
	deps := Dependencies{
		Projects:  h.projects,
		Credits:   h.ledger,
		Jobs:      h.jobs,
		Artifacts: h.artifacts,
		Activity:  h.activity,
		Mixer:     mixer.New(h.fetcher, 2),
	}
	if withTranscoder {
		deps.Transcoder = h.transcoder
	}
	return NewController(deps)
}

func request(format model.Format, quality model.Quality) model.RenderRequest {
	return model.RenderRequest{
		JobID:     "job-1",
		ProjectID: "project-1",
		UserID:    "user-1",
		Format:    format,
		Quality:   quality,
	}
}
