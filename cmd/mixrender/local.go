package main

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/RefurbishedContent/mysounds-sub002/internal/client"
	"github.com/RefurbishedContent/mysounds-sub002/internal/model"
)

// In-process collaborators for offline renders

const localUser = "local"

type staticProject struct {
	project *model.Project
}

func (s staticProject) ReadProject(context.Context, string, string) (*model.Project, error) {
	return s.project, nil
}

// unlimitedCredits grants every reservation
type unlimitedCredits struct{}

func (unlimitedCredits) ReserveCredits(context.Context, string, string, int) (bool, error) {
	return true, nil
}

func (unlimitedCredits) RefundCredits(context.Context, string, string) error {
	return nil
}

// localJob keeps the latest state of the one job a CLI run drives
type localJob struct {
	mu     sync.Mutex
	status model.JobStatus
	err    string
}

func (j *localJob) UpdateJobStatus(_ context.Context, _ string, update model.JobUpdate) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status = update.Status
	if update.Error != "" {
		j.err = update.Error
	}
	return nil
}

// State returns the last recorded status and error message
func (j *localJob) State() (model.JobStatus, string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status, j.err
}

// outputFile stores the rendered artifact as <name><ext> inside the local
// storage root, so --out controls the file name
type outputFile struct {
	storage *client.LocalStorage
	name    string
}

func newOutputFile(out string) (*outputFile, error) {
	abs, err := filepath.Abs(out)
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(abs)
	storage, err := client.NewLocalStorage(dir, "file://"+filepath.ToSlash(dir))
	if err != nil {
		return nil, err
	}
	base := filepath.Base(abs)
	return &outputFile{storage: storage, name: base[:len(base)-len(filepath.Ext(base))]}, nil
}

func (o *outputFile) UploadArtifact(ctx context.Context, data []byte, fileName, contentType string) (string, error) {
	return o.storage.UploadArtifact(ctx, data, o.name+filepath.Ext(fileName), contentType)
}
