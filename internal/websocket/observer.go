package websocket

import (
	"github.com/RefurbishedContent/mysounds-sub002/internal/model"
	"github.com/RefurbishedContent/mysounds-sub002/internal/render"
)

// ErrorCodeRenderFailed is sent to subscribers of a failed render
const ErrorCodeRenderFailed = "RENDER_FAILED"

// JobObserver forwards render progress of one job to its subscribers.
// Completion is broadcast by the caller once the output URLs are known.
type JobObserver struct {
	hub   *Hub
	jobID string
}

// Observer returns a render observer bound to jobID
func (h *Hub) Observer(jobID string) *JobObserver {
	return &JobObserver{hub: h, jobID: jobID}
}

func (o *JobObserver) OnProgress(p render.Progress) {
	switch p.Stage {
	case render.StageCompleted:
		return
	case render.StageFailed:
		o.hub.BroadcastError(o.jobID, ErrorCodeRenderFailed, p.Message)
	default:
		o.hub.BroadcastProgress(o.jobID, p.Percent, model.JobStatusProcessing, string(p.Stage), p.Message)
	}
}
