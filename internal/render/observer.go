package render

// Stage names a checkpoint of the render pipeline
type Stage string

const (
	StageCredits     Stage = "credits"
	StageProject     Stage = "project"
	StageTracks      Stage = "tracks"
	StageConfig      Stage = "config"
	StageMix         Stage = "mix"
	StagePostprocess Stage = "postprocess"
	StageEncode      Stage = "encode"
	StageUpload      Stage = "upload"
	StageCompleted   Stage = "completed"
	StageFailed      Stage = "failed"
)

// Progress is one ordered progress event of a render
type Progress struct {
	Stage   Stage
	Percent int
	Message string
}

// Observer receives progress events in order from the goroutine running the render
type Observer interface {
	OnProgress(p Progress)
}

// ObserverFunc adapts a function to Observer
type ObserverFunc func(p Progress)

func (f ObserverFunc) OnProgress(p Progress) { f(p) }

// ChannelObserver publishes progress events on a channel. Sends block once
// the buffer is full, so a reader must drain Events until Close.
type ChannelObserver struct {
	events chan Progress
}

// NewChannelObserver creates a channel observer with the given buffer size
func NewChannelObserver(buffer int) *ChannelObserver {
	return &ChannelObserver{events: make(chan Progress, buffer)}
}

func (o *ChannelObserver) OnProgress(p Progress) {
	o.events <- p
}

// Events returns the receive side of the channel
func (o *ChannelObserver) Events() <-chan Progress {
	return o.events
}

// Close ends the event stream; call it after the render returns
func (o *ChannelObserver) Close() {
	close(o.events)
}

type nopObserver struct{}

func (nopObserver) OnProgress(Progress) {}
