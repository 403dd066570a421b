// Package mixer sums decoded tracks into a stereo master buffer under
// timeline automation and applies placement effects on top.
package mixer

import (
	"context"
	"fmt"
	"log"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/RefurbishedContent/mysounds-sub002/internal/audio"
	"github.com/RefurbishedContent/mysounds-sub002/internal/dsp"
	"github.com/RefurbishedContent/mysounds-sub002/internal/model"
	"github.com/RefurbishedContent/mysounds-sub002/internal/timeline"
)

// DefaultConcurrency bounds simultaneous track fetches when none is configured
const DefaultConcurrency = 4

// Fetcher retrieves the raw bytes behind a track URL
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// ProgressFunc receives mixer progress in [0, 80]
type ProgressFunc func(percent float64, message string)

// Result is the finished master buffer plus the tracks that contributed silence
type Result struct {
	Channels [][]float32
	Skipped  []string
}

// Mixer renders one project at a time; it holds no per-render state
type Mixer struct {
	fetcher     Fetcher
	concurrency int
}

// New creates a mixer that fetches sources through fetcher with at most
// concurrency requests in flight
func New(fetcher Fetcher, concurrency int) *Mixer {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Mixer{
		fetcher:     fetcher,
		concurrency: concurrency,
	}
}

// Mix renders tracks and placements into a stereo buffer of
// ceil(totalDuration*sampleRate) frames. A track that cannot be fetched or
// decoded is logged and skipped. Only context cancellation aborts the mix.
func (m *Mixer) Mix(ctx context.Context, tracks []model.Track, placements []model.Placement, totalDuration float64, sampleRate int, onProgress ProgressFunc) (*Result, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate: %d", sampleRate)
	}
	if onProgress == nil {
		onProgress = func(float64, string) {}
	}

	frames := int(math.Ceil(totalDuration * float64(sampleRate)))
	if frames < 0 {
		frames = 0
	}
	master := [][]float32{make([]float32, frames), make([]float32, frames)}

	decoded := m.decodeAll(ctx, tracks, sampleRate)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("mix cancelled: %w", err)
	}

	resolver := timeline.NewResolver(placements)
	result := &Result{Channels: master}

	for i, track := range tracks {
		onProgress(float64(i)/float64(len(tracks))*50, fmt.Sprintf("Mixing track %s", track.ID))

		pcm := decoded[i]
		if pcm == nil {
			result.Skipped = append(result.Skipped, track.ID)
			continue
		}
		addTrack(master, pcm, track, resolver, sampleRate)
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("mix cancelled: %w", err)
	}

	effects := resolver.Effects()
	next := 0
	for pi := range placements {
		onProgress(50+float64(pi)/float64(len(placements))*30, fmt.Sprintf("Applying placement %s", placements[pi].ID))

		for next < len(effects) && effects[next].PlacementIndex == pi {
			applyEffect(master, effects[next], sampleRate)
			next++
		}
	}

	onProgress(80, "Mix complete")
	return result, nil
}

// decodeAll fetches and decodes every track with bounded concurrency.
// Slots for failed tracks stay nil.
func (m *Mixer) decodeAll(ctx context.Context, tracks []model.Track, sampleRate int) []*audio.PCM {
	decoded := make([]*audio.PCM, len(tracks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency)

	for i, track := range tracks {
		g.Go(func() error {
			data, err := m.fetcher.Fetch(gctx, track.URL)
			if err != nil {
				log.Printf("Skipping track %s: %v", track.ID, err)
				return nil
			}

			pcm, err := audio.DecodeSource(data)
			if err != nil {
				log.Printf("Skipping track %s: failed to decode: %v", track.ID, err)
				return nil
			}
			if len(pcm.Channels) == 0 {
				log.Printf("Skipping track %s: no channels", track.ID)
				return nil
			}

			decoded[i] = pcm.ToRate(sampleRate)
			return nil
		})
	}

	// goroutines never return errors; per-track failures degrade to silence
	_ = g.Wait()
	return decoded
}

// addTrack sums one decoded source into the master buffer. Mono sources feed
// both channels; channels beyond the second are ignored.
func addTrack(master [][]float32, pcm *audio.PCM, track model.Track, resolver *timeline.Resolver, sampleRate int) {
	left := pcm.Channels[0]
	right := left
	if len(pcm.Channels) > 1 {
		right = pcm.Channels[1]
	}

	offset := int(math.Round(track.StartOffset * float64(sampleRate)))
	volume := float32(track.Volume)
	automated := resolver.HasAutomation(track.ID)
	rate := float64(sampleRate)

	for j := range left {
		pos := offset + j
		if pos < 0 {
			continue
		}
		if pos >= len(master[0]) {
			break
		}

		gain := volume
		if automated {
			gain *= float32(resolver.GainAt(track.ID, float64(pos)/rate))
		}

		master[0][pos] += left[j] * gain
		if j < len(right) {
			master[1][pos] += right[j] * gain
		}
	}
}

// applyEffect runs one filter or echo over its absolute window on both channels
func applyEffect(master [][]float32, e timeline.Effect, sampleRate int) {
	start := int(e.Start * float64(sampleRate))
	length := int((e.End - e.Start) * float64(sampleRate))

	switch e.Type {
	case model.TransitionFilter:
		b := dsp.NewBiquad(
			dsp.FilterType(e.Params.String("filterType", string(dsp.Lowpass))),
			e.Params.Float("frequency", dsp.DefaultCutoff),
			e.Params.Float("q", dsp.DefaultQ),
			sampleRate,
		)
		b.ProcessChannels(master, start, length)

	case model.TransitionEcho:
		delay := dsp.SecondsToSamples(e.Params.Float("delay", dsp.DefaultEchoDelay), sampleRate)
		feedback := float32(e.Params.Float("feedback", dsp.DefaultEchoFeedback))
		mix := float32(e.Params.Float("mix", dsp.DefaultEchoMix))
		dsp.EchoChannels(master, start, length, delay, feedback, mix)

	default:
		log.Printf("Ignoring unsupported transition type %q in placement %s", e.Type, e.PlacementID)
	}
}
