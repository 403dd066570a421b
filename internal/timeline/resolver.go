// Package timeline resolves placement schedules into per-track gain
// automation and the set of DSP effects active at a point in time.
package timeline

import (
	"sort"

	"github.com/RefurbishedContent/mysounds-sub002/internal/dsp"
	"github.com/RefurbishedContent/mysounds-sub002/internal/model"
)

// Effect is a non-crossfade transition resolved onto the master timeline
type Effect struct {
	PlacementIndex  int
	TransitionIndex int
	PlacementID     string
	Type            model.TransitionType
	Start           float64
	End             float64
	Params          model.Params
}

type crossfade struct {
	start          float64
	end            float64
	curve          dsp.Curve
	placementIndex int
	transitionIdx  int
}

// Resolver answers automation queries for one immutable placement schedule.
//
// When several crossfades cover the same instant, the one with the latest
// absolute start wins. Ties go to the later placement, then to the later
// transition within that placement.
type Resolver struct {
	crossfades []crossfade // highest precedence first
	effects    []Effect    // placement order, then transition order
}

// NewResolver indexes the placements. Transitions with a non-positive
// duration are ignored.
func NewResolver(placements []model.Placement) *Resolver {
	r := &Resolver{}

	for pi, p := range placements {
		for ti, t := range p.Transitions {
			if t.Duration <= 0 {
				continue
			}
			start, end := p.AbsoluteWindow(t)

			if t.Type == model.TransitionCrossfade {
				r.crossfades = append(r.crossfades, crossfade{
					start:          start,
					end:            end,
					curve:          dsp.Curve(t.Params.String("curve", string(dsp.CurveLinear))),
					placementIndex: pi,
					transitionIdx:  ti,
				})
				continue
			}

			r.effects = append(r.effects, Effect{
				PlacementIndex:  pi,
				TransitionIndex: ti,
				PlacementID:     p.ID,
				Type:            t.Type,
				Start:           start,
				End:             end,
				Params:          t.Params,
			})
		}
	}

	sort.SliceStable(r.crossfades, func(i, j int) bool {
		a, b := r.crossfades[i], r.crossfades[j]
		if a.start != b.start {
			return a.start > b.start
		}
		if a.placementIndex != b.placementIndex {
			return a.placementIndex > b.placementIndex
		}
		return a.transitionIdx > b.transitionIdx
	})

	return r
}

// GainAt returns the automation gain for a track at master time t.
// Only trackA (outgoing) and trackB (incoming) follow crossfades; every
// other track stays at 1. A crossfade window includes its end instant.
func (r *Resolver) GainAt(trackID string, t float64) float64 {
	if trackID != model.RoleTrackA && trackID != model.RoleTrackB {
		return 1
	}

	for _, cf := range r.crossfades {
		if t < cf.start || t > cf.end {
			continue
		}
		warped := dsp.Warp((t-cf.start)/(cf.end-cf.start), cf.curve)
		if trackID == model.RoleTrackA {
			return 1 - warped
		}
		return warped
	}
	return 1
}

// HasAutomation reports whether any crossfade could affect the track
func (r *Resolver) HasAutomation(trackID string) bool {
	if trackID != model.RoleTrackA && trackID != model.RoleTrackB {
		return false
	}
	return len(r.crossfades) > 0
}

// EffectsAt returns the non-crossfade effects whose window [Start, End)
// contains t, in application order
func (r *Resolver) EffectsAt(t float64) []Effect {
	var active []Effect
	for _, e := range r.effects {
		if t >= e.Start && t < e.End {
			active = append(active, e)
		}
	}
	return active
}

// Effects returns every non-crossfade effect in application order
func (r *Resolver) Effects() []Effect {
	return r.effects
}
