package timeline

import (
	"math"
	"testing"

	"github.com/RefurbishedContent/mysounds-sub002/internal/model"
)

func crossfadePlacement(id string, start, duration float64, curve string) model.Placement {
	return model.Placement{
		ID:        id,
		StartTime: start,
		Duration:  duration,
		Transitions: []model.Transition{{
			Type:     model.TransitionCrossfade,
			Duration: duration,
			Params:   model.Params{"curve": curve},
		}},
	}
}

func assertGain(t *testing.T, r *Resolver, track string, at, expected float64) {
	t.Helper()
	if got := r.GainAt(track, at); math.Abs(got-expected) > 1e-9 {
		t.Errorf("GainAt(%s, %v) = %f, expected %f", track, at, got, expected)
	}
}

func TestGainAt_CrossfadeCompleteness(t *testing.T) {
	r := NewResolver([]model.Placement{crossfadePlacement("p1", 10, 4, "linear")})

	assertGain(t, r, model.RoleTrackA, 10, 1)
	assertGain(t, r, model.RoleTrackB, 10, 0)
	assertGain(t, r, model.RoleTrackA, 12, 0.5)
	assertGain(t, r, model.RoleTrackB, 12, 0.5)
	assertGain(t, r, model.RoleTrackA, 14, 0)
	assertGain(t, r, model.RoleTrackB, 14, 1)
}

func TestGainAt_OutsideWindow(t *testing.T) {
	r := NewResolver([]model.Placement{crossfadePlacement("p1", 10, 4, "linear")})

	assertGain(t, r, model.RoleTrackA, 9.99, 1)
	assertGain(t, r, model.RoleTrackB, 9.99, 1)
	assertGain(t, r, model.RoleTrackB, 14.01, 1)
}

func TestGainAt_OtherTracksUnaffected(t *testing.T) {
	r := NewResolver([]model.Placement{crossfadePlacement("p1", 0, 2, "linear")})
	assertGain(t, r, "vocals", 1, 1)
	if r.HasAutomation("vocals") {
		t.Error("expected no automation for non-role track")
	}
	if !r.HasAutomation(model.RoleTrackA) {
		t.Error("expected automation for trackA")
	}
}

func TestGainAt_Curves(t *testing.T) {
	r := NewResolver([]model.Placement{crossfadePlacement("p1", 0, 1, "exponential")})
	assertGain(t, r, model.RoleTrackB, 0.5, 0.25)
	assertGain(t, r, model.RoleTrackA, 0.5, 0.75)

	unknown := NewResolver([]model.Placement{crossfadePlacement("p1", 0, 1, "zigzag")})
	assertGain(t, unknown, model.RoleTrackB, 0.25, 0.25)
}

func TestGainAt_TransitionOffsetWithinPlacement(t *testing.T) {
	p := model.Placement{
		StartTime: 5,
		Transitions: []model.Transition{{
			Type:      model.TransitionCrossfade,
			StartTime: 1,
			Duration:  2,
		}},
	}
	r := NewResolver([]model.Placement{p})
	assertGain(t, r, model.RoleTrackB, 6, 0)
	assertGain(t, r, model.RoleTrackB, 7, 0.5)
}

func TestGainAt_LatestStartWins(t *testing.T) {
	// p2 starts later but is listed first; it must still win in the overlap
	r := NewResolver([]model.Placement{
		crossfadePlacement("p2", 2, 4, "linear"),
		crossfadePlacement("p1", 0, 4, "linear"),
	})

	// t=3: p1 progress 0.75, p2 progress 0.25
	assertGain(t, r, model.RoleTrackB, 3, 0.25)
	// t=1: only p1 covers
	assertGain(t, r, model.RoleTrackB, 1, 0.25)
}

func TestGainAt_TieGoesToLaterPlacement(t *testing.T) {
	r := NewResolver([]model.Placement{
		crossfadePlacement("p1", 0, 4, "linear"),
		crossfadePlacement("p2", 0, 4, "exponential"),
	})
	assertGain(t, r, model.RoleTrackB, 2, 0.25)

	swapped := NewResolver([]model.Placement{
		crossfadePlacement("p2", 0, 4, "exponential"),
		crossfadePlacement("p1", 0, 4, "linear"),
	})
	assertGain(t, swapped, model.RoleTrackB, 2, 0.5)
}

func TestGainAt_TieGoesToLaterTransition(t *testing.T) {
	p := model.Placement{
		Transitions: []model.Transition{
			{Type: model.TransitionCrossfade, Duration: 4, Params: model.Params{"curve": "exponential"}},
			{Type: model.TransitionCrossfade, Duration: 4, Params: model.Params{"curve": "logarithmic"}},
		},
	}
	r := NewResolver([]model.Placement{p})
	assertGain(t, r, model.RoleTrackB, 1, 0.5)
}

func TestNewResolver_IgnoresZeroDuration(t *testing.T) {
	p := model.Placement{
		Transitions: []model.Transition{
			{Type: model.TransitionCrossfade, Duration: 0},
			{Type: model.TransitionFilter, Duration: -1},
		},
	}
	r := NewResolver([]model.Placement{p})
	assertGain(t, r, model.RoleTrackA, 0, 1)
	if len(r.Effects()) != 0 {
		t.Errorf("expected no effects, got %d", len(r.Effects()))
	}
}

func TestEffects_Order(t *testing.T) {
	placements := []model.Placement{
		{
			ID:        "p1",
			StartTime: 0,
			Transitions: []model.Transition{
				{Type: model.TransitionEcho, StartTime: 1, Duration: 1},
				{Type: model.TransitionCrossfade, Duration: 2},
				{Type: model.TransitionFilter, StartTime: 0, Duration: 2},
			},
		},
		{
			ID:        "p2",
			StartTime: 10,
			Transitions: []model.Transition{
				{Type: model.TransitionFilter, StartTime: 0.5, Duration: 1},
			},
		},
	}

	r := NewResolver(placements)
	effects := r.Effects()
	if len(effects) != 3 {
		t.Fatalf("expected 3 effects, got %d", len(effects))
	}

	expected := []struct {
		placement string
		kind      model.TransitionType
		start     float64
	}{
		{"p1", model.TransitionEcho, 1},
		{"p1", model.TransitionFilter, 0},
		{"p2", model.TransitionFilter, 10.5},
	}
	for i, e := range expected {
		if effects[i].PlacementID != e.placement || effects[i].Type != e.kind || effects[i].Start != e.start {
			t.Errorf("effect %d: got %+v", i, effects[i])
		}
	}
}

func TestEffectsAt(t *testing.T) {
	r := NewResolver([]model.Placement{{
		Transitions: []model.Transition{
			{Type: model.TransitionFilter, StartTime: 0, Duration: 2},
			{Type: model.TransitionEcho, StartTime: 1, Duration: 2},
		},
	}})

	if got := len(r.EffectsAt(0.5)); got != 1 {
		t.Errorf("expected 1 active effect at 0.5, got %d", got)
	}
	if got := len(r.EffectsAt(1.5)); got != 2 {
		t.Errorf("expected 2 active effects at 1.5, got %d", got)
	}
	active := r.EffectsAt(2)
	if len(active) != 1 || active[0].Type != model.TransitionEcho {
		t.Errorf("expected only echo at 2 (filter window is half-open), got %+v", active)
	}
	if got := len(r.EffectsAt(3)); got != 0 {
		t.Errorf("expected no effects at 3, got %d", got)
	}
}
