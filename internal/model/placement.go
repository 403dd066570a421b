package model

import (
	"encoding/json"
	"strconv"
)

// Region is a {start, end} span in a track's own local time
type Region struct {
	Start float64 `json:"start" yaml:"start"`
	End   float64 `json:"end" yaml:"end"`
}

// Params is a free-form parameter bag decoded from JSON or YAML
type Params map[string]any

// Float returns the numeric value stored under key, or def when it is
// missing or not a number
func (p Params) Float(key string, def float64) float64 {
	v, ok := p[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case json.Number:
		if f, err := n.Float64(); err == nil {
			return f
		}
	case string:
		if f, err := strconv.ParseFloat(n, 64); err == nil {
			return f
		}
	}
	return def
}

// String returns the string stored under key, or def
func (p Params) String(key, def string) string {
	if s, ok := p[key].(string); ok && s != "" {
		return s
	}
	return def
}

// Transition is one typed effect inside a placement. StartTime is relative
// to the placement's start.
type Transition struct {
	Type      TransitionType `json:"type" yaml:"type" validate:"required"`
	StartTime float64        `json:"startTime" yaml:"startTime"`
	Duration  float64        `json:"duration" yaml:"duration" validate:"gte=0"`
	Params    Params         `json:"params,omitempty" yaml:"params,omitempty"`
}

// Placement is a scheduled transition/effect event on the master timeline
type Placement struct {
	ID           string       `json:"id" yaml:"id" validate:"required"`
	TemplateID   string       `json:"templateId" yaml:"templateId"`
	StartTime    float64      `json:"startTime" yaml:"startTime"`
	Duration     float64      `json:"duration" yaml:"duration" validate:"gte=0"`
	TrackARegion Region       `json:"trackARegion" yaml:"trackARegion"`
	TrackBRegion Region       `json:"trackBRegion" yaml:"trackBRegion"`
	Params       Params       `json:"params,omitempty" yaml:"params,omitempty"`
	Transitions  []Transition `json:"transitions" yaml:"transitions" validate:"dive"`
}

// AbsoluteWindow returns the master-timeline start and end of a transition
func (p Placement) AbsoluteWindow(t Transition) (float64, float64) {
	start := p.StartTime + t.StartTime
	return start, start + t.Duration
}
