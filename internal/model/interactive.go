package model

// PlayerTrack is the interactive engine's view of a track. It carries mixer
// state the offline renderer ignores (pan, mute, solo).
type PlayerTrack struct {
	ID          string         `json:"id"`
	URL         string         `json:"url"`
	StartOffset float64        `json:"startOffset"`
	Volume      float64        `json:"volume"`
	Pan         float64        `json:"pan"`
	Muted       bool           `json:"muted"`
	Solo        bool           `json:"solo"`
	Analysis    *TrackAnalysis `json:"analysis,omitempty"`
}

// CuePoint marks a position on a track the player can jump to
type CuePoint struct {
	ID      string  `json:"id"`
	TrackID string  `json:"trackId"`
	Time    float64 `json:"time"`
	Label   string  `json:"label,omitempty"`
	Color   string  `json:"color,omitempty"`
}

// TransportState is published by the interactive engine on every transport change
type TransportState struct {
	Playing    bool    `json:"playing"`
	Position   float64 `json:"position"`
	Duration   float64 `json:"duration"`
	Tempo      float64 `json:"tempo,omitempty"`
	Looping    bool    `json:"looping"`
	LoopStart  float64 `json:"loopStart,omitempty"`
	LoopEnd    float64 `json:"loopEnd,omitempty"`
	MasterGain float64 `json:"masterGain"`
}

// ToPlayerTrack converts an offline track into the player's shape
func ToPlayerTrack(t Track) PlayerTrack {
	return PlayerTrack{
		ID:          t.ID,
		URL:         t.URL,
		StartOffset: t.StartOffset,
		Volume:      t.Volume,
		Analysis:    t.Analysis,
	}
}

// FromPlayerTrack converts a player track back to the offline model.
// Pan, mute and solo have no offline equivalent and are dropped.
func FromPlayerTrack(p PlayerTrack) Track {
	return Track{
		ID:          p.ID,
		URL:         p.URL,
		StartOffset: p.StartOffset,
		Volume:      p.Volume,
		Analysis:    p.Analysis,
	}
}
