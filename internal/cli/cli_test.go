package cli

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/RefurbishedContent/mysounds-sub002/internal/model"
	"github.com/RefurbishedContent/mysounds-sub002/internal/render"
)

func TestModel_ProgressNeverDecreases(t *testing.T) {
	events := make(chan render.Progress)
	m := NewModel("test", events, nil)

	updated, cmd := m.Update(ProgressMsg{Stage: render.StageMix, Percent: 55, Message: "Mixing"})
	if cmd == nil {
		t.Fatal("expected a command to wait for the next event")
	}
	m = updated.(Model)

	updated, _ = m.Update(ProgressMsg{Stage: render.StageMix, Percent: 40, Message: "Late"})
	m = updated.(Model)

	if m.Percent != 55 {
		t.Errorf("expected percent 55, got %d", m.Percent)
	}
	if m.Message != "Late" {
		t.Errorf("expected message to update, got %q", m.Message)
	}
}

func TestModel_DoneQuits(t *testing.T) {
	m := NewModel("test", make(chan render.Progress), nil)

	updated, cmd := m.Update(DoneMsg{URLs: &model.OutputURLs{Primary: "file:///tmp/mix.wav"}})
	m = updated.(Model)

	if !m.Done || m.Percent != 100 {
		t.Errorf("expected done at 100%%, got done=%v percent=%d", m.Done, m.Percent)
	}
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
	if !strings.Contains(m.View(), "Render completed") {
		t.Errorf("expected completion in view, got %q", m.View())
	}
}

func TestModel_DoneWithError(t *testing.T) {
	m := NewModel("test", make(chan render.Progress), nil)

	updated, _ := m.Update(ProgressMsg{Stage: render.StageProject, Percent: 10})
	updated, _ = updated.(Model).Update(DoneMsg{Err: errors.New("insufficient credits")})
	m = updated.(Model)

	if m.Percent != 10 {
		t.Errorf("expected progress to stay at 10, got %d", m.Percent)
	}
	if !strings.Contains(m.View(), "insufficient credits") {
		t.Errorf("expected error in view, got %q", m.View())
	}
}

func TestModel_QuitCancelsRender(t *testing.T) {
	cancelled := false
	m := NewModel("test", make(chan render.Progress), func() { cancelled = true })

	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	m = updated.(Model)

	if !cancelled || !m.Cancelled {
		t.Error("expected quit to cancel the render")
	}
	if cmd == nil {
		t.Fatal("expected quit command")
	}
}

func TestWaitForProgress_ClosedChannel(t *testing.T) {
	events := make(chan render.Progress, 1)
	events <- render.Progress{Stage: render.StageEncode, Percent: 90}
	close(events)

	cmd := waitForProgress(events)
	if msg, ok := cmd().(ProgressMsg); !ok || msg.Percent != 90 {
		t.Fatalf("expected progress message, got %#v", msg)
	}
	if _, ok := cmd().(eventsClosedMsg); !ok {
		t.Fatal("expected eventsClosedMsg after close")
	}
}

func TestRenderProgressBar(t *testing.T) {
	tests := []struct {
		percent int
		filled  int
	}{
		{0, 0},
		{50, 20},
		{100, 40},
		{150, 40},
		{-5, 0},
	}

	for _, tt := range tests {
		bar := renderProgressBar(tt.percent, 40)
		if got := strings.Count(bar, "█"); got != tt.filled {
			t.Errorf("percent %d: expected %d filled cells, got %d", tt.percent, tt.filled, got)
		}
		if got := strings.Count(bar, "█") + strings.Count(bar, "░"); got != 40 {
			t.Errorf("percent %d: expected width 40, got %d", tt.percent, got)
		}
	}
}

func TestPrintPlain(t *testing.T) {
	events := make(chan render.Progress, 2)
	events <- render.Progress{Stage: render.StageMix, Percent: 30, Message: "Mixing tracks"}
	events <- render.Progress{Stage: render.StageCompleted, Percent: 100, Message: "Render completed"}
	close(events)

	var buf bytes.Buffer
	PrintPlain(&buf, events)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], "30%") || !strings.Contains(lines[0], "Mixing tracks") {
		t.Errorf("unexpected first line %q", lines[0])
	}
}

func TestRenderPresets(t *testing.T) {
	out := RenderPresets(render.Presets())
	for _, q := range model.ValidQualities {
		if !strings.Contains(out, string(q)) {
			t.Errorf("expected preset %s in table", q)
		}
	}
	if !strings.Contains(out, "320k") {
		t.Error("expected lossy bitrate in table")
	}
}

func TestRenderSummary(t *testing.T) {
	out := RenderSummary(Summary{
		Project: "demo",
		Quality: model.QualityHigh,
		Format:  model.FormatWAV,
		Config:  model.RenderConfig{SampleRate: 48000, BitDepth: 24},
		URLs:    model.OutputURLs{Primary: "file:///tmp/mix.wav"},
	})

	for _, want := range []string{"demo", "48000 Hz / 24-bit", "file:///tmp/mix.wav"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in summary", want)
		}
	}
	if strings.Contains(out, "Lossless:") {
		t.Error("expected no lossless row without a secondary URL")
	}
}
