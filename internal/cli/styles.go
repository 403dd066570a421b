// Package cli renders the terminal output of the offline mixrender tool
package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/RefurbishedContent/mysounds-sub002/internal/model"
	"github.com/RefurbishedContent/mysounds-sub002/internal/render"
)

// Color palette
var (
	primaryColor = lipgloss.Color("#7D56F4")
	successColor = lipgloss.Color("#00AA00")
	errorColor   = lipgloss.Color("#D70000")
	mutedColor   = lipgloss.Color("#888888")
	textColor    = lipgloss.Color("#FFFFFF")
)

// Styles
var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			MarginBottom(1)

	ErrorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(errorColor)

	SuccessStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(successColor)

	KeyStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	ValueStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(textColor)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(mutedColor).
			Padding(0, 1)
)

// PrintVersion prints version information
func PrintVersion(version string) {
	fmt.Println(TitleStyle.Render("mixrender"))
	fmt.Printf("%s %s\n", KeyStyle.Render("Version:"), ValueStyle.Render(version))
	fmt.Println()
}

// PrintError prints an error message
func PrintError(message string) {
	fmt.Fprintf(os.Stderr, "%s %s\n", ErrorStyle.Render("Error:"), message)
}

// Summary describes a finished render for the closing report
type Summary struct {
	Project  string
	Quality  model.Quality
	Format   model.Format
	Config   model.RenderConfig
	Duration float64
	Elapsed  time.Duration
	URLs     model.OutputURLs
}

// RenderSummary formats the completion report
func RenderSummary(s Summary) string {
	var b strings.Builder

	b.WriteString(SuccessStyle.Render("✓ Render complete"))
	b.WriteString("\n\n")

	rows := [][2]string{
		{"Project", s.Project},
		{"Quality", string(s.Quality)},
		{"Format", string(s.Format)},
		{"Sample rate", fmt.Sprintf("%d Hz / %d-bit", s.Config.SampleRate, s.Config.BitDepth)},
		{"Duration", fmt.Sprintf("%.1fs", s.Duration)},
		{"Elapsed", s.Elapsed.Round(time.Millisecond).String()},
		{"Output", s.URLs.Primary},
	}
	if s.URLs.Secondary != "" {
		rows = append(rows, [2]string{"Lossless", s.URLs.Secondary})
	}

	for _, row := range rows {
		b.WriteString(KeyStyle.Render(fmt.Sprintf("%-12s", row[0]+":")))
		b.WriteString(" ")
		b.WriteString(ValueStyle.Render(row[1]))
		b.WriteString("\n")
	}

	return boxStyle.Render(strings.TrimRight(b.String(), "\n"))
}

// RenderPresets formats the quality preset table
func RenderPresets(rows []render.PresetRow) string {
	var b strings.Builder

	b.WriteString(TitleStyle.Render("Quality presets"))
	b.WriteString("\n")
	b.WriteString(KeyStyle.Render(fmt.Sprintf("%-10s %8s %6s %9s %10s %8s", "QUALITY", "RATE", "BITS", "BITRATE", "NORMALIZE", "CREDITS")))
	b.WriteString("\n")

	for _, row := range rows {
		bitrate := "-"
		if row.Config.Bitrate != nil {
			bitrate = fmt.Sprintf("%dk", *row.Config.Bitrate)
		}
		normalize := "no"
		if row.Config.Normalize {
			normalize = "yes"
		}
		b.WriteString(fmt.Sprintf("%-10s %8d %6d %9s %10s %8d\n",
			row.Quality, row.Config.SampleRate, row.Config.BitDepth, bitrate, normalize, row.Credits))
	}

	return b.String()
}
