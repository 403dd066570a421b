package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/RefurbishedContent/mysounds-sub002/internal/cli"
	"github.com/RefurbishedContent/mysounds-sub002/internal/client"
	"github.com/RefurbishedContent/mysounds-sub002/internal/mixer"
	"github.com/RefurbishedContent/mysounds-sub002/internal/model"
	"github.com/RefurbishedContent/mysounds-sub002/internal/render"
)

var (
	version = "0.1.0"
)

// CLI defines the command-line interface
type CLI struct {
	Version kong.VersionFlag `short:"v" help:"Show version information"`

	Render  RenderCmd  `cmd:"" help:"Render a project file to a WAV"`
	Presets PresetsCmd `cmd:"" help:"List the quality presets"`
}

// RenderCmd renders one project snapshot from local or remote sources
type RenderCmd struct {
	Project     string        `arg:"" type:"existingfile" help:"Project snapshot (YAML or JSON)"`
	Quality     string        `short:"q" enum:"draft,standard,high,lossless" default:"standard" help:"Quality preset (${enum})"`
	Format      string        `short:"f" enum:"wav,mp3,flac" default:"wav" help:"Requested format; lossy formats fall back to WAV without a transcoder"`
	Out         string        `short:"o" type:"path" help:"Output file (default: project name with .wav)"`
	FadeIn      float64       `help:"Fade-in in seconds, overrides the preset"`
	FadeOut     float64       `help:"Fade-out in seconds, overrides the preset"`
	Concurrency int           `default:"4" help:"Track sources fetched in parallel"`
	Timeout     time.Duration `default:"30m" help:"Abort the render after this long"`
	Remote      bool          `default:"true" negatable:"" help:"Allow http(s) track sources"`
	Plain       bool          `help:"Print progress lines instead of the interactive view"`
}

// PresetsCmd prints the quality table
type PresetsCmd struct {
	JSON bool `help:"Print as JSON"`
}

func main() {
	cliArgs := &CLI{}
	ctx := kong.Parse(cliArgs,
		kong.Name("mixrender"),
		kong.Description("Offline multi-track render of a project snapshot"),
		kong.UsageOnError(),
		kong.Vars{
			"version": version,
		},
	)

	if err := ctx.Run(); err != nil {
		cli.PrintError(err.Error())
		os.Exit(1)
	}
}

// Run prints the preset table
func (c *PresetsCmd) Run() error {
	return c.run(os.Stdout)
}

func (c *PresetsCmd) run(w io.Writer) error {
	rows := render.Presets()
	if c.JSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}
	_, err := fmt.Fprint(w, cli.RenderPresets(rows))
	return err
}

// Run renders the project
func (c *RenderCmd) Run() error {
	return c.run(os.Stdout)
}

func (c *RenderCmd) run(w io.Writer) error {
	project, err := LoadProject(c.Project)
	if err != nil {
		return err
	}

	quality := model.Quality(c.Quality)
	cfg, err := render.ConfigFor(quality)
	if err != nil {
		return err
	}

	out := c.Out
	if out == "" {
		out = strings.TrimSuffix(c.Project, filepath.Ext(c.Project)) + ".wav"
	}
	artifacts, err := newOutputFile(out)
	if err != nil {
		return fmt.Errorf("failed to prepare output: %w", err)
	}

	projectDir, err := filepath.Abs(filepath.Dir(c.Project))
	if err != nil {
		return err
	}
	fetcher := client.SourceFetcher{Files: client.FileFetcher{BaseDir: projectDir}}
	if c.Remote {
		fetcher.HTTP = client.NewHTTPFetcher(c.Timeout)
	}

	job := &localJob{status: model.JobStatusQueued}
	controller := render.NewController(render.Dependencies{
		Projects:  staticProject{project: project},
		Credits:   unlimitedCredits{},
		Jobs:      job,
		Artifacts: artifacts,
		Mixer:     mixer.New(fetcher, c.Concurrency),
	})

	req := model.RenderRequest{
		JobID:     uuid.New().String(),
		ProjectID: project.ID,
		UserID:    localUser,
		Format:    model.Format(c.Format),
		Quality:   quality,
		FadeIn:    c.FadeIn,
		FadeOut:   c.FadeOut,
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.Timeout)
	defer cancel()
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	start := time.Now()
	observer := render.NewChannelObserver(64)

	var urls *model.OutputURLs
	var runErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		urls, runErr = controller.Run(ctx, req, observer)
		observer.Close()
	}()

	if c.Plain {
		cli.PrintPlain(w, observer.Events())
		<-done
	} else if err := runInteractive(project.ID, observer, cancel, done, &urls, &runErr); err != nil {
		return err
	}

	if runErr != nil {
		return runErr
	}
	if status, msg := job.State(); status != model.JobStatusCompleted {
		return fmt.Errorf("render ended %s: %s", status, msg)
	}

	summary := cli.Summary{
		Project:  project.ID,
		Quality:  quality,
		Format:   req.Format,
		Config:   cfg,
		Duration: render.TotalDuration(project.Tracks, 0),
		Elapsed:  time.Since(start),
		URLs:     *urls,
	}
	fmt.Fprintln(w, cli.RenderSummary(summary))
	return nil
}

// runInteractive drives the bubbletea view until the render finishes or the
// user quits. Controller logging is discarded while the view owns the terminal.
func runInteractive(title string, observer *render.ChannelObserver, cancel context.CancelFunc, done <-chan struct{}, urls **model.OutputURLs, runErr *error) error {
	log.SetOutput(io.Discard)
	defer log.SetOutput(os.Stderr)

	p := tea.NewProgram(cli.NewModel("Rendering "+title, observer.Events(), cancel))
	go func() {
		<-done
		p.Send(cli.DoneMsg{URLs: *urls, Err: *runErr})
	}()

	_, uiErr := p.Run()

	// the view may quit before the render drains its events
	go func() {
		for range observer.Events() {
		}
	}()
	if uiErr != nil {
		cancel()
	}
	<-done

	if uiErr != nil {
		return fmt.Errorf("UI error: %w", uiErr)
	}
	return nil
}
