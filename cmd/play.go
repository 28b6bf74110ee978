package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/samse/lottiekit/internal/dispatch"
	"github.com/samse/lottiekit/internal/render"
	"github.com/samse/lottiekit/internal/shared"
	"github.com/samse/lottiekit/internal/ui"
	"github.com/samse/lottiekit/internal/view"
	"github.com/urfave/cli/v3"
)

// Play launches the terminal player for a source.
func (r *Runner) Play(ctx context.Context, cmd *cli.Command) error {
	src := cmd.StringArg("source")
	if src == "" {
		return fmt.Errorf("%w: source is required", shared.ErrMissingArgument)
	}

	opts, err := r.playbackOptions()
	if err != nil {
		return err
	}
	mode, platform, err := r.renderSettings(cmd)
	if err != nil {
		return err
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, closer, err := shared.NewFileLogger(cmd.String("log-file"))
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	defer closer.Close()
	r.SetLogger(fileLogger)

	l, err := r.newLoader(ctx, cmd.Bool("watch"))
	if err != nil {
		return err
	}
	defer l.Close()

	loop := dispatch.NewLoop()
	defer loop.Close()

	anim := view.New(view.Options{
		Resolver:   l.resolver,
		Dispatcher: loop,
		Surface: render.SurfaceFunc(func(m render.Mode) {
			fileLogger.Info("render mode applied", "mode", m)
		}),
		Platform:   platform,
		RenderMode: mode,
		Playback:   opts,
		Logger:     fileLogger,
	})

	model := ui.NewModel(ctx, ui.ModelOpts{
		Source:   src,
		View:     anim,
		Loop:     loop,
		Interval: r.config.Playback.FrameInterval(),
		Logger:   fileLogger,
	})
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running player: %w", err)
	}

	if err := anim.LastError(); err != nil && anim.Composition() == nil {
		return err
	}
	return nil
}
