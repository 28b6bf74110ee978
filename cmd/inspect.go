package main

import (
	"context"
	"fmt"

	"github.com/samse/lottiekit/internal/formatter"
	"github.com/samse/lottiekit/internal/render"
	"github.com/samse/lottiekit/internal/shared"
	"github.com/urfave/cli/v3"
)

// Inspect resolves a source and prints a [formatter.Report] for it.
//
// The render mode shown is the one the selector would apply on the given API level.
func (r *Runner) Inspect(ctx context.Context, cmd *cli.Command) error {
	src := cmd.StringArg("source")
	if src == "" {
		return fmt.Errorf("%w: source is required", shared.ErrMissingArgument)
	}

	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	mode, platform, err := r.renderSettings(cmd)
	if err != nil {
		return err
	}

	l, err := r.newLoader(ctx, false)
	if err != nil {
		return err
	}
	defer l.Close()

	t, err := l.resolver.Resolve(src)
	if err != nil {
		return err
	}

	comp, err := t.Wait(ctx)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", src, err)
	}

	report := &formatter.Report{
		Source:      src,
		Composition: comp,
		RenderMode:  render.Select(mode, render.CharacteristicsOf(comp), platform),
		APILevel:    platform.APILevel,
	}
	r.logger.Debug("inspected composition", "name", comp.Name, "render_mode", report.RenderMode)

	if out := cmd.String("output"); out != "" {
		if err := formatter.WriteExport(report, format, out); err != nil {
			return err
		}
		r.logger.Info("report written", "path", out, "format", format)
		return nil
	}

	data, err := formatter.Export(report, format)
	if err != nil {
		return err
	}
	return r.writePlain("%s", data)
}
