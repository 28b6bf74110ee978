package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/samse/lottiekit/internal/formatter"
	"github.com/samse/lottiekit/internal/shared"
	"github.com/samse/lottiekit/internal/tasks"
	"github.com/urfave/cli/v3"
)

// exportCommand writes reports for many sources at once.
func exportCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "export",
		Usage:     "Write a report for every given source into a directory",
		ArgsUsage: "<source> [source...]",
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Report format (text, markdown, csv or json)",
				Value:   "markdown",
			},
			&cli.StringFlag{
				Name:    "dir",
				Aliases: []string{"d"},
				Usage:   "Output directory (default: lottiekit_export_{epoch})",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Concurrent workers (default: loader.workers)",
			},
		}, renderFlags()...),
		Action: r.Export,
	}
}

// Export resolves every source argument and writes one report each plus a manifest.
func (r *Runner) Export(ctx context.Context, cmd *cli.Command) error {
	sources := cmd.Args().Slice()
	if len(sources) == 0 {
		return fmt.Errorf("%w: at least one source is required", shared.ErrMissingArgument)
	}

	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}
	mode, platform, err := r.renderSettings(cmd)
	if err != nil {
		return err
	}

	workers := cmd.Int("workers")
	if workers <= 0 {
		workers = r.config.Loader.Workers
	}

	l, err := r.newLoader(ctx, false)
	if err != nil {
		return err
	}
	defer l.Close()

	prog := make(chan tasks.ProgressUpdate, 32)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for u := range prog {
			r.writePlain("%s\n", u.Message)
		}
	}()

	exporter := tasks.NewExporter(l.resolver, r.logger)
	result, err := exporter.BulkExport(ctx, prog, sources, tasks.BulkExportOpts{
		Format:     format,
		OutputDir:  cmd.String("dir"),
		NumWorkers: workers,
		Platform:   platform,
		RenderMode: mode,
	})
	close(prog)
	wg.Wait()
	if err != nil {
		return err
	}

	r.writePlainln("Exported %d of %d sources to %s", result.Successful, result.TotalSources, result.OutputDirectory)
	if result.Failed > 0 {
		return fmt.Errorf("%d of %d sources failed, see %s", result.Failed, result.TotalSources, result.ManifestPath)
	}
	return nil
}
