package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/samse/lottiekit/assets"
	"github.com/samse/lottiekit/internal/server"
	"github.com/urfave/cli/v3"
)

// serveCommand starts the preview server.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve bundled and downloaded compositions plus JSON reports over HTTP",
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:    "addr",
				Aliases: []string{"a"},
				Usage:   "Listen address",
				Value:   "127.0.0.1:8765",
			},
		}, renderFlags()...),
		Action: r.Serve,
	}
}

// Serve runs the preview server until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	mode, platform, err := r.renderSettings(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	l, err := r.newLoader(ctx, true)
	if err != nil {
		return err
	}
	defer l.Close()

	router := server.NewBasicRouter()
	router.Use(server.Logging(r.logger), server.Recover(r.logger))
	router.Handler(server.NewCompositionHandler(assets.FS, os.DirFS(r.config.Cache.Dir)))
	router.Handler(server.NewInspectHandler(l.resolver, platform, mode))

	for _, p := range router.Patterns() {
		r.logger.Debug("route", "pattern", p)
	}
	return server.Serve(ctx, cmd.String("addr"), router, r.logger)
}
