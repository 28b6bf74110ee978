package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/samse/lottiekit/assets"
	"github.com/samse/lottiekit/internal/fetch"
	"github.com/samse/lottiekit/internal/playback"
	"github.com/samse/lottiekit/internal/remote"
	"github.com/samse/lottiekit/internal/render"
	"github.com/samse/lottiekit/internal/repositories"
	"github.com/samse/lottiekit/internal/shared"
	"github.com/samse/lottiekit/internal/source"
	"github.com/samse/lottiekit/internal/task"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	// HTTPClient overrides the client built from the remote config.
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

// SetLogger replaces the logger, e.g. with a file logger while the player owns the terminal.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, fetchCommand, inspectCommand, exportCommand, playCommand, cacheCommand, serveCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// loader bundles what the resolving commands share: the resolver, its worker pool and the
// optional fetch index.
type loader struct {
	resolver *source.Resolver
	fetcher  *fetch.Fetcher
	pool     *task.Pool
	db       *sql.DB
}

func (l *loader) Close() {
	l.resolver.Close()
	l.pool.Close()
	if l.db != nil {
		l.db.Close()
	}
}

// newFetcher wires the remote openers and, when the database opens, the fetch recorder.
//
// Neither S3 nor the database is required: failures are logged and the fetcher runs without them.
func (r *Runner) newFetcher(ctx context.Context) (*fetch.Fetcher, *sql.DB) {
	router, err := remote.NewDefaultRouter(ctx, r.config.Remote, r.httpClient)
	if err != nil {
		r.logger.Warn("s3 sources disabled", "error", err)
	}

	var recorder fetch.Recorder
	db, err := shared.OpenDatabase(r.config.Database)
	if err != nil {
		r.logger.Warn("fetch index disabled, run 'lottiekit setup'", "error", err)
		db = nil
	} else {
		recorder = repositories.NewFetchRecorder(repositories.NewCacheEntryRepository(db))
	}

	return fetch.NewFetcher(fetch.FetcherOpts{
		Opener:    router,
		Recorder:  recorder,
		ChunkSize: r.config.Remote.ChunkSize,
		Logger:    r.logger,
	}), db
}

func (r *Runner) newLoader(ctx context.Context, watch bool) (*loader, error) {
	fetcher, db := r.newFetcher(ctx)
	pool := task.NewPool(r.config.Loader.Workers, r.logger)

	resolver, err := source.NewResolver(source.ResolverOpts{
		Cache:     source.NewCache(r.config.Cache.MaxCompositions),
		Executor:  pool,
		Assets:    assets.FS,
		Resources: assets.Bundle{},
		Fetcher:   fetcher,
		CacheDir:  r.config.Cache.Dir,
		Logger:    r.logger,
		Watch:     watch,
	})
	if err != nil {
		pool.Close()
		if db != nil {
			db.Close()
		}
		return nil, err
	}

	return &loader{resolver: resolver, fetcher: fetcher, pool: pool, db: db}, nil
}

// playbackOptions turns the [playback] config section into controller options.
func (r *Runner) playbackOptions() (playback.Options, error) {
	cfg := r.config.Playback
	mode, err := playback.ParseRepeatMode(cfg.RepeatMode)
	if err != nil {
		return playback.Options{}, err
	}
	return playback.Options{
		Speed:             cfg.Speed,
		RepeatMode:        mode,
		RepeatCount:       cfg.RepeatCount,
		AutoPlay:          cfg.Autoplay,
		CancelResetsFrame: cfg.CancelResetsFrame,
	}, nil
}

// renderSettings reads --render-mode and --api-level, falling back to the config.
func (r *Runner) renderSettings(cmd *cli.Command) (render.Mode, render.Platform, error) {
	modeName := r.config.Playback.RenderMode
	if cmd.IsSet("render-mode") {
		modeName = cmd.String("render-mode")
	}
	mode, err := render.ParseMode(modeName)
	if err != nil {
		return render.Automatic, render.Platform{}, err
	}

	level := r.config.Playback.APILevel
	if cmd.IsSet("api-level") {
		level = cmd.Int("api-level")
	}
	return mode, render.Platform{APILevel: level}, nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
