package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/charmbracelet/log"
	"github.com/samse/lottiekit/internal/formatter"
	"github.com/samse/lottiekit/internal/render"
	"github.com/samse/lottiekit/internal/shared"
	"github.com/samse/lottiekit/internal/source"
)

// ManifestName is the file written next to the exported reports.
const ManifestName = "export_manifest.json"

// Resolver turns a source string into a composition task. [source.Resolver] implements it.
type Resolver interface {
	Resolve(src string) (*source.Task, error)
}

// BulkExportOpts contains configuration for bulk report exports.
type BulkExportOpts struct {
	Format     formatter.Format // Report format
	OutputDir  string           // Base output directory (default: lottiekit_export_{epoch})
	NumWorkers int              // Concurrent workers (default: 4, at most 16)
	Platform   render.Platform  // Platform used for the reported render mode
	RenderMode render.Mode      // Requested render mode
}

// SourceExportResult is the outcome for one source.
type SourceExportResult struct {
	Index   int    `json:"index"`
	Source  string `json:"source"`
	Name    string `json:"name,omitempty"`
	File    string `json:"file,omitempty"`
	Success bool   `json:"success"`
	Error   error  `json:"-"`
	Message string `json:"error,omitempty"`
}

// BulkExportResult summarizes a bulk export. Results are ordered as the sources were given.
type BulkExportResult struct {
	TotalSources    int                  `json:"total_sources"`
	Successful      int                  `json:"successful"`
	Failed          int                  `json:"failed"`
	OutputDirectory string               `json:"output_directory"`
	ManifestPath    string               `json:"-"`
	Results         []SourceExportResult `json:"results"`
}

type exportJob struct {
	index int
	src   string
}

// Exporter writes reports for many sources at once.
type Exporter struct {
	resolver Resolver
	logger   *log.Logger
}

// NewExporter creates an exporter that loads compositions through resolver.
func NewExporter(resolver Resolver, logger *log.Logger) *Exporter {
	return &Exporter{resolver: resolver, logger: shared.WithLogger(logger, "component", "tasks")}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func (e *Exporter) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// BulkExport resolves sources concurrently and writes one report per source into
// opts.OutputDir, followed by a manifest.
//
// A failing source is recorded in the result and does not stop the others. A cancelled
// ctx stops handing out sources; sources never started count as failed.
func (e *Exporter) BulkExport(
	ctx context.Context,
	prog chan<- ProgressUpdate,
	sources []string,
	opts BulkExportOpts,
) (*BulkExportResult, error) {
	if e.resolver == nil {
		return nil, fmt.Errorf("%w: resolver not initialized", shared.ErrMissingConfig)
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("%w: no sources to export", shared.ErrMissingArgument)
	}
	if opts.Format == "" {
		opts.Format = formatter.Text
	}
	if !slices.Contains(formatter.Formats, opts.Format) {
		return nil, fmt.Errorf("%w: format %q", shared.ErrInvalidFlag, opts.Format)
	}
	if opts.OutputDir == "" {
		opts.OutputDir = fmt.Sprintf("lottiekit_export_%d", time.Now().Unix())
	}
	opts.NumWorkers = min(max(opts.NumWorkers, 0), 16)
	if opts.NumWorkers == 0 {
		opts.NumWorkers = 4
	}

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	result := &BulkExportResult{
		TotalSources:    len(sources),
		OutputDirectory: opts.OutputDir,
		Results:         make([]SourceExportResult, 0, len(sources)),
	}

	jobs := make(chan exportJob)
	results := make(chan SourceExportResult, len(sources))

	var wg sync.WaitGroup
	for i := 0; i < opts.NumWorkers; i++ {
		wg.Add(1)
		go e.exportWorker(ctx, &wg, jobs, results, opts)
	}

	go func() {
		defer close(jobs)
		for i, src := range sources {
			select {
			case <-ctx.Done():
				for j := i; j < len(sources); j++ {
					results <- SourceExportResult{Index: j, Source: sources[j], Error: ctx.Err()}
				}
				return
			case jobs <- exportJob{index: i, src: src}:
				e.sendProgress(prog, resolvingUpdate(i+1, len(sources), src))
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for res := range results {
		completed++
		if res.Error != nil {
			res.Message = res.Error.Error()
			result.Failed++
			e.sendProgress(prog, exportFailedUpdate(completed, len(sources), res.Source, res.Error))
		} else {
			result.Successful++
			e.sendProgress(prog, exportCompletedUpdate(completed, len(sources), res.Name, res.File))
		}
		result.Results = append(result.Results, res)
	}
	slices.SortFunc(result.Results, func(a, b SourceExportResult) int { return a.Index - b.Index })

	manifestPath := filepath.Join(opts.OutputDir, ManifestName)
	if err := writeManifest(result, manifestPath); err != nil {
		return result, fmt.Errorf("export completed but failed to write manifest: %w", err)
	}
	result.ManifestPath = manifestPath
	e.sendProgress(prog, manifestUpdate(manifestPath))
	e.logger.Info("bulk export finished", "sources", len(sources), "failed", result.Failed, "dir", opts.OutputDir)
	return result, nil
}

// exportWorker is a worker goroutine that exports sources from the jobs channel.
func (e *Exporter) exportWorker(
	ctx context.Context,
	wg *sync.WaitGroup,
	jobs <-chan exportJob,
	results chan<- SourceExportResult,
	opts BulkExportOpts,
) {
	defer wg.Done()

	for job := range jobs {
		results <- e.exportSingle(ctx, job, opts)
	}
}

// exportSingle loads one source and writes its report.
func (e *Exporter) exportSingle(ctx context.Context, j exportJob, opts BulkExportOpts) SourceExportResult {
	result := SourceExportResult{Index: j.index, Source: j.src}

	t, err := e.resolver.Resolve(j.src)
	if err != nil {
		result.Error = err
		return result
	}
	comp, err := t.Wait(ctx)
	if err != nil {
		result.Error = err
		return result
	}
	result.Name = comp.Name

	report := &formatter.Report{
		Source:      j.src,
		Composition: comp,
		RenderMode:  render.Select(opts.RenderMode, render.CharacteristicsOf(comp), opts.Platform),
		APILevel:    opts.Platform.APILevel,
	}

	path := filepath.Join(opts.OutputDir, fmt.Sprintf("%02d_%s.%s", j.index+1, slug(comp.Name), opts.Format.Extension()))
	if err := formatter.WriteExport(report, opts.Format, path); err != nil {
		result.Error = err
		return result
	}
	result.File = path
	result.Success = true
	return result
}

func writeManifest(r *BulkExportResult, path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

// slug keeps letters, digits, dashes and underscores; anything else becomes '_'.
func slug(name string) string {
	s := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' {
			return r
		}
		return '_'
	}, strings.TrimSpace(name))
	if s == "" {
		return "composition"
	}
	return s
}
