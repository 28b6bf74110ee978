// Package source turns source requests into shared composition tasks.
//
// Every request maps to a cache key; concurrent requests for the same key share one task,
// and a task that fails is forgotten so the next request retries.
package source

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/samse/lottiekit/internal/composition"
	"github.com/samse/lottiekit/internal/fetch"
	"github.com/samse/lottiekit/internal/shared"
	"github.com/samse/lottiekit/internal/task"
)

// DefaultCacheSize is how many parsed compositions stay in memory.
const DefaultCacheSize = 20

// Task is a pending or settled composition.
type Task = task.Task[*composition.Composition]

// Cache shares composition tasks by key.
type Cache = task.Cache[*composition.Composition]

// NewCache creates a composition cache holding up to size parsed compositions.
func NewCache(size int) *Cache {
	return task.NewCache[*composition.Composition](size)
}

// Resources opens bundled compositions by numeric identifier.
type Resources interface {
	OpenResource(id int) (io.ReadCloser, error)
}

// ResourceKey is the cache key of a bundled resource.
func ResourceKey(id int) string {
	return "rawRes_" + strconv.Itoa(id)
}

// ResolverOpts configures a [Resolver].
type ResolverOpts struct {
	Parser    composition.Parser
	Cache     *Cache
	Executor  task.Executor
	Assets    fs.FS
	Resources Resources
	Fetcher   *fetch.Fetcher
	CacheDir  string
	Logger    *log.Logger
	// Watch evicts file sources from the cache when the file changes on disk.
	Watch bool
}

// Resolver loads compositions from every supported source.
type Resolver struct {
	parser    composition.Parser
	cache     *Cache
	exec      task.Executor
	assets    fs.FS
	resources Resources
	fetcher   *fetch.Fetcher
	cacheDir  string
	logger    *log.Logger
	watcher   *Watcher

	ctx    context.Context
	cancel context.CancelFunc
}

// NewResolver creates a resolver. Parser and Cache default to [composition.JSONParser] and
// a cache of [DefaultCacheSize].
func NewResolver(opts ResolverOpts) (*Resolver, error) {
	if opts.Parser == nil {
		opts.Parser = composition.JSONParser{}
	}
	if opts.Cache == nil {
		opts.Cache = NewCache(DefaultCacheSize)
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &Resolver{
		parser:    opts.Parser,
		cache:     opts.Cache,
		exec:      opts.Executor,
		assets:    opts.Assets,
		resources: opts.Resources,
		fetcher:   opts.Fetcher,
		cacheDir:  opts.CacheDir,
		logger:    shared.WithLogger(opts.Logger, "component", "source"),
		ctx:       ctx,
		cancel:    cancel,
	}

	if opts.Watch {
		w, err := NewWatcher(func(key string) { r.cache.EvictSettled(key) }, r.logger)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("failed to start file watcher: %w", err)
		}
		r.watcher = w
	}
	return r, nil
}

// Cache returns the shared task cache.
func (r *Resolver) Cache() *Cache { return r.cache }

// Close cancels outstanding work and stops the file watcher.
func (r *Resolver) Close() error {
	r.cancel()
	if r.watcher != nil {
		return r.watcher.Close()
	}
	return nil
}

type opener func(ctx context.Context) (io.ReadCloser, error)

// load shares one parse task per key; an empty key is never shared.
func (r *Resolver) load(key, op, src string, open opener) *Task {
	if err := r.ctx.Err(); err != nil {
		return task.Errored[*composition.Composition](shared.NewLoadError(shared.ErrCancelled, op, src, err))
	}

	return r.cache.Resolve(key, func() *Task {
		return task.Run(r.ctx, r.exec, func(ctx context.Context) (*composition.Composition, error) {
			rc, err := open(ctx)
			if err != nil {
				r.logger.Debug("open failed", "op", op, "source", src, "error", err)
				return nil, shared.WrapLoadError(err, op, src, shared.ErrNotFound)
			}
			defer rc.Close()

			c, err := r.parser.Parse(rc, key)
			if err != nil {
				r.logger.Debug("parse failed", "op", op, "source", src, "error", err)
				return nil, shared.WrapLoadError(err, op, src, shared.ErrMalformedData)
			}
			r.logger.Debug("composition loaded", "op", op, "source", src, "frames", c.DurationFrames())
			return c, nil
		})
	})
}

// FromResource loads a bundled composition.
func (r *Resolver) FromResource(id int) *Task {
	src := strconv.Itoa(id)
	return r.load(ResourceKey(id), "resource", src, func(context.Context) (io.ReadCloser, error) {
		if r.resources == nil {
			return nil, fmt.Errorf("%w: no resource bundle configured", shared.ErrMissingConfig)
		}
		return r.resources.OpenResource(id)
	})
}

// FromAsset loads name from the asset filesystem.
func (r *Resolver) FromAsset(name string) *Task {
	return r.load(name, "asset", name, func(context.Context) (io.ReadCloser, error) {
		if r.assets == nil {
			return nil, fmt.Errorf("%w: no asset filesystem configured", shared.ErrMissingConfig)
		}
		return r.assets.Open(strings.TrimPrefix(filepath.ToSlash(name), "/"))
	})
}

// FromJSON parses payload. A task is shared only when cacheKey is set.
func (r *Resolver) FromJSON(payload, cacheKey string) *Task {
	return r.load(cacheKey, "json", cacheKey, func(context.Context) (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader(payload)), nil
	})
}

// FromReader parses everything rd yields. A task is shared only when cacheKey is set.
//
// rd is read on a worker; the caller must not use it afterwards.
func (r *Resolver) FromReader(rd io.Reader, cacheKey string) *Task {
	return r.load(cacheKey, "reader", cacheKey, func(context.Context) (io.ReadCloser, error) {
		if rc, ok := rd.(io.ReadCloser); ok {
			return rc, nil
		}
		return io.NopCloser(rd), nil
	})
}

// FromBytes parses data. A task is shared only when cacheKey is set.
func (r *Resolver) FromBytes(data []byte, cacheKey string) *Task {
	return r.FromReader(bytes.NewReader(data), cacheKey)
}

// FromFile loads a local file.
func (r *Resolver) FromFile(path string) *Task {
	key := r.fileKey(path)
	t := r.load(key, "file", path, func(context.Context) (io.ReadCloser, error) {
		return os.Open(path)
	})
	r.watch(key)
	return t
}

// FromURL keeps a local copy of url in the cache directory and loads it.
func (r *Resolver) FromURL(url string) *Task {
	if r.fetcher == nil {
		return task.Errored[*composition.Composition](shared.NewLoadError(shared.ErrNetwork, "url", url,
			fmt.Errorf("%w: no fetcher configured", shared.ErrMissingConfig)))
	}
	localPath := fetch.LocalPath(r.cacheDir, url)
	return r.load(url, "url", url, r.fetchThenOpen(localPath, url))
}

// FromLocal ensures localPath holds a copy of remoteURL and loads it. The local path is
// the cache key.
func (r *Resolver) FromLocal(localPath, remoteURL string) *Task {
	if localPath == "" || remoteURL == "" {
		return task.Errored[*composition.Composition](shared.NewLoadError(shared.ErrNotFound, "local", localPath,
			fmt.Errorf("%w: local path and remote url are required", shared.ErrMissingArgument)))
	}
	if r.fetcher == nil {
		return r.FromFile(localPath)
	}
	key := r.fileKey(localPath)
	t := r.load(key, "local", localPath, r.fetchThenOpen(localPath, remoteURL))
	// The download itself renames into localPath; watch only once it is in place.
	t.AddListener(func(*composition.Composition) { r.watch(key) })
	return t
}

func (r *Resolver) fetchThenOpen(localPath, remoteURL string) opener {
	return func(ctx context.Context) (io.ReadCloser, error) {
		if err := r.fetcher.EnsureLocal(ctx, localPath, remoteURL); err != nil {
			return nil, err
		}
		return os.Open(localPath)
	}
}

// Resolve parses a source string and loads it.
func (r *Resolver) Resolve(s string) (*Task, error) {
	src, err := Parse(s)
	if err != nil {
		return nil, err
	}
	return r.Load(src), nil
}

// Load dispatches a parsed source to the matching loader.
func (r *Resolver) Load(src Source) *Task {
	switch src.Kind {
	case KindResource:
		return r.FromResource(src.ResID)
	case KindAsset:
		return r.FromAsset(src.Value)
	case KindURL:
		return r.FromURL(src.Value)
	case KindJSON:
		return r.FromJSON(src.Value, "")
	default:
		return r.FromFile(src.Value)
	}
}

func (r *Resolver) fileKey(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

func (r *Resolver) watch(key string) {
	if r.watcher == nil {
		return
	}
	if err := r.watcher.Add(key); err != nil {
		r.logger.Warn("cannot watch file", "path", key, "error", err)
	}
}
