// Package fetch keeps local copies of remote compositions.
package fetch

import (
	"context"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/samse/lottiekit/internal/dispatch"
	"github.com/samse/lottiekit/internal/remote"
	"github.com/samse/lottiekit/internal/shared"
	"github.com/samse/lottiekit/internal/task"
	"golang.org/x/sync/singleflight"
)

// DefaultChunkSize is the copy buffer used while streaming a download to disk.
const DefaultChunkSize = 4096

// Recorder is told about every completed download.
type Recorder interface {
	RecordFetch(ctx context.Context, entry Entry) error
}

// UseRecorder is optionally implemented by a [Recorder] that also wants to know when an
// existing local copy is served without a download.
type UseRecorder interface {
	RecordUse(ctx context.Context, localPath string, at time.Time) error
}

// Entry describes a file written by [Fetcher.EnsureLocal].
type Entry struct {
	RemoteURL string
	LocalPath string
	Size      int64
	Checksum  string
	FetchedAt time.Time
}

// Fetcher downloads a remote file only when no local copy exists.
type Fetcher struct {
	opener    remote.Opener
	recorder  Recorder
	chunkSize int
	logger    *log.Logger
	group     singleflight.Group
	now       func() time.Time
}

// FetcherOpts configures a [Fetcher].
type FetcherOpts struct {
	Opener    remote.Opener
	Recorder  Recorder
	ChunkSize int
	Logger    *log.Logger
}

// NewFetcher creates a fetcher. Opener is required.
func NewFetcher(opts FetcherOpts) *Fetcher {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	return &Fetcher{
		opener:    opts.Opener,
		recorder:  opts.Recorder,
		chunkSize: opts.ChunkSize,
		logger:    shared.WithLogger(opts.Logger, "component", "fetch"),
		now:       time.Now,
	}
}

// LocalPath derives a stable cache file name for remoteURL inside dir.
func LocalPath(dir, remoteURL string) string {
	sum := sha1.Sum([]byte(remoteURL))
	ext := ".json"
	if u, err := url.Parse(remoteURL); err == nil {
		if e := path.Ext(u.Path); e != "" && len(e) <= 8 {
			ext = e
		}
	}
	return filepath.Join(dir, hex.EncodeToString(sum[:])+ext)
}

// EnsureLocal makes sure localPath exists, downloading remoteURL into it if it does not.
//
// An existing file is trusted without any network access. Downloads stream into a
// temporary file in the same directory that is renamed into place only after a complete
// transfer, so localPath never holds a partial file. Concurrent calls for the same
// localPath share one download. This blocks; use [Fetcher.EnsureLocalAsync] from a
// presentation context.
func (f *Fetcher) EnsureLocal(ctx context.Context, localPath, remoteURL string) error {
	if localPath == "" || remoteURL == "" {
		return fmt.Errorf("%w: local path and remote url are required", shared.ErrMissingArgument)
	}

	if exists, err := fileExists(localPath); err != nil {
		return shared.WrapLoadError(err, "stat", localPath, shared.ErrNotFound)
	} else if exists {
		f.recordUse(ctx, localPath)
		return nil
	}

	_, err, joined := f.group.Do(localPath, func() (any, error) {
		if exists, err := fileExists(localPath); err == nil && exists {
			return nil, nil
		}
		return nil, f.download(ctx, localPath, remoteURL)
	})
	if joined {
		f.logger.Debug("joined in-flight download", "path", localPath)
	}
	return err
}

// EnsureLocalAsync runs [Fetcher.EnsureLocal] on exec and reports the outcome through cb on d.
func (f *Fetcher) EnsureLocalAsync(ctx context.Context, exec task.Executor, d dispatch.Dispatcher, localPath, remoteURL string, cb func(ok bool, err error)) {
	exec.Go(func() {
		err := f.EnsureLocal(ctx, localPath, remoteURL)
		d.Post(func() { cb(err == nil, err) })
	})
}

func (f *Fetcher) download(ctx context.Context, localPath, remoteURL string) error {
	start := f.now()
	body, err := f.opener.Open(ctx, remoteURL)
	if err != nil {
		return shared.WrapLoadError(err, "fetch", remoteURL, shared.ErrNetwork)
	}
	defer body.Close()

	dir := filepath.Dir(localPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return shared.NewLoadError(shared.ErrNetwork, "mkdir", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(localPath)+".*.part")
	if err != nil {
		return shared.NewLoadError(shared.ErrNetwork, "create", localPath, err)
	}
	tmpName := tmp.Name()

	digest := sha256.New()
	n, err := f.copy(ctx, io.MultiWriter(tmp, digest), body)
	if err == nil {
		err = tmp.Sync()
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Rename(tmpName, localPath)
	}
	if err != nil {
		os.Remove(tmpName)
		return shared.WrapLoadError(err, "fetch", remoteURL, shared.ErrNetwork)
	}

	entry := Entry{
		RemoteURL: remoteURL,
		LocalPath: localPath,
		Size:      n,
		Checksum:  hexSum(digest),
		FetchedAt: f.now(),
	}
	f.logger.Info("downloaded", "url", remoteURL, "path", localPath, "bytes", n, "elapsed", entry.FetchedAt.Sub(start))

	if f.recorder != nil {
		if err := f.recorder.RecordFetch(ctx, entry); err != nil {
			f.logger.Warn("failed to record download", "url", remoteURL, "error", err)
		}
	}
	return nil
}

func (f *Fetcher) recordUse(ctx context.Context, localPath string) {
	ur, ok := f.recorder.(UseRecorder)
	if !ok {
		return
	}
	if err := ur.RecordUse(ctx, localPath, f.now()); err != nil {
		f.logger.Warn("failed to record cache use", "path", localPath, "error", err)
	}
}

// copy streams src to dst in chunkSize pieces, checking ctx between chunks.
func (f *Fetcher) copy(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, f.chunkSize)
	var written int64
	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		nr, rerr := src.Read(buf)
		if nr > 0 {
			nw, werr := dst.Write(buf[:nr])
			written += int64(nw)
			if werr != nil {
				return written, werr
			}
			if nw != nr {
				return written, io.ErrShortWrite
			}
		}
		if errors.Is(rerr, io.EOF) {
			return written, nil
		}
		if rerr != nil {
			return written, rerr
		}
	}
}

func fileExists(p string) (bool, error) {
	info, err := os.Stat(p)
	switch {
	case err == nil:
		if info.IsDir() {
			return false, fmt.Errorf("%w: %s is a directory", shared.ErrInvalidArgument, p)
		}
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

func hexSum(h hash.Hash) string {
	return hex.EncodeToString(h.Sum(nil))
}
