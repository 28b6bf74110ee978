package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/samse/lottiekit/internal/dispatch"
	"github.com/samse/lottiekit/internal/remote"
	"github.com/samse/lottiekit/internal/shared"
	"github.com/samse/lottiekit/internal/task"
	tu "github.com/samse/lottiekit/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type openerFunc func(ctx context.Context, rawURL string) (io.ReadCloser, error)

func (f openerFunc) Open(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	return f(ctx, rawURL)
}

type memoryRecorder struct {
	mu      sync.Mutex
	entries []Entry
	uses    []string
	err     error
}

func (m *memoryRecorder) RecordUse(_ context.Context, localPath string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uses = append(m.uses, localPath)
	return m.err
}

func (m *memoryRecorder) RecordFetch(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return m.err
}

func newFetcher(opener remote.Opener, rec Recorder, chunk int) *Fetcher {
	return NewFetcher(FetcherOpts{Opener: opener, Recorder: rec, ChunkSize: chunk})
}

func httpFetcher(rec Recorder) *Fetcher {
	return newFetcher(remote.NewHTTPOpener(remote.HTTPOpenerOpts{}), rec, 0)
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestEnsureLocal(t *testing.T) {
	t.Run("existing file needs no network", func(t *testing.T) {
		srv := tu.NewCountingServer(t, http.StatusOK, tu.MinimalComposition)
		local := filepath.Join(t.TempDir(), "anim.json")
		tu.MustWriteFile(t, local, "cached")

		require.NoError(t, httpFetcher(nil).EnsureLocal(context.Background(), local, srv.URL+"/anim.json"))

		assert.Equal(t, 0, srv.Total())
		assert.Equal(t, "cached", tu.MustReadFile(t, local))
	})

	t.Run("downloads once then serves locally", func(t *testing.T) {
		srv := tu.NewCountingServer(t, http.StatusOK, tu.MinimalComposition)
		dir := filepath.Join(t.TempDir(), "nested", "cache")
		local := filepath.Join(dir, "anim.json")
		rec := &memoryRecorder{}
		f := httpFetcher(rec)

		require.NoError(t, f.EnsureLocal(context.Background(), local, srv.URL+"/anim.json"))
		require.NoError(t, f.EnsureLocal(context.Background(), local, srv.URL+"/anim.json"))

		assert.Equal(t, 1, srv.Hits("/anim.json"))
		assert.Equal(t, tu.MinimalComposition, tu.MustReadFile(t, local))
		assert.Equal(t, []string{"anim.json"}, dirEntries(t, dir), "no temporary files left behind")

		require.Len(t, rec.entries, 1)
		assert.Equal(t, []string{local}, rec.uses, "second call is a cache hit")
		sum := sha256.Sum256([]byte(tu.MinimalComposition))
		assert.Equal(t, hex.EncodeToString(sum[:]), rec.entries[0].Checksum)
		assert.Equal(t, int64(len(tu.MinimalComposition)), rec.entries[0].Size)
		assert.Equal(t, local, rec.entries[0].LocalPath)
	})

	t.Run("small chunks copy the whole body", func(t *testing.T) {
		srv := tu.NewCountingServer(t, http.StatusOK, tu.MinimalComposition)
		local := filepath.Join(t.TempDir(), "anim.json")
		f := newFetcher(remote.NewHTTPOpener(remote.HTTPOpenerOpts{}), nil, 3)

		require.NoError(t, f.EnsureLocal(context.Background(), local, srv.URL+"/a"))
		assert.Equal(t, tu.MinimalComposition, tu.MustReadFile(t, local))
	})

	t.Run("non-200 leaves nothing behind", func(t *testing.T) {
		srv := tu.NewCountingServer(t, http.StatusNotFound, "missing")
		dir := t.TempDir()
		local := filepath.Join(dir, "anim.json")

		err := httpFetcher(nil).EnsureLocal(context.Background(), local, srv.URL+"/anim.json")

		assert.ErrorIs(t, err, shared.ErrNetwork)
		tu.AssertNoFile(t, local)
		assert.Empty(t, dirEntries(t, dir))
	})

	t.Run("mid-transfer failure leaves no partial file", func(t *testing.T) {
		body := tu.NewTruncatedBody(`{"fr":30,"ip"`)
		f := newFetcher(openerFunc(func(context.Context, string) (io.ReadCloser, error) {
			return body, nil
		}), nil, 4)
		dir := t.TempDir()
		local := filepath.Join(dir, "anim.json")

		err := f.EnsureLocal(context.Background(), local, "https://cdn.example.com/anim.json")

		assert.ErrorIs(t, err, shared.ErrNetwork)
		tu.AssertNoFile(t, local)
		assert.Empty(t, dirEntries(t, dir))
		assert.Equal(t, int32(1), body.Closes.Load(), "body closed exactly once")

		// a later attempt starts from scratch
		f.opener = openerFunc(func(context.Context, string) (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader("{}")), nil
		})
		require.NoError(t, f.EnsureLocal(context.Background(), local, "https://cdn.example.com/anim.json"))
		assert.Equal(t, "{}", tu.MustReadFile(t, local))
	})

	t.Run("unreadable body", func(t *testing.T) {
		f := newFetcher(openerFunc(func(context.Context, string) (io.ReadCloser, error) {
			return &tu.FCloser{}, nil
		}), nil, 0)
		local := filepath.Join(t.TempDir(), "anim.json")

		err := f.EnsureLocal(context.Background(), local, "https://cdn.example.com/anim.json")

		assert.ErrorIs(t, err, shared.ErrNetwork)
		tu.AssertNoFile(t, local)
	})

	t.Run("cancelled context aborts the copy", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		f := newFetcher(openerFunc(func(context.Context, string) (io.ReadCloser, error) {
			cancel()
			return io.NopCloser(strings.NewReader(tu.MinimalComposition)), nil
		}), nil, 0)
		local := filepath.Join(t.TempDir(), "anim.json")

		err := f.EnsureLocal(ctx, local, "https://cdn.example.com/anim.json")
		assert.ErrorIs(t, err, shared.ErrCancelled)
		tu.AssertNoFile(t, local)
	})

	t.Run("concurrent callers share one download", func(t *testing.T) {
		srv := tu.NewCountingServer(t, http.StatusOK, tu.MinimalComposition)
		release := srv.Hold()
		local := filepath.Join(t.TempDir(), "anim.json")
		f := httpFetcher(nil)

		var wg sync.WaitGroup
		errs := make(chan error, 8)
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs <- f.EnsureLocal(context.Background(), local, srv.URL+"/anim.json")
			}()
		}
		assert.Eventually(t, func() bool { return srv.Total() == 1 }, time.Second, time.Millisecond)
		release()
		wg.Wait()
		close(errs)

		for err := range errs {
			assert.NoError(t, err)
		}
		assert.Equal(t, 1, srv.Total())
	})

	t.Run("recorder failure does not fail the fetch", func(t *testing.T) {
		srv := tu.NewCountingServer(t, http.StatusOK, "{}")
		local := filepath.Join(t.TempDir(), "anim.json")
		rec := &memoryRecorder{err: errors.New("db locked")}

		require.NoError(t, httpFetcher(rec).EnsureLocal(context.Background(), local, srv.URL))
		tu.AssertFileExists(t, local)
	})

	t.Run("missing arguments", func(t *testing.T) {
		err := httpFetcher(nil).EnsureLocal(context.Background(), "", "https://cdn.example.com/a.json")
		assert.ErrorIs(t, err, shared.ErrMissingArgument)
	})
}

func TestEnsureLocalAsync(t *testing.T) {
	srv := tu.NewCountingServer(t, http.StatusOK, "{}")
	pool := task.NewPool(2, nil)
	defer pool.Close()
	loop := dispatch.NewLoop()

	local := filepath.Join(t.TempDir(), "anim.json")
	var ok bool
	var gotErr error
	called := false
	httpFetcher(nil).EnsureLocalAsync(context.Background(), pool, loop, local, srv.URL, func(success bool, err error) {
		called, ok, gotErr = true, success, err
	})

	assert.Eventually(t, func() bool {
		loop.Drain()
		return called
	}, time.Second, time.Millisecond)
	assert.True(t, ok)
	assert.NoError(t, gotErr)
	tu.AssertFileExists(t, local)
}

func TestLocalPath(t *testing.T) {
	a := LocalPath("/cache", "https://cdn.example.com/anims/heart.json?v=2")
	b := LocalPath("/cache", "https://cdn.example.com/anims/heart.json?v=2")
	c := LocalPath("/cache", "https://cdn.example.com/anims/heart.json?v=3")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Equal(t, "/cache", filepath.Dir(a))
	assert.True(t, strings.HasSuffix(a, ".json"))
	assert.True(t, strings.HasSuffix(LocalPath("/cache", "https://x/y"), ".json"))
	assert.True(t, strings.HasSuffix(LocalPath("/cache", "https://x/y.lottie"), ".lottie"))
}
