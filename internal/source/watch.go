package source

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
	"github.com/samse/lottiekit/internal/shared"
)

// Watcher reports changes to individual files by watching their directories.
type Watcher struct {
	watcher  *fsnotify.Watcher
	onChange func(path string)
	logger   *log.Logger

	mu    sync.Mutex
	files map[string]stamp
	dirs  map[string]int

	closeCh chan struct{}
	done    chan struct{}
	once    sync.Once
}

// stamp identifies a file version; events that leave it unchanged are ignored.
type stamp struct {
	modTime time.Time
	size    int64
	exists  bool
}

func stampOf(path string) stamp {
	info, err := os.Stat(path)
	if err != nil {
		return stamp{}
	}
	return stamp{modTime: info.ModTime(), size: info.Size(), exists: true}
}

// NewWatcher starts a watcher that calls onChange, on its own goroutine, whenever a watched
// file is written, created, renamed or removed.
func NewWatcher(onChange func(path string), logger *log.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		watcher:  fw,
		onChange: onChange,
		logger:   shared.WithLogger(logger, "component", "watch"),
		files:    make(map[string]stamp),
		dirs:     make(map[string]int),
		closeCh:  make(chan struct{}),
		done:     make(chan struct{}),
	}
	go w.run()
	return w, nil
}

// Add starts watching path. Adding the same file twice is a no-op. The file's current
// version is recorded, so late events for writes made before Add do not count as changes.
func (w *Watcher) Add(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.files[abs]; ok {
		return nil
	}

	dir := filepath.Dir(abs)
	if w.dirs[dir] == 0 {
		if err := w.watcher.Add(dir); err != nil {
			return err
		}
	}
	w.dirs[dir]++
	w.files[abs] = stampOf(abs)
	return nil
}

// Remove stops watching path.
func (w *Watcher) Remove(path string) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.files[abs]; !ok {
		return
	}
	delete(w.files, abs)

	dir := filepath.Dir(abs)
	w.dirs[dir]--
	if w.dirs[dir] <= 0 {
		delete(w.dirs, dir)
		_ = w.watcher.Remove(dir)
	}
}

// changed reports whether path is watched and differs from its recorded version, and
// records the new version.
func (w *Watcher) changed(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	old, ok := w.files[path]
	if !ok {
		return false
	}
	cur := stampOf(path)
	if cur.exists && old.exists && cur.size == old.size && cur.modTime.Equal(old.modTime) {
		return false
	}
	w.files[path] = cur
	return true
}

// Close stops the watcher and waits for its goroutine.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.closeCh)
		err = w.watcher.Close()
		<-w.done
	})
	return err
}

func (w *Watcher) run() {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			name := filepath.Clean(event.Name)
			if !w.changed(name) {
				continue
			}
			w.onChange(name)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("file watcher error", "error", err)
		case <-w.closeCh:
			return
		}
	}
}
