// Package watcher reloads a document file when it changes on disk.
//
// Change detection uses fsnotify on the file's directory, which survives
// editors that save by rename. Network and FUSE mounts, and any run with
// MT_FORCE_POLL set, fall back to polling the file's mtime and size. Bursts
// of writes are debounced into a single Reload.
package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/vanderheijden86/modeltree/pkg/debug"
)

// DefaultPollInterval is the default polling interval for fallback mode.
const DefaultPollInterval = 2 * time.Second

var (
	ErrFileRemoved    = errors.New("watched file was removed")
	ErrPermission     = errors.New("permission denied")
	ErrAlreadyStarted = errors.New("watcher already started")
)

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets how long writes must settle before a reload.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// WithPollInterval sets the polling interval for fallback mode.
func WithPollInterval(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.pollInterval = d
		}
	}
}

// WithForcePoll forces polling even where fsnotify works.
func WithForcePoll(force bool) Option {
	return func(w *Watcher) { w.forcePoll = force }
}

// WithOnError sets the callback for watch errors. Decode errors are not
// reported here; they arrive as a Reload with Err set.
func WithOnError(fn func(error)) Option {
	return func(w *Watcher) { w.onError = fn }
}

// Watcher turns changes to one file into Reloads.
type Watcher struct {
	path         string
	debounce     time.Duration
	pollInterval time.Duration
	forcePoll    bool
	onError      func(error)

	mu        sync.RWMutex
	started   bool
	polling   bool
	fsType    FilesystemType
	fsWatcher *fsnotify.Watcher
	cancel    context.CancelFunc
	lastMtime time.Time
	lastSize  int64

	debouncer *Debouncer
	reloads   chan Reload
}

// New creates a watcher for the document at path.
func New(path string, opts ...Option) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		path:         abs,
		debounce:     DefaultDebounceDuration,
		pollInterval: DefaultPollInterval,
		onError:      func(error) {},
		reloads:      make(chan Reload, 1),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.debouncer = NewDebouncer(w.debounce)
	return w, nil
}

// Start begins watching. The watcher stops when ctx is done or Stop is
// called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started {
		return ErrAlreadyStarted
	}

	info, err := os.Stat(w.path)
	switch {
	case err == nil:
		w.lastMtime, w.lastSize = info.ModTime(), info.Size()
	case os.IsPermission(err):
		return ErrPermission
	default:
		w.lastMtime, w.lastSize = time.Time{}, 0
	}

	w.fsType = detectFilesystemTypeFunc(w.path)
	w.polling = w.forcePoll || envBool("MT_FORCE_POLL") || isRemoteFilesystem(w.fsType)

	ctx, w.cancel = context.WithCancel(ctx)
	if !w.polling {
		if fsw, err := w.openNotify(); err != nil {
			debug.Log("watcher: fsnotify unavailable for %s (%v), polling", w.path, err)
			w.polling = true
		} else {
			w.fsWatcher = fsw
			go w.watchNotify(ctx, fsw)
		}
	}
	if w.polling {
		go w.watchPolling(ctx)
	}

	w.started = true
	debug.Log("watcher: watching %s (fs=%s polling=%v)", w.path, w.fsType, w.polling)
	return nil
}

func (w *Watcher) openNotify() (*fsnotify.Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		fsw.Close()
		return nil, err
	}
	return fsw, nil
}

// Stop stops watching. The Reloads channel is left open.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.started {
		return
	}
	w.cancel()
	if w.fsWatcher != nil {
		w.fsWatcher.Close()
		w.fsWatcher = nil
	}
	w.debouncer.Cancel()
	w.started = false
}

// Reloads delivers the decoded file after each settled change. Only the
// latest undelivered Reload is kept.
func (w *Watcher) Reloads() <-chan Reload {
	return w.reloads
}

// Path returns the watched file path.
func (w *Watcher) Path() string { return w.path }

// IsPolling reports whether the watcher fell back to polling.
func (w *Watcher) IsPolling() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.polling
}

// IsStarted reports whether the watcher is running.
func (w *Watcher) IsStarted() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.started
}

// FilesystemType returns the classification of the watched file's mount.
func (w *Watcher) FilesystemType() FilesystemType {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.fsType
}

// PollInterval returns the polling interval.
func (w *Watcher) PollInterval() time.Duration { return w.pollInterval }

func (w *Watcher) watchNotify(ctx context.Context, fsw *fsnotify.Watcher) {
	target := filepath.Base(w.path)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != target {
				continue
			}
			switch {
			case event.Has(fsnotify.Write), event.Has(fsnotify.Create):
				w.debouncer.Trigger(w.reload)
			case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
				// Editors that save by rename recreate the file right away.
				w.debouncer.Trigger(w.checkRemoved)
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.onError(err)
		}
	}
}

func (w *Watcher) checkRemoved() {
	if _, err := os.Stat(w.path); os.IsNotExist(err) {
		w.onError(ErrFileRemoved)
		return
	}
	w.reload()
}

func (w *Watcher) watchPolling(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if w.poll() {
				w.debouncer.Trigger(w.reload)
			}
		}
	}
}

// poll stats the file and reports whether it changed since the last poll.
func (w *Watcher) poll() bool {
	info, err := os.Stat(w.path)
	if err != nil {
		switch {
		case os.IsNotExist(err):
			w.mu.Lock()
			had := !w.lastMtime.IsZero()
			w.lastMtime, w.lastSize = time.Time{}, 0
			w.mu.Unlock()
			if had {
				w.onError(ErrFileRemoved)
			}
		case os.IsPermission(err):
			w.onError(ErrPermission)
		default:
			w.onError(err)
		}
		return false
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if info.ModTime().Equal(w.lastMtime) && info.Size() == w.lastSize {
		return false
	}
	w.lastMtime, w.lastSize = info.ModTime(), info.Size()
	return true
}

// reload decodes the file and offers it, replacing an undelivered one.
func (w *Watcher) reload() {
	if !w.IsStarted() {
		return
	}
	r := Read(w.path)
	if r.Err != nil {
		debug.Log("watcher: %v", r.Err)
	}
	for {
		select {
		case w.reloads <- r:
			return
		default:
		}
		select {
		case <-w.reloads:
		default:
		}
	}
}

func envBool(name string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
	case "1", "true", "yes", "y", "on":
		return true
	}
	return false
}
