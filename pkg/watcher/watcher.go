// Package watcher feeds the explorer with file-change events for the
// registered solution files and the workspace config. It uses fsnotify
// on the files' parent directories (more reliable for editors that
// write via rename) with a polling fallback, and debounces bursts so a
// single save produces a single event.
//
// The watcher only produces notifications; deciding whether a change
// invalidates the tree is the provider's business.
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

	"github.com/NuranDp/vscode-solution-explorer/pkg/debug"
)

// Defaults for debounce and fallback polling.
const (
	DefaultDebounceDuration = 200 * time.Millisecond
	DefaultPollInterval     = 2 * time.Second
)

// Common errors.
var (
	ErrAlreadyStarted = errors.New("watcher already started")
	ErrNoPaths        = errors.New("watcher has no paths to watch")
	ErrPermission     = errors.New("permission denied")
)

// Event reports that a watched file changed on disk.
type Event struct {
	Path string
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the per-path debounce duration.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		w.debounceDuration = d
	}
}

// WithPollInterval sets the polling interval for fallback mode.
func WithPollInterval(d time.Duration) Option {
	return func(w *Watcher) {
		w.pollInterval = d
	}
}

// WithOnError sets the callback invoked on watch errors.
func WithOnError(fn func(error)) Option {
	return func(w *Watcher) {
		w.onError = fn
	}
}

// WithForcePoll forces polling mode even if fsnotify is available.
func WithForcePoll(force bool) Option {
	return func(w *Watcher) {
		w.forcePoll = force
	}
}

// fileState is the last observed stat of one watched path, for the
// polling fallback's change detection.
type fileState struct {
	mtime time.Time
	size  int64
}

// Watcher monitors a set of files using fsnotify with polling fallback.
type Watcher struct {
	debounceDuration time.Duration
	pollInterval     time.Duration
	onError          func(error)
	forcePoll        bool

	mu         sync.RWMutex
	paths      map[string]*fileState
	debouncers map[string]*Debouncer
	fsWatcher  *fsnotify.Watcher
	usePoll    bool
	started    bool
	ctx        context.Context
	cancel     context.CancelFunc

	events chan Event
}

// New creates a watcher over the given paths. Paths may also be added
// with Watch before Start. Relative paths are made absolute so events
// carry the same path the caller registered.
func New(paths []string, opts ...Option) (*Watcher, error) {
	w := &Watcher{
		debounceDuration: DefaultDebounceDuration,
		pollInterval:     DefaultPollInterval,
		onError:          func(error) {},
		paths:            make(map[string]*fileState),
		debouncers:       make(map[string]*Debouncer),
		events:           make(chan Event, 16),
	}
	for _, opt := range opts {
		opt(w)
	}
	if err := w.Watch(paths...); err != nil {
		return nil, err
	}
	return w, nil
}

// Watch registers additional paths. Registering after Start takes
// effect for polling immediately and for fsnotify by watching the new
// parent directory.
func (w *Watcher) Watch(paths ...string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, path := range paths {
		abs, err := filepath.Abs(path)
		if err != nil {
			return err
		}
		if _, ok := w.paths[abs]; ok {
			continue
		}
		state := &fileState{}
		if info, err := os.Stat(abs); err == nil {
			state.mtime = info.ModTime()
			state.size = info.Size()
		}
		w.paths[abs] = state
		w.debouncers[abs] = NewDebouncer(w.debounceDuration)
		if w.started && w.fsWatcher != nil {
			if err := w.fsWatcher.Add(filepath.Dir(abs)); err != nil {
				w.onError(err)
			}
		}
	}
	return nil
}

// Start begins watching. Fails with ErrAlreadyStarted when already
// running and ErrNoPaths when nothing was registered.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started {
		return ErrAlreadyStarted
	}
	if len(w.paths) == 0 {
		return ErrNoPaths
	}

	w.ctx, w.cancel = context.WithCancel(context.Background())
	w.usePoll = w.forcePoll || envBool("SLNX_FORCE_POLLING")

	if !w.usePoll {
		fsw, err := fsnotify.NewWatcher()
		if err != nil {
			w.usePoll = true
		} else {
			// Watch parent directories: atomic editor writes replace
			// the file, which only the directory watch sees reliably.
			dirs := make(map[string]struct{})
			for path := range w.paths {
				dirs[filepath.Dir(path)] = struct{}{}
			}
			for dir := range dirs {
				if err := fsw.Add(dir); err != nil {
					fsw.Close()
					fsw = nil
					w.usePoll = true
					break
				}
			}
			if fsw != nil {
				w.fsWatcher = fsw
				go w.watchFsnotify()
			}
		}
	}
	if w.usePoll {
		debug.Log("watcher running in polling mode")
		go w.watchPolling()
	}

	w.started = true
	return nil
}

// Stop stops watching. Idempotent. The events channel is left open:
// closing it would race in-flight debounced notifications, and Stop
// runs at program exit where the draining goroutine dies with the
// process anyway.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.started {
		return
	}
	if w.cancel != nil {
		w.cancel()
	}
	if w.fsWatcher != nil {
		w.fsWatcher.Close()
		w.fsWatcher = nil
	}
	for _, d := range w.debouncers {
		d.Cancel()
	}
	w.started = false
}

// Events returns the channel change events are delivered on. Delivery
// is best-effort: when nobody drains the channel, the oldest events are
// already buffered and new ones are dropped rather than blocking a
// watch goroutine.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// IsPolling reports whether the fallback polling mode is active.
func (w *Watcher) IsPolling() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.usePoll
}

// IsStarted reports whether the watcher is running.
func (w *Watcher) IsStarted() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.started
}

// Paths returns the registered paths.
func (w *Watcher) Paths() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	paths := make([]string, 0, len(w.paths))
	for path := range w.paths {
		paths = append(paths, path)
	}
	return paths
}

// watchFsnotify relays fsnotify events for registered paths through
// their debouncers.
func (w *Watcher) watchFsnotify() {
	w.mu.RLock()
	if w.fsWatcher == nil {
		w.mu.RUnlock()
		return
	}
	events := w.fsWatcher.Events
	errs := w.fsWatcher.Errors
	ctx := w.ctx
	w.mu.RUnlock()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-events:
			if !ok {
				return
			}
			path := filepath.Clean(event.Name)
			w.mu.RLock()
			_, watched := w.paths[path]
			deb := w.debouncers[path]
			w.mu.RUnlock()
			if !watched {
				continue
			}
			// A remove is often half of an atomic replace; report it
			// as a change and let the consumer re-stat.
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
				deb.Trigger(func() { w.notify(path) })
			}

		case err, ok := <-errs:
			if !ok {
				return
			}
			w.onError(err)
		}
	}
}

// watchPolling stats every registered path on an interval and reports
// mtime or size changes.
func (w *Watcher) watchPolling() {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return

		case <-ticker.C:
			for _, path := range w.Paths() {
				info, err := os.Stat(path)
				if err != nil {
					if os.IsPermission(err) {
						w.onError(ErrPermission)
					}
					// Missing file: report once the recreate shows up.
					continue
				}

				w.mu.Lock()
				state := w.paths[path]
				changed := state != nil &&
					(info.ModTime().After(state.mtime) || info.Size() != state.size)
				if changed {
					state.mtime = info.ModTime()
					state.size = info.Size()
				}
				deb := w.debouncers[path]
				w.mu.Unlock()

				if changed {
					deb.Trigger(func() { w.notify(path) })
				}
			}
		}
	}
}

// notify delivers one event, dropping it when the channel is full or
// the watcher already stopped.
func (w *Watcher) notify(path string) {
	w.mu.RLock()
	started := w.started
	w.mu.RUnlock()
	if !started {
		return
	}
	select {
	case w.events <- Event{Path: path}:
	default:
		debug.Log("dropping change event for %s", path)
	}
}

func envBool(name string) bool {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return false
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "y", "on":
		return true
	default:
		return false
	}
}
