// Package watcher reloads experiment logs when they change on disk.
//
// A Watcher follows one or more files with fsnotify, falling back to stat
// polling on network mounts or when EV_FORCE_POLL is set. Bursts of writes
// are coalesced by a Debouncer so a half-written CSV is not re-parsed for
// every chunk the producer flushes.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultPollInterval is the default polling interval for fallback mode.
const DefaultPollInterval = 2 * time.Second

// Common errors.
var (
	ErrFileRemoved    = errors.New("watched file was removed")
	ErrPermission     = errors.New("permission denied")
	ErrAlreadyStarted = errors.New("watcher already started")
	ErrNoPaths        = errors.New("no files to watch")
)

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounceDuration sets the debounce duration.
func WithDebounceDuration(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.debounceDuration = d
	}
}

// WithPollInterval sets the polling interval for fallback mode.
func WithPollInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.pollInterval = d
	}
}

// WithOnChange sets the callback invoked with the changed paths once a burst
// of writes settles.
func WithOnChange(fn func(paths []string)) WatcherOption {
	return func(w *Watcher) {
		w.onChange = fn
	}
}

// WithOnError sets the callback invoked on errors.
func WithOnError(fn func(error)) WatcherOption {
	return func(w *Watcher) {
		w.onError = fn
	}
}

// WithForcePoll forces polling mode even if fsnotify is available.
func WithForcePoll(force bool) WatcherOption {
	return func(w *Watcher) {
		w.forcePoll = force
	}
}

type fileState struct {
	mtime time.Time
	size  int64
}

// Watcher monitors experiment log files for changes.
type Watcher struct {
	paths            []string
	debounceDuration time.Duration
	pollInterval     time.Duration
	onChange         func([]string)
	onError          func(error)
	forcePoll        bool
	fsType           FilesystemType

	fsWatcher   *fsnotify.Watcher
	debouncer   *Debouncer
	useFallback bool
	state       map[string]fileState
	dirty       map[string]struct{}

	cancel   context.CancelFunc
	started  bool
	mu       sync.RWMutex
	changeCh chan []string
}

// NewWatcher creates a watcher for the given files.
func NewWatcher(paths []string, opts ...WatcherOption) (*Watcher, error) {
	if len(paths) == 0 {
		return nil, ErrNoPaths
	}
	w := &Watcher{
		debounceDuration: DefaultDebounceDuration,
		pollInterval:     DefaultPollInterval,
		onChange:         func([]string) {},
		onError:          func(error) {},
		state:            make(map[string]fileState),
		dirty:            make(map[string]struct{}),
		changeCh:         make(chan []string, 1),
	}
	seen := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("resolving %s: %w", p, err)
		}
		if !seen[abs] {
			seen[abs] = true
			w.paths = append(w.paths, abs)
		}
	}

	for _, opt := range opts {
		opt(w)
	}

	w.debouncer = NewDebouncer(w.debounceDuration)
	return w, nil
}

// Start begins watching. The returned error is only non-nil when a watched
// file cannot be read at all.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started {
		return ErrAlreadyStarted
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.useFallback = w.forcePoll || envBool("EV_FORCE_POLL")

	// Any remote path forces polling for the whole set.
	w.fsType = FSTypeUnknown
	for _, p := range w.paths {
		t := DetectFilesystemType(p)
		if w.fsType == FSTypeUnknown || isRemoteFilesystem(t) {
			w.fsType = t
		}
		if isRemoteFilesystem(t) {
			w.useFallback = true
		}
	}

	for _, p := range w.paths {
		info, err := os.Stat(p)
		switch {
		case err == nil:
			w.state[p] = fileState{mtime: info.ModTime(), size: info.Size()}
		case os.IsPermission(err):
			cancel()
			return ErrPermission
		default:
			// Not created yet.
			w.state[p] = fileState{}
		}
	}

	if !w.useFallback {
		if err := w.startFsnotify(ctx); err != nil {
			w.useFallback = true
		}
	}
	if w.useFallback {
		go w.watchPolling(ctx)
	}

	w.started = true
	return nil
}

// startFsnotify watches the parent directories, which survives editors that
// save by rename.
func (w *Watcher) startFsnotify(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	dirs := make(map[string]bool)
	for _, p := range w.paths {
		dir := filepath.Dir(p)
		if dirs[dir] {
			continue
		}
		if err := fsw.Add(dir); err != nil {
			fsw.Close()
			return err
		}
		dirs[dir] = true
	}
	w.fsWatcher = fsw
	go w.watchFsnotify(ctx, fsw.Events, fsw.Errors)
	return nil
}

// Stop stops watching. The Changed channel is left open so a receiver
// blocked on it is not woken with a zero value.
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
	w.debouncer.Cancel()
	w.dirty = make(map[string]struct{})
	w.started = false
}

// IsPolling returns true if the watcher is using polling mode.
func (w *Watcher) IsPolling() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.useFallback
}

// IsStarted returns true if the watcher is running.
func (w *Watcher) IsStarted() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.started
}

// Changed delivers the changed paths after each settled burst. Bursts that
// arrive while the previous value is unread are dropped; the callback still
// sees them.
func (w *Watcher) Changed() <-chan []string {
	return w.changeCh
}

// Paths returns the watched absolute paths.
func (w *Watcher) Paths() []string {
	out := make([]string, len(w.paths))
	copy(out, w.paths)
	return out
}

// FilesystemType returns the classification used to pick the watch mode.
func (w *Watcher) FilesystemType() FilesystemType {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.fsType
}

// PollInterval returns the polling interval used when polling mode is active.
func (w *Watcher) PollInterval() time.Duration {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.pollInterval
}

func envBool(name string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
	case "1", "true", "yes", "y", "on":
		return true
	default:
		return false
	}
}

func (w *Watcher) isWatched(path string) bool {
	for _, p := range w.paths {
		if p == path {
			return true
		}
	}
	return false
}

func (w *Watcher) watchFsnotify(ctx context.Context, events <-chan fsnotify.Event, errs <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-events:
			if !ok {
				return
			}
			name, err := filepath.Abs(event.Name)
			if err != nil || !w.isWatched(name) {
				continue
			}
			switch {
			case event.Op&fsnotify.Remove != 0:
				w.onError(fmt.Errorf("%s: %w", name, ErrFileRemoved))
			case event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0:
				w.markDirty(name)
			}

		case err, ok := <-errs:
			if !ok {
				return
			}
			w.onError(err)
		}
	}
}

func (w *Watcher) watchPolling(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, p := range w.paths {
				w.pollOne(p)
			}
		}
	}
}

func (w *Watcher) pollOne(path string) {
	info, err := os.Stat(path)
	if err != nil {
		switch {
		case os.IsNotExist(err):
			w.mu.Lock()
			prev := w.state[path]
			// Report a removal once, then wait for the file to come back.
			w.state[path] = fileState{}
			w.mu.Unlock()
			if !prev.mtime.IsZero() {
				w.onError(fmt.Errorf("%s: %w", path, ErrFileRemoved))
			}
		case os.IsPermission(err):
			w.onError(fmt.Errorf("%s: %w", path, ErrPermission))
		default:
			w.onError(err)
		}
		return
	}

	w.mu.Lock()
	prev := w.state[path]
	changed := info.ModTime().After(prev.mtime) || info.Size() != prev.size
	if changed {
		w.state[path] = fileState{mtime: info.ModTime(), size: info.Size()}
	}
	w.mu.Unlock()

	if changed {
		w.markDirty(path)
	}
}

func (w *Watcher) markDirty(path string) {
	w.mu.Lock()
	w.dirty[path] = struct{}{}
	w.mu.Unlock()
	w.debouncer.Trigger(w.flush)
}

// flush hands the accumulated dirty set to the callback and channel.
func (w *Watcher) flush() {
	w.mu.Lock()
	if !w.started || len(w.dirty) == 0 {
		w.mu.Unlock()
		return
	}
	changed := make([]string, 0, len(w.dirty))
	for p := range w.dirty {
		changed = append(changed, p)
	}
	w.dirty = make(map[string]struct{})
	w.mu.Unlock()

	sort.Strings(changed)
	w.onChange(changed)

	select {
	case w.changeCh <- changed:
	default:
	}
}
