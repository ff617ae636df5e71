// Package selection coalesces rapid selection changes into one chart
// rebuild.
package selection

import (
	"sync"
	"time"

	"github.com/vanderheijden86/expview/pkg/debug"
	"github.com/vanderheijden86/expview/pkg/model"
	"github.com/vanderheijden86/expview/pkg/watcher"
)

// DefaultQuietPeriod is how long the selection must stay unchanged before
// the chart is rebuilt.
const DefaultQuietPeriod = watcher.DefaultDebounceDuration

// Option configures a Debouncer.
type Option func(*Debouncer)

// WithQuietPeriod overrides DefaultQuietPeriod. Non-positive values keep
// the default.
func WithQuietPeriod(d time.Duration) Option {
	return func(db *Debouncer) {
		if d > 0 {
			db.quiet = d
		}
	}
}

// WithLoadingHook is called whenever the loading flag changes.
func WithLoadingHook(fn func(loading bool)) Option {
	return func(db *Debouncer) {
		db.onLoading = fn
	}
}

// Debouncer schedules a rebuild a quiet period after the last non-empty
// selection change (trailing edge). The rebuild receives the most recent
// observed selection, which may have become empty in the meantime.
type Debouncer struct {
	quiet     time.Duration
	rebuild   func(model.Selection)
	onLoading func(bool)
	timer     *watcher.Debouncer

	mu      sync.Mutex
	latest  model.Selection
	gen     uint64
	loading bool
	closed  bool
}

// New creates a Debouncer that calls rebuild on its own goroutine.
func New(rebuild func(model.Selection), opts ...Option) *Debouncer {
	d := &Debouncer{
		quiet:   DefaultQuietPeriod,
		rebuild: rebuild,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.timer = watcher.NewDebouncer(d.quiet)
	return d
}

// Observe records a selection change. A change with at least one
// experiment marks the chart as loading and restarts the quiet period; an
// empty one schedules nothing.
func (d *Debouncer) Observe(sel model.Selection) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.latest = sel
	if len(sel.Experiments) == 0 {
		d.mu.Unlock()
		return
	}
	d.gen++
	gen := d.gen
	changed := d.setLoadingLocked(true)
	// Triggering under the lock keeps timer order equal to gen order.
	d.timer.Trigger(func() { d.fire(gen) })
	d.mu.Unlock()

	if changed {
		d.notifyLoading(true)
	}
	debug.Log("selection: %d experiments, metric %q; rebuild in %v", len(sel.Experiments), sel.Metric, d.quiet)
}

func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	if d.closed || gen != d.gen {
		d.mu.Unlock()
		return
	}
	sel := d.latest
	d.mu.Unlock()

	if d.rebuild != nil {
		d.rebuild(sel)
	}

	d.mu.Lock()
	// A newer change keeps the chart loading.
	changed := false
	if gen == d.gen && !d.closed {
		changed = d.setLoadingLocked(false)
	}
	d.mu.Unlock()
	if changed {
		d.notifyLoading(false)
	}
}

func (d *Debouncer) setLoadingLocked(v bool) bool {
	if d.loading == v {
		return false
	}
	d.loading = v
	return true
}

func (d *Debouncer) notifyLoading(v bool) {
	if d.onLoading != nil {
		d.onLoading(v)
	}
}

// Loading reports whether a rebuild is pending or running.
func (d *Debouncer) Loading() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.loading
}

// Pending reports whether a rebuild is scheduled and has not fired.
func (d *Debouncer) Pending() bool {
	return d.timer.Pending()
}

// QuietPeriod returns the configured quiet period.
func (d *Debouncer) QuietPeriod() time.Duration {
	return d.quiet
}

// Close cancels any pending rebuild. Later calls to Observe are ignored.
// Close is idempotent.
func (d *Debouncer) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.gen++
	d.loading = false
	d.timer.Cancel()
	d.mu.Unlock()
}
