// Package session holds the state of one experiment viewer: the loaded
// rows, what is selected, and the chart derived from them.
//
// A Session is shared between the goroutine driving it (a terminal UI or an
// HTTP handler), the upload parser and the selection debouncer, so all of
// its state sits behind one mutex.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/vanderheijden86/expview/pkg/aggregate"
	"github.com/vanderheijden86/expview/pkg/chart"
	"github.com/vanderheijden86/expview/pkg/debug"
	"github.com/vanderheijden86/expview/pkg/loader"
	"github.com/vanderheijden86/expview/pkg/model"
	"github.com/vanderheijden86/expview/pkg/selection"
)

// buildChart is swapped in tests to hold a rebuild mid-flight.
var buildChart = chart.Build

// Option configures a Session.
type Option func(*Session)

// WithColors shares a color assigner, e.g. across sessions of one server.
func WithColors(c *aggregate.ColorAssigner) Option {
	return func(s *Session) {
		if c != nil {
			s.colors = c
		}
	}
}

// WithNotifier forwards upload notices and loading changes.
func WithNotifier(n loader.Notifier) Option {
	return func(s *Session) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithQuietPeriod sets the selection debounce period.
func WithQuietPeriod(d time.Duration) Option {
	return func(s *Session) { s.quiet = d }
}

// WithAlignedSteps gap-fills chart series to the shared step axis.
func WithAlignedSteps(on bool) Option {
	return func(s *Session) { s.aligned = on }
}

// WithNoticeLife sets how long upload notices stay visible.
func WithNoticeLife(d time.Duration) Option {
	return func(s *Session) { s.noticeLife = d }
}

// WithParseOptions sets the options for uploaded files.
func WithParseOptions(opts loader.ParseOptions) Option {
	return func(s *Session) { s.parseOpts = opts }
}

// WithFallbackMetric replaces "loss" as the metric chosen for a log
// without metrics.
func WithFallbackMetric(name string) Option {
	return func(s *Session) {
		if name != "" {
			s.fallbackMetric = name
		}
	}
}

// Session is one viewer's state.
type Session struct {
	colors         *aggregate.ColorAssigner
	notifier       loader.Notifier
	quiet          time.Duration
	aligned        bool
	noticeLife     time.Duration
	parseOpts      loader.ParseOptions
	fallbackMetric string

	ingestor  *loader.Ingestor
	debouncer *selection.Debouncer

	mu          sync.Mutex
	source      string
	rows        []model.Row
	summary     aggregate.Summary
	selected    []model.Experiment
	metric      string
	chosen      bool   // metric was picked, not defaulted
	version     uint64 // bumped on every rows or selection change
	loading     bool
	chart       model.ChartData
	subscribers []func(model.ChartData)
	closed      bool
}

// New creates an empty session.
func New(opts ...Option) *Session {
	s := &Session{
		notifier:       loader.NopNotifier{},
		fallbackMetric: aggregate.FallbackMetric,
		summary:        aggregate.Aggregate(nil, nil),
		chart:          model.EmptyChart(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.colors == nil {
		s.colors = aggregate.NewColorAssigner()
	}
	s.metric = s.fallbackMetric
	s.summary.DefaultMetric = s.fallbackMetric

	s.ingestor = loader.NewIngestor(
		loader.WithNotifier(sessionNotifier{s}),
		loader.WithNoticeLife(s.noticeLife),
		loader.WithParseOptions(s.parseOpts),
	)
	s.debouncer = selection.New(func(sel model.Selection) { s.rebuildFor(sel) }, selection.WithQuietPeriod(s.quiet))
	return s
}

// sessionNotifier tracks the upload loading flag before forwarding.
type sessionNotifier struct{ s *Session }

func (n sessionNotifier) Notify(notice model.Notice) { n.s.notifier.Notify(notice) }

func (n sessionNotifier) OnLoading(loading bool) {
	n.s.mu.Lock()
	n.s.loading = loading
	n.s.mu.Unlock()
	n.s.notifier.OnLoading(loading)
}

// Upload parses blob in the background and loads it on success. A failed
// parse leaves the current rows untouched.
func (s *Session) Upload(ctx context.Context, blob *loader.Blob) error {
	return s.ingestor.Upload(ctx, blob, func(res loader.Result) {
		if res.Err != nil {
			return
		}
		s.Load(res.Rows, res.Source)
	})
}

// Load replaces the session's rows. Until a metric has been picked with
// SetMetric the first metric of the rows is selected; a picked metric is
// kept while the new rows still offer it. Selections are pruned to ids that
// remain and the chart is rebuilt.
func (s *Session) Load(rows []model.Row, source string) {
	summary := aggregate.Aggregate(rows, s.colors)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if len(summary.MetricOptions) == 0 || summary.MetricOptions[0].Value == "" {
		summary.DefaultMetric = s.fallbackMetric
	}
	s.rows = rows
	s.source = source
	s.summary = summary
	if s.chosen {
		s.metric = summary.ResolveMetric(s.metric)
	} else {
		s.metric = summary.DefaultMetric
	}
	s.version++
	s.selected = s.resolveLocked(aggregate.ExperimentIDs(s.selected))
	sel := s.selectionLocked()
	s.mu.Unlock()

	debug.Log("session: loaded %d rows from %q, metric %q, %d selected", len(rows), source, sel.Metric, len(sel.Experiments))
	s.changed(sel)
}

// SetExperiments selects experiments by id in the given order. Unknown ids
// are ignored.
func (s *Session) SetExperiments(ids []string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.selected = s.resolveLocked(ids)
	s.version++
	sel := s.selectionLocked()
	s.mu.Unlock()
	s.changed(sel)
}

// ToggleExperiment adds id to the selection or removes it.
func (s *Session) ToggleExperiment(id string) {
	s.mu.Lock()
	ids := aggregate.ExperimentIDs(s.selected)
	s.mu.Unlock()

	out := make([]string, 0, len(ids)+1)
	found := false
	for _, x := range ids {
		if x == id {
			found = true
			continue
		}
		out = append(out, x)
	}
	if !found {
		out = append(out, id)
	}
	s.SetExperiments(out)
}

// SetMetric selects the metric to plot. Any name is accepted; a metric no
// row carries produces empty series.
func (s *Session) SetMetric(name string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.metric = name
	s.chosen = true
	s.version++
	sel := s.selectionLocked()
	s.mu.Unlock()
	s.changed(sel)
}

// changed routes a selection change through the debouncer. An emptied
// selection with nothing pending is rebuilt at once so the chart clears.
func (s *Session) changed(sel model.Selection) {
	s.debouncer.Observe(sel)
	if len(sel.Experiments) == 0 && !s.debouncer.Pending() {
		s.Rebuild()
	}
}

func (s *Session) resolveLocked(ids []string) []model.Experiment {
	out := make([]model.Experiment, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		if e, ok := s.summary.Find(id); ok {
			seen[id] = true
			out = append(out, e)
		}
	}
	return out
}

func (s *Session) selectionLocked() model.Selection {
	exps := make([]model.Experiment, len(s.selected))
	copy(exps, s.selected)
	return model.Selection{Experiments: exps, Metric: s.metric}
}

// Rebuild builds the chart for the current selection immediately.
func (s *Session) Rebuild() model.ChartData {
	s.mu.Lock()
	sel := s.selectionLocked()
	s.mu.Unlock()
	return s.rebuildFor(sel)
}

// rebuildFor builds sel against the current rows. A result is dropped when
// the rows or selection changed while it was being built; that change has
// its own rebuild scheduled or already applied.
func (s *Session) rebuildFor(sel model.Selection) model.ChartData {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return model.EmptyChart()
	}
	rows := s.rows
	version := s.version
	s.mu.Unlock()

	data := buildChart(rows, sel.Experiments, sel.Metric, s.colors, chart.Aligned(s.aligned))

	s.mu.Lock()
	if s.version != version || s.closed {
		s.mu.Unlock()
		debug.Log("session: dropping chart built for version %d", version)
		return data
	}
	s.chart = data
	subs := append([]func(model.ChartData){}, s.subscribers...)
	s.mu.Unlock()

	for _, fn := range subs {
		fn(data)
	}
	return data
}

// OnChart registers fn to receive every rebuilt chart.
func (s *Session) OnChart(fn func(model.ChartData)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

// Chart returns the most recently built chart.
func (s *Session) Chart() model.ChartData {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chart
}

// Rows returns the loaded rows. The slice must not be modified.
func (s *Session) Rows() []model.Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows
}

// Source names where the rows came from.
func (s *Session) Source() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source
}

// Summary returns the experiments and metrics of the loaded rows.
func (s *Session) Summary() aggregate.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summary
}

// Experiments lists the loaded experiments.
func (s *Session) Experiments() []model.Experiment {
	return s.Summary().Experiments
}

// MetricOptions lists the loaded metrics.
func (s *Session) MetricOptions() []model.MetricOption {
	return s.Summary().MetricOptions
}

// Selection returns the current selection.
func (s *Session) Selection() model.Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectionLocked()
}

// SelectedMetric returns the metric being plotted.
func (s *Session) SelectedMetric() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metric
}

// Colors returns the session's color assigner.
func (s *Session) Colors() *aggregate.ColorAssigner { return s.colors }

// Loading reports whether an upload is being parsed.
func (s *Session) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// ChartLoading reports whether a chart rebuild is pending.
func (s *Session) ChartLoading() bool {
	return s.debouncer.Loading()
}

// Aligned reports whether series are gap-filled.
func (s *Session) Aligned() bool { return s.aligned }

// Close cancels any pending rebuild. The session ignores changes afterwards.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.debouncer.Close()
}
