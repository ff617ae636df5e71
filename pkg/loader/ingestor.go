package loader

import (
	"context"
	"io"
	"sync/atomic"
	"time"

	"github.com/vanderheijden86/expview/pkg/debug"
	"github.com/vanderheijden86/expview/pkg/model"
)

// Notifier receives ingest progress for display.
type Notifier interface {
	Notify(model.Notice)
	OnLoading(loading bool)
}

// NopNotifier discards all notifications.
type NopNotifier struct{}

func (NopNotifier) Notify(model.Notice) {}
func (NopNotifier) OnLoading(bool)      {}

// Blob is one uploaded file.
type Blob struct {
	Name   string
	Size   int64
	Reader io.Reader
}

// Result is the outcome of one upload. Exactly one of Rows and Err is
// meaningful; a failed parse carries no rows.
type Result struct {
	Source string
	Rows   []model.Row
	Err    error
}

// Notice texts shown for upload outcomes.
const (
	SuccessSummary = "Parsed"
	SuccessDetail  = "CSV parsed successfully."
	ErrorSummary   = "Error"
	ErrorDetail    = "Error parsing CSV file."
)

// IngestorOption configures an Ingestor.
type IngestorOption func(*Ingestor)

// WithNotifier sets where progress notices go.
func WithNotifier(n Notifier) IngestorOption {
	return func(i *Ingestor) {
		if n != nil {
			i.notifier = n
		}
	}
}

// WithNoticeLife sets how long success and failure notices stay visible.
func WithNoticeLife(d time.Duration) IngestorOption {
	return func(i *Ingestor) {
		if d > 0 {
			i.life = d
		}
	}
}

// WithParseOptions sets the options passed to the parser.
func WithParseOptions(opts ParseOptions) IngestorOption {
	return func(i *Ingestor) {
		i.opts = opts
	}
}

// Ingestor parses uploads off the caller's goroutine. One upload is parsed
// at a time; a second Upload while one is in flight is rejected.
type Ingestor struct {
	notifier Notifier
	life     time.Duration
	opts     ParseOptions
	busy     atomic.Bool
}

// NewIngestor creates an Ingestor.
func NewIngestor(opts ...IngestorOption) *Ingestor {
	i := &Ingestor{
		notifier: NopNotifier{},
		life:     model.DefaultNoticeLife,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Busy reports whether an upload is being parsed.
func (i *Ingestor) Busy() bool { return i.busy.Load() }

// Upload starts parsing blob and returns immediately. done is called exactly
// once with the result, before loading is reported finished and before the
// outcome notice. A nil blob returns ErrNoFile without notifying; a
// concurrent call returns ErrUploadInProgress without notifying.
func (i *Ingestor) Upload(ctx context.Context, blob *Blob, done func(Result)) error {
	if blob == nil || blob.Reader == nil {
		return ErrNoFile
	}
	if !i.busy.CompareAndSwap(false, true) {
		return ErrUploadInProgress
	}

	i.notifier.OnLoading(true)
	debug.Log("upload started: %s (%d bytes)", blob.Name, blob.Size)

	go func() {
		defer i.busy.Store(false)

		res := i.parse(ctx, blob)
		if done != nil {
			done(res)
		}
		i.notifier.OnLoading(false)

		if res.Err != nil {
			debug.Log("upload failed: %s: %v", blob.Name, res.Err)
			i.notifier.Notify(model.Notice{
				Severity: model.SeverityError,
				Summary:  ErrorSummary,
				Detail:   ErrorDetail,
				Life:     i.life,
			})
			return
		}
		debug.Log("upload parsed: %s: %d rows", blob.Name, len(res.Rows))
		i.notifier.Notify(model.Notice{
			Severity: model.SeveritySuccess,
			Summary:  SuccessSummary,
			Detail:   SuccessDetail,
			Life:     i.life,
		})
	}()
	return nil
}

func (i *Ingestor) parse(ctx context.Context, blob *Blob) Result {
	res := Result{Source: blob.Name}
	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}
	opts := i.opts
	if opts.Source == "" {
		opts.Source = blob.Name
	}
	rows, err := Parse(blob.Reader, FormatForName(blob.Name), opts)
	if err != nil {
		res.Err = err
		return res
	}
	res.Rows = rows
	return res
}
