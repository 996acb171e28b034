package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	eferrors "github.com/ethoflow/ethoflow/pkg/errors"
	"github.com/ethoflow/ethoflow/pkg/interfaces"
	"github.com/ethoflow/ethoflow/pkg/table"
)

// OverwritePolicy decides what happens when an output file exists.
type OverwritePolicy string

const (
	Overwrite OverwritePolicy = "overwrite"
	Skip      OverwritePolicy = "skip"
	Fail      OverwritePolicy = "fail"
)

// ParseOverwritePolicy parses a policy name.
func ParseOverwritePolicy(s string) (OverwritePolicy, error) {
	switch p := OverwritePolicy(s); p {
	case Overwrite, Skip, Fail:
		return p, nil
	case "":
		return Fail, nil
	}
	return "", fmt.Errorf("unknown overwrite policy %q (valid: overwrite, skip, fail)", s)
}

// Tracker records completed files so an interrupted export can resume.
type Tracker interface {
	IsDone(ctx context.Context, path string) (bool, error)
	MarkDone(ctx context.Context, path string) error
}

// Status describes what happened to one output file.
type Status string

const (
	StatusWritten Status = "written"
	StatusSkipped Status = "skipped"
	StatusResumed Status = "resumed"
)

// Outcome is the result for one table.
type Outcome struct {
	Unit   table.Unit
	Path   string
	Status Status
	Bytes  int
}

// Writer exports every table of a SamplingResult to an object store.
type Writer struct {
	store   interfaces.ObjectStorage
	format  Format
	opts    Options
	policy  OverwritePolicy
	base    string
	workers int
	tracker Tracker
	logger  *slog.Logger
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithPolicy sets the overwrite policy. Default is Fail.
func WithPolicy(p OverwritePolicy) WriterOption {
	return func(w *Writer) { w.policy = p }
}

// WithBaseName sets the file name used when a single observation is exported.
func WithBaseName(base string) WriterOption {
	return func(w *Writer) { w.base = base }
}

// WithExportWorkers bounds concurrent encodes and uploads.
func WithExportWorkers(n int) WriterOption {
	return func(w *Writer) {
		if n > 0 {
			w.workers = n
		}
	}
}

// WithTracker enables resume through a checkpoint tracker.
func WithTracker(t Tracker) WriterOption {
	return func(w *Writer) { w.tracker = t }
}

// WithWriterLogger sets the logger.
func WithWriterLogger(l *slog.Logger) WriterOption {
	return func(w *Writer) { w.logger = l }
}

// WithEncodeOptions sets encoder options.
func WithEncodeOptions(o Options) WriterOption {
	return func(w *Writer) { w.opts = o }
}

// NewWriter creates a Writer. Unsupported formats are rejected here so no
// file is written.
func NewWriter(store interfaces.ObjectStorage, f Format, opts ...WriterOption) (*Writer, error) {
	if !f.Supported() {
		return nil, eferrors.UnsupportedFormat(string(f))
	}
	w := &Writer{
		store:   store,
		format:  f,
		opts:    DefaultOptions(),
		policy:  Fail,
		workers: 1,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, o := range opts {
		o(w)
	}
	return w, nil
}

// WriteAll exports every table. Outcomes are returned in Units() order.
// Under the Fail policy the first existing file aborts the export with
// OutputExists.
func (w *Writer) WriteAll(ctx context.Context, result table.SamplingResult) ([]Outcome, error) {
	units := result.Units()
	multi := len(result) > 1
	outcomes := make([]Outcome, len(units))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.workers)

	for i, u := range units {
		g.Go(func() error {
			t, _ := result.Get(u.ObservationID, u.Subject)
			out, err := w.writeOne(gctx, u, t, FileName(w.base, u, w.format, multi))
			if err != nil {
				return err
			}
			outcomes[i] = out
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, eferrors.ContextCanceled("export", ctx.Err())
		}
		return nil, err
	}
	return outcomes, nil
}

func (w *Writer) writeOne(ctx context.Context, u table.Unit, t *table.ResultTable, name string) (Outcome, error) {
	out := Outcome{Unit: u, Path: name}

	if w.tracker != nil {
		done, err := w.tracker.IsDone(ctx, name)
		if err != nil {
			return out, fmt.Errorf("checkpoint lookup %s: %w", name, err)
		}
		if done {
			out.Status = StatusResumed
			w.logger.Debug("already exported", "path", name)
			return out, nil
		}
	}

	if w.policy == Skip {
		exists, err := w.store.Exists(ctx, name)
		if err != nil {
			return out, eferrors.Wrapf(err, eferrors.CodeExportFailure, "stat %s", name)
		}
		if exists {
			out.Status = StatusSkipped
			w.logger.Info("output exists, skipping", "path", name)
			return out, nil
		}
	}

	data, err := ExportWithOptions(t, w.format, w.opts)
	if err != nil {
		return out, err
	}

	put := interfaces.PutOptions{
		ContentType: w.format.ContentType(),
		IfNotExists: w.policy == Fail,
		Metadata: map[string]string{
			"observation": u.ObservationID,
			"subject":     SubjectName(u.Subject),
		},
	}
	if err := w.store.Put(ctx, name, bytes.NewReader(data), put); err != nil {
		if errors.Is(err, interfaces.ErrObjectExists) {
			return out, eferrors.OutputExists(name)
		}
		return out, eferrors.Wrapf(err, eferrors.CodeExportFailure, "write %s", name)
	}

	if w.tracker != nil {
		if err := w.tracker.MarkDone(ctx, name); err != nil {
			w.logger.Warn("checkpoint update failed", "path", name, "error", err)
		}
	}

	out.Status = StatusWritten
	out.Bytes = len(data)
	w.logger.Debug("exported", "path", name, "bytes", len(data))
	return out, nil
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	switch f {
	case FormatTSV:
		return "text/tab-separated-values"
	case FormatCSV:
		return "text/csv"
	case FormatHTML:
		return "text/html; charset=utf-8"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatODS:
		return odsMimetype
	case FormatParquet:
		return "application/vnd.apache.parquet"
	}
	return "application/octet-stream"
}
