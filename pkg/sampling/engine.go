package sampling

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/ethoflow/ethoflow/internal/model"
	eferrors "github.com/ethoflow/ethoflow/pkg/errors"
	"github.com/ethoflow/ethoflow/pkg/table"
	"github.com/ethoflow/ethoflow/pkg/validation"
)

const tracerName = "github.com/ethoflow/ethoflow/pkg/sampling"

// UnitDone is reported after each (observation, subject) table is built.
type UnitDone struct {
	ObservationID string
	Subject       string
	Columns       int
	Rows          int
	Elapsed       time.Duration
}

// Engine runs instantaneous sampling over a selection of observations.
// It holds no state between runs and is safe for concurrent use.
type Engine struct {
	workers  int
	logger   *slog.Logger
	tracer   trace.Tracer
	progress func(UnitDone)

	validated func(validation.BatchResult)
}

// Option configures an Engine.
type Option func(*Engine)

// WithWorkers bounds the number of units sampled concurrently.
// Values below 1 mean sequential execution.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n < 1 {
			n = 1
		}
		e.workers = n
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithTracer sets the tracer used for per-unit spans.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) {
		if t != nil {
			e.tracer = t
		}
	}
}

// WithProgress registers a callback invoked after each unit. It may be called
// from several goroutines.
func WithProgress(fn func(UnitDone)) Option {
	return func(e *Engine) {
		e.progress = fn
	}
}

// WithValidated registers a callback RunValidated invokes once pairing
// validation has settled which observations are sampled, before any unit runs.
func WithValidated(fn func(validation.BatchResult)) Option {
	return func(e *Engine) {
		e.validated = fn
	}
}

// NewEngine creates an engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		workers: 1,
		logger:  slog.New(slog.DiscardHandler),
		tracer:  otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type unit struct {
	obs     *model.Observation
	subject string
}

// Run builds one ResultTable per selected observation and subject. Every
// observation must already be validated; see RunValidated.
func (e *Engine) Run(ctx context.Context, p *model.Project, observationIDs []string, params Parameters, interval model.Time) (table.SamplingResult, error) {
	if err := params.Validate(interval); err != nil {
		return nil, err
	}
	stateCodes := params.stateCodes(p.Ethogram)
	if slices.Contains(stateCodes, table.TimeHeader) {
		return nil, eferrors.InvalidParameters("behavior code collides with the time column").
			WithContext("behavior", table.TimeHeader)
	}

	var units []unit
	for _, id := range observationIDs {
		obs, ok := p.Observations[id]
		if !ok {
			return nil, eferrors.InvalidParameters("unknown observation").
				WithContext("observation", id)
		}
		for _, subj := range params.subjects() {
			units = append(units, unit{obs: obs, subject: subj})
		}
	}

	ctx, span := e.tracer.Start(ctx, "sampling.run", trace.WithAttributes(
		attribute.Int("observations", len(observationIDs)),
		attribute.Int("units", len(units)),
		attribute.String("interval", interval.String()),
	))
	defer span.End()

	grid := NewGrid(params.StartTime, params.EndTime, interval)
	tables := make([]*table.ResultTable, len(units))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, u := range units {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			tbl, err := e.sampleUnit(gctx, u, stateCodes, grid, params)
			if err != nil {
				return err
			}
			tables[i] = tbl
			return nil
		})
	}

	err := g.Wait()
	if ctxErr := ctx.Err(); ctxErr != nil {
		span.SetStatus(codes.Error, "canceled")
		return nil, eferrors.ContextCanceled("sampling", ctxErr)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	result := make(table.SamplingResult, len(observationIDs))
	for i, u := range units {
		result.Set(u.obs.ID, model.SubjectKey(u.subject), tables[i])
	}
	return result, nil
}

func (e *Engine) sampleUnit(ctx context.Context, u unit, stateCodes []string, grid Grid, params Parameters) (*table.ResultTable, error) {
	started := time.Now()
	key := model.SubjectKey(u.subject)

	_, span := e.tracer.Start(ctx, "sampling.unit", trace.WithAttributes(
		attribute.String("observation", u.obs.ID),
		attribute.String("subject", u.subject),
	))
	defer span.End()

	events := u.obs.EventsFor(key)
	labels := columnLabels(events, stateCodes, params)

	tbl, err := table.New(labels)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	tbl.Grow(grid.Len())

	resolver := NewResolver(events, key, stateCodes)
	for t := range grid.All() {
		tbl.AppendActive(t, resolver.ActiveStates(t, params.IncludeModifiers))
	}

	done := UnitDone{
		ObservationID: u.obs.ID,
		Subject:       u.subject,
		Columns:       tbl.Width(),
		Rows:          len(tbl.Rows),
		Elapsed:       time.Since(started),
	}
	span.SetAttributes(attribute.Int("columns", done.Columns), attribute.Int("rows", done.Rows))
	e.logger.Debug("sampled unit",
		"observation", done.ObservationID,
		"subject", done.Subject,
		"columns", done.Columns,
		"rows", done.Rows,
		"elapsed", done.Elapsed)
	if e.progress != nil {
		e.progress(done)
	}
	return tbl, nil
}

// columnLabels collects the (behavior, modifier) pairs observed for the
// subject among the selected state codes, adds empty-modifier columns for
// unobserved codes unless excluded, and returns sorted unique labels.
func columnLabels(events []model.Event, stateCodes []string, params Parameters) []string {
	isState := make(map[string]struct{}, len(stateCodes))
	for _, c := range stateCodes {
		isState[c] = struct{}{}
	}

	seen := make(map[table.Column]struct{})
	observed := make(map[string]struct{})
	var cols []table.Column
	for _, ev := range events {
		if _, ok := isState[ev.Behavior]; !ok {
			continue
		}
		observed[ev.Behavior] = struct{}{}
		c := table.Column{Behavior: ev.Behavior, Modifier: ev.Modifier}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		cols = append(cols, c)
	}

	if !params.ExcludeBehaviorsWithoutEvents {
		for _, code := range stateCodes {
			if _, ok := observed[code]; !ok {
				cols = append(cols, table.Column{Behavior: code})
			}
		}
	}

	table.SortColumns(cols)

	labels := make([]string, 0, len(cols))
	unique := make(map[string]struct{}, len(cols))
	for _, c := range cols {
		l := table.Label(c.Behavior, c.Modifier, params.IncludeModifiers)
		if _, dup := unique[l]; dup {
			continue
		}
		unique[l] = struct{}{}
		labels = append(labels, l)
	}
	return labels
}

// Report is the outcome of a validated run.
type Report struct {
	Result     table.SamplingResult
	Validation validation.BatchResult
}

// RunValidated checks state pairing first, drops unpaired observations with a
// warning and samples the rest. An empty remaining selection yields an empty
// result, not an error.
func (e *Engine) RunValidated(ctx context.Context, p *model.Project, observationIDs []string, params Parameters, interval model.Time) (*Report, error) {
	if err := params.Validate(interval); err != nil {
		return nil, err
	}

	batch, err := validation.ValidateBatch(p, observationIDs)
	if err != nil {
		return nil, err
	}
	for _, r := range batch.Rejected {
		e.logger.Warn("observation removed: unpaired state events",
			"observation", r.ObservationID,
			"diagnostics", len(r.Result.Diagnostics))
	}
	if e.validated != nil {
		e.validated(batch)
	}

	report := &Report{Validation: batch, Result: table.SamplingResult{}}
	if len(batch.Kept) == 0 {
		return report, nil
	}

	result, err := e.Run(ctx, p, batch.Kept, params, interval)
	if err != nil {
		return nil, err
	}
	report.Result = result
	return report, nil
}
