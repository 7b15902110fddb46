// Package engine reconciles SOURCE rows into the STORE.
//
// # Overview
//
// A run takes the rows of one incremental pull and a mode:
//   - grant: rows sharing a grant key collapse into one Grant; its funders and
//     investigators are resolved and written first
//   - user: every row refreshes an existing User; unknown users are ignored
//   - funder: every row creates or refreshes a Funder
//
// Each entity goes through the same create-or-update protocol: look it up by
// its namespaced natural key, merge with the stored copy through the
// deployment's Comparator, and write only when the merge reports a change.
// Natural keys resolved once in a run are never looked up again in it.
//
// # Usage
//
//	eng, err := engine.New(client, deployment, engine.WithLogger(log))
//	res, err := eng.Synchronize(ctx, rows, engine.ModeGrant)
//	fmt.Println(res.Statistics.Report())
//	next := res.Watermark // lower bound of the next pull
//
// An Engine may be reused for any number of sequential runs but must not run
// two Synchronize calls at once. Writes made before a failure stay in the
// STORE; the watermark of a failed run must not be persisted.
package engine

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ajitpratap0/grantsync/pkg/errors"
	"github.com/ajitpratap0/grantsync/pkg/logger"
	"github.com/ajitpratap0/grantsync/pkg/models"
	"github.com/ajitpratap0/grantsync/pkg/store"
)

// Recorder receives engine events, typically to feed metrics.
type Recorder interface {
	ObserveEntity(kind models.Kind, action Action)
	ObserveRun(stats Statistics, duration time.Duration, err error)
}

type nopRecorder struct{}

func (nopRecorder) ObserveEntity(models.Kind, Action)           {}
func (nopRecorder) ObserveRun(Statistics, time.Duration, error) {}

// Result is the outcome of a successful run.
type Result struct {
	Statistics Statistics
	// Watermark is the latest update timestamp seen, "" if none.
	Watermark string
	// Grants maps each reconciled grant's reference to the grant as written.
	Grants map[models.Reference]*models.Grant
	// GrantOrder lists Grants keys in reconcile order.
	GrantOrder []models.Reference
}

// Report renders the run summary.
func (r *Result) Report() string { return r.Statistics.Report() }

// Engine drives reconciliation runs against one STORE for one deployment.
type Engine struct {
	store      store.Client
	deployment Deployment
	logger     *zap.Logger
	recorder   Recorder
	tracer     trace.Tracer
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithTracer sets the tracer; the default comes from the global provider.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) { e.tracer = t }
}

// New creates an engine writing to client for deployment d.
func New(client store.Client, d Deployment, opts ...Option) (*Engine, error) {
	if client == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "store client is required")
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		store:      client,
		deployment: d,
		logger:     logger.Named("engine"),
		recorder:   nopRecorder{},
		tracer:     otel.Tracer("github.com/ajitpratap0/grantsync/pkg/engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Deployment returns the deployment the engine was built for.
func (e *Engine) Deployment() Deployment { return e.deployment }

// Synchronize reconciles rows into the STORE under mode. It fails with
// ErrorTypeConfigMismatch, before any STORE call, when the first row lacks
// the column the mode guarantees.
func (e *Engine) Synchronize(ctx context.Context, rows []Row, mode Mode) (*Result, error) {
	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "engine.Synchronize", trace.WithAttributes(
		attribute.String("mode", string(mode)),
		attribute.Int("rows", len(rows)),
	))
	defer span.End()

	st := newRunState(mode)
	err := e.run(ctx, st, rows)
	e.recorder.ObserveRun(st.stats, time.Since(start), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.FromContext(ctx, e.logger).Error("synchronization failed",
			zap.String("mode", string(mode)),
			zap.Int("writes", st.stats.Writes()),
			zap.Error(err))
		return nil, err
	}

	res := &Result{
		Statistics: st.stats,
		Watermark:  st.watermark.Latest(),
		Grants:     st.grants,
		GrantOrder: st.grantOrder,
	}
	logger.FromContext(ctx, e.logger).Info("synchronization finished",
		zap.String("mode", string(mode)),
		zap.Int("rows", res.Statistics.RowsProcessed),
		zap.Int("writes", res.Statistics.Writes()),
		zap.String("watermark", res.Watermark),
		zap.Duration("duration", time.Since(start)))
	return res, nil
}

func (e *Engine) run(ctx context.Context, st *runState, rows []Row) error {
	column, ok := GuaranteedColumn(st.mode)
	if !ok {
		return errors.Newf(errors.ErrorTypeConfig, "unknown mode %q", st.mode)
	}
	if len(rows) == 0 {
		logger.FromContext(ctx, e.logger).Info(NoRecordsReport)
		return nil
	}
	if !rows[0].Has(column) {
		return errors.Newf(errors.ErrorTypeConfigMismatch,
			"Mode of %s was supplied, but data does not seem to match.", st.mode).
			WithDetail("column", column)
	}

	var err error
	switch st.mode {
	case ModeGrant:
		err = e.syncGrants(ctx, st, rows)
	case ModeUser:
		err = e.syncUsers(ctx, st, rows)
	case ModeFunder:
		err = e.syncFunders(ctx, st, rows)
	}
	if err != nil {
		return err
	}

	st.stats.RowsProcessed = len(rows)
	st.stats.LatestWatermark = st.watermark.Latest()
	return nil
}

// syncUsers refreshes the user of every row. Users absent from the STORE are
// not created in this mode.
func (e *Engine) syncUsers(ctx context.Context, st *runState, rows []Row) error {
	logger.FromContext(ctx, e.logger).Info("processing result set", zap.Int("rows", len(rows)))
	for i, row := range rows {
		if _, err := e.reconcileUser(ctx, st, e.deployment.BuildUser(row)); err != nil {
			return errors.Wrap(err, errors.ErrorTypeInternal, "reconcile user").WithDetail("row", i)
		}
		if err := st.watermark.Fold(row.Get(ColUpdateTimestamp)); err != nil {
			return errors.Wrap(err, errors.ErrorTypeData, "fold update timestamp").WithDetail("row", i)
		}
	}
	st.stats.EntitiesProcessed = len(rows)
	return nil
}

// syncFunders creates or refreshes the primary funder of every row.
func (e *Engine) syncFunders(ctx context.Context, st *runState, rows []Row) error {
	log := logger.FromContext(ctx, e.logger)
	log.Info("processing result set", zap.Int("rows", len(rows)))
	for i, row := range rows {
		funder := e.deployment.BuildPrimaryFunder(row)
		if funder.LocalKey == "" {
			log.Warn("skipping funder row without local key", zap.Int("row", i))
		} else if _, err := e.reconcileFunder(ctx, st, funder); err != nil {
			return errors.Wrap(err, errors.ErrorTypeInternal, "reconcile funder").WithDetail("row", i)
		}
		if err := st.watermark.Fold(row.Get(ColUpdateTimestamp)); err != nil {
			return errors.Wrap(err, errors.ErrorTypeData, "fold update timestamp").WithDetail("row", i)
		}
	}
	st.stats.EntitiesProcessed = len(rows)
	return nil
}
