// Package pipeline runs one synchronization job end to end: pull rows from
// the SOURCE, optionally park them in a dump file, reconcile them into the
// STORE, then record the watermark, publish the report and push metrics.
//
// # Actions
//
//	pull   SOURCE -> dump file
//	load   dump file -> STORE
//	sync   SOURCE -> STORE (the default), with an optional dump on the side
//
// # Basic Usage
//
//	job, err := pipeline.New(cfg)
//	outcome, err := job.Run(ctx, pipeline.Request{Mode: engine.ModeGrant})
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ajitpratap0/grantsync/pkg/config"
	"github.com/ajitpratap0/grantsync/pkg/dump"
	"github.com/ajitpratap0/grantsync/pkg/engine"
	"github.com/ajitpratap0/grantsync/pkg/errors"
	"github.com/ajitpratap0/grantsync/pkg/logger"
	"github.com/ajitpratap0/grantsync/pkg/metrics"
	"github.com/ajitpratap0/grantsync/pkg/notify"
	"github.com/ajitpratap0/grantsync/pkg/observability"
	"github.com/ajitpratap0/grantsync/pkg/source"
	"github.com/ajitpratap0/grantsync/pkg/source/sqlsource"
	"github.com/ajitpratap0/grantsync/pkg/store"
	"github.com/ajitpratap0/grantsync/pkg/store/memory"
	"github.com/ajitpratap0/grantsync/pkg/watermark"
)

// Action selects which half of a run to perform.
type Action string

const (
	ActionPull Action = "pull"
	ActionLoad Action = "load"
	ActionSync Action = "sync"
)

// ParseAction maps the CLI spelling to an Action; "" means sync.
func ParseAction(s string) (Action, error) {
	switch Action(s) {
	case "", ActionSync:
		return ActionSync, nil
	case ActionPull, ActionLoad:
		return Action(s), nil
	}
	return "", errors.Newf(errors.ErrorTypeValidation, "unknown action %q (want pull, load or sync)", s)
}

// Request is one invocation.
type Request struct {
	Mode   engine.Mode
	Action Action
	// Start overrides the lower bound taken from the watermark history.
	Start string
	End   string
	// File is where pull writes and load reads. Pull without a file gets a
	// generated name; sync writes a dump only when one is given.
	File string
	// DryRun reconciles into an empty in-memory store and leaves the
	// watermark history untouched.
	DryRun bool
}

// Outcome describes a finished run.
type Outcome struct {
	RunID  string
	Mode   engine.Mode
	Action Action
	// Rows is the number of rows pulled or loaded.
	Rows int
	// Dump is the dump location written or read, if any.
	Dump string
	// Result is nil for pull.
	Result *engine.Result
}

// Job wires configuration to the run's collaborators.
type Job struct {
	cfg        *config.SyncConfig
	deployment engine.Deployment
	source     source.RowSource
	store      store.Client
	notifier   notify.Notifier
	history    *watermark.History
	dumper     *dump.Dumper
	recorder   engine.Recorder
	version    string
	now        func() time.Time
	logger     *zap.Logger
}

// Option customizes a Job.
type Option func(*Job)

// WithSource replaces the configured SOURCE database.
func WithSource(s source.RowSource) Option {
	return func(j *Job) { j.source = s }
}

// WithStore replaces the configured STORE backend.
func WithStore(c store.Client) Option {
	return func(j *Job) { j.store = c }
}

// WithNotifier replaces the configured notifier.
func WithNotifier(n notify.Notifier) Option {
	return func(j *Job) { j.notifier = n }
}

// WithVersion sets the version reported in notifications.
func WithVersion(v string) Option {
	return func(j *Job) { j.version = v }
}

// New validates cfg and resolves the deployment. Connections are opened
// per run.
func New(cfg *config.SyncConfig, opts ...Option) (*Job, error) {
	if cfg == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "configuration is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid configuration")
	}
	d, err := Deployment(cfg)
	if err != nil {
		return nil, err
	}
	history, err := watermark.Open(cfg.Watermark)
	if err != nil {
		return nil, err
	}
	dumper, err := dump.New(cfg.Dump)
	if err != nil {
		return nil, err
	}

	j := &Job{
		cfg:        cfg,
		deployment: d,
		history:    history,
		dumper:     dumper,
		recorder:   metrics.NewRecorder(),
		now:        time.Now,
		logger:     logger.Named("pipeline"),
	}
	for _, opt := range opts {
		opt(j)
	}
	if j.notifier == nil {
		if j.notifier, err = notify.New(cfg.Notify); err != nil {
			return nil, err
		}
	}
	return j, nil
}

// Deployment resolves the named preset and applies the configured
// overrides.
func Deployment(cfg *config.SyncConfig) (engine.Deployment, error) {
	d, err := engine.LookupDeployment(cfg.Deployment)
	if err != nil {
		return engine.Deployment{}, err
	}
	if cfg.Domain != "" {
		d.Domain = cfg.Domain
	}
	if cfg.PolicyBaseURL != "" {
		d.PolicyBaseURL = cfg.PolicyBaseURL
	}
	return d, d.Validate()
}

// Close releases the notifier.
func (j *Job) Close() error {
	return j.notifier.Close()
}

// Run executes req. The report is published whether or not the run
// succeeds; a notification failure is logged and never masks the run's own
// error.
func (j *Job) Run(ctx context.Context, req Request) (*Outcome, error) {
	if req.Action == "" {
		req.Action = ActionSync
	}
	out := &Outcome{RunID: uuid.NewString(), Mode: req.Mode, Action: req.Action}
	ctx = logger.WithRun(ctx, out.RunID, string(req.Mode))
	l := logger.FromContext(ctx, j.logger)
	started := j.now()

	l.Info("starting run",
		zap.String("action", string(req.Action)),
		zap.String("deployment", j.deployment.Name),
		zap.Bool("dry_run", req.DryRun))

	err := j.run(ctx, req, out)
	j.report(ctx, req, out, started, err)
	if perr := metrics.Push(ctx, j.cfg.Metrics, map[string]string{
		"deployment": j.deployment.Name,
		"mode":       string(out.Mode),
	}); perr != nil {
		l.Warn("failed to push metrics", zap.Error(perr))
	}

	if err != nil {
		l.Error("run failed", zap.Error(err), zap.Duration("duration", j.now().Sub(started)))
		return out, err
	}
	l.Info("run finished", zap.Int("rows", out.Rows), zap.Duration("duration", j.now().Sub(started)))
	return out, nil
}

func (j *Job) run(ctx context.Context, req Request, out *Outcome) error {
	switch req.Action {
	case ActionPull, ActionSync:
		if _, ok := engine.GuaranteedColumn(req.Mode); !ok {
			return errors.Newf(errors.ErrorTypeValidation, "unknown mode %q", req.Mode)
		}
	case ActionLoad:
		if req.File == "" {
			return errors.New(errors.ErrorTypeValidation, "load needs a dump file")
		}
	default:
		return errors.Newf(errors.ErrorTypeValidation, "unknown action %q", req.Action)
	}

	var rows []engine.Row
	if req.Action == ActionLoad {
		f, err := j.dumper.Read(ctx, req.File)
		if err != nil {
			return err
		}
		if req.Mode != "" && f.Mode != "" && f.Mode != req.Mode {
			return errors.Newf(errors.ErrorTypeConfigMismatch,
				"Mode of %s was supplied, but the dump was pulled for %s.", req.Mode, f.Mode)
		}
		if req.Mode == "" {
			out.Mode = f.Mode
		}
		out.Dump = req.File
		rows = f.Rows
	} else {
		pulled, err := j.pull(ctx, req, out)
		if err != nil {
			return err
		}
		rows = pulled
	}
	out.Rows = len(rows)

	if req.Action == ActionPull {
		return nil
	}
	return j.load(ctx, req, out, rows)
}

func (j *Job) pull(ctx context.Context, req Request, out *Outcome) ([]engine.Row, error) {
	start := req.Start
	if start == "" {
		last, err := j.history.Last()
		if err != nil {
			return nil, err
		}
		start = last
	}

	src := j.source
	if src == nil {
		opened, err := sqlsource.Open(ctx, j.cfg.Source)
		if err != nil {
			return nil, err
		}
		defer func() { _ = opened.Close() }()
		src = opened
	}

	rows, err := src.Rows(ctx, req.Mode, start, req.End)
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx, j.logger).Info("pulled rows",
		zap.String("start", start),
		zap.String("end", req.End),
		zap.Int("rows", len(rows)))

	location := req.File
	if location == "" && req.Action == ActionPull {
		location = j.dumper.DefaultName(req.Mode, j.now())
	}
	if location != "" {
		f := &dump.File{Mode: req.Mode, Start: start, End: req.End, PulledAt: j.now().UTC(), Rows: rows}
		if err := j.dumper.Write(ctx, location, f); err != nil {
			return nil, err
		}
		out.Dump = location
	}
	return rows, nil
}

func (j *Job) load(ctx context.Context, req Request, out *Outcome, rows []engine.Row) error {
	client, closeStore, err := j.openStore(ctx, req.DryRun)
	if err != nil {
		return err
	}
	defer closeStore()

	tracer := observability.Tracer("github.com/ajitpratap0/grantsync/internal/pipeline")
	eng, err := engine.New(observability.InstrumentStore(client, tracer), j.deployment,
		engine.WithLogger(logger.Named("engine")),
		engine.WithRecorder(j.recorder),
		engine.WithTracer(tracer),
	)
	if err != nil {
		return err
	}

	res, err := eng.Synchronize(ctx, rows, out.Mode)
	if err != nil {
		return err
	}
	out.Result = res

	if req.DryRun {
		return nil
	}
	return j.history.Append(res.Watermark)
}

func (j *Job) openStore(ctx context.Context, dryRun bool) (store.Client, func(), error) {
	if dryRun {
		return memory.New(), func() {}, nil
	}
	if j.store != nil {
		return j.store, func() {}, nil
	}
	client, err := store.Open(ctx, &j.cfg.Store)
	if err != nil {
		return nil, nil, err
	}
	return client, func() {
		if err := store.Close(client); err != nil {
			j.logger.Warn("failed to close store", zap.Error(err))
		}
	}, nil
}

func (j *Job) report(ctx context.Context, req Request, out *Outcome, started time.Time, runErr error) {
	r := &notify.Report{
		RunID:      out.RunID,
		Name:       j.cfg.Name,
		Deployment: j.deployment.Name,
		Mode:       out.Mode,
		Action:     string(req.Action),
		Version:    j.version,
		Succeeded:  runErr == nil,
		StartedAt:  started,
		FinishedAt: j.now(),
	}
	switch {
	case runErr != nil:
		r.Error = runErr.Error()
		r.Summary = "Run failed: " + runErr.Error()
	case out.Result != nil:
		stats := out.Result.Statistics
		r.Statistics = &stats
		r.Watermark = out.Result.Watermark
		r.Summary = out.Result.Report()
	default:
		r.Summary = pullSummary(out)
	}
	if err := j.notifier.Notify(ctx, r); err != nil {
		logger.FromContext(ctx, j.logger).Warn("failed to send report", zap.Error(err))
	}
}

func pullSummary(out *Outcome) string {
	if out.Rows == 0 {
		return engine.NoRecordsReport
	}
	return fmt.Sprintf("Pulled %d %s rows into %s", out.Rows, out.Mode, out.Dump)
}
