// Package metrics exposes Prometheus metrics for synchronization runs.
//
// Metrics are registered on the default registry through promauto. A
// Recorder feeds them from engine events; Push sends the registry to a
// Pushgateway at the end of a batch run, since a run does not live long
// enough to be scraped.
//
// # Basic Usage
//
//	rec := metrics.NewRecorder()
//	eng, _ := engine.New(client, deployment, engine.WithRecorder(rec))
//	...
//	_ = metrics.Push(ctx, cfg.Metrics, map[string]string{"deployment": "default"})
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ajitpratap0/grantsync/pkg/engine"
	"github.com/ajitpratap0/grantsync/pkg/models"
)

var (
	// EntitiesReconciled counts reconcile decisions by entity kind and action.
	EntitiesReconciled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grantsync_entities_reconciled_total",
			Help: "Entities reconciled against the store, by kind and action",
		},
		[]string{"kind", "action"},
	)

	// RowsProcessed counts source rows consumed by mode.
	RowsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grantsync_rows_processed_total",
			Help: "Source rows processed, by mode",
		},
		[]string{"mode"},
	)

	// Runs counts finished runs by mode and status.
	Runs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grantsync_runs_total",
			Help: "Finished synchronization runs, by mode and status",
		},
		[]string{"mode", "status"},
	)

	// RunDuration is the wall time of a Synchronize call.
	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "grantsync_run_duration_seconds",
			Help:    "Duration of synchronization runs",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900, 3600},
		},
		[]string{"mode"},
	)

	// LastWatermark is the latest update timestamp of the last successful
	// run, as unix seconds.
	LastWatermark = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "grantsync_last_watermark_seconds",
			Help: "Latest source update timestamp seen by a successful run",
		},
		[]string{"mode"},
	)

	// StoreRequestDuration measures store calls by operation, kind and outcome.
	StoreRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "grantsync_store_request_duration_seconds",
			Help:    "Latency of store requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "kind", "outcome"},
	)
)

// Recorder implements engine.Recorder on the package metrics.
type Recorder struct{}

var _ engine.Recorder = (*Recorder)(nil)

// NewRecorder returns a Recorder.
func NewRecorder() *Recorder { return &Recorder{} }

// ObserveEntity implements engine.Recorder.
func (*Recorder) ObserveEntity(kind models.Kind, action engine.Action) {
	EntitiesReconciled.WithLabelValues(string(kind), string(action)).Inc()
}

// ObserveRun implements engine.Recorder.
func (*Recorder) ObserveRun(stats engine.Statistics, d time.Duration, err error) {
	mode := string(stats.Mode)
	RowsProcessed.WithLabelValues(mode).Add(float64(stats.RowsProcessed))
	RunDuration.WithLabelValues(mode).Observe(d.Seconds())
	if err != nil {
		Runs.WithLabelValues(mode, "failure").Inc()
		return
	}
	Runs.WithLabelValues(mode, "success").Inc()
	if stats.LatestWatermark == "" {
		return
	}
	if t, perr := engine.ParseTimestamp(stats.LatestWatermark); perr == nil {
		LastWatermark.WithLabelValues(mode).Set(float64(t.Unix()))
	}
}

// Outcome labels a store call.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Timer measures a single operation.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveStore records the elapsed time as a store request and returns it.
func (t *Timer) ObserveStore(operation string, kind models.Kind, err error) time.Duration {
	d := time.Since(t.start)
	StoreRequestDuration.WithLabelValues(operation, string(kind), Outcome(err)).Observe(d.Seconds())
	return d
}
