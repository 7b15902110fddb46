package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/ajitpratap0/grantsync/pkg/config"
	"github.com/ajitpratap0/grantsync/pkg/errors"
)

// Push sends the default registry to the configured Pushgateway, replacing
// the metrics of the same job and grouping. It does nothing when metrics
// are disabled or no gateway is set.
func Push(ctx context.Context, cfg config.MetricsConfig, grouping map[string]string) error {
	return pushTo(ctx, cfg, prometheus.DefaultGatherer, grouping)
}

func pushTo(ctx context.Context, cfg config.MetricsConfig, g prometheus.Gatherer, grouping map[string]string) error {
	if !cfg.Enabled || cfg.PushGateway == "" {
		return nil
	}
	job := cfg.Job
	if job == "" {
		job = "grantsync"
	}
	p := push.New(cfg.PushGateway, job).Gatherer(g)
	for name, value := range grouping {
		p = p.Grouping(name, value)
	}
	if err := p.PushContext(ctx); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "failed to push metrics").WithDetail("gateway", cfg.PushGateway)
	}
	return nil
}
