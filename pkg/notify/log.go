package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/ajitpratap0/grantsync/pkg/logger"
)

// Log writes reports to a zap logger.
type Log struct {
	logger *zap.Logger
}

// NewLog returns a Log notifier. A nil l uses the global logger.
func NewLog(l *zap.Logger) *Log {
	if l == nil {
		l = logger.Named("notify")
	}
	return &Log{logger: l}
}

// Notify implements Notifier.
func (n *Log) Notify(_ context.Context, r *Report) error {
	fields := []zap.Field{
		zap.String("run_id", r.RunID),
		zap.String("deployment", r.Deployment),
		zap.String("mode", string(r.Mode)),
		zap.String("action", r.Action),
		zap.String("watermark", r.Watermark),
		zap.Duration("duration", r.FinishedAt.Sub(r.StartedAt)),
		zap.String("summary", r.Summary),
	}
	if !r.Succeeded {
		n.logger.Error(r.Subject(), append(fields, zap.String("error", r.Error))...)
		return nil
	}
	n.logger.Info(r.Subject(), fields...)
	return nil
}

// Close implements Notifier.
func (n *Log) Close() error { return nil }
