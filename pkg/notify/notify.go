// Package notify delivers run reports after every run, successful or not.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/ajitpratap0/grantsync/pkg/config"
	"github.com/ajitpratap0/grantsync/pkg/engine"
	"github.com/ajitpratap0/grantsync/pkg/errors"
)

// Report describes one finished run.
type Report struct {
	RunID      string             `json:"runId"`
	Name       string             `json:"name"`
	Deployment string             `json:"deployment"`
	Mode       engine.Mode        `json:"mode"`
	Action     string             `json:"action"`
	Version    string             `json:"version,omitempty"`
	Succeeded  bool               `json:"succeeded"`
	Error      string             `json:"error,omitempty"`
	Summary    string             `json:"summary"`
	Watermark  string             `json:"watermark,omitempty"`
	Statistics *engine.Statistics `json:"statistics,omitempty"`
	StartedAt  time.Time          `json:"startedAt"`
	FinishedAt time.Time          `json:"finishedAt"`
}

// Subject is a one-line headline for the report.
func (r *Report) Subject() string {
	outcome := "succeeded"
	if !r.Succeeded {
		outcome = "failed"
	}
	return fmt.Sprintf("%s %s %s %s", r.Name, r.Mode, r.Action, outcome)
}

// Notifier sends reports somewhere.
type Notifier interface {
	Notify(ctx context.Context, r *Report) error
	Close() error
}

// New builds the notifier selected by cfg.
func New(cfg config.NotifyConfig) (Notifier, error) {
	switch cfg.Type {
	case config.NotifyNone:
		return Nop{}, nil
	case config.NotifyLog, "":
		return NewLog(nil), nil
	case config.NotifyKafka:
		return NewKafka(cfg.Kafka)
	}
	return nil, errors.Newf(errors.ErrorTypeConfig, "unsupported notifier %q", cfg.Type)
}

// Nop drops every report.
type Nop struct{}

func (Nop) Notify(context.Context, *Report) error { return nil }
func (Nop) Close() error                          { return nil }
