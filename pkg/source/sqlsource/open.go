package sqlsource

import (
	"context"
	"io"

	"github.com/ajitpratap0/grantsync/pkg/config"
	"github.com/ajitpratap0/grantsync/pkg/errors"
	"github.com/ajitpratap0/grantsync/pkg/source"
)

// Source is a RowSource that holds connections.
type Source interface {
	source.RowSource
	io.Closer
}

// Open connects to the database selected by cfg.Driver.
func Open(ctx context.Context, cfg config.SourceConfig) (Source, error) {
	if cfg.DSN == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "source dsn is required")
	}
	switch cfg.Driver {
	case config.DriverPostgres:
		return OpenPostgres(ctx, cfg)
	case config.DriverMySQL:
		return OpenMySQL(ctx, cfg)
	}
	return nil, errors.Newf(errors.ErrorTypeConfig, "unsupported source driver %q", cfg.Driver)
}
