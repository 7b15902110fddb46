// Package sqlsource implements source.RowSource over SQL databases:
// PostgreSQL through a pgx pool and MySQL through database/sql.
package sqlsource

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/ajitpratap0/grantsync/pkg/config"
	"github.com/ajitpratap0/grantsync/pkg/engine"
	"github.com/ajitpratap0/grantsync/pkg/errors"
	"github.com/ajitpratap0/grantsync/pkg/logger"
	"github.com/ajitpratap0/grantsync/pkg/source"
)

// Postgres reads rows from PostgreSQL.
type Postgres struct {
	pool    *pgxpool.Pool
	queries map[string]string
	timeout time.Duration
	logger  *zap.Logger
}

var _ source.RowSource = (*Postgres)(nil)

// OpenPostgres creates a connection pool from cfg and checks that the
// server answers.
func OpenPostgres(ctx context.Context, cfg config.SourceConfig) (*Postgres, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to parse connection string")
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.Timeouts.Idle > 0 {
		poolConfig.MaxConnIdleTime = cfg.Timeouts.Idle
	}
	if cfg.Timeouts.Connection > 0 {
		poolConfig.ConnConfig.ConnectTimeout = cfg.Timeouts.Connection
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to create connection pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to reach PostgreSQL")
	}

	l := logger.Named("postgres_source")
	l.Info("connected to PostgreSQL", zap.Int32("max_connections", poolConfig.MaxConns))
	return &Postgres{pool: pool, queries: cfg.Queries, timeout: cfg.Timeouts.Request, logger: l}, nil
}

// Rows implements source.RowSource.
func (p *Postgres) Rows(ctx context.Context, mode engine.Mode, start, end string) ([]engine.Row, error) {
	q, err := source.BuildQuery(mode, start, end, p.queries, source.Dollar)
	if err != nil {
		return nil, err
	}
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	started := time.Now()
	rows, err := p.pool.Query(ctx, q.SQL, q.Args...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeQuery, "source query failed").WithDetail("mode", string(mode))
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, f := range fields {
		columns[i] = strings.ToUpper(f.Name)
	}

	var out []engine.Row
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to get row values")
		}
		row := make(engine.Row, len(columns))
		for i, v := range values {
			row[columns[i]] = text(v)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeQuery, "source query failed").WithDetail("mode", string(mode))
	}

	p.logger.Info("pulled source rows",
		zap.String("mode", string(mode)),
		zap.Int("rows", len(out)),
		zap.Duration("elapsed", time.Since(started)))
	return out, nil
}

// Close closes the pool.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
