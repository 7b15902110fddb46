package sqlsource

import (
	"context"
	"database/sql"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql" // registers the "mysql" driver
	"go.uber.org/zap"

	"github.com/ajitpratap0/grantsync/pkg/config"
	"github.com/ajitpratap0/grantsync/pkg/engine"
	"github.com/ajitpratap0/grantsync/pkg/errors"
	"github.com/ajitpratap0/grantsync/pkg/logger"
	"github.com/ajitpratap0/grantsync/pkg/source"
)

// SQL reads rows through database/sql. It serves MySQL.
type SQL struct {
	db          *sql.DB
	queries     map[string]string
	timeout     time.Duration
	placeholder source.Placeholder
	logger      *zap.Logger
}

var _ source.RowSource = (*SQL)(nil)

// OpenMySQL opens a MySQL database from cfg.
func OpenMySQL(ctx context.Context, cfg config.SourceConfig) (*SQL, error) {
	db, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to parse connection string")
	}
	return newSQL(ctx, db, cfg, source.Question, "mysql_source")
}

func newSQL(ctx context.Context, db *sql.DB, cfg config.SourceConfig, ph source.Placeholder, component string) (*SQL, error) {
	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
	}
	if cfg.Timeouts.Idle > 0 {
		db.SetConnMaxIdleTime(cfg.Timeouts.Idle)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to reach source database")
	}
	return &SQL{
		db:          db,
		queries:     cfg.Queries,
		timeout:     cfg.Timeouts.Request,
		placeholder: ph,
		logger:      logger.Named(component),
	}, nil
}

// Rows implements source.RowSource.
func (s *SQL) Rows(ctx context.Context, mode engine.Mode, start, end string) ([]engine.Row, error) {
	q, err := source.BuildQuery(mode, start, end, s.queries, s.placeholder)
	if err != nil {
		return nil, err
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	rows, err := s.db.QueryContext(ctx, q.SQL, q.Args...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeQuery, "source query failed").WithDetail("mode", string(mode))
	}
	defer func() { _ = rows.Close() }()

	out, err := scanAll(rows)
	if err != nil {
		return nil, err
	}
	s.logger.Info("pulled source rows", zap.String("mode", string(mode)), zap.Int("rows", len(out)))
	return out, nil
}

func scanAll(rows *sql.Rows) ([]engine.Row, error) {
	names, err := rows.Columns()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to read columns")
	}
	for i := range names {
		names[i] = strings.ToUpper(names[i])
	}

	cells := make([]interface{}, len(names))
	dest := make([]interface{}, len(names))
	for i := range cells {
		dest[i] = &cells[i]
	}

	var out []engine.Row
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to scan row")
		}
		row := make(engine.Row, len(names))
		for i, c := range cells {
			row[names[i]] = text(c)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeQuery, "source query failed")
	}
	return out, nil
}

// Close closes the database handle.
func (s *SQL) Close() error {
	return s.db.Close()
}
