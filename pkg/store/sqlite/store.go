// Package sqlite implements store.Client on an embedded SQLite database.
//
// Entities are kept as JSON documents in a single resources table. The two
// indexed attributes are projected into columns: localKey into
// resources.local_key and every locatorIds element into its own locator_ids
// row.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/ajitpratap0/grantsync/pkg/config"
	"github.com/ajitpratap0/grantsync/pkg/errors"
	"github.com/ajitpratap0/grantsync/pkg/models"
	"github.com/ajitpratap0/grantsync/pkg/store"
	"github.com/ajitpratap0/grantsync/pkg/store/sqlite/migrations"
)

const refPrefix = "sqlite:"

// Store persists entities in SQLite.
type Store struct {
	db *sql.DB
}

var (
	_ store.Client = (*Store)(nil)
	_ store.Closer = (*Store)(nil)
)

func init() {
	store.Register(config.StoreSQLite, func(ctx context.Context, cfg *config.StoreConfig) (store.Client, error) {
		return Open(ctx, cfg.SQLite.Path)
	})
}

// Open opens (or creates) the database at path and applies migrations.
// ":memory:" opens a private in-process database.
func Open(ctx context.Context, path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	memory := path == ":memory:"
	if !memory {
		path = filepath.Clean(path)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if memory {
		// every connection to :memory: is a fresh database
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(ctx, db, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// FindByAttribute implements store.Client.
func (s *Store) FindByAttribute(ctx context.Context, kind models.Kind, attribute, value string) (models.Reference, error) {
	var query string
	switch attribute {
	case models.AttrLocalKey:
		query = `SELECT id FROM resources WHERE kind = ? AND local_key = ? ORDER BY id LIMIT 1`
	case models.AttrLocatorIDs:
		query = `SELECT r.id FROM locator_ids l
		 JOIN resources r ON r.id = l.resource_id
		 WHERE r.kind = ? AND l.value = ?
		 ORDER BY r.id LIMIT 1`
	default:
		return "", errors.Newf(errors.ErrorTypeValidation, "attribute %s is not indexed", attribute)
	}

	var id int64
	err := s.db.QueryRowContext(ctx, query, string(kind), value).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", unavailable(err, "find "+string(kind))
	}
	return reference(kind, id), nil
}

// ReadResource implements store.Client.
func (s *Store) ReadResource(ctx context.Context, ref models.Reference, kind models.Kind) (models.Entity, error) {
	id, err := parseRef(ref, kind)
	if err != nil {
		return nil, err
	}

	var body string
	err = s.db.QueryRowContext(ctx,
		`SELECT body FROM resources WHERE id = ? AND kind = ?`, id, string(kind),
	).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, unavailable(err, "read "+string(kind))
	}

	entity := models.New(kind)
	if err := json.Unmarshal([]byte(body), entity); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "decode "+string(kind)).
			WithDetail("ref", string(ref))
	}
	entity.SetRef(ref)
	return entity, nil
}

// CreateResource implements store.Client.
func (s *Store) CreateResource(ctx context.Context, entity models.Entity) (models.Reference, error) {
	body, err := encode(entity)
	if err != nil {
		return "", err
	}
	kind := entity.Kind()
	now := time.Now().UTC().UnixMilli()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", unavailable(err, "create "+string(kind))
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO resources (kind, local_key, body, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		string(kind), localKey(entity), body, now, now,
	)
	if err != nil {
		return "", unavailable(err, "create "+string(kind))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return "", unavailable(err, "create "+string(kind))
	}
	if err := writeLocators(ctx, tx, id, entity); err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", unavailable(err, "create "+string(kind))
	}
	return reference(kind, id), nil
}

// UpdateResource implements store.Client.
func (s *Store) UpdateResource(ctx context.Context, entity models.Entity) error {
	kind := entity.Kind()
	id, err := parseRef(entity.Ref(), kind)
	if err != nil {
		return err
	}
	body, err := encode(entity)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable(err, "update "+string(kind))
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`UPDATE resources SET local_key = ?, body = ?, updated_at = ? WHERE id = ? AND kind = ?`,
		localKey(entity), body, time.Now().UTC().UnixMilli(), id, string(kind),
	)
	if err != nil {
		return unavailable(err, "update "+string(kind))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.Wrap(store.ErrNotFound, errors.ErrorTypeNotFound, "update "+string(kind)).
			WithDetail("ref", string(entity.Ref()))
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM locator_ids WHERE resource_id = ?`, id); err != nil {
		return unavailable(err, "update "+string(kind))
	}
	if err := writeLocators(ctx, tx, id, entity); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return unavailable(err, "update "+string(kind))
	}
	return nil
}

// Count returns how many entities of kind are stored.
func (s *Store) Count(ctx context.Context, kind models.Kind) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM resources WHERE kind = ?`, string(kind)).Scan(&n); err != nil {
		return 0, unavailable(err, "count "+string(kind))
	}
	return n, nil
}

func writeLocators(ctx context.Context, tx *sql.Tx, id int64, entity models.Entity) error {
	u, ok := entity.(*models.User)
	if !ok {
		return nil
	}
	for _, locator := range u.LocatorIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO locator_ids (resource_id, value) VALUES (?, ?)`, id, locator,
		); err != nil {
			return unavailable(err, "index locators")
		}
	}
	return nil
}

func encode(entity models.Entity) (string, error) {
	body, err := json.Marshal(entity)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeData, "encode "+string(entity.Kind()))
	}
	return string(body), nil
}

func localKey(entity models.Entity) sql.NullString {
	switch v := entity.(type) {
	case *models.Funder:
		return sql.NullString{String: v.LocalKey, Valid: true}
	case *models.Grant:
		return sql.NullString{String: v.LocalKey, Valid: true}
	}
	return sql.NullString{}
}

func reference(kind models.Kind, id int64) models.Reference {
	return models.Reference(refPrefix + string(kind) + "/" + strconv.FormatInt(id, 10))
}

func parseRef(ref models.Reference, kind models.Kind) (int64, error) {
	raw, ok := strings.CutPrefix(string(ref), refPrefix+string(kind)+"/")
	if !ok {
		return 0, errors.Newf(errors.ErrorTypeValidation, "reference %q is not a sqlite %s", ref, kind)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeValidation, "malformed reference").
			WithDetail("ref", string(ref))
	}
	return id, nil
}

func unavailable(err error, op string) error {
	return errors.Wrap(err, errors.ErrorTypeStoreUnavailable, op)
}
