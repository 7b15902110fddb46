package sqlsource

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/ajitpratap0/grantsync/pkg/config"
	"github.com/ajitpratap0/grantsync/pkg/engine"
	"github.com/ajitpratap0/grantsync/pkg/errors"
	"github.com/ajitpratap0/grantsync/pkg/source"
	"github.com/ajitpratap0/grantsync/pkg/testutil"
)

func TestText(t *testing.T) {
	at := time.Date(2018, 12, 12, 14, 8, 14, 0, time.UTC)
	tests := []struct {
		in   interface{}
		want string
	}{
		{"abc", "abc"},
		{[]byte("0000222"), "0000222"},
		{at, "2018-12-12 14:08:14.0"},
		{int64(42), "42"},
		{int32(7), "7"},
		{3.5, "3.5"},
		{true, "true"},
		{pgtype.Text{String: "wrapped", Valid: true}, "wrapped"},
	}
	for _, tt := range tests {
		got := text(tt.in)
		require.NotNil(t, got, "%v", tt.in)
		assert.Equal(t, tt.want, *got)
	}

	assert.Nil(t, text(nil))
	assert.Nil(t, text(pgtype.Text{}), "invalid pgtype value is NULL")
}

// sqlite speaks database/sql with ? placeholders, which is all SQL needs.
func openFixture(t *testing.T, overrides map[string]string) *SQL {
	t.Helper()
	ctx := testutil.TestContext(t)
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	_, err = db.ExecContext(ctx, `CREATE TABLE people (
    employee_id TEXT, first_name TEXT, middle_name TEXT, update_timestamp TEXT)`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `INSERT INTO people VALUES
    ('0000222', 'Amanda', NULL, '2018-12-12 14:08:14.0'),
    ('0000333', 'Marsha', 'J', '2019-01-01 00:00:00.0')`)
	require.NoError(t, err)

	s, err := newSQL(ctx, db, config.SourceConfig{Queries: overrides, Timeouts: config.TimeoutConfig{Request: time.Minute}}, source.Question, "test_source")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLRows(t *testing.T) {
	s := openFixture(t, map[string]string{
		"user": `SELECT employee_id AS EMPLOYEE_ID, first_name, middle_name AS MIDDLE_NAME,
  update_timestamp AS UPDATE_TIMESTAMP
FROM people A WHERE {{window}} ORDER BY update_timestamp`,
	})

	rows, err := s.Rows(testutil.TestContext(t), engine.ModeUser, "", "")
	require.NoError(t, err)
	require.Len(t, rows, 2)

	first := rows[0]
	assert.Equal(t, "0000222", first.Value(engine.ColUserEmployeeID))
	assert.Equal(t, "Amanda", first.Value(engine.ColUserFirstName), "column names are upper-cased")
	assert.True(t, first.Has(engine.ColUserMiddleName))
	_, ok := first.Get(engine.ColUserMiddleName)
	assert.False(t, ok, "NULL stays NULL")

	rows, err = s.Rows(testutil.TestContext(t), engine.ModeUser, "2018-12-12 14:08:14.0", "")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "0000333", rows[0].Value(engine.ColUserEmployeeID))
}

func TestSQLRowsBadQuery(t *testing.T) {
	s := openFixture(t, map[string]string{"user": "SELECT * FROM missing_table A WHERE {{window}}"})
	_, err := s.Rows(testutil.TestContext(t), engine.ModeUser, "", "")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeQuery))
}

func TestOpenValidation(t *testing.T) {
	_, err := Open(context.Background(), config.SourceConfig{Driver: config.DriverPostgres})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	_, err = Open(context.Background(), config.SourceConfig{Driver: "oracle", DSN: "x"})
	require.Error(t, err)
}

func TestPostgresIntegration(t *testing.T) {
	dsn := testutil.RequireEnv(t, "GRANTSYNC_TEST_POSTGRES_DSN")
	ctx := testutil.TestContext(t)

	p, err := OpenPostgres(ctx, config.SourceConfig{
		DSN:     dsn,
		Queries: map[string]string{"funder": "SELECT 'NIH' AS PRIME_SPONSOR_CODE, NULL::text AS PRIME_SPONSOR_POLICY, now() AS UPDATE_TIMESTAMP"},
	})
	require.NoError(t, err)
	defer func() { _ = p.Close() }()

	rows, err := p.Rows(ctx, engine.ModeFunder, "", "")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "NIH", rows[0].Value(engine.ColPrimaryFunderLocalKey))
	assert.True(t, rows[0].Has(engine.ColPrimaryFunderPolicy))
	_, err = engine.ParseTimestamp(rows[0].Value(engine.ColUpdateTimestamp))
	assert.NoError(t, err)
}

func TestMySQLIntegration(t *testing.T) {
	dsn := testutil.RequireEnv(t, "GRANTSYNC_TEST_MYSQL_DSN")
	ctx := testutil.TestContext(t)

	s, err := OpenMySQL(ctx, config.SourceConfig{
		DSN:     dsn,
		Queries: map[string]string{"user": "SELECT '0000222' AS EMPLOYEE_ID, NOW() AS UPDATE_TIMESTAMP"},
	})
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	rows, err := s.Rows(ctx, engine.ModeUser, "", "")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "0000222", rows[0].Value(engine.ColUserEmployeeID))
}
