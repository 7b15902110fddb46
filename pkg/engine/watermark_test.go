package engine_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/grantsync/pkg/engine"
	"github.com/ajitpratap0/grantsync/pkg/errors"
)

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2018-05-01 12:30:45.0", time.Date(2018, 5, 1, 12, 30, 45, 0, time.UTC)},
		{"2018-05-01 12:30:45.123456", time.Date(2018, 5, 1, 12, 30, 45, 123456000, time.UTC)},
		{"2018-05-01 12:30:45", time.Date(2018, 5, 1, 12, 30, 45, 0, time.UTC)},
		{"2018-05-01", time.Date(2018, 5, 1, 0, 0, 0, 0, time.UTC)},
		{"05/01/2018", time.Date(2018, 5, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		got, err := engine.ParseTimestamp(tt.in)
		require.NoError(t, err, tt.in)
		assert.True(t, tt.want.Equal(got), "%s: got %v", tt.in, got)
	}

	_, err := engine.ParseTimestamp("yesterday")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeData))
}

func TestWatermarkFold(t *testing.T) {
	var w engine.Watermark
	require.NoError(t, w.Fold("", false))
	assert.Empty(t, w.Latest())

	require.NoError(t, w.Fold("2020-01-10 00:00:00.0", true))
	require.NoError(t, w.Fold("2020-01-09 23:59:59.9", true))
	require.NoError(t, w.Fold("", false))
	assert.Equal(t, "2020-01-10 00:00:00.0", w.Latest())

	require.NoError(t, w.Fold("2020-01-10 00:00:00.01", true))
	assert.Equal(t, "2020-01-10 00:00:00.01", w.Latest())
}

func TestWatermarkTakesFirstValueUnparsed(t *testing.T) {
	var w engine.Watermark
	require.NoError(t, w.Fold("not a date", true))
	assert.Equal(t, "not a date", w.Latest())

	err := w.Fold("2020-01-01 00:00:00.0", true)
	require.Error(t, err)
	assert.Equal(t, "not a date", w.Latest())
}

func TestLaterOf(t *testing.T) {
	got, err := engine.LaterOf("2020-01-02 00:00:00.0", "2020-01-03")
	require.NoError(t, err)
	assert.Equal(t, "2020-01-03", got)

	got, err = engine.LaterOf("", "2020-01-03")
	require.NoError(t, err)
	assert.Equal(t, "2020-01-03", got)

	got, err = engine.LaterOf("2020-01-02 00:00:00.0", "")
	require.NoError(t, err)
	assert.Equal(t, "2020-01-02 00:00:00.0", got)
}
