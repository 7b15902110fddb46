package watermark

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/grantsync/pkg/config"
	"github.com/ajitpratap0/grantsync/pkg/errors"
	"github.com/ajitpratap0/grantsync/pkg/testutil"
)

func TestLastWithoutFile(t *testing.T) {
	h, err := Open(config.WatermarkConfig{File: filepath.Join(t.TempDir(), "updates.txt")})
	require.NoError(t, err)
	last, err := h.Last()
	require.NoError(t, err)
	assert.Empty(t, last)

	h, err = Open(config.WatermarkConfig{File: filepath.Join(t.TempDir(), "updates.txt"), Initial: "2018-01-01 00:00:00.0"})
	require.NoError(t, err)
	last, err = h.Last()
	require.NoError(t, err)
	assert.Equal(t, "2018-01-01 00:00:00.0", last)
}

func TestLastReadsFinalLine(t *testing.T) {
	path := testutil.WriteFile(t, "updates.txt", []byte("2018-06-01 00:00:00.0\n2018-12-12 14:08:14.0\n\n"))
	h, err := Open(config.WatermarkConfig{File: path, Initial: "2017-01-01"})
	require.NoError(t, err)

	last, err := h.Last()
	require.NoError(t, err)
	assert.Equal(t, "2018-12-12 14:08:14.0", last)
}

func TestAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "updates.txt")
	h, err := Open(config.WatermarkConfig{File: path})
	require.NoError(t, err)

	require.NoError(t, h.Append(""))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "empty watermark writes nothing")

	require.NoError(t, h.Append("2018-12-12 14:08:14.0"))
	require.NoError(t, h.Append("2018-12-12 14:08:14.0"))
	require.NoError(t, h.Append("2018-01-01 00:00:00.0"))
	require.NoError(t, h.Append("2019-01-01 00:00:00.0"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "2018-12-12 14:08:14.0\n2019-01-01 00:00:00.0\n", string(data))

	last, err := h.Last()
	require.NoError(t, err)
	assert.Equal(t, "2019-01-01 00:00:00.0", last)
}

func TestCorruptHistory(t *testing.T) {
	path := testutil.WriteFile(t, "updates.txt", []byte("yesterday\n"))
	h, err := Open(config.WatermarkConfig{File: path})
	require.NoError(t, err)
	_, err = h.Last()
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeData))
}

func TestOpenValidation(t *testing.T) {
	_, err := Open(config.WatermarkConfig{})
	assert.Error(t, err)
	_, err = Open(config.WatermarkConfig{File: "updates.txt", Initial: "soon"})
	assert.Error(t, err)
}
