package compression

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	original := []byte(strings.Repeat(`{"GRANT_NUMBER":"90045678","EMPLOYEE_ID":"0000222"}`+"\n", 200))

	for _, a := range []Algorithm{None, Gzip, Zstd, LZ4} {
		for _, level := range []Level{Fastest, Default, Best} {
			var buf bytes.Buffer
			w, err := NewWriter(&buf, a, level)
			require.NoError(t, err, a)
			_, err = w.Write(original)
			require.NoError(t, err)
			require.NoError(t, w.Close())

			if a != None {
				assert.Less(t, buf.Len(), len(original), "%s should shrink repetitive input", a)
			}
			assert.Equal(t, a, Detect(buf.Bytes()[:MagicLen]), "magic for %s", a)

			r, err := NewReader(&buf, a)
			require.NoError(t, err)
			got, err := io.ReadAll(r)
			require.NoError(t, err)
			require.NoError(t, r.Close())
			assert.Equal(t, original, got, "%s level %d", a, level)
		}
	}
}

func TestParse(t *testing.T) {
	a, err := Parse("")
	require.NoError(t, err)
	assert.Equal(t, None, a)

	a, err = Parse("ZSTD")
	require.NoError(t, err)
	assert.Equal(t, Zstd, a)

	_, err = Parse("snappy")
	assert.Error(t, err)
}

func TestExtensions(t *testing.T) {
	assert.Equal(t, ".zst", Zstd.Extension())
	assert.Equal(t, "", None.Extension())
	assert.Equal(t, Gzip, FromExtension("rows-2019.json.gz"))
	assert.Equal(t, LZ4, FromExtension("s3://bucket/rows.json.lz4"))
	assert.Equal(t, None, FromExtension("rows.json"))
}

func TestDetectPlainJSON(t *testing.T) {
	assert.Equal(t, None, Detect([]byte(`{"mo`)))
	assert.Equal(t, None, Detect(nil))
}
