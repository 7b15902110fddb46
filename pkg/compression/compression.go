// Package compression wraps the stream codecs used for row dump files.
//
// Writers and readers are plain io.WriteCloser / io.ReadCloser values so a
// dump can be encoded straight into a file or an upload body. Readers can
// pick the codec from the leading magic bytes, which lets load accept files
// regardless of their extension.
//
// # Basic Usage
//
//	w, err := compression.NewWriter(f, compression.Zstd, compression.Default)
//	...
//	r, err := compression.NewReader(f, compression.Detect(header))
package compression

import (
	"bytes"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/ajitpratap0/grantsync/pkg/errors"
)

// Algorithm names a codec. The values match the dump.compression setting.
type Algorithm string

const (
	None Algorithm = "none"
	Gzip Algorithm = "gzip"
	Zstd Algorithm = "zstd"
	LZ4  Algorithm = "lz4"
)

// Level trades speed for ratio.
type Level int

const (
	Fastest Level = 1
	Default Level = 5
	Better  Level = 7
	Best    Level = 9
)

// MagicLen is the number of leading bytes Detect needs.
const MagicLen = 4

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
	lz4Magic  = []byte{0x04, 0x22, 0x4d, 0x18}
)

var extensions = map[Algorithm]string{
	None: "",
	Gzip: ".gz",
	Zstd: ".zst",
	LZ4:  ".lz4",
}

// Parse validates a configured codec name. The empty string means None.
func Parse(name string) (Algorithm, error) {
	if name == "" {
		return None, nil
	}
	a := Algorithm(strings.ToLower(name))
	if _, ok := extensions[a]; !ok {
		return "", errors.Newf(errors.ErrorTypeConfig, "unsupported compression %q", name)
	}
	return a, nil
}

// Extension returns the file suffix conventionally used for a.
func (a Algorithm) Extension() string {
	return extensions[a]
}

// FromExtension returns the codec implied by a file name, or None.
func FromExtension(name string) Algorithm {
	for a, ext := range extensions {
		if ext != "" && strings.HasSuffix(name, ext) {
			return a
		}
	}
	return None
}

// Detect inspects the first bytes of a stream.
func Detect(header []byte) Algorithm {
	switch {
	case bytes.HasPrefix(header, zstdMagic):
		return Zstd
	case bytes.HasPrefix(header, lz4Magic):
		return LZ4
	case bytes.HasPrefix(header, gzipMagic):
		return Gzip
	}
	return None
}

// NewWriter compresses into dst. Closing the writer flushes the codec but
// leaves dst open.
func NewWriter(dst io.Writer, a Algorithm, level Level) (io.WriteCloser, error) {
	switch a {
	case None, "":
		return nopWriteCloser{dst}, nil
	case Gzip:
		w, err := gzip.NewWriterLevel(dst, gzipLevel(level))
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "gzip writer")
		}
		return w, nil
	case Zstd:
		w, err := zstd.NewWriter(dst, zstd.WithEncoderLevel(zstdLevel(level)))
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "zstd writer")
		}
		return w, nil
	case LZ4:
		w := lz4.NewWriter(dst)
		if err := w.Apply(lz4.CompressionLevelOption(lz4Level(level))); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "lz4 writer")
		}
		return w, nil
	}
	return nil, errors.Newf(errors.ErrorTypeConfig, "unsupported compression %q", a)
}

// NewReader decompresses src. Closing the reader releases codec state only.
func NewReader(src io.Reader, a Algorithm) (io.ReadCloser, error) {
	switch a {
	case None, "":
		return io.NopCloser(src), nil
	case Gzip:
		r, err := gzip.NewReader(src)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeFile, "gzip reader")
		}
		return r, nil
	case Zstd:
		d, err := zstd.NewReader(src)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeFile, "zstd reader")
		}
		return d.IOReadCloser(), nil
	case LZ4:
		return io.NopCloser(lz4.NewReader(src)), nil
	}
	return nil, errors.Newf(errors.ErrorTypeConfig, "unsupported compression %q", a)
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

func gzipLevel(level Level) int {
	switch level {
	case Fastest:
		return gzip.BestSpeed
	case Best:
		return gzip.BestCompression
	default:
		return gzip.DefaultCompression
	}
}

func lz4Level(level Level) lz4.CompressionLevel {
	switch level {
	case Fastest:
		return lz4.Fast
	case Best:
		return lz4.Level9
	default:
		return lz4.Level5
	}
}

func zstdLevel(level Level) zstd.EncoderLevel {
	switch level {
	case Fastest:
		return zstd.SpeedFastest
	case Better:
		return zstd.SpeedBetterCompression
	case Best:
		return zstd.SpeedBestCompression
	default:
		return zstd.SpeedDefault
	}
}
