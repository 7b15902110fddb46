// Package dump reads and writes row files: the hand-off between the pull
// and load actions.
//
// A dump is one JSON document holding the mode, the window it was pulled
// for and the rows in SOURCE order. Files may be compressed; the reader
// detects the codec from the content, not the name. Locations are local
// paths or s3://bucket/key URLs.
package dump

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/ajitpratap0/grantsync/pkg/compression"
	"github.com/ajitpratap0/grantsync/pkg/config"
	"github.com/ajitpratap0/grantsync/pkg/engine"
	"github.com/ajitpratap0/grantsync/pkg/errors"
	"github.com/ajitpratap0/grantsync/pkg/logger"
)

// File is the content of a dump.
type File struct {
	Mode     engine.Mode  `json:"mode"`
	Start    string       `json:"start,omitempty"`
	End      string       `json:"end,omitempty"`
	PulledAt time.Time    `json:"pulledAt"`
	Rows     []engine.Row `json:"rows"`
}

// Dumper moves Files to and from locations.
type Dumper struct {
	codec  compression.Algorithm
	s3cfg  config.S3Config
	s3     *s3Objects
	logger *zap.Logger
}

// New returns a Dumper writing with the codec named in cfg.
func New(cfg config.DumpConfig) (*Dumper, error) {
	codec, err := compression.Parse(cfg.Compression)
	if err != nil {
		return nil, err
	}
	return &Dumper{codec: codec, s3cfg: cfg.S3, logger: logger.Named("dump")}, nil
}

// DefaultName returns a file name for a pull of mode at t, carrying the
// extension of the configured codec.
func (d *Dumper) DefaultName(mode engine.Mode, t time.Time) string {
	return fmt.Sprintf("grantsync-%s-%s.json%s", mode, t.UTC().Format("20060102T150405Z"), d.codec.Extension())
}

// Write encodes f to location, replacing anything already there.
func (d *Dumper) Write(ctx context.Context, location string, f *File) error {
	var buf bytes.Buffer
	w, err := compression.NewWriter(&buf, d.codec, compression.Default)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(w).Encode(f); err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "encode dump")
	}
	if err := w.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "flush dump")
	}

	if bucket, key, ok := parseS3(location); ok {
		objects, err := d.objects(ctx)
		if err != nil {
			return err
		}
		err = objects.put(ctx, bucket, key, buf.Bytes(), map[string]string{
			"mode":        string(f.Mode),
			"rows":        fmt.Sprint(len(f.Rows)),
			"compression": string(d.codec),
		})
		if err != nil {
			return err
		}
	} else if err := writeLocal(location, buf.Bytes()); err != nil {
		return err
	}

	d.logger.Info("wrote dump",
		zap.String("location", location),
		zap.String("mode", string(f.Mode)),
		zap.Int("rows", len(f.Rows)),
		zap.Int("bytes", buf.Len()))
	return nil
}

// Read decodes the dump at location.
func (d *Dumper) Read(ctx context.Context, location string) (*File, error) {
	var (
		rc  io.ReadCloser
		err error
	)
	if bucket, key, ok := parseS3(location); ok {
		objects, oerr := d.objects(ctx)
		if oerr != nil {
			return nil, oerr
		}
		rc, err = objects.get(ctx, bucket, key)
	} else {
		rc, err = os.Open(location)
		if err != nil {
			err = errors.Wrap(err, errors.ErrorTypeFile, "open dump").WithDetail("location", location)
		}
	}
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()

	f, err := decode(rc)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "read dump").WithDetail("location", location)
	}
	d.logger.Info("read dump",
		zap.String("location", location),
		zap.String("mode", string(f.Mode)),
		zap.Int("rows", len(f.Rows)))
	return f, nil
}

func decode(r io.Reader) (*File, error) {
	br := bufio.NewReader(r)
	header, err := br.Peek(compression.MagicLen)
	if err != nil && err != io.EOF {
		return nil, err
	}
	zr, err := compression.NewReader(br, compression.Detect(header))
	if err != nil {
		return nil, err
	}
	defer func() { _ = zr.Close() }()

	var f File
	if err := json.NewDecoder(zr).Decode(&f); err != nil {
		return nil, err
	}
	return &f, nil
}

func writeLocal(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(err, errors.ErrorTypeFile, "create dump directory").WithDetail("path", dir)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil { //nolint:gosec
		return errors.Wrap(err, errors.ErrorTypeFile, "write dump").WithDetail("path", path)
	}
	return nil
}

func parseS3(location string) (bucket, key string, ok bool) {
	rest, ok := strings.CutPrefix(location, "s3://")
	if !ok {
		return "", "", false
	}
	bucket, key, _ = strings.Cut(rest, "/")
	return bucket, key, bucket != "" && key != ""
}
