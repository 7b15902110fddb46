// Package watermark keeps the update history between runs: a text file with
// one SOURCE timestamp per line, oldest first. The last line is the lower
// bound of the next run's query window.
package watermark

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/ajitpratap0/grantsync/pkg/config"
	"github.com/ajitpratap0/grantsync/pkg/engine"
	"github.com/ajitpratap0/grantsync/pkg/errors"
	"github.com/ajitpratap0/grantsync/pkg/logger"
)

// History is an append-only watermark file.
type History struct {
	path    string
	initial string
	logger  *zap.Logger
}

// Open returns the history described by cfg. The file need not exist yet.
func Open(cfg config.WatermarkConfig) (*History, error) {
	if cfg.File == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "watermark file is required")
	}
	if cfg.Initial != "" {
		if _, err := engine.ParseTimestamp(cfg.Initial); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid initial watermark")
		}
	}
	return &History{path: cfg.File, initial: cfg.Initial, logger: logger.Named("watermark")}, nil
}

// Path returns the file location.
func (h *History) Path() string { return h.path }

// Last returns the newest recorded watermark. Without a file, or with an
// empty one, it returns the configured initial value, which may be "".
func (h *History) Last() (string, error) {
	f, err := os.Open(h.path)
	if os.IsNotExist(err) {
		return h.initial, nil
	}
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeFile, "open watermark history").WithDetail("path", h.path)
	}
	defer func() { _ = f.Close() }()

	last := ""
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			last = line
		}
	}
	if err := scanner.Err(); err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeFile, "read watermark history").WithDetail("path", h.path)
	}
	if last == "" {
		return h.initial, nil
	}
	if _, err := engine.ParseTimestamp(last); err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeData, "corrupt watermark history").WithDetail("path", h.path)
	}
	return last, nil
}

// Append records value after a successful run. Empty values are ignored, as
// is a value older than the current last line, so the file never goes
// backwards.
func (h *History) Append(value string) error {
	if value == "" {
		return nil
	}
	last, err := h.Last()
	if err != nil {
		return err
	}
	later, err := engine.LaterOf(value, last)
	if err != nil {
		return err
	}
	if later != value {
		h.logger.Warn("not recording older watermark", zap.String("watermark", value), zap.String("last", last))
		return nil
	}
	if later == last {
		return nil
	}

	if dir := filepath.Dir(h.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(err, errors.ErrorTypeFile, "create watermark directory").WithDetail("path", dir)
		}
	}
	f, err := os.OpenFile(h.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644) //nolint:gosec
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "open watermark history").WithDetail("path", h.path)
	}
	if _, err := f.WriteString(value + "\n"); err != nil {
		_ = f.Close()
		return errors.Wrap(err, errors.ErrorTypeFile, "append watermark").WithDetail("path", h.path)
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "close watermark history").WithDetail("path", h.path)
	}
	h.logger.Info("recorded watermark", zap.String("watermark", value))
	return nil
}
