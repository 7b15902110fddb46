package engine

import (
	"time"

	"github.com/ajitpratap0/grantsync/pkg/errors"
)

// timestampLayouts are the datetime renderings the SOURCE emits, most common
// first. The fractional layout accepts zero to nine digits.
var timestampLayouts = []string{
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
	"01/02/2006",
}

// ParseTimestamp parses a SOURCE datetime string.
func ParseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.Newf(errors.ErrorTypeData, "unparsable timestamp %q", s)
}

// Watermark tracks the latest update timestamp seen in a run. It keeps the
// original string so the next run queries with exactly what the SOURCE
// produced.
type Watermark struct {
	latest string
	at     time.Time
}

// Latest returns the current watermark, or "" before anything was folded.
func (w *Watermark) Latest() string { return w.latest }

// Fold merges candidate into the watermark. NULL candidates are ignored.
// The first value is taken without parsing; afterwards the chronologically
// later of the two strings wins and ties keep the current value.
func (w *Watermark) Fold(candidate string, ok bool) error {
	if !ok {
		return nil
	}
	if w.latest == "" {
		w.latest = candidate
		return nil
	}

	if w.at.IsZero() {
		t, err := ParseTimestamp(w.latest)
		if err != nil {
			return err
		}
		w.at = t
	}
	t, err := ParseTimestamp(candidate)
	if err != nil {
		return err
	}
	if t.After(w.at) {
		w.latest = candidate
		w.at = t
	}
	return nil
}

// LaterOf returns whichever of a and b is chronologically later, preferring
// a on ties. Either side may be empty.
func LaterOf(a, b string) (string, error) {
	var w Watermark
	if err := w.Fold(a, a != ""); err != nil {
		return "", err
	}
	if err := w.Fold(b, b != ""); err != nil {
		return "", err
	}
	return w.Latest(), nil
}
