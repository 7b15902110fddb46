// Package source pulls SOURCE rows for a mode and update window.
//
// A RowSource hands back rows in the engine's column vocabulary; every
// built-in query aliases its columns to the engine.Col* names and orders by
// UPDATE_TIMESTAMP. Deployments whose database differs override the query of
// a mode in configuration.
package source

import (
	"context"

	"github.com/ajitpratap0/grantsync/pkg/engine"
)

// RowSource produces the rows of one run. start is exclusive and end
// inclusive; either may be empty to leave that side of the window open.
type RowSource interface {
	Rows(ctx context.Context, mode engine.Mode, start, end string) ([]engine.Row, error)
}

// Static is a RowSource over rows already in memory, such as a loaded dump.
// It ignores the window.
type Static []engine.Row

// Rows implements RowSource.
func (s Static) Rows(context.Context, engine.Mode, string, string) ([]engine.Row, error) {
	return s, nil
}
