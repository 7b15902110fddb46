// Package store defines the narrow contract grantsync needs from the target
// repository, and the backends that implement it.
//
// # Overview
//
// The reconciliation engine only ever issues four blocking calls:
//   - FindByAttribute: indexed lookup of a single attribute value
//   - ReadResource: fetch the full stored entity behind a Reference
//   - CreateResource: persist a new entity and return its Reference
//   - UpdateResource: overwrite an existing entity
//
// Backends live in sub-packages:
//
//	store/memory   - in-process maps, used by tests and dry runs
//	store/sqlite   - embedded SQLite database (modernc.org/sqlite)
//	store/mongodb  - MongoDB collections, one per entity kind
//	store/pass     - PASS REST API (Fedora repository + search index)
//
// Backends report a missing resource with ErrNotFound and wrap transport
// failures as errors.ErrorTypeStoreUnavailable.
package store

import (
	"context"
	stderrors "errors"

	"github.com/ajitpratap0/grantsync/pkg/models"
)

// ErrNotFound is returned by ReadResource when nothing is stored under a
// Reference.
var ErrNotFound = stderrors.New("resource not found")

// Client is the STORE contract consumed by the engine.
type Client interface {
	// FindByAttribute returns the Reference of the first entity of kind whose
	// indexed attribute equals value, or "" when there is none. For list
	// attributes (locatorIds) a match on any element counts.
	FindByAttribute(ctx context.Context, kind models.Kind, attribute, value string) (models.Reference, error)

	// ReadResource loads the entity stored under ref.
	ReadResource(ctx context.Context, ref models.Reference, kind models.Kind) (models.Entity, error)

	// CreateResource stores a new entity and returns its Reference.
	CreateResource(ctx context.Context, entity models.Entity) (models.Reference, error)

	// UpdateResource replaces the stored entity under entity.Ref().
	UpdateResource(ctx context.Context, entity models.Entity) error
}

// Closer is implemented by backends holding connections.
type Closer interface {
	Close() error
}
