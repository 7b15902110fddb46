// Package memory implements store.Client with in-process maps.
//
// It is the backend behind --dry-run and the fixture for engine tests, so it
// also counts every call it receives.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/ajitpratap0/grantsync/pkg/config"
	"github.com/ajitpratap0/grantsync/pkg/errors"
	"github.com/ajitpratap0/grantsync/pkg/models"
	"github.com/ajitpratap0/grantsync/pkg/store"
)

// Calls counts operations by name ("find", "read", "create", "update") and kind.
type Calls map[string]map[models.Kind]int

// Store is a concurrency-safe in-memory STORE.
type Store struct {
	mu       sync.RWMutex
	entities map[models.Kind]map[models.Reference]models.Entity
	order    map[models.Kind][]models.Reference
	seq      int
	calls    Calls
}

var _ store.Client = (*Store)(nil)

func init() {
	store.Register(config.StoreMemory, func(context.Context, *config.StoreConfig) (store.Client, error) {
		return New(), nil
	})
}

// New returns an empty store.
func New() *Store {
	return &Store{
		entities: make(map[models.Kind]map[models.Reference]models.Entity),
		order:    make(map[models.Kind][]models.Reference),
		calls:    make(Calls),
	}
}

func (s *Store) count(op string, kind models.Kind) {
	if s.calls[op] == nil {
		s.calls[op] = make(map[models.Kind]int)
	}
	s.calls[op][kind]++
}

// FindByAttribute implements store.Client.
func (s *Store) FindByAttribute(_ context.Context, kind models.Kind, attribute, value string) (models.Reference, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("find", kind)

	for _, ref := range s.order[kind] {
		if matches(s.entities[kind][ref], attribute, value) {
			return ref, nil
		}
	}
	return "", nil
}

func matches(e models.Entity, attribute, value string) bool {
	switch v := e.(type) {
	case *models.Funder:
		return attribute == models.AttrLocalKey && v.LocalKey == value
	case *models.Grant:
		return attribute == models.AttrLocalKey && v.LocalKey == value
	case *models.User:
		return attribute == models.AttrLocatorIDs && slices.Contains(v.LocatorIDs, value)
	}
	return false
}

// ReadResource implements store.Client. It returns a copy.
func (s *Store) ReadResource(_ context.Context, ref models.Reference, kind models.Kind) (models.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("read", kind)

	e, ok := s.entities[kind][ref]
	if !ok {
		return nil, store.ErrNotFound
	}
	return clone(e), nil
}

// CreateResource implements store.Client.
func (s *Store) CreateResource(_ context.Context, entity models.Entity) (models.Reference, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kind := entity.Kind()
	s.count("create", kind)

	s.seq++
	ref := models.Reference(fmt.Sprintf("mem://%s/%d", kind, s.seq))
	stored := clone(entity)
	stored.SetRef(ref)

	if s.entities[kind] == nil {
		s.entities[kind] = make(map[models.Reference]models.Entity)
	}
	s.entities[kind][ref] = stored
	s.order[kind] = append(s.order[kind], ref)
	return ref, nil
}

// UpdateResource implements store.Client.
func (s *Store) UpdateResource(_ context.Context, entity models.Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kind := entity.Kind()
	s.count("update", kind)

	ref := entity.Ref()
	if _, ok := s.entities[kind][ref]; !ok {
		return errors.Wrap(store.ErrNotFound, errors.ErrorTypeNotFound, "update "+string(kind)).
			WithDetail("ref", string(ref))
	}
	s.entities[kind][ref] = clone(entity)
	return nil
}

// Put seeds the store with an entity, bypassing call counting. A new
// Reference is assigned when the entity has none.
func (s *Store) Put(entity models.Entity) models.Reference {
	s.mu.Lock()
	defer s.mu.Unlock()
	kind := entity.Kind()
	ref := entity.Ref()
	if ref == "" {
		s.seq++
		ref = models.Reference(fmt.Sprintf("mem://%s/%d", kind, s.seq))
	}
	stored := clone(entity)
	stored.SetRef(ref)
	if s.entities[kind] == nil {
		s.entities[kind] = make(map[models.Reference]models.Entity)
	}
	if _, exists := s.entities[kind][ref]; !exists {
		s.order[kind] = append(s.order[kind], ref)
	}
	s.entities[kind][ref] = stored
	return ref
}

// Delete removes an entity from the store while leaving nothing else
// changed. Tests use it to simulate a corrupted index.
func (s *Store) Delete(kind models.Kind, ref models.Reference) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entities[kind], ref)
}

// Get returns a copy of the stored entity, or nil.
func (s *Store) Get(kind models.Kind, ref models.Reference) models.Entity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entities[kind][ref]
	if !ok {
		return nil
	}
	return clone(e)
}

// Len returns how many entities of kind are stored.
func (s *Store) Len(kind models.Kind) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entities[kind])
}

// Calls returns how often op was invoked for kind.
func (s *Store) Calls(op string, kind models.Kind) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.calls[op][kind]
}

// Writes returns the total number of create and update calls.
func (s *Store) Writes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, op := range []string{"create", "update"} {
		for _, c := range s.calls[op] {
			n += c
		}
	}
	return n
}

// ResetCalls clears the call counters.
func (s *Store) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = make(Calls)
}

func clone(e models.Entity) models.Entity {
	switch v := e.(type) {
	case *models.Funder:
		return v.Clone()
	case *models.User:
		return v.Clone()
	case *models.Grant:
		return v.Clone()
	}
	return e
}
