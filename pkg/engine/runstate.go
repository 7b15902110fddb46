package engine

import (
	"context"

	"github.com/ajitpratap0/grantsync/pkg/models"
)

// runState is everything one Synchronize call accumulates. It is created
// fresh per call and never shared between runs.
type runState struct {
	mode Mode

	// Natural key to STORE reference. Entries are never overwritten within
	// a run, including the empty reference of a skipped funder.
	funders map[string]models.Reference
	users   map[string]models.Reference

	watermark Watermark
	stats     Statistics

	// Reconciled grants by reference, in the order they were written.
	grants     map[models.Reference]*models.Grant
	grantOrder []models.Reference
}

func newRunState(mode Mode) *runState {
	return &runState{
		mode:    mode,
		funders: make(map[string]models.Reference),
		users:   make(map[string]models.Reference),
		stats:   Statistics{Mode: mode},
		grants:  make(map[models.Reference]*models.Grant),
	}
}

// resolveFunder returns the reference for the funder with the given raw
// key, reconciling it on first sight. A funder row without a key resolves
// to nothing.
func (e *Engine) resolveFunder(ctx context.Context, st *runState, key string, build func() *models.Funder) (models.Reference, error) {
	if key == "" {
		return "", nil
	}
	if ref, ok := st.funders[key]; ok {
		return ref, nil
	}
	ref, err := e.reconcileFunder(ctx, st, build())
	if err != nil {
		return "", err
	}
	st.funders[key] = ref
	return ref, nil
}

// resolveUser returns the reference for the user with the given employee id,
// reconciling it on first sight. A row without an employee id resolves to
// nothing.
func (e *Engine) resolveUser(ctx context.Context, st *runState, employeeID string, hasID bool, build func() *models.User) (models.Reference, error) {
	if hasID {
		if ref, ok := st.users[employeeID]; ok {
			return ref, nil
		}
	}
	ref, err := e.reconcileUser(ctx, st, build())
	if err != nil {
		return "", err
	}
	if hasID {
		st.users[employeeID] = ref
	}
	return ref, nil
}

func (st *runState) recordGrant(ref models.Reference, g *models.Grant) {
	if _, seen := st.grants[ref]; !seen {
		st.grantOrder = append(st.grantOrder, ref)
	}
	st.grants[ref] = g
}
