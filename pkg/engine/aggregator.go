package engine

import (
	"context"

	"go.uber.org/zap"

	"github.com/ajitpratap0/grantsync/pkg/errors"
	"github.com/ajitpratap0/grantsync/pkg/logger"
	"github.com/ajitpratap0/grantsync/pkg/models"
)

// syncGrants collapses rows sharing a grant key into one Grant, resolving
// funders and investigators along the way, then reconciles every grant in
// the order its key was first seen.
func (e *Engine) syncGrants(ctx context.Context, st *runState, rows []Row) error {
	log := logger.FromContext(ctx, e.logger)
	log.Info("processing result set", zap.Int("rows", len(rows)))

	working := make(map[string]*models.Grant)
	var order []string

	for i, row := range rows {
		key := row.Value(ColGrantLocalKey)
		grant, seen := working[key]
		if !seen {
			var err error
			if grant, err = e.startGrant(ctx, st, row); err != nil {
				return errors.Wrap(err, errors.ErrorTypeInternal, "aggregate grant").
					WithDetail("grant", key).WithDetail("row", i)
			}
			working[key] = grant
			order = append(order, key)
			log.Debug("processing grant", zap.String("local_key", key))
		}

		if err := e.assignInvestigator(ctx, st, grant, row); err != nil {
			return errors.Wrap(err, errors.ErrorTypeInternal, "resolve investigator").
				WithDetail("grant", key).WithDetail("row", i)
		}
		if err := st.watermark.Fold(row.Get(ColUpdateTimestamp)); err != nil {
			return errors.Wrap(err, errors.ErrorTypeData, "fold update timestamp").WithDetail("row", i)
		}
	}

	for _, key := range order {
		grant := working[key]
		ref, err := e.reconcileGrant(ctx, st, grant)
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeInternal, "reconcile grant").WithDetail("grant", key)
		}
		st.recordGrant(ref, grant)
	}
	st.stats.EntitiesProcessed = len(order)
	return nil
}

// startGrant builds a grant from its first row and resolves its funders. An
// absent or NULL primary funder key means the direct funder fills both roles.
func (e *Engine) startGrant(ctx context.Context, st *runState, row Row) (*models.Grant, error) {
	grant, err := buildGrant(row)
	if err != nil {
		return nil, err
	}

	directKey := row.Value(ColDirectFunderLocalKey)
	primaryKey, ok := row.Get(ColPrimaryFunderLocalKey)
	if !ok {
		primaryKey = directKey
	}

	grant.DirectFunder, err = e.resolveFunder(ctx, st, directKey, func() *models.Funder {
		return e.deployment.BuildDirectFunder(row)
	})
	if err != nil {
		return nil, err
	}
	grant.PrimaryFunder, err = e.resolveFunder(ctx, st, primaryKey, func() *models.Funder {
		return e.deployment.BuildPrimaryFunder(row)
	})
	if err != nil {
		return nil, err
	}
	return grant, nil
}

// assignInvestigator resolves the row's user when it is a co-investigator or
// key person, or when the grant has no PI yet. A user with an unrecognized
// role resolved that way is cached but not attached to the grant.
func (e *Engine) assignInvestigator(ctx context.Context, st *runState, grant *models.Grant, row Row) error {
	role := ClassifyRole(row.Get(ColAbbreviatedRole))
	if !role.coInvestigator() && grant.PI != "" {
		return nil
	}

	employeeID, hasID := row.Get(ColUserEmployeeID)
	ref, err := e.resolveUser(ctx, st, employeeID, hasID, func() *models.User {
		return e.deployment.BuildUser(row)
	})
	if err != nil {
		return err
	}

	switch {
	case role == RolePI && ref != "":
		grant.PI = ref
		st.stats.PIsAdded++
	case role.coInvestigator() && ref != "" && !grant.HasCoPI(ref):
		grant.CoPIs = append(grant.CoPIs, ref)
		st.stats.CoPIsAdded++
	}
	return nil
}
